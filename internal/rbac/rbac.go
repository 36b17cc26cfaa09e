package rbac

type Role string
type Action string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

const (
	ActionRead          Action = "read"
	ActionWrite         Action = "write"
	ActionAssignTask    Action = "assign_task"
	ActionTriggerIntel  Action = "trigger_intel"
	ActionManageUsers   Action = "manage_users"
	ActionHandover      Action = "handover"
	ActionManageOrgTree Action = "manage_departments"
)

// Can reports whether role may perform action on the shared admin surface.
// Per-record ownership is checked by the store, not here.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleUser:
		return action == ActionRead || action == ActionWrite
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}

// Valid reports whether role is one of the stored role values.
func Valid(role string) bool {
	return Role(role) == RoleUser || Role(role) == RoleAdmin
}

// CanAssignTask reports whether an assigner may put a task on someone
// else's board: admins always, otherwise only a direct superior.
func CanAssignTask(assignerRole Role, assignerID string, assigneeSuperiorID *string) bool {
	if Can(assignerRole, ActionAssignTask) {
		return true
	}
	return assigneeSuperiorID != nil && *assigneeSuperiorID == assignerID
}
