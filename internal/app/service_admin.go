package app

import (
	"context"
	"strings"

	"workhub/api/internal/rbac"
	"workhub/api/internal/store"
	"workhub/api/internal/util"
)

const (
	userTypeUser           = "user"
	userTypeDepartmentHead = "department_head"
)

// UserInput is a partial user update. An empty DepartmentID or SuperiorID
// clears the link.
type UserInput struct {
	DisplayName  *string `json:"displayName"`
	Position     *string `json:"position"`
	Phone        *string `json:"phone"`
	Role         *string `json:"role"`
	UserType     *string `json:"userType"`
	DepartmentID *string `json:"departmentId"`
	SuperiorID   *string `json:"superiorId"`
}

type DepartmentInput struct {
	Name      *string `json:"name"`
	ParentID  *string `json:"parentId"`
	SortOrder *int    `json:"sortOrder"`
}

func (s *Service) ListUsers(ctx context.Context, session Session) ([]map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionManageUsers) {
		return nil, forbidden()
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return mapSlice(users, userJSON), nil
}

func (s *Service) UpdateUser(ctx context.Context, session Session, userID string, input UserInput) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionManageUsers) {
		return nil, forbidden()
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	patch, err := s.userPatch(ctx, userID, input)
	if err != nil {
		return nil, err
	}
	if input.Role != nil {
		role := strings.TrimSpace(*input.Role)
		if !rbac.Valid(role) {
			return nil, validation("role must be user or admin")
		}
		patch.Role = &role
	}
	if input.UserType != nil {
		userType := strings.TrimSpace(*input.UserType)
		if userType != userTypeUser && userType != userTypeDepartmentHead {
			return nil, validation("userType must be user or department_head")
		}
		patch.UserType = &userType
	}
	if input.DepartmentID != nil {
		departmentID := strings.TrimSpace(*input.DepartmentID)
		if departmentID == "" {
			patch.ClearDepartment = true
		} else {
			if err := s.departmentExists(ctx, departmentID); err != nil {
				return nil, err
			}
			patch.DepartmentID = &departmentID
		}
	}

	updated, err := s.store.UpdateUser(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	s.recordActivity(ctx, session.UserID, "update_user", "user", userID, updated.DisplayName)
	return userJSON(updated), nil
}

// userPatch validates the fields a user may also change on their own profile.
func (s *Service) userPatch(ctx context.Context, userID string, input UserInput) (store.UserPatch, error) {
	var patch store.UserPatch
	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		if name == "" {
			return patch, validation("displayName cannot be empty")
		}
		patch.DisplayName = &name
	}
	if input.Position != nil {
		position := strings.TrimSpace(*input.Position)
		patch.Position = &position
	}
	if input.Phone != nil {
		phone := strings.TrimSpace(*input.Phone)
		patch.Phone = &phone
	}
	if input.SuperiorID != nil {
		superiorID := strings.TrimSpace(*input.SuperiorID)
		switch {
		case superiorID == "":
			patch.ClearSuperior = true
		case superiorID == userID:
			return patch, validation("A user cannot be their own superior")
		default:
			if _, err := s.store.GetUser(ctx, superiorID); err != nil {
				return patch, notFound("Superior not found")
			}
			patch.SuperiorID = &superiorID
		}
	}
	return patch, nil
}

func (s *Service) departmentExists(ctx context.Context, id string) error {
	departments, err := s.store.ListDepartments(ctx)
	if err != nil {
		return err
	}
	for _, department := range departments {
		if department.ID == id {
			return nil
		}
	}
	return notFound("Department not found")
}

func (s *Service) ListDepartments(ctx context.Context, session Session) ([]map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionManageOrgTree) {
		return nil, forbidden()
	}
	departments, err := s.store.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}
	return mapSlice(departments, departmentJSON), nil
}

func (s *Service) CreateDepartment(ctx context.Context, session Session, input DepartmentInput) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionManageOrgTree) {
		return nil, forbidden()
	}
	department := store.Department{ID: util.NewID("dep")}
	if input.Name != nil {
		department.Name = strings.TrimSpace(*input.Name)
	}
	if department.Name == "" {
		return nil, validation("name is required")
	}
	department.ParentID = normalizeOptionalID(input.ParentID)
	if input.SortOrder != nil {
		department.SortOrder = *input.SortOrder
	}

	created, err := s.store.CreateDepartment(ctx, department)
	if err != nil {
		return nil, err
	}
	s.recordActivity(ctx, session.UserID, "create_department", "department", created.ID, created.Name)
	return departmentJSON(created), nil
}

func (s *Service) UpdateDepartment(ctx context.Context, session Session, id string, input DepartmentInput) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionManageOrgTree) {
		return nil, forbidden()
	}
	var name *string
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if trimmed == "" {
			return nil, validation("name cannot be empty")
		}
		name = &trimmed
	}
	var parentID *string
	clearParent := false
	if input.ParentID != nil {
		parentID = normalizeOptionalID(input.ParentID)
		clearParent = parentID == nil
		if parentID != nil && *parentID == id {
			return nil, validation("A department cannot be its own parent")
		}
	}

	updated, err := s.store.UpdateDepartment(ctx, id, name, parentID, clearParent, input.SortOrder)
	if err != nil {
		return nil, err
	}
	s.recordActivity(ctx, session.UserID, "update_department", "department", updated.ID, updated.Name)
	return departmentJSON(updated), nil
}

func (s *Service) DeleteDepartment(ctx context.Context, session Session, id string) error {
	if !s.Can(session.Role, rbac.ActionManageOrgTree) {
		return forbidden()
	}
	if err := s.store.DeleteDepartment(ctx, id); err != nil {
		return err
	}
	s.recordActivity(ctx, session.UserID, "delete_department", "department", id, "")
	return nil
}
