package app

import (
	"io"
	"net/http"
)

func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		routeNotFound(w)
		return
	}

	switch parts[0] {
	case "users":
		s.handleAdminUsers(w, r, session, parts[1:])
	case "handover":
		if len(parts) != 1 || r.Method != http.MethodPost {
			routeNotFound(w)
			return
		}
		var body struct {
			FromUserID string `json:"fromUserId"`
			ToUserID   string `json:"toUserId"`
			Note       string `json:"note"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.TransferAssets(r.Context(), session, body.FromUserID, body.ToUserID, body.Note)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case "handover-logs":
		if len(parts) != 1 || r.Method != http.MethodGet {
			routeNotFound(w)
			return
		}
		items, err := s.service.ListHandoverLogs(r.Context(), session)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"logs": items})
	case "departments":
		s.handleDepartments(w, r, session, parts[1:])
	default:
		routeNotFound(w)
	}
}

func (s *HTTPServer) handleAdminUsers(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 && r.Method == http.MethodGet {
		items, err := s.service.ListUsers(r.Context(), session)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": items})
		return
	}

	if len(parts) == 1 && r.Method == http.MethodPatch {
		var body UserInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateUser(r.Context(), session, parts[0], body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 2 && parts[1] == "assets" && r.Method == http.MethodGet {
		payload, err := s.service.GetUserAssets(r.Context(), session, parts[0])
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	routeNotFound(w)
}

func (s *HTTPServer) handleDepartments(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListDepartments(r.Context(), session)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"departments": items})
		case http.MethodPost:
			var body DepartmentInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateDepartment(r.Context(), session, body)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) != 1 {
		routeNotFound(w)
		return
	}
	switch r.Method {
	case http.MethodPatch:
		var body DepartmentInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateDepartment(r.Context(), session, parts[0], body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case http.MethodDelete:
		if err := s.service.DeleteDepartment(r.Context(), session, parts[0]); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 || parts[0] != "me" {
		routeNotFound(w)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetProfile(r.Context(), session.UserID)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodPatch:
			var body UserInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateProfile(r.Context(), session.UserID, body)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "avatar" && r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarBytes+multipartOverhead)
		if err := r.ParseMultipartForm(MaxAvatarBytes); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Avatar must be an image of at most 2 MB", nil)
			return
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()
		file, _, err := r.FormFile("avatar")
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "avatar is required", nil)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, MaxAvatarBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read upload", nil)
			return
		}
		payload, err := s.service.UploadAvatar(r.Context(), session.UserID, data)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	routeNotFound(w)
}
