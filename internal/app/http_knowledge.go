package app

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// multipartOverhead leaves room for form boundaries and the folderId field.
const multipartOverhead = 1 << 20

func (s *HTTPServer) handleFolders(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListFolders(r.Context(), session.UserID)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"folders": items})
		case http.MethodPost:
			var body struct {
				Name     string  `json:"name"`
				ParentID *string `json:"parentId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateFolder(r.Context(), session.UserID, body.Name, body.ParentID)
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

	folderID := parts[0]
	if len(parts) == 1 && r.Method == http.MethodDelete {
		payload, err := s.service.DeleteFolder(r.Context(), folderID, session.UserID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 2 && parts[1] == "rename" && r.Method == http.MethodPatch {
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.RenameFolder(r.Context(), folderID, session.UserID, body.Name)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 2 && parts[1] == "move" && r.Method == http.MethodPatch {
		var body struct {
			ParentID *string `json:"parentId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.MoveFolder(r.Context(), folderID, session.UserID, body.ParentID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	routeNotFound(w)
}

func (s *HTTPServer) handleFiles(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 && r.Method == http.MethodGet {
		var folderID *string
		if r.URL.Query().Has("folderId") {
			value := r.URL.Query().Get("folderId")
			folderID = &value
		}
		items, err := s.service.ListFiles(r.Context(), session.UserID, folderID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": items})
		return
	}

	if len(parts) == 1 && parts[0] == "search" && r.Method == http.MethodGet {
		limit := 20
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer", nil)
				return
			}
			limit = parsed
		}
		payload, err := s.service.SearchFiles(r.Context(), session.UserID, r.URL.Query().Get("q"), limit)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 1 && parts[0] == "upload" && r.Method == http.MethodPost {
		s.handleUpload(w, r, session)
		return
	}

	if len(parts) == 1 && r.Method == http.MethodDelete {
		if err := s.service.DeleteFile(r.Context(), parts[0], session.UserID); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 2 && parts[1] == "move" && r.Method == http.MethodPatch {
		var body struct {
			FolderID *string `json:"folderId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.MoveFile(r.Context(), parts[0], session.UserID, body.FolderID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	routeNotFound(w)
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, session Session) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "File exceeds the 10 MB limit", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Expected a multipart form upload", nil)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "file is required", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read upload", nil)
		return
	}

	var folderID *string
	if value := r.FormValue("folderId"); value != "" {
		folderID = &value
	}
	payload, err := s.service.UploadFile(r.Context(), session.UserID, folderID, header.Filename, data)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListSessions(r.Context(), session.UserID)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"sessions": items})
		case http.MethodPost:
			var body struct {
				Title string `json:"title"`
			}
			if r.ContentLength != 0 {
				if err := decodeBody(r, &body); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
			}
			payload, err := s.service.CreateSession(r.Context(), session.UserID, body.Title)
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

	chatID := parts[0]
	if len(parts) == 1 && r.Method == http.MethodDelete {
		if err := s.service.DeleteSession(r.Context(), chatID, session.UserID); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 2 && parts[1] == "messages" {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListMessages(r.Context(), chatID, session.UserID)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"messages": items})
		case http.MethodPost:
			var body struct {
				Content string   `json:"content"`
				FileIDs []string `json:"fileIds"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			stream := newSSEStream(w)
			message, err := s.service.SendMessage(r.Context(), chatID, session.UserID, body.Content, body.FileIDs, stream.chunk)
			if err != nil {
				if r.Context().Err() != nil {
					return
				}
				s.logStreamError(r, err)
				stream.fail(err)
				return
			}
			_ = stream.done(map[string]any{"message": message})
		default:
			methodNotAllowed(w)
		}
		return
	}

	routeNotFound(w)
}

func (s *HTTPServer) logStreamError(r *http.Request, err error) {
	if status, _, _, _ := mapError(err); status < http.StatusInternalServerError {
		return
	}
	s.logger.Error("stream failed",
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
}
