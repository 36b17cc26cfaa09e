package app

import (
	"fmt"
	"net/http"
	"strconv"
)

func (s *HTTPServer) handleTasks(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListTasks(r.Context(), session.UserID)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"tasks": items})
		case http.MethodPost:
			var body TaskInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateTask(r.Context(), session, body)
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
		var body TaskInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateTask(r.Context(), parts[0], session.UserID, body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case http.MethodDelete:
		if err := s.service.DeleteTask(r.Context(), parts[0], session.UserID); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleIntel(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 && r.Method == http.MethodGet {
		items, err := s.service.ListPosts(r.Context(), session.UserID, r.URL.Query().Get("category"))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"posts": items})
		return
	}

	if len(parts) == 1 && parts[0] == "favorites" && r.Method == http.MethodGet {
		items, err := s.service.ListFavorites(r.Context(), session.UserID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"posts": items})
		return
	}

	if len(parts) == 2 && parts[1] == "favorite" && r.Method == http.MethodPost {
		payload, err := s.service.ToggleFavorite(r.Context(), session.UserID, parts[0])
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 2 && parts[1] == "view" && r.Method == http.MethodPost {
		payload, err := s.service.RecordView(r.Context(), parts[0])
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	routeNotFound(w)
}

func (s *HTTPServer) handleScheduler(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 1 && parts[0] == "status" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, s.service.SchedulerStatus())
		return
	}

	if len(parts) == 1 && parts[0] == "trigger" && r.Method == http.MethodPost {
		payload, err := s.service.TriggerIntel(r.Context(), session)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	routeNotFound(w)
}

// handleSummaries serves both /daily-summaries (collections) and
// /daily-summary (single summary actions); parts[0] is the collection name.
func (s *HTTPServer) handleSummaries(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if parts[0] == "daily-summaries" {
		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			items, err := s.service.ListSummaries(r.Context(), session.UserID)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"summaries": items})
		case len(parts) == 2 && parts[1] == "received" && r.Method == http.MethodGet:
			items, err := s.service.ReceivedSummaries(r.Context(), session.UserID)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"summaries": items})
		default:
			routeNotFound(w)
		}
		return
	}

	if len(parts) == 1 && r.Method == http.MethodPost {
		var body struct {
			Date  string `json:"date"`
			Notes string `json:"notes"`
		}
		if r.ContentLength != 0 {
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
		}
		stream := newSSEStream(w)
		summary, err := s.service.GenerateSummary(r.Context(), session.UserID, body.Date, body.Notes, stream.chunk)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			s.logStreamError(r, err)
			stream.fail(err)
			return
		}
		_ = stream.done(map[string]any{"summary": summary})
		return
	}

	if len(parts) < 2 {
		routeNotFound(w)
		return
	}
	summaryID := parts[1]

	if len(parts) == 2 && r.Method == http.MethodDelete {
		if err := s.service.DeleteSummary(r.Context(), summaryID, session.UserID); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 3 && parts[2] == "send" && r.Method == http.MethodPost {
		payload, err := s.service.SendSummary(r.Context(), summaryID, session.UserID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 3 && parts[2] == "export" && r.Method == http.MethodGet {
		result, err := s.service.ExportSummary(r.Context(), summaryID, session.UserID, r.URL.Query().Get("format"))
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		header := w.Header()
		header.Set("Content-Type", result.MimeType)
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		header.Set("Content-Length", strconv.Itoa(len(result.Data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return
	}

	routeNotFound(w)
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) != 0 || r.Method != http.MethodGet {
		routeNotFound(w)
		return
	}
	payload, err := s.service.Dashboard(r.Context(), session.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleActivity(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) != 0 || r.Method != http.MethodGet {
		routeNotFound(w)
		return
	}
	items, err := s.service.ListActivity(r.Context(), session.UserID, r.URL.Query().Get("date"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": items})
}
