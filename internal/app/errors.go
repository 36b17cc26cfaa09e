package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"workhub/api/internal/ai"
	"workhub/api/internal/auth"
	"workhub/api/internal/export"
	"workhub/api/internal/intel"
	"workhub/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func forbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func validation(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

func externalServiceError(message string) *DomainError {
	return domainError(http.StatusInternalServerError, "EXTERNAL_SERVICE_ERROR", message, nil)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var genErr *intel.GenerationError
	if errors.As(err, &genErr) {
		return http.StatusInternalServerError, "GENERATION_ERROR", genErr.Error(), nil
	}
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, store.ErrDepthExceeded):
		return http.StatusBadRequest, "DEPTH_EXCEEDED", "Folders can be nested at most 3 levels deep", map[string]any{"maxDepth": store.MaxFolderDepth}
	case errors.Is(err, store.ErrInvalidMove):
		return http.StatusBadRequest, "VALIDATION_ERROR", "A folder cannot be moved into itself or one of its subfolders", nil
	case errors.Is(err, store.ErrSummaryLocked):
		return http.StatusConflict, "SUMMARY_LOCKED", "Summary has already been sent", nil
	case errors.Is(err, store.ErrHasChildren):
		return http.StatusConflict, "HAS_CHILDREN", "Department still has child departments", nil
	case errors.Is(err, store.ErrInvalidParent):
		return http.StatusBadRequest, "VALIDATION_ERROR", "Parent department is missing or would create a cycle", nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "VALIDATION_ERROR", "format must be pdf or docx", nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not available on this server", nil
	case errors.Is(err, ai.ErrNotConfigured):
		return http.StatusInternalServerError, "EXTERNAL_SERVICE_ERROR", "Generative model is not configured", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
