package store

import "errors"

var (
	// ErrNotFound covers both missing rows and rows owned by someone else.
	ErrNotFound      = errors.New("not found")
	ErrDepthExceeded = errors.New("folder depth exceeded")
	ErrInvalidMove   = errors.New("invalid folder move")
	ErrSummaryLocked = errors.New("summary already sent")
	ErrHasChildren   = errors.New("department has child departments")
	ErrInvalidParent = errors.New("invalid parent department")
)
