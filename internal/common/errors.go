// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Validation errors.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	ErrInvalidRange  = errors.New("end date must not be before start date")
	ErrInvalidRule   = errors.New("invalid allocation rule")
	ErrInvalidStatus = errors.New("invalid project status")
	ErrInvalidMethod = errors.New("invalid allocation method")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ConsistencyWarning records a non-fatal anomaly found while reallocating:
// a clamped negative record count, or a zero denominator producing an empty
// allocation. Operations carrying warnings still complete with the best
// achievable state; warnings are logged for operational debugging.
type ConsistencyWarning struct {
	RecordID  string
	ProjectID string
	Reason    string
}

func (w ConsistencyWarning) String() string {
	switch {
	case w.RecordID != "" && w.ProjectID != "":
		return fmt.Sprintf("%s (record %s, project %s)", w.Reason, w.RecordID, w.ProjectID)
	case w.RecordID != "":
		return fmt.Sprintf("%s (record %s)", w.Reason, w.RecordID)
	case w.ProjectID != "":
		return fmt.Sprintf("%s (project %s)", w.Reason, w.ProjectID)
	default:
		return w.Reason
	}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
