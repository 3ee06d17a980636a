package repositories

import (
	"errors"
	"fmt"
)

// StoreErrorCode enumerates the failure categories shared by every persistence backend.
type StoreErrorCode string

const (
	// StoreErrorNotFound indicates the requested document does not exist.
	StoreErrorNotFound StoreErrorCode = "not_found"
	// StoreErrorConflict indicates a precondition or uniqueness check failed.
	StoreErrorConflict StoreErrorCode = "conflict"
	// StoreErrorUnavailable indicates the backend could not be reached or timed out.
	StoreErrorUnavailable StoreErrorCode = "unavailable"
	// StoreErrorUnknown represents an unspecified failure.
	StoreErrorUnknown StoreErrorCode = "unknown"
)

// StoreError wraps backend failures with a machine readable code. It satisfies RepositoryError.
type StoreError struct {
	Op      string
	Code    StoreErrorCode
	Message string
	Err     error
}

var _ RepositoryError = (*StoreError)(nil)

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap exposes the underlying error, if any.
func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *StoreError) IsNotFound() bool    { return e != nil && e.Code == StoreErrorNotFound }
func (e *StoreError) IsConflict() bool    { return e != nil && e.Code == StoreErrorConflict }
func (e *StoreError) IsUnavailable() bool { return e != nil && e.Code == StoreErrorUnavailable }

// NewStoreError constructs a typed store error.
func NewStoreError(op string, code StoreErrorCode, message string, err error) *StoreError {
	if message == "" {
		message = string(code)
	}
	return &StoreError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NotFound is shorthand for a not-found StoreError.
func NotFound(op, message string) *StoreError {
	return NewStoreError(op, StoreErrorNotFound, message, nil)
}

// Conflict is shorthand for a conflict StoreError.
func Conflict(op, message string) *StoreError {
	return NewStoreError(op, StoreErrorConflict, message, nil)
}

// Unavailable wraps err as an unavailable StoreError.
func Unavailable(op string, err error) *StoreError {
	return NewStoreError(op, StoreErrorUnavailable, "backend unavailable", err)
}

// IsNotFound reports whether err carries a not-found repository category.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err carries a conflict repository category.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
