package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// Timetable validation rejections. Expected during normal editing and
	// surfaced verbatim so the UI can show a slot-level message.
	ErrUnknownReference    = New("UNKNOWN_REFERENCE", http.StatusUnprocessableEntity, "referenced entity does not exist")
	ErrTeacherUnavailable  = New("TEACHER_UNAVAILABLE", http.StatusConflict, "teacher is not available at this slot")
	ErrSlotOccupied        = New("SLOT_OCCUPIED", http.StatusConflict, "slot already has an assignment")
	ErrTeacherDoubleBooked = New("TEACHER_DOUBLE_BOOKED", http.StatusConflict, "teacher already teaches another group at this slot")
	ErrQuotaExceeded       = New("QUOTA_EXCEEDED", http.StatusConflict, "weekly hour quota exceeded for subject")

	// Publication workflow errors.
	ErrInvalidState          = New("INVALID_STATE", http.StatusConflict, "request is not in a state that permits this transition")
	ErrRequestAlreadyPending = New("REQUEST_ALREADY_PENDING", http.StatusConflict, "a publish request is already pending review")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
