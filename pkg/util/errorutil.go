package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to API callers.
const (
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeTerminalState     = "TERMINAL_STATE"
	CodeEmptyActor        = "EMPTY_ACTOR"
	CodeMissingComment    = "MISSING_COMMENT"
	CodeInvalidKind       = "INVALID_KIND"
	CodeInvalidPriority   = "INVALID_PRIORITY"
	CodeCancelled         = "CANCELLED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeInternal          = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. A DomainError matches a sentinel when the codes are equal.
var (
	ErrNotFound          = &DomainError{Code: CodeNotFound, Message: "not found", HTTPStatus: http.StatusNotFound}
	ErrInvalidTransition = &DomainError{Code: CodeInvalidTransition, Message: "invalid transition", HTTPStatus: http.StatusConflict}
	ErrTerminalState     = &DomainError{Code: CodeTerminalState, Message: "entity is in a terminal state", HTTPStatus: http.StatusConflict}
	ErrEmptyActor        = &DomainError{Code: CodeEmptyActor, Message: "actor required", HTTPStatus: http.StatusBadRequest}
	ErrMissingComment    = &DomainError{Code: CodeMissingComment, Message: "comment required", HTTPStatus: http.StatusBadRequest}
	ErrInvalidKind       = &DomainError{Code: CodeInvalidKind, Message: "invalid kind", HTTPStatus: http.StatusBadRequest}
	ErrInvalidPriority   = &DomainError{Code: CodeInvalidPriority, Message: "invalid priority", HTTPStatus: http.StatusBadRequest}
	ErrCancelled         = &DomainError{Code: CodeCancelled, Message: "request cancelled", HTTPStatus: http.StatusRequestTimeout}
	ErrValidation        = &DomainError{Code: CodeValidationFailed, Message: "validation failed", HTTPStatus: http.StatusBadRequest}
	ErrConflict          = &DomainError{Code: CodeConflict, Message: "conflict", HTTPStatus: http.StatusConflict}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewInvalidTransition(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidTransition, message, http.StatusConflict, details)
}

func NewTerminalState(message string, details map[string]any) error {
	return NewDomainError(CodeTerminalState, message, http.StatusConflict, details)
}

func NewEmptyActor() error {
	return NewDomainError(CodeEmptyActor, "actor required", http.StatusBadRequest, nil)
}

func NewMissingComment(message string) error {
	return NewDomainError(CodeMissingComment, message, http.StatusBadRequest, nil)
}

func NewInvalidKind(value string) error {
	return NewDomainError(CodeInvalidKind, fmt.Sprintf("unknown kind %q", value), http.StatusBadRequest, nil)
}

func NewInvalidPriority(value string) error {
	return NewDomainError(CodeInvalidPriority, fmt.Sprintf("unknown priority %q", value), http.StatusBadRequest, nil)
}

// NewCancelled wraps a context error.
func NewCancelled(err error) error {
	return &DomainError{
		Code:       CodeCancelled,
		Message:    "request cancelled",
		HTTPStatus: http.StatusRequestTimeout,
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if de, ok := NewCancelled(err).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	return ToDomainError(err)
}

// IsCancelled reports whether err stems from caller cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
