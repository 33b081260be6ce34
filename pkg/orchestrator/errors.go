package orchestrator

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode is the stable, user-visible failure class of a request.
type ErrorCode string

const (
	CodeInvalidInput        ErrorCode = "InvalidInput"
	CodeRateLimited         ErrorCode = "RateLimited"
	CodeNoProviders         ErrorCode = "NoProviders"
	CodeNoRoute             ErrorCode = "NoRoute"
	CodeSubtaskFailed       ErrorCode = "SubtaskFailed"
	CodeOrchestrationFailed ErrorCode = "OrchestrationFailed"
	CodeCancelled           ErrorCode = "Cancelled"
)

// Error is a typed orchestration failure. Every failed request carries
// one stable code and a single human-readable sentence; raw provider
// payloads never leak through it.
type Error struct {
	Code    ErrorCode
	Message string

	// RetryAfter is set for RateLimited.
	RetryAfter time.Duration
}

// Error returns the formatted message.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a typed orchestration error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// AsError extracts a typed orchestration error, if any.
func AsError(err error) (*Error, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
