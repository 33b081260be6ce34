package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a provider call failure. The executor uses the
// kind to decide between fallback, retry, and hard failure, and the
// breaker counts every kind as a failure.
type ErrorKind string

const (
	KindRateLimit ErrorKind = "rate_limit"
	KindTimeout   ErrorKind = "timeout"
	KindTransport ErrorKind = "transport"
	KindAuth      ErrorKind = "auth"
	KindServer    ErrorKind = "server"
	KindInvalid   ErrorKind = "invalid"
)

// Error is a typed provider failure. Provider failures are data, not
// exceptions: callers branch on Kind and Retryable.
type Error struct {
	Provider  string
	Kind      ErrorKind
	Message   string
	Retryable bool
}

// Error returns the formatted message.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// newError builds a typed error with retryability derived from the kind.
func newError(providerName string, kind ErrorKind, message string) *Error {
	retryable := false
	switch kind {
	case KindRateLimit, KindTimeout, KindTransport, KindServer:
		retryable = true
	}
	return &Error{
		Provider:  providerName,
		Kind:      kind,
		Message:   message,
		Retryable: retryable,
	}
}

// classifyStatus maps an HTTP status to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindRateLimit
	case status == 408:
		return KindTimeout
	case status >= 500:
		return KindServer
	default:
		return KindInvalid
	}
}

// wrapTransportErr converts a transport-level error (connection refused,
// deadline exceeded) into a typed provider error.
func wrapTransportErr(providerName string, err error) *Error {
	kind := KindTransport
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return newError(providerName, kind, err.Error())
}

// AsError extracts a typed provider error, if any.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
