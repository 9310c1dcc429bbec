package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrorForbidden    ErrorCode = "FORBIDDEN"
	ErrorNotFound     ErrorCode = "NOT_FOUND"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// Error is returned by every service. Message is safe to show to the caller;
// Reason is a stable tag for logs.
type Error struct {
	Code    ErrorCode
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason, message string, err error) *Error {
	return &Error{Code: code, Reason: reason, Message: message, Err: err}
}

type upstreamMessenger interface {
	UpstreamMessage() string
}

// upstreamError wraps a failed call to an external service. The caller sees
// prefix followed by the upstream's own message when one is available.
func upstreamError(reason, prefix string, err error) *Error {
	msg := err.Error()
	var um upstreamMessenger
	if errors.As(err, &um) && um.UpstreamMessage() != "" {
		msg = um.UpstreamMessage()
	}
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	return newError(ErrorUpstream, reason, msg, err)
}
