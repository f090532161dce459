package core

import "errors"

// Error codes surfaced to clients.
const (
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeValidation    = "validation_error"
	ErrCodeNotFound      = "not_found"
	ErrCodePersistence   = "persistence_error"
	ErrCodeNotSubscribed = "not_subscribed"
	ErrCodeRateLimited   = "rate_limited"
	ErrCodeBadRequest    = "bad_request"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
