package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the server has no such resource (HTTP 404).
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized means the request lacked a valid token (HTTP 401).
	ErrUnauthorized = errors.New("not authorized")
)

// ValidationError means the server rejected the request as malformed or
// semantically invalid (HTTP 400/409/422). The request should not be
// retried unchanged.
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%d): %s", e.Status, e.Message)
}

// TransportError means the request never produced a usable response:
// connection failure, timeout, cancellation, or a 5xx from the server.
// The underlying cause is preserved for errors.Is checks (for example
// context.DeadlineExceeded).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
