package client

import (
	"errors"
	"fmt"
)

// ErrNotFound matches errors for protocols the catalog does not know.
var ErrNotFound = errors.New("protocol not found")

// NotFoundError reports an unknown protocol id.
type NotFoundError struct {
	ID     string
	Detail string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("protocol %q not found", e.ID)
}

// Is makes NotFoundError match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// HTTPError is a non-success catalog response.
type HTTPError struct {
	Op         string
	StatusCode int
	StatusText string
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.StatusText)
	if e.Body != "" {
		msg += "\n" + e.Body
	}
	return msg
}

// ExecutionError is a non-success response from the execution service.
type ExecutionError struct {
	StatusCode int
	StatusText string
	Detail     string
}

// Error returns the service's detail when present, else a generic
// description of the transport failure.
func (e *ExecutionError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "Failed to run protocol: " + e.StatusText
}

// ErrorDetail returns the structured detail message, if any.
func (e *ExecutionError) ErrorDetail() string {
	return e.Detail
}
