package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoToken is returned by authenticated calls when no bearer token is stored.
	ErrNoToken = errors.New("no authentication token found")
	// ErrUnauthorized matches any *Error with a 401 status.
	ErrUnauthorized = errors.New("unauthorized")
)

// Error describes a failed API call: either a transport failure
// (StatusCode == 0) or a non-success HTTP status.
type Error struct {
	Method     string
	Route      string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Route, e.Err)
	}
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Route, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports 401 responses as ErrUnauthorized.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
