package http

import (
	"net/http"

	"github.com/pkg/errors"
)

// StatusError is returned by method handlers to choose the HTTP status
// the failure is reported with.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return e.Err.Error()
}

// ErrorUnauthorized is answered when a method needs a logged-in
// session and the request doesn't carry one.
var ErrorUnauthorized = &StatusError{
	Code: http.StatusUnauthorized,
	Err:  errors.New("Not logged in"),
}

func MakeMethodNotFound(method string) *StatusError {
	return &StatusError{
		Code: http.StatusNotFound,
		Err:  errors.Errorf("no such method %q", method),
	}
}

// MakeArgumentError reports invalid or missing parameters.
func MakeArgumentError(err error) *StatusError {
	return &StatusError{
		Code: http.StatusBadRequest,
		Err:  err,
	}
}
