package errors

import (
	"encoding/json"
	"errors"
)

// Representation of dispatch failures. These are divided into a
// closed set of categories, distinguished by what went wrong and
// whether trying again might help:
//  - the server could not be reached at all (worth retrying later)
//  - the server refused the credentials or session
//  - anything else: a bad status, a body that isn't JSON, a result
//    the converter rejected, params that can't be encoded
type Error struct {
	Type Type
	// a message that can be printed out for the user
	Help string `json:"help"`
	// the underlying error that can be e.g., logged for developers to look at
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Type)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Type string

const (
	// A network error prevented the call from reaching the server. The
	// call might succeed on a retry.
	Outage Type = "outage"
	// The server rejected the caller's credentials or session (HTTP 401).
	Unauthorized Type = "unauthorized"
	// Something is broken: the server answered with an unexpected
	// status, or the response could not be understood. Retrying is
	// unlikely to help.
	Broken Type = "broken"
)

func (t Type) Valid() bool {
	switch t {
	case Outage, Unauthorized, Broken:
		return true
	}
	return false
}

func is(err error, t Type) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

func IsOutage(err error) bool {
	return is(err, Outage)
}

func IsUnauthorized(err error) bool {
	return is(err, Unauthorized)
}

func IsBroken(err error) bool {
	return is(err, Broken)
}

func (e *Error) MarshalJSON() ([]byte, error) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{
		Type: string(e.Type),
		Help: e.Help,
		Err:  errMsg,
	}
	return json.Marshal(jsonable)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{}
	if err := json.Unmarshal(data, &jsonable); err != nil {
		return err
	}
	e.Type = Type(jsonable.Type)
	e.Help = jsonable.Help
	if jsonable.Err != "" {
		e.Err = errors.New(jsonable.Err)
	}
	return nil
}

func OutageError(msg string) *Error {
	return &Error{
		Type: Outage,
		Help: `Cannot contact the RPC server

    ` + msg + `

The request could not be delivered, because the server is not
running, is temporarily unreachable, or has been firewalled.

If you are sure the server is running, you can simply wait a few
seconds and try the operation again.
`,
		Err: errors.New(msg),
	}
}

func UnauthorizedError(msg string) *Error {
	return &Error{
		Type: Unauthorized,
		Help: `The request failed authentication

    ` + msg + `

This most likely means you are not logged in, your session has
expired, or the credentials supplied are incorrect. Log in again (or
supply a cookie jar holding a valid session) and retry.
`,
		Err: errors.New(msg),
	}
}

func BrokenError(msg string) *Error {
	return &Error{
		Type: Broken,
		Help: `Error from RPC server

    ` + msg + `

The server was reached, but the call could not be completed: the
server reported an error, or its response was not what this client
expected. Retrying is unlikely to help; the client and server may
disagree about the method's parameters or result.
`,
		Err: errors.New(msg),
	}
}
