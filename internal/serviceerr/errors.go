// Package serviceerr defines the coded errors returned by the login flow.
// Each code maps to exactly one HTTP status so that every failure can be
// rendered as a structured {status_code, message} result.
package serviceerr

import "net/http"

type Code string

const (
	// Caller errors
	CodeInvalidRequest Code = "invalid_request"
	CodeInvalidOrigin  Code = "invalid_origin"

	// Authentication errors
	CodeUnauthorized     Code = "unauthorized"
	CodeInvalidSession   Code = "invalid_session"
	CodeInvalidCSRFToken Code = "invalid_csrf_token"

	// External service errors
	CodeUpstream Code = "upstream_error"

	// Configuration errors
	CodeConfiguration   Code = "configuration_error"
	CodeInvalidArgument Code = "invalid_argument"

	// Custom codes
	CodeUnknown  Code = "unknown"
	CodeNotFound Code = "not_found"
	CodeConflict Code = "conflict"
)

type Error struct {
	Err         Code
	Description string
}

var (
	ErrInvalidRequest = &Error{Err: CodeInvalidRequest}
	ErrInvalidOrigin  = &Error{Err: CodeInvalidOrigin, Description: "invalid origin"}

	ErrUnauthorized     = &Error{Err: CodeUnauthorized, Description: "unauthorized"}
	ErrInvalidSession   = &Error{Err: CodeInvalidSession, Description: "invalid or expired session"}
	ErrInvalidCSRFToken = &Error{Err: CodeInvalidCSRFToken, Description: "invalid CSRF token"}

	ErrUpstream = &Error{Err: CodeUpstream, Description: "identity provider request failed"}

	ErrConfiguration   = &Error{Err: CodeConfiguration, Description: "missing required configuration parameters"}
	ErrInvalidArgument = &Error{Err: CodeInvalidArgument, Description: "invalid argument"}

	ErrUnknown  = &Error{Err: CodeUnknown, Description: "unknown error"}
	ErrNotFound = &Error{Err: CodeNotFound, Description: "not found"}
	ErrConflict = &Error{Err: CodeConflict, Description: "already exists"}
)

// New returns an error with the code of base and the given description.
func New(base *Error, description string) *Error {
	return &Error{Err: base.Err, Description: description}
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}

	return string(e.Err) + ": " + e.Description
}

// Is reports whether target carries the same code, so errors.Is matches
// a predefined error regardless of the description.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Err == t.Err
}

func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeInvalidRequest, CodeInvalidOrigin:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeInvalidSession, CodeInvalidCSRFToken:
		return http.StatusUnauthorized
	case CodeUpstream:
		return http.StatusBadGateway
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
