// Package apierr defines the normalized error shape surfaced by the API
// client. Every transport failure is translated into an *Error exactly once,
// at the transport boundary, so callers never inspect raw HTTP responses or
// net errors.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Kind categorizes a failure by how the client should react to it,
// independent of the specific code the server returned.
type Kind string

const (
	// KindNetwork means no HTTP response was received. Retryable.
	KindNetwork Kind = "network"
	// KindServer means the server answered with a 5xx status. Retryable.
	KindServer Kind = "server"
	// KindClient means a non-auth 4xx status. Never retried.
	KindClient Kind = "client"
	// KindAuth means a 401 on a request that is allowed to refresh.
	KindAuth Kind = "auth"
	// KindRefresh means the refresh call itself failed. Terminal for the
	// current session; stored credentials are gone by the time callers see it.
	KindRefresh Kind = "refresh"
)

// Error wraps any request failure with a stable code and message.
// Code and Message default to transport-level values and are overridden by
// the server-supplied error body when one is present.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details any
	Status  int // HTTP status, 0 when no response was received
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates a normalized error with the given kind, code and message.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// FromTransport wraps a failure that produced no HTTP response at all
// (dial errors, timeouts, canceled contexts).
func FromTransport(err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Code:    "NETWORK_ERROR",
		Message: "network request failed",
		Err:     err,
	}
}

// serverErrorBody is the error portion of the response envelope.
type serverErrorBody struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
}

// FromResponse builds a normalized error from an HTTP status and the raw
// response body. The status decides the kind; code and message default to the
// status and its text, and are overridden by the server body when present.
func FromResponse(status int, body []byte) *Error {
	e := &Error{
		Kind:    kindForStatus(status),
		Code:    strconv.Itoa(status),
		Message: http.StatusText(status),
		Status:  status,
	}

	var parsed serverErrorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		if parsed.Code != "" {
			e.Code = parsed.Code
		}
		if parsed.Message != "" {
			e.Message = parsed.Message
		}
		if len(parsed.Errors) > 0 {
			var details any
			if json.Unmarshal(parsed.Errors, &details) == nil {
				e.Details = details
			}
		}
	}
	return e
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status >= 500 && status < 600:
		return KindServer
	default:
		return KindClient
	}
}

// Retryable reports whether the error is a transient failure worth retrying:
// no response at all, or a 5xx from the server.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindNetwork || e.Kind == KindServer
}

// HasKind checks whether err is a normalized error of the given kind.
func HasKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// AsRefreshFailure rewraps err as the terminal refresh-failed error handed to
// callers whose request could not be re-authenticated.
func AsRefreshFailure(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{
			Kind:    KindRefresh,
			Code:    e.Code,
			Message: e.Message,
			Details: e.Details,
			Status:  e.Status,
			Err:     err,
		}
	}
	return &Error{
		Kind:    KindRefresh,
		Code:    "AUTH_REFRESH_FAILED",
		Message: fmt.Sprintf("session refresh failed: %v", err),
		Err:     err,
	}
}
