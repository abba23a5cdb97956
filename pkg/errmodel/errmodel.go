// Package errmodel defines the compact error payload shared by every
// controller and the API client. Remote failures, transport failures and
// malformed responses all collapse into the same shape so that UI state
// carries one error type.
package errmodel

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Well-known error codes surfaced by the remote API.
const (
	CodeInternal     = "INTERNAL_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
)

// Category values for classifying errors on the client side.
const (
	CategoryTransport = "transport"
	CategoryAuth      = "auth"
	CategoryNotFound  = "not_found"
	CategoryAPI       = "api"
)

// Error is the normalized error record held in controller state.
// It implements the error interface.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// New constructs a new error record.
func New(code, message string) *Error {
	return &Error{Code: code, Message: truncate(message, 512)}
}

// Transport wraps a client-side failure (no response, bad JSON) under the
// generic internal code.
func Transport(message string, cause error) *Error {
	if cause != nil && message != "" {
		message = message + ": " + cause.Error()
	} else if cause != nil {
		message = cause.Error()
	}
	return New(CodeInternal, message)
}

// From converts any error into an *Error. If err is already *Error, it is
// returned as-is.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return New(CodeInternal, err.Error())
}

// envelope is the wire shape of every error response from the remote API.
type envelope struct {
	Error *Error `json:"error"`
}

// FromResponse maps a non-2xx response body to an *Error. Well-formed
// {error:{code,message}} envelopes pass through verbatim; anything else
// falls back to the generic internal code.
func FromResponse(status int, body []byte) *Error {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil && env.Error.Code != "" {
		return env.Error
	}
	return New(CodeInternal, "unexpected response with status "+strconv.Itoa(status))
}

// Category classifies an error so callers can branch on auth redirects and
// absent-state rendering without string-matching messages.
func Category(e *Error) string {
	if e == nil {
		return ""
	}
	switch e.Code {
	case CodeUnauthorized, CodeForbidden:
		return CategoryAuth
	case CodeNotFound:
		return CategoryNotFound
	case CodeInternal:
		return CategoryTransport
	default:
		return CategoryAPI
	}
}

// IsAuth reports whether the error should trigger re-authentication.
func IsAuth(e *Error) bool { return Category(e) == CategoryAuth }

// IsNotFound reports whether the error denotes an absent resource.
func IsNotFound(e *Error) bool { return Category(e) == CategoryNotFound }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "…"
}
