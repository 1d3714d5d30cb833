// Package apperr defines the error taxonomy shared by the orchestrator and the HTTP layer.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindUpstream
	KindPartial
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "AuthenticationFailure"
	case KindAuthorization:
		return "AuthorizationFailure"
	case KindNotFound:
		return "NotFound"
	case KindUpstream:
		return "UpstreamUnavailable"
	case KindPartial:
		return "PartialWorkflowInconsistency"
	case KindInvalid:
		return "InvalidRequest"
	default:
		return "Internal"
	}
}

// Error is a classified failure. Message is safe to show to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	// Status overrides the HTTP status derived from Kind when non-zero.
	Status int
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Unauthenticated(msg string) error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

// Forbidden never carries detail beyond the generic denial.
func Forbidden() error {
	return &Error{Kind: KindAuthorization, Message: "Access denied"}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Invalid(msg string) error {
	return &Error{Kind: KindInvalid, Message: msg}
}

// StatusCoder is implemented by gateway errors that carry the upstream HTTP status.
type StatusCoder interface {
	HTTPStatusCode() int
}

// Upstream wraps a gateway failure. The upstream message is kept as-is.
// A 4xx that describes the caller's request keeps its status.
func Upstream(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Kind == KindUpstream {
		return err
	}
	out := &Error{Kind: KindUpstream, Err: err}
	var sc StatusCoder
	if errors.As(err, &sc) {
		out.Status = callerStatus(sc.HTTPStatusCode())
	}
	return out
}

// callerStatus returns code when it should reach the caller unchanged.
// Credential, timeout and rate limit rejections concern our own upstream
// account, so they stay gateway failures.
func callerStatus(code int) int {
	if code < 400 || code >= 500 {
		return 0
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusProxyAuthRequired,
		http.StatusRequestTimeout, http.StatusTooManyRequests:
		return 0
	}
	return code
}

// Partial reports a multi-step flow that failed after an earlier step committed.
func Partial(msg string, err error) error {
	return &Error{Kind: KindPartial, Message: msg, Err: err}
}

// KindOf returns the classification of err, or KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	switch KindOf(err) {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalid:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be sent back to a caller.
func PublicMessage(err error) string {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusText(http.StatusInternalServerError)
	}
	switch ae.Kind {
	case KindAuthorization:
		return "Access denied"
	case KindInternal:
		return http.StatusText(http.StatusInternalServerError)
	}
	return ae.Error()
}
