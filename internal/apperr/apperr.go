// Package apperr defines the error taxonomy shared by the domain packages and
// the HTTP layer.
//
// Domain packages declare sentinel values with New and return them directly
// (or wrapped with fmt.Errorf and %w). The HTTP layer calls KindOf and
// MetadataFor to pick a status code and a public message, so driver errors are
// never rendered verbatim.
//
// # Usage
//
//	var ErrBookNotFound = apperr.New(apperr.NotFound, "book not found")
//
//	if errors.Is(err, ErrBookNotFound) { ... }
//	status := apperr.MetadataFor(apperr.KindOf(err)).HTTPStatus
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	Validation   Kind = "VALIDATION_ERROR"
	Conflict     Kind = "CONFLICT"
	Unauthorized Kind = "UNAUTHORIZED"
	Forbidden    Kind = "FORBIDDEN"
	NotFound     Kind = "NOT_FOUND"
	RateLimited  Kind = "RATE_LIMITED"
	Unavailable  Kind = "UNAVAILABLE"
	Internal     Kind = "INTERNAL_ERROR"
)

// Metadata describes how a Kind is rendered to callers.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// ExposeMessage allows the error's own message to reach the client.
	ExposeMessage bool
}

// Conflict maps to 400: a lifecycle precondition failure is a bad request
// from the caller's point of view.
var metadataByKind = map[Kind]Metadata{
	Validation: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "validation failed",
		ExposeMessage: true,
	},
	Conflict: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "conflict",
		ExposeMessage: true,
	},
	Unauthorized: {
		HTTPStatus:    http.StatusUnauthorized,
		PublicMessage: "authentication required",
		ExposeMessage: true,
	},
	Forbidden: {
		HTTPStatus:    http.StatusForbidden,
		PublicMessage: "insufficient permissions",
		ExposeMessage: true,
	},
	NotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
		ExposeMessage: true,
	},
	RateLimited: {
		HTTPStatus:    http.StatusTooManyRequests,
		PublicMessage: "too many requests",
		ExposeMessage: true,
	},
	Unavailable: {
		HTTPStatus:    http.StatusServiceUnavailable,
		Retryable:     true,
		PublicMessage: "service temporarily unavailable, retry later",
	},
	Internal: {
		HTTPStatus:    http.StatusInternalServerError,
		PublicMessage: "internal server error",
	},
}

// MetadataFor returns rendering metadata, falling back to Internal for
// unknown kinds.
func MetadataFor(kind Kind) Metadata {
	if meta, ok := metadataByKind[kind]; ok {
		return meta
	}
	return metadataByKind[Internal]
}

// Error is a classified error with an optional wrapped cause.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Wrap classifies cause under kind. The cause stays reachable through
// errors.Is / errors.As but is not part of the public message.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

func (e *Error) Kind() Kind {
	if e == nil {
		return Internal
	}
	return e.kind
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind()
	}
	return Internal
}

// PublicMessage returns the text safe to show a client for err.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return metadataByKind[Internal].PublicMessage
	}
	meta := MetadataFor(appErr.Kind())
	if meta.ExposeMessage && appErr.Message() != "" {
		return appErr.Message()
	}
	return meta.PublicMessage
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
