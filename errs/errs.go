// Package errs classifies pipeline failures so callers can react to the kind of failure
// rather than the message.
package errs

import (
	"errors"
	"net/http"
)

// Kind is the machine usable class of a pipeline error
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindDataInsufficiency
	KindSchema
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindDataInsufficiency:
		return "data_insufficiency"
	case KindSchema:
		return "schema"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind onto the status code the query surface responds with
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindDataInsufficiency:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. It is usually declared as a package level sentinel and wrapped
// with fmt.Errorf to add context.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New returns a classified sentinel error
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies an existing error
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ", " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the outermost classified error in the chain. Unclassified errors
// are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether any error in the chain carries the given kind
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
