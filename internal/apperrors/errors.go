// Package apperrors defines the error taxonomy surfaced by the core and the
// HTTP status each kind maps to.
package apperrors

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies an application error.
type Kind int

const (
	// KindInternal is any invariant violation not covered by another kind.
	KindInternal Kind = iota
	// KindConfig is an invalid startup input. Fatal.
	KindConfig
	// KindBus is a pub/sub transport failure.
	KindBus
	// KindDB is a persistence failure.
	KindDB
	// KindSerialization is malformed JSON in a request or frame.
	KindSerialization
	// KindValidation is a rejected request payload.
	KindValidation
	// KindInvalidChannel is a malformed channel name.
	KindInvalidChannel
	// KindAuth is an authentication or authorization failure.
	KindAuth
)

// Error is an application error with a kind and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %v", e.Msg, e.Err)
		}
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an error of the given kind wrapping a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Config returns a configuration error.
func Config(msg string) *Error { return New(KindConfig, msg) }

// Bus returns a pub/sub transport error.
func Bus(err error) *Error { return Wrap(KindBus, "bus error", err) }

// DB returns a persistence error.
func DB(err error) *Error { return Wrap(KindDB, "database error", err) }

// Serialization returns a malformed-payload error.
func Serialization(err error) *Error { return Wrap(KindSerialization, "invalid payload", err) }

// Validation returns a rejected-input error.
func Validation(msg string) *Error { return New(KindValidation, msg) }

// InvalidChannel returns a malformed-channel-name error.
func InvalidChannel(name string) *Error {
	return New(KindInvalidChannel, "invalid channel name: "+name)
}

// Auth returns an authentication error.
func Auth(msg string) *Error { return New(KindAuth, msg) }

// Internal returns an internal error wrapping a cause.
func Internal(err error) *Error { return Wrap(KindInternal, "internal error", err) }

// KindOf returns the kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the HTTP status code it should produce.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindBus:
		return fiber.StatusServiceUnavailable
	case KindSerialization, KindValidation, KindInvalidChannel:
		return fiber.StatusBadRequest
	case KindAuth:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}
