package apperror

import (
	"errors"
	"net/http"
)

type Code string

const (
	BadRequest   Code = "BAD_REQUEST"
	NotFound     Code = "NOT_FOUND"
	Internal     Code = "INTERNAL"
	Conflict     Code = "CONFLICT"
	Unauthorized Code = "UNAUTHORIZED"

	// Job failure kinds. They never reach an HTTP response directly; they are
	// recorded on the failed job next to its message.
	Resolution Code = "RESOLUTION"
	Fetch      Code = "FETCH"
	IO         Code = "IO"
	Cancelled  Code = "CANCELLED"
)

type AppError struct {
	code    Code
	message string
	err     error
}

func New(code Code, message string) *AppError {
	return &AppError{code: code, message: message}
}

// Wrap attaches a code and a user-facing message to err. The cause stays
// reachable through errors.Is / errors.As.
func Wrap(code Code, err error, message string) *AppError {
	return &AppError{code: code, message: message, err: err}
}

func (e *AppError) Error() string   { return e.message }
func (e *AppError) Code() Code      { return e.code }
func (e *AppError) Message() string { return e.message }
func (e *AppError) Unwrap() error   { return e.err }

func (e *AppError) HTTPStatus() int {
	switch e.code {
	case BadRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// As returns the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// CodeOf returns the code of the first *AppError in err's chain, or Internal.
func CodeOf(err error) Code {
	if ae, ok := As(err); ok {
		return ae.code
	}
	return Internal
}
