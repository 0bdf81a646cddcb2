// Package errors attaches a classification Code to errors while keeping the
// stack traces of github.com/pkg/errors. Callers branch with Is(err, Code).
package errors

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// Code classifies an error. It is itself an error, so it can be returned or
// matched directly.
type Code string

func (c Code) Error() string { return string(c) }

// Error pairs a Code with the error it classifies.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.Code
}

func New(code Code, message string) error {
	return &Error{Code: code, Err: errors.New(message)}
}

func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Err: errors.Errorf(format, args...)}
}

// Wrap returns nil for a nil err.
func Wrap(code Code, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: errors.Wrap(err, message)}
}

// Wrapf returns nil for a nil err.
func Wrapf(code Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: errors.Wrapf(err, format, args...)}
}

// PureNew is an unclassified error without a stack.
func PureNew(message string) error {
	return stderrors.New(message)
}

// CodeOf returns the outermost Code in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code, true
	}
	var c Code
	if stderrors.As(err, &c) {
		return c, true
	}
	return "", false
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As returning the match: As[*MyErr](err).
func As[T error](err error) (*T, bool) {
	var target T
	if stderrors.As(err, &target) {
		return &target, true
	}
	return nil, false
}
