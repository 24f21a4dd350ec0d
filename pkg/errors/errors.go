// Package errors provides coded diagnostics for flowsketch.
//
// The interpreter never fails a batch: a malformed line becomes a coded
// diagnostic and execution moves on to the next line. The same codes are
// used by the CLI, the REPL and the HTTP API, so one problem is reported
// in the same words everywhere.
//
//	err := errors.New(errors.ErrCodeArgCount, "move expects 3 arguments, got %d", n)
//	errors.Is(err, errors.ErrCodeArgCount) // true
//
// An *Error also matches another *Error with the same code under the
// standard library's errors.Is, so coded sentinels work too:
//
//	var errEmpty = errors.New(errors.ErrCodeNotFound, "clipboard is empty")
//	stderrors.Is(err, errEmpty)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a machine-readable diagnostic code.
type Code string

const (
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeArgCount      Code = "INVALID_ARG_COUNT"
	ErrCodeInvalidNumber Code = "INVALID_NUMBER"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	ErrCodeDuplicateNode Code = "DUPLICATE_NODE"
	ErrCodeDuplicateEdge Code = "DUPLICATE_EDGE"

	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeTooFewNodes     Code = "TOO_FEW_NODES"
	ErrCodeSessionNotFound Code = "SESSION_NOT_FOUND"

	ErrCodeDanglingEdge  Code = "DANGLING_EDGE"
	ErrCodeUnknownLayout Code = "UNKNOWN_LAYOUT"
	ErrCodeLayoutFailed  Code = "LAYOUT_FAILED"

	ErrCodeClipboard   Code = "CLIPBOARD_ERROR"
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Category groups codes by who has to act on them.
type Category int

const (
	// CategoryInput means the command or request was malformed.
	CategoryInput Category = iota
	// CategoryState means the input was well-formed but does not fit the
	// current diagram (missing node, duplicate edge).
	CategoryState
	// CategoryCollaborator means a layout engine, clipboard or other
	// collaborator failed.
	CategoryCollaborator
	// CategoryInternal covers everything else.
	CategoryInternal
)

// Category classifies the code.
func (c Code) Category() Category {
	switch {
	case strings.HasPrefix(string(c), "INVALID_"):
		return CategoryInput
	case strings.HasPrefix(string(c), "DUPLICATE_"), strings.HasSuffix(string(c), "NOT_FOUND"),
		c == ErrCodeTooFewNodes, c == ErrCodeDanglingEdge:
		return CategoryState
	case c == ErrCodeClipboard, c == ErrCodeLayoutFailed, c == ErrCodeUnknownLayout, c == ErrCodeUnsupported:
		return CategoryCollaborator
	default:
		return CategoryInternal
	}
}

// Error is a diagnostic with a code and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// New creates a diagnostic.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a diagnostic caused by err.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	e := New(code, format, args...)
	e.Cause = cause
	return e
}

// Is reports whether err, or anything it wraps, is an *Error with code.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode returns the code of the outermost *Error in err's chain, or ""
// when there is none.
func GetCode(err error) Code {
	if e, ok := as(err); ok {
		return e.Code
	}
	return ""
}

// UserMessage returns the message without the code prefix. Uncoded errors
// are returned as-is.
func UserMessage(err error) string {
	if e, ok := as(err); ok {
		return e.Message
	}
	return err.Error()
}

func as(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
