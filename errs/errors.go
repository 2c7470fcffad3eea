package errs

import (
	"errors"
	"fmt"
)

// Code classifies an Error.
type Code string

const (
	CodeConfiguration        Code = "CONFIGURATION"
	CodeStorage              Code = "STORAGE"
	CodeEmbeddingUnavailable Code = "EMBEDDING_UNAVAILABLE"
	CodeDimensionMismatch    Code = "DIMENSION_MISMATCH"
)

// Error is a coded error carrying the failing operation and an optional cause.
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := string(e.Code)
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return prefix
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, ErrStorage) holds for every storage failure.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Message == "" && t.Err == nil
}

// Sentinels usable with errors.Is.
var (
	ErrConfiguration        = &Error{Code: CodeConfiguration}
	ErrStorage              = &Error{Code: CodeStorage}
	ErrEmbeddingUnavailable = &Error{Code: CodeEmbeddingUnavailable}
	ErrDimensionMismatch    = &Error{Code: CodeDimensionMismatch}
)

// New creates an Error without a cause.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap creates an Error around err. It returns nil when err is nil.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Err: err}
}

// Configuration reports an unsupported setting or malformed query.
func Configuration(op, format string, args ...any) *Error {
	return New(CodeConfiguration, op, fmt.Sprintf(format, args...))
}

// Storage wraps a relational or vector index failure.
func Storage(op string, err error) error { return Wrap(CodeStorage, op, err) }

// EmbeddingUnavailable wraps an embedding client failure or malformed vector.
func EmbeddingUnavailable(op string, err error) error {
	return Wrap(CodeEmbeddingUnavailable, op, err)
}

// DimensionMismatch reports vectors of unequal length.
func DimensionMismatch(op string, got, want int) *Error {
	return New(CodeDimensionMismatch, op, fmt.Sprintf("dimension %d does not match %d", got, want))
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
