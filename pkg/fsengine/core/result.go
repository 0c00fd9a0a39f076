package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrorCode is a bitset describing the outcome of an operation. Several
// conditions can co-occur (Success|InProgress reports a partial success),
// so callers test with Has rather than equality.
type ErrorCode uint16

const (
	Success ErrorCode = 1 << iota
	Unauthorized
	NotFound
	AlreadyExists
	InUse
	Generic
	InProgress
	InvalidName
	Cancelled
)

// failureMask covers every bit that makes a result a failure.
const failureMask = Unauthorized | NotFound | AlreadyExists | InUse | Generic | InvalidName | Cancelled

var codeNames = []struct {
	code ErrorCode
	name string
}{
	{Success, "success"},
	{Unauthorized, "unauthorized"},
	{NotFound, "not-found"},
	{AlreadyExists, "already-exists"},
	{InUse, "in-use"},
	{Generic, "generic"},
	{InProgress, "in-progress"},
	{InvalidName, "invalid-name"},
	{Cancelled, "cancelled"},
}

// Has reports whether every bit of flag is set in c.
func (c ErrorCode) Has(flag ErrorCode) bool {
	return flag != 0 && c&flag == flag
}

// Succeeded reports whether c carries Success and no failure bit.
func (c ErrorCode) Succeeded() bool {
	return c.Has(Success) && c&failureMask == 0
}

func (c ErrorCode) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	for _, n := range codeNames {
		if c.Has(n.code) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Category is the single user-facing message category for a terminal code.
type Category string

const (
	CategoryNone          Category = ""
	CategoryAccessDenied  Category = "access-denied"
	CategoryNotFound      Category = "not-found"
	CategoryNameCollision Category = "name-collision"
	CategoryInUse         Category = "in-use"
	CategoryInvalidName   Category = "invalid-name"
	CategoryCancelled     Category = "cancelled"
	CategoryGeneric       Category = "generic"
)

// CategoryOf maps a code to exactly one message category. Successful codes,
// including partial successes, map to CategoryNone.
func CategoryOf(c ErrorCode) Category {
	switch {
	case c.Succeeded():
		return CategoryNone
	case c.Has(Cancelled):
		return CategoryCancelled
	case c.Has(Unauthorized):
		return CategoryAccessDenied
	case c.Has(NotFound):
		return CategoryNotFound
	case c.Has(AlreadyExists):
		return CategoryNameCollision
	case c.Has(InUse):
		return CategoryInUse
	case c.Has(InvalidName):
		return CategoryInvalidName
	default:
		return CategoryGeneric
	}
}

// Classify converts an error from a storage API into an ErrorCode.
// A nil error is Success.
func Classify(err error) ErrorCode {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Cancelled
	case errors.Is(err, fs.ErrPermission):
		return Unauthorized
	case errors.Is(err, fs.ErrNotExist):
		return NotFound
	case errors.Is(err, fs.ErrExist):
		return AlreadyExists
	case isInUse(err):
		return InUse
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return Generic
}

// CodedError attaches an explicit code to an error that Classify could not
// otherwise recognise.
type CodedError struct {
	Code ErrorCode
	Err  error
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

// WithCode wraps err so that Classify reports code.
func WithCode(code ErrorCode, err error) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Err: err}
}

// Result wraps the outcome of an operation: a code, a value present only on
// success, and the underlying cause on failure.
type Result[T any] struct {
	code  ErrorCode
	value T
	err   error
}

// Ok returns a successful result.
func Ok[T any](value T) Result[T] {
	return Result[T]{code: Success, value: value}
}

// Partial returns a success that also carries InProgress: the operation did
// its main work but left something undone.
func Partial[T any](value T, cause error) Result[T] {
	return Result[T]{code: Success | InProgress, value: value, err: cause}
}

// Fail returns a failed result. A zero or Success code is coerced to Generic.
func Fail[T any](code ErrorCode, err error) Result[T] {
	code &^= Success
	if code&failureMask == 0 {
		code |= Generic
	}
	if err == nil {
		err = errors.New(code.String())
	}
	return Result[T]{code: code, err: err}
}

// FromError classifies err; a nil error produces Ok(value).
func FromError[T any](value T, err error) Result[T] {
	if err == nil {
		return Ok(value)
	}
	return Fail[T](Classify(err), err)
}

// Convert carries a failed result over to another value type.
func Convert[T, U any](r Result[T]) Result[U] {
	return Result[U]{code: r.code, err: r.err}
}

// Succeeded reports whether the result is a success (possibly partial).
func (r Result[T]) Succeeded() bool { return r.code.Succeeded() }

// Code returns the result's code.
func (r Result[T]) Code() ErrorCode { return r.code }

// Err returns the cause of a failure, nil on plain success.
func (r Result[T]) Err() error { return r.err }

// Value returns the carried value and whether it is present.
func (r Result[T]) Value() (T, bool) {
	if !r.Succeeded() {
		var zero T
		return zero, false
	}
	return r.value, true
}

// MustValue returns the value or the zero value on failure.
func (r Result[T]) MustValue() T {
	v, _ := r.Value()
	return v
}

func (r Result[T]) String() string {
	if r.err != nil {
		return fmt.Sprintf("%s: %v", r.code, r.err)
	}
	return r.code.String()
}
