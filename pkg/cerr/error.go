package cerr

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/talentpipe/talentpipe/pkg/clog"
)

// Detail points the caller at the offending field so the API layer can
// build a precise user-facing message.
type Detail struct {
	Field   string
	Value   string
	Message string
}

type Error struct {
	Code    Code
	Msg     string
	Err     error // underlying cause, kept for logs
	Stack   string
	Details []Detail
}

func NewError(code Code, msg string, underlying error) *Error {
	err := &Error{
		Code: code,
		Msg:  msg,
		Err:  underlying,
	}
	if code.LogLevel() == clog.LevelError {
		stack := make([]byte, 2048)
		n := runtime.Stack(stack, false)
		err.Stack = string(stack[:n])
	}
	return err
}

// NewFieldError builds an error carrying the offending field and value.
func NewFieldError(code Code, msg, field string, value any) *Error {
	err := NewError(code, msg, nil)
	return err.WithField(field, value)
}

func (e *Error) WithField(field string, value any) *Error {
	e.Details = append(e.Details, Detail{
		Field: field,
		Value: fmt.Sprintf("%v", value),
	})
	return e
}

func (e *Error) WithDetail(d Detail) *Error {
	e.Details = append(e.Details, d)
	return e
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code.String(), e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code.String(), e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code Code) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code == code
	}
	return false
}

// CodeOf extracts the code from err, mapping context errors onto Canceled
// and Timeout. Unclassified errors report Unknown.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	if errors.Is(err, context.Canceled) {
		return Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Unknown
}

// FromContext converts a context error into a classified error. Store calls
// carry deadlines; a deadline hit surfaces as Timeout, never as a crash.
func FromContext(ctx context.Context, op string) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return NewError(Timeout, fmt.Sprintf("%s timed out", op), ctx.Err())
	case errors.Is(ctx.Err(), context.Canceled):
		return NewError(Canceled, fmt.Sprintf("%s canceled", op), ctx.Err())
	default:
		return nil
	}
}
