package cqlerrors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	KindTypeMismatch
	KindRange
	KindMissingParameter
	KindArity
	KindUnsupportedOperation
	KindPrepare
	KindDispatch
	KindSchemaChanged
)

func (k Kind) String() string {
	switch k {
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindRange:
		return "RangeError"
	case KindMissingParameter:
		return "MissingParameter"
	case KindArity:
		return "ArityError"
	case KindUnsupportedOperation:
		return "UnsupportedOperation"
	case KindPrepare:
		return "PrepareError"
	case KindDispatch:
		return "DispatchError"
	case KindSchemaChanged:
		return "SchemaChanged"
	default:
		return "Unknown"
	}
}

// Sentinels for use with errors.Is. Only the kind is compared.
var (
	ErrTypeMismatch         = &Error{Kind: KindTypeMismatch}
	ErrRange                = &Error{Kind: KindRange}
	ErrMissingParameter     = &Error{Kind: KindMissingParameter}
	ErrArity                = &Error{Kind: KindArity}
	ErrUnsupportedOperation = &Error{Kind: KindUnsupportedOperation}
	ErrPrepare              = &Error{Kind: KindPrepare}
	ErrDispatch             = &Error{Kind: KindDispatch}
	ErrSchemaChanged        = &Error{Kind: KindSchemaChanged}
)

// NoPosition marks an Error that is not attributable to a bind position.
const NoPosition = -1

// Error is the error type surfaced to callers of the executor. Column and
// Position identify the offending value whenever the failure happened while
// binding or decoding rather than on the server.
type Error struct {
	Kind     Kind
	Msg      string
	Column   string
	Position int
	// Code is the server error code for dispatch failures, 0 otherwise.
	Code  int
	cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Column != "" || e.Position >= 0 {
		b.WriteString(" [")
		if e.Column != "" {
			b.WriteString("column ")
			b.WriteString(e.Column)
		}
		if e.Position >= 0 {
			if e.Column != "" {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "position %d", e.Position)
		}
		b.WriteString("]")
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithColumn returns a copy of e attributed to the given column. An existing
// attribution is kept, so the innermost (most precise) location wins.
func (e *Error) WithColumn(name string, position int) *Error {
	cp := *e
	if cp.Column == "" {
		cp.Column = name
	}
	if cp.Position == NoPosition {
		cp.Position = position
	}
	return &cp
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Position: NoPosition}
}

func TypeMismatchf(format string, args ...interface{}) *Error {
	return newf(KindTypeMismatch, format, args...)
}

func Rangef(format string, args ...interface{}) *Error {
	return newf(KindRange, format, args...)
}

func UnsupportedOperationf(format string, args ...interface{}) *Error {
	return newf(KindUnsupportedOperation, format, args...)
}

func MissingParameter(column string, position int) *Error {
	return &Error{Kind: KindMissingParameter, Msg: "no value supplied", Column: column, Position: position}
}

func Arity(expected, provided int) *Error {
	return newf(KindArity, "expected %d values, got %d", expected, provided)
}

func Prepare(cause error, code int) *Error {
	return &Error{Kind: KindPrepare, cause: cause, Code: code, Position: NoPosition}
}

func Dispatch(cause error, code int) *Error {
	return &Error{Kind: KindDispatch, cause: cause, Code: code, Position: NoPosition}
}

func SchemaChangedf(format string, args ...interface{}) *Error {
	return newf(KindSchemaChanged, format, args...)
}

// KindOf returns the kind of the first *Error found in err's chain, looking
// through github.com/pkg/errors wrappers as well.
func KindOf(err error) Kind {
	if e := As(err); e != nil {
		return e.Kind
	}
	return KindUnknown
}

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Attribute annotates the *Error found in err's chain with a column. Errors
// that are not *Error are returned unchanged.
func Attribute(err error, column string, position int) error {
	if e := As(err); e != nil {
		return e.WithColumn(column, position)
	}
	return err
}
