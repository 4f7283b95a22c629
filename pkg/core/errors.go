package core

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind int

// Error kinds.
const (
	KindUnknown Kind = iota
	KindUnknownVariable
	KindUnknownFormat
	KindUnknownArray
	KindTypeError
	KindDimensionMismatch
	KindIndexOutOfBounds
	KindInvalidStatRequest
	KindFormatError
	KindFormatOverlap
	KindCancelled
	KindInvalidVariable
)

var kindNames = map[Kind]string{
	KindUnknown:            "Error",
	KindUnknownVariable:    "UnknownVariable",
	KindUnknownFormat:      "UnknownFormat",
	KindUnknownArray:       "UnknownArray",
	KindTypeError:          "TypeError",
	KindDimensionMismatch:  "DimensionMismatch",
	KindIndexOutOfBounds:   "IndexOutOfBounds",
	KindInvalidStatRequest: "InvalidStatRequest",
	KindFormatError:        "FormatError",
	KindFormatOverlap:      "FormatOverlap",
	KindCancelled:          "Cancelled",
	KindInvalidVariable:    "InvalidVariable",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinel errors, one per kind. An *Error matches its kind's sentinel
// through errors.Is.
var (
	ErrUnknownVariable    = errors.New("unknown variable")
	ErrUnknownFormat      = errors.New("unknown format")
	ErrUnknownArray       = errors.New("unknown array")
	ErrTypeError          = errors.New("type error")
	ErrDimensionMismatch  = errors.New("dimension mismatch")
	ErrIndexOutOfBounds   = errors.New("index out of bounds")
	ErrInvalidStatRequest = errors.New("invalid statistic request")
	ErrFormatError        = errors.New("format error")
	ErrFormatOverlap      = errors.New("overlapping format ranges")
	ErrCancelled          = errors.New("cancelled")
	ErrInvalidVariable    = errors.New("invalid variable")
)

var sentinels = map[Kind]error{
	KindUnknownVariable:    ErrUnknownVariable,
	KindUnknownFormat:      ErrUnknownFormat,
	KindUnknownArray:       ErrUnknownArray,
	KindTypeError:          ErrTypeError,
	KindDimensionMismatch:  ErrDimensionMismatch,
	KindIndexOutOfBounds:   ErrIndexOutOfBounds,
	KindInvalidStatRequest: ErrInvalidStatRequest,
	KindFormatError:        ErrFormatError,
	KindFormatOverlap:      ErrFormatOverlap,
	KindCancelled:          ErrCancelled,
	KindInvalidVariable:    ErrInvalidVariable,
}

// Error is the error type returned by every core API.
type Error struct {
	Kind Kind
	// Op is the operation that failed (e.g. "row.get", "array.resolve").
	Op string
	// Name is the variable, array or format the error is about.
	Name string
	// Row is the 1-based iteration at which the error occurred, 0 if unknown.
	Row int
	// Msg is an optional human-readable detail.
	Msg string
	// Err is the underlying cause, if any.
	Err error
}

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, op, name, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Name: name, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Kind == KindUnknown && e.Err != nil && e.Op == "" && e.Name == "" && e.Msg == "" {
		// row annotation wrapper around a foreign error
		msg = e.Err.Error()
		if e.Row > 0 {
			msg += fmt.Sprintf(" (row %d)", e.Row)
		}
		return msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Name != "" {
		msg += fmt.Sprintf(" %q", e.Name)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Row > 0 {
		msg += fmt.Sprintf(" (row %d)", e.Row)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
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

// KindOf returns the first known kind in err's chain.
func KindOf(err error) Kind {
	var e *Error
	for err != nil && errors.As(err, &e) {
		if e.Kind != KindUnknown {
			return e.Kind
		}
		err = e.Err
	}
	return KindUnknown
}

// WithRow returns err annotated with the iteration number. An *Error is
// copied with Row set; anything else is wrapped. Existing row numbers win.
func WithRow(err error, row int) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok { //nolint:errorlint // only the outermost error is annotated in place
		if e.Row != 0 {
			return err
		}
		cp := *e
		cp.Row = row
		return &cp
	}
	return &Error{Kind: KindUnknown, Row: row, Err: err}
}

// RowOf returns the row number recorded in err's chain, 0 if none.
func RowOf(err error) int {
	var e *Error
	for err != nil && errors.As(err, &e) {
		if e.Row != 0 {
			return e.Row
		}
		err = e.Err
	}
	return 0
}

// Warning is a non-fatal condition. Operations that return a *Warning have
// completed; callers log it and continue.
type Warning struct {
	Kind Kind
	Msg  string
}

func (w *Warning) Error() string {
	return "warning: " + w.Kind.String() + ": " + w.Msg
}

// Warnf builds a *Warning.
func Warnf(kind Kind, format string, args ...any) *Warning {
	return &Warning{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsWarning reports whether err is only a warning.
func IsWarning(err error) bool {
	var w *Warning
	return errors.As(err, &w)
}
