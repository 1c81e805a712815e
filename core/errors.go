package core

import (
	"errors"
	"fmt"
)

// Kind categorizes runtime failures so callers can branch on the class of
// error without inspecting messages.
type Kind string

const (
	// KindValidation marks schema failures (config, builder, action input).
	KindValidation Kind = "Validation"
	// KindTimeout marks bounded operations whose timer fired first. The
	// underlying work may still have side-effected.
	KindTimeout Kind = "Timeout"
	// KindNotFound marks lookups of unknown actions, effects or agents.
	KindNotFound Kind = "NotFound"
	// KindDisabled marks features switched off through their options.
	KindDisabled Kind = "Disabled"
	// KindModeNotAllowed marks dispatch requests for a mode the action does not permit.
	KindModeNotAllowed Kind = "ModeNotAllowed"
	// KindUnknown wraps unexpected errors and recovered panics.
	KindUnknown Kind = "Unknown"
)

// Sentinel values usable with errors.Is. Matching is done by Kind only.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrTimeout        = &Error{Kind: KindTimeout}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrDisabled       = &Error{Kind: KindDisabled}
	ErrModeNotAllowed = &Error{Kind: KindModeNotAllowed}
	ErrUnknown        = &Error{Kind: KindUnknown}
)

// Error is the typed failure used across the runtime.
type Error struct {
	Kind    Kind   `json:"kind"`
	Op      string `json:"op,omitempty"`
	Message string `json:"message,omitempty"`
	Cause   error  `json:"-"`
}

// NewError builds an Error of the given kind.
func NewError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error of the given kind around cause.
func WrapError(kind Kind, op string, cause error) *Error {
	e := &Error{Kind: kind, Op: op, Cause: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	switch {
	case e.Op != "" && msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	default:
		return string(e.Kind)
	}
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown
// when err carries no typed failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// AsUnknown keeps typed errors as they are and wraps anything else as KindUnknown.
func AsUnknown(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return WrapError(KindUnknown, op, err)
}

// PanicError converts a recovered panic value into a KindUnknown error.
func PanicError(op string, r any) *Error {
	if err, ok := r.(error); ok {
		return &Error{Kind: KindUnknown, Op: op, Message: "panic: " + err.Error(), Cause: err}
	}
	return &Error{Kind: KindUnknown, Op: op, Message: fmt.Sprintf("panic: %v", r)}
}
