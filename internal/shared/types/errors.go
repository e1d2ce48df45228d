package types

import (
	"errors"
	"fmt"
)

// Kind classifies registry errors so callers can act on them
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindRemoved        Kind = "removed"
	KindConflict       Kind = "conflict"
	KindInvalid        Kind = "invalid"
	KindCorrupt        Kind = "corrupt"
	KindSchemaConflict Kind = "schema_conflict"
	KindHasDependents  Kind = "has_dependents"
	KindParseError     Kind = "parse_error"
)

// Sentinels for errors.Is; matching is by Kind only
var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrRemoved        = &Error{Kind: KindRemoved}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrInvalid        = &Error{Kind: KindInvalid}
	ErrCorrupt        = &Error{Kind: KindCorrupt}
	ErrSchemaConflict = &Error{Kind: KindSchemaConflict}
	ErrHasDependents  = &Error{Kind: KindHasDependents}
	ErrParse          = &Error{Kind: KindParseError}
)

// Error is the typed error returned by every registry operation
type Error struct {
	Kind       Kind
	ModuleID   string
	Message    string
	Violations []Violation
	cause      error
}

// NewError creates a typed error
func NewError(kind Kind, moduleID, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, ModuleID: moduleID, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a typed error around a cause
func WrapError(kind Kind, moduleID string, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, ModuleID: moduleID, Message: fmt.Sprintf(format, args...), cause: cause}
}

// InvalidError creates an invalid error carrying the violation list
func InvalidError(moduleID string, violations []Violation) *Error {
	return &Error{
		Kind:       KindInvalid,
		ModuleID:   moduleID,
		Message:    fmt.Sprintf("module failed validation with %d violation(s)", len(violations)),
		Violations: violations,
	}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.ModuleID != "" {
		msg = fmt.Sprintf("%s: %s", e.ModuleID, msg)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the kind of a typed error, or "" for anything else
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError returns the typed error inside err, if any
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
