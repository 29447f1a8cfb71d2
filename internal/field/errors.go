package field

import (
	"errors"
	"fmt"
)

// Domain errors for the field package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, field.ErrValidation) {
//	    // bad input, prior value retained
//	}
var (
	// ErrValidation is returned when a value fails its field's limits.
	ErrValidation = errors.New("field: validation failed")

	// ErrLimitSyntax is returned when limit text cannot be parsed.
	ErrLimitSyntax = errors.New("field: limit syntax error")

	// ErrInvalidType is returned for an unknown field type name or tag.
	ErrInvalidType = errors.New("field: invalid type")

	// ErrInvalidAccess is returned for an unknown access mode.
	ErrInvalidAccess = errors.New("field: invalid access")

	// ErrInvalidDefinition is returned when a field definition is malformed.
	ErrInvalidDefinition = errors.New("field: invalid definition")

	// ErrDecodingFailed is returned when a persisted value cannot be decoded.
	ErrDecodingFailed = errors.New("field: decoding failed")

	// ErrTypeMismatch is returned when a decoded value does not match the
	// type of the field it is being restored into.
	ErrTypeMismatch = errors.New("field: type mismatch")

	// ErrTriggerExpression is returned when a trigger expression fails to
	// compile or evaluate.
	ErrTriggerExpression = errors.New("field: trigger expression error")

	// ErrInvalidTrigger is returned for a malformed trigger configuration.
	ErrInvalidTrigger = errors.New("field: invalid trigger")

	// ErrNotSteppable is returned when stepping a field whose limit has no
	// notion of a next value.
	ErrNotSteppable = errors.New("field: not steppable")
)

// ValidationError describes a rejected write. It carries everything a user
// needs to see: which field, what was written and what the field accepts.
type ValidationError struct {
	Field  string // field name, may be empty for a store-less value
	Text   string // offending text (or formatted native value)
	Limit  string // limit description
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	name := e.Field
	if name == "" {
		name = "(unnamed)"
	}
	if e.Reason != "" {
		return fmt.Sprintf("field %s: value %q rejected by limit %q: %s", name, e.Text, e.Limit, e.Reason)
	}
	return fmt.Sprintf("field %s: value %q rejected by limit %q", name, e.Text, e.Limit)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// invalid builds a ValidationError for a limit. The field name is filled in
// by the store.
func invalid(l Limit, text, reason string) *ValidationError {
	return &ValidationError{
		Text:   text,
		Limit:  l.Describe(),
		Reason: reason,
	}
}

// withField returns err with the field name attached if it is a
// ValidationError.
func withField(err error, name string) error {
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Field == "" {
		cpy := *ve
		cpy.Field = name
		return &cpy
	}
	return err
}

// programming panics for conditions no valid input can produce.
func programming(format string, args ...any) {
	panic(fmt.Sprintf("field: programming error: "+format, args...))
}
