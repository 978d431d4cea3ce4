package schema

import (
	"errors"
	"fmt"
)

// ErrUnknownCollection is returned by the registry for collection names
// that have no declared schema.
var ErrUnknownCollection = errors.New("casher: unknown collection")

// Kind classifies a validation failure.
type Kind string

const (
	UnknownField        Kind = "UnknownField"
	MissingField        Kind = "MissingField"
	TypeMismatch        Kind = "TypeMismatch"
	ConstraintViolation Kind = "ConstraintViolation"
)

// ValidationError reports a single payload violation with the offending
// field name attached.
type ValidationError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: field %q", e.Kind, e.Field)
	}
	return fmt.Sprintf("%s: field %q: %s", e.Kind, e.Field, e.Reason)
}

func unknownField(field string) error {
	return &ValidationError{Kind: UnknownField, Field: field}
}

func missingField(field string) error {
	return &ValidationError{Kind: MissingField, Field: field}
}

func typeMismatch(field, reason string) error {
	return &ValidationError{Kind: TypeMismatch, Field: field, Reason: reason}
}

func constraintViolation(field, reason string) error {
	return &ValidationError{Kind: ConstraintViolation, Field: field, Reason: reason}
}
