// Package schema is the boundary between untyped request payloads and the
// typed records the repository stores. Every collection declares its fields
// here; payloads are validated (and stored documents re-checked) against
// that declaration so the schemaless store never dictates the contract.
package schema

import (
	"fmt"
	"strconv"
	"time"
)

// FieldType enumerates the value types a collection field may declare.
type FieldType string

const (
	String    FieldType = "string"
	Number    FieldType = "number"
	Boolean   FieldType = "boolean"
	Timestamp FieldType = "timestamp"
)

// FieldSpec declares one named field of a collection.
type FieldSpec struct {
	Type     FieldType
	Required bool

	// Default, when non-nil, marks the field optional-with-default: reads
	// of legacy documents missing the field inject this value instead of
	// failing.
	Default any

	// String constraints.
	MinLen int
	MaxLen int // 0 = unbounded

	// Numeric constraints.
	Min *float64
	Max *float64

	// Enum restricts string fields to a member of this set when non-empty.
	Enum []string
}

// Schema declares the full field set of one collection.
type Schema struct {
	Collection string
	Fields     map[string]FieldSpec
}

// Record is a validated payload: field name to typed value
// (string, float64, bool or time.Time).
type Record map[string]any

// Validate checks a full payload against the schema: unknown fields,
// missing required fields, types (with unambiguous coercion) and
// constraints. It is a pure function of payload and schema.
func (s *Schema) Validate(payload map[string]any) (Record, error) {
	rec, err := s.check(payload)
	if err != nil {
		return nil, err
	}
	for name, spec := range s.Fields {
		if _, ok := rec[name]; ok {
			continue
		}
		if spec.Required {
			return nil, missingField(name)
		}
	}
	return rec, nil
}

// ValidatePartial checks a patch payload: same field-level rules as
// Validate but absent fields are fine. An empty patch is rejected.
func (s *Schema) ValidatePartial(payload map[string]any) (Record, error) {
	if len(payload) == 0 {
		return nil, missingField("patch")
	}
	return s.check(payload)
}

func (s *Schema) check(payload map[string]any) (Record, error) {
	rec := make(Record, len(payload))
	for name, raw := range payload {
		spec, ok := s.Fields[name]
		if !ok {
			return nil, unknownField(name)
		}
		v, err := coerce(name, spec.Type, raw)
		if err != nil {
			return nil, err
		}
		if err := spec.constrain(name, v); err != nil {
			return nil, err
		}
		rec[name] = v
	}
	return rec, nil
}

// coerce converts a decoded JSON value to the declared field type.
// Coercion happens only when unambiguous: numeric strings become numbers,
// RFC 3339 strings become timestamps. Everything else is a mismatch.
func coerce(name string, t FieldType, raw any) (any, error) {
	switch t {
	case String:
		v, ok := raw.(string)
		if !ok {
			return nil, typeMismatch(name, fmt.Sprintf("expected string, got %T", raw))
		}
		return v, nil
	case Number:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, typeMismatch(name, fmt.Sprintf("cannot parse %q as number", v))
			}
			return f, nil
		default:
			return nil, typeMismatch(name, fmt.Sprintf("expected number, got %T", raw))
		}
	case Boolean:
		v, ok := raw.(bool)
		if !ok {
			return nil, typeMismatch(name, fmt.Sprintf("expected boolean, got %T", raw))
		}
		return v, nil
	case Timestamp:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, typeMismatch(name, fmt.Sprintf("cannot parse %q as timestamp", v))
			}
			return ts.UTC(), nil
		default:
			return nil, typeMismatch(name, fmt.Sprintf("expected timestamp, got %T", raw))
		}
	default:
		return nil, typeMismatch(name, fmt.Sprintf("undeclared field type %q", t))
	}
}

func (fs FieldSpec) constrain(name string, v any) error {
	switch fs.Type {
	case String:
		s := v.(string)
		if fs.MinLen > 0 && len(s) < fs.MinLen {
			return constraintViolation(name, fmt.Sprintf("length %d below minimum %d", len(s), fs.MinLen))
		}
		if fs.MaxLen > 0 && len(s) > fs.MaxLen {
			return constraintViolation(name, fmt.Sprintf("length %d above maximum %d", len(s), fs.MaxLen))
		}
		if len(fs.Enum) > 0 {
			for _, allowed := range fs.Enum {
				if s == allowed {
					return nil
				}
			}
			return constraintViolation(name, fmt.Sprintf("%q not in enum %v", s, fs.Enum))
		}
	case Number:
		n := v.(float64)
		if fs.Min != nil && n < *fs.Min {
			return constraintViolation(name, fmt.Sprintf("%v below minimum %v", n, *fs.Min))
		}
		if fs.Max != nil && n > *fs.Max {
			return constraintViolation(name, fmt.Sprintf("%v above maximum %v", n, *fs.Max))
		}
	}
	return nil
}
