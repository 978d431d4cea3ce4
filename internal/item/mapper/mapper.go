// Package mapper converts between stored documents and validated records.
// The store is treated as untrusted on read: documents that do not match
// the collection schema surface ErrCorruptDocument instead of leaking
// malformed values forward.
package mapper

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Yamemik/casher/internal/item/model"
	"github.com/Yamemik/casher/internal/schema"
)

// ErrCorruptDocument is returned when a stored document does not conform
// to its collection schema.
var ErrCorruptDocument = errors.New("casher: corrupt document")

// managed are document fields owned by the repository, never settable
// through a client payload.
var managed = map[string]bool{
	"_id":       true,
	"owner":     true,
	"revision":  true,
	"createdAt": true,
	"updatedAt": true,
	"deletedAt": true,
}

// NormalizeTime pins a timestamp to the canonical stored form:
// UTC, millisecond precision.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// ToDocument builds the stored form of a new record. Revision is injected
// by the repository; managed keys present in the record are stripped.
func ToDocument(rec schema.Record, owner string, revision int64, now time.Time) bson.M {
	now = NormalizeTime(now)
	doc := bson.M{
		"owner":     owner,
		"revision":  revision,
		"createdAt": now,
		"updatedAt": now,
	}
	for name, v := range rec {
		if managed[name] {
			continue
		}
		doc[name] = writeValue(v)
	}
	return doc
}

// PatchSet builds the $set document of an update from a validated patch.
// Managed keys are stripped; updatedAt is refreshed.
func PatchSet(rec schema.Record, now time.Time) bson.M {
	set := bson.M{"updatedAt": NormalizeTime(now)}
	for name, v := range rec {
		if managed[name] {
			continue
		}
		set[name] = writeValue(v)
	}
	return set
}

func writeValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return NormalizeTime(t)
	}
	return v
}

// FromDocument rebuilds an Item from a raw stored document, checking every
// field against the schema. Missing declared fields are injected from
// their default when one is declared, otherwise a missing required field
// or any mistyped/undeclared field is a corrupt document.
func FromDocument(raw bson.M, sch *schema.Schema) (model.Item, error) {
	var item model.Item

	oid, ok := raw["_id"].(primitive.ObjectID)
	if !ok {
		return item, fmt.Errorf("%w: missing or mistyped _id", ErrCorruptDocument)
	}
	item.ID = oid.Hex()

	owner, ok := raw["owner"].(string)
	if !ok || owner == "" {
		return item, fmt.Errorf("%w: missing owner", ErrCorruptDocument)
	}
	item.Owner = owner

	revision, ok := asInt64(raw["revision"])
	if !ok || revision < 1 {
		return item, fmt.Errorf("%w: missing or invalid revision", ErrCorruptDocument)
	}
	item.Revision = revision

	createdAt, ok := asTime(raw["createdAt"])
	if !ok {
		return item, fmt.Errorf("%w: missing createdAt", ErrCorruptDocument)
	}
	item.CreatedAt = createdAt

	updatedAt, ok := asTime(raw["updatedAt"])
	if !ok {
		return item, fmt.Errorf("%w: missing updatedAt", ErrCorruptDocument)
	}
	item.UpdatedAt = updatedAt

	fields := make(map[string]any, len(raw))
	for name, v := range raw {
		if managed[name] {
			continue
		}
		spec, ok := sch.Fields[name]
		if !ok {
			return item, fmt.Errorf("%w: undeclared field %q", ErrCorruptDocument, name)
		}
		typed, ok := readValue(spec.Type, v)
		if !ok {
			return item, fmt.Errorf("%w: field %q is not a %s", ErrCorruptDocument, name, spec.Type)
		}
		fields[name] = typed
	}

	for name, spec := range sch.Fields {
		if _, ok := fields[name]; ok {
			continue
		}
		if spec.Default != nil {
			fields[name] = spec.Default
			continue
		}
		if spec.Required {
			return item, fmt.Errorf("%w: missing required field %q", ErrCorruptDocument, name)
		}
	}

	item.Fields = fields
	return item, nil
}

func readValue(t schema.FieldType, v any) (any, bool) {
	switch t {
	case schema.String:
		s, ok := v.(string)
		return s, ok
	case schema.Number:
		return asFloat64(v)
	case schema.Boolean:
		b, ok := v.(bool)
		return b, ok
	case schema.Timestamp:
		return asTime(v)
	}
	return nil, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return NormalizeTime(t), true
	case primitive.DateTime:
		return NormalizeTime(t.Time()), true
	}
	return time.Time{}, false
}
