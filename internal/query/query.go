// Package query turns raw list-request parameters into a validated Spec
// the repository can execute: typed filters, a total-order sort and a
// cursor or offset pagination window.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Yamemik/casher/internal/schema"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq Op = "eq"
	OpGt Op = "gt"
	OpLt Op = "lt"
	OpIn Op = "in"
)

// Direction is a sort direction.
type Direction int

const (
	Asc  Direction = 1
	Desc Direction = -1
)

// MaxFilters caps the number of filters a single request may carry.
const MaxFilters = 8

// DefaultPageSize applies when the request names no page size.
const DefaultPageSize = 20

// Filter is one field comparison. Values holds the member list for OpIn,
// Value the operand for everything else.
type Filter struct {
	Field  string
	Op     Op
	Value  any
	Values []any
}

// Spec is a fully validated list query.
type Spec struct {
	Filters   []Filter
	SortField string
	SortDir   Direction
	PageSize  int

	// Cursor, when non-nil, positions the page after the encoded row.
	Cursor *Cursor

	// Offset is the numeric fallback used only when no cursor is given.
	// Offset pagination is not stable under concurrent writes.
	Offset int64
}

// reserved parameters that are not filters.
var reserved = map[string]bool{
	"sort":     true,
	"order":    true,
	"pageSize": true,
	"cursor":   true,
	"offset":   true,
}

// managedSortFields are sortable and filter-comparable without appearing
// in the collection schema.
var managedSortFields = map[string]schema.FieldType{
	"createdAt": schema.Timestamp,
	"updatedAt": schema.Timestamp,
}

// Build validates raw request parameters against the collection schema and
// produces a Spec. Page sizes above maxPageSize are clamped, not rejected.
func Build(params url.Values, sch *schema.Schema, maxPageSize int) (Spec, error) {
	spec := Spec{
		SortField: "createdAt",
		SortDir:   Desc,
		PageSize:  DefaultPageSize,
	}

	if v := params.Get("sort"); v != "" {
		if _, err := fieldType(sch, v); err != nil {
			return Spec{}, err
		}
		spec.SortField = v
	}
	switch params.Get("order") {
	case "", "desc":
		spec.SortDir = Desc
	case "asc":
		spec.SortDir = Asc
	default:
		return Spec{}, badParam("order", "must be asc or desc")
	}

	if v := params.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Spec{}, badParam("pageSize", "must be a positive integer")
		}
		spec.PageSize = n
	}
	if maxPageSize > 0 && spec.PageSize > maxPageSize {
		spec.PageSize = maxPageSize
	}

	cursorToken := params.Get("cursor")
	offsetParam := params.Get("offset")
	switch {
	case cursorToken != "" && offsetParam != "":
		return Spec{}, badParam("offset", "cannot combine cursor and offset")
	case cursorToken != "":
		c, err := DecodeCursor(cursorToken)
		if err != nil {
			return Spec{}, err
		}
		if c.Field != spec.SortField {
			return Spec{}, fmt.Errorf("%w: cursor sorted by %q, request by %q", ErrInvalidCursor, c.Field, spec.SortField)
		}
		if c.Dir != spec.SortDir {
			return Spec{}, fmt.Errorf("%w: cursor direction does not match requested order", ErrInvalidCursor)
		}
		spec.Cursor = c
	case offsetParam != "":
		n, err := strconv.ParseInt(offsetParam, 10, 64)
		if err != nil || n < 0 {
			return Spec{}, badParam("offset", "must be a non-negative integer")
		}
		spec.Offset = n
	}

	filters, err := buildFilters(params, sch)
	if err != nil {
		return Spec{}, err
	}
	spec.Filters = filters

	return spec, nil
}

func buildFilters(params url.Values, sch *schema.Schema) ([]Filter, error) {
	var filters []Filter
	for key, vals := range params {
		if reserved[key] || len(vals) == 0 {
			continue
		}
		field, op, err := splitFilterKey(key)
		if err != nil {
			return nil, err
		}
		t, err := fieldType(sch, field)
		if err != nil {
			return nil, err
		}

		f := Filter{Field: field, Op: op}
		if op == OpIn {
			for _, member := range strings.Split(vals[0], ",") {
				v, err := parseValue(field, t, strings.TrimSpace(member))
				if err != nil {
					return nil, err
				}
				f.Values = append(f.Values, v)
			}
		} else {
			v, err := parseValue(field, t, vals[0])
			if err != nil {
				return nil, err
			}
			f.Value = v
		}
		filters = append(filters, f)
	}
	if len(filters) > MaxFilters {
		return nil, fmt.Errorf("%w: %d filters, maximum %d", ErrTooManyFilters, len(filters), MaxFilters)
	}
	return filters, nil
}

// splitFilterKey parses "field" or "field[op]" keys.
func splitFilterKey(key string) (string, Op, error) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return key, OpEq, nil
	}
	if !strings.HasSuffix(key, "]") || open == 0 {
		return "", "", badParam(key, "malformed filter key")
	}
	field := key[:open]
	switch op := Op(key[open+1 : len(key)-1]); op {
	case OpGt, OpLt, OpIn:
		return field, op, nil
	default:
		return "", "", badParam(key, fmt.Sprintf("unsupported operator %q", string(op)))
	}
}

// FieldTypeOf resolves the declared type of a filterable or sortable
// field, including the managed createdAt/updatedAt timestamps.
func FieldTypeOf(sch *schema.Schema, field string) (schema.FieldType, bool) {
	if t, ok := managedSortFields[field]; ok {
		return t, true
	}
	if spec, ok := sch.Fields[field]; ok {
		return spec.Type, true
	}
	return "", false
}

func fieldType(sch *schema.Schema, field string) (schema.FieldType, error) {
	t, ok := FieldTypeOf(sch, field)
	if !ok {
		return "", badParam(field, "field not declared in collection schema")
	}
	return t, nil
}

func parseValue(field string, t schema.FieldType, raw string) (any, error) {
	switch t {
	case schema.String:
		return raw, nil
	case schema.Number:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, badParam(field, fmt.Sprintf("cannot parse %q as number", raw))
		}
		return f, nil
	case schema.Boolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, badParam(field, fmt.Sprintf("cannot parse %q as boolean", raw))
		}
		return b, nil
	case schema.Timestamp:
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, badParam(field, fmt.Sprintf("cannot parse %q as timestamp", raw))
		}
		return ts.UTC(), nil
	default:
		return nil, badParam(field, "unsupported field type")
	}
}
