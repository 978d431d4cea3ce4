package query_test

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yamemik/casher/internal/query"
	"github.com/Yamemik/casher/internal/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{
		Collection: "items",
		Fields: map[string]schema.FieldSpec{
			"category":   {Type: schema.String, Required: true},
			"price":      {Type: schema.Number, Required: true},
			"is_visible": {Type: schema.Boolean},
			"released":   {Type: schema.Timestamp},
		},
	}
}

func TestBuildDefaults(t *testing.T) {
	spec, err := query.Build(url.Values{}, testSchema(), 100)
	require.NoError(t, err)

	assert.Equal(t, "createdAt", spec.SortField)
	assert.Equal(t, query.Desc, spec.SortDir)
	assert.Equal(t, query.DefaultPageSize, spec.PageSize)
	assert.Nil(t, spec.Cursor)
	assert.Empty(t, spec.Filters)
}

func TestBuildClampsPageSize(t *testing.T) {
	spec, err := query.Build(url.Values{"pageSize": {"5000"}}, testSchema(), 100)
	require.NoError(t, err)
	assert.Equal(t, 100, spec.PageSize)
}

func TestBuildRejectsBadPageSize(t *testing.T) {
	for _, v := range []string{"0", "-3", "abc"} {
		_, err := query.Build(url.Values{"pageSize": {v}}, testSchema(), 100)
		var qerr *query.Error
		assert.True(t, errors.As(err, &qerr), "pageSize %q", v)
	}
}

func TestBuildSortAndOrder(t *testing.T) {
	spec, err := query.Build(url.Values{"sort": {"price"}, "order": {"asc"}}, testSchema(), 100)
	require.NoError(t, err)
	assert.Equal(t, "price", spec.SortField)
	assert.Equal(t, query.Asc, spec.SortDir)

	_, err = query.Build(url.Values{"sort": {"bogus"}}, testSchema(), 100)
	var qerr *query.Error
	assert.True(t, errors.As(err, &qerr))

	_, err = query.Build(url.Values{"order": {"sideways"}}, testSchema(), 100)
	assert.True(t, errors.As(err, &qerr))
}

func TestBuildFilters(t *testing.T) {
	params := url.Values{
		"category":   {"jersey"},
		"price[gt]":  {"10"},
		"price[lt]":  {"100"},
		"is_visible": {"true"},
	}

	spec, err := query.Build(params, testSchema(), 100)
	require.NoError(t, err)
	require.Len(t, spec.Filters, 4)

	byKey := map[string]query.Filter{}
	for _, f := range spec.Filters {
		byKey[f.Field+string(f.Op)] = f
	}
	assert.Equal(t, "jersey", byKey["category"+string(query.OpEq)].Value)
	assert.Equal(t, float64(10), byKey["price"+string(query.OpGt)].Value)
	assert.Equal(t, float64(100), byKey["price"+string(query.OpLt)].Value)
	assert.Equal(t, true, byKey["is_visible"+string(query.OpEq)].Value)
}

func TestBuildInFilter(t *testing.T) {
	spec, err := query.Build(url.Values{"category[in]": {"a, b,c"}}, testSchema(), 100)
	require.NoError(t, err)
	require.Len(t, spec.Filters, 1)
	assert.Equal(t, query.OpIn, spec.Filters[0].Op)
	assert.Equal(t, []any{"a", "b", "c"}, spec.Filters[0].Values)
}

func TestBuildTimestampFilter(t *testing.T) {
	spec, err := query.Build(url.Values{"released[gt]": {"2024-05-01T10:00:00Z"}}, testSchema(), 100)
	require.NoError(t, err)
	ts, ok := spec.Filters[0].Value.(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())
}

func TestBuildUnknownFilterField(t *testing.T) {
	_, err := query.Build(url.Values{"bogus": {"1"}}, testSchema(), 100)
	var qerr *query.Error
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, "bogus", qerr.Param)
}

func TestBuildBadOperator(t *testing.T) {
	_, err := query.Build(url.Values{"price[between]": {"1"}}, testSchema(), 100)
	var qerr *query.Error
	assert.True(t, errors.As(err, &qerr))
}

func TestBuildTooManyFilters(t *testing.T) {
	params := url.Values{
		"category":     {"x"},
		"category[gt]": {"x"},
		"category[lt]": {"y"},
		"category[in]": {"x,y"},
		"price":        {"1"},
		"price[gt]":    {"1"},
		"price[lt]":    {"2"},
		"is_visible":   {"true"},
		"released[gt]": {"2024-05-01T10:00:00Z"},
	}

	_, err := query.Build(params, testSchema(), 100)
	assert.ErrorIs(t, err, query.ErrTooManyFilters)
}

func TestBuildCursorOffsetConflict(t *testing.T) {
	token := query.Cursor{Field: "createdAt", Dir: query.Desc, Value: "2024-05-01T10:00:00Z", LastID: "x"}.Encode()
	_, err := query.Build(url.Values{"cursor": {token}, "offset": {"10"}}, testSchema(), 100)
	var qerr *query.Error
	assert.True(t, errors.As(err, &qerr))
}

func TestBuildCursorSortMismatch(t *testing.T) {
	token := query.Cursor{Field: "price", Dir: query.Desc, Value: float64(10), LastID: "x"}.Encode()
	_, err := query.Build(url.Values{"cursor": {token}}, testSchema(), 100)
	assert.ErrorIs(t, err, query.ErrInvalidCursor)
}

func TestBuildCursorDirectionMismatch(t *testing.T) {
	// A token issued for a descending walk must not be replayed ascending;
	// the window predicate would skip or repeat rows.
	token := query.Cursor{Field: "price", Dir: query.Desc, Value: float64(10), LastID: "662f5b2e8f1b2c3d4e5f6a7b"}.Encode()
	_, err := query.Build(url.Values{"cursor": {token}, "sort": {"price"}, "order": {"asc"}}, testSchema(), 100)
	assert.ErrorIs(t, err, query.ErrInvalidCursor)
}

func TestBuildCursorAccepted(t *testing.T) {
	token := query.Cursor{Field: "price", Dir: query.Asc, Value: float64(10), LastID: "662f5b2e8f1b2c3d4e5f6a7b"}.Encode()
	spec, err := query.Build(url.Values{"cursor": {token}, "sort": {"price"}, "order": {"asc"}}, testSchema(), 100)
	require.NoError(t, err)
	require.NotNil(t, spec.Cursor)
	assert.Equal(t, "price", spec.Cursor.Field)
	assert.Equal(t, query.Asc, spec.Cursor.Dir)
}

func TestBuildOffset(t *testing.T) {
	spec, err := query.Build(url.Values{"offset": {"40"}}, testSchema(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(40), spec.Offset)

	_, err = query.Build(url.Values{"offset": {"-1"}}, testSchema(), 100)
	var qerr *query.Error
	assert.True(t, errors.As(err, &qerr))
}
