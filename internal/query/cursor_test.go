package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yamemik/casher/internal/query"
)

func TestCursorRoundTrip(t *testing.T) {
	c := query.Cursor{Field: "createdAt", Dir: query.Desc, Value: "2024-05-01T10:00:00Z", LastID: "662f5b2e8f1b2c3d4e5f6a7b"}

	token := c.Encode()
	require.NotEmpty(t, token)

	decoded, err := query.DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, c.Field, decoded.Field)
	assert.Equal(t, c.Dir, decoded.Dir)
	assert.Equal(t, c.Value, decoded.Value)
	assert.Equal(t, c.LastID, decoded.LastID)
	assert.False(t, decoded.Missing)
}

func TestCursorRoundTripMissingValue(t *testing.T) {
	c := query.Cursor{Field: "released", Dir: query.Asc, Missing: true, LastID: "662f5b2e8f1b2c3d4e5f6a7b"}

	decoded, err := query.DecodeCursor(c.Encode())
	require.NoError(t, err)
	assert.True(t, decoded.Missing)
	assert.Nil(t, decoded.Value)
}

func TestDecodeCursorGarbage(t *testing.T) {
	for _, token := range []string{"not base64 at all!!", "aGVsbG8", ""} {
		_, err := query.DecodeCursor(token)
		assert.ErrorIs(t, err, query.ErrInvalidCursor, "token %q", token)
	}
}

func TestDecodeCursorTampered(t *testing.T) {
	token := query.Cursor{Field: "amount", Dir: query.Asc, Value: float64(10), LastID: "abc"}.Encode()
	tampered := token[:len(token)-2] + "zz"

	_, err := query.DecodeCursor(tampered)
	assert.ErrorIs(t, err, query.ErrInvalidCursor)
}

func TestDecodeCursorIncomplete(t *testing.T) {
	tests := []struct {
		name   string
		cursor query.Cursor
	}{
		{"no field or id", query.Cursor{Value: float64(1)}},
		{"no direction", query.Cursor{Field: "amount", Value: float64(1), LastID: "abc"}},
		{"no value and not missing", query.Cursor{Field: "amount", Dir: query.Asc, LastID: "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := query.DecodeCursor(tt.cursor.Encode())
			assert.ErrorIs(t, err, query.ErrInvalidCursor)
		})
	}
}
