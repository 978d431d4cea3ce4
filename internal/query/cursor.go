package query

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor encodes the position of the last row of a page: the sort field
// and direction, the field's value at that row (Missing when the row
// does not carry the field), and the row identifier as tie-break.
// Serialized form is opaque to callers.
type Cursor struct {
	Field   string    `json:"f"`
	Dir     Direction `json:"d"`
	Value   any       `json:"v,omitempty"`
	Missing bool      `json:"m,omitempty"`
	LastID  string    `json:"id"`
}

// Encode serializes the cursor to its opaque wire form.
func (c Cursor) Encode() string {
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses an opaque token back into a Cursor. Garbage or
// tampered input fails with ErrInvalidCursor.
func DecodeCursor(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.Field == "" || c.LastID == "" {
		return nil, fmt.Errorf("%w: incomplete token", ErrInvalidCursor)
	}
	if c.Dir != Asc && c.Dir != Desc {
		return nil, fmt.Errorf("%w: bad direction", ErrInvalidCursor)
	}
	if c.Value == nil && !c.Missing {
		return nil, fmt.Errorf("%w: missing sort value", ErrInvalidCursor)
	}
	return &c, nil
}
