package query

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCursor is returned when a pagination token cannot be
	// decoded or does not match the requested sort.
	ErrInvalidCursor = errors.New("casher: invalid cursor")

	// ErrTooManyFilters is returned when a request exceeds the filter cap.
	ErrTooManyFilters = errors.New("casher: too many filters")
)

// Error reports a malformed query parameter.
type Error struct {
	Param  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("bad query parameter %q: %s", e.Param, e.Reason)
}

func badParam(param, reason string) error {
	return &Error{Param: param, Reason: reason}
}
