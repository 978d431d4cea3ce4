package model

import "time"

// Item is one owned record of a collection as presented to callers.
// Revision starts at 1 and strictly increases on every successful update.
type Item struct {
	ID        string         `json:"id"`
	Owner     string         `json:"owner"`
	Fields    map[string]any `json:"fields"`
	Revision  int64          `json:"revision"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// UpdateItemRequest is the PATCH body: the revision the caller last saw
// plus the fields to change.
type UpdateItemRequest struct {
	ExpectedRevision int64          `json:"expectedRevision"`
	Patch            map[string]any `json:"patch"`
}

// ListItemsResponse is one page of items. NextCursor is empty on the
// last page.
type ListItemsResponse struct {
	Items      []Item `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// CountResponse carries the derived item count of a collection.
type CountResponse struct {
	Collection string `json:"collection"`
	Count      int64  `json:"count"`
}

// ErrorResponse is the JSON error envelope for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
