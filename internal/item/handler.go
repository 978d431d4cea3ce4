package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Yamemik/casher/internal/item/mapper"
	"github.com/Yamemik/casher/internal/item/model"
	"github.com/Yamemik/casher/internal/item/repository"
	"github.com/Yamemik/casher/internal/item/service"
	"github.com/Yamemik/casher/internal/query"
	"github.com/Yamemik/casher/internal/schema"
	"github.com/Yamemik/casher/middleware"
	"github.com/Yamemik/casher/pkg/logger"
)

type ItemHandler struct {
	Service *service.ItemService
}

func NewItemHandler(service *service.ItemService) *ItemHandler {
	return &ItemHandler{Service: service}
}

func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	owner := r.Context().Value(middleware.OwnerKey).(string)
	collection := r.PathValue("name")

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	item, err := h.Service.CreateItem(r.Context(), collection, owner, payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	owner := r.Context().Value(middleware.OwnerKey).(string)

	item, err := h.Service.GetItem(r.Context(), r.PathValue("name"), owner, r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	owner := r.Context().Value(middleware.OwnerKey).(string)

	var req model.UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if req.ExpectedRevision < 1 {
		writeJSONError(w, http.StatusBadRequest, "expectedRevision must be at least 1", "expectedRevision")
		return
	}

	item, err := h.Service.UpdateItem(r.Context(), r.PathValue("name"), owner, r.PathValue("id"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	owner := r.Context().Value(middleware.OwnerKey).(string)

	if err := h.Service.DeleteItem(r.Context(), r.PathValue("name"), owner, r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	owner := r.Context().Value(middleware.OwnerKey).(string)

	resp, err := h.Service.ListItems(r.Context(), r.PathValue("name"), owner, r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ItemHandler) CountItems(w http.ResponseWriter, r *http.Request) {
	owner := r.Context().Value(middleware.OwnerKey).(string)

	resp, err := h.Service.CountItems(r.Context(), r.PathValue("name"), owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeError maps service and repository errors onto HTTP statuses.
// Driver detail stays server-side; the client sees the taxonomy only.
func (h *ItemHandler) writeError(w http.ResponseWriter, err error) {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		writeJSONError(w, http.StatusBadRequest, verr.Error(), verr.Field)
		return
	}
	var qerr *query.Error
	if errors.As(err, &qerr) {
		writeJSONError(w, http.StatusBadRequest, qerr.Error(), qerr.Param)
		return
	}

	switch {
	case errors.Is(err, query.ErrInvalidCursor), errors.Is(err, query.ErrTooManyFilters):
		writeJSONError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, schema.ErrUnknownCollection), errors.Is(err, repository.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, repository.ErrDuplicateKey), errors.Is(err, repository.ErrRevisionConflict):
		writeJSONError(w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, repository.ErrStoreUnavailable):
		logger.Sugar.Errorf("Store unavailable: %v", err)
		writeJSONError(w, http.StatusServiceUnavailable, "store unavailable", "")
	case errors.Is(err, mapper.ErrCorruptDocument):
		logger.Sugar.Errorf("Data integrity failure: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "data integrity failure", "")
	default:
		logger.Sugar.Errorf("Internal error: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Error encoding response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg, field string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Field: field})
}
