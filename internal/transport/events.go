package transport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/domaguardian/domaguardian/internal/storage"
)

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Event history is not available")
		return
	}

	q := r.URL.Query()
	limit := 50
	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	txSeq, err := queryUint(r, "txSeq", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	result, err := h.events.ListEvents(r.Context(), storage.EventFilter{
		Contract: q.Get("contract"),
		Name:     q.Get("name"),
		TxSeq:    txSeq,
	}, storage.PaginationParams{
		Limit:  limit,
		Cursor: q.Get("cursor"),
	})
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCursor) {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid cursor")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list events")
		return
	}

	data := result.Data
	if data == nil {
		data = []storage.EventRecord{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{
		Data: data,
		Pagination: &Pagination{
			Limit:      limit,
			HasMore:    result.HasMore,
			NextCursor: result.NextCursor,
		},
	})
}
