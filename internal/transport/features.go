package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/domaguardian/domaguardian/internal/feature"
	"github.com/domaguardian/domaguardian/internal/node"
	"github.com/domaguardian/domaguardian/internal/validation"
)

func pathKind(w http.ResponseWriter, r *http.Request) (feature.Kind, bool) {
	kind, err := feature.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return "", false
	}
	return kind, true
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}
	var req FeatureRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// An empty target is left to the contract, which checks credit first.
	if req.Target != "" {
		if err := validation.ValidateTarget(req.Target); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
	}
	params := req.Params
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	h.submit(w, r, http.StatusCreated, node.Call{
		Contract: string(kind),
		Method:   node.MethodRequest,
		Args:     mustArgs(node.RequestArgs[json.RawMessage]{Target: req.Target, Params: params}),
	})
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}
	user, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	index, err := validation.ParseIndex(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	var req CompleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Result) == 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "result is required")
		return
	}
	h.submit(w, r, http.StatusOK, node.Call{
		Contract: string(kind),
		Method:   node.MethodComplete,
		Args:     mustArgs(node.CompleteArgs[json.RawMessage]{User: user, Index: index, Result: req.Result}),
	})
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}
	user, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	var records any
	h.svc.Read(func(s *node.State) {
		view, _ := s.Feature(kind)
		records = view.RecordsOf(user)
	})
	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}

func (h *Handler) handlePendingRequests(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}
	var records any
	h.svc.Read(func(s *node.State) {
		view, _ := s.Feature(kind)
		records = view.PendingRecords()
	})
	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}
