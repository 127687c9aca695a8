// Package transport provides the HTTP API over the node.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/domaguardian/domaguardian/internal/auth"
	"github.com/domaguardian/domaguardian/internal/node"
	"github.com/domaguardian/domaguardian/internal/storage"
	"github.com/domaguardian/domaguardian/internal/validation"
)

// EventLister lists journaled events.
type EventLister interface {
	ListEvents(ctx context.Context, filter storage.EventFilter, pagination storage.PaginationParams) (*storage.PaginatedResult[storage.EventRecord], error)
}

// Handler handles HTTP requests for every contract.
type Handler struct {
	svc    node.Service
	events EventLister
}

// NewHandler creates a handler. events may be nil when nothing is journaled.
func NewHandler(svc node.Service, events EventLister) *Handler {
	return &Handler{svc: svc, events: events}
}

// RegisterReadRoutes registers query routes (no auth required).
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/chain", h.handleChain)
	r.Get("/events", h.handleListEvents)

	r.Get("/ledger", h.handleLedger)
	r.Get("/ledger/accounts/{address}", h.handleLedgerAccount)
	r.Get("/ledger/reconciliation", h.handleReconciliation)

	r.Get("/features/{kind}/requests/{address}", h.handleListRequests)
	r.Get("/features/{kind}/pending", h.handlePendingRequests)

	r.Get("/monitoring/subscriptions/{address}", h.handleListSubscriptions)
	r.Get("/monitoring/targets/{target}/subscribers", h.handleSubscribers)

	r.Get("/messages", h.handleListMessages)
	r.Get("/messages/{id}", h.handleGetMessage)
	r.Get("/messages/sent/{address}", h.handleSentMessages)
	r.Get("/messages/received/{address}", h.handleReceivedMessages)

	r.Get("/domains", h.handleListDomains)
	r.Get("/domains/{name}", h.handleGetDomain)
	r.Get("/domains/{name}/history", h.handleRightHistory)
	r.Get("/domains/{name}/rights/{right}", h.handleHasRight)
	r.Get("/owners/{address}/domains", h.handleOwnerDomains)
}

// RegisterWriteRoutes registers state-changing routes (auth required).
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/contracts/{contract}/ownership/transfer", h.handleTransferOwnership)
	r.Post("/contracts/{contract}/ownership/accept", h.handleAcceptOwnership)

	r.Post("/ledger/deposit", h.handleDeposit)
	r.Post("/ledger/authorizations", h.handleSetAuthorized)
	r.Post("/ledger/debit", h.handleDebit)
	r.Post("/ledger/withdraw", h.handleWithdraw)

	r.Post("/features/{kind}/requests", h.handleRequest)
	r.Post("/features/{kind}/requests/{address}/{index}/complete", h.handleComplete)

	r.Post("/monitoring/subscriptions", h.handleSubscribe)
	r.Post("/monitoring/subscriptions/{index}/stop", h.handleStopMonitoring)
	r.Post("/monitoring/alerts", h.handleTriggerAlert)

	r.Post("/messages", h.handleSendMessage)
	r.Post("/messages/cross-chain", h.handleSendCrossChainMessage)

	r.Post("/domains", h.handleTokenize)
	r.Post("/domains/{name}/rights", h.handleGrantRight)
	r.Delete("/domains/{name}/rights/{right}", h.handleRevokeRight)
	r.Post("/domains/{name}/transfer", h.handleTransferDomain)
	r.Post("/domains/{name}/sync", h.handleSyncActiveState)
}

func (h *Handler) handleChain(w http.ResponseWriter, r *http.Request) {
	var resp ChainResponse
	h.svc.Read(func(s *node.State) {
		resp = ChainResponse{
			ChainID:   s.ChainID,
			PriceWei:  s.Ledger.Price().String(),
			Time:      s.Now.Unix(),
			Contracts: s.Contracts(),
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req OwnershipRequest
	if !decodeBody(w, r, &req) {
		return
	}
	newOwner, err := validation.ParseAddress(req.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "newOwner: "+err.Error())
		return
	}
	h.submit(w, r, http.StatusOK, node.Call{
		Contract: chi.URLParam(r, "contract"),
		Method:   node.MethodTransferOwnership,
		Args:     mustArgs(node.TransferOwnershipArgs{NewOwner: newOwner}),
	})
}

func (h *Handler) handleAcceptOwnership(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, http.StatusOK, node.Call{
		Contract: chi.URLParam(r, "contract"),
		Method:   node.MethodAcceptOwnership,
	})
}

// submit fills in the authenticated caller and writes the call result.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, status int, call node.Call) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Caller address required")
		return
	}
	call.From = caller

	res, err := h.svc.Submit(r.Context(), call)
	if err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, status, res)
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
// An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func mustArgs(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// Arg structs only hold addresses, strings and integers.
		panic(fmt.Sprintf("encoding call args: %v", err))
	}
	return b
}

// pathAddress parses the named path parameter as an address.
func pathAddress(w http.ResponseWriter, r *http.Request, param string) (common.Address, bool) {
	addr, err := validation.ParseAddress(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return common.Address{}, false
	}
	return addr, true
}

// pathParam returns the unescaped path parameter.
func pathParam(r *http.Request, param string) string {
	v := chi.URLParam(r, param)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func queryUint(r *http.Request, key string, def uint64) (uint64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, code, message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}
