package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/domaguardian/domaguardian/internal/messaging"
	"github.com/domaguardian/domaguardian/internal/node"
	"github.com/domaguardian/domaguardian/internal/validation"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 500
)

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	recipient, err := validation.ParseAddress(req.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "recipient: "+err.Error())
		return
	}
	h.submit(w, r, http.StatusCreated, node.Call{
		Contract: node.ContractMessaging,
		Method:   node.MethodSendMessage,
		Args:     mustArgs(node.SendMessageArgs{Recipient: recipient, Text: req.Text}),
	})
}

func (h *Handler) handleSendCrossChainMessage(w http.ResponseWriter, r *http.Request) {
	var req CrossChainMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	recipient, err := validation.ParseAddress(req.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "recipient: "+err.Error())
		return
	}
	h.submit(w, r, http.StatusCreated, node.Call{
		Contract: node.ContractMessaging,
		Method:   node.MethodSendCrossChainMessage,
		Args: mustArgs(node.SendCrossChainMessageArgs{
			DestinationChainID: req.DestinationChainID,
			Recipient:          recipient,
			Text:               req.Text,
		}),
	})
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	offset, err := queryUint(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	limit, err := queryUint(r, "limit", defaultMessageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	var msgs []messaging.Message
	var total uint64
	h.svc.Read(func(s *node.State) {
		msgs = s.Messaging.ListMessages(offset, limit)
		total = s.Messaging.Count()
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"data":   msgs,
		"offset": offset,
		"limit":  limit,
		"total":  total,
	})
}

func (h *Handler) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ParseIndex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	var msg messaging.Message
	var found bool
	h.svc.Read(func(s *node.State) {
		msg, found = s.Messaging.Message(id)
	})
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *Handler) handleSentMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	var msgs []messaging.Message
	h.svc.Read(func(s *node.State) {
		msgs = s.Messaging.Sent(user)
	})
	writeJSON(w, http.StatusOK, ListResponse[messaging.Message]{Data: msgs})
}

func (h *Handler) handleReceivedMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	var msgs []messaging.Message
	h.svc.Read(func(s *node.State) {
		msgs = s.Messaging.Received(user)
	})
	writeJSON(w, http.StatusOK, ListResponse[messaging.Message]{Data: msgs})
}
