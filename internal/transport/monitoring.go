package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/domaguardian/domaguardian/internal/monitoring"
	"github.com/domaguardian/domaguardian/internal/node"
	"github.com/domaguardian/domaguardian/internal/validation"
)

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
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
	h.submit(w, r, http.StatusCreated, node.Call{
		Contract: node.ContractMonitoring,
		Method:   node.MethodSubscribe,
		Args:     mustArgs(node.SubscribeArgs{Target: req.Target, Threshold: req.Threshold}),
	})
}

func (h *Handler) handleStopMonitoring(w http.ResponseWriter, r *http.Request) {
	index, err := validation.ParseIndex(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	h.submit(w, r, http.StatusOK, node.Call{
		Contract: node.ContractMonitoring,
		Method:   node.MethodStopMonitoring,
		Args:     mustArgs(node.StopMonitoringArgs{Index: index}),
	})
}

func (h *Handler) handleTriggerAlert(w http.ResponseWriter, r *http.Request) {
	var req AlertRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, http.StatusOK, node.Call{
		Contract: node.ContractMonitoring,
		Method:   node.MethodTriggerAlert,
		Args:     mustArgs(node.TriggerAlertArgs{Target: req.Target, AlertKind: req.AlertKind, Value: req.Value}),
	})
}

func (h *Handler) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	user, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	var subs []monitoring.Subscription
	h.svc.Read(func(s *node.State) {
		subs = s.Monitor.Subscriptions(user)
	})
	writeJSON(w, http.StatusOK, ListResponse[monitoring.Subscription]{Data: subs})
}

func (h *Handler) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	target := pathParam(r, "target")
	var subscribers []string
	h.svc.Read(func(s *node.State) {
		addrs := s.Monitor.Subscribers(target)
		subscribers = make([]string, len(addrs))
		for i, a := range addrs {
			subscribers[i] = a.Hex()
		}
	})
	writeJSON(w, http.StatusOK, ListResponse[string]{Data: subscribers})
}
