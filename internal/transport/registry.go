package transport

import (
	"net/http"

	"github.com/domaguardian/domaguardian/internal/node"
	"github.com/domaguardian/domaguardian/internal/registry"
	"github.com/domaguardian/domaguardian/internal/validation"
)

// pathDomain returns the validated domain name path parameter.
func pathDomain(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := pathParam(r, "name")
	if err := validation.ValidateDomainName(name); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return "", false
	}
	return name, true
}

func (h *Handler) handleTokenize(w http.ResponseWriter, r *http.Request) {
	var req TokenizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.ValidateDomainName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	h.submit(w, r, http.StatusCreated, node.Call{
		Contract: node.ContractRegistry,
		Method:   node.MethodTokenize,
		Args:     mustArgs(node.TokenizeArgs{Name: req.Name}),
	})
}

func (h *Handler) handleGrantRight(w http.ResponseWriter, r *http.Request) {
	name, ok := pathDomain(w, r)
	if !ok {
		return
	}
	var req GrantRightRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.ValidateRight(req.Right); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	holder, err := validation.ParseAddress(req.Holder)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "holder: "+err.Error())
		return
	}
	h.submit(w, r, http.StatusCreated, node.Call{
		Contract: node.ContractRegistry,
		Method:   node.MethodGrantRight,
		Args: mustArgs(node.GrantRightArgs{
			Name:            name,
			Right:           req.Right,
			Holder:          holder,
			DurationSeconds: req.DurationSeconds,
		}),
	})
}

func (h *Handler) handleRevokeRight(w http.ResponseWriter, r *http.Request) {
	name, ok := pathDomain(w, r)
	if !ok {
		return
	}
	h.submit(w, r, http.StatusOK, node.Call{
		Contract: node.ContractRegistry,
		Method:   node.MethodRevokeRight,
		Args:     mustArgs(node.RevokeRightArgs{Name: name, Right: pathParam(r, "right")}),
	})
}

func (h *Handler) handleTransferDomain(w http.ResponseWriter, r *http.Request) {
	name, ok := pathDomain(w, r)
	if !ok {
		return
	}
	var req TransferDomainRequest
	if !decodeBody(w, r, &req) {
		return
	}
	newOwner, err := validation.ParseAddress(req.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "newOwner: "+err.Error())
		return
	}
	h.submit(w, r, http.StatusOK, node.Call{
		Contract: node.ContractRegistry,
		Method:   node.MethodTransferDomain,
		Args:     mustArgs(node.TransferDomainArgs{Name: name, NewOwner: newOwner}),
	})
}

func (h *Handler) handleSyncActiveState(w http.ResponseWriter, r *http.Request) {
	name, ok := pathDomain(w, r)
	if !ok {
		return
	}
	var req SyncRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.submit(w, r, http.StatusOK, node.Call{
		Contract: node.ContractRegistry,
		Method:   node.MethodSyncActiveState,
		Args:     mustArgs(node.SyncActiveStateArgs{Name: name, Active: req.Active}),
	})
}

func (h *Handler) handleListDomains(w http.ResponseWriter, r *http.Request) {
	var names []string
	h.svc.Read(func(s *node.State) {
		names = s.Registry.AllDomains()
	})
	writeJSON(w, http.StatusOK, ListResponse[string]{Data: names})
}

func (h *Handler) handleGetDomain(w http.ResponseWriter, r *http.Request) {
	name, ok := pathDomain(w, r)
	if !ok {
		return
	}
	var d registry.Domain
	var found bool
	h.svc.Read(func(s *node.State) {
		d, found = s.Registry.Domain(name)
	})
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Domain not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleRightHistory(w http.ResponseWriter, r *http.Request) {
	name, ok := pathDomain(w, r)
	if !ok {
		return
	}
	var history []registry.RightGrant
	h.svc.Read(func(s *node.State) {
		history = s.Registry.RightHistory(name)
	})
	writeJSON(w, http.StatusOK, ListResponse[registry.RightGrant]{Data: history})
}

func (h *Handler) handleHasRight(w http.ResponseWriter, r *http.Request) {
	name, ok := pathDomain(w, r)
	if !ok {
		return
	}
	right := pathParam(r, "right")
	holder, err := validation.ParseAddress(r.URL.Query().Get("holder"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "holder: "+err.Error())
		return
	}

	resp := HasRightResponse{Name: name, Right: right, Holder: holder.Hex()}
	h.svc.Read(func(s *node.State) {
		resp.HasRight = s.Registry.HasRight(name, right, holder, s.Now)
		if resp.HasRight {
			live, _ := s.Registry.RightHolder(name, right)
			resp.ExpiresAt = live.ExpiresAt
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleOwnerDomains(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	var names []string
	h.svc.Read(func(s *node.State) {
		names = s.Registry.DomainsOf(owner)
	})
	writeJSON(w, http.StatusOK, ListResponse[string]{Data: names})
}
