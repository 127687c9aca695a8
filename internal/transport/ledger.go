package transport

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/domaguardian/domaguardian/internal/node"
	"github.com/domaguardian/domaguardian/internal/validation"
)

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	var resp LedgerResponse
	h.svc.Read(func(s *node.State) {
		l := s.Ledger
		resp = LedgerResponse{
			Address:  l.Address().Hex(),
			Owner:    l.Owner().Hex(),
			PriceWei: l.Price().String(),
			HeldWei:  l.HeldCurrency().String(),
		}
		if p := l.PendingOwner(); p != (common.Address{}) {
			resp.PendingOwner = p.Hex()
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLedgerAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	var resp AccountResponse
	h.svc.Read(func(s *node.State) {
		l := s.Ledger
		resp = AccountResponse{
			Address:    addr.Hex(),
			CreditWei:  l.CreditBalance(addr).String(),
			HasCredit:  l.HasCredit(addr),
			UsageCount: l.UsageCount(addr),
			Authorized: l.IsAuthorized(addr),
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleReconciliation(w http.ResponseWriter, r *http.Request) {
	var resp ReconciliationResponse
	h.svc.Read(func(s *node.State) {
		rec := s.Ledger.Reconcile()
		resp = ReconciliationResponse{
			OutstandingWei: rec.Outstanding.String(),
			HeldWei:        rec.Held.String(),
			ShortfallWei:   rec.Shortfall.String(),
			Balanced:       rec.Balanced(),
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

// handleDeposit credits the caller with the value named in the body. The value
// is simulated: no external currency balance backs it.
func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	value, err := validation.ParseWei(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "value: "+err.Error())
		return
	}
	h.submit(w, r, http.StatusOK, node.Call{
		Contract: node.ContractLedger,
		Method:   node.MethodDeposit,
		Value:    value,
	})
}

func (h *Handler) handleSetAuthorized(w http.ResponseWriter, r *http.Request) {
	var req AuthorizationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	spender, err := validation.ParseAddress(req.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "spender: "+err.Error())
		return
	}
	h.submit(w, r, http.StatusOK, node.Call{
		Contract: node.ContractLedger,
		Method:   node.MethodSetAuthorized,
		Args:     mustArgs(node.SetAuthorizedArgs{Spender: spender, Enabled: req.Enabled}),
	})
}

func (h *Handler) handleDebit(w http.ResponseWriter, r *http.Request) {
	var req DebitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := validation.ParseAddress(req.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "user: "+err.Error())
		return
	}
	h.submit(w, r, http.StatusOK, node.Call{
		Contract: node.ContractLedger,
		Method:   node.MethodDebit,
		Args:     mustArgs(node.DebitArgs{User: user}),
	})
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := validation.ParseWei(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "amount: "+err.Error())
		return
	}
	args := node.WithdrawArgs{}
	if amount.Sign() > 0 {
		args.Amount = amount
	}
	h.submit(w, r, http.StatusOK, node.Call{
		Contract: node.ContractLedger,
		Method:   node.MethodWithdraw,
		Args:     mustArgs(args),
	})
}
