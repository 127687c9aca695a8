package transport

import (
	"errors"
	"net/http"

	"github.com/domaguardian/domaguardian/internal/access"
	"github.com/domaguardian/domaguardian/internal/chain"
	"github.com/domaguardian/domaguardian/internal/feature"
	"github.com/domaguardian/domaguardian/internal/ledger"
	"github.com/domaguardian/domaguardian/internal/messaging"
	"github.com/domaguardian/domaguardian/internal/monitoring"
	"github.com/domaguardian/domaguardian/internal/node"
	"github.com/domaguardian/domaguardian/internal/registry"
)

type errorClass struct {
	status int
	code   string
}

var (
	classHalted       = errorClass{http.StatusServiceUnavailable, "HALTED"}
	classNotFound     = errorClass{http.StatusNotFound, "NOT_FOUND"}
	classForbidden    = errorClass{http.StatusForbidden, "FORBIDDEN"}
	classInsufficient = errorClass{http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"}
	classConflict     = errorClass{http.StatusConflict, "CONFLICT"}
	classInvalid      = errorClass{http.StatusBadRequest, "PRECONDITION_FAILED"}
)

// callErrors maps contract and node errors to HTTP responses. Checked in
// order, so wrapped errors resolve to the first match.
var callErrors = []struct {
	err   error
	class errorClass
}{
	{node.ErrHalted, classHalted},

	{node.ErrUnknownContract, classNotFound},
	{node.ErrUnknownMethod, classNotFound},
	{feature.ErrIndexOutOfRange, classNotFound},
	{monitoring.ErrIndexOutOfRange, classNotFound},
	{registry.ErrNotTokenized, classNotFound},
	{registry.ErrRightNotFound, classNotFound},

	{access.ErrNotOwner, classForbidden},
	{access.ErrNotPendingOwner, classForbidden},
	{ledger.ErrNotAuthorized, classForbidden},
	{registry.ErrNotDomainOwner, classForbidden},

	{ledger.ErrNoCredit, classInsufficient},
	{ledger.ErrInsufficientCredit, classInsufficient},
	{chain.ErrInsufficientBalance, classInsufficient},

	{feature.ErrAlreadyCompleted, classConflict},
	{monitoring.ErrAlreadyInactive, classConflict},
	{registry.ErrAlreadyTokenized, classConflict},
	{chain.ErrReentrant, classConflict},

	{node.ErrInvalidArgs, classInvalid},
	{node.ErrNotPayable, classInvalid},
	{chain.ErrInvalidValue, classInvalid},
	{access.ErrInvalidOwner, classInvalid},
	{ledger.ErrWrongAmount, classInvalid},
	{ledger.ErrInvalidAmount, classInvalid},
	{ledger.ErrInvalidSpender, classInvalid},
	{feature.ErrInvalidTarget, classInvalid},
	{monitoring.ErrInvalidTarget, classInvalid},
	{monitoring.ErrInvalidAlertKind, classInvalid},
	{messaging.ErrInvalidRecipient, classInvalid},
	{messaging.ErrInvalidMessage, classInvalid},
	{registry.ErrInvalidName, classInvalid},
	{registry.ErrInvalidRight, classInvalid},
	{registry.ErrInvalidHolder, classInvalid},
	{registry.ErrInvalidDuration, classInvalid},
	{registry.ErrInvalidOwner, classInvalid},
}

// StatusFor returns the HTTP status and error code for a call error.
func StatusFor(err error) (int, string) {
	for _, e := range callErrors {
		if errors.Is(err, e.err) {
			return e.class.status, e.class.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func writeCallError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal error"
	}
	writeError(w, status, code, msg)
}
