// Package access provides the privileged operator role shared by every
// contract.
package access

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/domaguardian/domaguardian/internal/chain"
)

// Common errors returned by Ownable.
var (
	ErrNotOwner        = errors.New("caller is not the owner")
	ErrNotPendingOwner = errors.New("caller is not the pending owner")
	ErrInvalidOwner    = errors.New("invalid owner")
)

// Event names.
const (
	EventOwnershipTransferStarted = "OwnershipTransferStarted"
	EventOwnershipTransferred     = "OwnershipTransferred"
)

// OwnershipTransferStarted is emitted when the owner nominates a successor.
type OwnershipTransferStarted struct {
	PreviousOwner common.Address `json:"previousOwner"`
	NewOwner      common.Address `json:"newOwner"`
}

// OwnershipTransferred is emitted when the nominee accepts.
type OwnershipTransferred struct {
	PreviousOwner common.Address `json:"previousOwner"`
	NewOwner      common.Address `json:"newOwner"`
}

// Ownable holds a single owner and an optional pending owner. Ownership moves
// in two steps so that a mistyped address cannot lock the contract.
type Ownable struct {
	self    common.Address
	owner   common.Address
	pending common.Address
}

// NewOwnable creates an Ownable for the contract at self.
func NewOwnable(self, owner common.Address) Ownable {
	return Ownable{self: self, owner: owner}
}

// Owner returns the current owner.
func (o *Ownable) Owner() common.Address {
	return o.owner
}

// PendingOwner returns the nominated owner, or the zero address.
func (o *Ownable) PendingOwner() common.Address {
	return o.pending
}

// OnlyOwner fails unless the caller of tx is the owner.
func (o *Ownable) OnlyOwner(tx *chain.Tx) error {
	if tx.Caller() != o.owner {
		return ErrNotOwner
	}
	return nil
}

// TransferOwnership nominates newOwner. The nomination replaces any earlier one.
func (o *Ownable) TransferOwnership(tx *chain.Tx, newOwner common.Address) error {
	if err := o.OnlyOwner(tx); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return ErrInvalidOwner
	}

	prev := o.pending
	o.pending = newOwner
	tx.OnRevert(func() { o.pending = prev })

	tx.Emit(o.self, EventOwnershipTransferStarted, OwnershipTransferStarted{
		PreviousOwner: o.owner,
		NewOwner:      newOwner,
	})
	return nil
}

// AcceptOwnership completes a transfer started by TransferOwnership.
func (o *Ownable) AcceptOwnership(tx *chain.Tx) error {
	if o.pending == (common.Address{}) || tx.Caller() != o.pending {
		return ErrNotPendingOwner
	}

	prevOwner, prevPending := o.owner, o.pending
	o.owner = o.pending
	o.pending = common.Address{}
	tx.OnRevert(func() {
		o.owner = prevOwner
		o.pending = prevPending
	})

	tx.Emit(o.self, EventOwnershipTransferred, OwnershipTransferred{
		PreviousOwner: prevOwner,
		NewOwner:      o.owner,
	})
	return nil
}
