package ledger

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/domaguardian/domaguardian/internal/chain"
)

// ErrNoCredit is returned by feature contracts when the caller has not
// prepaid for a feature use.
var ErrNoCredit = errors.New("no credit")

// EventPaymentReceived is emitted by a feature contract when it charges a
// caller.
const EventPaymentReceived = "PaymentReceived"

// PaymentReceived is the payload of EventPaymentReceived.
type PaymentReceived struct {
	User   common.Address `json:"user"`
	Amount *big.Int       `json:"amount"`
}

// Gate charges callers of a feature contract against the ledger. The
// contract at self must be an authorized spender.
type Gate struct {
	ledger *Ledger
	self   common.Address
}

// NewGate creates a gate for the feature contract at self.
func NewGate(l *Ledger, self common.Address) Gate {
	return Gate{ledger: l, self: self}
}

// Ledger returns the address of the ledger the gate charges.
func (g Gate) Ledger() common.Address {
	return g.ledger.Address()
}

// Price returns the cost of one feature use.
func (g Gate) Price() *big.Int {
	return g.ledger.Price()
}

// Require fails with ErrNoCredit unless user can pay for one use.
func (g Gate) Require(user common.Address) error {
	if !g.ledger.HasCredit(user) {
		return ErrNoCredit
	}
	return nil
}

// Charge debits one feature price from the caller of tx, with the feature
// contract as spender, and returns the amount charged.
func (g Gate) Charge(tx *chain.Tx) (*big.Int, error) {
	user := tx.Caller()
	if err := g.Require(user); err != nil {
		return nil, err
	}
	err := tx.Call(g.self, func(sub *chain.Tx) error {
		return g.ledger.Debit(sub, user)
	})
	if err != nil {
		return nil, err
	}

	amount := g.ledger.Price()
	tx.Emit(g.self, EventPaymentReceived, PaymentReceived{
		User:   user,
		Amount: new(big.Int).Set(amount),
	})
	return amount, nil
}
