// Package ledger implements the payment-credit ledger that gates every paid
// feature.
//
// Users buy credit one feature price at a time. Authorized spender contracts
// debit that credit when a feature is used. The currency captured at deposit
// time is tracked separately and can only leave through Withdraw.
package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/domaguardian/domaguardian/internal/access"
	"github.com/domaguardian/domaguardian/internal/chain"
)

// Common errors returned by the ledger.
var (
	ErrWrongAmount        = errors.New("payment must equal the feature price")
	ErrNotAuthorized      = errors.New("spender not authorized")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidSpender     = errors.New("invalid spender")
)

// Event names.
const (
	EventDeposited            = "Deposited"
	EventAuthorizationChanged = "AuthorizationChanged"
	EventCreditUsed           = "CreditUsed"
	EventWithdrawn            = "Withdrawn"
)

// Deposited is emitted when a user buys credit.
type Deposited struct {
	User    common.Address `json:"user"`
	Amount  *big.Int       `json:"amount"`
	Balance *big.Int       `json:"balance"`
}

// AuthorizationChanged is emitted when the spender allow-list changes.
type AuthorizationChanged struct {
	Spender common.Address `json:"spender"`
	Enabled bool           `json:"enabled"`
}

// CreditUsed is emitted on every successful debit.
type CreditUsed struct {
	User    common.Address `json:"user"`
	Spender common.Address `json:"spender"`
	Amount  *big.Int       `json:"amount"`
	Balance *big.Int       `json:"balance"`
	Usage   uint64         `json:"usage"`
}

// Withdrawn is emitted when the owner takes out held currency.
type Withdrawn struct {
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

// Reconciliation compares outstanding credit against held currency.
type Reconciliation struct {
	Outstanding *big.Int `json:"outstanding"`
	Held        *big.Int `json:"held"`
	Shortfall   *big.Int `json:"shortfall"`
}

// Balanced reports whether held currency covers every outstanding credit.
func (r Reconciliation) Balanced() bool {
	return r.Shortfall.Sign() == 0
}

// Ledger is the payment-credit contract.
type Ledger struct {
	access.Ownable

	addr       common.Address
	price      *big.Int
	held       *big.Int
	credits    map[common.Address]*big.Int
	usage      map[common.Address]uint64
	authorized map[common.Address]bool
	guard      chain.Guard
}

// New creates a ledger deployed at addr with the given feature price in wei.
// The spenders are authorized from the start.
func New(addr, owner common.Address, price *big.Int, spenders ...common.Address) *Ledger {
	l := &Ledger{
		Ownable:    access.NewOwnable(addr, owner),
		addr:       addr,
		price:      new(big.Int).Set(price),
		held:       new(big.Int),
		credits:    make(map[common.Address]*big.Int),
		usage:      make(map[common.Address]uint64),
		authorized: make(map[common.Address]bool),
	}
	for _, s := range spenders {
		l.setAuthorized(s, true)
	}
	return l
}

// Address returns the contract address.
func (l *Ledger) Address() common.Address {
	return l.addr
}

// Deposit credits the caller with one feature price. The attached value must
// equal the price exactly.
func (l *Ledger) Deposit(tx *chain.Tx) error {
	if err := l.guard.Enter(); err != nil {
		return err
	}
	defer l.guard.Exit()

	if tx.Value().Cmp(l.price) != 0 {
		return fmt.Errorf("%w: sent %s wei, price is %s wei", ErrWrongAmount, tx.Value(), l.price)
	}

	user := tx.Caller()
	prev := l.credits[user]
	balance := new(big.Int).Add(l.CreditBalance(user), l.price)
	l.credits[user] = balance
	l.held.Add(l.held, l.price)
	tx.OnRevert(func() {
		l.held.Sub(l.held, l.price)
		if prev == nil {
			delete(l.credits, user)
			return
		}
		l.credits[user] = prev
	})

	tx.Emit(l.addr, EventDeposited, Deposited{
		User:    user,
		Amount:  new(big.Int).Set(l.price),
		Balance: new(big.Int).Set(balance),
	})
	return nil
}

// SetAuthorized adds or removes spender from the allow-list.
func (l *Ledger) SetAuthorized(tx *chain.Tx, spender common.Address, enabled bool) error {
	if err := l.OnlyOwner(tx); err != nil {
		return err
	}
	if spender == (common.Address{}) {
		return ErrInvalidSpender
	}

	prev := l.authorized[spender]
	l.setAuthorized(spender, enabled)
	tx.OnRevert(func() { l.setAuthorized(spender, prev) })

	tx.Emit(l.addr, EventAuthorizationChanged, AuthorizationChanged{
		Spender: spender,
		Enabled: enabled,
	})
	return nil
}

func (l *Ledger) setAuthorized(spender common.Address, enabled bool) {
	if enabled {
		l.authorized[spender] = true
		return
	}
	delete(l.authorized, spender)
}

// Debit consumes one feature price of user's credit. Only allow-listed
// spenders may debit. No currency moves here.
func (l *Ledger) Debit(tx *chain.Tx, user common.Address) error {
	if err := l.guard.Enter(); err != nil {
		return err
	}
	defer l.guard.Exit()

	spender := tx.Caller()
	if !l.authorized[spender] {
		return ErrNotAuthorized
	}
	prev := l.credits[user]
	if prev == nil || prev.Cmp(l.price) < 0 {
		return ErrInsufficientCredit
	}

	balance := new(big.Int).Sub(prev, l.price)
	l.credits[user] = balance
	l.usage[user]++
	usage := l.usage[user]
	tx.OnRevert(func() {
		l.credits[user] = prev
		l.usage[user]--
		if l.usage[user] == 0 {
			delete(l.usage, user)
		}
	})

	tx.Emit(l.addr, EventCreditUsed, CreditUsed{
		User:    user,
		Spender: spender,
		Amount:  new(big.Int).Set(l.price),
		Balance: new(big.Int).Set(balance),
		Usage:   usage,
	})
	return nil
}

// Withdraw sends held currency to the owner. A nil or zero amount withdraws
// everything held. The held balance is reduced before the transfer runs.
func (l *Ledger) Withdraw(tx *chain.Tx, amount *big.Int) (*big.Int, error) {
	if err := l.guard.Enter(); err != nil {
		return nil, err
	}
	defer l.guard.Exit()

	if err := l.OnlyOwner(tx); err != nil {
		return nil, err
	}

	want := new(big.Int)
	if amount != nil {
		want.Set(amount)
	}
	if want.Sign() == 0 {
		want.Set(l.held)
	}
	if want.Sign() <= 0 || want.Cmp(l.held) > 0 {
		return nil, fmt.Errorf("%w: requested %s wei, held %s wei", ErrInvalidAmount, want, l.held)
	}

	l.held.Sub(l.held, want)
	tx.OnRevert(func() { l.held.Add(l.held, want) })

	to := tx.Caller()
	if err := tx.Transfer(l.addr, to, want); err != nil {
		return nil, fmt.Errorf("transferring to owner: %w", err)
	}

	tx.Emit(l.addr, EventWithdrawn, Withdrawn{
		To:     to,
		Amount: new(big.Int).Set(want),
	})
	return want, nil
}

// IsAuthorized reports whether spender may debit credit.
func (l *Ledger) IsAuthorized(spender common.Address) bool {
	return l.authorized[spender]
}

// HasCredit reports whether user can pay for one feature use.
func (l *Ledger) HasCredit(user common.Address) bool {
	return l.CreditBalance(user).Cmp(l.price) >= 0
}

// CreditBalance returns user's prepaid credit in wei.
func (l *Ledger) CreditBalance(user common.Address) *big.Int {
	if b, ok := l.credits[user]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// UsageCount returns how many features user has paid for.
func (l *Ledger) UsageCount(user common.Address) uint64 {
	return l.usage[user]
}

// Price returns the fixed feature price in wei.
func (l *Ledger) Price() *big.Int {
	return new(big.Int).Set(l.price)
}

// HeldCurrency returns the currency the ledger currently holds.
func (l *Ledger) HeldCurrency() *big.Int {
	return new(big.Int).Set(l.held)
}

// Reconcile sums every outstanding credit and compares it to held currency.
func (l *Ledger) Reconcile() Reconciliation {
	outstanding := new(big.Int)
	for _, b := range l.credits {
		outstanding.Add(outstanding, b)
	}
	shortfall := new(big.Int).Sub(outstanding, l.held)
	if shortfall.Sign() < 0 {
		shortfall.SetInt64(0)
	}
	return Reconciliation{
		Outstanding: outstanding,
		Held:        new(big.Int).Set(l.held),
		Shortfall:   shortfall,
	}
}
