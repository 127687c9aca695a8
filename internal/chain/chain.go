// Package chain provides the serial execution host that the DomaGuardian
// contracts run in.
//
// Every state-changing call runs inside Execute while holding a single global
// lock, so no two calls ever interleave. A call either commits completely or
// leaves no trace: buffered events are dropped, attached value is returned and
// every mutation registered with Tx.OnRevert is undone.
package chain

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Common errors returned by the host.
var (
	ErrReentrant           = errors.New("reentrant call")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidValue        = errors.New("invalid value")
)

// Config holds host settings.
type Config struct {
	ChainID uint64
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Receiver is invoked when currency is transferred to an address that
// registered one. The Tx passed in has the receiving address as caller, so a
// receiver can call back into contracts.
type Receiver func(tx *Tx, from common.Address, amount *big.Int) error

// Msg is a top-level call submitted to the host.
type Msg struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	// Time overrides the host clock for this call. Used when replaying the
	// journal.
	Time time.Time
}

// Event is a structured notification emitted by a contract.
type Event struct {
	Seq      uint64         `json:"seq"`
	Index    int            `json:"index"`
	Contract common.Address `json:"contract"`
	Name     string         `json:"name"`
	Data     any            `json:"data"`
}

// Receipt describes a committed call.
type Receipt struct {
	Seq    uint64         `json:"seq"`
	Hash   common.Hash    `json:"hash"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Value  *big.Int       `json:"value"`
	Time   time.Time      `json:"time"`
	Events []Event        `json:"events"`
}

// Chain is the serial execution host.
type Chain struct {
	mu        sync.Mutex
	id        uint64
	clock     func() time.Time
	balances  map[common.Address]*big.Int
	receivers map[common.Address]Receiver
	nonces    map[common.Address]uint64
	seq       uint64
	eventSeq  uint64
}

// New creates a new host.
func New(cfg Config) *Chain {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Chain{
		id:        cfg.ChainID,
		clock:     clock,
		balances:  make(map[common.Address]*big.Int),
		receivers: make(map[common.Address]Receiver),
		nonces:    make(map[common.Address]uint64),
	}
}

// ID returns the chain id.
func (c *Chain) ID() uint64 {
	return c.id
}

// Now returns the host clock time.
func (c *Chain) Now() time.Time {
	return c.clock()
}

// Seq returns the number of committed calls.
func (c *Chain) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Deploy reserves a new contract address for deployer, derived the same way
// CREATE derives addresses on an EVM chain.
func (c *Chain) Deploy(deployer common.Address) common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce := c.nonces[deployer]
	c.nonces[deployer] = nonce + 1
	return crypto.CreateAddress(deployer, nonce)
}

// SetReceiver registers a receiver hook for addr. A nil receiver removes it.
func (c *Chain) SetReceiver(addr common.Address, r Receiver) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r == nil {
		delete(c.receivers, addr)
		return
	}
	c.receivers[addr] = r
}

// BalanceOf returns the native currency balance of addr.
func (c *Chain) BalanceOf(addr common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balance(addr))
}

// View runs fn while holding the call lock. Contract queries must run inside
// View or Execute.
func (c *Chain) View(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// Execute runs fn as a single atomic call.
func (c *Chain) Execute(ctx context.Context, msg Msg, fn func(tx *Tx) error) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value := new(big.Int)
	if msg.Value != nil {
		if msg.Value.Sign() < 0 {
			return nil, ErrInvalidValue
		}
		value.Set(msg.Value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := msg.Time
	if now.IsZero() {
		now = c.clock()
	}
	st := &state{chain: c, now: now}
	tx := &Tx{state: st, caller: msg.From, value: value}

	// Attached value is held by the callee for the duration of the call.
	if value.Sign() > 0 {
		to := msg.To
		c.add(to, value)
		st.undo = append(st.undo, func() { c.sub(to, value) })
	}

	if err := fn(tx); err != nil {
		st.revertTo(snapshot{})
		return nil, err
	}

	c.seq++
	receipt := &Receipt{
		Seq:    c.seq,
		Hash:   txHash(c.seq, msg.From, msg.To, value, now),
		From:   msg.From,
		To:     msg.To,
		Value:  value,
		Time:   now,
		Events: make([]Event, len(st.events)),
	}
	for i, ev := range st.events {
		c.eventSeq++
		ev.Seq = c.eventSeq
		ev.Index = i
		receipt.Events[i] = ev
	}
	return receipt, nil
}

func (c *Chain) balance(addr common.Address) *big.Int {
	if b, ok := c.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (c *Chain) add(addr common.Address, amount *big.Int) {
	c.balances[addr] = new(big.Int).Add(c.balance(addr), amount)
}

func (c *Chain) sub(addr common.Address, amount *big.Int) {
	c.balances[addr] = new(big.Int).Sub(c.balance(addr), amount)
}

func txHash(seq uint64, from, to common.Address, value *big.Int, at time.Time) common.Hash {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], seq)
	binary.BigEndian.PutUint64(buf[8:], uint64(at.UnixNano()))
	return crypto.Keccak256Hash(buf[:], from.Bytes(), to.Bytes(), value.Bytes())
}

// state is shared by every frame of one top-level call.
type state struct {
	chain  *Chain
	now    time.Time
	events []Event
	undo   []func()
}

type snapshot struct {
	events int
	undo   int
}

func (s *state) snapshot() snapshot {
	return snapshot{events: len(s.events), undo: len(s.undo)}
}

func (s *state) revertTo(snap snapshot) {
	for i := len(s.undo) - 1; i >= snap.undo; i-- {
		s.undo[i]()
	}
	s.undo = s.undo[:snap.undo]
	s.events = s.events[:snap.events]
}

// Tx is one call frame.
type Tx struct {
	state  *state
	caller common.Address
	value  *big.Int
}

// Caller returns the authenticated caller of this frame.
func (tx *Tx) Caller() common.Address {
	return tx.caller
}

// Value returns the currency attached to this frame.
func (tx *Tx) Value() *big.Int {
	return new(big.Int).Set(tx.value)
}

// Now returns the timestamp of the enclosing call.
func (tx *Tx) Now() time.Time {
	return tx.state.now
}

// ChainID returns the host chain id.
func (tx *Tx) ChainID() uint64 {
	return tx.state.chain.id
}

// BalanceOf returns the currency balance of addr.
func (tx *Tx) BalanceOf(addr common.Address) *big.Int {
	return new(big.Int).Set(tx.state.chain.balance(addr))
}

// Emit buffers an event. It is published only if the call commits.
func (tx *Tx) Emit(contract common.Address, name string, data any) {
	tx.state.events = append(tx.state.events, Event{
		Contract: contract,
		Name:     name,
		Data:     data,
	})
}

// OnRevert registers fn to undo a mutation if the enclosing frame fails.
func (tx *Tx) OnRevert(fn func()) {
	tx.state.undo = append(tx.state.undo, fn)
}

// Call runs fn in a nested frame whose caller is from. If fn fails, every
// effect made inside the frame is reverted before the error is returned.
func (tx *Tx) Call(from common.Address, fn func(sub *Tx) error) error {
	snap := tx.state.snapshot()
	sub := &Tx{state: tx.state, caller: from, value: new(big.Int)}
	if err := fn(sub); err != nil {
		tx.state.revertTo(snap)
		return err
	}
	return nil
}

// Transfer moves amount of currency from one address to another. The balance
// change is applied before the receiver hook of to runs.
func (tx *Tx) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidValue
	}
	c := tx.state.chain
	if c.balance(from).Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from.Hex(), c.balance(from), amount)
	}

	amt := new(big.Int).Set(amount)
	return tx.Call(from, func(sub *Tx) error {
		c.sub(from, amt)
		c.add(to, amt)
		sub.OnRevert(func() {
			c.sub(to, amt)
			c.add(from, amt)
		})

		hook, ok := c.receivers[to]
		if !ok {
			return nil
		}
		return sub.Call(to, func(recv *Tx) error {
			return hook(recv, from, new(big.Int).Set(amt))
		})
	})
}

// Guard is a scoped reentrancy lock. The zero value is unlocked.
//
//	if err := g.Enter(); err != nil {
//		return err
//	}
//	defer g.Exit()
type Guard struct {
	entered bool
}

// Enter marks the guarded section as in progress.
func (g *Guard) Enter() error {
	if g.entered {
		return ErrReentrant
	}
	g.entered = true
	return nil
}

// Exit releases the guard.
func (g *Guard) Exit() {
	g.entered = false
}
