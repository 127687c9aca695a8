// Package feature provides the paid request/complete log shared by the
// analysis features.
//
// A caller pays one feature price to append a pending record. The off-chain
// result is attached later by the contract owner, exactly once.
package feature

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/domaguardian/domaguardian/internal/access"
	"github.com/domaguardian/domaguardian/internal/chain"
	"github.com/domaguardian/domaguardian/internal/ledger"
)

// Common errors returned by feature logs.
var (
	ErrInvalidTarget    = errors.New("invalid target")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrAlreadyCompleted = errors.New("already completed")
)

// Event names.
const (
	EventRequestSubmitted = "RequestSubmitted"
	EventRequestCompleted = "RequestCompleted"
)

// Record is one feature invocation.
type Record[P, R any] struct {
	Index       uint64         `json:"index"`
	Requester   common.Address `json:"requester"`
	Target      string         `json:"target"`
	Params      P              `json:"params"`
	Payment     *big.Int       `json:"payment"`
	Completed   bool           `json:"completed"`
	Result      R              `json:"result"`
	CreatedAt   int64          `json:"createdAt"`
	CompletedAt int64          `json:"completedAt,omitempty"`
}

// RequestSubmitted is emitted when a record is appended.
type RequestSubmitted[P any] struct {
	Kind   Kind           `json:"kind"`
	User   common.Address `json:"user"`
	Index  uint64         `json:"index"`
	Target string         `json:"target"`
	Params P              `json:"params"`
}

// RequestCompleted is emitted when the owner attaches a result.
type RequestCompleted[R any] struct {
	Kind   Kind           `json:"kind"`
	User   common.Address `json:"user"`
	Index  uint64         `json:"index"`
	Result R              `json:"result"`
}

type ref struct {
	user  common.Address
	index uint64
}

// Log is a feature request log with request parameters P and result R.
type Log[P, R any] struct {
	access.Ownable

	kind    Kind
	addr    common.Address
	gate    ledger.Gate
	records map[common.Address][]Record[P, R]
	order   []ref
}

// NewLog creates a log of the given kind deployed at addr, charging through l.
func NewLog[P, R any](kind Kind, addr, owner common.Address, l *ledger.Ledger) *Log[P, R] {
	return &Log[P, R]{
		Ownable: access.NewOwnable(addr, owner),
		kind:    kind,
		addr:    addr,
		gate:    ledger.NewGate(l, addr),
		records: make(map[common.Address][]Record[P, R]),
	}
}

// Kind returns the feature kind.
func (l *Log[P, R]) Kind() Kind { return l.kind }

// Address returns the contract address.
func (l *Log[P, R]) Address() common.Address { return l.addr }

// Ledger returns the address of the payment ledger.
func (l *Log[P, R]) Ledger() common.Address { return l.gate.Ledger() }

// Price returns the cost of one request.
func (l *Log[P, R]) Price() *big.Int { return l.gate.Price() }

// Request charges the caller and appends a pending record for target. It
// returns the index of the new record in the caller's list.
func (l *Log[P, R]) Request(tx *chain.Tx, target string, params P) (uint64, error) {
	user := tx.Caller()
	if err := l.gate.Require(user); err != nil {
		return 0, err
	}
	if target == "" {
		return 0, ErrInvalidTarget
	}

	paid, err := l.gate.Charge(tx)
	if err != nil {
		return 0, err
	}

	index := uint64(len(l.records[user]))
	l.records[user] = append(l.records[user], Record[P, R]{
		Index:     index,
		Requester: user,
		Target:    target,
		Params:    params,
		Payment:   paid,
		CreatedAt: tx.Now().Unix(),
	})
	l.order = append(l.order, ref{user: user, index: index})
	tx.OnRevert(func() {
		l.records[user] = l.records[user][:index]
		if index == 0 {
			delete(l.records, user)
		}
		l.order = l.order[:len(l.order)-1]
	})

	tx.Emit(l.addr, EventRequestSubmitted, RequestSubmitted[P]{
		Kind:   l.kind,
		User:   user,
		Index:  index,
		Target: target,
		Params: params,
	})
	return index, nil
}

// Complete attaches result to the record at index in user's list.
func (l *Log[P, R]) Complete(tx *chain.Tx, user common.Address, index uint64, result R) error {
	if err := l.OnlyOwner(tx); err != nil {
		return err
	}
	list := l.records[user]
	if index >= uint64(len(list)) {
		return ErrIndexOutOfRange
	}
	rec := &list[index]
	if rec.Completed {
		return ErrAlreadyCompleted
	}

	prev := *rec
	rec.Completed = true
	rec.Result = result
	rec.CompletedAt = tx.Now().Unix()
	tx.OnRevert(func() { l.records[user][index] = prev })

	tx.Emit(l.addr, EventRequestCompleted, RequestCompleted[R]{
		Kind:   l.kind,
		User:   user,
		Index:  index,
		Result: result,
	})
	return nil
}

// Records returns every record of user, oldest first.
func (l *Log[P, R]) Records(user common.Address) []Record[P, R] {
	list := l.records[user]
	out := make([]Record[P, R], len(list))
	copy(out, list)
	return out
}

// Record returns the record at index in user's list.
func (l *Log[P, R]) Record(user common.Address, index uint64) (Record[P, R], error) {
	list := l.records[user]
	if index >= uint64(len(list)) {
		return Record[P, R]{}, ErrIndexOutOfRange
	}
	return list[index], nil
}

// Pending returns every record still awaiting a result, in submission order.
func (l *Log[P, R]) Pending() []Record[P, R] {
	out := make([]Record[P, R], 0)
	for _, r := range l.order {
		rec := l.records[r.user][r.index]
		if !rec.Completed {
			out = append(out, rec)
		}
	}
	return out
}
