// Package node runs the DomaGuardian contracts on a serial execution host and
// keeps them durable.
//
// Every committed call is appended to a journal before Submit returns. On
// start the journal is replayed in order to rebuild state.
package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/domaguardian/domaguardian/internal/chain"
	"github.com/domaguardian/domaguardian/internal/feature"
	"github.com/domaguardian/domaguardian/internal/ledger"
	"github.com/domaguardian/domaguardian/internal/messaging"
	"github.com/domaguardian/domaguardian/internal/monitoring"
	"github.com/domaguardian/domaguardian/internal/observability/metrics"
	"github.com/domaguardian/domaguardian/internal/registry"
	"github.com/domaguardian/domaguardian/internal/storage"
)

// Common errors returned by the node.
var (
	ErrUnknownContract = errors.New("unknown contract")
	ErrUnknownMethod   = errors.New("unknown method")
	ErrNotPayable      = errors.New("method does not accept value")
	ErrInvalidArgs     = errors.New("invalid arguments")
	ErrHalted          = errors.New("node halted after journal failure")
	ErrReplay          = errors.New("journal replay failed")
)

const replayBatchSize = 500

// persistTimeout bounds the journal write of a committed call. It no longer
// follows the caller's context.
const persistTimeout = 30 * time.Second

// Journal is the durable call log the node appends to and replays from.
type Journal interface {
	AppendCall(ctx context.Context, call *storage.CallRecord, events []storage.EventRecord) error
	ListCalls(ctx context.Context, afterSeq uint64, limit int) ([]storage.CallRecord, error)
}

// EventSink receives the events of every journaled call, in commit order.
// Publish runs off the write path, so a slow sink only delays later batches.
type EventSink interface {
	Name() string
	Publish(ctx context.Context, events []storage.EventRecord) error
}

// Config holds genesis settings.
type Config struct {
	ChainID  uint64
	Operator common.Address
	Price    *big.Int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Call is a state-changing call on a named contract.
type Call struct {
	Contract string          `json:"contract"`
	Method   string          `json:"method"`
	From     common.Address  `json:"from"`
	Value    *big.Int        `json:"value,omitempty"`
	Args     json.RawMessage `json:"args,omitempty"`
	// Time pins the call timestamp. Only set when replaying.
	Time time.Time `json:"-"`
}

// Result is the outcome of a committed call.
type Result struct {
	Receipt *chain.Receipt `json:"receipt"`
	Output  any            `json:"output,omitempty"`
}

// Node hosts the contracts.
type Node struct {
	mu      sync.Mutex
	chain   *chain.Chain
	state   *State
	methods table
	names   map[common.Address]string
	journal Journal
	pub     *publisher
	logger  *slog.Logger
	halted  error
}

// New deploys every contract at genesis. The operator owns all of them and
// every feature contract is an authorized ledger spender. A nil journal keeps
// state in memory only.
func New(cfg Config, journal Journal, logger *slog.Logger, sinks ...EventSink) (*Node, error) {
	if cfg.Operator == (common.Address{}) {
		return nil, errors.New("operator address is required")
	}
	if cfg.Price == nil || cfg.Price.Sign() <= 0 {
		return nil, errors.New("feature price must be positive")
	}

	c := chain.New(chain.Config{ChainID: cfg.ChainID, Clock: cfg.Clock})
	op := cfg.Operator

	ledgerAddr := c.Deploy(op)
	riskAddr := c.Deploy(op)
	tokenomicsAddr := c.Deploy(op)
	sentimentAddr := c.Deploy(op)
	monitorAddr := c.Deploy(op)
	messagingAddr := c.Deploy(op)
	registryAddr := c.Deploy(op)

	l := ledger.New(ledgerAddr, op, cfg.Price,
		riskAddr, tokenomicsAddr, sentimentAddr, monitorAddr, messagingAddr, registryAddr)

	st := &State{
		ChainID:    cfg.ChainID,
		Ledger:     l,
		Risk:       feature.NewLog[feature.RiskParams, feature.RiskResult](feature.KindContractRisk, riskAddr, op, l),
		Tokenomics: feature.NewLog[feature.TokenomicsParams, feature.TokenomicsResult](feature.KindTokenomics, tokenomicsAddr, op, l),
		Sentiment:  feature.NewLog[feature.SentimentParams, feature.SentimentResult](feature.KindSocialSentiment, sentimentAddr, op, l),
		Monitor:    monitoring.New(monitorAddr, op, l),
		Messaging:  messaging.New(messagingAddr, op, l),
		Registry:   registry.New(registryAddr, op, l),
	}

	n := &Node{
		chain:   c,
		state:   st,
		journal: journal,
		logger:  logger,
	}
	if len(sinks) > 0 {
		n.pub = newPublisher(sinks, logger)
	}
	n.methods = n.buildMethods()
	n.names = make(map[common.Address]string)
	for _, ct := range st.Contracts() {
		n.names[ct.Address] = ct.Name
	}
	return n, nil
}

// ChainID returns the host chain id.
func (n *Node) ChainID() uint64 {
	return n.chain.ID()
}

// Seq returns the number of committed calls.
func (n *Node) Seq() uint64 {
	return n.chain.Seq()
}

// Halted returns the journal error that halted the node, if any.
func (n *Node) Halted() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.halted
}

// Read runs fn with a consistent view of every contract. fn must not retain
// the state or call Submit.
func (n *Node) Read(fn func(s *State)) {
	n.chain.View(func() {
		n.state.Now = n.chain.Now()
		fn(n.state)
	})
}

// Submit executes call, journals it, and fans its events out to the sinks.
func (n *Node) Submit(ctx context.Context, call Call) (*Result, error) {
	start := time.Now()
	res, err := n.submit(ctx, call)
	metrics.ContractCall(call.Contract, call.Method, callStatus(err), time.Since(start))
	return res, err
}

func (n *Node) submit(ctx context.Context, call Call) (*Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.halted != nil {
		return nil, ErrHalted
	}
	// Journals keep microsecond precision.
	call.Time = n.chain.Now().UTC().Truncate(time.Microsecond)

	res, err := n.apply(ctx, call)
	if err != nil {
		return nil, err
	}

	// State has changed. A canceled request must not stop the call from
	// being journaled.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	record, events := n.records(call, res.Receipt)
	if n.journal != nil {
		if err := n.journal.AppendCall(persistCtx, record, events); err != nil {
			n.halted = err
			metrics.JournalHalted()
			n.logger.Error("journal append failed, halting writes", "seq", record.Seq, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrHalted, err)
		}
	}

	for _, ev := range events {
		metrics.ContractEvent(ev.Contract, ev.Name)
	}
	n.publish(events)
	return res, nil
}

// apply runs call on the host without journaling it.
func (n *Node) apply(ctx context.Context, call Call) (*Result, error) {
	m, to, err := n.lookup(call.Contract, call.Method)
	if err != nil {
		return nil, err
	}
	if !m.payable && call.Value != nil && call.Value.Sign() != 0 {
		return nil, ErrNotPayable
	}

	var output any
	receipt, err := n.chain.Execute(ctx, chain.Msg{
		From:  call.From,
		To:    to,
		Value: call.Value,
		Time:  call.Time,
	}, func(tx *chain.Tx) error {
		var err error
		output, err = m.run(tx, call.Args)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Result{Receipt: receipt, Output: output}, nil
}

func (n *Node) lookup(contract, name string) (method, common.Address, error) {
	methods, ok := n.methods[contract]
	if !ok {
		return method{}, common.Address{}, fmt.Errorf("%w: %q", ErrUnknownContract, contract)
	}
	m, ok := methods[name]
	if !ok {
		return method{}, common.Address{}, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, contract, name)
	}
	return m, m.address, nil
}

func (n *Node) records(call Call, r *chain.Receipt) (*storage.CallRecord, []storage.EventRecord) {
	args := call.Args
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	record := &storage.CallRecord{
		Seq:      r.Seq,
		Hash:     r.Hash.Hex(),
		Contract: call.Contract,
		Method:   call.Method,
		From:     call.From.Hex(),
		Value:    r.Value.String(),
		Args:     args,
		Time:     r.Time,
	}

	events := make([]storage.EventRecord, len(r.Events))
	for i, ev := range r.Events {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			// Event payloads are plain structs.
			data = json.RawMessage(`null`)
		}
		events[i] = storage.EventRecord{
			Seq:      ev.Seq,
			TxSeq:    r.Seq,
			Index:    ev.Index,
			Contract: n.names[ev.Contract],
			Name:     ev.Name,
			Data:     data,
			Time:     r.Time,
		}
	}
	return record, events
}

func (n *Node) publish(events []storage.EventRecord) {
	if n.pub == nil || len(events) == 0 {
		return
	}
	n.pub.enqueue(events)
}

// Flush waits until the events of every call committed so far have been
// handed to the sinks.
func (n *Node) Flush(ctx context.Context) error {
	if n.pub == nil {
		return nil
	}
	return n.pub.flush(ctx)
}

// Close stops publishing and waits for queued events to reach the sinks.
// Calls committed after Close are still journaled but not published.
func (n *Node) Close(ctx context.Context) error {
	if n.pub == nil {
		return nil
	}
	return n.pub.close(ctx)
}

// Replay rebuilds state from the journal and returns the number of calls
// applied. It must run before the first Submit.
func (n *Node) Replay(ctx context.Context) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.journal == nil {
		return 0, nil
	}
	if seq := n.chain.Seq(); seq != 0 {
		return 0, fmt.Errorf("%w: node already has %d calls", ErrReplay, seq)
	}

	applied := 0
	var after uint64
	for {
		batch, err := n.journal.ListCalls(ctx, after, replayBatchSize)
		if err != nil {
			return applied, fmt.Errorf("reading journal: %w", err)
		}
		for _, rec := range batch {
			if err := n.replayOne(ctx, rec); err != nil {
				return applied, err
			}
			after = rec.Seq
			applied++
		}
		if len(batch) < replayBatchSize {
			return applied, nil
		}
	}
}

func (n *Node) replayOne(ctx context.Context, rec storage.CallRecord) error {
	value, ok := new(big.Int).SetString(rec.Value, 10)
	if !ok {
		return fmt.Errorf("%w: call %d has invalid value %q", ErrReplay, rec.Seq, rec.Value)
	}
	if !common.IsHexAddress(rec.From) {
		return fmt.Errorf("%w: call %d has invalid sender %q", ErrReplay, rec.Seq, rec.From)
	}

	res, err := n.apply(ctx, Call{
		Contract: rec.Contract,
		Method:   rec.Method,
		From:     common.HexToAddress(rec.From),
		Value:    value,
		Args:     rec.Args,
		Time:     rec.Time,
	})
	if err != nil {
		return fmt.Errorf("%w: call %d (%s.%s): %v", ErrReplay, rec.Seq, rec.Contract, rec.Method, err)
	}
	if res.Receipt.Seq != rec.Seq || res.Receipt.Hash.Hex() != rec.Hash {
		return fmt.Errorf("%w: call %d produced seq %d hash %s, journal has %s",
			ErrReplay, rec.Seq, res.Receipt.Seq, res.Receipt.Hash.Hex(), rec.Hash)
	}
	return nil
}

func callStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
