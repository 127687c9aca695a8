package node

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/domaguardian/domaguardian/internal/chain"
	"github.com/domaguardian/domaguardian/internal/feature"
)

type method struct {
	address common.Address
	payable bool
	run     func(tx *chain.Tx, args json.RawMessage) (any, error)
}

type ownable interface {
	Address() common.Address
	TransferOwnership(tx *chain.Tx, newOwner common.Address) error
	AcceptOwnership(tx *chain.Tx) error
}

// handle adapts a typed method to the table. Args must decode into A exactly.
func handle[A any](fn func(tx *chain.Tx, args A) (any, error)) func(*chain.Tx, json.RawMessage) (any, error) {
	return func(tx *chain.Tx, raw json.RawMessage) (any, error) {
		var args A
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return fn(tx, args)
	}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage(`{}`)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data", ErrInvalidArgs)
	}
	return nil
}

type table map[string]map[string]method

func (t table) add(contract string, addr common.Address, name string, payable bool, run func(*chain.Tx, json.RawMessage) (any, error)) {
	if t[contract] == nil {
		t[contract] = make(map[string]method)
	}
	t[contract][name] = method{address: addr, payable: payable, run: run}
}

func (t table) ownership(contract string, c ownable) {
	t.add(contract, c.Address(), MethodTransferOwnership, false,
		handle(func(tx *chain.Tx, a TransferOwnershipArgs) (any, error) {
			return nil, c.TransferOwnership(tx, a.NewOwner)
		}))
	t.add(contract, c.Address(), MethodAcceptOwnership, false,
		handle(func(tx *chain.Tx, _ struct{}) (any, error) {
			return nil, c.AcceptOwnership(tx)
		}))
}

func registerLog[P, R any](t table, l *feature.Log[P, R]) {
	contract := string(l.Kind())
	t.ownership(contract, l)
	t.add(contract, l.Address(), MethodRequest, false,
		handle(func(tx *chain.Tx, a RequestArgs[P]) (any, error) {
			index, err := l.Request(tx, a.Target, a.Params)
			if err != nil {
				return nil, err
			}
			return map[string]uint64{"index": index}, nil
		}))
	t.add(contract, l.Address(), MethodComplete, false,
		handle(func(tx *chain.Tx, a CompleteArgs[R]) (any, error) {
			return nil, l.Complete(tx, a.User, a.Index, a.Result)
		}))
}

func (n *Node) buildMethods() table {
	s := n.state
	t := make(table)

	l := s.Ledger
	t.ownership(ContractLedger, l)
	t.add(ContractLedger, l.Address(), MethodDeposit, true,
		handle(func(tx *chain.Tx, _ struct{}) (any, error) {
			return nil, l.Deposit(tx)
		}))
	t.add(ContractLedger, l.Address(), MethodSetAuthorized, false,
		handle(func(tx *chain.Tx, a SetAuthorizedArgs) (any, error) {
			return nil, l.SetAuthorized(tx, a.Spender, a.Enabled)
		}))
	t.add(ContractLedger, l.Address(), MethodDebit, false,
		handle(func(tx *chain.Tx, a DebitArgs) (any, error) {
			return nil, l.Debit(tx, a.User)
		}))
	t.add(ContractLedger, l.Address(), MethodWithdraw, false,
		handle(func(tx *chain.Tx, a WithdrawArgs) (any, error) {
			amount, err := l.Withdraw(tx, a.Amount)
			if err != nil {
				return nil, err
			}
			return map[string]string{"amount": amount.String()}, nil
		}))

	registerLog(t, s.Risk)
	registerLog(t, s.Tokenomics)
	registerLog(t, s.Sentiment)

	m := s.Monitor
	t.ownership(ContractMonitoring, m)
	t.add(ContractMonitoring, m.Address(), MethodSubscribe, false,
		handle(func(tx *chain.Tx, a SubscribeArgs) (any, error) {
			index, err := m.Subscribe(tx, a.Target, a.Threshold)
			if err != nil {
				return nil, err
			}
			return map[string]uint64{"index": index}, nil
		}))
	t.add(ContractMonitoring, m.Address(), MethodStopMonitoring, false,
		handle(func(tx *chain.Tx, a StopMonitoringArgs) (any, error) {
			return nil, m.StopMonitoring(tx, a.Index)
		}))
	t.add(ContractMonitoring, m.Address(), MethodTriggerAlert, false,
		handle(func(tx *chain.Tx, a TriggerAlertArgs) (any, error) {
			count, err := m.TriggerAlert(tx, a.Target, a.AlertKind, a.Value)
			if err != nil {
				return nil, err
			}
			return map[string]int{"alerts": count}, nil
		}))

	msg := s.Messaging
	t.ownership(ContractMessaging, msg)
	t.add(ContractMessaging, msg.Address(), MethodSendMessage, false,
		handle(func(tx *chain.Tx, a SendMessageArgs) (any, error) {
			id, err := msg.SendMessage(tx, a.Recipient, a.Text)
			if err != nil {
				return nil, err
			}
			return map[string]uint64{"id": id}, nil
		}))
	t.add(ContractMessaging, msg.Address(), MethodSendCrossChainMessage, false,
		handle(func(tx *chain.Tx, a SendCrossChainMessageArgs) (any, error) {
			id, err := msg.SendCrossChainMessage(tx, a.DestinationChainID, a.Recipient, a.Text)
			if err != nil {
				return nil, err
			}
			return map[string]uint64{"id": id}, nil
		}))

	r := s.Registry
	t.ownership(ContractRegistry, r)
	t.add(ContractRegistry, r.Address(), MethodTokenize, false,
		handle(func(tx *chain.Tx, a TokenizeArgs) (any, error) {
			return nil, r.Tokenize(tx, a.Name)
		}))
	t.add(ContractRegistry, r.Address(), MethodGrantRight, false,
		handle(func(tx *chain.Tx, a GrantRightArgs) (any, error) {
			expiresAt, err := r.GrantRight(tx, a.Name, a.Right, a.Holder, a.DurationSeconds)
			if err != nil {
				return nil, err
			}
			return map[string]int64{"expiresAt": expiresAt}, nil
		}))
	t.add(ContractRegistry, r.Address(), MethodRevokeRight, false,
		handle(func(tx *chain.Tx, a RevokeRightArgs) (any, error) {
			return nil, r.RevokeRight(tx, a.Name, a.Right)
		}))
	t.add(ContractRegistry, r.Address(), MethodTransferDomain, false,
		handle(func(tx *chain.Tx, a TransferDomainArgs) (any, error) {
			return nil, r.TransferDomain(tx, a.Name, a.NewOwner)
		}))
	t.add(ContractRegistry, r.Address(), MethodSyncActiveState, false,
		handle(func(tx *chain.Tx, a SyncActiveStateArgs) (any, error) {
			return nil, r.SyncActiveState(tx, a.Name, a.Active)
		}))

	return t
}

// Methods lists the callable methods of contract, or nil if it is unknown.
func (n *Node) Methods(contract string) []string {
	methods, ok := n.methods[contract]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
