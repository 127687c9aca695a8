// Package monitoring implements paid monitoring subscriptions with
// operator-triggered alert fan-out.
package monitoring

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/domaguardian/domaguardian/internal/access"
	"github.com/domaguardian/domaguardian/internal/chain"
	"github.com/domaguardian/domaguardian/internal/ledger"
)

// Common errors returned by the monitoring contract.
var (
	ErrInvalidTarget    = errors.New("invalid target")
	ErrInvalidAlertKind = errors.New("invalid alert kind")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrAlreadyInactive  = errors.New("subscription already inactive")
)

// Event names.
const (
	EventMonitoringStarted = "MonitoringStarted"
	EventMonitoringStopped = "MonitoringStopped"
	EventAlertTriggered    = "AlertTriggered"
)

// Subscription is one paid monitoring request.
type Subscription struct {
	Index      uint64         `json:"index"`
	Owner      common.Address `json:"owner"`
	Target     string         `json:"target"`
	Threshold  int64          `json:"threshold"`
	Active     bool           `json:"active"`
	AlertCount uint64         `json:"alertCount"`
	Payment    *big.Int       `json:"payment"`
	CreatedAt  int64          `json:"createdAt"`
}

// MonitoringStarted is emitted when a subscription is created.
type MonitoringStarted struct {
	User      common.Address `json:"user"`
	Index     uint64         `json:"index"`
	Target    string         `json:"target"`
	Threshold int64          `json:"threshold"`
}

// MonitoringStopped is emitted when a subscriber unsubscribes.
type MonitoringStopped struct {
	User   common.Address `json:"user"`
	Index  uint64         `json:"index"`
	Target string         `json:"target"`
}

// AlertTriggered is emitted once per matching active subscription.
type AlertTriggered struct {
	Subscriber       common.Address `json:"subscriber"`
	Index            uint64         `json:"index"`
	Target           string         `json:"target"`
	AlertKind        string         `json:"alertKind"`
	Value            int64          `json:"value"`
	Threshold        int64          `json:"threshold"`
	ThresholdReached bool           `json:"thresholdReached"`
	AlertCount       uint64         `json:"alertCount"`
}

// Monitor is the monitoring contract.
type Monitor struct {
	access.Ownable

	addr          common.Address
	gate          ledger.Gate
	subscriptions map[common.Address][]Subscription
	subscribers   map[string][]common.Address
}

// New creates a monitoring contract deployed at addr.
func New(addr, owner common.Address, l *ledger.Ledger) *Monitor {
	return &Monitor{
		Ownable:       access.NewOwnable(addr, owner),
		addr:          addr,
		gate:          ledger.NewGate(l, addr),
		subscriptions: make(map[common.Address][]Subscription),
		subscribers:   make(map[string][]common.Address),
	}
}

// Address returns the contract address.
func (m *Monitor) Address() common.Address { return m.addr }

// Ledger returns the address of the payment ledger.
func (m *Monitor) Ledger() common.Address { return m.gate.Ledger() }

// Price returns the cost of one subscription.
func (m *Monitor) Price() *big.Int { return m.gate.Price() }

// Subscribe charges the caller and opens an active subscription on target.
func (m *Monitor) Subscribe(tx *chain.Tx, target string, threshold int64) (uint64, error) {
	user := tx.Caller()
	if err := m.gate.Require(user); err != nil {
		return 0, err
	}
	if target == "" {
		return 0, ErrInvalidTarget
	}

	paid, err := m.gate.Charge(tx)
	if err != nil {
		return 0, err
	}

	index := uint64(len(m.subscriptions[user]))
	m.subscriptions[user] = append(m.subscriptions[user], Subscription{
		Index:     index,
		Owner:     user,
		Target:    target,
		Threshold: threshold,
		Active:    true,
		Payment:   paid,
		CreatedAt: tx.Now().Unix(),
	})
	m.subscribers[target] = append(m.subscribers[target], user)
	tx.OnRevert(func() {
		m.subscriptions[user] = m.subscriptions[user][:index]
		if index == 0 {
			delete(m.subscriptions, user)
		}
		subs := m.subscribers[target]
		m.subscribers[target] = subs[:len(subs)-1]
		if len(subs) == 1 {
			delete(m.subscribers, target)
		}
	})

	tx.Emit(m.addr, EventMonitoringStarted, MonitoringStarted{
		User:      user,
		Index:     index,
		Target:    target,
		Threshold: threshold,
	})
	return index, nil
}

// StopMonitoring deactivates the caller's subscription at index. A stopped
// subscription cannot be reactivated.
func (m *Monitor) StopMonitoring(tx *chain.Tx, index uint64) error {
	user := tx.Caller()
	list := m.subscriptions[user]
	if index >= uint64(len(list)) {
		return ErrIndexOutOfRange
	}
	sub := &list[index]
	if !sub.Active {
		return ErrAlreadyInactive
	}

	sub.Active = false
	tx.OnRevert(func() { m.subscriptions[user][index].Active = true })

	tx.Emit(m.addr, EventMonitoringStopped, MonitoringStopped{
		User:   user,
		Index:  index,
		Target: sub.Target,
	})
	return nil
}

// TriggerAlert raises an alert on every active subscription to target and
// returns how many subscriptions were notified.
func (m *Monitor) TriggerAlert(tx *chain.Tx, target, alertKind string, value int64) (int, error) {
	if err := m.OnlyOwner(tx); err != nil {
		return 0, err
	}
	if target == "" {
		return 0, ErrInvalidTarget
	}
	if alertKind == "" {
		return 0, ErrInvalidAlertKind
	}

	// A subscriber appears once per subscription in the index.
	seen := make(map[common.Address]bool)
	raised := 0
	for _, user := range m.subscribers[target] {
		if seen[user] {
			continue
		}
		seen[user] = true

		list := m.subscriptions[user]
		for i := range list {
			sub := &list[i]
			if !sub.Active || sub.Target != target {
				continue
			}
			sub.AlertCount++
			owner, idx := user, i
			tx.OnRevert(func() { m.subscriptions[owner][idx].AlertCount-- })

			tx.Emit(m.addr, EventAlertTriggered, AlertTriggered{
				Subscriber:       user,
				Index:            sub.Index,
				Target:           target,
				AlertKind:        alertKind,
				Value:            value,
				Threshold:        sub.Threshold,
				ThresholdReached: value >= sub.Threshold,
				AlertCount:       sub.AlertCount,
			})
			raised++
		}
	}
	return raised, nil
}

// Subscriptions returns every subscription of user, oldest first.
func (m *Monitor) Subscriptions(user common.Address) []Subscription {
	list := m.subscriptions[user]
	out := make([]Subscription, len(list))
	copy(out, list)
	return out
}

// Subscribers returns the subscriber index for target. An address appears
// once for each subscription it opened, including stopped ones.
func (m *Monitor) Subscribers(target string) []common.Address {
	list := m.subscribers[target]
	out := make([]common.Address, len(list))
	copy(out, list)
	return out
}
