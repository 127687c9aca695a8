// Package registry implements the tokenized domain registry.
//
// A domain moves from unregistered to tokenized exactly once. Its owner grants
// time-bounded named rights to other addresses. Grants are kept in an
// append-only history, but only the live rights map decides HasRight.
package registry

import (
	"errors"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/domaguardian/domaguardian/internal/access"
	"github.com/domaguardian/domaguardian/internal/chain"
	"github.com/domaguardian/domaguardian/internal/ledger"
)

// Common errors returned by the registry.
var (
	ErrInvalidName      = errors.New("invalid domain name")
	ErrAlreadyTokenized = errors.New("domain already tokenized")
	ErrNotTokenized     = errors.New("domain not tokenized")
	ErrNotDomainOwner   = errors.New("caller is not the domain owner")
	ErrInvalidRight     = errors.New("invalid right")
	ErrInvalidHolder    = errors.New("invalid holder")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrRightNotFound    = errors.New("right not found")
	ErrInvalidOwner     = errors.New("invalid new owner")
)

// Event names.
const (
	EventDomainTokenized   = "DomainTokenized"
	EventRightGranted      = "RightGranted"
	EventRightRevoked      = "RightRevoked"
	EventDomainTransferred = "DomainTransferred"
	EventActiveStateSynced = "ActiveStateSynced"
)

// Right is a live grant. ExpiresAt is zero for a grant that never expires.
type Right struct {
	Holder    common.Address `json:"holder"`
	ExpiresAt int64          `json:"expiresAt"`
}

// Live reports whether the right is still in force at now.
func (r Right) Live(now time.Time) bool {
	return r.ExpiresAt == 0 || r.ExpiresAt > now.Unix()
}

// RightGrant is an entry in a domain's grant history.
type RightGrant struct {
	Right     string         `json:"right"`
	Holder    common.Address `json:"holder"`
	GrantedAt int64          `json:"grantedAt"`
	ExpiresAt int64          `json:"expiresAt"`
}

// Domain is a tokenized domain record.
type Domain struct {
	Name        string           `json:"name"`
	Owner       common.Address   `json:"owner"`
	Tokenized   bool             `json:"tokenized"`
	TokenizedAt int64            `json:"tokenizedAt"`
	Active      bool             `json:"active"`
	Rights      map[string]Right `json:"rights"`
}

func (d *Domain) clone() Domain {
	out := *d
	out.Rights = make(map[string]Right, len(d.Rights))
	for k, v := range d.Rights {
		out.Rights[k] = v
	}
	return out
}

// DomainTokenized is emitted when a name is tokenized.
type DomainTokenized struct {
	Name  string         `json:"name"`
	Owner common.Address `json:"owner"`
}

// RightGranted is emitted when a right is granted.
type RightGranted struct {
	Name      string         `json:"name"`
	Right     string         `json:"right"`
	Holder    common.Address `json:"holder"`
	ExpiresAt int64          `json:"expiresAt"`
}

// RightRevoked is emitted when a live right is cleared.
type RightRevoked struct {
	Name   string         `json:"name"`
	Right  string         `json:"right"`
	Holder common.Address `json:"holder"`
}

// DomainTransferred is emitted when a domain changes owner.
type DomainTransferred struct {
	Name string         `json:"name"`
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
}

// ActiveStateSynced is emitted when the operator mirrors the external
// registry state.
type ActiveStateSynced struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Registry is the domain registry contract.
type Registry struct {
	access.Ownable

	addr    common.Address
	gate    ledger.Gate
	domains map[string]*Domain
	history map[string][]RightGrant
	owned   map[common.Address][]string
	all     []string
}

// New creates a registry deployed at addr.
func New(addr, owner common.Address, l *ledger.Ledger) *Registry {
	return &Registry{
		Ownable: access.NewOwnable(addr, owner),
		addr:    addr,
		gate:    ledger.NewGate(l, addr),
		domains: make(map[string]*Domain),
		history: make(map[string][]RightGrant),
		owned:   make(map[common.Address][]string),
	}
}

// Address returns the contract address.
func (r *Registry) Address() common.Address { return r.addr }

// Ledger returns the address of the payment ledger.
func (r *Registry) Ledger() common.Address { return r.gate.Ledger() }

// Price returns the cost of one paid registry operation.
func (r *Registry) Price() *big.Int { return r.gate.Price() }

// Tokenize charges the caller and registers name to them.
func (r *Registry) Tokenize(tx *chain.Tx, name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if d, ok := r.domains[name]; ok && d.Tokenized {
		return ErrAlreadyTokenized
	}
	if _, err := r.gate.Charge(tx); err != nil {
		return err
	}

	owner := tx.Caller()
	r.domains[name] = &Domain{
		Name:        name,
		Owner:       owner,
		Tokenized:   true,
		TokenizedAt: tx.Now().Unix(),
		Active:      true,
		Rights:      make(map[string]Right),
	}
	r.all = append(r.all, name)
	r.owned[owner] = append(r.owned[owner], name)
	tx.OnRevert(func() {
		delete(r.domains, name)
		r.all = r.all[:len(r.all)-1]
		list := r.owned[owner]
		r.owned[owner] = list[:len(list)-1]
		if len(r.owned[owner]) == 0 {
			delete(r.owned, owner)
		}
	})

	tx.Emit(r.addr, EventDomainTokenized, DomainTokenized{Name: name, Owner: owner})
	return nil
}

// ownedBy returns the record of a tokenized domain the caller owns.
func (r *Registry) ownedBy(tx *chain.Tx, name string) (*Domain, error) {
	d, ok := r.domains[name]
	if !ok || !d.Tokenized {
		return nil, ErrNotTokenized
	}
	if d.Owner != tx.Caller() {
		return nil, ErrNotDomainOwner
	}
	return d, nil
}

// GrantRight charges the domain owner and gives right on name to holder. A
// zero duration grants a right that never expires.
func (r *Registry) GrantRight(tx *chain.Tx, name, right string, holder common.Address, durationSeconds uint64) (int64, error) {
	d, err := r.ownedBy(tx, name)
	if err != nil {
		return 0, err
	}
	if right == "" {
		return 0, ErrInvalidRight
	}
	if holder == (common.Address{}) {
		return 0, ErrInvalidHolder
	}

	now := tx.Now().Unix()
	var expiresAt int64
	if durationSeconds != 0 {
		if durationSeconds > uint64(math.MaxInt64-now) {
			return 0, ErrInvalidDuration
		}
		expiresAt = now + int64(durationSeconds)
	}

	if _, err := r.gate.Charge(tx); err != nil {
		return 0, err
	}

	prev, had := d.Rights[right]
	d.Rights[right] = Right{Holder: holder, ExpiresAt: expiresAt}
	r.history[name] = append(r.history[name], RightGrant{
		Right:     right,
		Holder:    holder,
		GrantedAt: now,
		ExpiresAt: expiresAt,
	})
	tx.OnRevert(func() {
		if had {
			d.Rights[right] = prev
		} else {
			delete(d.Rights, right)
		}
		h := r.history[name]
		r.history[name] = h[:len(h)-1]
		if len(h) == 1 {
			delete(r.history, name)
		}
	})

	tx.Emit(r.addr, EventRightGranted, RightGranted{
		Name:      name,
		Right:     right,
		Holder:    holder,
		ExpiresAt: expiresAt,
	})
	return expiresAt, nil
}

// RevokeRight clears the live right on name. The grant history is kept.
func (r *Registry) RevokeRight(tx *chain.Tx, name, right string) error {
	d, err := r.ownedBy(tx, name)
	if err != nil {
		return err
	}
	prev, ok := d.Rights[right]
	if !ok || prev.Holder == (common.Address{}) {
		return ErrRightNotFound
	}

	delete(d.Rights, right)
	tx.OnRevert(func() { d.Rights[right] = prev })

	tx.Emit(r.addr, EventRightRevoked, RightRevoked{
		Name:   name,
		Right:  right,
		Holder: prev.Holder,
	})
	return nil
}

// TransferDomain charges the owner and hands name to newOwner. Live rights
// stay attached to the domain.
func (r *Registry) TransferDomain(tx *chain.Tx, name string, newOwner common.Address) error {
	d, err := r.ownedBy(tx, name)
	if err != nil {
		return err
	}
	if newOwner == (common.Address{}) || newOwner == d.Owner {
		return ErrInvalidOwner
	}
	if _, err := r.gate.Charge(tx); err != nil {
		return err
	}

	from := d.Owner
	fromList := append([]string(nil), r.owned[from]...)
	d.Owner = newOwner
	r.removeOwned(from, name)
	r.owned[newOwner] = append(r.owned[newOwner], name)
	tx.OnRevert(func() {
		d.Owner = from
		r.owned[from] = fromList
		to := r.owned[newOwner]
		r.owned[newOwner] = to[:len(to)-1]
		if len(r.owned[newOwner]) == 0 {
			delete(r.owned, newOwner)
		}
	})

	tx.Emit(r.addr, EventDomainTransferred, DomainTransferred{
		Name: name,
		From: from,
		To:   newOwner,
	})
	return nil
}

// removeOwned drops name from owner's list by moving the last entry into its
// slot. The order of the remaining names is not kept.
func (r *Registry) removeOwned(owner common.Address, name string) {
	list := r.owned[owner]
	for i, n := range list {
		if n != name {
			continue
		}
		last := len(list) - 1
		list[i] = list[last]
		list = list[:last]
		break
	}
	if len(list) == 0 {
		delete(r.owned, owner)
		return
	}
	r.owned[owner] = list
}

// SyncActiveState mirrors the active flag of name from the external
// registry. Only the registry operator may call it.
func (r *Registry) SyncActiveState(tx *chain.Tx, name string, active bool) error {
	if err := r.OnlyOwner(tx); err != nil {
		return err
	}
	d, ok := r.domains[name]
	if !ok || !d.Tokenized {
		return ErrNotTokenized
	}

	prev := d.Active
	d.Active = active
	tx.OnRevert(func() { d.Active = prev })

	tx.Emit(r.addr, EventActiveStateSynced, ActiveStateSynced{Name: name, Active: active})
	return nil
}

// HasRight reports whether addr holds a live, unexpired right on name at now.
func (r *Registry) HasRight(name, right string, addr common.Address, now time.Time) bool {
	d, ok := r.domains[name]
	if !ok {
		return false
	}
	live, ok := d.Rights[right]
	if !ok || live.Holder != addr {
		return false
	}
	return live.Live(now)
}

// RightHolder returns the live grant of right on name, expired or not.
func (r *Registry) RightHolder(name, right string) (Right, bool) {
	d, ok := r.domains[name]
	if !ok {
		return Right{}, false
	}
	live, ok := d.Rights[right]
	return live, ok
}

// Domain returns a copy of the record for name.
func (r *Registry) Domain(name string) (Domain, bool) {
	d, ok := r.domains[name]
	if !ok {
		return Domain{}, false
	}
	return d.clone(), true
}

// DomainsOf returns the names owned by owner.
func (r *Registry) DomainsOf(owner common.Address) []string {
	return append([]string{}, r.owned[owner]...)
}

// AllDomains returns every tokenized name in tokenization order.
func (r *Registry) AllDomains() []string {
	return append([]string{}, r.all...)
}

// RightHistory returns the grant history of name, oldest first.
func (r *Registry) RightHistory(name string) []RightGrant {
	return append([]RightGrant{}, r.history[name]...)
}
