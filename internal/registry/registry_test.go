package registry

import (
	"context"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domaguardian/domaguardian/internal/access"
	"github.com/domaguardian/domaguardian/internal/chain"
	"github.com/domaguardian/domaguardian/internal/ledger"
)

var (
	operator = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

var price = big.NewInt(250)

type fixture struct {
	now      time.Time
	chain    *chain.Chain
	ledger   *ledger.Ledger
	registry *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Unix(1_700_000_000, 0)}
	f.chain = chain.New(chain.Config{ChainID: 97476, Clock: func() time.Time { return f.now }})
	f.ledger = ledger.New(f.chain.Deploy(operator), operator, price)
	f.registry = New(f.chain.Deploy(operator), operator, f.ledger)
	_, err := f.chain.Execute(context.Background(), chain.Msg{From: operator, To: f.ledger.Address()}, func(tx *chain.Tx) error {
		return f.ledger.SetAuthorized(tx, f.registry.Address(), true)
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) deposit(t *testing.T, from common.Address, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.chain.Execute(context.Background(), chain.Msg{From: from, To: f.ledger.Address(), Value: price}, f.ledger.Deposit)
		require.NoError(t, err)
	}
}

func (f *fixture) exec(from common.Address, fn func(tx *chain.Tx) error) error {
	_, err := f.chain.Execute(context.Background(), chain.Msg{From: from, To: f.registry.Address()}, fn)
	return err
}

func (f *fixture) tokenize(t *testing.T, from common.Address, name string) {
	t.Helper()
	f.deposit(t, from, 1)
	require.NoError(t, f.exec(from, func(tx *chain.Tx) error { return f.registry.Tokenize(tx, name) }))
}

func (f *fixture) grant(from common.Address, name, right string, holder common.Address, duration uint64) error {
	return f.exec(from, func(tx *chain.Tx) error {
		_, err := f.registry.GrantRight(tx, name, right, holder, duration)
		return err
	})
}

func TestRegistry_Tokenize(t *testing.T) {
	f := newFixture(t)
	f.tokenize(t, alice, "guardian.doma")

	d, ok := f.registry.Domain("guardian.doma")
	require.True(t, ok)
	assert.Equal(t, alice, d.Owner)
	assert.True(t, d.Tokenized)
	assert.True(t, d.Active)
	assert.Equal(t, f.now.Unix(), d.TokenizedAt)
	assert.Equal(t, []string{"guardian.doma"}, f.registry.DomainsOf(alice))
	assert.Equal(t, []string{"guardian.doma"}, f.registry.AllDomains())
	assert.Equal(t, uint64(1), f.ledger.UsageCount(alice))
}

func TestRegistry_TokenizeErrors(t *testing.T) {
	f := newFixture(t)
	f.tokenize(t, alice, "taken.doma")
	f.deposit(t, bob, 1)

	err := f.exec(bob, func(tx *chain.Tx) error { return f.registry.Tokenize(tx, "") })
	assert.ErrorIs(t, err, ErrInvalidName)

	err = f.exec(bob, func(tx *chain.Tx) error { return f.registry.Tokenize(tx, "taken.doma") })
	assert.ErrorIs(t, err, ErrAlreadyTokenized)
	assert.Equal(t, price.String(), f.ledger.CreditBalance(bob).String())

	err = f.exec(carol, func(tx *chain.Tx) error { return f.registry.Tokenize(tx, "free.doma") })
	assert.ErrorIs(t, err, ledger.ErrNoCredit)
	_, ok := f.registry.Domain("free.doma")
	assert.False(t, ok)
}

func TestRegistry_RightExpiry(t *testing.T) {
	f := newFixture(t)
	f.tokenize(t, alice, "guardian.doma")
	f.deposit(t, alice, 2)

	require.NoError(t, f.grant(alice, "guardian.doma", "dns", bob, 3600))
	require.NoError(t, f.grant(alice, "guardian.doma", "mail", carol, 0))

	assert.True(t, f.registry.HasRight("guardian.doma", "dns", bob, f.now))
	assert.False(t, f.registry.HasRight("guardian.doma", "dns", carol, f.now))

	// Exactly at expiry the right is gone.
	at := f.now.Add(time.Hour)
	assert.False(t, f.registry.HasRight("guardian.doma", "dns", bob, at))
	assert.True(t, f.registry.HasRight("guardian.doma", "dns", bob, at.Add(-time.Second)))

	// Zero duration never expires.
	assert.True(t, f.registry.HasRight("guardian.doma", "mail", carol, f.now.AddDate(100, 0, 0)))

	history := f.registry.RightHistory("guardian.doma")
	require.Len(t, history, 2)
	assert.Equal(t, RightGrant{Right: "dns", Holder: bob, GrantedAt: f.now.Unix(), ExpiresAt: f.now.Unix() + 3600}, history[0])
}

func TestRegistry_RevokeRight(t *testing.T) {
	f := newFixture(t)
	f.tokenize(t, alice, "guardian.doma")
	f.deposit(t, alice, 1)
	require.NoError(t, f.grant(alice, "guardian.doma", "dns", bob, 0))

	err := f.exec(bob, func(tx *chain.Tx) error { return f.registry.RevokeRight(tx, "guardian.doma", "dns") })
	assert.ErrorIs(t, err, ErrNotDomainOwner)

	require.NoError(t, f.exec(alice, func(tx *chain.Tx) error { return f.registry.RevokeRight(tx, "guardian.doma", "dns") }))
	assert.False(t, f.registry.HasRight("guardian.doma", "dns", bob, f.now))
	assert.Len(t, f.registry.RightHistory("guardian.doma"), 1)

	err = f.exec(alice, func(tx *chain.Tx) error { return f.registry.RevokeRight(tx, "guardian.doma", "dns") })
	assert.ErrorIs(t, err, ErrRightNotFound)

	// Revocation is free.
	assert.Equal(t, uint64(2), f.ledger.UsageCount(alice))
}

func TestRegistry_GrantRightErrors(t *testing.T) {
	tests := []struct {
		name     string
		from     common.Address
		domain   string
		right    string
		holder   common.Address
		duration uint64
		credit   int
		wantErr  error
	}{
		{name: "unknown domain", from: alice, domain: "nope.doma", right: "dns", holder: bob, credit: 1, wantErr: ErrNotTokenized},
		{name: "not domain owner", from: bob, domain: "guardian.doma", right: "dns", holder: bob, credit: 1, wantErr: ErrNotDomainOwner},
		{name: "empty right", from: alice, domain: "guardian.doma", right: "", holder: bob, credit: 1, wantErr: ErrInvalidRight},
		{name: "zero holder", from: alice, domain: "guardian.doma", right: "dns", holder: common.Address{}, credit: 1, wantErr: ErrInvalidHolder},
		{name: "overflowing duration", from: alice, domain: "guardian.doma", right: "dns", holder: bob, duration: math.MaxUint64, credit: 1, wantErr: ErrInvalidDuration},
		{name: "no credit", from: alice, domain: "guardian.doma", right: "dns", holder: bob, wantErr: ledger.ErrNoCredit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.tokenize(t, alice, "guardian.doma")
			f.deposit(t, tt.from, tt.credit)

			err := f.grant(tt.from, tt.domain, tt.right, tt.holder, tt.duration)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.registry.RightHistory("guardian.doma"))
		})
	}
}

func TestRegistry_TransferDomain(t *testing.T) {
	f := newFixture(t)
	f.tokenize(t, alice, "a.doma")
	f.tokenize(t, alice, "b.doma")
	f.tokenize(t, alice, "c.doma")
	f.deposit(t, alice, 2)
	require.NoError(t, f.grant(alice, "a.doma", "dns", carol, 0))

	require.NoError(t, f.exec(alice, func(tx *chain.Tx) error { return f.registry.TransferDomain(tx, "a.doma", bob) }))

	assert.ElementsMatch(t, []string{"b.doma", "c.doma"}, f.registry.DomainsOf(alice))
	assert.Equal(t, []string{"a.doma"}, f.registry.DomainsOf(bob))
	d, _ := f.registry.Domain("a.doma")
	assert.Equal(t, bob, d.Owner)
	assert.True(t, f.registry.HasRight("a.doma", "dns", carol, f.now))

	// The previous owner has lost control.
	err := f.exec(alice, func(tx *chain.Tx) error { return f.registry.TransferDomain(tx, "a.doma", carol) })
	assert.ErrorIs(t, err, ErrNotDomainOwner)
}

func TestRegistry_TransferListInvariant(t *testing.T) {
	names := []string{"a.doma", "b.doma", "c.doma", "d.doma"}
	for _, moved := range names {
		t.Run(moved, func(t *testing.T) {
			f := newFixture(t)
			for _, n := range names {
				f.tokenize(t, alice, n)
			}
			f.deposit(t, alice, 1)
			require.NoError(t, f.exec(alice, func(tx *chain.Tx) error { return f.registry.TransferDomain(tx, moved, bob) }))

			assert.NotContains(t, f.registry.DomainsOf(alice), moved)
			assert.Len(t, f.registry.DomainsOf(alice), len(names)-1)
			count := 0
			for _, n := range f.registry.DomainsOf(bob) {
				if n == moved {
					count++
				}
			}
			assert.Equal(t, 1, count)
		})
	}
}

func TestRegistry_TransferDomainErrors(t *testing.T) {
	f := newFixture(t)
	f.tokenize(t, alice, "a.doma")
	f.deposit(t, alice, 1)

	err := f.exec(alice, func(tx *chain.Tx) error { return f.registry.TransferDomain(tx, "a.doma", alice) })
	assert.ErrorIs(t, err, ErrInvalidOwner)
	err = f.exec(alice, func(tx *chain.Tx) error { return f.registry.TransferDomain(tx, "a.doma", common.Address{}) })
	assert.ErrorIs(t, err, ErrInvalidOwner)
	assert.Equal(t, price.String(), f.ledger.CreditBalance(alice).String())
	assert.Equal(t, []string{"a.doma"}, f.registry.DomainsOf(alice))
}

func TestRegistry_SyncActiveState(t *testing.T) {
	f := newFixture(t)
	f.tokenize(t, alice, "a.doma")

	err := f.exec(alice, func(tx *chain.Tx) error { return f.registry.SyncActiveState(tx, "a.doma", false) })
	assert.ErrorIs(t, err, access.ErrNotOwner)

	err = f.exec(operator, func(tx *chain.Tx) error { return f.registry.SyncActiveState(tx, "missing.doma", false) })
	assert.ErrorIs(t, err, ErrNotTokenized)

	require.NoError(t, f.exec(operator, func(tx *chain.Tx) error { return f.registry.SyncActiveState(tx, "a.doma", false) }))
	d, _ := f.registry.Domain("a.doma")
	assert.False(t, d.Active)
}

func TestRegistry_NamesAreExactMatch(t *testing.T) {
	f := newFixture(t)
	f.tokenize(t, alice, "Guardian.doma")
	f.tokenize(t, bob, "guardian.doma")

	assert.Len(t, f.registry.AllDomains(), 2)
}
