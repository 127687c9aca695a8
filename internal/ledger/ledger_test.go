package ledger

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domaguardian/domaguardian/internal/access"
	"github.com/domaguardian/domaguardian/internal/chain"
)

var (
	operator = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	user     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	spender  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

var price = big.NewInt(1_000)

type fixture struct {
	chain  *chain.Chain
	ledger *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := chain.New(chain.Config{ChainID: 97476})
	l := New(c.Deploy(operator), operator, price)
	return &fixture{chain: c, ledger: l}
}

func (f *fixture) exec(from common.Address, value *big.Int, fn func(tx *chain.Tx) error) (*chain.Receipt, error) {
	return f.chain.Execute(context.Background(), chain.Msg{From: from, To: f.ledger.Address(), Value: value}, fn)
}

func (f *fixture) deposit(t *testing.T, from common.Address) {
	t.Helper()
	_, err := f.exec(from, price, f.ledger.Deposit)
	require.NoError(t, err)
}

func (f *fixture) authorize(t *testing.T, s common.Address, enabled bool) {
	t.Helper()
	_, err := f.exec(operator, nil, func(tx *chain.Tx) error {
		return f.ledger.SetAuthorized(tx, s, enabled)
	})
	require.NoError(t, err)
}

func (f *fixture) debit(from, u common.Address) error {
	_, err := f.exec(from, nil, func(tx *chain.Tx) error {
		return f.ledger.Debit(tx, u)
	})
	return err
}

func TestLedger_Deposit(t *testing.T) {
	tests := []struct {
		name    string
		value   *big.Int
		wantErr error
	}{
		{name: "exact price", value: price},
		{name: "no value", value: nil, wantErr: ErrWrongAmount},
		{name: "underpaid", value: big.NewInt(999), wantErr: ErrWrongAmount},
		{name: "overpaid", value: big.NewInt(1_001), wantErr: ErrWrongAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			r, err := f.exec(user, tt.value, f.ledger.Deposit)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 0, f.ledger.CreditBalance(user).Sign())
				assert.Equal(t, 0, f.ledger.HeldCurrency().Sign())
				assert.Equal(t, 0, f.chain.BalanceOf(f.ledger.Address()).Sign())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, price.String(), f.ledger.CreditBalance(user).String())
			assert.Equal(t, price.String(), f.ledger.HeldCurrency().String())
			assert.Equal(t, price.String(), f.chain.BalanceOf(f.ledger.Address()).String())
			assert.True(t, f.ledger.HasCredit(user))
			require.Len(t, r.Events, 1)
			assert.Equal(t, EventDeposited, r.Events[0].Name)
		})
	}
}

func TestLedger_DepositsAccumulate(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, user)
	f.deposit(t, user)

	assert.Equal(t, "2000", f.ledger.CreditBalance(user).String())
	assert.Equal(t, "2000", f.ledger.HeldCurrency().String())
}

func TestLedger_Debit(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, user)

	err := f.debit(spender, user)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, price.String(), f.ledger.CreditBalance(user).String())

	f.authorize(t, spender, true)
	require.NoError(t, f.debit(spender, user))
	assert.Equal(t, 0, f.ledger.CreditBalance(user).Sign())
	assert.Equal(t, uint64(1), f.ledger.UsageCount(user))
	assert.False(t, f.ledger.HasCredit(user))

	err = f.debit(spender, user)
	assert.ErrorIs(t, err, ErrInsufficientCredit)
	assert.Equal(t, 0, f.ledger.CreditBalance(user).Sign())
	assert.Equal(t, uint64(1), f.ledger.UsageCount(user))

	// Debits never move currency.
	assert.Equal(t, price.String(), f.ledger.HeldCurrency().String())
}

func TestLedger_RevokedSpenderIsBlocked(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, user)
	f.deposit(t, user)
	f.authorize(t, spender, true)
	require.NoError(t, f.debit(spender, user))

	f.authorize(t, spender, false)
	assert.False(t, f.ledger.IsAuthorized(spender))
	assert.ErrorIs(t, f.debit(spender, user), ErrNotAuthorized)
	assert.Equal(t, price.String(), f.ledger.CreditBalance(user).String())
}

func TestLedger_SetAuthorized(t *testing.T) {
	tests := []struct {
		name    string
		from    common.Address
		spender common.Address
		wantErr error
	}{
		{name: "owner", from: operator, spender: spender},
		{name: "non-owner", from: stranger, spender: spender, wantErr: access.ErrNotOwner},
		{name: "zero spender", from: operator, spender: common.Address{}, wantErr: ErrInvalidSpender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			r, err := f.exec(tt.from, nil, func(tx *chain.Tx) error {
				return f.ledger.SetAuthorized(tx, tt.spender, true)
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, f.ledger.IsAuthorized(tt.spender))
				return
			}
			require.NoError(t, err)
			assert.True(t, f.ledger.IsAuthorized(tt.spender))
			assert.Equal(t, AuthorizationChanged{Spender: tt.spender, Enabled: true}, r.Events[0].Data)
		})
	}
}

func TestLedger_Withdraw(t *testing.T) {
	tests := []struct {
		name    string
		from    common.Address
		amount  *big.Int
		want    *big.Int
		wantErr error
	}{
		{name: "zero withdraws everything", from: operator, amount: big.NewInt(0), want: big.NewInt(3_000)},
		{name: "nil withdraws everything", from: operator, amount: nil, want: big.NewInt(3_000)},
		{name: "partial", from: operator, amount: big.NewInt(1_500), want: big.NewInt(1_500)},
		{name: "more than held", from: operator, amount: big.NewInt(3_001), wantErr: ErrInvalidAmount},
		{name: "negative", from: operator, amount: big.NewInt(-1), wantErr: ErrInvalidAmount},
		{name: "non-owner", from: stranger, amount: big.NewInt(0), wantErr: access.ErrNotOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			for i := 0; i < 3; i++ {
				f.deposit(t, user)
			}

			var got *big.Int
			_, err := f.exec(tt.from, nil, func(tx *chain.Tx) error {
				var err error
				got, err = f.ledger.Withdraw(tx, tt.amount)
				return err
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, "3000", f.ledger.HeldCurrency().String())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.String(), got.String())
			assert.Equal(t, tt.want.String(), f.chain.BalanceOf(operator).String())
			assert.Equal(t, new(big.Int).Sub(big.NewInt(3_000), tt.want).String(), f.ledger.HeldCurrency().String())
			assert.Equal(t, f.ledger.HeldCurrency().String(), f.chain.BalanceOf(f.ledger.Address()).String())
		})
	}
}

func TestLedger_WithdrawNothingHeld(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec(operator, nil, func(tx *chain.Tx) error {
		_, err := f.ledger.Withdraw(tx, big.NewInt(0))
		return err
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLedger_ReentrantWithdrawIsRejected(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 2; i++ {
		f.deposit(t, user)
	}

	// The owner is a contract whose receive hook tries to withdraw again.
	var reentryErr error
	f.chain.SetReceiver(operator, func(tx *chain.Tx, from common.Address, amount *big.Int) error {
		_, reentryErr = f.ledger.Withdraw(tx, amount)
		return reentryErr
	})

	_, err := f.exec(operator, nil, func(tx *chain.Tx) error {
		_, err := f.ledger.Withdraw(tx, price)
		return err
	})
	assert.ErrorIs(t, err, chain.ErrReentrant)
	assert.ErrorIs(t, reentryErr, chain.ErrReentrant)

	assert.Equal(t, "2000", f.ledger.HeldCurrency().String())
	assert.Equal(t, "2000", f.chain.BalanceOf(f.ledger.Address()).String())
	assert.Equal(t, 0, f.chain.BalanceOf(operator).Sign())

	// The guard is released afterwards.
	f.chain.SetReceiver(operator, nil)
	_, err = f.exec(operator, nil, func(tx *chain.Tx) error {
		_, err := f.ledger.Withdraw(tx, big.NewInt(0))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "2000", f.chain.BalanceOf(operator).String())
}

func TestLedger_FailedCallRevertsDebit(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, user)
	f.authorize(t, spender, true)

	_, err := f.exec(spender, nil, func(tx *chain.Tx) error {
		if err := f.ledger.Debit(tx, user); err != nil {
			return err
		}
		return ErrInvalidAmount
	})
	require.Error(t, err)
	assert.Equal(t, price.String(), f.ledger.CreditBalance(user).String())
	assert.Equal(t, uint64(0), f.ledger.UsageCount(user))
}

func TestLedger_Reconcile(t *testing.T) {
	f := newFixture(t)
	other := common.HexToAddress("0x00000000000000000000000000000000000000e5")
	f.authorize(t, spender, true)

	f.deposit(t, user)
	f.deposit(t, user)
	f.deposit(t, other)
	require.NoError(t, f.debit(spender, user))

	rec := f.ledger.Reconcile()
	assert.Equal(t, "2000", rec.Outstanding.String())
	assert.Equal(t, "3000", rec.Held.String())
	assert.True(t, rec.Balanced())

	// Withdrawing currency that still backs credit opens a shortfall.
	_, err := f.exec(operator, nil, func(tx *chain.Tx) error {
		_, err := f.ledger.Withdraw(tx, big.NewInt(0))
		return err
	})
	require.NoError(t, err)

	rec = f.ledger.Reconcile()
	assert.False(t, rec.Balanced())
	assert.Equal(t, "2000", rec.Shortfall.String())
}

func TestLedger_GenesisSpenders(t *testing.T) {
	c := chain.New(chain.Config{ChainID: 97476})
	l := New(c.Deploy(operator), operator, price, spender)

	assert.True(t, l.IsAuthorized(spender))
	assert.False(t, l.IsAuthorized(stranger))
	assert.Equal(t, uint64(0), c.Seq())
}
