package access

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domaguardian/domaguardian/internal/chain"
)

var (
	self     = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	operator = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	nominee  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func call(t *testing.T, c *chain.Chain, from common.Address, fn func(tx *chain.Tx) error) (*chain.Receipt, error) {
	t.Helper()
	return c.Execute(context.Background(), chain.Msg{From: from, To: self}, fn)
}

func TestOwnable_TwoStepTransfer(t *testing.T) {
	c := chain.New(chain.Config{ChainID: 1})
	o := NewOwnable(self, operator)

	r, err := call(t, c, operator, func(tx *chain.Tx) error { return o.TransferOwnership(tx, nominee) })
	require.NoError(t, err)
	require.Len(t, r.Events, 1)
	assert.Equal(t, EventOwnershipTransferStarted, r.Events[0].Name)

	// Nomination alone does not move ownership.
	assert.Equal(t, operator, o.Owner())
	assert.Equal(t, nominee, o.PendingOwner())

	_, err = call(t, c, stranger, func(tx *chain.Tx) error { return o.AcceptOwnership(tx) })
	assert.ErrorIs(t, err, ErrNotPendingOwner)

	r, err = call(t, c, nominee, func(tx *chain.Tx) error { return o.AcceptOwnership(tx) })
	require.NoError(t, err)
	assert.Equal(t, nominee, o.Owner())
	assert.Equal(t, common.Address{}, o.PendingOwner())
	assert.Equal(t, OwnershipTransferred{PreviousOwner: operator, NewOwner: nominee}, r.Events[0].Data)

	_, err = call(t, c, operator, func(tx *chain.Tx) error { return o.OnlyOwner(tx) })
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestOwnable_Errors(t *testing.T) {
	tests := []struct {
		name    string
		from    common.Address
		fn      func(o *Ownable, tx *chain.Tx) error
		wantErr error
	}{
		{
			name:    "transfer by non-owner",
			from:    stranger,
			fn:      func(o *Ownable, tx *chain.Tx) error { return o.TransferOwnership(tx, nominee) },
			wantErr: ErrNotOwner,
		},
		{
			name:    "transfer to zero address",
			from:    operator,
			fn:      func(o *Ownable, tx *chain.Tx) error { return o.TransferOwnership(tx, common.Address{}) },
			wantErr: ErrInvalidOwner,
		},
		{
			name:    "accept with nothing pending",
			from:    nominee,
			fn:      func(o *Ownable, tx *chain.Tx) error { return o.AcceptOwnership(tx) },
			wantErr: ErrNotPendingOwner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := chain.New(chain.Config{ChainID: 1})
			o := NewOwnable(self, operator)
			_, err := call(t, c, tt.from, func(tx *chain.Tx) error { return tt.fn(&o, tx) })
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, operator, o.Owner())
		})
	}
}

func TestOwnable_NominationRevertsWithCall(t *testing.T) {
	c := chain.New(chain.Config{ChainID: 1})
	o := NewOwnable(self, operator)

	_, err := call(t, c, operator, func(tx *chain.Tx) error {
		if err := o.TransferOwnership(tx, nominee); err != nil {
			return err
		}
		return ErrInvalidOwner
	})
	require.Error(t, err)
	assert.Equal(t, common.Address{}, o.PendingOwner())
}
