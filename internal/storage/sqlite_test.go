package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := NewSQLiteStore(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testCall(seq uint64) *CallRecord {
	return &CallRecord{
		Seq:      seq,
		Hash:     fmt.Sprintf("0x%064x", seq),
		Contract: "ledger",
		Method:   "deposit",
		From:     "0x00000000000000000000000000000000000000a1",
		Value:    "1000000000000000",
		Args:     json.RawMessage(`{}`),
		Time:     time.Unix(1_700_000_000, int64(seq)).UTC(),
	}
}

func testEvent(seq, txSeq uint64, contract, name string) EventRecord {
	return EventRecord{
		Seq:      seq,
		TxSeq:    txSeq,
		Contract: contract,
		Name:     name,
		Data:     json.RawMessage(`{"n":1}`),
		Time:     time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestSQLiteStore_Journal(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	seq, err := store.LatestSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)

	for i := uint64(1); i <= 3; i++ {
		call := testCall(i)
		require.NoError(t, store.AppendCall(ctx, call, nil))
		assert.NotEmpty(t, call.ID)
	}

	seq, err = store.LatestSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)

	calls, err := store.ListCalls(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, uint64(2), calls[0].Seq)
	assert.Equal(t, "deposit", calls[0].Method)
	assert.Equal(t, "1000000000000000", calls[0].Value)
	assert.JSONEq(t, `{}`, string(calls[0].Args))
	assert.Equal(t, testCall(2).Time, calls[0].Time)

	calls, err = store.ListCalls(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, uint64(1), calls[0].Seq)
}

func TestSQLiteStore_AppendOutOfOrder(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	err := store.AppendCall(ctx, testCall(2), nil)
	assert.ErrorIs(t, err, ErrOutOfOrder)

	require.NoError(t, store.AppendCall(ctx, testCall(1), nil))
	err = store.AppendCall(ctx, testCall(1), nil)
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestSQLiteStore_AppendIsAtomic(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	// Duplicate event sequence numbers make the second insert fail.
	events := []EventRecord{testEvent(1, 1, "ledger", "Deposited"), testEvent(1, 1, "ledger", "Deposited")}
	require.Error(t, store.AppendCall(ctx, testCall(1), events))

	seq, err := store.LatestSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)
}

func TestSQLiteStore_ListEvents(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendCall(ctx, testCall(1), []EventRecord{
		testEvent(1, 1, "ledger", "Deposited"),
	}))
	require.NoError(t, store.AppendCall(ctx, testCall(2), []EventRecord{
		testEvent(2, 2, "ledger", "CreditUsed"),
		testEvent(3, 2, "risk", "PaymentReceived"),
		testEvent(4, 2, "risk", "RequestSubmitted"),
	}))

	t.Run("pages with cursor", func(t *testing.T) {
		page, err := store.ListEvents(ctx, EventFilter{}, PaginationParams{Limit: 3})
		require.NoError(t, err)
		require.Len(t, page.Data, 3)
		assert.True(t, page.HasMore)
		assert.Equal(t, "3", page.NextCursor)

		page, err = store.ListEvents(ctx, EventFilter{}, PaginationParams{Limit: 3, Cursor: page.NextCursor})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.False(t, page.HasMore)
		assert.Empty(t, page.NextCursor)
		assert.Equal(t, uint64(4), page.Data[0].Seq)
		assert.JSONEq(t, `{"n":1}`, string(page.Data[0].Data))
	})

	t.Run("filters", func(t *testing.T) {
		tests := []struct {
			name   string
			filter EventFilter
			want   []uint64
		}{
			{name: "contract", filter: EventFilter{Contract: "risk"}, want: []uint64{3, 4}},
			{name: "name", filter: EventFilter{Name: "Deposited"}, want: []uint64{1}},
			{name: "tx", filter: EventFilter{TxSeq: 2}, want: []uint64{2, 3, 4}},
			{name: "combined", filter: EventFilter{Contract: "ledger", TxSeq: 2}, want: []uint64{2}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				page, err := store.ListEvents(ctx, tt.filter, PaginationParams{Limit: 10})
				require.NoError(t, err)
				seqs := make([]uint64, len(page.Data))
				for i, e := range page.Data {
					seqs[i] = e.Seq
				}
				assert.Equal(t, tt.want, seqs)
			})
		}
	})

	t.Run("bad cursor", func(t *testing.T) {
		_, err := store.ListEvents(ctx, EventFilter{}, PaginationParams{Limit: 10, Cursor: "abc"})
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})
}
