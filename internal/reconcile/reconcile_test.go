package reconcile

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domaguardian/domaguardian/internal/node"
)

var (
	operator = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	price    = big.NewInt(1_000)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newNode(t *testing.T) *node.Node {
	t.Helper()
	n, err := node.New(node.Config{ChainID: 97476, Operator: operator, Price: price}, nil, testLogger())
	require.NoError(t, err)
	return n
}

func TestRun(t *testing.T) {
	n := newNode(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := n.Submit(ctx, node.Call{Contract: node.ContractLedger, Method: node.MethodDeposit, From: alice, Value: price})
		require.NoError(t, err)
	}

	rec := Run(n, testLogger())
	assert.True(t, rec.Balanced())
	assert.Equal(t, "2000", rec.Outstanding.String())
	assert.Equal(t, "2000", rec.Held.String())

	_, err := n.Submit(ctx, node.Call{Contract: node.ContractLedger, Method: node.MethodWithdraw, From: operator})
	require.NoError(t, err)

	rec = Run(n, testLogger())
	assert.False(t, rec.Balanced())
	assert.Equal(t, "2000", rec.Shortfall.String())
}

type countingReader struct {
	n     *node.Node
	calls atomic.Int32
}

func (c *countingReader) Read(fn func(s *node.State)) {
	c.calls.Add(1)
	c.n.Read(fn)
}

func TestStart(t *testing.T) {
	r := &countingReader{n: newNode(t)}

	job, err := Start(r, time.Second, testLogger())
	require.NoError(t, err)
	defer job.Stop()

	// gocron runs the first iteration immediately.
	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestStart_InvalidInterval(t *testing.T) {
	_, err := Start(&countingReader{n: newNode(t)}, 500*time.Millisecond, testLogger())
	assert.Error(t, err)
}
