//go:build e2e

package e2e

import (
	"context"
	"crypto/ecdsa"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/domaguardian/domaguardian/internal/auth"
	"github.com/domaguardian/domaguardian/internal/config"
	"github.com/domaguardian/domaguardian/internal/node"
	"github.com/domaguardian/domaguardian/internal/server"
	"github.com/domaguardian/domaguardian/internal/storage"
	"github.com/domaguardian/domaguardian/pkg/client"
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
}

// Stack is one running node with its journal and HTTP server.
type Stack struct {
	Config   *config.Config
	Store    storage.Store
	Node     *node.Node
	Server   *httptest.Server
	Operator *ecdsa.PrivateKey
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("domaguardian"),
		postgres.WithUsername("domaguardian"),
		postgres.WithPassword("domaguardian"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// resetJournal empties the journal tables so each test starts from genesis.
func resetJournal(t *testing.T) {
	t.Helper()
	store, err := storage.NewPostgresStore(testCtx.ConnString, testLogger())
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate(context.Background()))

	db, err := sql.Open("pgx", testCtx.ConnString)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.ExecContext(context.Background(), `TRUNCATE events, calls`)
	require.NoError(t, err)
}

// newStack starts a node on an empty journal.
func newStack(t *testing.T) *Stack {
	t.Helper()
	resetJournal(t)

	operator, err := crypto.GenerateKey()
	require.NoError(t, err)
	return openStack(t, operator)
}

// openStack starts a node that replays whatever the journal holds.
func openStack(t *testing.T, operator *ecdsa.PrivateKey) *Stack {
	t.Helper()

	cfg := &config.Config{
		Storage: config.StorageConfig{
			Type:     "postgres",
			Postgres: config.PostgresConfig{URL: testCtx.ConnString},
		},
		Chain: config.ChainConfig{
			ID:       config.DefaultChainID,
			Operator: crypto.PubkeyToAddress(operator.PublicKey).Hex(),
			PriceWei: config.DefaultPriceWei,
		},
		Auth:     config.AuthConfig{Type: auth.ModeSignature, MaxSkewSeconds: 300},
		Logging:  config.LoggingConfig{Level: "warn", Format: "text"},
		Security: config.SecurityConfig{MaxBodySizeKB: 64},
	}
	logger := testLogger()

	store, err := storage.New(cfg.Storage, logger)
	require.NoError(t, err, "Failed to create store")
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()), "Failed to run migrations")

	n, err := node.New(node.Config{
		ChainID:  cfg.Chain.ID,
		Operator: cfg.Chain.OperatorAddress(),
		Price:    cfg.Chain.Price(),
	}, store, logger)
	require.NoError(t, err)
	_, err = n.Replay(context.Background())
	require.NoError(t, err, "Failed to replay journal")

	ts := httptest.NewServer(server.New(cfg, n, store, logger).Handler())
	t.Cleanup(ts.Close)

	return &Stack{Config: cfg, Store: store, Node: n, Server: ts, Operator: operator}
}

// newUser returns a client signing as a fresh key.
func (s *Stack) newUser(t *testing.T) *client.Client {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return client.New(s.Server.URL, client.WithSigner(key))
}

func (s *Stack) operatorClient() *client.Client {
	return client.New(s.Server.URL, client.WithSigner(s.Operator))
}

func (s *Stack) anonymous() *client.Client {
	return client.New(s.Server.URL)
}

// deposit buys one credit for c.
func deposit(t *testing.T, c *client.Client) {
	t.Helper()
	_, err := c.Deposit(context.Background(), mustPrice())
	require.NoError(t, err, "deposit")
}

func mustPrice() *big.Int {
	v, _ := new(big.Int).SetString(config.DefaultPriceWei, 10)
	return v
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "Error should be an APIError")
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
