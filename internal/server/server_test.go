package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domaguardian/domaguardian/internal/auth"
	"github.com/domaguardian/domaguardian/internal/config"
	"github.com/domaguardian/domaguardian/internal/node"
)

func testConfig() *config.Config {
	return &config.Config{
		Chain: config.ChainConfig{
			ID:       config.DefaultChainID,
			Operator: "0x00000000000000000000000000000000000000a1",
			PriceWei: config.DefaultPriceWei,
		},
		Auth:     config.AuthConfig{Type: auth.ModeSignature, MaxSkewSeconds: 300},
		Security: config.SecurityConfig{MaxBodySizeKB: 1},
		RateLimit: config.RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 600,
			BurstSize:      100,
			CleanupMinutes: 10,
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	n, err := node.New(node.Config{
		ChainID:  cfg.Chain.ID,
		Operator: cfg.Chain.OperatorAddress(),
		Price:    cfg.Chain.Price(),
	}, nil, testLogger())
	require.NoError(t, err)
	return New(cfg, n, nil, testLogger())
}

// haltedService is a node.Service whose journal has failed.
type haltedService struct {
	node.Service
}

func (haltedService) Halted() error { return errors.New("disk full") }

func TestHealth(t *testing.T) {
	srv := newTestServer(t, testConfig())

	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), `"status":"ok"`)
		})
	}
}

func TestReady_Halted(t *testing.T) {
	cfg := testConfig()
	n, err := node.New(node.Config{
		ChainID:  cfg.Chain.ID,
		Operator: cfg.Chain.OperatorAddress(),
		Price:    cfg.Chain.Price(),
	}, nil, testLogger())
	require.NoError(t, err)
	srv := New(cfg, haltedService{n}, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk full")
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ledger/deposit", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), auth.HeaderSignature)
}

func TestReadRoutes(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chain", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		ChainID  uint64 `json:"chainId"`
		PriceWei string `json:"priceWei"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(config.DefaultChainID), resp.ChainID)
	assert.Equal(t, config.DefaultPriceWei, resp.PriceWei)
}

func TestSignedDeposit(t *testing.T) {
	srv := newTestServer(t, testConfig())
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	caller := crypto.PubkeyToAddress(key.PublicKey)

	body := []byte(`{"value":"` + config.DefaultPriceWei + `"}`)
	path := "/api/v1/ledger/deposit"

	newRequest := func(t *testing.T, ts int64) *http.Request {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(auth.HeaderAddress, caller.Hex())
		req.Header.Set(auth.HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(auth.HeaderNonce, "n-"+strconv.FormatInt(ts, 10))
		sig, err := auth.Sign(key, http.MethodPost, path, ts, "n-"+strconv.FormatInt(ts, 10), body)
		require.NoError(t, err)
		req.Header.Set(auth.HeaderSignature, sig)
		return req
	}

	t.Run("unsigned", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("stale", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, newRequest(t, time.Now().Add(-time.Hour).Unix()))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("signed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, newRequest(t, time.Now().Unix()))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res struct {
			Receipt struct {
				Seq   uint64   `json:"seq"`
				Value *big.Int `json:"value"`
			} `json:"receipt"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, uint64(1), res.Receipt.Seq)
		assert.Equal(t, config.DefaultPriceWei, res.Receipt.Value.String())
	})
}

func TestRejectsNonJSONBody(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", bytes.NewReader([]byte("hello")))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RequestsPerMin = 1
	cfg.RateLimit.BurstSize = 2
	srv := newTestServer(t, cfg)

	var codes []int
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/chain", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Health checks bypass the limiter.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRun_StopsWithContext(t *testing.T) {
	srv := newTestServer(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
