package auth

import (
	"context"
	"crypto/ecdsa"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1_700_000_000, 0)

func writeTestError(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(code))
}

func signedRequest(t *testing.T, method, path, body string, ts int64) (*http.Request, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return signWith(t, key, method, path, body, ts), crypto.PubkeyToAddress(key.PublicKey)
}

func signWith(t *testing.T, key *ecdsa.PrivateKey, method, path, body string, ts int64) *http.Request {
	t.Helper()
	return signWithNonce(t, key, method, path, body, ts, "n-"+strconv.FormatInt(ts, 10))
}

func signWithNonce(t *testing.T, key *ecdsa.PrivateKey, method, path, body string, ts int64, nonce string) *http.Request {
	t.Helper()
	sig, err := Sign(key, method, path, ts, nonce, []byte(body))
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(HeaderAddress, crypto.PubkeyToAddress(key.PublicKey).Hex())
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderNonce, nonce)
	req.Header.Set(HeaderSignature, sig)
	return req
}

func serve(opts Options, req *http.Request) (*httptest.ResponseRecorder, context.Context, string) {
	var capturedCtx context.Context
	var capturedBody string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedCtx = r.Context()
		b, _ := io.ReadAll(r.Body)
		capturedBody = string(b)
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	Middleware(opts, writeTestError)(handler).ServeHTTP(rec, req)
	return rec, capturedCtx, capturedBody
}

func signatureOpts() Options {
	return Options{Mode: ModeSignature, MaxSkew: 5 * time.Minute, Now: func() time.Time { return testNow }}
}

func TestMiddleware_ValidSignature(t *testing.T) {
	body := `{"value":"1000"}`
	req, addr := signedRequest(t, "POST", "/api/v1/ledger/deposit", body, testNow.Unix())

	rec, ctx, gotBody := serve(signatureOpts(), req)

	require.Equal(t, http.StatusOK, rec.Code)
	caller, ok := CallerFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, addr, caller)
	assert.Equal(t, body, gotBody, "body must be readable after verification")
}

func TestMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *http.Request)
	}{
		{name: "missing address", mutate: func(r *http.Request) { r.Header.Del(HeaderAddress) }},
		{name: "malformed address", mutate: func(r *http.Request) { r.Header.Set(HeaderAddress, "0x123") }},
		{name: "other address", mutate: func(r *http.Request) {
			r.Header.Set(HeaderAddress, "0x00000000000000000000000000000000000000b2")
		}},
		{name: "missing timestamp", mutate: func(r *http.Request) { r.Header.Del(HeaderTimestamp) }},
		{name: "stale timestamp", mutate: func(r *http.Request) {
			r.Header.Set(HeaderTimestamp, strconv.FormatInt(testNow.Add(-10*time.Minute).Unix(), 10))
		}},
		{name: "future timestamp", mutate: func(r *http.Request) {
			r.Header.Set(HeaderTimestamp, strconv.FormatInt(testNow.Add(10*time.Minute).Unix(), 10))
		}},
		{name: "missing signature", mutate: func(r *http.Request) { r.Header.Del(HeaderSignature) }},
		{name: "garbage signature", mutate: func(r *http.Request) { r.Header.Set(HeaderSignature, "0xdeadbeef") }},
		{name: "different path", mutate: func(r *http.Request) { r.URL.Path = "/api/v1/ledger/withdraw" }},
		{name: "tampered body", mutate: func(r *http.Request) {
			r.Body = io.NopCloser(strings.NewReader(`{"value":"2000"}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := signedRequest(t, "POST", "/api/v1/ledger/deposit", `{"value":"1000"}`, testNow.Unix())
			tt.mutate(req)

			rec, ctx, _ := serve(signatureOpts(), req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, ctx)
		})
	}
}

func TestMiddleware_SkewWithinWindow(t *testing.T) {
	req, addr := signedRequest(t, "POST", "/api/v1/messages", `{}`, testNow.Add(-4*time.Minute).Unix())

	rec, ctx, _ := serve(signatureOpts(), req)
	require.Equal(t, http.StatusOK, rec.Code)
	caller, _ := CallerFromContext(ctx)
	assert.Equal(t, addr, caller)
}

func TestMiddleware_RejectsReplay(t *testing.T) {
	path := "/api/v1/features/contract-risk/requests"
	body := `{"target":"0xpool","params":{}}`
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	first := signWith(t, key, "POST", path, body, testNow.Unix())

	replayed := httptest.NewRequest("POST", path, strings.NewReader(body))
	replayed.Header = first.Header.Clone()

	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})
	mw := Middleware(signatureOpts(), writeTestError)(handler)

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, replayed)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, calls)

	// Re-encoding the recovery id does not make it a new request.
	sig := common.FromHex(first.Header.Get(HeaderSignature))
	sig[crypto.RecoveryIDOffset] -= 27
	reencoded := httptest.NewRequest("POST", path, strings.NewReader(body))
	reencoded.Header = first.Header.Clone()
	reencoded.Header.Set(HeaderSignature, hexutil.Encode(sig))
	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, reencoded)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The same body at a later timestamp is a new request.
	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, signWith(t, key, "POST", path, body, testNow.Unix()+1))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, calls)

	// So is the same body in the same second under another nonce, as sent by
	// a second process.
	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, signWithNonce(t, key, "POST", path, body, testNow.Unix(), "other-process"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, calls)
}

func TestMiddleware_Nonce(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	path := "/api/v1/ledger/deposit"

	tests := []struct {
		name  string
		nonce string
		want  int
	}{
		{name: "uuid", nonce: "3f1c7a52-8d0e-4b7a-9a56-1e2f3c4d5e6f", want: http.StatusOK},
		{name: "missing", nonce: "", want: http.StatusUnauthorized},
		{name: "too long", nonce: strings.Repeat("a", MaxNonceLength+1), want: http.StatusUnauthorized},
		{name: "newline", nonce: "a\nb", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := signWithNonce(t, key, "POST", path, `{}`, testNow.Unix(), tt.nonce)
			if tt.nonce == "" {
				req.Header.Del(HeaderNonce)
			}
			rec, _, _ := serve(signatureOpts(), req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	// The nonce is part of the signed payload.
	req := signWithNonce(t, key, "POST", path, `{}`, testNow.Unix(), "signed")
	req.Header.Set(HeaderNonce, "swapped")
	rec, _, _ := serve(signatureOpts(), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_BodyTooLarge(t *testing.T) {
	body := `{"value":"1000000000000000000"}`
	req, _ := signedRequest(t, "POST", "/api/v1/ledger/deposit", body, testNow.Unix())
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 8)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	Middleware(signatureOpts(), writeTestError)(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "BODY_TOO_LARGE", rec.Body.String())
}

func TestMiddleware_ModeNone(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	req := httptest.NewRequest("POST", "/api/v1/ledger/deposit", nil)
	req.Header.Set(HeaderAddress, addr.Hex())

	rec, ctx, _ := serve(Options{Mode: ModeNone}, req)
	require.Equal(t, http.StatusOK, rec.Code)
	caller, ok := CallerFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, addr, caller)
}

func TestCallerFromContext_Empty(t *testing.T) {
	_, ok := CallerFromContext(context.Background())
	assert.False(t, ok)
}

func TestRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := Sign(key, "DELETE", "/api/v1/domains/a.doma/rights/dns", 42, "n1", nil)
	require.NoError(t, err)

	// Sign emits the 27/28 recovery id used by wallets.
	raw := common.FromHex(sig)
	require.Len(t, raw, crypto.SignatureLength)
	assert.GreaterOrEqual(t, raw[crypto.RecoveryIDOffset], byte(27))

	got, err := Recover("DELETE", "/api/v1/domains/a.doma/rights/dns", 42, "n1", nil, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), got)

	_, err = Recover("DELETE", "/", 42, "n1", nil, "not-hex")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
