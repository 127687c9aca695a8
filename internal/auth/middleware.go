// Package auth identifies the caller of write requests.
package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Modes.
const (
	ModeSignature = "signature"
	ModeNone      = "none"
)

// Context key type for avoiding collisions
type contextKey string

const callerContextKey contextKey = "caller"

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (common.Address, bool) {
	addr, ok := ctx.Value(callerContextKey).(common.Address)
	return addr, ok
}

// WithCaller returns a copy of ctx carrying addr.
func WithCaller(ctx context.Context, addr common.Address) context.Context {
	return context.WithValue(ctx, callerContextKey, addr)
}

// DefaultReplayCacheSize is the number of accepted signed requests remembered
// for replay detection.
const DefaultReplayCacheSize = 100_000

// Options configures the middleware.
type Options struct {
	// Mode is ModeSignature or ModeNone.
	Mode    string
	MaxSkew time.Duration
	// ReplayCacheSize defaults to DefaultReplayCacheSize.
	ReplayCacheSize int
	// Now defaults to time.Now.
	Now func() time.Time
}

// RequestID identifies a signed request independently of how its signature is
// encoded. Two requests with the same ID carry the same signed payload.
func RequestID(signer common.Address, method, path string, timestamp int64, nonce string, body []byte) common.Hash {
	return crypto.Keccak256Hash(signer.Bytes(), []byte(Payload(method, path, timestamp, nonce, body)))
}

// Middleware returns an HTTP middleware that authenticates the caller from the
// signature headers. In ModeNone the X-Address header is trusted as is.
func Middleware(opts Options, writeError func(w http.ResponseWriter, status int, code, message string)) func(http.Handler) http.Handler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	size := opts.ReplayCacheSize
	if size <= 0 {
		size = DefaultReplayCacheSize
	}
	// Only fails for a non-positive size.
	seen, _ := lru.New[common.Hash, struct{}](size)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(HeaderAddress)
			if !common.IsHexAddress(header) {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "X-Address header with a valid address required")
				return
			}
			claimed := common.HexToAddress(header)

			if opts.Mode == ModeNone {
				next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), claimed)))
				return
			}

			ts, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "X-Timestamp header required")
				return
			}
			skew := now().Sub(time.Unix(ts, 0))
			if skew < 0 {
				skew = -skew
			}
			if skew > opts.MaxSkew {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Request timestamp outside allowed window")
				return
			}

			nonce := r.Header.Get(HeaderNonce)
			if !ValidNonce(nonce) {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", fmt.Sprintf("X-Nonce header of 1 to %d printable characters required", MaxNonceLength))
				return
			}

			sig := r.Header.Get(HeaderSignature)
			if sig == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "X-Signature header required")
				return
			}

			var body []byte
			if r.Body != nil {
				body, err = io.ReadAll(r.Body)
				if err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
						return
					}
					writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Failed to read request body")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			signer, err := Recover(r.Method, r.URL.Path, ts, nonce, body, sig)
			if err != nil || signer != claimed {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid signature")
				return
			}
			// A signed payload is accepted once. Entries older than the skew
			// window could not pass the timestamp check again anyway.
			if found, _ := seen.ContainsOrAdd(RequestID(signer, r.Method, r.URL.Path, ts, nonce, body), struct{}{}); found {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Request already used")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), signer)))
		})
	}
}
