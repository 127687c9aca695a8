package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Middleware returns HTTP middleware for request metrics.
func Middleware(next http.Handler) http.Handler {
	if !enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			duration := time.Since(start).Seconds()

			// Normalize path to avoid high cardinality from IDs
			path := normalizePath(r.URL.Path)

			httpRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(rw.status),
			).Inc()

			httpDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(duration)
		}()

		next.ServeHTTP(rw, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures status code.
func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

// staticSegments are the fixed words of API routes. Every other segment is
// an address, index, domain name or target and is collapsed to {id}.
var staticSegments = map[string]bool{
	"chain": true, "events": true,
	"ledger": true, "deposit": true, "accounts": true, "authorizations": true, "withdraw": true, "reconciliation": true,
	"features": true, "contract-risk": true, "tokenomics": true, "social-sentiment": true,
	"requests": true, "pending": true, "complete": true,
	"monitoring": true, "subscriptions": true, "stop": true, "targets": true, "subscribers": true, "alerts": true,
	"messages": true, "cross-chain": true, "sent": true, "received": true,
	"domains": true, "history": true, "rights": true, "transfer": true, "sync": true, "owners": true,
	"contracts": true, "ownership": true, "accept": true,
}

// normalizePath converts dynamic path segments to placeholders to avoid
// high cardinality metrics. For example:
//
//	/api/v1/ledger/accounts/0xabc... -> /api/v1/ledger/accounts/{id}
//	/api/v1/domains/guardian.doma/rights/dns -> /api/v1/domains/{id}/rights/{id}
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/api/v1/") {
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	normalized := []string{"/api/v1"}
	for _, part := range parts {
		if part == "" {
			continue
		}
		if staticSegments[part] {
			normalized = append(normalized, part)
		} else {
			normalized = append(normalized, "{id}")
		}
	}
	return strings.Join(normalized, "/")
}
