// Package server provides the HTTP server setup and wiring.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/domaguardian/domaguardian/internal/auth"
	"github.com/domaguardian/domaguardian/internal/config"
	"github.com/domaguardian/domaguardian/internal/middleware/logging"
	"github.com/domaguardian/domaguardian/internal/middleware/ratelimit"
	"github.com/domaguardian/domaguardian/internal/middleware/realip"
	"github.com/domaguardian/domaguardian/internal/middleware/security"
	"github.com/domaguardian/domaguardian/internal/node"
	"github.com/domaguardian/domaguardian/internal/observability/metrics"
	"github.com/domaguardian/domaguardian/internal/transport"
)

// Server is the HTTP server
type Server struct {
	cfg     *config.Config
	svc     node.Service
	events  transport.EventLister
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	router  *chi.Mux
}

// New creates a new server. events may be nil when the node keeps no journal.
func New(cfg *config.Config, svc node.Service, events transport.EventLister, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		svc:    node.LoggingMiddleware(logger)(svc),
		events: events,
		logger: logger,
		router: chi.NewRouter(),
	}
	if cfg.RateLimit.Enabled {
		s.limiter = ratelimit.New(ratelimit.Config{
			Enabled:        cfg.RateLimit.Enabled,
			RequestsPerMin: cfg.RateLimit.RequestsPerMin,
			BurstSize:      cfg.RateLimit.BurstSize,
			CleanupMinutes: cfg.RateLimit.CleanupMinutes,
		}, ratelimit.ByClientIP)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

// Run evicts idle rate limit buckets until ctx is done.
func (s *Server) Run(ctx context.Context) {
	if s.limiter == nil {
		<-ctx.Done()
		return
	}
	s.limiter.Run(ctx)
}

func (s *Server) setupMiddleware() {
	// Client IP first; the limiter and request log key on it.
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	s.router.Use(security.MaxBodySize(s.cfg.Security.MaxBodySizeKB))
	s.router.Use(security.RequireJSON)

	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware())
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	if t := s.cfg.Server.RequestTimeout; t > 0 {
		s.router.Use(middleware.Timeout(time.Duration(t) * time.Second))
	}

	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, "+
				auth.HeaderAddress+", "+auth.HeaderTimestamp+", "+auth.HeaderNonce+", "+auth.HeaderSignature)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	if metrics.Enabled() {
		s.router.Handle("/metrics", metrics.Handler())
	}

	h := transport.NewHandler(s.svc, s.events)
	requireAuth := auth.Middleware(auth.Options{
		Mode:    s.cfg.Auth.Type,
		MaxSkew: time.Duration(s.cfg.Auth.MaxSkewSeconds) * time.Second,
	}, transport.WriteError)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Read operations - no auth required
		h.RegisterReadRoutes(r)

		// Write operations - signed caller required
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			h.RegisterWriteRoutes(r)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady fails once a journal error has halted writes.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Halted(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "halted",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
