package node

import (
	"context"
	"log/slog"
	"time"
)

// Service is the node API used by transports.
type Service interface {
	Submit(ctx context.Context, call Call) (*Result, error)
	Read(fn func(s *State))
	Halted() error
}

// LoggingMiddleware returns a service middleware that logs all writes.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Submit(ctx context.Context, call Call) (*Result, error) {
	start := time.Now()
	res, err := m.next.Submit(ctx, call)
	attrs := []any{
		"contract", call.Contract,
		"method", call.Method,
		"from", call.From.Hex(),
	}
	if call.Value != nil && call.Value.Sign() > 0 {
		attrs = append(attrs, "value", call.Value.String())
	}
	if res != nil {
		attrs = append(attrs, "seq", res.Receipt.Seq, "events", len(res.Receipt.Events))
	}
	attrs = append(attrs, "duration", time.Since(start), "error", err)
	m.logger.Info("Submit", attrs...)
	return res, err
}

func (m *loggingMiddleware) Read(fn func(s *State)) {
	m.next.Read(fn)
}

func (m *loggingMiddleware) Halted() error {
	return m.next.Halted()
}
