package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/domaguardian/domaguardian/internal/config"
)

// JournalStore handles the durable log of committed calls
type JournalStore interface {
	// AppendCall stores a committed call and its events in one transaction.
	AppendCall(ctx context.Context, call *CallRecord, events []EventRecord) error
	// ListCalls returns up to limit calls with Seq > afterSeq, in order.
	ListCalls(ctx context.Context, afterSeq uint64, limit int) ([]CallRecord, error)
	LatestSeq(ctx context.Context) (uint64, error)
}

// EventStore handles event queries
type EventStore interface {
	ListEvents(ctx context.Context, filter EventFilter, pagination PaginationParams) (*PaginatedResult[EventRecord], error)
}

// Store combines all storage interfaces with lifecycle methods.
// Consumers define their own minimal interfaces based on their actual usage.
type Store interface {
	JournalStore
	EventStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// CallRecord is a committed state-changing call
type CallRecord struct {
	ID       string
	Seq      uint64
	Hash     string
	Contract string
	Method   string
	From     string
	Value    string // wei, decimal
	Args     json.RawMessage
	Time     time.Time
}

// EventRecord is an event emitted by a committed call
type EventRecord struct {
	Seq      uint64          `json:"seq"`
	TxSeq    uint64          `json:"txSeq"`
	Index    int             `json:"index"`
	Contract string          `json:"contract"`
	Name     string          `json:"name"`
	Data     json.RawMessage `json:"data"`
	Time     time.Time       `json:"time"`
}

// EventFilter contains filter options for listing events
type EventFilter struct {
	Contract string
	Name     string
	TxSeq    uint64
}

// PaginationParams contains pagination options
type PaginationParams struct {
	Limit  int
	Cursor string
}

// PaginatedResult contains paginated results
type PaginatedResult[T any] struct {
	Data       []T
	HasMore    bool
	NextCursor string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
