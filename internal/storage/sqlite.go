package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// The journal has a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Committed calls, in execution order
	CREATE TABLE IF NOT EXISTS calls (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		hash TEXT NOT NULL,
		contract TEXT NOT NULL,
		method TEXT NOT NULL,
		sender TEXT NOT NULL,
		value TEXT NOT NULL,
		args TEXT NOT NULL,
		time_ns INTEGER NOT NULL
	);

	-- Events emitted by committed calls
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY,
		tx_seq INTEGER NOT NULL REFERENCES calls(seq),
		idx INTEGER NOT NULL,
		contract TEXT NOT NULL,
		name TEXT NOT NULL,
		data TEXT NOT NULL,
		time_ns INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_contract ON events(contract, seq);
	CREATE INDEX IF NOT EXISTS idx_events_name ON events(name, seq);
	CREATE INDEX IF NOT EXISTS idx_events_tx_seq ON events(tx_seq);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	s.logger.Debug("sqlite migrations applied")
	return nil
}

// AppendCall stores a committed call and its events
func (s *SQLiteStore) AppendCall(ctx context.Context, call *CallRecord, events []EventRecord) error {
	if call.ID == "" {
		call.ID = generateID()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var latest uint64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM calls`).Scan(&latest); err != nil {
		return fmt.Errorf("reading latest seq: %w", err)
	}
	if call.Seq != latest+1 {
		return fmt.Errorf("%w: got %d, want %d", ErrOutOfOrder, call.Seq, latest+1)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO calls (seq, id, hash, contract, method, sender, value, args, time_ns) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.Seq, call.ID, call.Hash, call.Contract, call.Method, call.From, call.Value, string(call.Args), call.Time.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting call: %w", err)
	}

	for _, ev := range events {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO events (seq, tx_seq, idx, contract, name, data, time_ns) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.Seq, call.Seq, ev.Index, ev.Contract, ev.Name, string(ev.Data), ev.Time.UnixNano())
		if err != nil {
			return fmt.Errorf("inserting event %d: %w", ev.Seq, err)
		}
	}

	return tx.Commit()
}

// ListCalls returns calls after afterSeq in execution order
func (s *SQLiteStore) ListCalls(ctx context.Context, afterSeq uint64, limit int) ([]CallRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, hash, contract, method, sender, value, args, time_ns FROM calls WHERE seq > ? ORDER BY seq LIMIT ?`,
		afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []CallRecord
	for rows.Next() {
		var c CallRecord
		var args string
		var ns int64
		if err := rows.Scan(&c.Seq, &c.ID, &c.Hash, &c.Contract, &c.Method, &c.From, &c.Value, &args, &ns); err != nil {
			return nil, err
		}
		c.Args = []byte(args)
		c.Time = time.Unix(0, ns).UTC()
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// LatestSeq returns the sequence number of the last committed call
func (s *SQLiteStore) LatestSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM calls`).Scan(&seq)
	return seq, err
}

// ListEvents lists events with filtering and cursor-based pagination
func (s *SQLiteStore) ListEvents(ctx context.Context, filter EventFilter, pagination PaginationParams) (*PaginatedResult[EventRecord], error) {
	after, err := parseCursor(pagination.Cursor)
	if err != nil {
		return nil, err
	}

	whereClauses := []string{"seq > ?"}
	args := []any{after}
	if filter.Contract != "" {
		whereClauses = append(whereClauses, "contract = ?")
		args = append(args, filter.Contract)
	}
	if filter.Name != "" {
		whereClauses = append(whereClauses, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.TxSeq != 0 {
		whereClauses = append(whereClauses, "tx_seq = ?")
		args = append(args, filter.TxSeq)
	}
	query := `SELECT seq, tx_seq, idx, contract, name, data, time_ns FROM events WHERE ` +
		strings.Join(whereClauses, " AND ") + ` ORDER BY seq LIMIT ?`
	args = append(args, pagination.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		var data string
		var ns int64
		if err := rows.Scan(&e.Seq, &e.TxSeq, &e.Index, &e.Contract, &e.Name, &data, &ns); err != nil {
			return nil, err
		}
		e.Data = []byte(data)
		e.Time = time.Unix(0, ns).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pageEvents(events, pagination.Limit), nil
}

var _ Store = (*SQLiteStore)(nil)
