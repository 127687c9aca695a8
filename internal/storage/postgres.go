package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- Committed calls, in execution order
	CREATE TABLE IF NOT EXISTS calls (
		seq BIGINT PRIMARY KEY,
		id UUID NOT NULL UNIQUE,
		hash TEXT NOT NULL,
		contract TEXT NOT NULL,
		method TEXT NOT NULL,
		sender TEXT NOT NULL,
		value NUMERIC(78, 0) NOT NULL,
		args JSONB NOT NULL,
		time TIMESTAMPTZ NOT NULL
	);

	-- Events emitted by committed calls
	CREATE TABLE IF NOT EXISTS events (
		seq BIGINT PRIMARY KEY,
		tx_seq BIGINT NOT NULL REFERENCES calls(seq),
		idx INTEGER NOT NULL,
		contract TEXT NOT NULL,
		name TEXT NOT NULL,
		data JSONB NOT NULL,
		time TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_contract ON events(contract, seq);
	CREATE INDEX IF NOT EXISTS idx_events_name ON events(name, seq);
	CREATE INDEX IF NOT EXISTS idx_events_tx_seq ON events(tx_seq);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	s.logger.Debug("postgres migrations applied")
	return nil
}

// AppendCall stores a committed call and its events
func (s *PostgresStore) AppendCall(ctx context.Context, call *CallRecord, events []EventRecord) error {
	if call.ID == "" {
		call.ID = generateID()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var latest int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM calls`).Scan(&latest); err != nil {
		return fmt.Errorf("reading latest seq: %w", err)
	}
	if call.Seq != uint64(latest)+1 {
		return fmt.Errorf("%w: got %d, want %d", ErrOutOfOrder, call.Seq, latest+1)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO calls (seq, id, hash, contract, method, sender, value, args, time) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		int64(call.Seq), call.ID, call.Hash, call.Contract, call.Method, call.From, call.Value, string(call.Args), call.Time.UTC())
	if err != nil {
		return fmt.Errorf("inserting call: %w", err)
	}

	for _, ev := range events {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO events (seq, tx_seq, idx, contract, name, data, time) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			int64(ev.Seq), int64(call.Seq), ev.Index, ev.Contract, ev.Name, string(ev.Data), ev.Time.UTC())
		if err != nil {
			return fmt.Errorf("inserting event %d: %w", ev.Seq, err)
		}
	}

	return tx.Commit()
}

// ListCalls returns calls after afterSeq in execution order
func (s *PostgresStore) ListCalls(ctx context.Context, afterSeq uint64, limit int) ([]CallRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, hash, contract, method, sender, value::TEXT, args::TEXT, time FROM calls WHERE seq > $1 ORDER BY seq LIMIT $2`,
		int64(afterSeq), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []CallRecord
	for rows.Next() {
		var c CallRecord
		var seq int64
		var args string
		var at time.Time
		if err := rows.Scan(&seq, &c.ID, &c.Hash, &c.Contract, &c.Method, &c.From, &c.Value, &args, &at); err != nil {
			return nil, err
		}
		c.Seq = uint64(seq)
		c.Args = []byte(args)
		c.Time = at.UTC()
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// LatestSeq returns the sequence number of the last committed call
func (s *PostgresStore) LatestSeq(ctx context.Context) (uint64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM calls`).Scan(&seq)
	return uint64(seq), err
}

// ListEvents lists events with filtering and cursor-based pagination
func (s *PostgresStore) ListEvents(ctx context.Context, filter EventFilter, pagination PaginationParams) (*PaginatedResult[EventRecord], error) {
	after, err := parseCursor(pagination.Cursor)
	if err != nil {
		return nil, err
	}

	whereClauses := []string{"seq > $1"}
	args := []any{int64(after)}
	argIdx := 2
	if filter.Contract != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("contract = $%d", argIdx))
		args = append(args, filter.Contract)
		argIdx++
	}
	if filter.Name != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, filter.Name)
		argIdx++
	}
	if filter.TxSeq != 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("tx_seq = $%d", argIdx))
		args = append(args, int64(filter.TxSeq))
		argIdx++
	}
	query := `SELECT seq, tx_seq, idx, contract, name, data::TEXT, time FROM events WHERE ` +
		strings.Join(whereClauses, " AND ") + fmt.Sprintf(` ORDER BY seq LIMIT $%d`, argIdx)
	args = append(args, pagination.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		var seq, txSeq int64
		var data string
		var at time.Time
		if err := rows.Scan(&seq, &txSeq, &e.Index, &e.Contract, &e.Name, &data, &at); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		e.TxSeq = uint64(txSeq)
		e.Data = []byte(data)
		e.Time = at.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pageEvents(events, pagination.Limit), nil
}

var _ Store = (*PostgresStore)(nil)
