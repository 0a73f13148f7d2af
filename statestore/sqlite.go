package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/autobuy/order"
)

type sqliteConfig struct {
	busyTimeout  int
	synchronous  string
	historyLimit int
	mkdirAll     bool
}

func sqliteDefaults() sqliteConfig {
	return sqliteConfig{
		busyTimeout:  10_000,
		synchronous:  "NORMAL",
		historyLimit: DefaultHistoryLimit,
	}
}

// Option customises OpenSQLite.
type Option func(*sqliteConfig)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *sqliteConfig) { c.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(c *sqliteConfig) { c.synchronous = mode } }

// WithHistoryLimit overrides the number of history entries retained.
func WithHistoryLimit(n int) Option { return func(c *sqliteConfig) { c.historyLimit = n } }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *sqliteConfig) { c.mkdirAll = true } }

// SQLite is the default Store backend.
type SQLite struct {
	db    *sql.DB
	limit int
}

// OpenSQLite opens (or creates) the state database at path, applies the
// production pragmas and the schema.
func OpenSQLite(path string, opts ...Option) (*SQLite, error) {
	cfg := sqliteDefaults()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.historyLimit <= 0 {
		cfg.historyLimit = DefaultHistoryLimit
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("statestore: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statestore: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("statestore: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("statestore: exec schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("statestore: ping: %w", err)
	}

	return &SQLite{db: db, limit: cfg.historyLimit}, nil
}

// OpenMemory opens an in-memory store for tests. A single connection keeps
// every query on the same database; the store is closed on cleanup.
func OpenMemory(t testing.TB, opts ...Option) *SQLite {
	t.Helper()
	s, err := OpenSQLite(":memory:", opts...)
	if err != nil {
		t.Fatalf("statestore.OpenMemory: %v", err)
	}
	s.db.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	return s
}

// DB exposes the handle for admin and tests.
func (s *SQLite) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) PutInFlight(ctx context.Context, f order.InFlight) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("statestore: marshal in-flight: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO inflight (slot, origin, payload, started_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			origin = excluded.origin,
			payload = excluded.payload,
			started_at = excluded.started_at`,
		f.Origin, string(payload), f.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("statestore: put in-flight: %w", err)
	}
	return nil
}

func (s *SQLite) PeekInFlight(ctx context.Context) (*order.InFlight, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM inflight WHERE slot = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: peek in-flight: %w", err)
	}
	return decodeInFlight(payload)
}

func (s *SQLite) TakeInFlight(ctx context.Context, origin string) (*order.InFlight, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM inflight WHERE slot = 1 AND origin = ? RETURNING payload`, origin).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: take in-flight: %w", err)
	}
	return decodeInFlight(payload)
}

func (s *SQLite) ClearInFlight(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM inflight`); err != nil {
		return fmt.Errorf("statestore: clear in-flight: %w", err)
	}
	return nil
}

func (s *SQLite) AppendHistory(ctx context.Context, e order.HistoryEntry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("statestore: marshal history: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("statestore: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO history (id, order_id, platform, status, processed_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.OrderID, string(e.Platform), string(e.Status), e.ProcessedAt.UnixNano(), string(payload)); err != nil {
		return fmt.Errorf("statestore: insert history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM history WHERE seq NOT IN (
			SELECT seq FROM history ORDER BY processed_at DESC, seq DESC LIMIT ?
		)`, s.limit); err != nil {
		return fmt.Errorf("statestore: trim history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("statestore: commit history: %w", err)
	}
	return nil
}

func (s *SQLite) History(ctx context.Context) ([]order.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM history ORDER BY processed_at DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("statestore: list history: %w", err)
	}
	defer rows.Close()

	entries := []order.HistoryEntry{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var e order.HistoryEntry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("statestore: decode history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLite) LatestForOrder(ctx context.Context, orderID string) (*order.HistoryEntry, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM history WHERE order_id = ?
		ORDER BY processed_at DESC, seq DESC LIMIT 1`, orderID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: latest history: %w", err)
	}
	var e order.HistoryEntry
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return nil, fmt.Errorf("statestore: decode history: %w", err)
	}
	return &e, nil
}

func (s *SQLite) RetryCount(ctx context.Context, orderID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT attempts FROM retry_counters WHERE order_id = ?`, orderID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("statestore: retry count: %w", err)
	}
	return n, nil
}

func (s *SQLite) ConsumeRetry(ctx context.Context, orderID string, max int) (int, error) {
	if max <= 0 {
		return 0, ErrRetryLimit
	}
	var n int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO retry_counters (order_id, attempts, updated_at) VALUES (?, 1, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			attempts = retry_counters.attempts + 1,
			updated_at = excluded.updated_at
		WHERE retry_counters.attempts < ?
		RETURNING attempts`,
		orderID, time.Now().UnixMilli(), max).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrRetryLimit
	}
	if err != nil {
		return 0, fmt.Errorf("statestore: consume retry: %w", err)
	}
	return n, nil
}

func decodeInFlight(payload string) (*order.InFlight, error) {
	var f order.InFlight
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return nil, fmt.Errorf("statestore: decode in-flight: %w", err)
	}
	return &f, nil
}
