// Package postgres provides a diary store that mirrors the in-memory
// semantics while snapshotting state to a Postgres table after every
// successful mutation.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"mealcore/internal/infra/persistence/memory"
	"mealcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.DiaryStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/mealcore?sslmode=disable"
	entriesBucket = "entries"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OverrideSQLOpen replaces the sql.Open hook for tests and returns a
// restore func.
func OverrideSQLOpen(fn func(driverName, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}

// Store persists state to Postgres while reusing the in-memory
// implementation for the diary semantics.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), ensures the snapshot table, and hydrates the in-memory
// store from any existing snapshot.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		return nil, err
	}
	s := &Store{Store: memory.NewStore(), db: db}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context) error {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = $1`, entriesBucket).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	var snap memory.Snapshot
	if err := json.Unmarshal(payload, &snap.Entries); err != nil {
		return fmt.Errorf("decode entries: %w", err)
	}
	s.ImportState(snap)
	return nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.ExportState()
	data, err := json.Marshal(snap.Entries)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
		entriesBucket, data,
	); err != nil {
		return fmt.Errorf("upsert %s: %w", entriesBucket, err)
	}
	return nil
}

// CreateEntry persists a new entry and snapshots state to Postgres.
func (s *Store) CreateEntry(ctx context.Context, entry domain.DiaryEntry) (domain.DiaryEntry, error) {
	created, err := s.Store.CreateEntry(ctx, entry)
	if err != nil {
		return created, err
	}
	if pErr := s.persist(ctx); pErr != nil {
		return created, pErr
	}
	return created, nil
}

// UpdateEntry replaces a persisted entry and snapshots state to Postgres.
func (s *Store) UpdateEntry(ctx context.Context, entry domain.DiaryEntry) (domain.DiaryEntry, error) {
	updated, err := s.Store.UpdateEntry(ctx, entry)
	if err != nil {
		return updated, err
	}
	if pErr := s.persist(ctx); pErr != nil {
		return updated, pErr
	}
	return updated, nil
}

// DeleteEntries removes entries and snapshots state to Postgres.
func (s *Store) DeleteEntries(ctx context.Context, ids []domain.ID) (int, error) {
	n, err := s.Store.DeleteEntries(ctx, ids)
	if err != nil {
		return n, err
	}
	if pErr := s.persist(ctx); pErr != nil {
		return n, pErr
	}
	return n, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }
