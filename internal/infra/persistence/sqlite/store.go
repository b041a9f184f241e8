// Package sqlite provides a diary store that snapshots the in-memory state
// into a single SQLite table after every successful mutation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"mealcore/internal/infra/persistence/memory"
	"mealcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.DiaryStore = (*Store)(nil)

const entriesBucket = "entries"

// Store persists the in-memory state to SQLite as a JSON blob per bucket.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path, ensures the schema, and
// hydrates the in-memory store from any existing snapshot. An empty path
// defaults to ./mealcore.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "mealcore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM state WHERE bucket = ?`, entriesBucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *Store) persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.ExportState()
	data, err := json.Marshal(snap.Entries)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(
		`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
		entriesBucket, data,
	); err != nil {
		return fmt.Errorf("upsert %s: %w", entriesBucket, err)
	}
	return nil
}

// CreateEntry persists a new entry and snapshots state to SQLite.
func (s *Store) CreateEntry(ctx context.Context, entry domain.DiaryEntry) (domain.DiaryEntry, error) {
	created, err := s.Store.CreateEntry(ctx, entry)
	if err != nil {
		return created, err
	}
	if pErr := s.persist(); pErr != nil {
		return created, pErr
	}
	return created, nil
}

// UpdateEntry replaces a persisted entry and snapshots state to SQLite.
func (s *Store) UpdateEntry(ctx context.Context, entry domain.DiaryEntry) (domain.DiaryEntry, error) {
	updated, err := s.Store.UpdateEntry(ctx, entry)
	if err != nil {
		return updated, err
	}
	if pErr := s.persist(); pErr != nil {
		return updated, pErr
	}
	return updated, nil
}

// DeleteEntries removes entries and snapshots state to SQLite.
func (s *Store) DeleteEntries(ctx context.Context, ids []domain.ID) (int, error) {
	n, err := s.Store.DeleteEntries(ctx, ids)
	if err != nil {
		return n, err
	}
	if pErr := s.persist(); pErr != nil {
		return n, pErr
	}
	return n, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
