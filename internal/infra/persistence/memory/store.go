// Package memory provides the in-memory diary store used for tests and
// ephemeral environments. It plays the remote side of the synchronization
// contract: it assigns persisted identities and its returned records are
// authoritative.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"mealcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.DiaryStore = (*Store)(nil)

// Store keeps diary entries in process memory, keyed by persisted identity.
type Store struct {
	mu      sync.RWMutex
	entries map[string]domain.DiaryEntry
	nowFn   func() time.Time
}

// NewStore constructs an empty in-memory diary store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]domain.DiaryEntry),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// CreateEntry persists a new entry. The incoming provisional identity is
// discarded; the stored record gets a fresh persisted identity, persisted
// line identities, server-side timestamps, and recomputed totals.
func (s *Store) CreateEntry(_ context.Context, entry domain.DiaryEntry) (domain.DiaryEntry, error) {
	if entry.Day == "" {
		return domain.DiaryEntry{}, fmt.Errorf("entry day is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	stored := entry.Clone()
	stored.ID = domain.PersistedID(s.newID())
	for i := range stored.Lines {
		stored.Lines[i].ID = domain.PersistedID(s.newID())
	}
	stored.Totals = domain.ComputeTotals(stored.Lines)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.entries[stored.ID.Value] = stored.Clone()
	return stored, nil
}

// UpdateEntry replaces a persisted entry wholesale. Lines still carrying
// provisional identities are materialized; totals are recomputed.
func (s *Store) UpdateEntry(_ context.Context, entry domain.DiaryEntry) (domain.DiaryEntry, error) {
	if entry.ID.IsProvisional() {
		return domain.DiaryEntry{}, fmt.Errorf("update rejected: identity %s is provisional", entry.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entries[entry.ID.Value]
	if !ok {
		return domain.DiaryEntry{}, domain.ErrNotFound{Entity: domain.EntityDiaryEntry, ID: entry.ID}
	}
	stored := entry.Clone()
	for i := range stored.Lines {
		if stored.Lines[i].ID.IsProvisional() || stored.Lines[i].ID.IsZero() {
			stored.Lines[i].ID = domain.PersistedID(s.newID())
		}
	}
	stored.Totals = domain.ComputeTotals(stored.Lines)
	stored.CreatedAt = current.CreatedAt
	stored.UpdatedAt = s.nowFn()
	s.entries[stored.ID.Value] = stored.Clone()
	return stored, nil
}

// DeleteEntries removes the given entries and reports how many existed.
// Provisional identities are a contract violation and rejected outright.
func (s *Store) DeleteEntries(_ context.Context, ids []domain.ID) (int, error) {
	for _, id := range ids {
		if id.IsProvisional() {
			return 0, fmt.Errorf("delete rejected: identity %s is provisional", id)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, ok := s.entries[id.Value]; ok {
			delete(s.entries, id.Value)
			deleted++
		}
	}
	return deleted, nil
}

// ListDay returns the entries of one date bucket ordered by position, with
// creation time and identity as tie breakers.
func (s *Store) ListDay(_ context.Context, day string) ([]domain.DiaryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.DiaryEntry
	for _, e := range s.entries {
		if e.Day == day {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Value < out[j].ID.Value
	})
	return out, nil
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Entries map[string]domain.DiaryEntry `json:"entries"`
}

// ExportState returns a deep copy of the current state for persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{Entries: make(map[string]domain.DiaryEntry, len(s.entries))}
	for k, v := range s.entries {
		snap.Entries[k] = v.Clone()
	}
	return snap
}

// ImportState replaces the current state with the snapshot's contents.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]domain.DiaryEntry, len(snap.Entries))
	for k, v := range snap.Entries {
		s.entries[k] = v.Clone()
	}
}
