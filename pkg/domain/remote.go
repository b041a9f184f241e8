package domain

import (
	"context"
	"errors"
	"fmt"
)

// RemoteStore is the collaborator contract the batch synchronizer depends
// on. Create and update take the full record including nested lines; partial
// patches are not supported. Returned records are authoritative: the caller
// must substitute them for its local versions.
type RemoteStore interface {
	// CreateEntry persists a new entry. The incoming identity is provisional
	// and must be ignored; the returned record carries a persisted identity.
	CreateEntry(ctx context.Context, entry DiaryEntry) (DiaryEntry, error)
	// UpdateEntry replaces a persisted entry wholesale.
	UpdateEntry(ctx context.Context, entry DiaryEntry) (DiaryEntry, error)
	// DeleteEntries removes the given persisted entries and reports how many
	// existed.
	DeleteEntries(ctx context.Context, ids []ID) (int, error)
}

// DiaryStore extends the remote contract with the read side used to seed an
// editing session.
type DiaryStore interface {
	RemoteStore
	// ListDay returns the synchronized entries for one date bucket, ordered
	// by position.
	ListDay(ctx context.Context, day string) ([]DiaryEntry, error)
}

// Notifier is the notification sink for commit outcomes. One commit produces
// exactly one success or one failure notification.
type Notifier interface {
	Success(msg string)
	Failure(msg string)
}

// ErrNotFound is returned when an operation references an identity absent
// from both the base collection and the pending records.
type ErrNotFound struct {
	Entity EntityType
	ID     ID
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// RemoteError wraps a failed remote operation. The synchronizer never
// interprets the underlying payload; it only distinguishes success from
// failure.
type RemoteError struct {
	Op  Action
	ID  ID
	Err error
}

func (e *RemoteError) Error() string {
	if e.ID.IsZero() {
		return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s of %s failed: %v", e.Op, e.ID, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ErrCommitInFlight is returned when a commit is requested while another
// commit on the same buffer has not completed.
var ErrCommitInFlight = errors.New("commit already in flight")
