package core

import (
	"context"
	"fmt"

	"mealcore/pkg/domain"
)

// CommitFailure records one remote operation that did not complete. The
// corresponding identity stays pending so a retry resends exactly the
// unresolved remainder.
type CommitFailure struct {
	ID  ID
	Op  Action
	Err error
}

// CommitResult summarizes one batch synchronization.
type CommitResult struct {
	Created int
	Updated int
	Deleted int
	NoOp    bool
	Failed  []CommitFailure
}

// Ok reports whether every remote operation completed.
func (r CommitResult) Ok() bool {
	return len(r.Failed) == 0
}

// CommitError is the single failure outcome of a commit with at least one
// failed remote operation. Individual causes are available via Unwrap and
// the embedded result.
type CommitError struct {
	Result CommitResult
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit finished with %d failed remote operations", len(e.Result.Failed))
}

// Unwrap exposes the per-operation remote errors.
func (e *CommitError) Unwrap() []error {
	errs := make([]error, 0, len(e.Result.Failed))
	for _, f := range e.Result.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// Syncer flushes a buffer's pending sets to the remote store.
type Syncer struct {
	remote domain.RemoteStore
	logger Logger
}

// NewSyncer constructs a synchronizer. A nil logger is replaced with a no-op.
func NewSyncer(remote domain.RemoteStore, logger Logger) *Syncer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Syncer{remote: remote, logger: logger}
}

// Commit dispatches one remote operation per pending item, in insertion
// order, routing by identity kind: provisional records are created, the
// rest updated, and soft-deleted persisted identities removed in one batch.
// There is no server-side transaction across the calls; instead of aborting
// on the first failure the loop accumulates per-item outcomes, folds every
// success into the buffer's base immediately, and leaves failed items
// pending. Provisional records deleted before ever syncing are dropped
// locally and never reach the remote store.
//
// Operations run strictly sequentially so call order is deterministic.
// A second Commit while one is in flight fails with ErrCommitInFlight.
func (s *Syncer) Commit(ctx context.Context, b *Buffer) (CommitResult, error) {
	snap, err := b.beginCommit()
	if err != nil {
		return CommitResult{}, err
	}
	defer b.endCommit()

	if snap.empty() {
		return CommitResult{NoOp: true}, nil
	}

	var result CommitResult
	for _, item := range snap.items {
		if item.id.IsProvisional() {
			persisted, err := s.remote.CreateEntry(ctx, item.entry)
			if err != nil {
				s.logger.Warn("remote create failed", "id", item.id.String(), "error", err)
				result.Failed = append(result.Failed, CommitFailure{
					ID: item.id, Op: ActionCreate,
					Err: &domain.RemoteError{Op: ActionCreate, ID: item.id, Err: err},
				})
				continue
			}
			b.resolveCreate(item.id, persisted)
			result.Created++
			continue
		}
		persisted, err := s.remote.UpdateEntry(ctx, item.entry)
		if err != nil {
			s.logger.Warn("remote update failed", "id", item.id.String(), "error", err)
			result.Failed = append(result.Failed, CommitFailure{
				ID: item.id, Op: ActionUpdate,
				Err: &domain.RemoteError{Op: ActionUpdate, ID: item.id, Err: err},
			})
			continue
		}
		b.resolveUpdate(item.id, persisted)
		result.Updated++
	}

	var toDelete, dropped []ID
	for _, id := range snap.deleted {
		if id.IsProvisional() {
			dropped = append(dropped, id)
		} else {
			toDelete = append(toDelete, id)
		}
	}
	if len(dropped) > 0 {
		b.resolveDeletes(dropped)
	}
	if len(toDelete) > 0 {
		n, err := s.remote.DeleteEntries(ctx, toDelete)
		if err != nil {
			s.logger.Warn("remote delete failed", "count", len(toDelete), "error", err)
			result.Failed = append(result.Failed, CommitFailure{
				Op:  ActionDelete,
				Err: &domain.RemoteError{Op: ActionDelete, Err: err},
			})
		} else {
			b.resolveDeletes(toDelete)
			result.Deleted = n
		}
	}

	if len(result.Failed) > 0 {
		return result, &CommitError{Result: result}
	}
	return result, nil
}
