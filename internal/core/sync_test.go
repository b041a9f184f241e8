package core

import (
	"context"
	"errors"
	"testing"

	"mealcore/pkg/domain"
)

func newTestSyncer(remote *fakeRemote) (*Syncer, *Buffer) {
	b, _ := newTestBuffer()
	b.Reset("2026-03-01", nil)
	return NewSyncer(remote, nil), b
}

func TestCommitNoOpOnEmptyBuffer(t *testing.T) {
	remote := newFakeRemote()
	syncer, b := newTestSyncer(remote)

	result, err := syncer.Commit(context.Background(), b)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !result.NoOp {
		t.Fatalf("expected no-op result: %+v", result)
	}
	if len(remote.callLog()) != 0 {
		t.Fatalf("no-op commit touched the remote: %v", remote.callLog())
	}
}

func TestCommitCreateReconcilesProvisionalID(t *testing.T) {
	remote := newFakeRemote()
	syncer, b := newTestSyncer(remote)

	created, _, err := b.Create(context.Background(), testDraft("Breakfast"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	result, err := syncer.Commit(context.Background(), b)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Created != 1 || result.Updated != 0 || result.Deleted != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	visible := b.Visible()
	if len(visible) != 1 {
		t.Fatalf("unexpected view size: %d", len(visible))
	}
	if visible[0].ID.IsProvisional() {
		t.Fatalf("provisional id survived commit: %s", visible[0].ID)
	}
	if visible[0].ID == created.ID {
		t.Fatalf("identity not replaced by server id")
	}
	for _, line := range visible[0].Lines {
		if line.ID.IsProvisional() {
			t.Fatalf("provisional line id survived commit: %s", line.ID)
		}
	}
	if b.HasPendingChanges() {
		t.Fatalf("commit left pending changes")
	}
}

func TestCommitEditOfPersistedEntryIssuesUpdateOnly(t *testing.T) {
	remote := newFakeRemote()
	syncer, b := newTestSyncer(remote)

	seeded, err := remote.CreateEntry(context.Background(), baseEntry("seed", "Lunch", 1))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	b.Reset("2026-03-01", []DiaryEntry{seeded})

	if _, _, err := b.Edit(context.Background(), seeded.ID, testDraft("Lunch v2")); err != nil {
		t.Fatalf("edit: %v", err)
	}
	result, err := syncer.Commit(context.Background(), b)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Updated != 1 || result.Created != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	log := remote.callLog()
	// seed create plus exactly one update
	if len(log) != 2 || log[1] != "update:"+seeded.ID.Value {
		t.Fatalf("unexpected call log: %v", log)
	}
}

func TestCommitDeletesPersistedInOneBatch(t *testing.T) {
	remote := newFakeRemote()
	syncer, b := newTestSyncer(remote)

	var base []DiaryEntry
	for _, name := range []string{"A", "B"} {
		e, err := remote.CreateEntry(context.Background(), testDraft(name))
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		base = append(base, e)
	}
	b.Reset("2026-03-01", base)
	for _, e := range base {
		if err := b.Delete(e.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}
	result, err := syncer.Commit(context.Background(), b)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Deleted != 2 {
		t.Fatalf("unexpected delete count: %+v", result)
	}
	log := remote.callLog()
	if log[len(log)-1] != "delete:2" {
		t.Fatalf("deletes not batched: %v", log)
	}
	if len(b.Visible()) != 0 || b.HasPendingChanges() {
		t.Fatalf("deletes not folded into base")
	}
}

func TestCommitDroppedProvisionalDeletionNeverReachesRemote(t *testing.T) {
	remote := newFakeRemote()
	syncer, b := newTestSyncer(remote)

	created, _, err := b.Create(context.Background(), testDraft("Draft"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := b.Delete(created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	result, err := syncer.Commit(context.Background(), b)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.NoOp {
		t.Fatalf("commit with dropped draft reported no-op")
	}
	if result.Created != 0 || result.Deleted != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(remote.callLog()) != 0 {
		t.Fatalf("dropped draft reached the remote: %v", remote.callLog())
	}
	if b.HasPendingChanges() {
		t.Fatalf("dropped draft left pending state")
	}
}

func TestCommitContinuesPastFailuresAndKeepsThemPending(t *testing.T) {
	remote := newFakeRemote()
	boom := errors.New("backend down")
	remote.failCreate["Bad"] = boom
	syncer, b := newTestSyncer(remote)

	if _, _, err := b.Create(context.Background(), testDraft("Good")); err != nil {
		t.Fatalf("create: %v", err)
	}
	bad, _, err := b.Create(context.Background(), testDraft("Bad"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := b.Create(context.Background(), testDraft("Later")); err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := syncer.Commit(context.Background(), b)
	var ce *CommitError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CommitError, got %v", err)
	}
	if result.Created != 2 || len(result.Failed) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	failure := result.Failed[0]
	if failure.ID != bad.ID || failure.Op != ActionCreate {
		t.Fatalf("unexpected failure record: %+v", failure)
	}
	if !errors.Is(failure.Err, boom) {
		t.Fatalf("failure does not wrap remote error: %v", failure.Err)
	}
	var re *domain.RemoteError
	if !errors.As(failure.Err, &re) {
		t.Fatalf("failure not wrapped in RemoteError: %v", failure.Err)
	}
	// the two successes are folded in, the failed one stays pending
	if !b.HasPendingChanges() {
		t.Fatalf("failed item not kept pending")
	}

	// retry resends only the failed create
	delete(remote.failCreate, "Bad")
	before := len(remote.callLog())
	retry, err := syncer.Commit(context.Background(), b)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retry.Created != 1 {
		t.Fatalf("unexpected retry result: %+v", retry)
	}
	log := remote.callLog()[before:]
	if len(log) != 1 || log[0] != "create:Bad" {
		t.Fatalf("retry resent more than the failed item: %v", log)
	}
	if b.HasPendingChanges() {
		t.Fatalf("retry left pending changes")
	}
}

func TestCommitDeleteFailureKeepsDeletedSet(t *testing.T) {
	remote := newFakeRemote()
	syncer, b := newTestSyncer(remote)

	seeded, err := remote.CreateEntry(context.Background(), testDraft("Lunch"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	b.Reset("2026-03-01", []DiaryEntry{seeded})
	if err := b.Delete(seeded.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	remote.failDelete = errors.New("delete endpoint down")
	result, err := syncer.Commit(context.Background(), b)
	var ce *CommitError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CommitError, got %v", err)
	}
	if result.Deleted != 0 || len(result.Failed) != 1 || result.Failed[0].Op != ActionDelete {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !b.HasPendingChanges() {
		t.Fatalf("failed deletion not kept for retry")
	}

	remote.failDelete = nil
	retry, err := syncer.Commit(context.Background(), b)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retry.Deleted != 1 {
		t.Fatalf("unexpected retry result: %+v", retry)
	}
}

func TestCommitCallOrderFollowsInsertionOrder(t *testing.T) {
	remote := newFakeRemote()
	syncer, b := newTestSyncer(remote)

	seeded, err := remote.CreateEntry(context.Background(), testDraft("Seeded"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	b.Reset("2026-03-01", []DiaryEntry{seeded})

	if _, _, err := b.Create(context.Background(), testDraft("First")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := b.Edit(context.Background(), seeded.ID, testDraft("Seeded v2")); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if _, _, err := b.Create(context.Background(), testDraft("Third")); err != nil {
		t.Fatalf("create: %v", err)
	}

	before := len(remote.callLog())
	if _, err := syncer.Commit(context.Background(), b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	log := remote.callLog()[before:]
	want := []string{"create:First", "update:" + seeded.ID.Value, "create:Third"}
	if len(log) != len(want) {
		t.Fatalf("unexpected call log: %v", log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("call order mismatch: %v", log)
		}
	}
}

func TestCommitRejectsConcurrentCommit(t *testing.T) {
	remote := newFakeRemote()
	syncer, b := newTestSyncer(remote)

	if _, _, err := b.Create(context.Background(), testDraft("A")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := b.beginCommit(); err != nil {
		t.Fatalf("beginCommit: %v", err)
	}
	defer b.endCommit()

	if _, err := syncer.Commit(context.Background(), b); !errors.Is(err, domain.ErrCommitInFlight) {
		t.Fatalf("expected ErrCommitInFlight, got %v", err)
	}
}
