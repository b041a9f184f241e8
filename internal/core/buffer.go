package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"mealcore/pkg/domain"
)

// Buffer is the client-side edit buffer for one editing session (one day of
// the food diary). It holds the last synchronized collection plus three
// overlapping mutation sets: soft-deleted identities, pending identities in
// insertion order, and the full pending record per identity. All operations
// are synchronous and never touch the remote store.
//
// A record is never simultaneously pending and deleted; the last action
// wins. Deleting discards any queued create or update for the identity, and
// editing a soft-deleted record resurrects it.
type Buffer struct {
	mu           sync.Mutex
	day          string
	base         []DiaryEntry
	baseIDs      map[ID]struct{}
	deleted      map[ID]struct{}
	pending      map[ID]DiaryEntry
	pendingOrder []ID
	changes      []Change

	alloc  domain.IDAllocator
	engine *RulesEngine
	nowFn  func() time.Time

	inFlight bool
}

// NewBuffer constructs an empty buffer. A nil allocator falls back to the
// system allocator; a nil engine disables rule checking.
func NewBuffer(engine *RulesEngine, alloc domain.IDAllocator) *Buffer {
	if alloc == nil {
		alloc = domain.SystemAllocator{}
	}
	b := &Buffer{
		alloc:  alloc,
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	b.Reset("", nil)
	return b
}

// Reset replaces the base collection and clears every mutation set. Called
// when the caller swaps in a new day.
func (b *Buffer) Reset(day string, base []DiaryEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.day = day
	b.base = make([]DiaryEntry, 0, len(base))
	b.baseIDs = make(map[ID]struct{}, len(base))
	for _, e := range base {
		b.base = append(b.base, e.Clone())
		b.baseIDs[e.ID] = struct{}{}
	}
	b.deleted = make(map[ID]struct{})
	b.pending = make(map[ID]DiaryEntry)
	b.pendingOrder = nil
	b.changes = nil
}

// Day returns the date bucket the buffer was seeded with.
func (b *Buffer) Day() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.day
}

// Create queues a new entry under a freshly allocated provisional identity.
// Totals are recomputed from the draft's lines; lines without an identity
// get provisional ones. The base collection is never touched.
func (b *Buffer) Create(ctx context.Context, draft DiaryEntry) (DiaryEntry, Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.nowFn()
	entry := draft.Clone()
	entry.ID = b.alloc.NextProvisional()
	if entry.Day == "" {
		entry.Day = b.day
	}
	if entry.Position <= 0 {
		entry.Position = b.nextPositionLocked()
	}
	for i := range entry.Lines {
		if entry.Lines[i].ID.IsZero() {
			entry.Lines[i].ID = b.alloc.NextProvisional()
		}
	}
	entry.Totals = domain.ComputeTotals(entry.Lines)
	entry.CreatedAt = now
	entry.UpdatedAt = now

	change, err := newEntryChange(ActionCreate, entry.ID, nil, &entry)
	if err != nil {
		return DiaryEntry{}, Result{}, err
	}
	res, err := b.checkLocked(ctx, &entry, change)
	if err != nil {
		return DiaryEntry{}, res, err
	}

	b.pending[entry.ID] = entry.Clone()
	b.pendingOrder = append(b.pendingOrder, entry.ID)
	b.changes = append(b.changes, change)
	return entry, res, nil
}

// Edit replaces an entry's fields and lines with the draft's, recomputing
// totals. The current version is taken from the pending records when
// present, else from base. Editing a soft-deleted entry resurrects it.
func (b *Buffer) Edit(ctx context.Context, id ID, draft DiaryEntry) (DiaryEntry, Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.lookupLocked(id)
	if !ok {
		return DiaryEntry{}, Result{}, domain.ErrNotFound{Entity: EntityDiaryEntry, ID: id}
	}

	entry := draft.Clone()
	entry.ID = id
	if entry.Day == "" {
		entry.Day = current.Day
	}
	if entry.Position <= 0 {
		entry.Position = current.Position
	}
	for i := range entry.Lines {
		if entry.Lines[i].ID.IsZero() {
			entry.Lines[i].ID = b.alloc.NextProvisional()
		}
	}
	entry.Totals = domain.ComputeTotals(entry.Lines)
	entry.CreatedAt = current.CreatedAt
	entry.UpdatedAt = b.nowFn()

	change, err := newEntryChange(ActionUpdate, id, &current, &entry)
	if err != nil {
		return DiaryEntry{}, Result{}, err
	}
	res, err := b.checkLocked(ctx, &entry, change)
	if err != nil {
		return DiaryEntry{}, res, err
	}

	delete(b.deleted, id)
	if _, queued := b.pending[id]; !queued {
		b.pendingOrder = append(b.pendingOrder, id)
	}
	b.pending[id] = entry.Clone()
	b.changes = append(b.changes, change)
	return entry, res, nil
}

// Delete soft-deletes an entry. Any queued create or update for the
// identity is discarded, so a later commit will not resubmit it. Deleting
// an already-deleted identity is a no-op; deleting an unknown identity
// returns ErrNotFound.
func (b *Buffer) Delete(id ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, done := b.deleted[id]; done {
		return nil
	}
	current, ok := b.lookupLocked(id)
	if !ok {
		return domain.ErrNotFound{Entity: EntityDiaryEntry, ID: id}
	}

	if _, queued := b.pending[id]; queued {
		delete(b.pending, id)
		b.pendingOrder = removeID(b.pendingOrder, id)
	}
	b.deleted[id] = struct{}{}

	change, err := newEntryChange(ActionDelete, id, &current, nil)
	if err != nil {
		return err
	}
	b.changes = append(b.changes, change)
	return nil
}

// Restore undoes a soft delete. No-op when the identity is not deleted.
// A provisional identity cannot be resurrected this way: its draft was
// discarded when it was deleted.
func (b *Buffer) Restore(id ID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.deleted[id]; !ok {
		return
	}
	delete(b.deleted, id)
	change, err := newEntryChange(ActionRestore, id, nil, nil)
	if err == nil {
		b.changes = append(b.changes, change)
	}
}

// Visible returns the base collection with soft-deleted entries removed and
// pending versions substituted in, ordered by position. Position ties keep
// insertion order.
func (b *Buffer) Visible() []DiaryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visibleLocked(nil)
}

// NextPosition returns 1 for an empty view, else the maximum position plus
// one. Used by callers composing a new draft.
func (b *Buffer) NextPosition() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextPositionLocked()
}

// HasPendingChanges reports whether a commit would have work to do.
func (b *Buffer) HasPendingChanges() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending) > 0 || len(b.deleted) > 0
}

// Changes returns the audit trail of local mutations since the last Reset.
func (b *Buffer) Changes() []Change {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Change(nil), b.changes...)
}

func (b *Buffer) lookupLocked(id ID) (DiaryEntry, bool) {
	if e, ok := b.pending[id]; ok {
		return e.Clone(), true
	}
	if _, ok := b.baseIDs[id]; ok {
		for _, e := range b.base {
			if e.ID == id {
				return e.Clone(), true
			}
		}
	}
	return DiaryEntry{}, false
}

// visibleLocked assembles the visible view. When override is non-nil its
// record is substituted (or appended) in place of the stored version, which
// lets rules evaluate the would-be state before any mutation is applied.
func (b *Buffer) visibleLocked(override *DiaryEntry) []DiaryEntry {
	out := make([]DiaryEntry, 0, len(b.base)+len(b.pendingOrder))
	overridden := false
	for _, e := range b.base {
		id := e.ID
		if override != nil && id == override.ID {
			out = append(out, override.Clone())
			overridden = true
			continue
		}
		if _, del := b.deleted[id]; del {
			continue
		}
		if p, ok := b.pending[id]; ok {
			out = append(out, p.Clone())
		} else {
			out = append(out, e.Clone())
		}
	}
	for _, id := range b.pendingOrder {
		if _, inBase := b.baseIDs[id]; inBase {
			continue
		}
		if override != nil && id == override.ID {
			out = append(out, override.Clone())
			overridden = true
			continue
		}
		if p, ok := b.pending[id]; ok {
			out = append(out, p.Clone())
		}
	}
	if override != nil && !overridden {
		out = append(out, override.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (b *Buffer) nextPositionLocked() int {
	next := 1
	for _, e := range b.visibleLocked(nil) {
		if e.Position >= next {
			next = e.Position + 1
		}
	}
	return next
}

func (b *Buffer) checkLocked(ctx context.Context, candidate *DiaryEntry, change Change) (Result, error) {
	if b.engine == nil {
		return Result{}, nil
	}
	view := entriesView{entries: b.visibleLocked(candidate)}
	res, err := b.engine.Evaluate(ctx, view, []Change{change})
	if err != nil {
		return Result{}, err
	}
	if res.HasBlocking() {
		return res, RuleViolationError{Result: res}
	}
	return res, nil
}

// beginCommit snapshots the pending sets and raises the in-flight flag.
// Local edits after the snapshot land in the next commit.
func (b *Buffer) beginCommit() (commitSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.inFlight {
		return commitSnapshot{}, domain.ErrCommitInFlight
	}
	var snap commitSnapshot
	for _, id := range b.pendingOrder {
		if _, del := b.deleted[id]; del {
			continue
		}
		entry, ok := b.pending[id]
		if !ok {
			continue
		}
		snap.items = append(snap.items, pendingItem{id: id, entry: entry.Clone()})
	}
	for id := range b.deleted {
		snap.deleted = append(snap.deleted, id)
	}
	sort.Slice(snap.deleted, func(i, j int) bool {
		a, c := snap.deleted[i], snap.deleted[j]
		if a.Kind != c.Kind {
			return a.Kind < c.Kind
		}
		return a.Value < c.Value
	})
	b.inFlight = true
	return snap, nil
}

func (b *Buffer) endCommit() {
	b.mu.Lock()
	b.inFlight = false
	b.mu.Unlock()
}

// resolveCreate folds a successful remote create into base: the provisional
// record is dropped from the pending sets and the server's authoritative
// record joins the synchronized collection.
func (b *Buffer) resolveCreate(provisional ID, persisted DiaryEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, provisional)
	b.pendingOrder = removeID(b.pendingOrder, provisional)
	b.base = append(b.base, persisted.Clone())
	b.baseIDs[persisted.ID] = struct{}{}
}

// resolveUpdate folds a successful remote update into base.
func (b *Buffer) resolveUpdate(id ID, persisted DiaryEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, id)
	b.pendingOrder = removeID(b.pendingOrder, id)
	for i := range b.base {
		if b.base[i].ID == id {
			b.base[i] = persisted.Clone()
			return
		}
	}
	b.base = append(b.base, persisted.Clone())
	b.baseIDs[persisted.ID] = struct{}{}
}

// resolveDeletes clears confirmed (or locally dropped provisional)
// deletions from the deleted set and the base collection.
func (b *Buffer) resolveDeletes(ids []ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.deleted, id)
		if _, inBase := b.baseIDs[id]; !inBase {
			continue
		}
		delete(b.baseIDs, id)
		for i := range b.base {
			if b.base[i].ID == id {
				b.base = append(b.base[:i], b.base[i+1:]...)
				break
			}
		}
	}
}

type pendingItem struct {
	id    ID
	entry DiaryEntry
}

type commitSnapshot struct {
	items   []pendingItem
	deleted []ID
}

func (s commitSnapshot) empty() bool {
	return len(s.items) == 0 && len(s.deleted) == 0
}

type entriesView struct {
	entries []DiaryEntry
}

func (v entriesView) ListEntries() []DiaryEntry {
	return append([]DiaryEntry(nil), v.entries...)
}

func (v entriesView) FindEntry(id ID) (DiaryEntry, bool) {
	for _, e := range v.entries {
		if e.ID == id {
			return e.Clone(), true
		}
	}
	return DiaryEntry{}, false
}

func newEntryChange(action Action, id ID, before, after *DiaryEntry) (Change, error) {
	ch := Change{
		Entity: EntityDiaryEntry,
		Action: action,
		ID:     id,
		Before: domain.UndefinedChangePayload(),
		After:  domain.UndefinedChangePayload(),
	}
	if before != nil {
		p, err := domain.NewChangePayloadFromValue(*before)
		if err != nil {
			return Change{}, err
		}
		ch.Before = p
	}
	if after != nil {
		p, err := domain.NewChangePayloadFromValue(*after)
		if err != nil {
			return Change{}, err
		}
		ch.After = p
	}
	return ch, nil
}

func removeID(ids []ID, id ID) []ID {
	for i := range ids {
		if ids[i] == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
