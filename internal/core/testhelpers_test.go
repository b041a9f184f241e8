package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mealcore/pkg/domain"
)

// fakeRemote implements domain.DiaryStore with scriptable failures and a
// recorded call log.
type fakeRemote struct {
	mu      sync.Mutex
	seq     int
	entries map[string]DiaryEntry
	calls   []string

	failCreate map[string]error // keyed by entry name
	failUpdate map[string]error // keyed by persisted id value
	failDelete error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		entries:    make(map[string]DiaryEntry),
		failCreate: make(map[string]error),
		failUpdate: make(map[string]error),
	}
}

func (f *fakeRemote) nextID() domain.ID {
	f.seq++
	return domain.PersistedID(fmt.Sprintf("srv-%d", f.seq))
}

func (f *fakeRemote) CreateEntry(_ context.Context, entry DiaryEntry) (DiaryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create:"+entry.Name)
	if err := f.failCreate[entry.Name]; err != nil {
		return DiaryEntry{}, err
	}
	stored := entry.Clone()
	stored.ID = f.nextID()
	for i := range stored.Lines {
		stored.Lines[i].ID = f.nextID()
	}
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	f.entries[stored.ID.Value] = stored.Clone()
	return stored, nil
}

func (f *fakeRemote) UpdateEntry(_ context.Context, entry DiaryEntry) (DiaryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update:"+entry.ID.Value)
	if err := f.failUpdate[entry.ID.Value]; err != nil {
		return DiaryEntry{}, err
	}
	if _, ok := f.entries[entry.ID.Value]; !ok {
		return DiaryEntry{}, domain.ErrNotFound{Entity: EntityDiaryEntry, ID: entry.ID}
	}
	stored := entry.Clone()
	stored.UpdatedAt = time.Now().UTC()
	f.entries[stored.ID.Value] = stored.Clone()
	return stored, nil
}

func (f *fakeRemote) DeleteEntries(_ context.Context, ids []ID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("delete:%d", len(ids)))
	if f.failDelete != nil {
		return 0, f.failDelete
	}
	n := 0
	for _, id := range ids {
		if _, ok := f.entries[id.Value]; ok {
			delete(f.entries, id.Value)
			n++
		}
	}
	return n, nil
}

func (f *fakeRemote) ListDay(_ context.Context, day string) ([]DiaryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []DiaryEntry
	for _, e := range f.entries {
		if e.Day == day {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeRemote) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// captureNotifier records commit notifications.
type captureNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (n *captureNotifier) Success(msg string) {
	n.mu.Lock()
	n.successes = append(n.successes, msg)
	n.mu.Unlock()
}

func (n *captureNotifier) Failure(msg string) {
	n.mu.Lock()
	n.failures = append(n.failures, msg)
	n.mu.Unlock()
}

// captureLogger collects log lines by level.
type captureLogger struct {
	mu    sync.Mutex
	lines map[string][]string
}

func newCaptureLogger() *captureLogger {
	return &captureLogger{lines: make(map[string][]string)}
}

func (l *captureLogger) log(level, msg string) {
	l.mu.Lock()
	l.lines[level] = append(l.lines[level], msg)
	l.mu.Unlock()
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.log("debug", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.log("info", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.log("warn", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.log("error", msg) }

func (l *captureLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines[level])
}

func testLine(quantity float64) MealLine {
	return MealLine{IngredientID: "ing-1", Quantity: quantity, Calories: 100, Protein: 10, Carbs: 20, Fat: 5}
}

func testDraft(name string) DiaryEntry {
	return DiaryEntry{Name: name, Lines: []MealLine{testLine(1)}}
}

func newTestBuffer() (*Buffer, *domain.SequenceAllocator) {
	alloc := domain.NewSequenceAllocator("tmp")
	return NewBuffer(DefaultRulesEngine(), alloc), alloc
}
