package core

import (
	"context"
	"fmt"
	"time"

	"mealcore/pkg/domain"
)

// Clock supplies the current time; injectable for tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns the function's current time.
func (f ClockFunc) Now() time.Time { return f() }

// DayExporter writes a day's entries to an external destination and returns
// a location (e.g. a blob key) for the written artifact.
type DayExporter interface {
	ExportDay(ctx context.Context, day string, entries []DiaryEntry) (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger installs a structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetrics installs an operation metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer installs an operation tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithAllocator overrides the provisional identity allocator.
func WithAllocator(a domain.IDAllocator) Option {
	return func(s *Service) {
		if a != nil {
			s.alloc = a
		}
	}
}

// WithRulesEngine replaces the default draft validation rules.
func WithRulesEngine(e *RulesEngine) Option {
	return func(s *Service) { s.engine = e }
}

// WithNotifier installs the commit notification sink.
func WithNotifier(n domain.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithExporter installs the day export destination.
func WithExporter(e DayExporter) Option {
	return func(s *Service) { s.exporter = e }
}

// Service owns one editing session: a buffer seeded from the diary store, a
// synchronizer flushing to it, and the ambient concerns around both. One
// service per view (e.g. per open day); it is not designed for concurrent
// mutation from multiple callers.
type Service struct {
	store    domain.DiaryStore
	buffer   *Buffer
	syncer   *Syncer
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	clock    Clock
	notifier domain.Notifier
	exporter DayExporter
	alloc    domain.IDAllocator
	engine   *RulesEngine
}

// NewService constructs a session service over the given diary store.
func NewService(store domain.DiaryStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: noopLogger{},
		clock:  ClockFunc(func() time.Time { return time.Now().UTC() }),
		alloc:  domain.SystemAllocator{},
		engine: DefaultRulesEngine(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.buffer = NewBuffer(s.engine, s.alloc)
	s.buffer.nowFn = s.clock.Now
	s.syncer = NewSyncer(store, s.logger)
	return s
}

// Buffer exposes the underlying edit buffer.
func (s *Service) Buffer() *Buffer { return s.buffer }

// LoadDay seeds the buffer with the synchronized entries for one day,
// discarding any pending local changes.
func (s *Service) LoadDay(ctx context.Context, day string) (entries []DiaryEntry, err error) {
	defer s.instrument(ctx, "load_day")(&err)
	base, err := s.store.ListDay(ctx, day)
	if err != nil {
		return nil, err
	}
	s.buffer.Reset(day, base)
	s.logger.Info("day loaded", "day", day, "entries", len(base))
	return s.buffer.Visible(), nil
}

// AddMeal queues a new diary entry locally.
func (s *Service) AddMeal(ctx context.Context, draft DiaryEntry) (entry DiaryEntry, res Result, err error) {
	defer s.instrument(ctx, "add_meal")(&err)
	return s.buffer.Create(ctx, draft)
}

// EditMeal queues a local edit of an existing entry.
func (s *Service) EditMeal(ctx context.Context, id ID, draft DiaryEntry) (entry DiaryEntry, res Result, err error) {
	defer s.instrument(ctx, "edit_meal")(&err)
	return s.buffer.Edit(ctx, id, draft)
}

// RemoveMeal soft-deletes an entry locally.
func (s *Service) RemoveMeal(ctx context.Context, id ID) (err error) {
	defer s.instrument(ctx, "remove_meal")(&err)
	return s.buffer.Delete(id)
}

// RestoreMeal undoes a local soft delete.
func (s *Service) RestoreMeal(id ID) {
	s.buffer.Restore(id)
}

// Visible returns the current view of the day.
func (s *Service) Visible() []DiaryEntry { return s.buffer.Visible() }

// NextPosition returns the order key for the next new entry.
func (s *Service) NextPosition() int { return s.buffer.NextPosition() }

// HasPendingChanges reports whether SaveAll would have work to do.
func (s *Service) HasPendingChanges() bool { return s.buffer.HasPendingChanges() }

// SaveAll flushes all pending changes to the diary store and produces a
// single user-facing outcome through the notifier: one success message, or
// one generic failure message with the pending state kept for retry.
func (s *Service) SaveAll(ctx context.Context) (result CommitResult, err error) {
	defer s.instrument(ctx, "save_all")(&err)
	result, err = s.syncer.Commit(ctx, s.buffer)
	switch {
	case err != nil:
		s.notifyFailure("saving the diary failed")
	case result.NoOp:
		// nothing to report
	default:
		s.notifySuccess(fmt.Sprintf("diary saved: %d created, %d updated, %d deleted",
			result.Created, result.Updated, result.Deleted))
	}
	return result, err
}

// ExportDay writes the current visible view of the loaded day through the
// configured exporter and returns the artifact location.
func (s *Service) ExportDay(ctx context.Context) (location string, err error) {
	defer s.instrument(ctx, "export_day")(&err)
	if s.exporter == nil {
		return "", fmt.Errorf("no exporter configured")
	}
	return s.exporter.ExportDay(ctx, s.buffer.Day(), s.buffer.Visible())
}

func (s *Service) notifySuccess(msg string) {
	if s.notifier != nil {
		s.notifier.Success(msg)
	}
}

func (s *Service) notifyFailure(msg string) {
	if s.notifier != nil {
		s.notifier.Failure(msg)
	}
}

// instrument logs, times, and traces one service operation. The returned
// func reads the operation's final error through the pointer so it can be
// deferred before the error value exists.
func (s *Service) instrument(ctx context.Context, op string) func(*error) {
	start := s.clock.Now()
	var finish func(error)
	if s.tracer != nil {
		finish = s.tracer.StartSpan(ctx, op)
	}
	return func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		elapsed := s.clock.Now().Sub(start)
		if s.metrics != nil {
			s.metrics.Observe(ctx, op, err == nil, elapsed)
		}
		if finish != nil {
			finish(err)
		}
		if err != nil {
			s.logger.Error(op+" failed", "error", err, "duration_ms", elapsed.Milliseconds())
		} else {
			s.logger.Debug(op+" completed", "duration_ms", elapsed.Milliseconds())
		}
	}
}
