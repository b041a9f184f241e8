package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mealcore/pkg/domain"
)

func newTestService(remote *fakeRemote, opts ...Option) *Service {
	base := []Option{
		WithAllocator(domain.NewSequenceAllocator("tmp")),
		WithClock(ClockFunc(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })),
	}
	return NewService(remote, append(base, opts...)...)
}

func TestServiceLoadDaySeedsBuffer(t *testing.T) {
	remote := newFakeRemote()
	ctx := context.Background()
	for _, name := range []string{"Breakfast", "Lunch"} {
		draft := testDraft(name)
		draft.Day = "2026-03-01"
		if _, err := remote.CreateEntry(ctx, draft); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	svc := newTestService(remote)

	entries, err := svc.LoadDay(ctx, "2026-03-01")
	if err != nil {
		t.Fatalf("load day: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("unexpected entry count: %d", len(entries))
	}
	if svc.HasPendingChanges() {
		t.Fatalf("fresh load reported pending changes")
	}
}

func TestServiceSaveAllNotifiesOnce(t *testing.T) {
	remote := newFakeRemote()
	notifier := &captureNotifier{}
	svc := newTestService(remote, WithNotifier(notifier))
	ctx := context.Background()

	if _, err := svc.LoadDay(ctx, "2026-03-01"); err != nil {
		t.Fatalf("load day: %v", err)
	}
	if _, _, err := svc.AddMeal(ctx, testDraft("Breakfast")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, _, err := svc.AddMeal(ctx, testDraft("Lunch")); err != nil {
		t.Fatalf("add: %v", err)
	}
	result, err := svc.SaveAll(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if result.Created != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(notifier.successes) != 1 || len(notifier.failures) != 0 {
		t.Fatalf("unexpected notifications: %+v", notifier)
	}
	if !strings.Contains(notifier.successes[0], "2 created") {
		t.Fatalf("unexpected success message: %s", notifier.successes[0])
	}
}

func TestServiceSaveAllFailureNotifiesGenericMessage(t *testing.T) {
	remote := newFakeRemote()
	remote.failCreate["Bad"] = errors.New("boom")
	notifier := &captureNotifier{}
	svc := newTestService(remote, WithNotifier(notifier))
	ctx := context.Background()

	if _, _, err := svc.AddMeal(ctx, testDraft("Bad")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.SaveAll(ctx); err == nil {
		t.Fatalf("expected save error")
	}
	if len(notifier.failures) != 1 || len(notifier.successes) != 0 {
		t.Fatalf("unexpected notifications: %+v", notifier)
	}
	if strings.Contains(notifier.failures[0], "boom") {
		t.Fatalf("failure message leaks remote details: %s", notifier.failures[0])
	}
}

func TestServiceSaveAllNoOpStaysQuiet(t *testing.T) {
	remote := newFakeRemote()
	notifier := &captureNotifier{}
	svc := newTestService(remote, WithNotifier(notifier))

	result, err := svc.SaveAll(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !result.NoOp {
		t.Fatalf("expected no-op result: %+v", result)
	}
	if len(notifier.successes)+len(notifier.failures) != 0 {
		t.Fatalf("no-op save produced notifications: %+v", notifier)
	}
}

func TestServiceRemoveAndRestoreMeal(t *testing.T) {
	remote := newFakeRemote()
	ctx := context.Background()
	draft := testDraft("Lunch")
	draft.Day = "2026-03-01"
	seeded, err := remote.CreateEntry(ctx, draft)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := newTestService(remote)
	if _, err := svc.LoadDay(ctx, "2026-03-01"); err != nil {
		t.Fatalf("load day: %v", err)
	}
	if err := svc.RemoveMeal(ctx, seeded.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(svc.Visible()) != 0 {
		t.Fatalf("removed meal still visible")
	}
	svc.RestoreMeal(seeded.ID)
	if len(svc.Visible()) != 1 {
		t.Fatalf("restore did not bring meal back")
	}
}

func TestServiceInstrumentationRecordsMetricsAndLogs(t *testing.T) {
	remote := newFakeRemote()
	logger := newCaptureLogger()
	metrics := NewExpvarMetricsRecorder("")
	tracer := NewJSONTracer(nil)
	svc := newTestService(remote, WithLogger(logger), WithMetrics(metrics), WithTracer(tracer))
	ctx := context.Background()

	if _, _, err := svc.AddMeal(ctx, testDraft("Breakfast")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, _, err := svc.EditMeal(ctx, domain.PersistedID("ghost"), testDraft("x")); err == nil {
		t.Fatalf("expected edit failure")
	}

	snap := metrics.Snapshot()
	if snap.Results["add_meal"]["success"] != 1 {
		t.Fatalf("add_meal success not recorded: %+v", snap.Results)
	}
	if snap.Results["edit_meal"]["error"] != 1 {
		t.Fatalf("edit_meal error not recorded: %+v", snap.Results)
	}
	if logger.count("error") == 0 {
		t.Fatalf("failed operation not logged at error level")
	}
	spans := tracer.Entries()
	if len(spans) != 2 {
		t.Fatalf("unexpected span count: %d", len(spans))
	}
	if spans[1].Status != "error" || spans[1].Error == "" {
		t.Fatalf("failed span not marked: %+v", spans[1])
	}
}

type stubExporter struct {
	day     string
	entries int
}

func (s *stubExporter) ExportDay(_ context.Context, day string, entries []DiaryEntry) (string, error) {
	s.day = day
	s.entries = len(entries)
	return "exports/" + day + "/test.json", nil
}

func TestServiceExportDay(t *testing.T) {
	remote := newFakeRemote()
	ctx := context.Background()
	draft := testDraft("Lunch")
	draft.Day = "2026-03-01"
	if _, err := remote.CreateEntry(ctx, draft); err != nil {
		t.Fatalf("seed: %v", err)
	}
	exp := &stubExporter{}
	svc := newTestService(remote, WithExporter(exp))
	if _, err := svc.LoadDay(ctx, "2026-03-01"); err != nil {
		t.Fatalf("load day: %v", err)
	}
	location, err := svc.ExportDay(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if location == "" || exp.day != "2026-03-01" || exp.entries != 1 {
		t.Fatalf("unexpected export: location=%s exporter=%+v", location, exp)
	}
}

func TestServiceExportDayWithoutExporter(t *testing.T) {
	svc := newTestService(newFakeRemote())
	if _, err := svc.ExportDay(context.Background()); err == nil {
		t.Fatalf("expected error without exporter")
	}
}
