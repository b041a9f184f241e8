// Package export writes day snapshots of the diary as JSON artifacts into a
// blob store.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mealcore/internal/blob"
	"mealcore/pkg/domain"
)

// DaySnapshot is the serialized form of one exported day.
type DaySnapshot struct {
	Day        string                 `json:"day"`
	ExportedAt time.Time              `json:"exported_at"`
	Totals     domain.NutritionTotals `json:"totals"`
	Entries    []domain.DiaryEntry    `json:"entries"`
}

// Exporter writes day snapshots into a blob store under
// exports/<day>/<timestamp>.json.
type Exporter struct {
	store blob.Store
	nowFn func() time.Time
}

// New constructs an Exporter over the given blob store.
func New(store blob.Store) *Exporter {
	return &Exporter{store: store, nowFn: func() time.Time { return time.Now().UTC() }}
}

// ExportDay serializes the entries of one day and stores them as a new JSON
// blob. Returns the blob key of the written artifact.
func (e *Exporter) ExportDay(ctx context.Context, day string, entries []domain.DiaryEntry) (string, error) {
	if day == "" {
		return "", fmt.Errorf("export day is required")
	}
	now := e.nowFn()
	snap := DaySnapshot{
		Day:        day,
		ExportedAt: now,
		Totals:     dayTotals(entries),
		Entries:    entries,
	}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode day snapshot: %w", err)
	}
	key := fmt.Sprintf("exports/%s/%s.json", day, now.Format("20060102T150405.000000000Z"))
	info, err := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"day": day},
	})
	if err != nil {
		return "", fmt.Errorf("store day snapshot: %w", err)
	}
	return info.Key, nil
}

// ListDayExports returns metadata for all stored artifacts of one day.
func (e *Exporter) ListDayExports(ctx context.Context, day string) ([]blob.Info, error) {
	return e.store.List(ctx, fmt.Sprintf("exports/%s/", day))
}

func dayTotals(entries []domain.DiaryEntry) domain.NutritionTotals {
	var lines []domain.MealLine
	for _, entry := range entries {
		lines = append(lines, entry.Lines...)
	}
	return domain.ComputeTotals(lines)
}
