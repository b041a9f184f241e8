package core

import (
	"context"
	"fmt"
	"strings"

	"mealcore/pkg/domain"
)

// DefaultRulesEngine returns an engine loaded with the built-in draft
// validation rules.
func DefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(EntryNameRule{})
	engine.Register(LineQuantityRule{})
	engine.Register(EmptyEntryRule{})
	return engine
}

// EntryNameRule blocks entries without a display name.
type EntryNameRule struct{}

// Name identifies the rule in violations.
func (EntryNameRule) Name() string { return "entry_name_required" }

// Evaluate checks the after-state of creates and updates.
func (r EntryNameRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	var res Result
	for _, entry := range changedEntries(changes) {
		if strings.TrimSpace(entry.Name) == "" {
			res.Violations = append(res.Violations, Violation{
				Rule:     r.Name(),
				Severity: SeverityBlock,
				Message:  "entry name is required",
				Entity:   EntityDiaryEntry,
				EntityID: entry.ID,
			})
		}
	}
	return res, nil
}

// LineQuantityRule blocks lines whose quantity is not strictly positive.
type LineQuantityRule struct{}

// Name identifies the rule in violations.
func (LineQuantityRule) Name() string { return "line_quantity_positive" }

// Evaluate checks every line of the after-state of creates and updates.
func (r LineQuantityRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	var res Result
	for _, entry := range changedEntries(changes) {
		for _, line := range entry.Lines {
			if line.Quantity > 0 {
				continue
			}
			res.Violations = append(res.Violations, Violation{
				Rule:     r.Name(),
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("quantity must be positive, got %v", line.Quantity),
				Entity:   EntityMealLine,
				EntityID: line.ID,
			})
		}
	}
	return res, nil
}

// EmptyEntryRule warns about entries carrying no lines. Saving a named but
// empty meal is allowed; the dashboard surfaces the warning.
type EmptyEntryRule struct{}

// Name identifies the rule in violations.
func (EmptyEntryRule) Name() string { return "entry_has_lines" }

// Evaluate warns on creates and updates that leave an entry without lines.
func (r EmptyEntryRule) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	var res Result
	for _, entry := range changedEntries(changes) {
		if len(entry.Lines) > 0 {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: SeverityWarn,
			Message:  "entry has no lines",
			Entity:   EntityDiaryEntry,
			EntityID: entry.ID,
		})
	}
	return res, nil
}

func changedEntries(changes []Change) []DiaryEntry {
	var out []DiaryEntry
	for _, ch := range changes {
		if ch.Action != ActionCreate && ch.Action != ActionUpdate {
			continue
		}
		if entry, ok := decodeChangePayload[DiaryEntry](ch.After); ok {
			out = append(out, entry)
		}
	}
	return out
}
