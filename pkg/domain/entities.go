// Package domain defines the core entities, identity model, and rule
// evaluation primitives used by mealcore.
package domain

import "time"

// EntityType identifies the type of record handled by the diary engine.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityDiaryEntry identifies a diary entry (a meal with its lines).
	EntityDiaryEntry EntityType = "diary_entry"
	// EntityMealLine identifies a single ingredient line nested in an entry.
	EntityMealLine EntityType = "meal_line"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine whether an edit is accepted.
const (
	// SeverityBlock rejects the edit before any state mutation.
	SeverityBlock Severity = "block"
	// SeverityWarn surfaces a warning but allows the edit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// MealLine is one ingredient line nested in a diary entry. The nutrition
// components are computed by the caller from the referenced catalog item and
// the quantity; the engine stores them verbatim and never recomputes them.
type MealLine struct {
	ID           ID      `json:"id"`
	IngredientID string  `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
	Calories     float64 `json:"calories"`
	Protein      float64 `json:"protein"`
	Carbs        float64 `json:"carbs"`
	Fat          float64 `json:"fat"`
}

// DiaryEntry is a meal recorded in the food diary: display fields, an
// ordered collection of lines, and totals derived from them.
//
// Invariant while held by the edit buffer: Totals == ComputeTotals(Lines).
type DiaryEntry struct {
	ID        ID              `json:"id"`
	Day       string          `json:"day"`
	Name      string          `json:"name"`
	Position  int             `json:"position"`
	Lines     []MealLine      `json:"lines"`
	Totals    NutritionTotals `json:"totals"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (e DiaryEntry) Clone() DiaryEntry {
	cp := e
	if e.Lines != nil {
		cp.Lines = append([]MealLine(nil), e.Lines...)
	}
	return cp
}

// Change describes a mutation recorded by the edit buffer.
type Change struct {
	Entity EntityType
	Action Action
	ID     ID
	Before ChangePayload
	After  ChangePayload
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the supported diary mutations.
const (
	// ActionCreate indicates an entry was created locally.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entry was edited locally.
	ActionUpdate Action = "update"
	ActionDelete  Action = "delete"
	ActionRestore Action = "restore"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID ID
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations reject an edit.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "edit blocked by rules"
}
