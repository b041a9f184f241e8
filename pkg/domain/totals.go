package domain

import "math"

// NutritionTotals holds the aggregate nutrition components of an entry.
// Always derived from the entry's lines, never hand-edited.
type NutritionTotals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// ComputeTotals sums each nutrition component across the lines and rounds
// every sum to two decimal places. The zero value is returned for no lines.
// Pure and deterministic; idempotent under recomputation.
func ComputeTotals(lines []MealLine) NutritionTotals {
	var t NutritionTotals
	for _, line := range lines {
		t.Calories += line.Calories
		t.Protein += line.Protein
		t.Carbs += line.Carbs
		t.Fat += line.Fat
	}
	t.Calories = round2(t.Calories)
	t.Protein = round2(t.Protein)
	t.Carbs = round2(t.Carbs)
	t.Fat = round2(t.Fat)
	return t
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
