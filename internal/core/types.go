package core

import "mealcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	ID                 = domain.ID
	DiaryEntry         = domain.DiaryEntry
	MealLine           = domain.MealLine
	NutritionTotals    = domain.NutritionTotals
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityDiaryEntry = domain.EntityDiaryEntry
	EntityMealLine   = domain.EntityMealLine
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate  = domain.ActionCreate
	ActionUpdate  = domain.ActionUpdate
	ActionDelete  = domain.ActionDelete
	ActionRestore = domain.ActionRestore
)
