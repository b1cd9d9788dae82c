// Package validator implements the Task Completion Validator: the
// quantitative, first-failing-rule-wins gate that VERIFY runs against the
// session's todos.
package validator

import "ironmanus/internal/domain"

// Breakdown is the per-status todo count computed before applying the
// validation rules.
type Breakdown struct {
	Pending     int
	InProgress  int
	Completed   int
	Total       int
	Critical    int
	CriticalDone int
}

// Result is the outcome of one Validate call.
type Result struct {
	Passed         bool
	Reason         string
	CompletionPct  int
	Breakdown      Breakdown
}

// ComputeBreakdown tallies the todo statuses and critical-task counts.
func ComputeBreakdown(todos []domain.TodoItem) Breakdown {
	var b Breakdown
	b.Total = len(todos)
	for _, t := range todos {
		switch t.Status {
		case domain.TodoPending:
			b.Pending++
		case domain.TodoInProgress:
			b.InProgress++
		case domain.TodoCompleted:
			b.Completed++
		}
		if t.IsCritical() {
			b.Critical++
			if t.Status == domain.TodoCompleted {
				b.CriticalDone++
			}
		}
	}
	return b
}

// completionPct implements round(100 * completed / total), defined as 100
// when total == 0.
func completionPct(b Breakdown) int {
	if b.Total == 0 {
		return 100
	}
	pct := 100.0 * float64(b.Completed) / float64(b.Total)
	return int(pct + 0.5)
}

// Validate runs six ordered rules, returning the first one that fails, or
// a pass if none do.
func Validate(todos []domain.TodoItem, reasoningEffectiveness float64, executorAssertedPass bool) Result {
	b := ComputeBreakdown(todos)
	pct := completionPct(b)

	result := Result{CompletionPct: pct, Breakdown: b}

	switch {
	case b.Critical > 0 && b.CriticalDone < b.Critical:
		result.Reason = "critical tasks incomplete"
	case pct < 95:
		result.Reason = "completion below 95% threshold"
	case hasPendingHighPriority(todos):
		result.Reason = "high priority task still pending"
	case b.InProgress > 0:
		result.Reason = "task still in progress"
	case reasoningEffectiveness < 0.7:
		result.Reason = "reasoning effectiveness below 0.7"
	case executorAssertedPass && b.Critical > 0 && pct < 100:
		result.Reason = "executor asserted pass while completion is below 100% with critical tasks present (inconsistency)"
	default:
		result.Passed = true
	}
	return result
}

func hasPendingHighPriority(todos []domain.TodoItem) bool {
	for _, t := range todos {
		if t.Status == domain.TodoPending && t.Priority == domain.PriorityHigh {
			return true
		}
	}
	return false
}
