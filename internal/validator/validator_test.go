package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ironmanus/internal/domain"
)

func todo(status domain.TodoStatus, priority domain.TodoPriority) domain.TodoItem {
	return domain.TodoItem{Content: "x", Status: status, Priority: priority}
}

func TestValidatePassesOnFullCompletion(t *testing.T) {
	todos := []domain.TodoItem{
		todo(domain.TodoCompleted, domain.PriorityHigh),
		todo(domain.TodoCompleted, domain.PriorityMedium),
	}
	r := Validate(todos, 0.8, true)
	assert.True(t, r.Passed)
	assert.Equal(t, 100, r.CompletionPct)
}

func TestValidateFailsOnCriticalIncomplete(t *testing.T) {
	todos := []domain.TodoItem{
		todo(domain.TodoCompleted, domain.PriorityHigh),
		todo(domain.TodoPending, domain.PriorityHigh),
	}
	r := Validate(todos, 0.9, false)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Reason, "critical")
}

func TestValidateFailsBelow95PctWithNoCriticalTasks(t *testing.T) {
	todos := []domain.TodoItem{
		todo(domain.TodoCompleted, domain.PriorityLow),
		todo(domain.TodoCompleted, domain.PriorityLow),
		todo(domain.TodoPending, domain.PriorityLow),
	}
	r := Validate(todos, 0.9, false)
	assert.False(t, r.Passed)
	assert.Equal(t, 67, r.CompletionPct)
	assert.Contains(t, r.Reason, "95%")
}

func TestValidateFailsOnLowEffectiveness(t *testing.T) {
	todos := []domain.TodoItem{todo(domain.TodoCompleted, domain.PriorityMedium)}
	r := Validate(todos, 0.5, true)
	assert.False(t, r.Passed)
	assert.Contains(t, r.Reason, "effectiveness")
}

func TestValidateFailsOnInconsistentExecutorAssertion(t *testing.T) {
	todos := make([]domain.TodoItem, 0, 20)
	for i := 0; i < 18; i++ {
		todos = append(todos, todo(domain.TodoCompleted, domain.PriorityLow))
	}
	todos = append(todos, domain.TodoItem{Content: "critical", Status: domain.TodoCompleted, Priority: domain.PriorityLow, Type: domain.TaskAgentType})
	todos = append(todos, todo(domain.TodoPending, domain.PriorityLow))

	r := Validate(todos, 0.9, true)
	assert.False(t, r.Passed)
	assert.Equal(t, 95, r.CompletionPct)
	assert.Contains(t, r.Reason, "inconsistency")
}

func TestComputeBreakdownCountsCriticalFromAnySignal(t *testing.T) {
	todos := []domain.TodoItem{
		todo(domain.TodoPending, domain.PriorityLow),
		{Content: "x", Status: domain.TodoCompleted, Priority: domain.PriorityLow, MetaPrompt: &domain.MetaPrompt{}},
	}
	b := ComputeBreakdown(todos)
	assert.Equal(t, 1, b.Critical)
	assert.Equal(t, 1, b.CriticalDone)
}
