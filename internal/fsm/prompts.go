// This file assembles the system_prompt returned to the executor: a role
// base text for the new phase, concatenated with phase-specific context
// blocks built from the session's payload.
package fsm

import (
	"fmt"
	"strings"

	"ironmanus/internal/domain"
)

// roleBasePrompts gives each role a short framing sentence, reused across
// every phase so the executor always knows which persona it is operating
// under.
var roleBasePrompts = map[domain.Role]string{
	domain.RolePlanner:       "You are operating as a planner: break the objective into an ordered, minimal task list.",
	domain.RoleCoder:         "You are operating as a coder: produce working, tested code changes.",
	domain.RoleCritic:        "You are operating as a critic: find defects before declaring anything complete.",
	domain.RoleResearcher:    "You are operating as a researcher: gather and cite verifiable facts.",
	domain.RoleAnalyzer:      "You are operating as an analyzer: quantify before you conclude.",
	domain.RoleSynthesizer:   "You are operating as a synthesizer: reconcile multiple sources into one coherent answer.",
	domain.RoleUIArchitect:   "You are operating as a UI architect: decide structure and layout before visual detail.",
	domain.RoleUIImplementer: "You are operating as a UI implementer: turn the architecture into working components.",
	domain.RoleUIRefiner:     "You are operating as a UI refiner: polish an existing implementation without changing its structure.",
}

// phaseBasePrompts gives each phase its own instruction, independent of
// role.
var phaseBasePrompts = map[domain.Phase]string{
	domain.PhaseQuery:     "QUERY: restate the objective as a precise, answerable interpreted_goal.",
	domain.PhaseEnhance:   "ENHANCE: enrich interpreted_goal with the detail needed to act on it; produce enhanced_goal.",
	domain.PhaseKnowledge: "KNOWLEDGE: gather supporting information before planning.",
	domain.PhasePlan:      "PLAN: decompose enhanced_goal into an ordered todo list.",
	domain.PhaseExecute:   "EXECUTE: complete exactly one todo per call.",
	domain.PhaseVerify:    "VERIFY: assert whether every todo is genuinely complete.",
	domain.PhaseDone:      "DONE: the objective has been delivered; no further tool calls are expected.",
}

// composePrompt implements the glossary's compose_prompt(role, phase,
// session, payload) as a pure function of two enums and the payload map.
func composePrompt(role domain.Role, phase domain.Phase, payload map[string]interface{}) string {
	var b strings.Builder
	b.WriteString(roleBasePrompts[role])
	b.WriteString("\n\n")
	b.WriteString(phaseBasePrompts[phase])

	if block := contextBlock(phase, payload); block != "" {
		b.WriteString("\n\n")
		b.WriteString(block)
	}
	return b.String()
}

func contextBlock(phase domain.Phase, payload map[string]interface{}) string {
	switch phase {
	case domain.PhaseEnhance:
		return fmt.Sprintf("Interpreted goal: %s", payloadString(payload, "interpreted_goal"))

	case domain.PhaseKnowledge:
		return knowledgeContextBlock(payload)

	case domain.PhasePlan:
		return fmt.Sprintf(
			"Enhanced goal: %s\n\nExpress fractal sub-tasks using: (ROLE: <role>) (CONTEXT: <domain>) (PROMPT: <instruction>) (OUTPUT: <deliverable>). ROLE and PROMPT are required; CONTEXT and OUTPUT default when omitted.",
			payloadString(payload, "enhanced_goal"),
		)

	case domain.PhaseExecute:
		return executeContextBlock(payload)

	case domain.PhaseVerify:
		return verifyContextBlock(payload)

	default:
		return ""
	}
}

func knowledgeContextBlock(payload map[string]interface{}) string {
	if payloadBool(payload, "auto_connection_successful") {
		return fmt.Sprintf(
			"Auto-Connection summary: %s",
			payloadString(payload, "synthesized_knowledge"),
		)
	}
	return "Auto-Connection is unavailable for this run; use WebSearch, WebFetch, or APITaskAgent directly to gather what you need."
}

func executeContextBlock(payload map[string]interface{}) string {
	index := payloadInt(payload, "current_task_index")
	todos := payloadTodos(payload, "todos_with_metaprompts")
	effectiveness := payload["reasoning_effectiveness"]

	var current string
	if index >= 0 && index < len(todos) {
		current = todos[index].Content
	}

	return fmt.Sprintf(
		"Task %d of %d: %s\nReasoning effectiveness: %v\nComplete exactly one tool call toward this task, then report execution_success and more_tasks_pending.",
		index+1, len(todos), current, effectiveness,
	)
}

func verifyContextBlock(payload map[string]interface{}) string {
	var b strings.Builder
	b.WriteString("Report verification_passed based on genuine inspection of completed work, not assumption.")
	if reason := payloadString(payload, "verification_failure_reason"); reason != "" {
		fmt.Fprintf(&b, "\nPrevious verification failed: %s (completion %v%%).", reason, payload["last_completion_percentage"])
	}
	return b.String()
}
