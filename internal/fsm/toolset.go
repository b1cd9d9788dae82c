package fsm

import "ironmanus/internal/domain"

// allowedTools is the phase->toolset table. QUERY and ENHANCE allow no
// external I/O tools: the executor reasons using only its own context, so
// JARVIS is the only next call available to it.
var allowedTools = map[domain.Phase][]string{
	domain.PhaseInit:      {"JARVIS"},
	domain.PhaseQuery:     {"JARVIS"},
	domain.PhaseEnhance:   {"JARVIS"},
	domain.PhaseKnowledge: {"WebSearch", "WebFetch", "APITaskAgent", "PythonComputationalTool", "Task", "JARVIS"},
	domain.PhasePlan:      {"TodoWrite", "TodoRead", "JARVIS"},
	domain.PhaseExecute:   {"Task", "Bash", "Read", "Write", "Edit", "PythonComputationalTool", "JARVIS"},
	domain.PhaseVerify:    {"Read", "Bash", "PythonComputationalTool", "JARVIS"},
	domain.PhaseDone:      {},
}

// AllowedTools returns the static whitelist for phase; the value returned
// never depends on session state.
func AllowedTools(phase domain.Phase) []string {
	tools := allowedTools[phase]
	out := make([]string, len(tools))
	copy(out, tools)
	return out
}
