// Package domain holds the data model shared across every component of
// the orchestrator, so the FSM, catalog, pipeline, validator, session
// store, and graph store all speak the same vocabulary without import
// cycles.
package domain

import "time"

// Phase is the FSM's tagged enum.
type Phase string

const (
	PhaseInit      Phase = "INIT"
	PhaseQuery     Phase = "QUERY"
	PhaseEnhance   Phase = "ENHANCE"
	PhaseKnowledge Phase = "KNOWLEDGE"
	PhasePlan      Phase = "PLAN"
	PhaseExecute   Phase = "EXECUTE"
	PhaseVerify    Phase = "VERIFY"
	PhaseDone      Phase = "DONE"
)

// Role is the tagged enum detected once per session from the objective.
type Role string

const (
	RolePlanner       Role = "planner"
	RoleCoder         Role = "coder"
	RoleCritic        Role = "critic"
	RoleResearcher    Role = "researcher"
	RoleAnalyzer      Role = "analyzer"
	RoleSynthesizer   Role = "synthesizer"
	RoleUIArchitect   Role = "ui_architect"
	RoleUIImplementer Role = "ui_implementer"
	RoleUIRefiner     Role = "ui_refiner"
)

// TodoStatus is a TodoItem's lifecycle state.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// TodoPriority is a TodoItem's declared priority.
type TodoPriority string

const (
	PriorityLow    TodoPriority = "low"
	PriorityMedium TodoPriority = "medium"
	PriorityHigh   TodoPriority = "high"
)

// TaskAgentType is the one TodoItem.Type value treated as always
// critical; other type values pass through opaquely.
const TaskAgentType = "TaskAgent"

// MetaPrompt is extracted from a todo's content when it matches the
// (ROLE: ...)(CONTEXT: ...)(PROMPT: ...)(OUTPUT: ...) grammar.
type MetaPrompt struct {
	RoleSpecification  Role                   `json:"role_specification"`
	ContextParameters   map[string]interface{} `json:"context_parameters"`
	InstructionBlock    string                 `json:"instruction_block"`
	OutputRequirements  string                 `json:"output_requirements"`
}

// TodoItem is the PLAN-phase task record.
type TodoItem struct {
	ID         string       `json:"id"`
	Content    string       `json:"content"`
	Status     TodoStatus   `json:"status"`
	Priority   TodoPriority `json:"priority"`
	Type       string       `json:"type,omitempty"`
	MetaPrompt *MetaPrompt  `json:"meta_prompt,omitempty"`
}

// IsCritical reports whether a todo counts as critical: priority=high, or
// type=TaskAgent, or a parsed meta_prompt.
func (t TodoItem) IsCritical() bool {
	return t.Priority == PriorityHigh || t.Type == TaskAgentType || t.MetaPrompt != nil
}

// APIFetchResult is one source's outcome from the Auto-Connection Pipeline.
type APIFetchResult struct {
	Source     string  `json:"source"`
	Data       string  `json:"data"`
	Confidence float64 `json:"confidence"`
	Success    bool    `json:"success"`
	DurationMs int64   `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

// Contradiction records a pair of sources whose content diverged too much
// to be considered consistent.
type Contradiction struct {
	SourceA    string  `json:"source_a"`
	SourceB    string  `json:"source_b"`
	Similarity float64 `json:"similarity"`
}

// SynthesisMetadata summarizes the Auto-Connection run.
type SynthesisMetadata struct {
	Total            int     `json:"total"`
	Successful       int     `json:"successful"`
	AvgConfidence    float64 `json:"avg_confidence"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
}

// SynthesisResult is the weighted-synthesis output of an Auto-Connection run.
type SynthesisResult struct {
	SynthesizedContent string              `json:"synthesized_content"`
	OverallConfidence  float64             `json:"overall_confidence"`
	SourcesUsed        []string            `json:"sources_used"`
	Contradictions     []Contradiction     `json:"contradictions"`
	Metadata           SynthesisMetadata   `json:"metadata"`
}

// SessionRecord is the per-session state the phase engine persists.
type SessionRecord struct {
	SessionID              string                 `json:"session_id"`
	CurrentPhase           Phase                  `json:"current_phase"`
	InitialObjective       string                 `json:"initial_objective"`
	DetectedRole           Role                   `json:"detected_role"`
	ReasoningEffectiveness float64                `json:"reasoning_effectiveness"`
	LastActivity           time.Time              `json:"last_activity"`
	Payload                map[string]interface{} `json:"payload"`
}

// ClampEffectiveness keeps ReasoningEffectiveness within [0.3, 1.0].
func ClampEffectiveness(v float64) float64 {
	if v < 0.3 {
		return 0.3
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

// KGEntityType enumerates the Knowledge Graph entity kinds.
type KGEntityType string

const (
	EntitySession     KGEntityType = "session"
	EntityPhase       KGEntityType = "phase"
	EntityTask        KGEntityType = "task"
	EntityRole        KGEntityType = "role"
	EntityAPI         KGEntityType = "api"
	EntityPerformance KGEntityType = "performance"
)

// KGRelationType enumerates the directed relation kinds.
type KGRelationType string

const (
	RelationTransitionsTo KGRelationType = "transitions_to"
	RelationSpawns        KGRelationType = "spawns"
	RelationDependsOn     KGRelationType = "depends_on"
	RelationUses          KGRelationType = "uses"
	RelationTracks        KGRelationType = "tracks"
	RelationContains      KGRelationType = "contains"
)

// KGEntity is a named node in the per-session knowledge graph.
type KGEntity struct {
	Name         string       `json:"name"`
	Type         KGEntityType `json:"type"`
	Observations []string     `json:"observations"`
}

// KGRelation is a directed, typed edge between two entities.
type KGRelation struct {
	From string         `json:"from"`
	To   string         `json:"to"`
	Type KGRelationType `json:"relation_type"`
}
