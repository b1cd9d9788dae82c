// Package fsm implements the Phase Engine (C9): the transition function,
// role-enhanced prompt composition, and per-phase tool gating from spec
// §4.9. It is the one component every other package (session, graph,
// catalog, pipeline, validator) feeds into.
package fsm

import (
	"context"
	"fmt"

	"ironmanus/internal/apperr"
	"ironmanus/internal/catalog"
	"ironmanus/internal/config"
	"ironmanus/internal/domain"
	"ironmanus/internal/graph"
	"ironmanus/internal/obslog"
	"ironmanus/internal/obstel"
	"ironmanus/internal/pipeline"
	"ironmanus/internal/session"
	"ironmanus/internal/validator"
)

// Engine owns every collaborator one FSM step needs.
type Engine struct {
	sessions  session.Store
	graph     *graph.Store
	catalog   *catalog.Catalog
	pipeline  *pipeline.Pipeline
	knowledge config.KnowledgeConfig
	telemetry *obstel.Provider
	logger    obslog.Logger
}

// New wires an Engine. graph, catalog, and pipeline may be nil in tests
// that only exercise phases before KNOWLEDGE.
func New(sessions session.Store, graphStore *graph.Store, cat *catalog.Catalog, pipe *pipeline.Pipeline, knowledge config.KnowledgeConfig, telemetry *obstel.Provider, logger obslog.Logger) *Engine {
	return &Engine{
		sessions:  sessions,
		graph:     graphStore,
		catalog:   cat,
		pipeline:  pipe,
		knowledge: knowledge,
		telemetry: telemetry,
		logger:    obslog.Component(logger, "engine/fsm"),
	}
}

// Input is one JARVIS call's arguments.
type Input struct {
	SessionID        string
	PhaseCompleted   string
	InitialObjective string
	Payload          map[string]interface{}
}

// Output is the §4.9 "output per call" shape.
type Output struct {
	SessionID        string                 `json:"session_id"`
	NextPhase        domain.Phase           `json:"next_phase"`
	SystemPrompt     string                 `json:"system_prompt"`
	AllowedNextTools []string               `json:"allowed_next_tools"`
	Payload          map[string]interface{} `json:"payload"`
	Status           string                 `json:"status"`
}

// Step performs exactly one FSM transition and returns the assembled
// response. It never returns an error for a malformed phase_completed
// value — an unrecognized trigger simply leaves the session in its
// current phase, preserving state rather than failing the call.
func (e *Engine) Step(ctx context.Context, in Input) (Output, error) {
	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = e.sessions.NewSessionID()
	}

	rec, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return Output{}, apperr.New("fsm.Step", apperr.KindInternal, err).WithID(sessionID)
	}

	if e.telemetry != nil {
		spanCtx, span := e.telemetry.StartPhaseSpan(ctx, sessionID, string(rec.CurrentPhase))
		defer span.End()
		ctx = spanCtx
	}

	payload := mergeMaps(rec.Payload, in.Payload)
	role := rec.DetectedRole
	objective := rec.InitialObjective

	if objective == "" && in.InitialObjective != "" {
		objective = in.InitialObjective
		role = DetectRole(objective)
		if e.graph != nil {
			if err := e.graph.InitializeSession(sessionID, objective, role); err != nil {
				e.logger.WarnWithContext(ctx, "graph initialize_session failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
			}
		}
	}

	current := rec.CurrentPhase
	completed := domain.Phase(in.PhaseCompleted)

	next, effectiveness, payload := e.transition(ctx, sessionID, current, completed, role, rec.ReasoningEffectiveness, payload)

	if current != next {
		if e.graph != nil {
			if err := e.graph.RecordPhaseTransition(sessionID, current, next); err != nil {
				e.logger.WarnWithContext(ctx, "graph record_phase_transition failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
			}
		}
		if e.telemetry != nil {
			e.telemetry.RecordPhaseTransition(ctx, string(current), string(next))
		}
	}

	updated, err := e.sessions.Update(ctx, sessionID, func(r *domain.SessionRecord) {
		r.CurrentPhase = next
		r.InitialObjective = objective
		r.DetectedRole = role
		r.ReasoningEffectiveness = domain.ClampEffectiveness(effectiveness)
		r.Payload = payload
	})
	if err != nil {
		return Output{}, apperr.New("fsm.Step", apperr.KindInternal, err).WithID(sessionID)
	}

	status := "IN_PROGRESS"
	if next == domain.PhaseDone {
		status = "DONE"
	}

	// The prompt's context blocks read the effectiveness from the payload;
	// it is kept on the record, so it is supplied here for the prompt only.
	promptPayload := mergeMaps(updated.Payload, map[string]interface{}{"reasoning_effectiveness": updated.ReasoningEffectiveness})

	return Output{
		SessionID:        sessionID,
		NextPhase:        next,
		SystemPrompt:     composePrompt(updated.DetectedRole, next, promptPayload),
		AllowedNextTools: AllowedTools(next),
		Payload:          updated.Payload,
		Status:           status,
	}, nil
}

// transition implements the §4.9 transition table. It is a pure function
// of its arguments except for the side-effecting branch (KNOWLEDGE's
// Auto-Connection run); its effects are captured entirely in the
// returned payload, so the caller's persistence step stays uniform.
func (e *Engine) transition(ctx context.Context, sessionID string, current, completed domain.Phase, role domain.Role, effectiveness float64, payload map[string]interface{}) (domain.Phase, float64, map[string]interface{}) {
	switch current {
	case domain.PhaseInit:
		return domain.PhaseQuery, effectiveness, payload

	case domain.PhaseQuery:
		if completed == domain.PhaseQuery {
			return domain.PhaseEnhance, effectiveness, payload
		}
		return domain.PhaseQuery, effectiveness, payload

	case domain.PhaseEnhance:
		if completed == domain.PhaseEnhance {
			return domain.PhaseKnowledge, effectiveness, payload
		}
		return domain.PhaseEnhance, effectiveness, payload

	case domain.PhaseKnowledge:
		if completed == domain.PhaseKnowledge {
			payload = e.runKnowledge(ctx, sessionID, role, payload)
			return domain.PhasePlan, effectiveness, payload
		}
		return domain.PhaseKnowledge, effectiveness, payload

	case domain.PhasePlan:
		if completed == domain.PhasePlan {
			payload = extractMetaPrompts(payload)
			payload["current_task_index"] = 0
			return domain.PhaseExecute, effectiveness, payload
		}
		return domain.PhasePlan, effectiveness, payload

	case domain.PhaseExecute:
		if completed == domain.PhaseExecute {
			return e.advanceExecute(effectiveness, payload)
		}
		return domain.PhaseExecute, effectiveness, payload

	case domain.PhaseVerify:
		if completed == domain.PhaseVerify {
			return e.runVerify(effectiveness, payload)
		}
		return domain.PhaseVerify, effectiveness, payload

	case domain.PhaseDone:
		return domain.PhaseDone, effectiveness, payload

	default:
		return current, effectiveness, payload
	}
}

func (e *Engine) advanceExecute(effectiveness float64, payload map[string]interface{}) (domain.Phase, float64, map[string]interface{}) {
	if payloadBool(payload, "execution_success") {
		effectiveness += 0.1
	} else {
		effectiveness -= 0.1
	}
	effectiveness = domain.ClampEffectiveness(effectiveness)

	if payloadBool(payload, "more_tasks_pending") {
		payload["current_task_index"] = payloadInt(payload, "current_task_index") + 1
		return domain.PhaseExecute, effectiveness, payload
	}
	return domain.PhaseVerify, effectiveness, payload
}

// runVerify runs the Validator and applies the rollback policy: below 50%
// completion restarts at PLAN, below 80% retries the current task, and
// otherwise retries the task before it.
func (e *Engine) runVerify(effectiveness float64, payload map[string]interface{}) (domain.Phase, float64, map[string]interface{}) {
	todos := payloadTodos(payload, "todos_with_metaprompts")
	result := validator.Validate(todos, effectiveness, payloadBool(payload, "verification_passed"))

	if result.Passed {
		return domain.PhaseDone, effectiveness, payload
	}

	payload["verification_failure_reason"] = result.Reason
	payload["last_completion_percentage"] = result.CompletionPct

	switch {
	case result.CompletionPct < 50:
		payload["current_task_index"] = 0
		return domain.PhasePlan, effectiveness, payload
	case result.CompletionPct < 80:
		return domain.PhaseExecute, effectiveness, payload
	default:
		idx := payloadInt(payload, "current_task_index") - 1
		if idx < 0 {
			idx = 0
		}
		payload["current_task_index"] = idx
		return domain.PhaseExecute, effectiveness, payload
	}
}

func extractMetaPrompts(payload map[string]interface{}) map[string]interface{} {
	todos := payloadTodos(payload, "todos_with_metaprompts")
	for i := range todos {
		if mp := ExtractMetaPrompt(todos[i].Content); mp != nil {
			todos[i].MetaPrompt = mp
		}
	}
	payload["todos_with_metaprompts"] = todos
	return payload
}

// runKnowledge ranks the catalog for the session's role, runs
// Auto-Connection if enabled, and records the outcome in the payload
// (auto_connection_successful, synthesized_knowledge, api_usage_metrics,
// auto_connection_metadata). Any panic inside the pipeline is treated as a
// recoverable per-run failure rather than a crash.
func (e *Engine) runKnowledge(ctx context.Context, sessionID string, role domain.Role, payload map[string]interface{}) (out map[string]interface{}) {
	out = payload
	defer func() {
		if r := recover(); r != nil {
			out["auto_connection_successful"] = false
			out["synthesized_knowledge"] = fmt.Sprintf("Auto-Connection failed unexpectedly: %v", r)
		}
	}()

	if !e.knowledge.AutoConnectionEnabled || e.catalog == nil || e.pipeline == nil {
		payload["auto_connection_successful"] = false
		return payload
	}

	objective := payloadString(payload, "enhanced_goal")
	if objective == "" {
		objective = payloadString(payload, "knowledge_gathered")
	}

	candidates := e.catalog.SelectRelevantAPIs(objective, role, e.knowledge.FetchCount)
	if len(candidates) == 0 {
		payload["auto_connection_successful"] = false
		return payload
	}

	result := e.pipeline.Run(ctx, candidates)
	payload["auto_connection_successful"] = result.OverallConfidence > 0
	payload["synthesized_knowledge"] = result.SynthesizedContent
	payload["api_usage_metrics"] = map[string]interface{}{
		"total":          result.Metadata.Total,
		"successful":     result.Metadata.Successful,
		"avg_confidence": result.Metadata.AvgConfidence,
	}
	payload["auto_connection_metadata"] = result.Metadata
	return payload
}

func mergeMaps(base, overlay map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
