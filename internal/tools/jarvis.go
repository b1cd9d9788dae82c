package tools

import (
	"context"
	"encoding/json"

	"ironmanus/internal/fsm"
)

type jarvisArgs struct {
	SessionID        string                 `json:"session_id"`
	PhaseCompleted   string                 `json:"phase_completed"`
	InitialObjective string                 `json:"initial_objective"`
	Payload          map[string]interface{} `json:"payload"`
}

// NewJARVIS adapts fsm.Engine.Step into the JARVIS tool: one FSM
// transition per call, returning the engine's output as JSON text.
func NewJARVIS(engine *fsm.Engine) Handler {
	return func(ctx context.Context, rawArgs json.RawMessage) Response {
		var args jarvisArgs
		if err := unmarshalArgs(rawArgs, &args); err != nil {
			return errorResponse("JARVIS", err)
		}

		out, err := engine.Step(ctx, fsm.Input{
			SessionID:        args.SessionID,
			PhaseCompleted:   args.PhaseCompleted,
			InitialObjective: args.InitialObjective,
			Payload:          args.Payload,
		})
		if err != nil {
			return errorResponse("JARVIS", err)
		}

		encoded, err := json.Marshal(out)
		if err != nil {
			return errorResponse("JARVIS", err)
		}
		return text(string(encoded))
	}
}
