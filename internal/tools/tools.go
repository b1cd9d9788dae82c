// Package tools adapts the engine packages (fsm, pipeline, graph) into the
// `{content:[{type:"text",text}], isError?}` response shape every tool
// call returns.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"ironmanus/internal/apperr"
)

// ContentBlock is one element of a tool response's content array.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Response is the normative tool-call response envelope.
type Response struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

func text(s string) Response {
	return Response{Content: []ContentBlock{{Type: "text", Text: s}}}
}

// errorResponse builds a metaprompting-guidance failure response: a
// short block telling the executor what went wrong and how to retry,
// never a bare stack trace. An SSRF-blocked error gets guidance that
// does not suggest retrying the same URL, since that will never succeed.
func errorResponse(op string, err error) Response {
	kind := apperr.KindOf(err)
	guidance := "Correct the arguments and retry, or call JARVIS to continue the session from its last good state."
	if apperr.IsSSRF(err) {
		guidance = "The target URL was blocked by network safety checks and will not succeed on retry; choose a different source or call JARVIS to continue the session from its last good state."
	}
	return Response{
		Content: []ContentBlock{{
			Type: "text",
			Text: fmt.Sprintf("%s failed (%s): %v\n\n%s", op, kind, err, guidance),
		}},
		IsError: true,
	}
}

// Handler is one tool's entry point: raw JSON arguments in, a response out.
// A Handler never returns a Go error — failures are folded into Response so
// the transport layer has one shape to serialize.
type Handler func(ctx context.Context, rawArgs json.RawMessage) Response

// Registry maps normative tool names to their handlers.
type Registry map[string]Handler

// Dispatch invokes the handler registered for name with rawArgs, returning
// ErrUnknownTool's text form when name is not registered.
func (r Registry) Dispatch(ctx context.Context, name string, rawArgs json.RawMessage) Response {
	h, ok := r[name]
	if !ok {
		return errorResponse(name, apperr.ErrUnknownTool)
	}
	return h(ctx, rawArgs)
}

func unmarshalArgs(raw json.RawMessage, dest interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return apperr.New("unmarshal_args", apperr.KindValidation, err)
	}
	return nil
}
