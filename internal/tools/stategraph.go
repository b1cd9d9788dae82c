package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"ironmanus/internal/domain"
	"ironmanus/internal/graph"
)

type stateGraphArgs struct {
	Action       string             `json:"action"`
	SessionID    string             `json:"session_id"`
	Entities     []domain.KGEntity  `json:"entities"`
	Relations    []domain.KGRelation `json:"relations"`
	EntityName   string             `json:"entity_name"`
	Observations []string           `json:"observations"`
	Names        []string           `json:"names"`
	Query        string             `json:"query"`
	Objective    string             `json:"objective"`
	Role         string             `json:"role"`
	FromPhase    string             `json:"from_phase"`
	ToPhase      string             `json:"to_phase"`
	TaskID       string             `json:"task_id"`
	Content      string             `json:"content"`
	Priority     string             `json:"priority"`
	Status       string             `json:"status"`
}

// NewStateGraph adapts graph.Store's CRUD surface into the
// IronManusStateGraph tool: one JSON action field selects the operation,
// mirroring the action-dispatch shape of a JSON-RPC method table rather
// than one tool per verb.
func NewStateGraph(store *graph.Store) Handler {
	return func(ctx context.Context, rawArgs json.RawMessage) Response {
		var args stateGraphArgs
		if err := unmarshalArgs(rawArgs, &args); err != nil {
			return errorResponse("IronManusStateGraph", err)
		}
		if args.SessionID == "" {
			return errorResponse("IronManusStateGraph", fmt.Errorf("session_id is required"))
		}

		switch args.Action {
		case "create_entities":
			return wrapErr("create_entities", store.CreateEntities(args.SessionID, args.Entities))
		case "create_relations":
			return wrapErr("create_relations", store.CreateRelations(args.SessionID, args.Relations))
		case "add_observations":
			return wrapErr("add_observations", store.AddObservations(args.SessionID, args.EntityName, args.Observations))
		case "delete_entities":
			return wrapErr("delete_entities", store.DeleteEntities(args.SessionID, args.Names))
		case "delete_observations":
			return wrapErr("delete_observations", store.DeleteObservations(args.SessionID, args.EntityName, args.Observations))
		case "delete_relations":
			return wrapErr("delete_relations", store.DeleteRelations(args.SessionID, args.Relations))
		case "read_graph":
			return graphResponse("read_graph", store.ReadGraph(args.SessionID))
		case "search_nodes":
			return graphResponse("search_nodes", store.SearchNodes(args.SessionID, args.Query))
		case "open_nodes":
			return graphResponse("open_nodes", store.OpenNodes(args.SessionID, args.Names))
		case "initialize_session":
			return wrapErr("initialize_session", store.InitializeSession(args.SessionID, args.Objective, domain.Role(args.Role)))
		case "record_phase_transition":
			return wrapErr("record_phase_transition", store.RecordPhaseTransition(args.SessionID, domain.Phase(args.FromPhase), domain.Phase(args.ToPhase)))
		case "record_task_creation":
			return wrapErr("record_task_creation", store.RecordTaskCreation(args.SessionID, args.TaskID, args.Content, domain.TodoPriority(args.Priority)))
		case "update_task_status":
			return wrapErr("update_task_status", store.UpdateTaskStatus(args.SessionID, args.TaskID, domain.TodoStatus(args.Status)))
		default:
			return errorResponse("IronManusStateGraph", fmt.Errorf("unknown action %q", args.Action))
		}
	}
}

func wrapErr(op string, err error) Response {
	if err != nil {
		return errorResponse(op, err)
	}
	return text(fmt.Sprintf("%s: ok", op))
}

func graphResponse(op string, g graph.Graph, err error) Response {
	if err != nil {
		return errorResponse(op, err)
	}
	encoded, err := json.Marshal(g)
	if err != nil {
		return errorResponse(op, err)
	}
	return text(string(encoded))
}
