package fsm

import "ironmanus/internal/domain"

// payloadString reads a string field, returning "" if absent or the wrong
// type — the payload is a duck-typed map, so callers never assume a
// key's presence.
func payloadString(payload map[string]interface{}, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func payloadBool(payload map[string]interface{}, key string) bool {
	v, ok := payload[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// payloadInt reads an integer field. JSON-decoded payloads carry numbers
// as float64, so both representations are accepted.
func payloadInt(payload map[string]interface{}, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// payloadTodos decodes the todos_with_metaprompts field into []TodoItem.
// Entries may arrive as already-typed structs (tests, in-process callers)
// or as map[string]interface{} (JSON-decoded over the RPC transport).
func payloadTodos(payload map[string]interface{}, key string) []domain.TodoItem {
	v, ok := payload[key]
	if !ok {
		return nil
	}
	switch items := v.(type) {
	case []domain.TodoItem:
		return items
	case []interface{}:
		out := make([]domain.TodoItem, 0, len(items))
		for _, item := range items {
			if t, ok := decodeTodo(item); ok {
				out = append(out, t)
			}
		}
		return out
	default:
		return nil
	}
}

func decodeTodo(v interface{}) (domain.TodoItem, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return domain.TodoItem{}, false
	}
	t := domain.TodoItem{
		ID:      payloadString(m, "id"),
		Content: payloadString(m, "content"),
		Status:  domain.TodoStatus(stringOrDefault(m, "status", string(domain.TodoPending))),
		Priority: domain.TodoPriority(stringOrDefault(m, "priority", string(domain.PriorityMedium))),
		Type:    payloadString(m, "type"),
	}
	if mp, ok := m["meta_prompt"]; ok {
		t.MetaPrompt = decodeMetaPrompt(mp)
	}
	return t, true
}

// decodeMetaPrompt reconstructs a *domain.MetaPrompt from its JSON-decoded
// map[string]interface{} form. A todo's criticality can derive solely from
// having a parsed meta-prompt (domain.TodoItem.IsCritical), so this must
// round-trip cleanly through any backend that stores payloads as JSON.
func decodeMetaPrompt(v interface{}) *domain.MetaPrompt {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	mp := &domain.MetaPrompt{
		RoleSpecification:  domain.Role(payloadString(m, "role_specification")),
		InstructionBlock:   payloadString(m, "instruction_block"),
		OutputRequirements: payloadString(m, "output_requirements"),
	}
	if cp, ok := m["context_parameters"].(map[string]interface{}); ok {
		mp.ContextParameters = cp
	}
	return mp
}

func stringOrDefault(m map[string]interface{}, key, fallback string) string {
	if s := payloadString(m, key); s != "" {
		return s
	}
	return fallback
}
