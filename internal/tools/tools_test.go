package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ironmanus/internal/config"
	"ironmanus/internal/fsm"
	"ironmanus/internal/graph"
	"ironmanus/internal/obslog"
	"ironmanus/internal/session"
)

func TestDispatchUnknownToolIsErrorResponse(t *testing.T) {
	reg := Registry{}
	resp := reg.Dispatch(context.Background(), "NoSuchTool", nil)
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Content[0].Text, "NoSuchTool")
}

func TestJARVISHandlerReturnsFSMOutputAsJSON(t *testing.T) {
	store, err := session.New("memory", "", 0, obslog.NoOpLogger{})
	require.NoError(t, err)
	g := graph.New(t.TempDir(), true, obslog.NoOpLogger{})
	engine := fsm.New(store, g, nil, nil, config.KnowledgeConfig{AutoConnectionEnabled: false}, nil, obslog.NoOpLogger{})

	handler := NewJARVIS(engine)
	args, _ := json.Marshal(map[string]interface{}{"initial_objective": "Plan a roadmap"})
	resp := handler(context.Background(), args)

	require.False(t, resp.IsError)
	var decoded fsm.Output
	require.NoError(t, json.Unmarshal([]byte(resp.Content[0].Text), &decoded))
	assert.Equal(t, "QUERY", string(decoded.NextPhase))
}

func TestJARVISHandlerRejectsMalformedJSON(t *testing.T) {
	store, err := session.New("memory", "", 0, obslog.NoOpLogger{})
	require.NoError(t, err)
	engine := fsm.New(store, nil, nil, nil, config.KnowledgeConfig{}, nil, obslog.NoOpLogger{})

	handler := NewJARVIS(engine)
	resp := handler(context.Background(), json.RawMessage(`{not valid json`))
	assert.True(t, resp.IsError)
}

func TestStateGraphRejectsMissingSessionID(t *testing.T) {
	store := graph.New(t.TempDir(), true, obslog.NoOpLogger{})
	handler := NewStateGraph(store)
	args, _ := json.Marshal(map[string]interface{}{"action": "read_graph"})
	resp := handler(context.Background(), args)
	assert.True(t, resp.IsError)
}

func TestStateGraphInitializeThenReadGraphRoundTrips(t *testing.T) {
	store := graph.New(t.TempDir(), true, obslog.NoOpLogger{})
	handler := NewStateGraph(store)

	initArgs, _ := json.Marshal(map[string]interface{}{
		"action":     "initialize_session",
		"session_id": "s1",
		"objective":  "test objective",
		"role":       "coder",
	})
	resp := handler(context.Background(), initArgs)
	require.False(t, resp.IsError)

	readArgs, _ := json.Marshal(map[string]interface{}{"action": "read_graph", "session_id": "s1"})
	resp = handler(context.Background(), readArgs)
	require.False(t, resp.IsError)
	var g graph.Graph
	require.NoError(t, json.Unmarshal([]byte(resp.Content[0].Text), &g))
	assert.NotEmpty(t, g.Entities)
}

func TestStateGraphUnknownActionIsErrorResponse(t *testing.T) {
	store := graph.New(t.TempDir(), true, obslog.NoOpLogger{})
	handler := NewStateGraph(store)
	args, _ := json.Marshal(map[string]interface{}{"action": "not_a_real_action", "session_id": "s1"})
	resp := handler(context.Background(), args)
	assert.True(t, resp.IsError)
}

func TestHealthCheckReportsHealthyByDefault(t *testing.T) {
	handler := NewHealthCheck(nil, nil, Registry{"x": nil}, nil, time.Now().Add(-time.Minute))
	resp := handler(context.Background(), nil)
	require.False(t, resp.IsError)

	var report healthReport
	require.NoError(t, json.Unmarshal([]byte(resp.Content[0].Text), &report))
	assert.Equal(t, "healthy", report.Status)
	assert.Nil(t, report.Checks)
}

func TestHealthCheckDetailedFlagsMissingConfig(t *testing.T) {
	handler := NewHealthCheck(nil, nil, Registry{}, nil, time.Now())
	args, _ := json.Marshal(map[string]interface{}{"detailed": true})
	resp := handler(context.Background(), args)
	require.False(t, resp.IsError)

	var report healthReport
	require.NoError(t, json.Unmarshal([]byte(resp.Content[0].Text), &report))
	assert.Equal(t, "degraded", report.Status)
	require.NotNil(t, report.Checks)
	assert.Equal(t, "missing", report.Checks.Configuration)
	assert.Equal(t, "empty", report.Checks.ToolRegistry)
}
