package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ironmanus/internal/obslog"
	"ironmanus/internal/tools"
)

func TestServeDispatchesEachLineAndPreservesID(t *testing.T) {
	registry := tools.Registry{
		"Echo": func(ctx context.Context, raw json.RawMessage) tools.Response {
			return tools.Response{Content: []tools.ContentBlock{{Type: "text", Text: string(raw)}}}
		},
	}
	server := NewServer(registry, obslog.NoOpLogger{})

	input := strings.NewReader(`{"id":"1","tool":"Echo","args":{"x":1}}` + "\n" + `{"id":"2","tool":"Echo","args":{"x":2}}` + "\n")
	var out bytes.Buffer

	err := server.Serve(context.Background(), input, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first responseEnvelope
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "1", first.ID)
	assert.Contains(t, first.Content[0].Text, `"x":1`)
}

func TestServeReturnsErrorEnvelopeForMalformedLine(t *testing.T) {
	server := NewServer(tools.Registry{}, obslog.NoOpLogger{})
	input := strings.NewReader("{not json\n")
	var out bytes.Buffer

	err := server.Serve(context.Background(), input, &out)
	require.NoError(t, err)

	var env responseEnvelope
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &env))
	assert.True(t, env.IsError)
}

func TestServeReturnsErrorEnvelopeForUnknownTool(t *testing.T) {
	server := NewServer(tools.Registry{}, obslog.NoOpLogger{})
	input := strings.NewReader(`{"id":"1","tool":"Nope","args":{}}` + "\n")
	var out bytes.Buffer

	require.NoError(t, server.Serve(context.Background(), input, &out))

	var env responseEnvelope
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &env))
	assert.True(t, env.IsError)
}
