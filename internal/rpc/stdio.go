// Package rpc implements a line-delimited JSON-RPC-style stdio transport:
// one JSON request per input line, one JSON response per output line,
// dispatched through a tools.Registry.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"ironmanus/internal/obslog"
	"ironmanus/internal/tools"
)

// Request is one line of input: a tool name plus its raw JSON arguments.
type Request struct {
	ID   string          `json:"id,omitempty"`
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// responseEnvelope carries the request's id alongside the tool's Response
// so a caller pipelining several requests can match replies.
type responseEnvelope struct {
	ID string `json:"id,omitempty"`
	tools.Response
}

// Server reads Requests from in, dispatches them through registry, and
// writes one JSON responseEnvelope per line to out.
type Server struct {
	registry tools.Registry
	logger   obslog.Logger
}

// NewServer builds a Server over the given tool registry.
func NewServer(registry tools.Registry, logger obslog.Logger) *Server {
	return &Server{registry: registry, logger: obslog.Component(logger, "engine/rpc")}
}

// Serve blocks reading newline-delimited requests from in until in is
// exhausted or ctx is canceled, writing one response line per request.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	writer := bufio.NewWriter(out)
	defer writer.Flush()

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeLine(writer, responseEnvelope{Response: tools.Response{
				Content: []tools.ContentBlock{{Type: "text", Text: "malformed request: " + err.Error()}},
				IsError: true,
			}})
			continue
		}

		resp := s.registry.Dispatch(ctx, req.Tool, req.Args)
		s.writeLine(writer, responseEnvelope{ID: req.ID, Response: resp})
		if err := writer.Flush(); err != nil {
			s.logger.Error("rpc write failed", map[string]interface{}{"error": err.Error()})
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) writeLine(w *bufio.Writer, env responseEnvelope) {
	encoded, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("rpc response encode failed", map[string]interface{}{"error": err.Error()})
		return
	}
	w.Write(encoded)
	w.WriteByte('\n')
}
