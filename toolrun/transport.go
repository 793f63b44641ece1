// Package toolrun is the Tool-Client Runtime (C6): it dials a tool server
// over one of three transports and exposes a uniform ListTools/CallTool
// surface on top of github.com/mark3labs/mcp-go's client implementations,
// which already ship the stdio, streamable-HTTP, and legacy-SSE
// transports spec.md names.
package toolrun

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolSchema describes one tool a server exposes.
type ToolSchema struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Result is a tool call's outcome.
type Result struct {
	Text    string
	IsError bool
}

// Transport is the uniform surface every tool-server connection exposes,
// regardless of which of the three wire transports backs it.
type Transport interface {
	ListTools(ctx context.Context) ([]ToolSchema, error)
	CallTool(ctx context.Context, name string, args map[string]any) (Result, error)
	Close() error
}

// schemasFromMCP adapts the wire-level mcp.Tool list to our transport-
// agnostic ToolSchema, round-tripping through JSON rather than depending
// on the exact shape of mcp.ToolInputSchema's fields.
func schemasFromMCP(tools []mcp.Tool) []ToolSchema {
	out := make([]ToolSchema, 0, len(tools))
	for _, t := range tools {
		schema := map[string]any{}
		if b, err := json.Marshal(t.InputSchema); err == nil {
			json.Unmarshal(b, &schema)
		}
		out = append(out, ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return out
}

func resultFromMCP(r *mcp.CallToolResult) Result {
	if r == nil {
		return Result{}
	}
	var text string
	for _, c := range r.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			text += tc.Text
		}
	}
	return Result{Text: text, IsError: r.IsError}
}
