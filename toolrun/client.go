package toolrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/i-dream-of-ai/ipybox/ipyerr"
)

// mcpTransport wraps an mcp-go client.Client, shared by all three wire
// transports below.
type mcpTransport struct {
	name string
	c    *client.Client
}

func initialize(ctx context.Context, name string, c *client.Client) (*mcpTransport, error) {
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, ipyerr.New(ipyerr.ToolClientRuntime, "Connect", ipyerr.TransportFailed, fmt.Errorf("%s: start: %w", name, err))
	}
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "ipybox-toolrun", Version: "0.1.0"}
	if _, err := c.Initialize(ctx, req); err != nil {
		c.Close()
		return nil, ipyerr.New(ipyerr.ToolClientRuntime, "Connect", ipyerr.ProtocolFraming, fmt.Errorf("%s: initialize: %w", name, err))
	}
	return &mcpTransport{name: name, c: c}, nil
}

func (t *mcpTransport) ListTools(ctx context.Context) ([]ToolSchema, error) {
	res, err := t.c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, ipyerr.New(ipyerr.ToolClientRuntime, "ListTools", ipyerr.TransportFailed, fmt.Errorf("%s: %w", t.name, err))
	}
	return schemasFromMCP(res.Tools), nil
}

func (t *mcpTransport) CallTool(ctx context.Context, name string, args map[string]any) (Result, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := t.c.CallTool(ctx, req)
	if err != nil {
		// mcp-go only returns a CallToolResult with IsError set for a
		// genuine tool-reported failure; err != nil here means the call
		// never got a proper response at all.
		return Result{}, ipyerr.New(ipyerr.ToolClientRuntime, "CallTool", classifyCallErr(err), fmt.Errorf("%s: %s: %w", t.name, name, err))
	}
	result := resultFromMCP(res)
	if result.IsError {
		return result, ipyerr.New(ipyerr.ToolClientRuntime, "CallTool", ipyerr.ToolReported, fmt.Errorf("%s: %s: %s", t.name, name, result.Text))
	}
	return result, nil
}

// classifyCallErr distinguishes a malformed-but-received JSON-RPC frame
// from an outright transport failure (dial/write/context-deadline). A
// frame that at least reached json decoding and failed there is a
// protocol-framing problem; anything else is presumed transport-level.
func classifyCallErr(err error) ipyerr.Kind {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ipyerr.ProtocolFraming
	}
	return ipyerr.TransportFailed
}

func (t *mcpTransport) Close() error {
	return t.c.Close()
}
