package toolrun

import (
	"context"

	"github.com/mark3labs/mcp-go/client"
)

// DialSSE dials a tool server over the legacy server-sent-events MCP
// transport, kept for tool servers that predate streamable-HTTP.
func DialSSE(ctx context.Context, baseURL string) (Transport, error) {
	c, err := client.NewSSEMCPClient(baseURL)
	if err != nil {
		return nil, err
	}
	return initialize(ctx, "sse:"+baseURL, c)
}
