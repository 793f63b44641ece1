package toolrun

import (
	"context"

	"github.com/mark3labs/mcp-go/client"
)

// DialStdio launches command as a subprocess and speaks MCP over its
// stdin/stdout, the transport spec.md names for locally-installed tool
// servers.
func DialStdio(ctx context.Context, command string, env []string, args ...string) (Transport, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, err
	}
	return initialize(ctx, "stdio:"+command, c)
}
