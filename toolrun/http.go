package toolrun

import (
	"context"

	"github.com/mark3labs/mcp-go/client"
)

// DialHTTP dials a tool server over the streamable-HTTP MCP transport.
func DialHTTP(ctx context.Context, baseURL string) (Transport, error) {
	c, err := client.NewStreamableHttpClient(baseURL)
	if err != nil {
		return nil, err
	}
	return initialize(ctx, "http:"+baseURL, c)
}
