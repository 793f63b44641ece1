// Command toolrunner is the in-container half of the Tool-Client Runtime
// (C6): it is baked into the sandbox image and invoked as a subprocess
// by the generated Python stubs' ipybox._toolrun bridge, one process per
// call. It reads a single JSON request from stdin, dials the tool server
// the request describes over whichever of the three toolrun transports
// its config names, lists the server's tools, fails unless the requested
// tool is among them, performs one CallTool, and writes a JSON response to
// stdout. Keeping this a one-shot CLI rather than a resident daemon
// mirrors C6's own "opens a session ... invokes one tool" contract: no
// connection outlives the call it was opened for.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/i-dream-of-ai/ipybox/toolgen"
)

type request struct {
	ServerID string                   `json:"server_id"`
	Config   toolgen.ToolServerConfig `json:"config"`
	Tool     string                   `json:"tool"`
	Args     map[string]any           `json:"args"`
}

type response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func main() {
	if err := run(); err != nil {
		json.NewEncoder(os.Stdout).Encode(response{Error: err.Error()})
		os.Exit(1)
	}
}

func run() error {
	var req request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	transport, err := req.Config.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial %s: %w", req.ServerID, err)
	}
	defer transport.Close()

	tools, err := transport.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools on %s: %w", req.ServerID, err)
	}
	advertised := false
	for _, t := range tools {
		if t.Name == req.Tool {
			advertised = true
			break
		}
	}
	if !advertised {
		return fmt.Errorf("tool %s not advertised by %s", req.Tool, req.ServerID)
	}

	result, err := transport.CallTool(ctx, req.Tool, req.Args)
	if err != nil {
		return fmt.Errorf("call %s on %s: %w", req.Tool, req.ServerID, err)
	}

	return json.NewEncoder(os.Stdout).Encode(response{Result: result.Text})
}
