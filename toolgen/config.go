// Package toolgen is the Tool-Client Generator (C5): given a tool server's
// connection details it lists the server's tools and materializes one
// importable Python stub module per server, for execution inside the
// sandbox by C2/C6.
package toolgen

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/i-dream-of-ai/ipybox/ipyerr"
	"github.com/i-dream-of-ai/ipybox/toolrun"
)

// TransportKind identifies which of the three wire transports a
// ToolServerConfig dials.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
	TransportSSE   TransportKind = "sse"
)

// ToolServerConfig describes one tool server: how to reach it and how to
// launch it, per spec.md §4.1's "tool server configuration" type. One
// config expands to N generated stub functions, one per advertised tool.
type ToolServerConfig struct {
	Transport TransportKind     `yaml:"transport" json:"transport"`
	Command   string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty" json:"args,omitempty"`
	URL       string            `yaml:"url,omitempty" json:"url,omitempty"`
	Env       map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// LoadConfig parses a ToolServerConfig from its on-disk YAML form, the
// format the CLI reads tool-server configuration files in.
func LoadConfig(data []byte) (ToolServerConfig, error) {
	var cfg ToolServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ToolServerConfig{}, ipyerr.New(ipyerr.ToolClientGenerator, "LoadConfig", ipyerr.Configuration, err)
	}
	return cfg.validated()
}

func (c ToolServerConfig) validated() (ToolServerConfig, error) {
	if c.Transport == "" {
		return ToolServerConfig{}, ipyerr.New(ipyerr.ToolClientGenerator, "LoadConfig", ipyerr.Configuration,
			fmt.Errorf("transport is required"))
	}
	return c, nil
}

func (c ToolServerConfig) env() []string {
	out := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		out = append(out, k+"="+v)
	}
	return out
}

// Dial validates c and opens a toolrun session against the server it
// describes. It is the entry point cmd/toolrunner uses to turn a
// stub-embedded server config back into a live Transport at call time.
func (c ToolServerConfig) Dial(ctx context.Context) (toolrun.Transport, error) {
	cfg, err := c.validated()
	if err != nil {
		return nil, err
	}
	return cfg.dial(ctx)
}

// dial opens a short-lived toolrun session against the configured server.
func (c ToolServerConfig) dial(ctx context.Context) (toolrun.Transport, error) {
	switch c.Transport {
	case TransportStdio:
		return toolrun.DialStdio(ctx, c.Command, c.env(), c.Args...)
	case TransportHTTP:
		return toolrun.DialHTTP(ctx, c.URL)
	case TransportSSE:
		return toolrun.DialSSE(ctx, c.URL)
	default:
		return nil, ipyerr.New(ipyerr.ToolClientGenerator, "Dial", ipyerr.Configuration,
			fmt.Errorf("unknown transport kind %q", c.Transport))
	}
}
