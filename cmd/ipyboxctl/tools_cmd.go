package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/i-dream-of-ai/ipybox/toolgen"
)

type ToolsGenCmd struct {
	ID         string `arg:"" help:"sandbox ID"`
	ServerID   string `arg:"" help:"tool server ID"`
	ConfigFile string `arg:"" type:"existingfile" help:"path to a YAML (or JSON) tool-server config"`
}

func (c *ToolsGenCmd) Run(cctx *Context) error {
	ctx := context.Background()

	box, err := cctx.controller.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if box == nil {
		return fmt.Errorf("sandbox %q not found", c.ID)
	}

	data, err := os.ReadFile(c.ConfigFile)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", c.ConfigFile, err)
	}
	cfg, err := toolgen.LoadConfig(data)
	if err != nil {
		return err
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	files, err := box.ResourceClient().GenerateToolStubs(ctx, c.ServerID, cfgJSON)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Println(f)
	}
	return nil
}

type ToolsFetchCmd struct {
	ID       string `arg:"" help:"sandbox ID"`
	ServerID string `arg:"" help:"tool server ID"`
	Out      string `arg:"" type:"path" help:"local path to write the fetched tar archive to"`
}

func (c *ToolsFetchCmd) Run(cctx *Context) error {
	ctx := context.Background()

	box, err := cctx.controller.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if box == nil {
		return fmt.Errorf("sandbox %q not found", c.ID)
	}

	archive, err := box.ResourceClient().FetchToolStubs(ctx, c.ServerID)
	if err != nil {
		return err
	}
	return os.WriteFile(c.Out, archive, 0o644)
}
