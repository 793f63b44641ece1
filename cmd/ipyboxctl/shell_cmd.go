package main

import (
	"context"
	"fmt"
	"os"

	"github.com/i-dream-of-ai/ipybox/containerengine"
)

// ShellCmd execs straight into a sandbox's container, bypassing the
// kernel gateway entirely. A break-glass debug path, not the normal way
// to run code (use exec for that).
type ShellCmd struct {
	ID      string `arg:"" help:"sandbox ID"`
	Command string `default:"/bin/sh" help:"shell command to exec in the container"`
}

func (c *ShellCmd) Run(cctx *Context) error {
	ctx := context.Background()

	box, err := cctx.controller.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if box == nil {
		return fmt.Errorf("sandbox %q not found", c.ID)
	}
	if box.ContainerID == "" {
		return fmt.Errorf("sandbox %q has no running container", c.ID)
	}

	engine := containerengine.NewEngine(cctx.EngineBin)
	return engine.Exec(box.ContainerID, c.Command, nil, os.Stdin, os.Stdout, os.Stderr)
}
