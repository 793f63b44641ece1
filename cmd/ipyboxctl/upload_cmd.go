package main

import (
	"context"
	"fmt"
	"os"
)

type UploadCmd struct {
	ID         string `arg:"" help:"sandbox ID"`
	LocalPath  string `arg:"" help:"local file path to upload"`
	RemotePath string `arg:"" help:"destination path inside the sandbox"`
}

func (c *UploadCmd) Run(cctx *Context) error {
	ctx := context.Background()

	box, err := cctx.controller.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if box == nil {
		return fmt.Errorf("sandbox %q not found", c.ID)
	}

	f, err := os.Open(c.LocalPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.LocalPath, err)
	}
	defer f.Close()

	return box.ResourceClient().UploadFile(ctx, c.RemotePath, f)
}

type DownloadCmd struct {
	ID         string `arg:"" help:"sandbox ID"`
	RemotePath string `arg:"" help:"path inside the sandbox to download"`
	LocalPath  string `arg:"" help:"local file path to write"`
}

func (c *DownloadCmd) Run(cctx *Context) error {
	ctx := context.Background()

	box, err := cctx.controller.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if box == nil {
		return fmt.Errorf("sandbox %q not found", c.ID)
	}

	data, err := box.ResourceClient().DownloadFile(ctx, c.RemotePath)
	if err != nil {
		return err
	}

	return os.WriteFile(c.LocalPath, data, 0o644)
}
