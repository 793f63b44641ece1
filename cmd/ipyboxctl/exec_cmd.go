package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/i-dream-of-ai/ipybox/kernel"
)

type ExecCmd struct {
	ID      string `arg:"" help:"sandbox ID"`
	Code    string `arg:"" optional:"" help:"code to execute; omit to read statements from stdin"`
	Session string `default:"default" help:"kernel session name within the sandbox"`
}

func (c *ExecCmd) Run(cctx *Context) error {
	ctx := context.Background()

	box, err := cctx.controller.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	if box == nil {
		return fmt.Errorf("sandbox %q not found", c.ID)
	}

	sess, err := box.KernelSession(ctx, c.Session)
	if err != nil {
		return err
	}

	if c.Code != "" {
		return runOne(ctx, sess, c.Code)
	}

	scanner := bufio.NewScanner(os.Stdin)
	var buf strings.Builder
	for scanner.Scan() {
		buf.WriteString(scanner.Text())
		buf.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	return runOne(ctx, sess, buf.String())
}

func runOne(ctx context.Context, sess *kernel.Session, code string) error {
	result, err := sess.Execute(ctx, code)
	if err != nil {
		return err
	}
	if result.Text != "" {
		fmt.Print(result.Text)
	}
	if result.Err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", result.Err.EName, result.Err.EValue)
		return fmt.Errorf("execution failed: %s", result.Err.EName)
	}
	return nil
}
