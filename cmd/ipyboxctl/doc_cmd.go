package main

import "github.com/alecthomas/kong"

type DocCmd struct{}

func (c *DocCmd) Run(cctx *Context) error {
	return MarkdownHelpPrinter(kong.HelpOptions{}, cctx.kongCtx)
}
