package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

type LsCmd struct{}

func (c *LsCmd) Run(cctx *Context) error {
	ctx := context.Background()

	boxes, err := cctx.controller.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SANDBOX ID\tCONTAINER ID\tIMAGE\tEXECUTOR ADDR\tRESOURCE ADDR\tENV FILE ERROR\t")
	for _, b := range boxes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", b.ID, b.ContainerID, b.ImageName, b.ExecutorAddr, b.ResourceAddr, b.EnvFileError)
	}
	return w.Flush()
}
