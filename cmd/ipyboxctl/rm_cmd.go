package main

import (
	"context"
	"fmt"
	"sync"
)

type RmCmd struct {
	ID  string `arg:"" optional:"" help:"ID of the sandbox to remove"`
	All bool   `help:"remove every registered sandbox"`
}

func (rm *RmCmd) Run(cctx *Context) error {
	ctx := context.Background()

	ids := []string{}
	if rm.All {
		boxes, err := cctx.controller.List(ctx)
		if err != nil {
			return err
		}
		for _, b := range boxes {
			ids = append(ids, b.ID)
		}
	} else {
		if rm.ID == "" {
			return fmt.Errorf("ID is required unless --all is set")
		}
		ids = append(ids, rm.ID)
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := cctx.controller.Destroy(ctx, id); err != nil {
				errChan <- err
				return
			}
			fmt.Println(id)
		}(id)
	}
	wg.Wait()
	close(errChan)

	for err := range errChan {
		return err
	}
	return nil
}
