package containerengine

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/i-dream-of-ai/ipybox/containerengine/ctypes"
)

// registryResolver checks image presence in the configured remote
// registry via go-containerregistry before shelling out to the engine
// CLI to pull it.
type registryResolver struct{}

// NewRegistryResolver returns the default ImageResolver.
func NewRegistryResolver() ImageResolver {
	return &registryResolver{}
}

func (r *registryResolver) EnsurePresent(ctx context.Context, bin, image string) (<-chan ctypes.PullProgress, error) {
	progress := make(chan ctypes.PullProgress, 8)

	digest, err := crane.Digest(image)
	if err != nil {
		close(progress)
		return progress, fmt.Errorf("resolving digest for %s: %w", image, err)
	}
	slog.InfoContext(ctx, "registryResolver.EnsurePresent", "image", image, "digest", digest)

	go func() {
		defer close(progress)
		cmd := exec.CommandContext(ctx, bin, "image", "inspect", image)
		if err := cmd.Run(); err == nil {
			progress <- ctypes.PullProgress{Layer: digest, Status: "already present", Done: true}
			return
		}
		pull := exec.CommandContext(ctx, bin, "pull", image)
		out, err := pull.CombinedOutput()
		for _, line := range strings.Split(string(out), "\n") {
			if line == "" {
				continue
			}
			progress <- ctypes.PullProgress{Layer: digest, Status: line}
		}
		done := err == nil
		progress <- ctypes.PullProgress{Layer: digest, Status: statusFromErr(err), Done: done}
	}()

	return progress, nil
}

func statusFromErr(err error) string {
	if err == nil {
		return "pulled"
	}
	return "pull failed: " + err.Error()
}
