// Package containerengine implements the Container Controller: it creates,
// starts, inspects, and tears down the containers that host a Python
// sandbox, shelling out to a container engine CLI (docker by default) the
// same way the teacher's applecontainer package shells out to `container`.
package containerengine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/i-dream-of-ai/ipybox/containerengine/ctypes"
	"github.com/i-dream-of-ai/ipybox/containerengine/dockerflags"
	"github.com/i-dream-of-ai/ipybox/ipyerr"
)

// Engine creates and manages containers through a pluggable engine binary.
type Engine struct {
	// Bin is the container engine executable, e.g. "docker" or "podman".
	Bin string
	// Registry resolves and pulls images; if nil, NewEngine installs the
	// default go-containerregistry-backed resolver.
	Registry ImageResolver
}

// ImageResolver checks whether an image is already present locally and
// resolvable, pulling it through the engine CLI when it's not.
type ImageResolver interface {
	EnsurePresent(ctx context.Context, bin, image string) (<-chan ctypes.PullProgress, error)
}

// NewEngine returns an Engine shelling out to bin (default "docker").
func NewEngine(bin string) *Engine {
	if bin == "" {
		bin = "docker"
	}
	return &Engine{Bin: bin, Registry: NewRegistryResolver()}
}

// Start ensures the image is present, allocates ports, creates the
// container, starts it, and blocks until both the executor and resource
// ports accept connections (or ctx expires). onProgress, when given, is
// called with every PullProgress line reported while the image is
// resolved; a caller not interested in pull progress passes none.
func (e *Engine) Start(ctx context.Context, d ctypes.Descriptor, onProgress ...func(ctypes.PullProgress)) (*ctypes.Handle, error) {
	slog.InfoContext(ctx, "Engine.Start", "image", d.Image)

	progress, err := e.Registry.EnsurePresent(ctx, e.Bin, d.Image)
	if err != nil {
		return nil, ipyerr.New(ipyerr.ContainerController, "Start", ipyerr.Provisioning, err)
	}
	for p := range progress {
		for _, fn := range onProgress {
			fn(p)
		}
	}

	execPort, err := allocatePort(d.ExecutorPort.Fixed)
	if err != nil {
		return nil, ipyerr.New(ipyerr.ContainerController, "Start", ipyerr.Provisioning, err)
	}
	resPort, err := allocatePort(d.ResourcePort.Fixed)
	if err != nil {
		return nil, ipyerr.New(ipyerr.ContainerController, "Start", ipyerr.Provisioning, err)
	}

	containerID, err := e.create(ctx, d, execPort, resPort)
	if err != nil {
		return nil, ipyerr.New(ipyerr.ContainerController, "Start", ipyerr.Provisioning, err)
	}

	if err := e.startContainer(ctx, containerID); err != nil {
		e.forceRemove(ctx, containerID)
		return nil, ipyerr.New(ipyerr.ContainerController, "Start", ipyerr.Provisioning, err)
	}

	handle := &ctypes.Handle{
		ContainerID:  containerID,
		ExecutorAddr: fmt.Sprintf("127.0.0.1:%d", execPort),
		ResourceAddr: fmt.Sprintf("127.0.0.1:%d", resPort),
	}

	if err := probeBothLive(ctx, handle.ExecutorAddr, handle.ResourceAddr); err != nil {
		e.forceRemove(ctx, containerID)
		return nil, ipyerr.New(ipyerr.ContainerController, "Start", ipyerr.Timeout, err)
	}

	return handle, nil
}

func (e *Engine) create(ctx context.Context, d ctypes.Descriptor, execPort, resPort int) (string, error) {
	opts := dockerflags.CreateContainer{
		NetworkOptions: dockerflags.NetworkOptions{
			Publish: []string{
				fmt.Sprintf("%d:%d", execPort, execPort),
				fmt.Sprintf("%d:%d", resPort, resPort),
			},
			Network: d.Network,
		},
		ResourceOptions: dockerflags.ResourceOptions{
			CPUs:    d.CPUs,
			Memory:  d.MemoryInBytes,
			EnvFile: d.EnvFile,
		},
		ManagementOptions: dockerflags.ManagementOptions{
			Detach: true,
		},
	}
	for _, m := range d.Mounts {
		v := m.HostPath + ":" + m.ContainerPath
		if m.ReadOnly {
			v += ":ro"
		}
		opts.Volume = append(opts.Volume, v)
	}
	for k, v := range d.Env {
		opts.Env = append(opts.Env, fmt.Sprintf("%s=%s", k, v))
	}

	args := append([]string{"create"}, dockerflags.ToArgs(opts)...)
	args = append(args, d.Image)

	cmd := exec.CommandContext(ctx, e.Bin, args...)
	slog.InfoContext(ctx, "Engine.create", "cmd", strings.Join(cmd.Args, " "))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("container create: %w: %s", err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

func (e *Engine) startContainer(ctx context.Context, containerID string) error {
	cmd := exec.CommandContext(ctx, e.Bin, "start", containerID)
	slog.InfoContext(ctx, "Engine.startContainer", "cmd", strings.Join(cmd.Args, " "))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("container start: %w: %s", err, string(out))
	}
	return nil
}

// Stop force-removes the container, tolerating "already gone".
func (e *Engine) Stop(ctx context.Context, containerID string) error {
	slog.InfoContext(ctx, "Engine.Stop", "containerID", containerID)
	cmd := exec.CommandContext(ctx, e.Bin, "stop", containerID)
	if out, err := cmd.CombinedOutput(); err != nil && !strings.Contains(string(out), "No such container") {
		return ipyerr.New(ipyerr.ContainerController, "Stop", ipyerr.Provisioning, fmt.Errorf("%w: %s", err, string(out)))
	}
	return e.forceRemove(ctx, containerID)
}

func (e *Engine) forceRemove(ctx context.Context, containerID string) error {
	cmd := exec.CommandContext(ctx, e.Bin, "rm", "--force", containerID)
	out, err := cmd.CombinedOutput()
	if err != nil && !strings.Contains(string(out), "No such container") {
		return fmt.Errorf("container rm: %w: %s", err, string(out))
	}
	return nil
}

// Inspect returns the engine's inspect output for containerID.
func (e *Engine) Inspect(ctx context.Context, containerID string) (*ctypes.Inspected, error) {
	cmd := exec.CommandContext(ctx, e.Bin, "inspect", containerID)
	out, err := cmd.Output()
	if err != nil {
		return nil, ipyerr.New(ipyerr.ContainerController, "Inspect", ipyerr.Connection, err)
	}
	var all []ctypes.Inspected
	if err := json.Unmarshal(out, &all); err != nil {
		return nil, ipyerr.New(ipyerr.ContainerController, "Inspect", ipyerr.Protocol, err)
	}
	if len(all) == 0 {
		return nil, ipyerr.New(ipyerr.ContainerController, "Inspect", ipyerr.Provisioning, fmt.Errorf("no such container: %s", containerID))
	}
	return &all[0], nil
}

// Logs returns an unstarted command that prints the container's log
// output (following it when follow is set); the caller wires its output
// and runs it.
func (e *Engine) Logs(ctx context.Context, containerID string, follow bool) (*exec.Cmd, error) {
	opts := dockerflags.LogsOptions{Follow: follow}
	args := append([]string{"logs"}, dockerflags.ToArgs(opts)...)
	args = append(args, containerID)
	cmd := exec.CommandContext(ctx, e.Bin, args...)
	return cmd, nil
}

// ListImages lists images present in the local engine store.
func (e *Engine) ListImages(ctx context.Context) ([]ctypes.ImageEntry, error) {
	cmd := exec.CommandContext(ctx, e.Bin, "image", "ls", "--format", "json")
	out, err := cmd.Output()
	if err != nil {
		return nil, ipyerr.New(ipyerr.ContainerController, "ListImages", ipyerr.Connection, err)
	}
	var entries []ctypes.ImageEntry
	dec := json.NewDecoder(strings.NewReader(string(out)))
	for dec.More() {
		var e ctypes.ImageEntry
		if err := dec.Decode(&e); err != nil {
			return nil, ipyerr.New(ipyerr.ContainerController, "ListImages", ipyerr.Protocol, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

const defaultLivenessTimeout = 30 * time.Second
