// Package sandbox owns the host-side nesting of container, session, and
// execution lifecycles: Box is one provisioned sandbox (teacher's Box,
// generalized to the container-engine/kernel/resource stack), and
// Controller (teacher's Boxer) creates, registers, and releases them.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/i-dream-of-ai/ipybox/containerengine/ctypes"
	"github.com/i-dream-of-ai/ipybox/kernel"
	"github.com/i-dream-of-ai/ipybox/resource"
)

// Box is the connection between one provisioned container and the C2/C3
// clients that talk to it. Unlike the teacher's Box (one SSH port into a
// dev-workspace clone), a Box here maps two ports: the kernel gateway
// (C2) and the resource server (C4).
type Box struct {
	ID            string
	ContainerID   string
	ImageName     string
	ExecutorAddr  string
	ResourceAddr  string
	EnvFile       string
	// EnvFileError is non-empty when the fsnotify watch on EnvFile most
	// recently observed it missing or unreadable. In-memory only: it is set
	// only in the process whose Controller created the box and runs the
	// watch, and it is shown in sandbox listings. KernelSession and
	// ResourceClient do not consult it.
	EnvFileError string
	Mounts       []ctypes.BindMount

	mu             sync.Mutex
	kernelSessions map[string]*kernel.Session
}

// KernelSession opens (or returns the cached) kernel session with the
// given name against this Box's executor address. Sessions are released
// via their own Close or CloseSessions, never garbage-collected.
func (b *Box) KernelSession(ctx context.Context, name string) (*kernel.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.kernelSessions == nil {
		b.kernelSessions = map[string]*kernel.Session{}
	}
	if s, ok := b.kernelSessions[name]; ok {
		return s, nil
	}
	s, err := kernel.Open(ctx, "http://"+b.ExecutorAddr)
	if err != nil {
		return nil, fmt.Errorf("open kernel session %q for box %s: %w", name, b.ID, err)
	}
	b.kernelSessions[name] = s
	return s, nil
}

// ResourceClient returns a resource.Client bound to this Box's resource
// server address.
func (b *Box) ResourceClient() *resource.Client {
	return resource.NewClient("http://" + b.ResourceAddr)
}

// CloseSessions releases every kernel session opened against this Box.
func (b *Box) CloseSessions(ctx context.Context) error {
	b.mu.Lock()
	sessions := b.kernelSessions
	b.kernelSessions = nil
	b.mu.Unlock()

	var errs []error
	for name, s := range sessions {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session %q: %w", name, err))
		}
	}
	if len(errs) > 0 {
		slog.ErrorContext(ctx, "Box.CloseSessions encountered errors", "box", b.ID, "errors", errs)
		return errs[0]
	}
	return nil
}

func (b *Box) setEnvFileError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.EnvFileError = ""
		return
	}
	b.EnvFileError = err.Error()
}
