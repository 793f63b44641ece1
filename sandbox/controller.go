package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goombaio/namegenerator"

	"github.com/i-dream-of-ai/ipybox/containerengine"
	"github.com/i-dream-of-ai/ipybox/containerengine/ctypes"
	"github.com/i-dream-of-ai/ipybox/ipyerr"
	"github.com/i-dream-of-ai/ipybox/store"
)

// Controller owns the lifecycle of every Box: creation, registration in
// store, and guaranteed release on every exit path. Teacher's Boxer,
// generalized from a workspace-clone/SSH orchestrator to a container-
// engine/kernel/resource orchestrator.
type Controller struct {
	appRoot string
	engine  *containerengine.Engine
	store   *store.Store
	nameGen namegenerator.Generator

	mu    sync.Mutex
	boxes map[string]*Box
}

// NewController opens (or creates) the sandbox registry under appRoot and
// returns a ready Controller.
func NewController(appRoot string, engine *containerengine.Engine) (*Controller, error) {
	if err := os.MkdirAll(appRoot, 0o750); err != nil {
		return nil, fmt.Errorf("create app root %s: %w", appRoot, err)
	}

	st, err := store.Open(appRoot + "/ipybox.db")
	if err != nil {
		return nil, fmt.Errorf("open sandbox registry: %w", err)
	}

	if _, err := ensureHostSigner(appRoot); err != nil {
		st.Close()
		return nil, fmt.Errorf("ensure host signer: %w", err)
	}

	return &Controller{
		appRoot: appRoot,
		engine:  engine,
		store:   st,
		nameGen: namegenerator.NewNameGenerator(timeSeed()),
		boxes:   map[string]*Box{},
	}, nil
}

// Close closes the underlying registry. It does not tear down any boxes;
// call Destroy for each box first if that's desired.
func (c *Controller) Close() error {
	return c.store.Close()
}

// CreateBoxParams describes a new sandbox to provision.
type CreateBoxParams struct {
	// ID is the sandbox's name. A human-readable one is generated via
	// namegenerator when left empty.
	ID            string
	Image         string
	EnvFile       string
	Mounts        []ctypes.BindMount
	Env           map[string]string
	AllowList     []ctypes.AllowEntry
	CPUs          int
	MemoryInBytes int64
	// OnProgress, when set, receives every image-pull progress line
	// reported while the container's image is resolved.
	OnProgress func(ctypes.PullProgress)
}

// Create provisions a new container, registers it in store, and returns
// its Box. On any failure after the container is created, the container
// is torn down before returning the error (defer-based scoped
// acquisition, no GC-triggered finalization, per spec.md §9).
func (c *Controller) Create(ctx context.Context, p CreateBoxParams) (box *Box, err error) {
	id := p.ID
	if id == "" {
		id = c.nameGen.Generate()
	}
	slog.InfoContext(ctx, "Controller.Create", "id", id, "image", p.Image)

	hostKeyDir := filepath.Join(c.appRoot, "boxes", id, "hostkeys")
	if hkErr := cloneHostKeyPair(c.appRoot, hostKeyDir); hkErr != nil {
		return nil, ipyerr.New(ipyerr.ContainerController, "Create", ipyerr.Provisioning, hkErr)
	}
	mounts := append(p.Mounts, ctypes.BindMount{
		HostPath:      hostKeyDir,
		ContainerPath: "/etc/ipybox/hostkey",
		ReadOnly:      true,
	})

	descriptor := ctypes.Descriptor{
		Image:         p.Image,
		Mounts:        mounts,
		Env:           p.Env,
		EnvFile:       p.EnvFile,
		CPUs:          p.CPUs,
		MemoryInBytes: p.MemoryInBytes,
	}
	var handle *ctypes.Handle
	if p.OnProgress != nil {
		handle, err = c.engine.Start(ctx, descriptor, p.OnProgress)
	} else {
		handle, err = c.engine.Start(ctx, descriptor)
	}
	if err != nil {
		return nil, ipyerr.New(ipyerr.ContainerController, "Create", ipyerr.Provisioning, err)
	}
	defer func() {
		if err != nil {
			if stopErr := c.engine.Stop(ctx, handle.ContainerID); stopErr != nil {
				slog.ErrorContext(ctx, "Controller.Create cleanup after failure", "id", id, "error", stopErr)
			}
		}
	}()

	if len(p.AllowList) > 0 {
		if ferr := c.engine.InstallFirewall(ctx, handle, p.AllowList); ferr != nil {
			return nil, ferr
		}
	}

	b := &Box{
		ID:           id,
		ContainerID:  handle.ContainerID,
		ImageName:    p.Image,
		ExecutorAddr: handle.ExecutorAddr,
		ResourceAddr: handle.ResourceAddr,
		EnvFile:      p.EnvFile,
		Mounts:       mounts,
	}

	if saveErr := c.save(ctx, b); saveErr != nil {
		err = saveErr
		return nil, err
	}

	if _, watchErr := watchEnvFile(ctx, b); watchErr != nil {
		slog.ErrorContext(ctx, "Controller.Create watchEnvFile", "id", id, "error", watchErr)
	}

	c.mu.Lock()
	c.boxes[id] = b
	c.mu.Unlock()

	return b, nil
}

func (c *Controller) save(ctx context.Context, b *Box) error {
	return c.store.UpsertSandbox(ctx, store.UpsertSandboxParams{
		ID:           b.ID,
		ContainerID:  toNullString(b.ContainerID),
		ImageName:    b.ImageName,
		ExecutorAddr: toNullString(b.ExecutorAddr),
		ResourceAddr: toNullString(b.ResourceAddr),
		EnvFile:      toNullString(b.EnvFile),
	})
}

// Get returns the in-memory Box for id, or attaches to its persisted
// registration if it isn't already held in memory.
func (c *Controller) Get(ctx context.Context, id string) (*Box, error) {
	c.mu.Lock()
	if b, ok := c.boxes[id]; ok {
		c.mu.Unlock()
		return b, nil
	}
	c.mu.Unlock()

	row, err := c.store.GetSandbox(ctx, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sandbox %s: %w", id, err)
	}

	b := &Box{
		ID:           row.ID,
		ContainerID:  fromNullString(row.ContainerID),
		ImageName:    row.ImageName,
		ExecutorAddr: fromNullString(row.ExecutorAddr),
		ResourceAddr: fromNullString(row.ResourceAddr),
		EnvFile:      fromNullString(row.EnvFile),
	}
	c.mu.Lock()
	c.boxes[id] = b
	c.mu.Unlock()
	return b, nil
}

// List returns every registered sandbox.
func (c *Controller) List(ctx context.Context) ([]*Box, error) {
	rows, err := c.store.ListSandboxes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sandboxes: %w", err)
	}
	boxes := make([]*Box, 0, len(rows))
	for _, row := range rows {
		b, err := c.Get(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		boxes = append(boxes, b)
	}
	return boxes, nil
}

// Destroy closes every session on the Box, stops and removes its
// container, and deletes its registration. Guaranteed release: errors
// from the container teardown are logged but don't prevent the registry
// row from being removed.
func (c *Controller) Destroy(ctx context.Context, id string) error {
	slog.InfoContext(ctx, "Controller.Destroy", "id", id)

	b, err := c.Get(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "Controller.Destroy Get", "id", id, "error", err)
	}
	c.mu.Lock()
	delete(c.boxes, id)
	c.mu.Unlock()

	if b != nil {
		if err := b.CloseSessions(ctx); err != nil {
			slog.ErrorContext(ctx, "Controller.Destroy CloseSessions", "id", id, "error", err)
		}
		if b.ContainerID != "" {
			if err := c.engine.Stop(ctx, b.ContainerID); err != nil {
				slog.ErrorContext(ctx, "Controller.Destroy engine.Stop", "id", id, "error", err)
			}
		}
	}

	if err := c.store.DeleteSandbox(ctx, id); err != nil {
		return fmt.Errorf("delete sandbox %s from registry: %w", id, err)
	}
	return nil
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func fromNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func timeSeed() int64 {
	return time.Now().UTC().UnixNano()
}
