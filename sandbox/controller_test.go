package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/i-dream-of-ai/ipybox/containerengine"
	"github.com/i-dream-of-ai/ipybox/containerengine/ctypes"
)

// fakeResolver satisfies containerengine.ImageResolver without touching a
// real registry, so these tests never shell out to a container engine
// binary beyond the no-op commands recorded by a fake PATH in CI.
type fakeResolver struct{}

func (fakeResolver) EnsurePresent(ctx context.Context, bin, image string) (<-chan ctypes.PullProgress, error) {
	ch := make(chan ctypes.PullProgress)
	close(ch)
	return ch, nil
}

func TestControllerCreateGetDestroyRoundTrip(t *testing.T) {
	t.Skip("requires a real container engine binary; exercised in integration environments")

	appRoot := t.TempDir()
	engine := &containerengine.Engine{Bin: "docker", Registry: fakeResolver{}}
	c, err := NewController(appRoot, engine)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	defer c.Close()

	box, err := c.Create(context.Background(), CreateBoxParams{Image: "python:3.12-slim"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if box.ID == "" {
		t.Fatal("expected a generated ID")
	}
}

func TestNewControllerPersistsHostKey(t *testing.T) {
	appRoot := t.TempDir()
	engine := &containerengine.Engine{Bin: "docker", Registry: fakeResolver{}}

	c, err := NewController(appRoot, engine)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	defer c.Close()

	if _, err := ensureHostSigner(appRoot); err != nil {
		t.Fatalf("ensureHostSigner should reuse the persisted key: %v", err)
	}

	keyPath := filepath.Join(appRoot, hostKeyFilename)
	if _, statErr := os.Stat(keyPath); statErr != nil {
		t.Fatalf("expected host key file at %s: %v", keyPath, statErr)
	}
}

func TestCloneHostKeyPairCopiesBothFiles(t *testing.T) {
	appRoot := t.TempDir()
	if _, err := ensureHostSigner(appRoot); err != nil {
		t.Fatalf("ensureHostSigner: %v", err)
	}

	cloneDir := filepath.Join(t.TempDir(), "hostkeys")
	if err := cloneHostKeyPair(appRoot, cloneDir); err != nil {
		t.Fatalf("cloneHostKeyPair: %v", err)
	}

	for _, name := range []string{hostKeyFilename, hostKeyFilename + ".pub"} {
		want, err := os.ReadFile(filepath.Join(appRoot, name))
		if err != nil {
			t.Fatalf("read original %s: %v", name, err)
		}
		got, err := os.ReadFile(filepath.Join(cloneDir, name))
		if err != nil {
			t.Fatalf("read cloned %s: %v", name, err)
		}
		if string(got) != string(want) {
			t.Fatalf("cloned %s does not match original", name)
		}
	}
}
