package sandbox

import "testing"

func TestSetEnvFileErrorClearsOnNil(t *testing.T) {
	b := &Box{ID: "test-box"}
	b.setEnvFileError(errBoom{})
	if b.EnvFileError == "" {
		t.Fatal("expected EnvFileError to be set")
	}
	b.setEnvFileError(nil)
	if b.EnvFileError != "" {
		t.Fatalf("expected EnvFileError to clear, got %q", b.EnvFileError)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestResourceClientUsesResourceAddr(t *testing.T) {
	b := &Box{ID: "test-box", ResourceAddr: "127.0.0.1:9000"}
	c := b.ResourceClient()
	if c.BaseURL != "http://127.0.0.1:9000" {
		t.Fatalf("BaseURL = %q", c.BaseURL)
	}
}
