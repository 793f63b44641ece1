package containerengine

import (
	"bytes"
	"strings"
	"testing"
)

// TestExecNonTerminalPassthrough exercises the non-pty branch of Exec: a
// strings.Reader stdin isn't an *os.File, so Exec skips the pty/raw-mode
// path entirely and just runs the command with stdio wired directly.
// The pty/raw-terminal branch needs a real terminal to drive and isn't
// exercised here.
func TestExecNonTerminalPassthrough(t *testing.T) {
	e := &Engine{Bin: "echo"}

	var stdout, stderr bytes.Buffer
	err := e.Exec("my-container", "hello", []string{"world"}, strings.NewReader(""), &stdout, &stderr)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}

	got := stdout.String()
	for _, want := range []string{"exec", "-i", "my-container", "hello", "world"} {
		if !strings.Contains(got, want) {
			t.Fatalf("stdout %q missing %q", got, want)
		}
	}
}
