package toolgen

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

// TestGeneratedStubActuallyExecutes renders a stub module the way
// Generate would, drops it next to the runtime bridge under a real
// filesystem, and imports + calls it from an actual python3 interpreter
// with IPYBOX_TOOLRUNNER_BIN pointed at a fake toolrunner that echoes a
// canned result. This is the one test in the package that proves the
// generated module is importable and callable, not just that its source
// is well-formed: toolgen/generate_test.go checks the rendered text, this
// checks that the text, once written to disk, actually runs.
func TestGeneratedStubActuallyExecutes(t *testing.T) {
	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not available in this environment")
	}

	dir := t.TempDir()
	g := NewGenerator(afero.NewOsFs(), dir)

	fakeRunner := filepath.Join(dir, "fake-toolrunner.sh")
	script := "#!/bin/sh\ncat > /dev/null\necho '{\"result\":\"pong\"}'\n"
	if err := os.WriteFile(fakeRunner, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	mod := stubModule{
		ServerID:         "echoserver",
		ServerConfigJSON: `{"transport":"stdio","command":"true"}`,
		Tools: []stubTool{
			{Name: "echo_tool", Description: "echoes", Record: paramRecord{Open: true}},
		},
	}
	source, err := renderStubModule(mod)
	if err != nil {
		t.Fatalf("renderStubModule: %v", err)
	}
	if err := g.ensureRuntimeBridge(); err != nil {
		t.Fatalf("ensureRuntimeBridge: %v", err)
	}
	if err := g.writeAtomic("echoserver.py", []byte(source)); err != nil {
		t.Fatalf("writeAtomic: %v", err)
	}

	quotedDir, err := json.Marshal(dir)
	if err != nil {
		t.Fatal(err)
	}
	pyScript := "import asyncio, sys\n" +
		"sys.path.insert(0, " + string(quotedDir) + ")\n" +
		"from ipybox.echoserver import echo_tool\n" +
		"print(asyncio.run(echo_tool(message=\"hi\")))\n"

	cmd := exec.Command(python, "-c", pyScript)
	cmd.Env = append(os.Environ(), "IPYBOX_TOOLRUNNER_BIN="+fakeRunner)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("python exec of generated stub failed: %v\n%s", err, out)
	}
	if got := string(out); got != "pong\n" {
		t.Fatalf("stub call output = %q, want %q", got, "pong\n")
	}
}
