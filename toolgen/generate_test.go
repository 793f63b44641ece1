package toolgen

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestRenderStubModuleTypedAndOpenTools(t *testing.T) {
	mod := stubModule{
		ServerID:         "search-server",
		ServerConfigJSON: `{"transport":"stdio","command":"search-mcp"}`,
		Tools: []stubTool{
			{
				Name:        "search",
				Description: "search the web",
				Record: paramRecord{
					Fields: []field{{Name: "query", PyType: "str", Required: true}},
				},
			},
			{
				Name:        "raw_call",
				Description: "passthrough call",
				Record:      paramRecord{Open: true},
			},
		},
	}
	src, err := renderStubModule(mod)
	if err != nil {
		t.Fatalf("renderStubModule: %v", err)
	}
	for _, want := range []string{
		"SERVER_ID = \"search-server\"",
		`SERVER_CONFIG = {"transport":"stdio","command":"search-mcp"}`,
		"from ipybox._toolrun import call_tool",
		"class SearchParams",
		"async def search(",
		"async def raw_call(**kwargs",
		"call_tool(SERVER_ID, SERVER_CONFIG,",
	} {
		if !strings.Contains(src, want) {
			t.Fatalf("rendered module missing %q:\n%s", want, src)
		}
	}
}

func TestGeneratorWriteAtomicOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := NewGenerator(fs, "/stubs")

	if err := g.writeAtomic("server.py", []byte("version-1")); err != nil {
		t.Fatalf("writeAtomic: %v", err)
	}
	if err := g.writeAtomic("server.py", []byte("version-2")); err != nil {
		t.Fatalf("writeAtomic (overwrite): %v", err)
	}
	got, err := afero.ReadFile(fs, "/stubs/ipybox/server.py")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "version-2" {
		t.Fatalf("got %q, want %q", got, "version-2")
	}
}

func TestGeneratorEnsureRuntimeBridgeWritesShim(t *testing.T) {
	fs := afero.NewMemMapFs()
	g := NewGenerator(fs, "/stubs")

	if err := g.ensureRuntimeBridge(); err != nil {
		t.Fatalf("ensureRuntimeBridge: %v", err)
	}

	exists, err := afero.Exists(fs, "/stubs/ipybox/__init__.py")
	if err != nil {
		t.Fatalf("Exists __init__.py: %v", err)
	}
	if !exists {
		t.Fatal("__init__.py was not written")
	}
	got, err := afero.ReadFile(fs, "/stubs/ipybox/_toolrun.py")
	if err != nil {
		t.Fatalf("ReadFile _toolrun.py: %v", err)
	}
	if !strings.Contains(string(got), "async def call_tool") {
		t.Fatalf("_toolrun.py missing call_tool:\n%s", got)
	}
}
