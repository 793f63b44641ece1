package toolgen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/i-dream-of-ai/ipybox/ipyerr"
)

// namespacePkg is the fixed Python package name every generated stub
// lives under: "<namespacePkg>.<serverID>", importable as a normal
// submodule once g.Dir itself is on sys.path. It also holds the
// runtime bridge (_toolrun.py) every stub imports to reach C6.
const namespacePkg = "ipybox"

// Generator materializes tool-client stub modules under Dir on FS.
// Generation is write-once per serverID: re-generation overwrites
// atomically by writing to a temp path and renaming over the target.
type Generator struct {
	FS  afero.Fs
	Dir string
}

// NewGenerator returns a Generator writing stub modules under dir on fs.
func NewGenerator(fs afero.Fs, dir string) *Generator {
	return &Generator{FS: fs, Dir: dir}
}

// Generate opens a short-lived toolrun session against the server
// described by cfgJSON, lists its tools, and renders one Python stub
// module named "<serverID>.py" under g.Dir's namespace package. It
// returns the generated tool names. cfgJSON is the wire (JSON) encoding
// of a ToolServerConfig, matching resource.Server's Generate hook
// signature; it is decoded, validated and re-encoded, and that normalized
// JSON (a valid Python literal for the string/map/slice fields
// ToolServerConfig has) is embedded into the stub module
// so call_tool can hand it back to the toolrunner helper at call time.
func (g *Generator) Generate(ctx context.Context, serverID string, cfgJSON json.RawMessage) ([]string, error) {
	var cfg ToolServerConfig
	if err := json.Unmarshal(cfgJSON, &cfg); err != nil {
		return nil, ipyerr.New(ipyerr.ToolClientGenerator, "Generate", ipyerr.Configuration, err)
	}
	cfg, err := cfg.validated()
	if err != nil {
		return nil, err
	}

	transport, err := cfg.Dial(ctx)
	if err != nil {
		return nil, ipyerr.New(ipyerr.ToolClientGenerator, "Generate", ipyerr.Connection, err)
	}
	defer transport.Close()

	tools, err := transport.ListTools(ctx)
	if err != nil {
		return nil, ipyerr.New(ipyerr.ToolClientGenerator, "Generate", ipyerr.Connection, err)
	}

	normalizedCfg, err := json.Marshal(cfg)
	if err != nil {
		return nil, ipyerr.New(ipyerr.ToolClientGenerator, "Generate", ipyerr.Execution, err)
	}

	mod := stubModule{ServerID: serverID, ServerConfigJSON: string(normalizedCfg)}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		rec, err := deriveParamRecord(tool)
		if err != nil {
			return nil, err
		}
		mod.Tools = append(mod.Tools, stubTool{
			Name:        tool.Name,
			Description: tool.Description,
			Record:      rec,
		})
		names = append(names, tool.Name)
	}

	source, err := renderStubModule(mod)
	if err != nil {
		return nil, ipyerr.New(ipyerr.ToolClientGenerator, "Generate", ipyerr.Execution, err)
	}

	if err := g.ensureRuntimeBridge(); err != nil {
		return nil, ipyerr.New(ipyerr.ToolClientGenerator, "Generate", ipyerr.Execution, err)
	}
	if err := g.writeAtomic(serverID+".py", []byte(source)); err != nil {
		return nil, ipyerr.New(ipyerr.ToolClientGenerator, "Generate", ipyerr.Execution, err)
	}
	return names, nil
}

// ensureRuntimeBridge (re)writes the namespace package's __init__.py and
// the _toolrun.py shim every generated stub imports. Both are static and
// identical across servers, so overwriting them on every Generate call is
// a no-op in practice but keeps a stale bridge from lingering after an
// upgrade.
func (g *Generator) ensureRuntimeBridge() error {
	if err := g.writeAtomic("__init__.py", []byte("")); err != nil {
		return err
	}
	return g.writeAtomic("_toolrun.py", []byte(toolrunBridgeSource))
}

// writeAtomic writes data to name under g.Dir/namespacePkg by writing to
// a sibling temp file and renaming it over the target, so a concurrent
// reader never observes a partially-written stub module.
func (g *Generator) writeAtomic(name string, data []byte) error {
	pkgDir := filepath.Join(g.Dir, namespacePkg)
	if err := g.FS.MkdirAll(pkgDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", pkgDir, err)
	}
	target := filepath.Join(pkgDir, name)
	tmp := target + ".tmp-" + fmt.Sprintf("%d", os.Getpid())
	if err := afero.WriteFile(g.FS, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := g.FS.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
