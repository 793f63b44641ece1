package toolgen

import (
	"strings"
	"text/template"
)

// stubModuleTemplate renders one Python module per tool server: a typed
// parameter record and an async callable per tool, each delegating at call
// time, through the ipybox._toolrun bridge, to the in-container toolrunner
// binary with the module's server_id, embedded server config, and tool
// name. Per spec.md §4.4's invariant,
// calling a stub is equivalent to connect → list tools → invoke named
// tool with validated arguments → disconnect against the configured
// server. SERVER_CONFIG is rendered as raw JSON, which is also valid
// Python dict/list/string literal syntax for every field
// ToolServerConfig has (none are boolean, so true/false/null never
// appear).
var stubModuleTemplate = template.Must(template.New("stub").Funcs(template.FuncMap{
	"title": strings.Title,
}).Parse(`"""Generated tool-client stubs for server {{.ServerID}}.

Do not edit by hand; regenerate via the tool-client generator.
"""
from dataclasses import dataclass, field
from typing import Any

from ipybox._toolrun import call_tool


SERVER_ID = {{printf "%q" .ServerID}}
SERVER_CONFIG = {{.ServerConfigJSON}}
{{range .Tools}}

{{if .Record.Open}}
async def {{.Name}}(**kwargs: Any) -> Any:
    """{{.Description}}"""
    return await call_tool(SERVER_ID, SERVER_CONFIG, {{printf "%q" .Name}}, kwargs)
{{else}}
@dataclass
class {{.Name | title}}Params:
{{range .Record.Fields}}    {{.Name}}: {{.PyType}}{{if not .Required}} | None = None{{end}}
{{end}}

async def {{.Name}}(params: {{.Name | title}}Params) -> Any:
    """{{.Description}}"""
    return await call_tool(SERVER_ID, SERVER_CONFIG, {{printf "%q" .Name}}, params.__dict__)
{{end}}
{{end}}
`))

type stubTool struct {
	Name        string
	Description string
	Record      paramRecord
}

type stubModule struct {
	ServerID string
	// ServerConfigJSON is the generating ToolServerConfig, marshaled to
	// JSON and embedded as a literal dict so the stub can hand it back
	// to the toolrunner helper without a second round trip to C4.
	ServerConfigJSON string
	Tools            []stubTool
}

// toolrunBridgeSource is the static Python shim every generated stub
// package ships as ipybox/_toolrun.py. It shells out to the toolrunner
// binary baked into the sandbox image (cmd/toolrunner), which dials the
// tool server described by SERVER_CONFIG and performs the call — the
// actual C6 logic lives in Go; this is just the Python-side bridge to
// it, since generated code runs as plain IPython-kernel Python with no
// access to the host process.
const toolrunBridgeSource = `"""Bridges generated tool-client stubs to the host-compiled toolrunner.

Do not edit by hand.
"""
import asyncio
import json
import os

_TOOLRUNNER_BIN = os.environ.get("IPYBOX_TOOLRUNNER_BIN", "/usr/local/bin/ipybox-toolrunner")


async def call_tool(server_id: str, server_config: dict, tool: str, args: dict) -> object:
    request = json.dumps(
        {"server_id": server_id, "config": server_config, "tool": tool, "args": args}
    ).encode()

    proc = await asyncio.create_subprocess_exec(
        _TOOLRUNNER_BIN,
        stdin=asyncio.subprocess.PIPE,
        stdout=asyncio.subprocess.PIPE,
        stderr=asyncio.subprocess.PIPE,
    )
    stdout, stderr = await proc.communicate(request)
    if proc.returncode != 0:
        raise RuntimeError(
            f"ipybox-toolrunner exited {proc.returncode}: {stderr.decode(errors='replace').strip()}"
        )

    response = json.loads(stdout)
    if response.get("error"):
        raise RuntimeError(response["error"])
    return response.get("result")
`

func renderStubModule(m stubModule) (string, error) {
	var b strings.Builder
	if err := stubModuleTemplate.Execute(&b, m); err != nil {
		return "", err
	}
	return b.String(), nil
}
