// Command ipyboxctl is the CLI entrypoint wiring the container controller
// (C1), kernel sessions (C2), resource transfer (C3/C4), and tool-stub
// generation (C5/C6) together end to end. Grounded on the teacher's
// cmd/sand/main.go: kong.Parse + kong.Configuration, a JSON-handler slog
// logger written to a rotated log file, and a markdown doc subcommand.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
	kongcompletion "github.com/jotaen/kong-completion"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/i-dream-of-ai/ipybox/containerengine"
	"github.com/i-dream-of-ai/ipybox/sandbox"
	"github.com/i-dream-of-ai/ipybox/tracing"
)

// Context carries shared, process-lifetime state into every command's Run.
type Context struct {
	AppRoot    string
	LogFile    string
	LogLevel   string
	EngineBin  string
	controller *sandbox.Controller
	kongCtx    *kong.Context
}

type CLI struct {
	AppRoot   string `default:"" placeholder:"<app-root-dir>" help:"root directory for the sandbox registry and host key. Defaults to ~/.ipybox."`
	EngineBin string `default:"docker" placeholder:"<docker|podman>" help:"container engine binary to shell out to"`
	LogFile   string `default:"" placeholder:"<log-file-path>" help:"rotated log file path (leave empty for a random tmp/ path)"`
	LogLevel  string `default:"info" placeholder:"<debug|info|warn|error>" help:"the logging level (debug, info, warn, error)"`
	OTLPAddr  string `default:"" name:"otlp-endpoint" placeholder:"<host:port>" help:"OTLP/gRPC collector endpoint for kernel and resource client spans; tracing is a no-op when unset"`

	Create     CreateCmd     `cmd:"" help:"provision a new sandbox container"`
	Ls         LsCmd         `cmd:"" help:"list registered sandboxes"`
	Rm         RmCmd         `cmd:"" help:"destroy a sandbox and remove its registration"`
	Exec       ExecCmd       `cmd:"" help:"execute code in a sandbox's kernel session"`
	Shell      ShellCmd      `cmd:"" help:"exec straight into a sandbox's container (debug path, bypasses the kernel gateway)"`
	Upload     UploadCmd     `cmd:"" help:"upload a file into a sandbox"`
	Download   DownloadCmd   `cmd:"" help:"download a file from a sandbox"`
	ToolsGen   ToolsGenCmd   `cmd:"" name:"tools-generate" help:"generate tool-client stubs for a configured tool server"`
	ToolsFetch ToolsFetchCmd `cmd:"" name:"tools-fetch" help:"fetch previously generated tool-client stubs"`
	Doc        DocCmd        `cmd:"" help:"print complete command help formatted as markdown"`
	Version    VersionCmd    `cmd:"" help:"print version information about this command"`
}

func (c *CLI) initSlog() *lumberjack.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logFile := c.LogFile
	if logFile == "" {
		f, err := os.CreateTemp("", "ipyboxctl-log")
		if err != nil {
			panic(err)
		}
		logFile = f.Name()
		f.Close()
	} else if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		panic(err)
	}

	rotated := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(rotated, &slog.HandlerOptions{Level: level})))
	slog.Info("slog initialized", "logFile", logFile)
	return rotated
}

const description = `Manage stateful Python execution sandboxes.

Each sandbox is a container running a kernel gateway (execution) and a
resource server (file transfer and tool-stub generation).`

func defaultAppRoot() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	root := filepath.Join(homeDir, ".ipybox")
	if err := os.MkdirAll(root, 0o750); err != nil {
		return "", fmt.Errorf("create app root %s: %w", root, err)
	}
	return root, nil
}

func main() {
	var cli CLI

	parser := kong.Must(&cli,
		kong.Configuration(kongyaml.Loader, ".ipyboxctl.yaml", "~/.ipyboxctl.yaml"),
		kong.Description(description))

	kongcompletion.Register(parser)

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	rotated := cli.initSlog()
	defer rotated.Close()

	shutdownTracing, err := tracing.Setup(context.Background(), cli.OTLPAddr, "ipyboxctl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure tracing: %v\n", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	appRoot := cli.AppRoot
	if appRoot == "" {
		appRoot, err = defaultAppRoot()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	var controller *sandbox.Controller
	if kctx.Command() != "doc" && kctx.Command() != "version" && kctx.Command() != "completion" {
		engine := containerengine.NewEngine(cli.EngineBin)
		controller, err = sandbox.NewController(appRoot, engine)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize sandbox controller: %v\n", err)
			os.Exit(1)
		}
		defer controller.Close()
	}

	err = kctx.Run(&Context{
		AppRoot:    appRoot,
		LogFile:    cli.LogFile,
		LogLevel:   cli.LogLevel,
		EngineBin:  cli.EngineBin,
		controller: controller,
		kongCtx:    kctx,
	})
	kctx.FatalIfErrorf(err)
}
