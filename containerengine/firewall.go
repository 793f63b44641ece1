package containerengine

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/i-dream-of-ai/ipybox/containerengine/ctypes"
	"github.com/i-dream-of-ai/ipybox/ipyerr"
)

// StartupHook runs once, immediately after a container is started, before
// it is handed to the caller. Mirrors the teacher's ContainerHook
// interface from box.go, generalized to a single Name/Run pair.
type StartupHook interface {
	Name() string
	Run(ctx context.Context, bin string, handle *ctypes.Handle) error
}

// FirewallHook installs an egress allow-list inside the container via a
// privileged in-container script. It returns ipyerr.UnsupportedMode when
// the container's init process runs as root, since the allow-list script
// relies on dropping a non-root iptables-owning user's other traffic.
type FirewallHook struct {
	AllowList []ctypes.AllowEntry
}

func (h *FirewallHook) Name() string { return "install-firewall" }

func (h *FirewallHook) Run(ctx context.Context, bin string, handle *ctypes.Handle) error {
	if len(h.AllowList) == 0 {
		return nil
	}
	if out, err := exec.CommandContext(ctx, bin, "exec", handle.ContainerID, "id", "-u").Output(); err == nil && strings.TrimSpace(string(out)) == "0" {
		return ipyerr.New(ipyerr.ContainerController, "InstallFirewall", ipyerr.UnsupportedMode, fmt.Errorf("container runs as root"))
	}
	script := renderFirewallScript(h.AllowList)
	cmd := exec.CommandContext(ctx, bin, "exec", handle.ContainerID, "sh", "-c", script)
	slog.InfoContext(ctx, "FirewallHook.Run", "container", handle.ContainerID)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "Operation not permitted") {
			return ipyerr.New(ipyerr.ContainerController, "InstallFirewall", ipyerr.UnsupportedMode, err)
		}
		return ipyerr.New(ipyerr.ContainerController, "InstallFirewall", ipyerr.Provisioning, fmt.Errorf("%w: %s", err, string(out)))
	}
	return nil
}

func renderFirewallScript(entries []ctypes.AllowEntry) string {
	var b strings.Builder
	b.WriteString("iptables -P OUTPUT DROP\n")
	b.WriteString("iptables -A OUTPUT -o lo -j ACCEPT\n")
	for _, e := range entries {
		switch e.Kind {
		case ctypes.AllowIP, ctypes.AllowCIDR:
			fmt.Fprintf(&b, "iptables -A OUTPUT -d %s -j ACCEPT\n", e.Value)
		case ctypes.AllowDomain:
			fmt.Fprintf(&b, "iptables -A OUTPUT -d $(getent hosts %s | awk '{print $1}') -j ACCEPT\n", e.Value)
		}
	}
	return b.String()
}

// InstallFirewall runs a FirewallHook against the given handle.
func (e *Engine) InstallFirewall(ctx context.Context, handle *ctypes.Handle, allowList []ctypes.AllowEntry) error {
	hook := &FirewallHook{AllowList: allowList}
	return hook.Run(ctx, e.Bin, handle)
}
