package containerengine

import (
	"strings"
	"testing"

	"github.com/i-dream-of-ai/ipybox/containerengine/ctypes"
)

func TestRenderFirewallScriptDefaultDenyPlusAllowList(t *testing.T) {
	script := renderFirewallScript([]ctypes.AllowEntry{
		{Kind: ctypes.AllowCIDR, Value: "10.0.0.0/8"},
		{Kind: ctypes.AllowDomain, Value: "pypi.org"},
	})

	if !strings.Contains(script, "iptables -P OUTPUT DROP") {
		t.Fatal("expected default-deny policy")
	}
	if !strings.Contains(script, "10.0.0.0/8") {
		t.Fatal("expected CIDR allow rule")
	}
	if !strings.Contains(script, "getent hosts pypi.org") {
		t.Fatal("expected domain resolution for domain allow rule")
	}
}

func TestRenderFirewallScriptEmptyAllowListStillDenies(t *testing.T) {
	script := renderFirewallScript(nil)
	if !strings.Contains(script, "DROP") {
		t.Fatal("expected default-deny even with an empty allow list")
	}
}
