package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/i-dream-of-ai/ipybox/containerengine/ctypes"
	"github.com/i-dream-of-ai/ipybox/sandbox"
)

type CreateCmd struct {
	ID        string   `arg:"" optional:"" help:"sandbox ID; a name is generated when omitted"`
	Image     string   `required:"" help:"container image to run"`
	EnvFile   string   `help:"host path to a .env file hot-reloaded into the sandbox"`
	Mount     []string `help:"bind mount as host:container[:ro], repeatable"`
	Env       []string `help:"environment variable as KEY=VALUE, repeatable"`
	Allow     []string `help:"firewall allow-list entry as domain:VALUE, ip:VALUE, or cidr:VALUE, repeatable"`
	CPUs      int      `default:"0" help:"CPU limit; 0 means unlimited"`
	MemoryMiB int64    `default:"0" name:"memory-mib" help:"memory limit in MiB; 0 means unlimited"`
}

func (c *CreateCmd) Run(cctx *Context) error {
	ctx := context.Background()

	mounts, err := parseMounts(c.Mount)
	if err != nil {
		return err
	}
	env, err := parseEnv(c.Env)
	if err != nil {
		return err
	}
	allowList, err := parseAllowList(c.Allow)
	if err != nil {
		return err
	}

	box, err := cctx.controller.Create(ctx, sandbox.CreateBoxParams{
		ID:            c.ID,
		Image:         c.Image,
		EnvFile:       c.EnvFile,
		Mounts:        mounts,
		Env:           env,
		AllowList:     allowList,
		CPUs:          c.CPUs,
		MemoryInBytes: c.MemoryMiB * 1024 * 1024,
		OnProgress: func(p ctypes.PullProgress) {
			fmt.Fprintf(os.Stderr, "pull %s: %s\n", p.Layer, p.Status)
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s\t%s\t%s\n", box.ID, box.ExecutorAddr, box.ResourceAddr)
	return nil
}

func parseMounts(specs []string) ([]ctypes.BindMount, error) {
	mounts := make([]ctypes.BindMount, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid mount %q: want host:container[:ro]", spec)
		}
		m := ctypes.BindMount{HostPath: parts[0], ContainerPath: parts[1]}
		if len(parts) == 3 && parts[2] == "ro" {
			m.ReadOnly = true
		}
		mounts = append(mounts, m)
	}
	return mounts, nil
}

func parseEnv(specs []string) (map[string]string, error) {
	env := map[string]string{}
	for _, spec := range specs {
		k, v, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("invalid env %q: want KEY=VALUE", spec)
		}
		env[k] = v
	}
	return env, nil
}

func parseAllowList(specs []string) ([]ctypes.AllowEntry, error) {
	entries := make([]ctypes.AllowEntry, 0, len(specs))
	for _, spec := range specs {
		kind, value, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("invalid allow entry %q: want kind:value", spec)
		}
		var k ctypes.AllowKind
		switch kind {
		case "domain":
			k = ctypes.AllowDomain
		case "ip":
			k = ctypes.AllowIP
		case "cidr":
			k = ctypes.AllowCIDR
		default:
			return nil, fmt.Errorf("invalid allow kind %q: want domain, ip, or cidr", kind)
		}
		entries = append(entries, ctypes.AllowEntry{Kind: k, Value: value})
	}
	return entries, nil
}
