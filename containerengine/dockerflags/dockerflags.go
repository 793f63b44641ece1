// Package dockerflags defines the flag structs passed to the container
// engine CLI (docker by default) and the reflection-based builder that
// turns them into a flat argument slice.
package dockerflags

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// CreateContainer is the flagset for `docker create`.
type CreateContainer struct {
	NetworkOptions
	ResourceOptions
	ManagementOptions
}

// NetworkOptions are the port-publishing and network flags.
type NetworkOptions struct {
	// Publish maps a host port to a container port, "hostPort:containerPort".
	Publish []string `flag:"--publish"`
	// Network attaches the container to a named network.
	Network string `flag:"--network"`
}

// ResourceOptions are the CPU/memory/mount flags.
type ResourceOptions struct {
	// CPUs limits the number of CPUs available to the container.
	CPUs int `flag:"--cpus"`
	// Memory limits memory in bytes.
	Memory int64 `flag:"--memory"`
	// Volume binds a host path into the container, "host:container[:ro]".
	Volume []string `flag:"--volume"`
	// EnvFile points at a file of KEY=VALUE lines to load into the container.
	EnvFile string `flag:"--env-file"`
}

// ManagementOptions are labeling/naming/env flags.
type ManagementOptions struct {
	// Name assigns a name to the container.
	Name string `flag:"--name"`
	// Env sets an individual environment variable, "KEY=VALUE".
	Env []string `flag:"--env"`
	// Label attaches a label, "key=value".
	Label map[string]string `flag:"--label"`
	// Detach runs the container in the background.
	Detach bool `flag:"--detach"`
}

// StartContainer is the flagset for `docker start`.
type StartContainer struct {
	Attach bool `flag:"--attach"`
}

// StopContainer is the flagset for `docker stop`.
type StopContainer struct {
	// Time is the number of seconds to wait before killing the container.
	// 0 is a meaningful value here ("kill immediately"), so it's kept.
	Time int `flag:"--time,keepZero"`
}

// RemoveContainer is the flagset for `docker rm`.
type RemoveContainer struct {
	Force bool `flag:"--force"`
}

// ExecContainer is the flagset for `docker exec`.
type ExecContainer struct {
	Interactive bool `flag:"--interactive"`
	TTY         bool `flag:"--tty"`
}

// LogsOptions is the flagset for `docker logs`.
type LogsOptions struct {
	Follow bool   `flag:"--follow"`
	Tail   string `flag:"--tail"`
}

// ToArgs turns a flag struct into a flat CLI argument slice. Anonymous
// struct fields are flattened; fields tagged with ",keepZero" are emitted
// even when they hold their type's zero value.
func ToArgs[T any](s T) []string {
	var ret []string
	st := reflect.TypeOf(s)
	sv := reflect.ValueOf(s)
	if st.Kind() == reflect.Pointer {
		sv = reflect.Indirect(sv)
		st = sv.Type()
	}
	for i := range st.NumField() {
		field := st.Field(i)
		fv := sv.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			ret = append(ret, ToArgs(fv.Interface())...)
			continue
		}
		flagTag, ok := field.Tag.Lookup("flag")
		if !ok {
			continue
		}
		flagParts := strings.Split(flagTag, ",")
		flagName := flagParts[0]
		keepZero := len(flagParts) > 1 && strings.EqualFold(flagParts[1], "keepZero")

		v := reflect.ValueOf(fv.Interface())
		if !keepZero && v.IsZero() {
			continue
		}

		fieldKind := field.Type.Kind()
		switch fieldKind {
		case reflect.Array, reflect.Slice:
			for i := 0; i < fv.Len(); i++ {
				ret = append(ret, flagName, fmt.Sprintf("%v", fv.Index(i)))
			}
		case reflect.Map:
			m := v.Interface().(map[string]string)
			keys := slices.Sorted(maps.Keys(m))
			var pairs []string
			for _, k := range keys {
				pairs = append(pairs, fmt.Sprintf("%v=%v", k, m[k]))
			}
			if len(pairs) > 0 {
				ret = append(ret, flagName, strings.Join(pairs, ","))
			}
		case reflect.Bool:
			ret = append(ret, flagName)
		default:
			ret = append(ret, flagName, fmt.Sprintf("%v", fv.Interface()))
		}
	}
	return ret
}
