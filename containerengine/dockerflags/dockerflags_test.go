package dockerflags

import (
	"reflect"
	"testing"
)

func TestToArgsFlattensAnonymousFields(t *testing.T) {
	opts := CreateContainer{
		NetworkOptions: NetworkOptions{
			Publish: []string{"8080:8080", "8888:8888"},
			Network: "bridge",
		},
		ResourceOptions: ResourceOptions{
			CPUs:   2,
			Volume: []string{"/host:/container:ro"},
		},
		ManagementOptions: ManagementOptions{
			Name:   "sandbox-1",
			Label:  map[string]string{"b": "2", "a": "1"},
			Detach: true,
		},
	}

	got := ToArgs(opts)
	want := []string{
		"--publish", "8080:8080",
		"--publish", "8888:8888",
		"--network", "bridge",
		"--cpus", "2",
		"--volume", "/host:/container:ro",
		"--name", "sandbox-1",
		"--label", "a=1,b=2",
		"--detach",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ToArgs() = %#v, want %#v", got, want)
	}
}

func TestToArgsSkipsZeroValuesUnlessKeepZero(t *testing.T) {
	got := ToArgs(RemoveContainer{Force: false})
	if len(got) != 0 {
		t.Fatalf("expected no args for zero-value non-keepZero field, got %v", got)
	}

	got = ToArgs(StopContainer{Time: 0})
	want := []string{"--time", "0"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Time=0 is keepZero and should still be emitted, got %v want %v", got, want)
	}
}
