package kernel

import (
	"encoding/json"
	"testing"
)

func TestIsIdleForMatchesStatusIdleAndParent(t *testing.T) {
	env := Envelope{
		Header:       Header{Type: "status"},
		ParentHeader: ParentHeader{ID: "exec-1"},
		Content:      json.RawMessage(`{"execution_state":"idle"}`),
	}
	if !isIdleFor(env, "exec-1") {
		t.Fatal("expected idle match")
	}
	if isIdleFor(env, "exec-2") {
		t.Fatal("should not match a different execution id")
	}
}

func TestIsIdleForIgnoresNonStatusOrBusy(t *testing.T) {
	busy := Envelope{
		Header:       Header{Type: "status"},
		ParentHeader: ParentHeader{ID: "exec-1"},
		Content:      json.RawMessage(`{"execution_state":"busy"}`),
	}
	if isIdleFor(busy, "exec-1") {
		t.Fatal("busy status should not match idle")
	}

	stream := Envelope{
		Header:       Header{Type: "stream"},
		ParentHeader: ParentHeader{ID: "exec-1"},
		Content:      json.RawMessage(`{}`),
	}
	if isIdleFor(stream, "exec-1") {
		t.Fatal("non-status message types should never match idle")
	}
}

func TestIsIdleForTolerantOfMalformedContent(t *testing.T) {
	env := Envelope{
		Header:       Header{Type: "status"},
		ParentHeader: ParentHeader{ID: "exec-1"},
		Content:      json.RawMessage(`not json`),
	}
	if isIdleFor(env, "exec-1") {
		t.Fatal("malformed content should not panic or match")
	}
}
