// Package ipyerr defines the error taxonomy shared across every component
// of the sandbox: each error identifies the component that raised it, the
// operation that was running, and a Kind drawn from a closed set.
package ipyerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error into one of the categories every component
// reports against.
type Kind string

const (
	Configuration   Kind = "configuration"
	Provisioning    Kind = "provisioning"
	Connection      Kind = "connection"
	Execution       Kind = "execution"
	Timeout         Kind = "timeout"
	Protocol        Kind = "protocol"
	UnsupportedMode Kind = "unsupported_mode"

	// TransportFailed covers a toolrun transport (stdio/HTTP/SSE) failing
	// to start, dial, or keep its connection to a tool server alive.
	TransportFailed Kind = "transport_failed"
	// ProtocolFraming covers a malformed or unexpected MCP message on an
	// otherwise live transport.
	ProtocolFraming Kind = "protocol_framing"
	// ToolReported covers a tool server returning its own error result
	// for a CallTool invocation.
	ToolReported Kind = "tool_reported"
	// ConnectionLost covers a kernel session whose heartbeat probe has
	// failed past its retry limit, failing every execution still
	// pending or running on it.
	ConnectionLost Kind = "connection_lost"
)

// Component identifies which of the six components raised an Error.
type Component string

const (
	ContainerController Component = "C1"
	ExecutionClient     Component = "C2"
	ResourceClient      Component = "C3"
	ResourceServer      Component = "C4"
	ToolClientGenerator Component = "C5"
	ToolClientRuntime   Component = "C6"
)

// Error is the common error type returned by every component.
type Error struct {
	Kind      Kind
	Component Component
	Op        string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", e.Component, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s: %v", e.Component, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error, wrapping a cause when one is available.
func New(component Component, op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Component: component, Op: op, Err: err}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
