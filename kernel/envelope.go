package kernel

import "encoding/json"

// Header is the header/parent_header shape of the kernel gateway wire
// protocol: every message carries its own id and type, and (when it's a
// reply) the id of the message it answers.
type Header struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ParentHeader identifies the request a message is replying to.
type ParentHeader struct {
	ID string `json:"id"`
}

// Envelope is a single message exchanged over the kernel gateway's
// channel socket. Content is left raw and decoded lazily once Header.Type
// is known, so unrecognized message types don't break demultiplexing.
type Envelope struct {
	Header       Header          `json:"header"`
	ParentHeader ParentHeader    `json:"parent_header"`
	Content      json.RawMessage `json:"content"`
}

// StatusContent is the Content of a "status" message.
type StatusContent struct {
	ExecutionState string `json:"execution_state"`
}

// StreamContent is the Content of a "stream" message (stdout/stderr text).
type StreamContent struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// DisplayDataContent is the Content of a "display_data" message.
type DisplayDataContent struct {
	Data map[string]json.RawMessage `json:"data"`
}

// ExecuteResultContent is the Content of an "execute_result" message.
type ExecuteResultContent struct {
	Data map[string]json.RawMessage `json:"data"`
}

// ErrorContent is the Content of an "error" message.
type ErrorContent struct {
	EName     string   `json:"ename"`
	EValue    string   `json:"evalue"`
	Traceback []string `json:"traceback"`
}

// ExecuteRequestContent is the Content sent to submit code for execution.
type ExecuteRequestContent struct {
	Code string `json:"code"`
}

// isIdleFor reports whether env is the idle-status marker for
// executionID: type=="status", content.execution_state=="idle", and the
// parent_header.id matches.
func isIdleFor(env Envelope, executionID string) bool {
	if env.Header.Type != "status" || env.ParentHeader.ID != executionID {
		return false
	}
	var sc StatusContent
	if err := json.Unmarshal(env.Content, &sc); err != nil {
		return false
	}
	return sc.ExecutionState == "idle"
}
