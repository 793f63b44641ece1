// Package kernel is the Execution Client: it opens a kernel on the
// gateway, streams code to it over the channels websocket, and
// demultiplexes the reply stream into per-execution results. The
// single-writer / single-demultiplexer discipline mirrors the teacher's
// Mux, which is the only goroutine allowed to own its listener's state.
package kernel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/i-dream-of-ai/ipybox/ipyerr"
	"github.com/i-dream-of-ai/ipybox/tracing"
)

// heartbeatInterval is how often the session probes the gateway for
// liveness between executions. heartbeatFailureLimit is the number of
// consecutive failed probes before the session is declared disconnected.
// Both are vars, not consts, so tests can shrink them instead of waiting
// out the production cadence.
var (
	heartbeatInterval     = 5 * time.Second
	heartbeatFailureLimit = 3
)

// State is the lifecycle state of a single Execution.
type State string

const (
	Pending      State = "pending"
	Running      State = "running"
	Completed    State = "completed"
	Failed       State = "failed"
	TimedOut     State = "timed_out"
	Disconnected State = "disconnected"
)

// Execution accumulates the output of one execute_request until its idle
// marker arrives.
type Execution struct {
	ID     string
	State  State
	Text   []string
	Images [][]byte
	Err    *ErrorContent

	done chan struct{}

	// streamCh, when non-nil, receives every text chunk dispatched for
	// this execution after Stream was called. Guarded by Session.mu.
	streamCh chan string
}

// Result is a point-in-time snapshot of an Execution's accumulated output.
type Result struct {
	State  State
	Text   string
	Images [][]byte
	Err    *ErrorContent
}

// Session owns one kernel on the gateway and the websocket channel used to
// submit code and stream replies.
type Session struct {
	baseURL  string
	kernelID string
	client   *http.Client
	conn     *websocket.Conn

	writeMu sync.Mutex // single writer, per spec's channel discipline

	mu         sync.Mutex
	executions map[string]*Execution

	closeOnce sync.Once
	closed    chan struct{}
}

// Open creates a kernel on the gateway at baseURL and opens its channels
// websocket.
func Open(ctx context.Context, baseURL string) (session *Session, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "kernel.Open", trace.WithAttributes(
		attribute.String("kernel.gateway_url", baseURL)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	client := &http.Client{Timeout: 30 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/kernels", nil)
	if err != nil {
		return nil, ipyerr.New(ipyerr.ExecutionClient, "Open", ipyerr.Configuration, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, ipyerr.New(ipyerr.ExecutionClient, "Open", ipyerr.Connection, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, ipyerr.New(ipyerr.ExecutionClient, "Open", ipyerr.Connection, fmt.Errorf("gateway returned %s", resp.Status))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, ipyerr.New(ipyerr.ExecutionClient, "Open", ipyerr.Protocol, err)
	}

	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/api/kernels/" + created.ID + "/channels"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, ipyerr.New(ipyerr.ExecutionClient, "Open", ipyerr.Connection, err)
	}

	s := &Session{
		baseURL:    baseURL,
		kernelID:   created.ID,
		client:     client,
		conn:       conn,
		executions: make(map[string]*Execution),
		closed:     make(chan struct{}),
	}
	go s.readLoop()
	go s.heartbeatLoop()
	return s, nil
}

// Submit sends code to the kernel and returns the Execution tracking its
// reply stream. Callers observe completion via Stream or Result.
func (s *Session) Submit(ctx context.Context, code string) (*Execution, error) {
	id := uuid.NewString()
	exec := &Execution{ID: id, State: Pending, done: make(chan struct{})}

	s.mu.Lock()
	s.executions[id] = exec
	s.mu.Unlock()

	env := Envelope{
		Header:  Header{ID: id, Type: "execute_request"},
		Content: mustMarshal(ExecuteRequestContent{Code: code}),
	}

	s.writeMu.Lock()
	err := s.conn.WriteJSON(env)
	s.writeMu.Unlock()
	if err != nil {
		return nil, ipyerr.New(ipyerr.ExecutionClient, "Submit", ipyerr.Connection, err)
	}

	exec.State = Running
	return exec, nil
}

// Execute submits code and blocks until it completes, times out, or ctx
// is cancelled. On timeout it sends one interrupt and returns whatever
// output had accumulated.
func (s *Session) Execute(ctx context.Context, code string) (result Result, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "kernel.Execute", trace.WithAttributes(
		attribute.String("kernel.id", s.kernelID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	exec, err := s.Submit(ctx, code)
	if err != nil {
		return Result{}, err
	}

	select {
	case <-exec.done:
		return s.Result(exec.ID), nil
	case <-ctx.Done():
		_ = s.Interrupt(context.Background())
		select {
		case <-exec.done:
		case <-time.After(2 * time.Second):
		}
		exec.State = TimedOut
		return s.Result(exec.ID), ipyerr.New(ipyerr.ExecutionClient, "Execute", ipyerr.Timeout, ctx.Err())
	}
}

// Result returns the current snapshot for an execution id.
func (s *Session) Result(id string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.executions[id]
	if !ok {
		return Result{}
	}
	return Result{
		State:  exec.State,
		Text:   strings.Join(exec.Text, ""),
		Images: exec.Images,
		Err:    exec.Err,
	}
}

// Stream returns a channel of text chunks dispatched for exec from the
// point Stream is called, closed when the execution reaches its idle
// marker, times out, or ctx is cancelled. On ctx cancellation it sends
// one interrupt and drains for a grace period before closing, the same
// timeout-then-drain shape Execute uses for its blocking counterpart.
// Text seen before Stream is called (e.g. by a prior Result snapshot)
// is not replayed; callers that need the full transcript use Result.
func (s *Session) Stream(ctx context.Context, exec *Execution) <-chan string {
	out := make(chan string, 16)

	s.mu.Lock()
	exec.streamCh = out
	s.mu.Unlock()

	go func() {
		select {
		case <-exec.done:
		case <-ctx.Done():
			_ = s.Interrupt(context.Background())
			select {
			case <-exec.done:
			case <-time.After(2 * time.Second):
			}
			s.mu.Lock()
			if exec.State == Running {
				exec.State = TimedOut
			}
			s.mu.Unlock()
		}
		s.mu.Lock()
		exec.streamCh = nil
		s.mu.Unlock()
		close(out)
	}()

	return out
}

// Interrupt asks the gateway to interrupt the kernel's currently running
// execution.
func (s *Session) Interrupt(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/kernels/"+s.kernelID+"/interrupt", nil)
	if err != nil {
		return ipyerr.New(ipyerr.ExecutionClient, "Interrupt", ipyerr.Configuration, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return ipyerr.New(ipyerr.ExecutionClient, "Interrupt", ipyerr.Connection, err)
	}
	defer resp.Body.Close()
	return nil
}

// Close tears down the channels websocket and deletes the kernel.
func (s *Session) Close(ctx context.Context) error {
	var closeErr error
	s.closeOnce.Do(func() {
		close(s.closed)
		closeErr = s.conn.Close()
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+"/api/kernels/"+s.kernelID, nil)
		if err != nil {
			return
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return
		}
		resp.Body.Close()
	})
	return closeErr
}

// heartbeatLoop periodically probes the gateway for liveness. After
// heartbeatFailureLimit consecutive failed probes it declares the
// session disconnected and fails every execution still in flight with
// ipyerr.ConnectionLost, then exits; readLoop's own connection error
// will independently unwind the websocket side.
func (s *Session) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), heartbeatInterval)
			err := s.probe(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			slog.Warn("kernel heartbeat probe failed", "kernel_id", s.kernelID, "failures", failures, "error", err)
			if failures >= heartbeatFailureLimit {
				s.markDisconnected(err)
				return
			}
		}
	}
}

// probe issues a lightweight request the gateway must answer if the
// kernel is still reachable.
func (s *Session) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/kernels/"+s.kernelID, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return nil
}

// markDisconnected fails every pending or running execution with
// ipyerr.ConnectionLost and unblocks anyone waiting on its done channel.
func (s *Session) markDisconnected(cause error) {
	connErr := ipyerr.New(ipyerr.ExecutionClient, "heartbeat", ipyerr.ConnectionLost, cause)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, exec := range s.executions {
		if exec.State != Pending && exec.State != Running {
			continue
		}
		exec.State = Disconnected
		exec.Err = &ErrorContent{EName: "ConnectionLost", EValue: connErr.Error()}
		select {
		case <-exec.done:
		default:
			close(exec.done)
		}
	}
}

// readLoop is the sole reader of the websocket; it demultiplexes every
// message by parent_header.id into the matching Execution.
func (s *Session) readLoop() {
	for {
		var env Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			select {
			case <-s.closed:
				return
			default:
				slog.Error("kernel.Session readLoop", "error", err)
				return
			}
		}
		s.dispatch(env)
	}
}

func (s *Session) dispatch(env Envelope) {
	s.mu.Lock()
	exec, ok := s.executions[env.ParentHeader.ID]
	s.mu.Unlock()
	if !ok {
		return
	}

	switch env.Header.Type {
	case "stream":
		var c StreamContent
		if json.Unmarshal(env.Content, &c) == nil {
			s.mu.Lock()
			exec.Text = append(exec.Text, c.Text)
			ch := exec.streamCh
			s.mu.Unlock()
			if ch != nil {
				select {
				case ch <- c.Text:
				default:
				}
			}
		}
	case "execute_result":
		var c ExecuteResultContent
		if json.Unmarshal(env.Content, &c) == nil {
			s.mu.Lock()
			appendRichContent(exec, c.Data)
			s.mu.Unlock()
		}
	case "display_data":
		var c DisplayDataContent
		if json.Unmarshal(env.Content, &c) == nil {
			s.mu.Lock()
			appendRichContent(exec, c.Data)
			s.mu.Unlock()
		}
	case "error":
		var c ErrorContent
		if json.Unmarshal(env.Content, &c) == nil {
			s.mu.Lock()
			exec.Err = &c
			exec.State = Failed
			s.mu.Unlock()
		}
	case "status":
		if isIdleFor(env, exec.ID) {
			s.mu.Lock()
			if exec.State == Running {
				exec.State = Completed
			}
			select {
			case <-exec.done:
			default:
				close(exec.done)
			}
			s.mu.Unlock()
		}
		// Unrecognized message types are tolerated and simply ignored.
	}
}

// appendRichContent must be called with Session.mu held.
func appendRichContent(exec *Execution, data map[string]json.RawMessage) {
	if text, ok := data["text/plain"]; ok {
		var s string
		if json.Unmarshal(text, &s) == nil {
			exec.Text = append(exec.Text, s)
		}
	}
	if img, ok := data["image/png"]; ok {
		var b64 string
		if json.Unmarshal(img, &b64) == nil {
			if raw, err := base64.StdEncoding.DecodeString(b64); err == nil {
				exec.Images = append(exec.Images, raw)
			}
		}
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
