package kernel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeGateway is a minimal stand-in for the kernel gateway: it accepts the
// kernel-create/delete/interrupt HTTP calls and, over the channels
// websocket, reads the first execute_request. With reply set it echoes
// back a stream message followed by an idle status for that request;
// without it, it sends nothing, so the execution stays in flight until
// the connection goes away.
func fakeGateway(t *testing.T, reply bool) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/kernels", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "kernel-1"})
	})
	mux.HandleFunc("/api/kernels/kernel-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/kernels/kernel-1/interrupt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/kernels/kernel-1/channels", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var req Envelope
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if !reply {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}

		conn.WriteJSON(Envelope{
			Header:       Header{Type: "stream"},
			ParentHeader: ParentHeader{ID: req.Header.ID},
			Content:      json.RawMessage(`{"name":"stdout","text":"hello\n"}`),
		})
		conn.WriteJSON(Envelope{
			Header:       Header{Type: "status"},
			ParentHeader: ParentHeader{ID: req.Header.ID},
			Content:      json.RawMessage(`{"execution_state":"idle"}`),
		})
	})

	return httptest.NewServer(mux)
}

func TestSessionExecuteAccumulatesStreamAndCompletes(t *testing.T) {
	srv := fakeGateway(t, true)
	defer srv.Close()

	baseURL := strings.Replace(srv.URL, "http", "http", 1)
	sess, err := Open(context.Background(), baseURL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := sess.Execute(ctx, "print('hello')")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.State != Completed {
		t.Fatalf("state = %v, want Completed", result.State)
	}
	if result.Text != "hello\n" {
		t.Fatalf("text = %q, want %q", result.Text, "hello\n")
	}
}

// chunkyGateway behaves like fakeGateway but writes n stream messages
// before the idle status, spaced out so a Stream consumer observes them
// arriving one at a time rather than batched.
func chunkyGateway(t *testing.T, n int) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/kernels", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "kernel-1"})
	})
	mux.HandleFunc("/api/kernels/kernel-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/kernels/kernel-1/interrupt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/kernels/kernel-1/channels", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var req Envelope
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		for i := 0; i < n; i++ {
			conn.WriteJSON(Envelope{
				Header:       Header{Type: "stream"},
				ParentHeader: ParentHeader{ID: req.Header.ID},
				Content:      json.RawMessage(`{"name":"stdout","text":"chunk\n"}`),
			})
			time.Sleep(10 * time.Millisecond)
		}
		conn.WriteJSON(Envelope{
			Header:       Header{Type: "status"},
			ParentHeader: ParentHeader{ID: req.Header.ID},
			Content:      json.RawMessage(`{"execution_state":"idle"}`),
		})
	})

	return httptest.NewServer(mux)
}

func TestSessionStreamYieldsChunks(t *testing.T) {
	srv := chunkyGateway(t, 6)
	defer srv.Close()

	sess, err := Open(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Close(context.Background())

	exec, err := sess.Submit(context.Background(), "for i in range(6): print(i)")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var chunks int
	for range sess.Stream(ctx, exec) {
		chunks++
	}
	if chunks < 5 {
		t.Fatalf("got %d chunks, want at least 5", chunks)
	}
}

func TestSessionHeartbeatMarksDisconnected(t *testing.T) {
	origInterval, origLimit := heartbeatInterval, heartbeatFailureLimit
	heartbeatInterval = 10 * time.Millisecond
	heartbeatFailureLimit = 2
	defer func() { heartbeatInterval, heartbeatFailureLimit = origInterval, origLimit }()

	srv := fakeGateway(t, false)
	sess, err := Open(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	exec, err := sess.Submit(context.Background(), "while True: pass")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Kill the gateway mid-flight: the next heartbeat probes fail and,
	// after heartbeatFailureLimit misses, the pending execution is
	// failed with ConnectionLost instead of hanging forever.
	srv.Close()

	select {
	case <-exec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("execution was not failed after gateway disconnect")
	}

	result := sess.Result(exec.ID)
	if result.State != Disconnected {
		t.Fatalf("state = %v, want Disconnected", result.State)
	}
	if result.Err == nil || result.Err.EName != "ConnectionLost" {
		t.Fatalf("err = %+v, want ConnectionLost", result.Err)
	}
}
