package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/i-dream-of-ai/ipybox/ipyerr"
	"github.com/i-dream-of-ai/ipybox/tracing"
)

// Client is the typed wrapper around a Server's HTTP surface. Idempotent
// operations retry with bounded exponential backoff; non-idempotent
// operations fail fast.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a Client talking to baseURL.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (resp *http.Response, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "resource.Client "+method+" "+path, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	return c.HTTP.Do(req)
}

func (c *Client) retryIdempotent(ctx context.Context, op func() (*http.Response, error)) (*http.Response, error) {
	wrapped := func() (*http.Response, error) {
		resp, err := op()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("server error: %s", resp.Status)
		}
		return resp, nil
	}
	return backoff.Retry(ctx, wrapped,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(5),
	)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	var body struct {
		Error string `json:"error"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Error == "" {
		body.Error = resp.Status
	}
	return fmt.Errorf("%s", body.Error)
}

// UploadFile is non-idempotent: it overwrites path's contents as a side
// effect that a retried second write would apply twice, so it fails fast.
func (c *Client) UploadFile(ctx context.Context, path string, data io.Reader) error {
	resp, err := c.do(ctx, http.MethodPut, "/files/upload", url.Values{"path": {path}}, data)
	if err != nil {
		return ipyerr.New(ipyerr.ResourceClient, "UploadFile", ipyerr.Connection, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return ipyerr.New(ipyerr.ResourceClient, "UploadFile", ipyerr.Execution, err)
	}
	return nil
}

// DownloadFile is idempotent and retries transient server failures.
func (c *Client) DownloadFile(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.retryIdempotent(ctx, func() (*http.Response, error) {
		return c.do(ctx, http.MethodGet, "/files/download", url.Values{"path": {path}}, nil)
	})
	if err != nil {
		return nil, ipyerr.New(ipyerr.ResourceClient, "DownloadFile", ipyerr.Connection, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, ipyerr.New(ipyerr.ResourceClient, "DownloadFile", ipyerr.Execution, err)
	}
	return io.ReadAll(resp.Body)
}

// UploadDir is non-idempotent: fails fast.
func (c *Client) UploadDir(ctx context.Context, path string, tarStream io.Reader) error {
	resp, err := c.do(ctx, http.MethodPut, "/dirs/upload", url.Values{"path": {path}}, tarStream)
	if err != nil {
		return ipyerr.New(ipyerr.ResourceClient, "UploadDir", ipyerr.Connection, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return ipyerr.New(ipyerr.ResourceClient, "UploadDir", ipyerr.Execution, err)
	}
	return nil
}

// DownloadDir is idempotent and retries transient server failures.
func (c *Client) DownloadDir(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.retryIdempotent(ctx, func() (*http.Response, error) {
		return c.do(ctx, http.MethodGet, "/dirs/download", url.Values{"path": {path}}, nil)
	})
	if err != nil {
		return nil, ipyerr.New(ipyerr.ResourceClient, "DownloadDir", ipyerr.Connection, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, ipyerr.New(ipyerr.ResourceClient, "DownloadDir", ipyerr.Execution, err)
	}
	return io.ReadAll(resp.Body)
}

// Copy is non-idempotent: fails fast.
func (c *Client) Copy(ctx context.Context, src, dst string) error {
	body, _ := json.Marshal(map[string]string{"src": src, "dst": dst})
	resp, err := c.do(ctx, http.MethodPost, "/copy", nil, bytes.NewReader(body))
	if err != nil {
		return ipyerr.New(ipyerr.ResourceClient, "Copy", ipyerr.Connection, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return ipyerr.New(ipyerr.ResourceClient, "Copy", ipyerr.Execution, err)
	}
	return nil
}

// Delete is idempotent (removing an already-removed path is a no-op) and
// retries transient server failures.
func (c *Client) Delete(ctx context.Context, path string) error {
	resp, err := c.retryIdempotent(ctx, func() (*http.Response, error) {
		return c.do(ctx, http.MethodDelete, "/delete", url.Values{"path": {path}}, nil)
	})
	if err != nil {
		return ipyerr.New(ipyerr.ResourceClient, "Delete", ipyerr.Connection, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return ipyerr.New(ipyerr.ResourceClient, "Delete", ipyerr.Execution, err)
	}
	return nil
}

// ModuleSource is idempotent and retries transient server failures.
func (c *Client) ModuleSource(ctx context.Context, module string) (string, error) {
	resp, err := c.retryIdempotent(ctx, func() (*http.Response, error) {
		return c.do(ctx, http.MethodGet, "/modules/source", url.Values{"module": {module}}, nil)
	})
	if err != nil {
		return "", ipyerr.New(ipyerr.ResourceClient, "ModuleSource", ipyerr.Connection, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", ipyerr.New(ipyerr.ResourceClient, "ModuleSource", ipyerr.Execution, err)
	}
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}

// GenerateToolStubs is non-idempotent: re-running it regenerates and
// overwrites stub files, a side effect a blind retry could apply against
// a half-written generation. Fails fast.
func (c *Client) GenerateToolStubs(ctx context.Context, serverID string, config json.RawMessage) ([]string, error) {
	body, _ := json.Marshal(map[string]any{"server_id": serverID, "config": config})
	resp, err := c.do(ctx, http.MethodPost, "/tools/generate", nil, bytes.NewReader(body))
	if err != nil {
		return nil, ipyerr.New(ipyerr.ResourceClient, "GenerateToolStubs", ipyerr.Connection, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, ipyerr.New(ipyerr.ResourceClient, "GenerateToolStubs", ipyerr.Execution, err)
	}
	var out struct {
		Files []string `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, ipyerr.New(ipyerr.ResourceClient, "GenerateToolStubs", ipyerr.Protocol, err)
	}
	return out.Files, nil
}

// FetchToolStubs is idempotent and retries transient server failures. It
// returns the tar archive of the server's generated stub package
// (mirroring DownloadDir's shape); callers extract it the same way.
func (c *Client) FetchToolStubs(ctx context.Context, serverID string) ([]byte, error) {
	resp, err := c.retryIdempotent(ctx, func() (*http.Response, error) {
		return c.do(ctx, http.MethodGet, "/tools/fetch", url.Values{"server_id": {serverID}}, nil)
	})
	if err != nil {
		return nil, ipyerr.New(ipyerr.ResourceClient, "FetchToolStubs", ipyerr.Connection, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, ipyerr.New(ipyerr.ResourceClient, "FetchToolStubs", ipyerr.Execution, err)
	}
	return io.ReadAll(resp.Body)
}
