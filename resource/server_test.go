package resource

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func buildDirArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestServer() (*Server, *httptest.Server) {
	s := &Server{FS: afero.NewMemMapFs(), Root: "/sandbox"}
	srv := httptest.NewServer(s.Handler())
	return s, srv
}

func TestClientUploadDownloadFileRoundTrip(t *testing.T) {
	_, srv := newTestServer()
	defer srv.Close()
	c := NewClient(srv.URL)
	ctx := context.Background()

	if err := c.UploadFile(ctx, "greeting.txt", strings.NewReader("hi there")); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	got, err := c.DownloadFile(ctx, "greeting.txt")
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if string(got) != "hi there" {
		t.Fatalf("got %q, want %q", got, "hi there")
	}
}

func TestClientDownloadMissingFileReturnsError(t *testing.T) {
	_, srv := newTestServer()
	defer srv.Close()
	c := NewClient(srv.URL)

	if _, err := c.DownloadFile(context.Background(), "nope.txt"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestClientCopyAndDelete(t *testing.T) {
	_, srv := newTestServer()
	defer srv.Close()
	c := NewClient(srv.URL)
	ctx := context.Background()

	if err := c.UploadFile(ctx, "a.txt", strings.NewReader("content")); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if err := c.Copy(ctx, "a.txt", "b.txt"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	got, err := c.DownloadFile(ctx, "b.txt")
	if err != nil || string(got) != "content" {
		t.Fatalf("b.txt after copy = %q, %v", got, err)
	}
	if err := c.Delete(ctx, "a.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.DownloadFile(ctx, "a.txt"); err == nil {
		t.Fatal("expected a.txt to be gone after Delete")
	}
}

func TestClientFetchToolStubsReturnsNamespacedArchive(t *testing.T) {
	s, srv := newTestServer()
	defer srv.Close()
	s.ToolStubDir = "/stubs"
	afero.WriteFile(s.FS, "/stubs/ipybox/__init__.py", []byte(""), 0o644)
	afero.WriteFile(s.FS, "/stubs/ipybox/_toolrun.py", []byte("async def call_tool(): ..."), 0o644)
	afero.WriteFile(s.FS, "/stubs/ipybox/search.py", []byte("SERVER_ID = \"search\"\n"), 0o644)

	c := NewClient(srv.URL)
	archive, err := c.FetchToolStubs(context.Background(), "search")
	if err != nil {
		t.Fatalf("FetchToolStubs: %v", err)
	}

	tr := tar.NewReader(bytes.NewReader(archive))
	names := map[string]bool{}
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		names[hdr.Name] = true
	}
	for _, want := range []string{"ipybox/__init__.py", "ipybox/_toolrun.py", "ipybox/search.py"} {
		if !names[want] {
			t.Fatalf("archive missing entry %q, got %v", want, names)
		}
	}
}

func TestClientFetchToolStubsMissingServerReturnsError(t *testing.T) {
	s, srv := newTestServer()
	defer srv.Close()
	s.ToolStubDir = "/stubs"

	c := NewClient(srv.URL)
	if _, err := c.FetchToolStubs(context.Background(), "nope"); err == nil {
		t.Fatal("expected an error for a missing server's stubs")
	}
}

func TestClientUploadDownloadDirRoundTrip(t *testing.T) {
	_, srv := newTestServer()
	defer srv.Close()
	c := NewClient(srv.URL)
	ctx := context.Background()

	archive := buildDirArchive(t, map[string]string{
		"one.txt":     "1",
		"sub/two.txt": "2",
	})

	if err := c.UploadDir(ctx, "mydir", bytes.NewReader(archive)); err != nil {
		t.Fatalf("UploadDir: %v", err)
	}

	downloaded, err := c.DownloadDir(ctx, "mydir")
	if err != nil {
		t.Fatalf("DownloadDir: %v", err)
	}
	if len(downloaded) == 0 {
		t.Fatal("expected non-empty tar stream")
	}
}
