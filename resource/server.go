// Package resource implements the Resource Server (C4) and Resource
// Client (C3): an HTTP file/directory transfer surface into a running
// sandbox container, plus the typed client that talks to it. The server
// handler style (one ServeMux, writeJSON/writeJSONError helpers, a
// {"error": "..."} response convention) mirrors the teacher's mux_server.go.
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Server exposes the file/directory transfer and module/tool-stub
// endpoints over HTTP, backed by an afero.Fs so tests run against an
// in-memory filesystem.
type Server struct {
	FS          afero.Fs
	Root        string
	ModuleFS    afero.Fs // serves ModuleSource lookups
	ToolStubDir string

	// Generate, when set, implements the tool-stub generation endpoint.
	// Left nil on servers that only need the file/dir transfer surface.
	Generate func(ctx context.Context, serverID string, cfg json.RawMessage) ([]string, error)
}

var errNotImplementedHere = errors.New("tool stub generation not configured on this server")

// NewServer returns a Server rooted at root on the real OS filesystem.
func NewServer(root string) *Server {
	return &Server{FS: afero.NewOsFs(), Root: root}
}

func writeJSONError(w http.ResponseWriter, err error, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// Handler builds the http.Handler exposing every resource operation.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/upload", s.handleUploadFile)
	mux.HandleFunc("/files/download", s.handleDownloadFile)
	mux.HandleFunc("/dirs/upload", s.handleUploadDir)
	mux.HandleFunc("/dirs/download", s.handleDownloadDir)
	mux.HandleFunc("/copy", s.handleCopy)
	mux.HandleFunc("/delete", s.handleDelete)
	mux.HandleFunc("/modules/source", s.handleModuleSource)
	mux.HandleFunc("/tools/generate", s.handleGenerateToolStubs)
	mux.HandleFunc("/tools/fetch", s.handleFetchToolStubs)
	return mux
}

func (s *Server) resolvePath(rel string) (string, error) {
	return safeJoin(s.Root, rel)
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rel := r.URL.Query().Get("path")
	target, err := s.resolvePath(rel)
	if err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	if err := s.FS.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		writeJSONError(w, err, http.StatusInternalServerError)
		return
	}
	f, err := s.FS.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		writeJSONError(w, err, http.StatusInternalServerError)
		return
	}
	defer f.Close()
	if _, err := io.Copy(f, r.Body); err != nil {
		writeJSONError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	target, err := s.resolvePath(rel)
	if err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	f, err := s.FS.Open(target)
	if err != nil {
		writeJSONError(w, err, http.StatusNotFound)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	io.Copy(w, f)
}

func (s *Server) handleUploadDir(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rel := r.URL.Query().Get("path")
	target, err := s.resolvePath(rel)
	if err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	if err := s.FS.MkdirAll(target, 0o755); err != nil {
		writeJSONError(w, err, http.StatusInternalServerError)
		return
	}
	if err := extractTar(s.FS, target, r.Body); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleDownloadDir(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	target, err := s.resolvePath(rel)
	if err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/x-tar")
	if err := writeTar(s.FS, target, w); err != nil {
		writeJSONError(w, err, http.StatusInternalServerError)
		return
	}
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var args struct {
		Src string `json:"src"`
		Dst string `json:"dst"`
	}
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	src, err := s.resolvePath(args.Src)
	if err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	dst, err := s.resolvePath(args.Dst)
	if err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	if err := copyWithinFS(s.FS, src, dst); err != nil {
		writeJSONError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rel := r.URL.Query().Get("path")
	target, err := s.resolvePath(rel)
	if err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	if err := s.FS.RemoveAll(target); err != nil {
		writeJSONError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleModuleSource(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("module")
	fsys := s.ModuleFS
	if fsys == nil {
		fsys = s.FS
	}
	p := filepath.Join("/", filepath.FromSlash(name)+".py")
	f, err := fsys.Open(p)
	if err != nil {
		writeJSONError(w, err, http.StatusNotFound)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "text/x-python")
	io.Copy(w, f)
}

// copyWithinFS copies a single file from src to dst within fsys, creating
// dst's parent directories as needed.
func copyWithinFS(fsys afero.Fs, src, dst string) error {
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := fsys.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := fsys.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func (s *Server) handleGenerateToolStubs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Generate == nil {
		writeJSONError(w, errNotImplementedHere, http.StatusNotImplemented)
		return
	}
	var args struct {
		ServerID string          `json:"server_id"`
		Config   json.RawMessage `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	files, err := s.Generate(r.Context(), args.ServerID, args.Config)
	if err != nil {
		writeJSONError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"files": files})
}

// handleFetchToolStubs returns a tar archive containing the requested
// server's generated stub module alongside the shared ipybox runtime
// package (__init__.py, _toolrun.py) every stub imports, so extracting
// the archive at the root of a Python path reproduces a working
// "import ipybox.<server_id>". toolgen.Generator writes every server's
// stub as a sibling file under one shared ipybox/ package directory
// rather than a directory per server, so this only ever tars individual
// files, never a subtree.
func (s *Server) handleFetchToolStubs(w http.ResponseWriter, r *http.Request) {
	serverID := r.URL.Query().Get("server_id")
	pkgDir := filepath.Join(s.ToolStubDir, "ipybox")
	modulePath := filepath.Join(pkgDir, serverID+".py")
	if _, err := s.FS.Stat(modulePath); err != nil {
		writeJSONError(w, err, http.StatusNotFound)
		return
	}
	files := []tarFile{
		{Name: "ipybox/__init__.py", Src: filepath.Join(pkgDir, "__init__.py")},
		{Name: "ipybox/_toolrun.py", Src: filepath.Join(pkgDir, "_toolrun.py")},
		{Name: "ipybox/" + serverID + ".py", Src: modulePath},
	}
	w.Header().Set("Content-Type", "application/x-tar")
	if err := writeTarFiles(s.FS, files, w); err != nil {
		writeJSONError(w, err, http.StatusInternalServerError)
		return
	}
}
