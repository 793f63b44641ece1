package resource

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// writeTar walks root within fsys and writes it as a ustar archive.
// Symlinks are dereferenced rather than copied as symlink entries: a
// tar symlink entry carries a Linkname honored verbatim on extraction,
// which could point outside the extracting side's bind root, so every
// entry ends up a plain file or directory bearing the target's content.
func writeTar(fsys afero.Fs, root string, w io.Writer) error {
	tw := tar.NewWriter(w)
	defer tw.Close()

	return afero.Walk(fsys, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			info, err = fsys.Stat(p)
			if err != nil {
				return fmt.Errorf("resolve symlink %s: %w", rel, err)
			}
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}

// tarFile names one entry for writeTarFiles: Name is the path the entry
// gets inside the archive, Src is where its bytes come from on fsys.
type tarFile struct {
	Name string
	Src  string
}

// writeTarFiles writes files as a ustar archive in the given order,
// skipping any whose Src does not exist. Unlike writeTar, it does not
// walk a directory tree: it is for assembling an archive out of files
// that live in different source directories but share one logical
// layout, such as a tool-stub package's shared runtime bridge alongside
// one server's generated module.
func writeTarFiles(fsys afero.Fs, files []tarFile, w io.Writer) error {
	tw := tar.NewWriter(w)
	defer tw.Close()

	for _, f := range files {
		info, err := fsys.Stat(f.Src)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = f.Name
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		in, err := fsys.Open(f.Src)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, in)
		in.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// extractTar reads a ustar archive from r and writes it under root within
// fsys. Any entry whose name (after cleaning) would resolve outside root,
// and any symlink entry at all, rejects the whole archive: nothing
// extracted so far is rolled back, matching the fail-closed posture of an
// upload that can't be partially trusted.
func extractTar(fsys afero.Fs, root string, r io.Reader) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if hdr.Typeflag == tar.TypeSymlink || hdr.Typeflag == tar.TypeLink {
			return fmt.Errorf("rejecting archive: link entry %s -> %s", hdr.Name, hdr.Linkname)
		}

		target, err := safeJoin(root, hdr.Name)
		if err != nil {
			return fmt.Errorf("rejecting archive: %w", err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := fsys.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := fsys.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := fsys.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		default:
			// ignore device files, fifos, and other non-regular entries
		}
	}
}

// safeJoin joins root and name, rejecting any result that escapes root
// after cleaning (covers ".." segments). An absolute name is taken
// relative to root.
func safeJoin(root, name string) (string, error) {
	joined := filepath.Join(root, filepath.FromSlash(name))
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root: %s", name)
	}
	return joined, nil
}
