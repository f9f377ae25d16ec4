package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/blackmichael/video-feed/internal/domain"
)

// Filesystem stores blobs as files under a root directory and hands out
// URLs of the form {baseURL}/o/{escaped path}?alt=media.
type Filesystem struct {
	root    string
	baseURL string
}

// NewFilesystem creates the root directory if needed. baseURL is the public
// prefix the server serves blobs under, e.g. http://localhost:3000/blobs.
func NewFilesystem(root, baseURL string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Filesystem{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Put writes r to path. The file is written to a temp name and renamed so
// readers never see a partial upload.
func (f *Filesystem) Put(ctx context.Context, blobPath, contentType string, r io.Reader) (string, error) {
	full, err := f.resolve(blobPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", domain.Unavailable("create blob dir", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", domain.Unavailable("create blob", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return "", domain.Unavailable("write blob", err)
	}
	if err := tmp.Close(); err != nil {
		return "", domain.Unavailable("close blob", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", domain.Unavailable("commit blob", err)
	}
	return f.URL(blobPath), nil
}

// Delete removes the blob at path.
func (f *Filesystem) Delete(_ context.Context, blobPath string) error {
	full, err := f.resolve(blobPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("blob %s: %w", blobPath, domain.ErrNotFound)
		}
		return domain.Unavailable("delete blob", err)
	}
	return nil
}

// List walks the blobs under prefix.
func (f *Filesystem) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, domain.BlobInfo{Path: rel, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, domain.Unavailable("list blobs", err)
	}
	return out, nil
}

// URL returns the public URL of path.
func (f *Filesystem) URL(blobPath string) string {
	return f.baseURL + "/o/" + url.PathEscape(blobPath) + "?alt=media"
}

// PathFromURL extracts the blob path from a URL returned by Put.
func (f *Filesystem) PathFromURL(rawURL string) (string, error) {
	_, rest, ok := strings.Cut(rawURL, "/o/")
	if !ok {
		return "", domain.Invalid("media url", "not a stored blob url")
	}
	rest, _, _ = strings.Cut(rest, "?")
	p, err := url.PathUnescape(rest)
	if err != nil || p == "" {
		return "", domain.Invalid("media url", "bad blob path")
	}
	return p, nil
}

// Handler serves blobs for GET {prefix}/o/{escaped path}. It expects the
// prefix to be stripped already.
func (f *Filesystem) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// r.URL.Path is already unescaped, so %2F has become '/'.
		blobPath := strings.TrimPrefix(r.URL.Path, "/o/")
		full, err := f.resolve(blobPath)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, full)
	})
}

func (f *Filesystem) resolve(blobPath string) (string, error) {
	clean := path.Clean("/" + blobPath)
	if clean == "/" || clean != "/"+blobPath {
		return "", domain.Invalid("blob path", fmt.Sprintf("%q is not a clean relative path", blobPath))
	}
	return filepath.Join(f.root, filepath.FromSlash(clean[1:])), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
