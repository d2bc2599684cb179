package attachment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// DiskStore keeps objects in a local directory and serves them over HTTP.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates dir if needed. baseURL is the public prefix the
// directory is served under, e.g. http://localhost:8080/files.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *DiskStore) Put(ctx context.Context, key, _ string, body io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("invalid object key %q", key)
	}
	if err := atomic.WriteFile(filepath.Join(s.dir, key), body); err != nil {
		return fmt.Errorf("write object %s: %w", key, err)
	}
	return nil
}

func (s *DiskStore) PublicURL(key string) string {
	return s.baseURL + "/" + url.PathEscape(key)
}

// Handler serves stored objects. Mount it with http.StripPrefix.
func (s *DiskStore) Handler() http.Handler {
	return http.FileServer(http.Dir(s.dir))
}
