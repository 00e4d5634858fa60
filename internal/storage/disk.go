package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/stagehubhq/stagehub/internal/observability"
)

// DiskStore keeps objects on the local filesystem and serves them back
// through the API's /static route. Paths are slash-separated keys
// ("avatars/<userID>/<name>") and must stay inside the root.
type DiskStore struct {
	root      string
	publicURL string // base, e.g. http://localhost:8080/static
	prom      *observability.Prom
}

func NewDiskStore(root, publicBaseURL string, prom *observability.Prom) (*DiskStore, error) {
	err := os.MkdirAll(root, 0o755)

	if err != nil {
		return nil, err
	}

	return &DiskStore{
		root:      root,
		publicURL: strings.TrimRight(publicBaseURL, "/") + "/static",
		prom:      prom,
	}, nil
}

func (s *DiskStore) observe(op string, fn func() error) error {
	if s.prom != nil {
		return s.prom.ObserveStorage(op, fn)
	}
	return fn()
}

func (s *DiskStore) Put(ctx context.Context, path string, r io.Reader, contentType string, upsert bool) error {
	full, err := s.resolve(path)

	if err != nil {
		return err
	}

	return s.observe("put", func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !upsert {
			_, statErr := os.Stat(full)
			if statErr == nil {
				return ErrExists
			}
		}

		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}

		// write to a temp file first so readers never see a partial object
		tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
		if err != nil {
			return err
		}

		_, err = io.Copy(tmp, r)

		closeErr := tmp.Close()

		if err == nil {
			err = closeErr
		}

		if err != nil {
			_ = os.Remove(tmp.Name())
			return err
		}

		return os.Rename(tmp.Name(), full)
	})
}

func (s *DiskStore) PublicURL(path string) string {
	return s.publicURL + "/" + strings.TrimLeft(path, "/")
}

// Root is the directory gin's static route should serve from.
func (s *DiskStore) Root() string {
	return s.root
}

func (s *DiskStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))

	if clean == "/" || strings.Contains(path, "..") {
		return "", ErrInvalidPath
	}

	return filepath.Join(s.root, clean), nil
}
