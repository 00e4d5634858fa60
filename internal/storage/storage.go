package storage

import (
	"context"
	"errors"
	"io"
)

var ErrExists = errors.New("object already exists")
var ErrInvalidPath = errors.New("invalid object path")

// Store is the object-storage surface the profile service needs:
// write bytes under a path and resolve the path to a public URL.
type Store interface {
	Put(ctx context.Context, path string, r io.Reader, contentType string, upsert bool) error
	PublicURL(path string) string
}
