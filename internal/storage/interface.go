package storage

import (
	"context"
	"io"
)

// ObjectStorage is the blob store generated images are written to.
type ObjectStorage interface {
	// Upload writes an object under key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// GetURL returns the public URL of an object. It does not check that the object exists.
	GetURL(key string) string

	Delete(ctx context.Context, key string) error
}
