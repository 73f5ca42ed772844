package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter writes objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader reads objects from cold storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// BlobDeleter removes objects from cold storage.
type BlobDeleter interface {
	Delete(ctx context.Context, path string) error
}

// Archiver moves aged signal history out of the hot store into cold storage.
type Archiver interface {
	// ArchiveBefore exports expired signal records last updated before
	// cutoff and deletes them from the hot store. Returns the number of
	// records archived.
	ArchiveBefore(ctx context.Context, cutoff time.Time) (int, error)
}
