// Package image holds the core types of the fetch-validate-persist-serve
// pipeline: stored images, their identifiers and the typed failures that can
// occur along the way.
package image

import (
	"context"
	"io"
)

// IdentifierLength is the fixed length of every allocated identifier.
const IdentifierLength = 26

// DefaultExtension is used when the source URL carries no recognised image
// extension.
const DefaultExtension = ".jpg"

// DownloadRequest is the transient input of a save operation.
type DownloadRequest struct {
	SourceURL   string
	CallerToken string
}

// StoredImage describes a file that has been fully written and published.
type StoredImage struct {
	Identifier  string
	Extension   string
	Path        string
	Size        int64
	ContentType string
}

// FileName returns the on-disk name of the image.
func (s *StoredImage) FileName() string {
	return s.Identifier + s.Extension
}

// Source is a validated upstream response whose body has not been consumed.
// The caller owns Body and must close it.
type Source struct {
	URL           string
	ContentType   string
	ContentLength int64
	Extension     string
	Body          io.ReadCloser
}

// IdentifierAllocator produces fresh opaque identifiers.
type IdentifierAllocator interface {
	Allocate() string
}

// Fetcher opens an upstream transfer and validates it before any bytes are
// handed to the caller.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Source, error)
}

// Persister streams a validated source to durable storage.
type Persister interface {
	Persist(ctx context.Context, identifier, extension string, body io.Reader) (*StoredImage, error)
}

// Resolver locates the stored file for an identifier.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (string, error)
}
