// Package fs stores images as flat files named <identifier><extension> in a
// single directory.
package fs

import (
	"fmt"
	"os"
	"sync"

	"imagesaver/domain/image"
	"imagesaver/domain/observability"
)

// defaultRelinkAttempts bounds how often a taken name is retried
const defaultRelinkAttempts = 3

// Store persists and resolves images under root
type Store struct {
	root           string
	maxSize        int64
	index          *Index
	allocator      image.IdentifierAllocator
	relinkAttempts uint64
	publishMu      sync.Mutex // serialises the stem check and the link
	logger         observability.Logger
	metrics        observability.Metrics
}

// Option customises a Store
type Option func(*Store)

// WithAllocator lets Persist publish under a fresh identifier when the
// requested one is already taken. Without it a collision is returned to the
// caller as image.ErrIdentifierCollision.
func WithAllocator(allocator image.IdentifierAllocator) Option {
	return func(s *Store) {
		s.allocator = allocator
	}
}

// WithRelinkAttempts sets how many fresh identifiers are tried after a collision
func WithRelinkAttempts(n uint64) Option {
	return func(s *Store) {
		s.relinkAttempts = n
	}
}

// NewStore creates the root directory if needed and indexes its contents.
// maxSize caps a single image in bytes, 0 disables the cap.
func NewStore(root string, maxSize int64, logger observability.Logger, metrics observability.Metrics, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	s := &Store{
		root:           root,
		maxSize:        maxSize,
		index:          NewIndex(),
		relinkAttempts: defaultRelinkAttempts,
		logger:         logger,
		metrics:        metrics,
	}
	for _, opt := range opts {
		opt(s)
	}

	count, err := s.index.Rebuild(root)
	if err != nil {
		return nil, fmt.Errorf("failed to index storage root: %w", err)
	}
	s.metrics.RecordGauge("storage.index.entries", float64(count), nil)
	s.logger.Info("Storage ready",
		"root", root,
		"indexed_files", count,
		"max_image_size", maxSize)

	return s, nil
}
