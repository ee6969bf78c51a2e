package usecase

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"imagesaver/domain/image"
	"imagesaver/domain/observability"
	"imagesaver/domain/token"
)

// ServedFile is an open stored image. The caller must close File.
type ServedFile struct {
	File    *os.File
	Name    string
	Size    int64
	ModTime time.Time
}

// ServeImage resolves an identifier to an open file
type ServeImage struct {
	resolver     image.Resolver
	gate         token.AccessGate
	requireToken bool
	logger       observability.Logger
	metrics      observability.Metrics
}

// NewServeImage creates the serve use case. When requireToken is set every
// request must carry a registered token; serving never counts usage.
func NewServeImage(resolver image.Resolver, gate token.AccessGate, requireToken bool, logger observability.Logger, metrics observability.Metrics) *ServeImage {
	return &ServeImage{
		resolver:     resolver,
		gate:         gate,
		requireToken: requireToken,
		logger:       logger,
		metrics:      metrics,
	}
}

// Execute opens the file stored under identifier
func (s *ServeImage) Execute(ctx context.Context, identifier, callerToken string) (*ServedFile, error) {
	if s.requireToken {
		if err := s.authorize(ctx, callerToken); err != nil {
			s.metrics.IncrementCounter("serve.requests", map[string]string{"result": string(image.KindOf(err))})
			return nil, err
		}
	}

	if !image.IsValidIdentifier(identifier) {
		s.metrics.IncrementCounter("serve.requests", map[string]string{"result": "InvalidIdentifier"})
		return nil, ErrInvalidIdentifier
	}

	path, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		s.metrics.IncrementCounter("serve.requests", map[string]string{"result": string(image.KindNotFound)})
		return nil, image.ErrNotFound
	}

	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn("Resolved file could not be opened", "fid", identifier, "error", err)
		s.metrics.IncrementCounter("serve.requests", map[string]string{"result": string(image.KindNotFound)})
		return nil, image.ErrNotFound
	}

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		f.Close()
		s.metrics.IncrementCounter("serve.requests", map[string]string{"result": string(image.KindNotFound)})
		return nil, image.ErrNotFound
	}

	s.metrics.IncrementCounter("serve.requests", map[string]string{"result": "success"})
	return &ServedFile{
		File:    f,
		Name:    filepath.Base(path),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

func (s *ServeImage) authorize(ctx context.Context, callerToken string) error {
	if callerToken == "" {
		return image.ErrUnauthorized
	}
	auth, err := s.gate.Authorize(ctx, callerToken)
	if err != nil {
		s.logger.Error("Token lookup failed", "error", err)
		return image.ErrInternalCause(err)
	}
	if !auth.Authorized {
		return image.ErrUnauthorized
	}
	return nil
}
