// Package usecase orchestrates the save and serve flows over the domain ports.
package usecase

import (
	"context"
	"errors"
	"time"

	"imagesaver/domain/image"
	"imagesaver/domain/observability"
	"imagesaver/domain/token"
)

// DefaultDownloadTimeout bounds a whole save: connect, headers and body
const DefaultDownloadTimeout = 30 * time.Second

// SaveImageOptions configures SaveImage
type SaveImageOptions struct {
	DownloadTimeout time.Duration
	UsageMode       token.UsageMode
}

// SaveImage authorizes a caller, fetches the remote image and persists it
type SaveImage struct {
	gate      token.AccessGate
	allocator image.IdentifierAllocator
	fetcher   image.Fetcher
	persister image.Persister
	opts      SaveImageOptions
	logger    observability.Logger
	metrics   observability.Metrics
}

// NewSaveImage creates the save use case
func NewSaveImage(
	gate token.AccessGate,
	allocator image.IdentifierAllocator,
	fetcher image.Fetcher,
	persister image.Persister,
	opts SaveImageOptions,
	logger observability.Logger,
	metrics observability.Metrics,
) *SaveImage {
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = DefaultDownloadTimeout
	}
	if opts.UsageMode == "" {
		opts.UsageMode = token.UsageOnSuccess
	}
	return &SaveImage{
		gate:      gate,
		allocator: allocator,
		fetcher:   fetcher,
		persister: persister,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// Execute runs authorize, allocate, fetch and persist. On any failure no
// file is left behind and the returned error is an *image.Error.
func (s *SaveImage) Execute(ctx context.Context, req image.DownloadRequest) (*image.StoredImage, error) {
	auth, err := s.Authorize(ctx, req.CallerToken)
	if err != nil {
		return nil, err
	}
	return s.Save(ctx, auth, req)
}

// Authorize checks the caller token. Callers that parse request input run it
// first so an unknown token is rejected before anything else is looked at.
func (s *SaveImage) Authorize(ctx context.Context, callerToken string) (token.Authorization, error) {
	start := time.Now()
	auth, err := s.authorize(ctx, callerToken)
	if err != nil {
		return token.Authorization{}, s.fail(start, err)
	}
	return auth, nil
}

// Save fetches and persists the image for a caller already authorized by
// Authorize.
func (s *SaveImage) Save(ctx context.Context, auth token.Authorization, req image.DownloadRequest) (*image.StoredImage, error) {
	start := time.Now()
	if !auth.Authorized {
		return nil, s.fail(start, image.ErrUnauthorized)
	}
	logger := s.logger.WithFields(map[string]interface{}{"project": auth.ProjectName})

	if s.opts.UsageMode == token.UsageOnAccept {
		s.recordUsage(ctx, logger, req.CallerToken)
	}

	// The deadline covers the entire transfer, not just the response headers
	ctx, cancel := context.WithTimeoutCause(ctx, s.opts.DownloadTimeout, image.ErrDownloadTimeout)
	defer cancel()

	identifier := s.allocator.Allocate()

	src, err := s.fetcher.Fetch(ctx, req.SourceURL)
	if err != nil {
		logger.Info("Fetch rejected", "fid", identifier, "error", err)
		return nil, s.fail(start, classify(ctx, err))
	}
	defer src.Body.Close()

	stored, err := s.persister.Persist(ctx, identifier, src.Extension, src.Body)
	if err != nil {
		if errors.Is(err, image.ErrIdentifierCollision) {
			err = image.ErrInternalCause(err)
		}
		logger.Error("Save failed", "fid", identifier, "error", err)
		return nil, s.fail(start, classify(ctx, err))
	}
	stored.ContentType = src.ContentType

	if s.opts.UsageMode == token.UsageOnSuccess {
		s.recordUsage(ctx, logger, req.CallerToken)
	}

	s.metrics.IncrementCounter("save.requests", map[string]string{"result": "success"})
	s.metrics.RecordHistogram("save.duration_seconds", time.Since(start).Seconds(), nil)
	s.metrics.RecordHistogram("save.bytes", float64(stored.Size), nil)
	logger.Info("Image saved",
		"fid", stored.Identifier,
		"file", stored.FileName(),
		"size", stored.Size,
		"content_type", stored.ContentType,
		"duration_ms", time.Since(start).Milliseconds())

	return stored, nil
}

func (s *SaveImage) authorize(ctx context.Context, callerToken string) (token.Authorization, error) {
	if callerToken == "" {
		return token.Authorization{}, image.ErrUnauthorized
	}

	auth, err := s.gate.Authorize(ctx, callerToken)
	if err != nil {
		s.logger.Error("Token lookup failed", "error", err)
		return token.Authorization{}, image.ErrInternalCause(err)
	}
	if !auth.Authorized {
		return token.Authorization{}, image.ErrUnauthorized
	}
	return auth, nil
}

// recordUsage is best effort: a failed increment is logged and never fails
// the request.
func (s *SaveImage) recordUsage(ctx context.Context, logger observability.Logger, callerToken string) {
	// Accounting must not be lost because the download deadline just passed
	ctx = context.WithoutCancel(ctx)
	if err := s.gate.RecordUsage(ctx, callerToken); err != nil {
		s.metrics.IncrementCounter("save.usage_errors", nil)
		logger.Error("Failed to record token usage", "error", err)
	}
}

func (s *SaveImage) fail(start time.Time, err error) error {
	s.metrics.IncrementCounter("save.requests", map[string]string{"result": string(image.KindOf(err))})
	s.metrics.RecordHistogram("save.duration_seconds", time.Since(start).Seconds(), nil)
	return err
}

// classify makes sure every error leaving the use case carries a kind
func classify(ctx context.Context, err error) error {
	var e *image.Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return image.ErrTransferCause(ctx, err)
	}
	return image.ErrInternalCause(err)
}
