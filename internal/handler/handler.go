// Package handler exposes the save and serve flows over HTTP.
package handler

import (
	"context"

	"imagesaver/domain/image"
	"imagesaver/domain/observability"
	"imagesaver/domain/token"
	"imagesaver/internal/usecase"
)

// ImageSaver is the save flow consumed by the HTTP layer. Authorize runs
// before the request body is read.
type ImageSaver interface {
	Authorize(ctx context.Context, callerToken string) (token.Authorization, error)
	Save(ctx context.Context, auth token.Authorization, req image.DownloadRequest) (*image.StoredImage, error)
}

// ImageServer is the serve flow consumed by the HTTP layer
type ImageServer interface {
	Execute(ctx context.Context, identifier, callerToken string) (*usecase.ServedFile, error)
}

// Options configures the HTTP handlers
type Options struct {
	// PublicHost prefixes the URL returned for a saved image, e.g. https://img.example.com
	PublicHost     string
	MaxRequestSize int64
}

// Handlers holds the HTTP endpoints
type Handlers struct {
	saver   ImageSaver
	server  ImageServer
	opts    Options
	logger  observability.Logger
	metrics observability.Metrics
}

// NewHandlers creates the HTTP handlers
func NewHandlers(saver ImageSaver, server ImageServer, opts Options, logger observability.Logger, metrics observability.Metrics) *Handlers {
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = 64 * 1024
	}
	return &Handlers{
		saver:   saver,
		server:  server,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}
