// Package server runs the HTTP listener with graceful shutdown.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"imagesaver/domain/observability"
)

// Options configures the HTTP server
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// HTTPServer wraps net/http.Server
type HTTPServer struct {
	server  *http.Server
	logger  observability.Logger
	metrics observability.Metrics
}

// New creates an HTTP server for handler
func New(handler http.Handler, opts Options, logger observability.Logger, metrics observability.Metrics) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       opts.ReadTimeout,
			WriteTimeout:      opts.WriteTimeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Start listens on the configured address and blocks until Stop
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.metrics.IncrementCounter("server.start.failures", nil)
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln and blocks until Stop
func (s *HTTPServer) Serve(ln net.Listener) error {
	s.logger.Info("Starting HTTP server", "address", ln.Addr().String())
	s.metrics.IncrementCounter("server.starts", nil)

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server failed", "error", err)
		return err
	}
	return nil
}

// Stop waits for in-flight requests until ctx expires
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server", "address", s.server.Addr)
	return s.server.Shutdown(ctx)
}
