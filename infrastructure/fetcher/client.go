// Package fetcher opens and validates upstream image transfers over HTTP(S).
package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"imagesaver/domain/image"
	"imagesaver/domain/observability"
)

// Options configures the fetcher
type Options struct {
	UserAgent      string
	MaxRetries     int
	InitialBackoff time.Duration
}

// Client implements image.Fetcher on net/http
type Client struct {
	client  *http.Client
	opts    Options
	logger  observability.Logger
	metrics observability.Metrics
}

// NewClient creates a fetcher. The overall deadline comes from the caller's
// context, the client itself sets no timeout.
func NewClient(opts Options, logger observability.Logger, metrics observability.Metrics) *Client {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 250 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	return &Client{
		client:  &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch issues a GET for rawURL and returns the open body once status and
// Content-Type have been validated. Only connection failures are retried.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*image.Source, error) {
	target, err := parseSourceURL(rawURL)
	if err != nil {
		c.metrics.IncrementCounter("fetch.rejected", map[string]string{"reason": string(image.KindInvalidURL)})
		return nil, err
	}

	start := time.Now()
	attempts := 0

	operation := func() (*http.Response, error) {
		attempts++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
		if err != nil {
			return nil, backoff.Permanent(image.ErrInvalidURLf("build request: %w", err))
		}
		if c.opts.UserAgent != "" {
			req.Header.Set("User-Agent", c.opts.UserAgent)
		}
		req.Header.Set("Accept", "image/*")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(image.ErrTransferCause(ctx, err))
			}
			return nil, image.ErrTransferCause(ctx, err)
		}
		return resp, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.InitialBackoff
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.opts.MaxRetries)), ctx)

	resp, err := backoff.RetryNotifyWithData(operation, retry, func(err error, wait time.Duration) {
		c.logger.Warn("Upstream connection failed, retrying",
			"host", target.Host,
			"attempt", attempts,
			"wait", wait.String(),
			"error", err)
	})
	if err != nil {
		// The backoff loop reports the context error when it gives up between attempts
		if !errors.As(err, new(*image.Error)) {
			err = image.ErrTransferCause(ctx, err)
		}
		c.recordFailure(err, attempts)
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		err := image.ErrUpstreamStatus(resp.StatusCode)
		c.recordFailure(err, attempts)
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if !isImageContentType(contentType) {
		resp.Body.Close()
		err := image.ErrNotAnImageType(contentType)
		c.recordFailure(err, attempts)
		return nil, err
	}

	c.metrics.IncrementCounter("fetch.requests", map[string]string{"result": "success"})
	c.metrics.RecordHistogram("fetch.header_latency_seconds", time.Since(start).Seconds(), nil)
	c.logger.Debug("Upstream accepted",
		"host", target.Host,
		"content_type", contentType,
		"content_length", resp.ContentLength,
		"attempts", attempts)

	return &image.Source{
		URL:           rawURL,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Extension:     image.ExtensionFromURL(rawURL),
		Body:          resp.Body,
	}, nil
}

func (c *Client) recordFailure(err error, attempts int) {
	kind := image.KindOf(err)
	c.metrics.IncrementCounter("fetch.requests", map[string]string{"result": string(kind)})
	c.logger.Info("Upstream rejected",
		"kind", string(kind),
		"upstream_status", image.StatusCodeOf(err),
		"attempts", attempts,
		"error", err)
}

// parseSourceURL accepts absolute http and https URLs with a host
func parseSourceURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, image.ErrInvalidURLf("empty url")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, image.ErrInvalidURLf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, image.ErrInvalidURLf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, image.ErrInvalidURLf("missing host")
	}

	return u, nil
}

func isImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}
