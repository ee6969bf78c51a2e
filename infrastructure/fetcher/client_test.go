package fetcher

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagesaver/domain/image"
	"imagesaver/domain/observability/mocks"
)

func newTestClient(retries int) *Client {
	return NewClient(Options{
		UserAgent:      "imagesaver-test",
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
	}, mocks.NewNopLogger(), mocks.NewNopMetrics())
}

func TestFetch_Success(t *testing.T) {
	gotUA := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA <- r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "IMAGE/PNG")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	src, err := newTestClient(0).Fetch(context.Background(), srv.URL+"/pics/cat.PNG?size=large#top")
	require.NoError(t, err)
	defer src.Body.Close()

	body, err := io.ReadAll(src.Body)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, ".png", src.Extension)
	assert.Equal(t, "IMAGE/PNG", src.ContentType)
	assert.Equal(t, "imagesaver-test", <-gotUA)
}

func TestFetch_UpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(2).Fetch(context.Background(), srv.URL+"/missing.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, image.ErrUpstream)
	assert.Equal(t, http.StatusNotFound, image.StatusCodeOf(err))
}

func TestFetch_StatusErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(3).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, image.ErrUpstream)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_NotAnImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(0).Fetch(context.Background(), srv.URL+"/page.jpg")
	assert.ErrorIs(t, err, image.ErrNotAnImage)
}

func TestFetch_InvalidURL(t *testing.T) {
	client := newTestClient(0)
	for _, raw := range []string{"", "   ", "not a url", "ftp://example.com/a.png", "file:///etc/passwd", "http://", "://bad"} {
		_, err := client.Fetch(context.Background(), raw)
		assert.ErrorIs(t, err, image.ErrInvalidURL, "url %q", raw)
	}
}

func TestFetch_ConnectionRefusedIsRetriedThenFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = newTestClient(2).Fetch(context.Background(), "http://"+addr+"/a.png")
	assert.ErrorIs(t, err, image.ErrTransferFailed)
}

func TestFetch_DeadlineIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(0).Fetch(ctx, srv.URL+"/slow.png")
	assert.ErrorIs(t, err, image.ErrDownloadTimeout)
}

func TestFetch_CancelledIsTransferFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := newTestClient(0).Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, image.ErrTransferFailed)
}
