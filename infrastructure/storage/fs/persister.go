package fs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"imagesaver/domain/image"
)

const copyBufferSize = 64 * 1024

// Persist streams body into <root>/<identifier><extension>.
//
// Bytes go to a hidden temp file in the same directory which is flushed,
// synced and then hard linked to the final name. The link fails if the name
// is taken, so a published file is never overwritten; with an allocator the
// link is retried under fresh identifiers. The temp file is removed on every
// path. The returned image carries the identifier actually used.
func (s *Store) Persist(ctx context.Context, identifier, extension string, body io.Reader) (*image.StoredImage, error) {
	start := time.Now()

	if !image.IsValidIdentifier(identifier) {
		return nil, image.ErrInternalCause(fmt.Errorf("malformed identifier %q", identifier))
	}
	if extension == "" {
		extension = image.DefaultExtension
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, s.fail(identifier, image.ErrWrite(fmt.Errorf("create root: %w", err)))
	}

	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return nil, s.fail(identifier, image.ErrWrite(fmt.Errorf("create temp file: %w", err)))
	}
	tmpPath := tmp.Name()
	closed := false
	defer func() {
		if !closed {
			_ = tmp.Close()
		}
		if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, iofs.ErrNotExist) {
			s.logger.Warn("Failed to remove temp file",
				"path", tmpPath,
				"error", rmErr)
		}
	}()

	src := &sourceReader{ctx: ctx, r: body, limit: s.maxSize}
	w := bufio.NewWriterSize(tmp, copyBufferSize)

	written, err := io.Copy(w, src)
	if err != nil {
		if src.err != nil {
			return nil, s.fail(identifier, image.ErrTransferCause(ctx, src.err))
		}
		return nil, s.fail(identifier, image.ErrWrite(fmt.Errorf("write temp file: %w", err)))
	}
	if err := w.Flush(); err != nil {
		return nil, s.fail(identifier, image.ErrWrite(fmt.Errorf("flush temp file: %w", err)))
	}
	if err := tmp.Chmod(0o644); err != nil {
		return nil, s.fail(identifier, image.ErrWrite(fmt.Errorf("chmod temp file: %w", err)))
	}
	if err := tmp.Sync(); err != nil {
		return nil, s.fail(identifier, image.ErrWrite(fmt.Errorf("sync temp file: %w", err)))
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return nil, s.fail(identifier, image.ErrWrite(fmt.Errorf("close temp file: %w", err)))
	}

	// Last chance to honour a cancellation before the file becomes visible
	if err := ctx.Err(); err != nil {
		return nil, s.fail(identifier, image.ErrTransferCause(ctx, err))
	}

	identifier, err = s.publish(tmpPath, identifier, extension)
	if err != nil {
		if errors.Is(err, image.ErrIdentifierCollision) {
			return nil, err
		}
		return nil, s.fail(identifier, err)
	}
	name := identifier + extension
	finalPath := filepath.Join(s.root, name)

	s.index.Put(identifier, name)

	s.metrics.IncrementCounter("storage.persist.requests", map[string]string{"result": "success"})
	s.metrics.RecordHistogram("storage.persist.bytes", float64(written), nil)
	s.metrics.RecordHistogram("storage.persist.duration_seconds", time.Since(start).Seconds(), nil)
	s.logger.Info("Image persisted",
		"fid", identifier,
		"file", name,
		"size", written)

	return &image.StoredImage{
		Identifier: identifier,
		Extension:  extension,
		Path:       finalPath,
		Size:       written,
	}, nil
}

// publish links tmpPath to its final name, picking a fresh identifier after
// each collision while the allocator and the attempt budget allow. An
// identifier is taken when any file already uses it as its stem, whatever
// its extension.
func (s *Store) publish(tmpPath, identifier, extension string) (string, error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if s.allocator != nil {
		policy = backoff.WithMaxRetries(&backoff.ZeroBackOff{}, s.relinkAttempts)
	}

	candidate := identifier
	attempt := 0
	err := backoff.Retry(func() error {
		if attempt > 0 {
			candidate = s.allocator.Allocate()
		}
		attempt++

		taken, err := s.identifierTaken(candidate)
		if err != nil {
			return backoff.Permanent(image.ErrWrite(fmt.Errorf("check identifier: %w", err)))
		}
		if !taken {
			err = os.Link(tmpPath, filepath.Join(s.root, candidate+extension))
			if err == nil {
				return nil
			}
		}
		if taken || errors.Is(err, iofs.ErrExist) {
			s.metrics.IncrementCounter("storage.persist.collisions", nil)
			s.logger.Warn("Identifier already in use",
				"fid", candidate,
				"attempt", attempt)
			return image.ErrIdentifierCollision
		}
		return backoff.Permanent(image.ErrWrite(fmt.Errorf("publish file: %w", err)))
	}, policy)
	if err != nil {
		return candidate, err
	}

	syncDir(s.root)
	return candidate, nil
}

// identifierTaken reports whether a published or hand placed file already
// uses identifier as its stem
func (s *Store) identifierTaken(identifier string) (bool, error) {
	if name, ok := s.index.Get(identifier); ok && isRegularFile(filepath.Join(s.root, name)) {
		return true, nil
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if id, ok := identifierOf(entry); ok && id == identifier {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) fail(identifier string, err error) error {
	kind := image.KindOf(err)
	s.metrics.IncrementCounter("storage.persist.requests", map[string]string{"result": string(kind)})
	s.logger.Error("Persist failed",
		"fid", identifier,
		"kind", string(kind),
		"error", err)
	return err
}

// sourceReader checks the context before every read, enforces the size cap
// and remembers read-side failures so they can be told apart from write
// failures after io.Copy returns.
type sourceReader struct {
	ctx   context.Context
	r     io.Reader
	limit int64
	read  int64
	err   error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return 0, err
	}

	n, err := s.r.Read(p)
	s.read += int64(n)
	if s.limit > 0 && s.read > s.limit {
		s.err = image.ErrTooLarge(s.limit)
		return 0, s.err
	}
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

// syncDir makes the new directory entry durable. Failures are ignored, not
// every filesystem supports syncing a directory.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
