package fs

import (
	"context"
	"os"
	"path/filepath"

	"imagesaver/domain/image"
)

// Resolve returns the path of the file stored under identifier. Every miss,
// including a missing root or an unreadable entry, is reported as NotFound.
func (s *Store) Resolve(ctx context.Context, identifier string) (string, error) {
	if !image.IsValidIdentifier(identifier) {
		return "", image.ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return "", image.ErrNotFound
	}

	if name, ok := s.index.Get(identifier); ok {
		path := filepath.Join(s.root, name)
		if isRegularFile(path) {
			s.metrics.IncrementCounter("storage.resolve.requests", map[string]string{"source": "index"})
			return path, nil
		}
		s.index.Delete(identifier)
		s.logger.Warn("Evicted stale index entry",
			"fid", identifier,
			"file", name)
	}

	// Files placed by hand are not indexed until found once
	entries, err := os.ReadDir(s.root)
	if err != nil {
		s.metrics.IncrementCounter("storage.resolve.requests", map[string]string{"source": "miss"})
		return "", image.ErrNotFound
	}
	for _, entry := range entries {
		id, ok := identifierOf(entry)
		if !ok || id != identifier {
			continue
		}
		path := filepath.Join(s.root, entry.Name())
		if !isRegularFile(path) {
			continue
		}
		s.index.Put(identifier, entry.Name())
		s.metrics.IncrementCounter("storage.resolve.requests", map[string]string{"source": "scan"})
		return path, nil
	}

	s.metrics.IncrementCounter("storage.resolve.requests", map[string]string{"source": "miss"})
	return "", image.ErrNotFound
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
