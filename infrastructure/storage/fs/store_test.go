package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagesaver/domain/image"
	"imagesaver/domain/observability/mocks"
)

const (
	idA = "AAAAAAAAAAAAAAAAAAAAAAAAAA"
	idB = "BBBBBBBBBBBBBBBBBBBBBBBBBB"
	idC = "CCCCCCCCCCCCCCCCCCCCCCCCCC"
)

func newTestStore(t *testing.T, root string, maxSize int64) *Store {
	t.Helper()
	store, err := NewStore(root, maxSize, mocks.NewNopLogger(), mocks.NewNopMetrics())
	require.NoError(t, err)
	return store
}

// failingReader yields some bytes and then a network style error
type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPersist_WritesExactBytes(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "images")
	store := newTestStore(t, root, 0)

	payload := bytes.Repeat([]byte("0123456789"), 20000)
	stored, err := store.Persist(context.Background(), idA, ".png", bytes.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, idA, stored.Identifier)
	assert.Equal(t, ".png", stored.Extension)
	assert.Equal(t, int64(len(payload)), stored.Size)
	assert.Equal(t, filepath.Join(root, idA+".png"), stored.Path)

	got, err := os.ReadFile(stored.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, []string{idA + ".png"}, listDir(t, root))
}

func TestPersist_MidStreamFailureLeavesNothing(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, root, 0)

	body := &failingReader{data: []byte("partial"), err: errors.New("connection reset by peer")}
	_, err := store.Persist(context.Background(), idA, ".jpg", body)

	assert.ErrorIs(t, err, image.ErrTransferFailed)
	assert.Empty(t, listDir(t, root))

	_, err = store.Resolve(context.Background(), idA)
	assert.ErrorIs(t, err, image.ErrNotFound)
}

func TestPersist_DeadlineDuringTransferIsTimeout(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, root, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	_, err := store.Persist(ctx, idA, ".jpg", strings.NewReader("data"))
	assert.ErrorIs(t, err, image.ErrDownloadTimeout)
	assert.Empty(t, listDir(t, root))
}

func TestPersist_CancelledIsTransferFailed(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, root, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Persist(ctx, idA, ".jpg", strings.NewReader("data"))
	assert.ErrorIs(t, err, image.ErrTransferFailed)
	assert.Empty(t, listDir(t, root))
}

func TestPersist_TooLarge(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, root, 1024)

	_, err := store.Persist(context.Background(), idA, ".jpg", bytes.NewReader(make([]byte, 4096)))
	assert.ErrorIs(t, err, image.ErrImageTooLarge)
	assert.Empty(t, listDir(t, root))

	stored, err := store.Persist(context.Background(), idB, ".jpg", bytes.NewReader(make([]byte, 1024)))
	require.NoError(t, err)
	assert.Equal(t, int64(1024), stored.Size)
}

func TestPersist_CollisionNeverOverwrites(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, root, 0)

	_, err := store.Persist(context.Background(), idA, ".png", strings.NewReader("first"))
	require.NoError(t, err)

	_, err = store.Persist(context.Background(), idA, ".png", strings.NewReader("second"))
	assert.ErrorIs(t, err, image.ErrIdentifierCollision)

	got, err := os.ReadFile(filepath.Join(root, idA+".png"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
	assert.Equal(t, []string{idA + ".png"}, listDir(t, root))
}

func TestPersist_RecreatesRemovedRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "images")
	store := newTestStore(t, root, 0)
	require.NoError(t, os.RemoveAll(root))

	_, err := store.Persist(context.Background(), idA, ".gif", strings.NewReader("gif"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, idA+".gif"))
}

func TestPersist_ConcurrentDistinctIdentifiers(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, root, 0)

	ids := []string{idA, idB, idC}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := store.Persist(context.Background(), id, ".png", strings.NewReader(id))
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		path, err := store.Resolve(context.Background(), id)
		require.NoError(t, err)
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, id, string(got))
	}
}

func TestResolve_MissingRootIsNotFound(t *testing.T) {
	root := filepath.Join(t.TempDir(), "images")
	store := newTestStore(t, root, 0)
	require.NoError(t, os.RemoveAll(root))

	_, err := store.Resolve(context.Background(), idA)
	assert.ErrorIs(t, err, image.ErrNotFound)
}

func TestResolve_ExactStemMatchOnly(t *testing.T) {
	root := t.TempDir()
	prefix := idA[:25]
	require.NoError(t, os.WriteFile(filepath.Join(root, prefix+"B.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".tmp-"+idA), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, idB+".png"), 0o755))
	store := newTestStore(t, root, 0)

	_, err := store.Resolve(context.Background(), idA)
	assert.ErrorIs(t, err, image.ErrNotFound)

	_, err = store.Resolve(context.Background(), idB)
	assert.ErrorIs(t, err, image.ErrNotFound)

	_, err = store.Resolve(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, image.ErrNotFound)
}

func TestResolve_FindsFilesAddedAfterStartup(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, root, 0)

	require.NoError(t, os.WriteFile(filepath.Join(root, idC+".webp"), []byte("webp"), 0o644))

	path, err := store.Resolve(context.Background(), idC)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, idC+".webp"), path)

	name, ok := store.index.Get(idC)
	assert.True(t, ok)
	assert.Equal(t, idC+".webp", name)
}

func TestResolve_IndexedAtStartupAndStaleEvicted(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, idA+".png"), []byte("png"), 0o644))
	store := newTestStore(t, root, 0)
	assert.Equal(t, 1, store.index.Len())

	path, err := store.Resolve(context.Background(), idA)
	require.NoError(t, err)
	f, err := os.Open(path)
	require.NoError(t, err)
	got, _ := io.ReadAll(f)
	f.Close()
	assert.Equal(t, "png", string(got))

	require.NoError(t, os.Remove(path))
	_, err = store.Resolve(context.Background(), idA)
	assert.ErrorIs(t, err, image.ErrNotFound)
	assert.Equal(t, 0, store.index.Len())
}

type sequenceAllocator struct {
	mu  sync.Mutex
	ids []string
}

func (s *sequenceAllocator) Allocate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.ids[0]
	s.ids = s.ids[1:]
	return id
}

func TestPersist_CollisionRelinksUnderFreshIdentifier(t *testing.T) {
	root := t.TempDir()
	alloc := &sequenceAllocator{ids: []string{idB, idC}}
	store, err := NewStore(root, 0, mocks.NewNopLogger(), mocks.NewNopMetrics(), WithAllocator(alloc))
	require.NoError(t, err)

	_, err = store.Persist(context.Background(), idA, ".png", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = store.Persist(context.Background(), idB, ".png", strings.NewReader("second"))
	require.NoError(t, err)

	// idA and then idB are taken, idC is free
	stored, err := store.Persist(context.Background(), idA, ".png", strings.NewReader("third"))
	require.NoError(t, err)
	assert.Equal(t, idC, stored.Identifier)

	got, err := os.ReadFile(filepath.Join(root, idA+".png"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
	assert.Len(t, listDir(t, root), 3)
}

func TestPersist_CollisionBudgetExhausted(t *testing.T) {
	root := t.TempDir()
	alloc := &sequenceAllocator{ids: []string{idA, idA}}
	store, err := NewStore(root, 0, mocks.NewNopLogger(), mocks.NewNopMetrics(),
		WithAllocator(alloc), WithRelinkAttempts(2))
	require.NoError(t, err)

	_, err = store.Persist(context.Background(), idA, ".png", strings.NewReader("first"))
	require.NoError(t, err)

	_, err = store.Persist(context.Background(), idA, ".png", strings.NewReader("second"))
	assert.ErrorIs(t, err, image.ErrIdentifierCollision)
	assert.Equal(t, []string{idA + ".png"}, listDir(t, root))
}

func TestPersist_SameStemOtherExtensionIsCollision(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, idA+".png"), []byte("original"), 0o644))
	store := newTestStore(t, root, 0)

	_, err := store.Persist(context.Background(), idA, ".jpg", strings.NewReader("intruder"))
	assert.ErrorIs(t, err, image.ErrIdentifierCollision)
	assert.Equal(t, []string{idA + ".png"}, listDir(t, root))

	path, err := store.Resolve(context.Background(), idA)
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))
}

func TestPersist_SameStemPlacedAfterStartupRelinks(t *testing.T) {
	root := t.TempDir()
	alloc := &sequenceAllocator{ids: []string{idB}}
	store, err := NewStore(root, 0, mocks.NewNopLogger(), mocks.NewNopMetrics(), WithAllocator(alloc))
	require.NoError(t, err)

	// Not in the index, only visible to a directory scan
	require.NoError(t, os.WriteFile(filepath.Join(root, idA+".gif"), []byte("gif"), 0o644))

	stored, err := store.Persist(context.Background(), idA, ".jpg", strings.NewReader("jpg"))
	require.NoError(t, err)
	assert.Equal(t, idB, stored.Identifier)
	assert.ElementsMatch(t, []string{idA + ".gif", idB + ".jpg"}, listDir(t, root))
}
