package fs

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"imagesaver/domain/image"
)

// Index maps identifiers to file names
type Index struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{entries: make(map[string]string)}
}

// Rebuild replaces the index with the files found in dir
func (i *Index) Rebuild(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	fresh := make(map[string]string, len(entries))
	for _, entry := range entries {
		id, ok := identifierOf(entry)
		if !ok {
			continue
		}
		// ReadDir is sorted, the first name for an identifier wins
		if _, exists := fresh[id]; !exists {
			fresh[id] = entry.Name()
		}
	}

	i.mu.Lock()
	i.entries = fresh
	i.mu.Unlock()

	return len(fresh), nil
}

// Get returns the file name recorded for id
func (i *Index) Get(id string) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	name, ok := i.entries[id]
	return name, ok
}

// Put records the file name for id
func (i *Index) Put(id, name string) {
	i.mu.Lock()
	i.entries[id] = name
	i.mu.Unlock()
}

// Delete evicts id
func (i *Index) Delete(id string) {
	i.mu.Lock()
	delete(i.entries, id)
	i.mu.Unlock()
}

// Len returns the number of indexed identifiers
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// identifierOf returns the identifier a directory entry is stored under.
// Directories, hidden files and in-flight temp files never match.
func identifierOf(entry os.DirEntry) (string, bool) {
	name := entry.Name()
	if entry.IsDir() || strings.HasPrefix(name, ".") {
		return "", false
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if !image.IsValidIdentifier(stem) {
		return "", false
	}
	return stem, true
}
