// Package snapshot provides content-addressable storage for file
// snapshots. Blobs are keyed by the sha256 digest of their content, so
// storing identical bytes twice yields the same ID and no extra disk.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Get when the ID is unknown or the backing
// blob was removed externally.
var ErrNotFound = errors.New("snapshot not found")

// ID is the content-derived identifier of a stored blob
// (lowercase hex sha256).
type ID string

// Store is a content-addressable blob store rooted at a directory.
// Blobs are immutable once written; there is no update-in-place.
type Store struct {
	dir string
}

// NewStore opens (creating if needed) a blob store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Put stores data and returns its content-derived ID. If a blob with
// the same content already exists the write is skipped.
func (s *Store) Put(data []byte) (ID, error) {
	sum := sha256.Sum256(data)
	id := ID(hex.EncodeToString(sum[:]))

	path := s.blobPath(id)
	if _, err := os.Stat(path); err == nil {
		return id, nil // dedup: content already stored
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating blob directory: %w", err)
	}

	// Write to a temp file in the same directory so os.Rename is atomic.
	tmp, err := os.CreateTemp(filepath.Dir(path), "blob-*.tmp")
	if err != nil {
		return "", fmt.Errorf("storing snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("storing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storing snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storing snapshot: %w", err)
	}
	return id, nil
}

// Get returns the bytes stored under id.
func (s *Store) Get(id ID) ([]byte, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	data, err := os.ReadFile(s.blobPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", id, err)
	}
	return data, nil
}

// Has reports whether a blob exists for id.
func (s *Store) Has(id ID) bool {
	if !validID(id) {
		return false
	}
	_, err := os.Stat(s.blobPath(id))
	return err == nil
}

// Count returns the number of stored blobs. Used by tests and stats.
func (s *Store) Count() (int, error) {
	count := 0
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count, err
}

// blobPath fans blobs out into 256 subdirectories by ID prefix.
func (s *Store) blobPath(id ID) string {
	return filepath.Join(s.dir, string(id[:2]), string(id[2:]))
}

// validID reports whether id has the shape of a sha256 hex digest.
func validID(id ID) bool {
	if len(id) != sha256.Size*2 {
		return false
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
