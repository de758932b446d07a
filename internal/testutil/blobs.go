package testutil

import (
	"context"
	"sync"

	"bloghub/internal/storage"
)

// MemoryBlobStore is an in-memory storage.BlobStore for tests.
type MemoryBlobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	Deleted []string
	// FailStore makes every Store call return this error.
	FailStore error
}

// NewMemoryBlobStore creates an empty store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Store(_ context.Context, data []byte, ext string, opts ...storage.StoreOption) (string, error) {
	if s.FailStore != nil {
		return "", s.FailStore
	}
	path := storage.PublicPrefix + storage.NewName(ext, opts...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[path] = append([]byte(nil), data...)
	return path, nil
}

func (s *MemoryBlobStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, path)
	s.Deleted = append(s.Deleted, path)
	return nil
}

// Get returns the stored bytes for path.
func (s *MemoryBlobStore) Get(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[path]
	return b, ok
}

// Len reports how many blobs are stored.
func (s *MemoryBlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}
