// Package storage keeps uploaded media blobs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// PublicPrefix is the URL path stored blobs are served under.
const PublicPrefix = "/uploads/"

// ErrInvalidPath is returned for paths that do not name a stored blob.
var ErrInvalidPath = errors.New("invalid blob path")

// BlobStore saves and removes media blobs. Store returns the public path of
// the new blob; names are generated so concurrent uploads never collide.
type BlobStore interface {
	Store(ctx context.Context, data []byte, ext string, opts ...StoreOption) (string, error)
	Delete(ctx context.Context, path string) error
}

type storeOptions struct {
	prefix string
}

// StoreOption customizes a single Store call.
type StoreOption func(*storeOptions)

// WithPrefix prepends prefix to the generated blob name, e.g. "user_5_".
func WithPrefix(prefix string) StoreOption {
	return func(o *storeOptions) { o.prefix = prefix }
}

// NewName builds a blob name from the options, a fresh UUID and ext.
func NewName(ext string, opts ...StoreOption) string {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return o.prefix + uuid.NewString() + strings.ToLower(ext)
}

// NameFromPath extracts the blob name from a public path.
func NameFromPath(path string) (string, error) {
	name := strings.TrimPrefix(path, PublicPrefix)
	if name == path || name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return name, nil
}

// DiskStore writes blobs as flat files under a root directory.
type DiskStore struct {
	root string
}

// NewDiskStore creates root if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{root: root}, nil
}

// Root is the directory blobs live in.
func (s *DiskStore) Root() string {
	return s.root
}

func (s *DiskStore) Store(ctx context.Context, data []byte, ext string, opts ...StoreOption) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := NewName(ext, opts...)
	if err := os.WriteFile(filepath.Join(s.root, name), data, 0o600); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return PublicPrefix + name, nil
}

// Delete removes the blob. A blob that is already gone is not an error.
func (s *DiskStore) Delete(_ context.Context, path string) error {
	name, err := NameFromPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.root, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
