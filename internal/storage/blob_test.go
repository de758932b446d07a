package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStore_StoreAndDelete(t *testing.T) {
	root := filepath.Join(t.TempDir(), "uploads")
	s, err := NewDiskStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	path, err := s.Store(ctx, []byte("hello"), "WEBP", WithPrefix("user_7_"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "/uploads/user_7_"))
	assert.True(t, strings.HasSuffix(path, ".webp"))

	name, err := NameFromPath(path)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(root, name))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	other, err := s.Store(ctx, []byte("hello"), ".webp")
	require.NoError(t, err)
	assert.NotEqual(t, path, other)

	require.NoError(t, s.Delete(ctx, path))
	_, err = os.Stat(filepath.Join(root, name))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Delete(ctx, path), "deleting twice is a no-op")
}

func TestNameFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"/uploads/abc.webp", "abc.webp", false},
		{"/uploads/../etc/passwd", "", true},
		{"/uploads/", "", true},
		{"/uploads/.hidden", "", true},
		{"abc.webp", "", true},
		{"/static/abc.webp", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := NameFromPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
