package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predictstats/internal/adapters/storage"
)

func TestFSStore_Contract(t *testing.T) {
	s, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)

	testBlobStoreContract(t, s)
}

func TestFSStore_WritesPlainFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := storage.NewFSStore(filepath.Join(dir, "public", "data"))
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), "stats.json", []byte(`{"a":1}`)))

	data, err := os.ReadFile(filepath.Join(dir, "public", "data", "stats.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "public", "data"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no quedan temporales")
}

func TestFSStore_RejectsPathTraversal(t *testing.T) {
	s, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"../etc/passwd", "a/b.json", `..\x`, "..", ".hidden", ""} {
		err := s.Put(ctx, key, []byte("x"))
		assert.True(t, errors.Is(err, storage.ErrInvalidKey), key)

		_, _, err = s.Get(ctx, key)
		assert.True(t, errors.Is(err, storage.ErrInvalidKey), key)
	}
}
