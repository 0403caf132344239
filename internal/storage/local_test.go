package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/albaranes/config"
)

func TestLocalStoreIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8080/uploads/")
	require.NoError(t, err)

	ctx := context.Background()
	first, err := store.Store(ctx, []byte("v1"), "delivery-note-ALB-2406-0001.pdf", ContentTypePDF)
	require.NoError(t, err)
	second, err := store.Store(ctx, []byte("v2"), "delivery-note-ALB-2406-0001.pdf", ContentTypePDF)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/uploads/delivery-note-ALB-2406-0001.pdf", first)
	assert.Equal(t, first, second)

	data, err := os.ReadFile(filepath.Join(dir, "delivery-note-ALB-2406-0001.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "passwd", SafeName("../../etc/passwd"))
	assert.Equal(t, "signature_ALB_2406.png", SafeName("signature ALB 2406.png"))
	assert.Equal(t, "delivery-note-ALB-2406-0001.pdf", SafeName("delivery-note-ALB-2406-0001.pdf"))
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Provider: "ftp"})
	assert.Error(t, err)

	store, err := New(context.Background(), config.StorageConfig{Provider: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)
}
