package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jobfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestDiskStore_StoreAndRelease(t *testing.T) {
	dir := t.TempDir()
	store := NewDiskStore(dir, "/media/", 1)
	ctx := context.Background()

	media, err := store.Store(ctx, Upload{Filename: "logo.png", Content: pngBytes})
	require.NoError(t, err)
	assert.Equal(t, models.MediaTypeImage, media.Type)
	assert.True(t, strings.HasPrefix(media.URL, "/media/"))
	assert.True(t, strings.HasSuffix(media.URL, ".png"))
	assert.Equal(t, "logo.png", media.Filename)
	assert.Equal(t, int64(len(pngBytes)), media.Size)

	onDisk := filepath.Join(dir, filepath.Base(media.URL))
	_, err = os.Stat(onDisk)
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, media.URL))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))

	// releasing twice is fine
	assert.NoError(t, store.Release(ctx, media.URL))
}

func TestDiskStore_Validation(t *testing.T) {
	store := NewDiskStore(t.TempDir(), "", 1)
	ctx := context.Background()

	_, err := store.Store(ctx, Upload{Filename: "empty.png"})
	assert.True(t, models.HasCode(err, models.CodeValidation))

	_, err = store.Store(ctx, Upload{Filename: "big.pdf", Content: make([]byte, 1024*1024+1)})
	assert.True(t, models.HasCode(err, models.CodeValidation))

	_, err = store.Store(ctx, Upload{Filename: "script.sh", Content: []byte("#!/bin/sh\necho hi\n")})
	assert.True(t, models.HasCode(err, models.CodeValidation))
}

func TestDiskStore_ReleaseIgnoresForeignURLs(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	store := NewDiskStore(filepath.Join(dir, "media"), "/media", 1)
	ctx := context.Background()

	assert.NoError(t, store.Release(ctx, "https://cdn.example.com/a.png"))
	assert.NoError(t, store.Release(ctx, "/media/../keep.txt"))
	_, err := os.Stat(outside)
	assert.NoError(t, err)
}

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		detected string
		ext      string
		want     models.MediaType
		ok       bool
	}{
		{"image/png", ".png", models.MediaTypeImage, true},
		{"video/mp4", ".mp4", models.MediaTypeVideo, true},
		{"application/pdf", ".pdf", models.MediaTypeDocument, true},
		{"application/zip", ".docx", models.MediaTypeDocument, true},
		{"application/zip", ".zip", "", false},
		{"text/plain; charset=utf-8", ".txt", models.MediaTypeDocument, true},
		{"text/plain; charset=utf-8", ".sh", "", false},
	}
	for _, tt := range tests {
		got, ok := classify(tt.detected, tt.ext)
		assert.Equal(t, tt.ok, ok, tt.detected+tt.ext)
		assert.Equal(t, tt.want, got, tt.detected+tt.ext)
	}
}
