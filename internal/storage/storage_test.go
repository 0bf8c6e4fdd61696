package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/datagen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"a.png", "a.png", false},
		{"./a.png", "a.png", false},
		{"  b.jsonl ", "b.jsonl", false},
		{"", "", true},
		{".", "", true},
		{"..", "", true},
		{"../etc/passwd", "", true},
		{"..\\secret", "", true},
		{"nested/a.png", "", true},
		{"/abs.png", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := sanitizeKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileStoreLifecycle(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	key, err := s.Write(context.Background(), "a.png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "a.png", key)
	assert.True(t, s.Exists("a.png"))
	assert.False(t, s.Exists("b.png"))

	f, size, err := s.Open("a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
	assert.Equal(t, "png", string(data))

	_, _, err = s.Open("missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = s.Open("../a.png")
	assert.ErrorIs(t, err, ErrInvalidKey)

	require.NoError(t, s.Delete("a.png"))
	assert.ErrorIs(t, s.Delete("a.png"), ErrNotFound)
}

func TestFileStoreWriteCanceled(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Write(ctx, "a.png", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileStoreListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"train_1.jsonl", "train_2.jsonl", "train_3.jsonl"} {
		_, err := s.Write(context.Background(), name, []byte(name))
		require.NoError(t, err)
		mod := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(filepath.Join(dir, name), mod, mod))
	}
	_, err = s.Write(context.Background(), "notes.txt", []byte("x"))
	require.NoError(t, err)

	entries, err := s.List("*.jsonl")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "train_3.jsonl", entries[0].Name)
	assert.Equal(t, "train_1.jsonl", entries[2].Name)
	assert.Equal(t, int64(len("train_3.jsonl")), entries[0].Size)
}

func TestUploadIndex(t *testing.T) {
	idx := NewUploadIndex()
	idx.Set(models.UploadedFile{SavedName: "u1.png", OriginalName: "cat.png", Size: 3})

	f, ok := idx.Get("u1.png")
	require.True(t, ok)
	assert.Equal(t, "cat.png", f.OriginalName)

	all := idx.All()
	delete(all, "u1.png")
	_, ok = idx.Get("u1.png")
	assert.True(t, ok, "All returns a copy")

	idx.Delete("u1.png")
	_, ok = idx.Get("u1.png")
	assert.False(t, ok)
}
