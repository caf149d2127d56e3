package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetContentTypeForImage(t *testing.T) {
	tests := []struct {
		extension string
		expected  string
	}{
		{".jpg", "image/jpeg"},
		{".JPG", "image/jpeg"},
		{".jpeg", "image/jpeg"},
		{".png", "image/png"},
		{".gif", "image/gif"},
		{".webp", "image/webp"},
		{".heic", "image/heic"},
		{".bmp", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.extension, func(t *testing.T) {
			assert.Equal(t, tt.expected, getContentTypeForImage(tt.extension))
		})
	}
}

func TestProfilePictureKey(t *testing.T) {
	assert.Equal(t, "profile-pics/abc", ProfilePictureKey("abc"))
	assert.Equal(t, ProfilePictureKey("abc"), ProfilePictureKey("abc"))
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.test/profile-pics/u1", publicURL("https://cdn.test/", "profile-pics/u1", ""))
	assert.Equal(t, "https://cdn.test/profile-pics/u1?v=abc123", publicURL("https://cdn.test", "profile-pics/u1", "abc123"))
	assert.Equal(t, "abc", trimETag(`"abc"`))
}

func TestProgressReaderNeverRegresses(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 100)
	var mu sync.Mutex
	var seen []int64
	pr := newProgressReader(data, func(sent, total int64) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, int64(100), total)
		seen = append(seen, sent)
	})

	buf := make([]byte, 30)
	_, _ = pr.Read(buf)
	_, _ = pr.Read(buf)

	// the SDK rewinds the body on retry
	_, err := pr.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = io.ReadAll(pr)
	require.NoError(t, err)

	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1])
	}
	assert.Equal(t, int64(100), seen[len(seen)-1])
}

func TestMemoryStorePutReportsProgress(t *testing.T) {
	store := NewMemoryStore("https://cdn.test", 10)
	data := []byte(strings.Repeat("a", 25))

	var seen []int64
	res, err := store.Put(context.Background(), "profile-pics/u1", data, "image/png", func(sent, total int64) {
		assert.Equal(t, int64(25), total)
		seen = append(seen, sent)
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 20, 25}, seen)
	assert.Equal(t, int64(25), res.Size)
	assert.NotEmpty(t, res.ETag)

	got, ct, ok := store.Object("profile-pics/u1")
	require.True(t, ok)
	assert.Equal(t, data, got)
	assert.Equal(t, "image/png", ct)

	ref, err := store.DownloadURL(context.Background(), "profile-pics/u1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/profile-pics/u1?v="+res.ETag, ref)
}

func TestMemoryStoreReuploadChangesReference(t *testing.T) {
	store := NewMemoryStore("", 0)
	ctx := context.Background()

	_, err := store.Put(ctx, "k", []byte("first"), "image/png", nil)
	require.NoError(t, err)
	first, err := store.DownloadURL(ctx, "k")
	require.NoError(t, err)

	_, err = store.Put(ctx, "k", []byte("second"), "image/png", nil)
	require.NoError(t, err)
	second, err := store.DownloadURL(ctx, "k")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestMemoryStoreCancelledPutKeepsPreviousObject(t *testing.T) {
	store := NewMemoryStore("", 4)
	store.ChunkDelay = 20 * time.Millisecond

	_, err := store.Put(context.Background(), "k", []byte("old"), "image/png", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	_, err = store.Put(ctx, "k", bytes.Repeat([]byte("n"), 64), "image/png", nil)
	assert.ErrorIs(t, err, context.Canceled)

	got, _, ok := store.Object("k")
	require.True(t, ok)
	assert.Equal(t, []byte("old"), got)
}

func TestMemoryStoreFailureHooks(t *testing.T) {
	store := NewMemoryStore("", 0)
	boom := errors.New("boom")
	ctx := context.Background()

	store.PutErr = func(string) error { return boom }
	_, err := store.Put(ctx, "k", []byte("data"), "", nil)
	assert.ErrorIs(t, err, boom)
	_, _, ok := store.Object("k")
	assert.False(t, ok)

	store.PutErr = nil
	_, err = store.Put(ctx, "k", []byte("data"), "", nil)
	require.NoError(t, err)

	store.ResolveErr = func(string) error { return boom }
	_, err = store.DownloadURL(ctx, "k")
	assert.ErrorIs(t, err, boom)
}

func TestMemoryStoreMissingObject(t *testing.T) {
	store := NewMemoryStore("", 0)

	_, err := store.DownloadURL(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, ok := store.Object("missing")
	assert.False(t, ok)
}

func TestMemoryStoreEmptyBody(t *testing.T) {
	store := NewMemoryStore("", 0)
	var calls int
	res, err := store.Put(context.Background(), "empty", nil, "", func(sent, total int64) {
		calls++
		assert.Zero(t, sent)
		assert.Zero(t, total)
	})
	require.NoError(t, err)
	assert.Zero(t, res.Size)
	assert.Equal(t, 1, calls)
}
