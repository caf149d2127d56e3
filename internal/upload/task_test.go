package upload

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "github.com/zfogg/sidechain/profiles/internal/errors"
	"github.com/zfogg/sidechain/profiles/internal/media"
	"github.com/zfogg/sidechain/profiles/internal/storage"
)

const testKey = "profile-pics/user-1"

func writeMedia(t *testing.T, size int) media.LocalMediaRef {
	t.Helper()
	path := filepath.Join(t.TempDir(), "avatar.png")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x89}, size), 0600))
	return media.LocalMediaRef{URI: path, MimeHint: "image/png", Size: int64(size)}
}

func waitResult(t *testing.T, h *Handle) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := h.Wait(ctx)
	require.NoError(t, err, "upload did not finish")
	return res
}

func TestUploadSuccess(t *testing.T) {
	store := storage.NewMemoryStore("https://cdn.test", 100)
	ref := writeMedia(t, 450)

	h := NewTask(store).Start(context.Background(), ref, testKey)
	events := slices.Collect(h.Progress())
	res := waitResult(t, h)

	require.Equal(t, StatusSuccess, res.Status)
	assert.Contains(t, res.DownloadRef, "https://cdn.test/profile-pics/user-1?v=")
	assert.NoError(t, res.Err)

	require.NotEmpty(t, events)
	assert.Equal(t, Progress{0, 450}, events[0])
	assert.Equal(t, Progress{450, 450}, events[len(events)-1])
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].BytesTransferred, events[i-1].BytesTransferred)
		assert.LessOrEqual(t, events[i].BytesTransferred, events[i].BytesTotal)
	}

	stored, ct, ok := store.Object(testKey)
	require.True(t, ok)
	assert.Len(t, stored, 450)
	assert.Equal(t, "image/png", ct)
}

func TestProgressRestartsOnEachCall(t *testing.T) {
	store := storage.NewMemoryStore("", 64)
	h := NewTask(store).Start(context.Background(), writeMedia(t, 300), testKey)
	waitResult(t, h)

	first := slices.Collect(h.Progress())
	second := slices.Collect(h.Progress())
	assert.Equal(t, first, second)
	assert.Equal(t, Progress{0, 300}, first[0])
}

func TestProgressConcurrentConsumers(t *testing.T) {
	store := storage.NewMemoryStore("", 16)
	store.ChunkDelay = time.Millisecond
	h := NewTask(store).Start(context.Background(), writeMedia(t, 160), testKey)

	var wg sync.WaitGroup
	seqs := make([][]Progress, 3)
	for i := range seqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seqs[i] = slices.Collect(h.Progress())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, StatusSuccess, waitResult(t, h).Status)
	assert.Equal(t, seqs[0], seqs[1])
	assert.Equal(t, seqs[0], seqs[2])
}

func TestProgressEarlyBreak(t *testing.T) {
	store := storage.NewMemoryStore("", 10)
	h := NewTask(store).Start(context.Background(), writeMedia(t, 100), testKey)

	var got []Progress
	for p := range h.Progress() {
		got = append(got, p)
		break
	}
	assert.Equal(t, []Progress{{0, 100}}, got)
	waitResult(t, h)
}

func TestUploadFailures(t *testing.T) {
	boom := errors.New("connection reset by peer")

	tests := []struct {
		name  string
		setup func(*storage.MemoryStore)
		ref   func(t *testing.T) media.LocalMediaRef
		kind  apierrors.Kind
	}{
		{
			name:  "transfer error",
			setup: func(s *storage.MemoryStore) { s.PutErr = func(string) error { return boom } },
			ref:   func(t *testing.T) media.LocalMediaRef { return writeMedia(t, 10) },
			kind:  apierrors.KindUploadTransfer,
		},
		{
			name:  "reference resolution error",
			setup: func(s *storage.MemoryStore) { s.ResolveErr = func(string) error { return boom } },
			ref:   func(t *testing.T) media.LocalMediaRef { return writeMedia(t, 10) },
			kind:  apierrors.KindReferenceResolution,
		},
		{
			name:  "unreadable local file",
			setup: func(*storage.MemoryStore) {},
			ref: func(t *testing.T) media.LocalMediaRef {
				return media.LocalMediaRef{URI: filepath.Join(t.TempDir(), "gone.png")}
			},
			kind: apierrors.KindUploadTransfer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore("", 0)
			tt.setup(store)

			h := NewTask(store).Start(context.Background(), tt.ref(t), testKey)
			res := waitResult(t, h)

			assert.Equal(t, StatusFailure, res.Status)
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.kind, apierrors.KindOf(res.Err))
			assert.Empty(t, res.DownloadRef)
		})
	}
}

type blankRefStore struct{ *storage.MemoryStore }

func (blankRefStore) DownloadURL(context.Context, string) (string, error) { return "", nil }

func TestEmptyReferenceIsResolutionFailure(t *testing.T) {
	store := blankRefStore{storage.NewMemoryStore("", 0)}
	h := NewTask(store).Start(context.Background(), writeMedia(t, 10), testKey)

	res := waitResult(t, h)
	assert.Equal(t, StatusFailure, res.Status)
	assert.Equal(t, apierrors.KindReferenceResolution, res.Kind)
	assert.ErrorIs(t, res.Err, ErrEmptyReference)
}

func TestCancelMidTransfer(t *testing.T) {
	store := storage.NewMemoryStore("", 10)
	store.ChunkDelay = 20 * time.Millisecond
	_, err := store.Put(context.Background(), testKey, []byte("previous"), "image/png", nil)
	require.NoError(t, err)

	h := NewTask(store).Start(context.Background(), writeMedia(t, 1000), testKey)
	for p := range h.Progress() {
		if p.BytesTransferred > 0 {
			h.Cancel()
			break
		}
	}

	res := waitResult(t, h)
	assert.Equal(t, StatusCancelled, res.Status)
	assert.NoError(t, res.Err)

	stored, _, ok := store.Object(testKey)
	require.True(t, ok)
	assert.Equal(t, []byte("previous"), stored, "a cancelled upload must not replace the stored object")

	// cancelling again after the result is a no-op
	h.Cancel()
	assert.Equal(t, StatusCancelled, h.Result().Status)
}

func TestCancelAfterSuccessKeepsSuccess(t *testing.T) {
	store := storage.NewMemoryStore("", 0)
	h := NewTask(store).Start(context.Background(), writeMedia(t, 10), testKey)
	require.Equal(t, StatusSuccess, waitResult(t, h).Status)

	h.Cancel()
	assert.Equal(t, StatusSuccess, h.Result().Status)
}

func TestWithTimeout(t *testing.T) {
	store := storage.NewMemoryStore("", 1)
	store.ChunkDelay = 50 * time.Millisecond

	h := WithTimeout(NewTask(store).Start(context.Background(), writeMedia(t, 100), testKey), 30*time.Millisecond)
	res := waitResult(t, h)

	assert.Equal(t, StatusFailure, res.Status)
	assert.Equal(t, apierrors.KindTimeout, res.Kind)
	_, _, ok := store.Object(testKey)
	assert.False(t, ok)
}

func TestWithTimeoutDisabled(t *testing.T) {
	store := storage.NewMemoryStore("", 0)
	h := NewTask(store).Start(context.Background(), writeMedia(t, 10), testKey)
	assert.Same(t, h, WithTimeout(h, 0))
	assert.Equal(t, StatusSuccess, waitResult(t, h).Status)
}

func TestParentDeadlineIsTimeout(t *testing.T) {
	store := storage.NewMemoryStore("", 1)
	store.ChunkDelay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	h := NewTask(store).Start(ctx, writeMedia(t, 100), testKey)

	res := waitResult(t, h)
	assert.Equal(t, StatusFailure, res.Status)
	assert.Equal(t, apierrors.KindTimeout, res.Kind)
}

func TestParentCancelIsCancelled(t *testing.T) {
	store := storage.NewMemoryStore("", 1)
	store.ChunkDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	h := NewTask(store).Start(ctx, writeMedia(t, 100), testKey)
	time.AfterFunc(20*time.Millisecond, cancel)

	assert.Equal(t, StatusCancelled, waitResult(t, h).Status)
}

func TestEmitClampsAndDropsRegressions(t *testing.T) {
	h := newHandle("k", func() {})
	h.emit(Progress{0, 10})
	h.emit(Progress{6, 10})
	h.emit(Progress{4, 10})
	h.emit(Progress{6, 10})
	h.emit(Progress{15, 10})
	h.finish(Success("ref"))
	h.emit(Progress{10, 10})

	assert.Equal(t, []Progress{{0, 10}, {6, 10}, {10, 10}}, slices.Collect(h.Progress()))
	latest, ok := h.Latest()
	assert.True(t, ok)
	assert.Equal(t, 1.0, latest.Fraction())
	assert.False(t, h.finish(Cancelled()), "result resolves once")
	assert.Equal(t, StatusSuccess, h.Result().Status)
}

func TestWaitRespectsContext(t *testing.T) {
	h := newHandle("k", func() {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
