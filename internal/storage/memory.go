package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used for local runs and tests.
// Hooks let callers inject latency and failures.
type MemoryStore struct {
	baseURL   string
	chunkSize int

	// ChunkDelay pauses between chunks so transfers take observable time
	ChunkDelay time.Duration
	// PutErr, when set, fails Put after the first chunk
	PutErr func(key string) error
	// ResolveErr, when set, fails DownloadURL
	ResolveErr func(key string) error

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
	etag        string
}

// NewMemoryStore creates an empty store. Progress is reported every chunkSize bytes.
func NewMemoryStore(baseURL string, chunkSize int) *MemoryStore {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	if baseURL == "" {
		baseURL = "memory://profiles"
	}
	return &MemoryStore{
		baseURL:   baseURL,
		chunkSize: chunkSize,
		objects:   make(map[string]memoryObject),
	}
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string, onProgress ProgressFunc) (*PutResult, error) {
	total := int64(len(data))
	buf := make([]byte, 0, len(data))

	sent := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(sent+m.chunkSize, len(data))
		buf = append(buf, data[sent:end]...)
		first := sent == 0
		sent = end
		if onProgress != nil {
			onProgress(int64(sent), total)
		}

		if first && m.PutErr != nil {
			if err := m.PutErr(key); err != nil {
				return nil, err
			}
		}

		if m.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.ChunkDelay):
			}
		}
		if sent >= len(data) {
			break
		}
	}

	// commit only after the whole body arrived
	sum := md5.Sum(buf)
	obj := memoryObject{data: buf, contentType: contentType, etag: hex.EncodeToString(sum[:])}

	m.mu.Lock()
	m.objects[key] = obj
	m.mu.Unlock()

	return &PutResult{Key: key, ETag: obj.etag, Size: total}, nil
}

func (m *MemoryStore) DownloadURL(ctx context.Context, key string) (string, error) {
	if m.ResolveErr != nil {
		if err := m.ResolveErr(key); err != nil {
			return "", err
		}
	}

	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return publicURL(m.baseURL, key, obj.etag), nil
}

// Object returns a copy of the stored bytes and content type
func (m *MemoryStore) Object(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", false
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, obj.contentType, true
}
