package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when an object does not exist under a key
var ErrNotFound = errors.New("object not found")

// ProgressFunc receives cumulative bytes sent and the total size.
// It may be called from the transport goroutine.
type ProgressFunc func(sent, total int64)

// PutResult describes a stored object
type PutResult struct {
	Key  string `json:"key"`
	ETag string `json:"etag"`
	Size int64  `json:"size"`
}

// Store is the object storage provider for profile media. A Put is atomic:
// readers see either the previous object under a key or the complete new one.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string, onProgress ProgressFunc) (*PutResult, error)
	// DownloadURL resolves the durable, publicly readable reference for key
	DownloadURL(ctx context.Context, key string) (string, error)
}

// Ensure both implementations satisfy Store
var (
	_ Store = (*S3Store)(nil)
	_ Store = (*MemoryStore)(nil)
)

// ProfilePictureKey is the deterministic object key for a user's picture.
// Re-uploads replace the previous object.
func ProfilePictureKey(userID string) string {
	return fmt.Sprintf("profile-pics/%s", userID)
}
