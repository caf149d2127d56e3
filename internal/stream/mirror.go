package stream

import (
	"context"
	"fmt"

	chat "github.com/GetStream/stream-chat-go/v5"
	"github.com/zfogg/sidechain/profiles/internal/models"
)

// UserUpserter is the slice of the chat client the mirror uses
type UserUpserter interface {
	UpsertUser(ctx context.Context, user *chat.User) (*chat.UpsertUserResponse, error)
}

// ProfileMirror keeps the chat user's name and avatar in step with the profile
type ProfileMirror struct {
	chat UserUpserter
}

// NewProfileMirror creates a mirror backed by a Stream chat client
func NewProfileMirror(apiKey, apiSecret string) (*ProfileMirror, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("STREAM_API_KEY and STREAM_API_SECRET must be set")
	}
	chatClient, err := chat.NewClient(apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stream.io Chat client: %w", err)
	}
	return &ProfileMirror{chat: chatClient}, nil
}

// NewProfileMirrorWith wraps an existing client
func NewProfileMirrorWith(c UserUpserter) *ProfileMirror {
	return &ProfileMirror{chat: c}
}

// MirrorProfile upserts the chat user for u
func (m *ProfileMirror) MirrorProfile(ctx context.Context, u *models.User) error {
	id := u.StreamUserID
	if id == "" {
		id = u.ID
	}
	name := u.DisplayName
	if name == "" {
		name = u.Username
	}

	_, err := m.chat.UpsertUser(ctx, &chat.User{
		ID:    id,
		Name:  name,
		Image: u.ProfilePictureURL,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert chat user: %w", err)
	}
	return nil
}
