package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a Sidechain account as far as the profile editor cares
type User struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string `gorm:"not null" json:"display_name"`

	// Download reference of the uploaded picture, never a local path
	ProfilePictureURL string `json:"profile_picture_url"`

	// getstream.io integration
	StreamUserID string `gorm:"index" json:"stream_user_id"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hooks for GORM
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.StreamUserID == "" {
		u.StreamUserID = u.ID // Use same ID for getstream.io
	}
	return nil
}

// DefaultAvatarURL is shown when a user has not uploaded a picture
const DefaultAvatarURL = "https://www.gravatar.com/avatar/?d=mp&s=256"

// AvatarOrDefault returns the profile picture reference or the placeholder
func (u *User) AvatarOrDefault() string {
	if u.ProfilePictureURL == "" {
		return DefaultAvatarURL
	}
	return u.ProfilePictureURL
}
