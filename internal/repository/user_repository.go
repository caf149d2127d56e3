package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/zfogg/sidechain/profiles/internal/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidInput = errors.New("invalid input")
)

// ProfileFields is a field-scoped profile update. Nil fields are left
// untouched in storage.
type ProfileFields struct {
	DisplayName       *string
	ProfilePictureURL *string
}

// Empty reports whether no field is set
func (f ProfileFields) Empty() bool {
	return f.DisplayName == nil && f.ProfilePictureURL == nil
}

// Columns lists the column names that the update touches
func (f ProfileFields) Columns() []string {
	var cols []string
	if f.DisplayName != nil {
		cols = append(cols, "display_name")
	}
	if f.ProfilePictureURL != nil {
		cols = append(cols, "profile_picture_url")
	}
	return cols
}

// UserRepository handles the database operations the profile service needs
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// ApplyProfileFields writes only the set fields and returns the reloaded user
	ApplyProfileFields(ctx context.Context, userID string, fields ProfileFields) (*models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername gets a user by username (case-insensitive)
func (r *userRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ApplyProfileFields(ctx context.Context, userID string, fields ProfileFields) (*models.User, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	if fields.Empty() {
		return r.GetUser(ctx, userID)
	}

	updates := make(map[string]interface{}, 2)
	if fields.DisplayName != nil {
		updates["display_name"] = *fields.DisplayName
	}
	if fields.ProfilePictureURL != nil {
		updates["profile_picture_url"] = *fields.ProfilePictureURL
	}

	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	return r.GetUser(ctx, userID)
}
