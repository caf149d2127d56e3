package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zfogg/sidechain/profiles/internal/auth"
	"github.com/zfogg/sidechain/profiles/internal/cache"
	"github.com/zfogg/sidechain/profiles/internal/logger"
	"github.com/zfogg/sidechain/profiles/internal/models"
	"github.com/zfogg/sidechain/profiles/internal/repository"
	"github.com/zfogg/sidechain/profiles/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Mirror copies committed profile fields to another system (chat, search)
type Mirror interface {
	MirrorProfile(ctx context.Context, user *models.User) error
}

// RepositoryUpdater applies patches directly to the user store. It backs
// the profile API handlers.
type RepositoryUpdater struct {
	repo     repository.UserRepository
	cache    cache.ProfileCache
	mirror   Mirror
	identity auth.Identity
}

// NewRepositoryUpdater panics without an authenticated identity. cache and
// mirror may be nil.
func NewRepositoryUpdater(repo repository.UserRepository, c cache.ProfileCache, mirror Mirror, identity auth.Identity) *RepositoryUpdater {
	if !identity.Valid() {
		panic("profile: NewRepositoryUpdater requires an authenticated identity")
	}
	if c == nil {
		c = cache.Noop{}
	}
	return &RepositoryUpdater{repo: repo, cache: c, mirror: mirror, identity: identity}
}

func (u *RepositoryUpdater) Apply(ctx context.Context, patch Patch) error {
	_, err := u.ApplyAndLoad(ctx, patch)
	return err
}

// ApplyAndLoad applies patch and returns the stored profile afterwards
func (u *RepositoryUpdater) ApplyAndLoad(ctx context.Context, patch Patch) (user *models.User, err error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "profile.apply",
		attribute.String("user.id", u.identity.UserID),
		attribute.String("profile.fields", strings.Join(patch.Fields(), ",")),
	)
	defer func() {
		if !patch.Empty() {
			recordPatch(patch, err)
		}
		telemetry.EndSpan(span, err)
	}()

	user, err = u.repo.ApplyProfileFields(ctx, u.identity.UserID, repository.ProfileFields{
		DisplayName:       patch.DisplayName,
		ProfilePictureURL: patch.MediaRef,
	})
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: no user %s", ErrAuth, u.identity.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if patch.Empty() {
		return user, nil
	}

	if err := u.cache.Invalidate(ctx, user.ID); err != nil {
		logger.Warn("Failed to invalidate profile cache", logger.WithUserID(user.ID), zap.Error(err))
	}
	if u.mirror != nil {
		// the profile row is the source of truth; a stale mirror is repaired on the next edit
		if err := u.mirror.MirrorProfile(ctx, user); err != nil {
			logger.Warn("Failed to mirror profile", logger.WithUserID(user.ID), zap.Error(err))
		}
	}

	logger.Log.Info("Profile updated",
		logger.WithUserID(user.ID),
		zap.Strings("fields", patch.Fields()),
	)
	return user, nil
}
