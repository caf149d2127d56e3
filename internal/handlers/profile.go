package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/profiles/internal/logger"
	"github.com/zfogg/sidechain/profiles/internal/metrics"
	"github.com/zfogg/sidechain/profiles/internal/models"
	"github.com/zfogg/sidechain/profiles/internal/profile"
	"github.com/zfogg/sidechain/profiles/internal/repository"
	"github.com/zfogg/sidechain/profiles/internal/util"
	"go.uber.org/zap"
)

type profileResponse struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Username          string    `json:"username"`
	DisplayName       string    `json:"display_name"`
	ProfilePictureURL string    `json:"profile_picture_url"`
	AvatarURL         string    `json:"avatar_url"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func newProfileResponse(u *models.User) gin.H {
	return gin.H{"user": profileResponse{
		ID:                u.ID,
		Email:             u.Email,
		Username:          u.Username,
		DisplayName:       u.DisplayName,
		ProfilePictureURL: u.ProfilePictureURL,
		AvatarURL:         u.AvatarOrDefault(),
		UpdatedAt:         u.UpdatedAt,
	}}
}

// GetMyProfile returns the authenticated user's profile
// GET /api/v1/users/me
func (h *Handlers) GetMyProfile(c *gin.Context) {
	identity, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	m := metrics.Get()

	user, hit, err := h.cache.Get(ctx, identity.UserID)
	switch {
	case err != nil:
		m.ProfileCacheTotal.WithLabelValues("error").Inc()
		logger.Warn("Profile cache read failed", logger.WithUserID(identity.UserID), zap.Error(err))
	case hit:
		m.ProfileCacheTotal.WithLabelValues("hit").Inc()
		c.JSON(http.StatusOK, newProfileResponse(user))
		return
	default:
		m.ProfileCacheTotal.WithLabelValues("miss").Inc()
	}

	user, err = h.users.GetUser(ctx, identity.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		util.RespondNotFound(c, "user")
		return
	}
	if err != nil {
		util.RespondInternalError(c, "failed to load profile", err)
		return
	}

	if err := h.cache.Set(ctx, user); err != nil {
		logger.Warn("Profile cache write failed", logger.WithUserID(user.ID), zap.Error(err))
	}
	c.JSON(http.StatusOK, newProfileResponse(user))
}

// UpdateMyProfile applies a partial update. Fields left out of the body are
// not changed.
// PATCH /api/v1/users/me
// PUT /api/v1/users/me
func (h *Handlers) UpdateMyProfile(c *gin.Context) {
	identity, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}

	var req struct {
		DisplayName       *string `json:"display_name"`
		ProfilePictureURL *string `json:"profile_picture_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}

	var patch profile.Patch
	if req.DisplayName != nil {
		patch.DisplayName = profile.DisplayNamePatch(*req.DisplayName).DisplayName
	}
	patch.MediaRef = req.ProfilePictureURL
	if patch.Empty() {
		util.RespondBadRequest(c, "no fields to update")
		return
	}

	updater := profile.NewRepositoryUpdater(h.users, h.cache, h.mirror, identity)
	user, err := updater.ApplyAndLoad(c.Request.Context(), patch)

	var fieldErr *profile.FieldError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, newProfileResponse(user))
	case errors.As(err, &fieldErr):
		util.RespondValidationError(c, fieldErr.Field, fieldErr.Reason)
	case errors.Is(err, profile.ErrAuth):
		util.RespondUnauthorized(c, "user no longer exists")
	default:
		util.RespondInternalError(c, "failed to update profile", err)
	}
}
