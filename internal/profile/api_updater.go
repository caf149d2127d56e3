package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/zfogg/sidechain/profiles/internal/auth"
	"github.com/zfogg/sidechain/profiles/internal/client"
	"github.com/zfogg/sidechain/profiles/internal/logger"
	"github.com/zfogg/sidechain/profiles/internal/metrics"
	"github.com/zfogg/sidechain/profiles/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// APIUpdater applies patches through the profile API as the given identity
type APIUpdater struct {
	api      *client.ProfileAPI
	identity auth.Identity
}

// NewAPIUpdater panics without an authenticated identity; reaching the
// editor signed out is a programming error.
func NewAPIUpdater(api *client.ProfileAPI, identity auth.Identity) *APIUpdater {
	if !identity.Valid() {
		panic("profile: NewAPIUpdater requires an authenticated identity")
	}
	return &APIUpdater{api: api, identity: identity}
}

func (u *APIUpdater) Apply(ctx context.Context, patch Patch) (err error) {
	if patch.Empty() {
		return nil
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	ctx, span := telemetry.StartSpan(ctx, "profile.apply",
		attribute.String("user.id", u.identity.UserID),
		attribute.String("profile.fields", strings.Join(patch.Fields(), ",")),
	)
	defer func() {
		recordPatch(patch, err)
		telemetry.EndSpan(span, err)
	}()

	body := make(map[string]string, 2)
	if patch.DisplayName != nil {
		body["display_name"] = *patch.DisplayName
	}
	if patch.MediaRef != nil {
		body["profile_picture_url"] = *patch.MediaRef
	}

	if _, err := u.api.PatchMe(ctx, body); err != nil {
		if client.IsUnauthorized(err) {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}

	logger.Log.Info("Profile updated",
		logger.WithUserID(u.identity.UserID),
		zap.Strings("fields", patch.Fields()),
	)
	return nil
}

func recordPatch(patch Patch, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m := metrics.Get()
	for _, f := range patch.Fields() {
		m.ProfilePatchesTotal.WithLabelValues(f, status).Inc()
	}
}
