package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrAuth means the profile provider rejected the caller's identity
var ErrAuth = errors.New("profile update not authorized")

// MaxDisplayNameLength bounds display names, in characters
const MaxDisplayNameLength = 50

// Patch is a partial profile update. A nil field is left unchanged and is
// never reset.
type Patch struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=50"`
	// MediaRef is a resolved download reference, never a local path
	MediaRef *string `json:"profile_picture_url,omitempty" validate:"omitempty,http_url"`
}

// DisplayNamePatch sets only the display name
func DisplayNamePatch(name string) Patch {
	name = strings.TrimSpace(name)
	return Patch{DisplayName: &name}
}

// MediaPatch sets only the profile picture reference
func MediaPatch(downloadRef string) Patch {
	return Patch{MediaRef: &downloadRef}
}

// Empty reports whether the patch changes nothing
func (p Patch) Empty() bool {
	return p.DisplayName == nil && p.MediaRef == nil
}

// Fields names the fields the patch touches, for logs and metrics
func (p Patch) Fields() []string {
	var fields []string
	if p.DisplayName != nil {
		fields = append(fields, "display_name")
	}
	if p.MediaRef != nil {
		fields = append(fields, "profile_picture")
	}
	return fields
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field formats. Length limits count characters, not bytes.
func (p Patch) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &FieldError{Field: jsonField(verrs[0].StructField()), Reason: reason(verrs[0].Tag())}
		}
		return err
	}
	return nil
}

func reason(tag string) string {
	switch tag {
	case "max":
		return fmt.Sprintf("must be at most %d characters", MaxDisplayNameLength)
	case "http_url":
		return "must be a remote URL"
	default:
		return "failed " + tag + " validation"
	}
}

// FieldError is a patch field that failed validation
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

func jsonField(structField string) string {
	switch structField {
	case "DisplayName":
		return "display_name"
	case "MediaRef":
		return "profile_picture_url"
	default:
		return structField
	}
}

// Updater applies patches to the authenticated user's profile. Apply is
// idempotent: re-applying the same patch leaves the profile unchanged.
// Authorization failures wrap ErrAuth.
type Updater interface {
	Apply(ctx context.Context, patch Patch) error
}
