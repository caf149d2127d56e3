package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind restricts which media a picker accepts
type Kind int

const (
	KindImage Kind = iota
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// PickConfig controls selection
type PickConfig struct {
	Kind Kind
	// MaxBytes of zero means no limit
	MaxBytes int64
}

// DefaultPickConfig accepts still images up to 10MB
var DefaultPickConfig = PickConfig{Kind: KindImage, MaxBytes: 10 << 20}

// LocalMediaRef is a handle to a user-selected file on this device
type LocalMediaRef struct {
	URI      string `json:"uri"`
	MimeHint string `json:"mime_hint,omitempty"`
	Size     int64  `json:"size"`
}

// Path returns the filesystem path the URI points at
func (r LocalMediaRef) Path() string {
	u, err := url.Parse(r.URI)
	if err != nil || u.Scheme != "file" {
		return r.URI
	}
	return filepath.FromSlash(u.Path)
}

// Name is the base file name, for display
func (r LocalMediaRef) Name() string {
	return filepath.Base(r.Path())
}

// IsZero reports whether the ref is unset
func (r LocalMediaRef) IsZero() bool {
	return r.URI == ""
}

// Outcome tags a PickResult
type Outcome int

const (
	OutcomePicked Outcome = iota
	OutcomeCancelled
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomePicked:
		return "picked"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "error"
	}
}

// PickResult is exactly one of: a picked ref, a user cancellation, or an error
type PickResult struct {
	Outcome Outcome
	Ref     LocalMediaRef
	Err     error
}

func Picked(ref LocalMediaRef) PickResult { return PickResult{Outcome: OutcomePicked, Ref: ref} }
func Cancelled() PickResult              { return PickResult{Outcome: OutcomeCancelled} }

// Failed wraps err as a pick error
func Failed(err error) PickResult {
	if err == nil {
		err = errors.New("unknown pick error")
	}
	return PickResult{Outcome: OutcomeError, Err: err}
}

// Picker selects one local media item
type Picker interface {
	Pick(ctx context.Context, cfg PickConfig) PickResult
}

var (
	ErrNotImage = errors.New("file is not an image")
	ErrTooLarge = errors.New("file is too large")
	ErrNotFile  = errors.New("not a regular file")
)

// Resolve validates path against cfg and builds a ref. The MIME type is
// sniffed from content, not taken from the extension.
func Resolve(path string, cfg PickConfig) (LocalMediaRef, error) {
	path = expandHome(strings.TrimSpace(path))
	abs, err := filepath.Abs(path)
	if err != nil {
		return LocalMediaRef{}, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return LocalMediaRef{}, err
	}
	if !info.Mode().IsRegular() {
		return LocalMediaRef{}, fmt.Errorf("%w: %s", ErrNotFile, abs)
	}
	if cfg.MaxBytes > 0 && info.Size() > cfg.MaxBytes {
		return LocalMediaRef{}, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, info.Size(), cfg.MaxBytes)
	}

	mt, err := mimetype.DetectFile(abs)
	if err != nil {
		return LocalMediaRef{}, err
	}
	if cfg.Kind == KindImage && !mimeIsImage(mt) {
		return LocalMediaRef{}, fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}

	return LocalMediaRef{
		URI:      (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(),
		MimeHint: mt.String(),
		Size:     info.Size(),
	}, nil
}

func mimeIsImage(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
