package editor

import (
	"fmt"

	apierrors "github.com/zfogg/sidechain/profiles/internal/errors"
	"github.com/zfogg/sidechain/profiles/internal/media"
	"github.com/zfogg/sidechain/profiles/internal/upload"
)

// Phase is the coarse state of an edit session
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePickingMedia
	PhaseReady
	PhaseUploading
	PhaseCommitting
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePickingMedia:
		return "picking_media"
	case PhaseReady:
		return "ready"
	case PhaseUploading:
		return "uploading"
	case PhaseCommitting:
		return "committing"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Busy reports whether an upload or commit is in flight
func (p Phase) Busy() bool {
	return p == PhaseUploading || p == PhaseCommitting
}

// State is an immutable snapshot of an edit session.
//
//	Idle
//	PickingMedia
//	Ready(Ref)
//	Uploading(Ref, Progress)
//	Committing(Ref, DownloadRef)
//	Succeeded(DownloadRef)
//	Failed(Kind, Ref)
type State struct {
	Phase       Phase
	Ref         media.LocalMediaRef
	Progress    upload.Progress
	DownloadRef string

	// Kind and Err describe the failure in PhaseFailed
	Kind apierrors.Kind
	Err  error

	// LastError is a pick error surfaced on the state the picker returned to
	LastError error
}

func (s State) String() string {
	switch s.Phase {
	case PhaseReady:
		return fmt.Sprintf("ready(%s)", s.Ref.Name())
	case PhaseUploading:
		return fmt.Sprintf("uploading(%s, %d/%d)", s.Ref.Name(), s.Progress.BytesTransferred, s.Progress.BytesTotal)
	case PhaseFailed:
		return fmt.Sprintf("failed(%s)", s.Kind)
	default:
		return s.Phase.String()
	}
}
