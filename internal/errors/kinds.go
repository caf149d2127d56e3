package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies failures of the profile edit workflow
type Kind string

const (
	KindNone                Kind = ""
	KindPick                Kind = "PICK_ERROR"
	KindUploadTransfer      Kind = "UPLOAD_TRANSFER_ERROR"
	KindReferenceResolution Kind = "REFERENCE_RESOLUTION_ERROR"
	KindProfileCommit       Kind = "PROFILE_COMMIT_ERROR"
	KindTimeout             Kind = "TIMEOUT"
)

// Message is the user-facing text for a failure kind
func (k Kind) Message() string {
	switch k {
	case KindPick:
		return "Could not open the selected image"
	case KindUploadTransfer:
		return "Upload failed while sending the image"
	case KindReferenceResolution:
		return "Upload finished but the image link could not be retrieved"
	case KindProfileCommit:
		return "Could not save the new picture to your profile"
	case KindTimeout:
		return "The upload took too long"
	default:
		return "Something went wrong"
	}
}

// WorkflowError is an error tagged with the workflow step that produced it
type WorkflowError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *WorkflowError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Wrap tags err with a kind. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &WorkflowError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind carried by err, or KindNone
func KindOf(err error) Kind {
	var we *WorkflowError
	if stderrors.As(err, &we) {
		return we.Kind
	}
	return KindNone
}
