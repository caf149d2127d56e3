package upload

import (
	apierrors "github.com/zfogg/sidechain/profiles/internal/errors"
)

// Progress is a snapshot of bytes sent. Within one upload BytesTransferred
// never decreases and never exceeds BytesTotal.
type Progress struct {
	BytesTransferred uint64 `json:"bytes_transferred"`
	BytesTotal       uint64 `json:"bytes_total"`
}

// Fraction returns progress in [0, 1], or 0 when the total is unknown
func (p Progress) Fraction() float64 {
	if p.BytesTotal == 0 {
		return 0
	}
	return float64(p.BytesTransferred) / float64(p.BytesTotal)
}

// Status is the terminal state of an upload
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is exactly one of Success{DownloadRef}, Failure{Kind}, Cancelled
type Result struct {
	Status      Status
	DownloadRef string
	Kind        apierrors.Kind
	Err         error
}

func Success(downloadRef string) Result {
	return Result{Status: StatusSuccess, DownloadRef: downloadRef}
}

// Failure tags err with kind. The returned Err always carries the kind.
func Failure(kind apierrors.Kind, op string, err error) Result {
	if err == nil {
		err = &apierrors.WorkflowError{Kind: kind, Op: op}
	} else {
		err = apierrors.Wrap(kind, op, err)
	}
	return Result{Status: StatusFailure, Kind: kind, Err: err}
}

func Cancelled() Result {
	return Result{Status: StatusCancelled}
}
