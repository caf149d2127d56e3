package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	apierrors "github.com/zfogg/sidechain/profiles/internal/errors"
	"github.com/zfogg/sidechain/profiles/internal/logger"
	"github.com/zfogg/sidechain/profiles/internal/media"
	"github.com/zfogg/sidechain/profiles/internal/metrics"
	"github.com/zfogg/sidechain/profiles/internal/storage"
	"github.com/zfogg/sidechain/profiles/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrEmptyReference is returned when the store resolves a blank download reference
var ErrEmptyReference = errors.New("store returned an empty download reference")

// Task streams local media to object storage
type Task struct {
	store    storage.Store
	readFile func(path string) ([]byte, error)
}

// NewTask creates an upload task against store
func NewTask(store storage.Store) *Task {
	return &Task{store: store, readFile: os.ReadFile}
}

// Start begins uploading ref to destinationKey and returns immediately.
// The upload stops when ctx ends or the handle is cancelled.
func (t *Task) Start(ctx context.Context, ref media.LocalMediaRef, destinationKey string) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := newHandle(destinationKey, cancel)

	started := time.Now()
	h.onFinish = func(r Result) {
		cancel()
		recordResult(r, time.Since(started))
	}

	go t.run(ctx, h, ref, destinationKey)
	return h
}

func (t *Task) run(ctx context.Context, h *Handle, ref media.LocalMediaRef, key string) {
	ctx, span := telemetry.StartSpan(ctx, "profile_media.upload",
		attribute.String("object.key", key),
		attribute.String("media.mime", ref.MimeHint),
	)

	res := t.transfer(ctx, h, ref, key)
	if !h.finish(res) {
		// a timeout or earlier result won
		res = h.Result()
	}

	span.SetAttributes(attribute.String("upload.result", res.Status.String()))
	if res.Kind != apierrors.KindNone {
		span.SetAttributes(attribute.String("upload.error_kind", string(res.Kind)))
	}
	telemetry.EndSpan(span, res.Err)

	fields := []zap.Field{logger.WithKey(key), zap.String("result", res.Status.String())}
	switch res.Status {
	case StatusFailure:
		logger.Log.Warn("Profile media upload failed", append(fields, zap.String("kind", string(res.Kind)), zap.Error(res.Err))...)
	default:
		logger.Log.Info("Profile media upload finished", fields...)
	}
}

func (t *Task) transfer(ctx context.Context, h *Handle, ref media.LocalMediaRef, key string) Result {
	data, err := t.readFile(ref.Path())
	if h.isCancelRequested() {
		return Cancelled()
	}
	if err != nil {
		return Failure(apierrors.KindUploadTransfer, "read local media", err)
	}

	total := uint64(len(data))
	h.emit(Progress{BytesTransferred: 0, BytesTotal: total})

	_, err = t.store.Put(ctx, key, data, ref.MimeHint, func(sent, _ int64) {
		h.emit(Progress{BytesTransferred: uint64(sent), BytesTotal: total})
	})
	if err != nil {
		return t.interrupted(ctx, h, apierrors.KindUploadTransfer, "put object", err)
	}
	// the object is stored; an explicit cancel still wins over committing it
	if h.isCancelRequested() {
		return Cancelled()
	}

	downloadRef, err := t.store.DownloadURL(ctx, key)
	if err != nil {
		return t.interrupted(ctx, h, apierrors.KindReferenceResolution, "resolve download reference", err)
	}
	if downloadRef == "" {
		return Failure(apierrors.KindReferenceResolution, "resolve download reference", ErrEmptyReference)
	}

	metrics.Get().UploadBytesTotal.Add(float64(total))
	h.emit(Progress{BytesTransferred: total, BytesTotal: total})
	return Success(downloadRef)
}

// interrupted maps an error from a store call to a result, treating aborts
// caused by Cancel or the caller's context as cancellation or timeout.
func (t *Task) interrupted(ctx context.Context, h *Handle, kind apierrors.Kind, op string, err error) Result {
	if h.isCancelRequested() {
		return Cancelled()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return Failure(apierrors.KindTimeout, op, ctxErr)
		}
		return Cancelled()
	}
	return Failure(kind, op, fmt.Errorf("%s: %w", h.Key(), err))
}

func recordResult(r Result, elapsed time.Duration) {
	m := metrics.Get()
	m.UploadsTotal.WithLabelValues(r.Status.String(), string(r.Kind)).Inc()
	m.UploadDuration.WithLabelValues(r.Status.String()).Observe(elapsed.Seconds())
}
