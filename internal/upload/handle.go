package upload

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	apierrors "github.com/zfogg/sidechain/profiles/internal/errors"
)

// Handle tracks one running upload. Every call to Progress starts a fresh
// pass over the events seen so far and then follows live ones until the
// terminal result. The result resolves exactly once.
type Handle struct {
	key    string
	cancel context.CancelFunc

	cancelRequested atomic.Bool

	mu       sync.Mutex
	events   []Progress
	changed  chan struct{}
	finished bool
	result   Result
	done     chan struct{}

	onFinish func(Result)
}

func newHandle(key string, cancel context.CancelFunc) *Handle {
	return &Handle{
		key:     key,
		cancel:  cancel,
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Key is the destination object key
func (h *Handle) Key() string {
	return h.key
}

// Progress returns a lazy sequence of progress events for this upload
func (h *Handle) Progress() iter.Seq[Progress] {
	return func(yield func(Progress) bool) {
		next := 0
		for {
			h.mu.Lock()
			for next < len(h.events) {
				p := h.events[next]
				next++
				h.mu.Unlock()
				if !yield(p) {
					return
				}
				h.mu.Lock()
			}
			finished := h.finished
			wait := h.changed
			h.mu.Unlock()

			if finished {
				return
			}
			<-wait
		}
	}
}

// Latest returns the most recent progress event, if any
func (h *Handle) Latest() (Progress, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		return Progress{}, false
	}
	return h.events[len(h.events)-1], true
}

// Done is closed once the terminal result is available
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result blocks until the upload reaches a terminal result
func (h *Handle) Result() Result {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Wait is Result bounded by ctx
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.Result(), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Cancel records the intent to cancel and aborts the transfer best-effort.
// The handle resolves Cancelled unless a result was already reached.
func (h *Handle) Cancel() {
	h.cancelRequested.Store(true)
	h.cancel()
}

func (h *Handle) isCancelRequested() bool {
	return h.cancelRequested.Load()
}

// emit appends a progress event, dropping anything that would move backwards
func (h *Handle) emit(p Progress) {
	if p.BytesTransferred > p.BytesTotal {
		p.BytesTransferred = p.BytesTotal
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	if n := len(h.events); n > 0 {
		last := h.events[n-1]
		if p.BytesTransferred < last.BytesTransferred || p == last {
			return
		}
	}
	h.events = append(h.events, p)
	close(h.changed)
	h.changed = make(chan struct{})
}

// finish resolves the handle. It reports whether this call set the result.
func (h *Handle) finish(r Result) bool {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return false
	}
	h.finished = true
	h.result = r
	close(h.changed)
	close(h.done)
	onFinish := h.onFinish
	h.mu.Unlock()

	if onFinish != nil {
		onFinish(r)
	}
	return true
}

// WithTimeout resolves h as Failure{Timeout} if no terminal result arrives
// within d, and then aborts the transfer. A non-positive d disables it.
func WithTimeout(h *Handle, d time.Duration) *Handle {
	if d <= 0 {
		return h
	}
	timer := time.AfterFunc(d, func() {
		if h.finish(Failure(apierrors.KindTimeout, "upload", context.DeadlineExceeded)) {
			h.cancel()
		}
	})
	go func() {
		<-h.done
		timer.Stop()
	}()
	return h
}
