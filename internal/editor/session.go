package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zfogg/sidechain/profiles/internal/auth"
	apierrors "github.com/zfogg/sidechain/profiles/internal/errors"
	"github.com/zfogg/sidechain/profiles/internal/logger"
	"github.com/zfogg/sidechain/profiles/internal/media"
	"github.com/zfogg/sidechain/profiles/internal/metrics"
	"github.com/zfogg/sidechain/profiles/internal/profile"
	"github.com/zfogg/sidechain/profiles/internal/storage"
	"github.com/zfogg/sidechain/profiles/internal/upload"
	"go.uber.org/zap"
)

var (
	ErrInvalidTransition = errors.New("action not allowed in the current state")
	ErrUploadInProgress  = errors.New("an upload is already in progress")
	ErrClosed            = errors.New("edit session is closed")
)

// Uploader starts uploads. *upload.Task satisfies it.
type Uploader interface {
	Start(ctx context.Context, ref media.LocalMediaRef, destinationKey string) *upload.Handle
}

// Navigator leaves the edit screen
type Navigator interface {
	GoBack()
}

// NavigatorFunc adapts a plain function to Navigator
type NavigatorFunc func()

func (f NavigatorFunc) GoBack() { f() }

// Options wires a Session to its collaborators
type Options struct {
	Picker    media.Picker
	Uploader  Uploader
	Updater   profile.Updater
	Navigator Navigator
	Identity  auth.Identity

	PickConfig    media.PickConfig
	UploadTimeout time.Duration
}

type step int

const (
	stepNone step = iota
	stepUpload
	stepCommit
)

// Session drives one profile edit. All state lives on the goroutine running
// Run; commands and async completions reach it through the events channel.
type Session struct {
	opts Options
	key  string

	events chan event
	done   chan struct{}

	mu        sync.Mutex
	state     State
	changed   chan struct{}
	observers []func(State)

	wentBack atomic.Bool

	// owned by the Run goroutine
	ctx        context.Context
	attempt    uint64
	beforePick State
	pickCancel context.CancelFunc
	handle     *upload.Handle
	failedStep step
}

// NewSession creates an idle session. It panics without an authenticated
// identity. Call Run to start processing.
func NewSession(opts Options) *Session {
	if !opts.Identity.Valid() {
		panic("editor: NewSession requires an authenticated identity")
	}
	if opts.PickConfig.MaxBytes == 0 {
		opts.PickConfig = media.DefaultPickConfig
	}
	if opts.Navigator == nil {
		opts.Navigator = NavigatorFunc(func() {})
	}
	return &Session{
		opts:    opts,
		key:     storage.ProfilePictureKey(opts.Identity.UserID),
		events:  make(chan event),
		done:    make(chan struct{}),
		changed: make(chan struct{}),
		state:   State{Phase: PhaseIdle},
	}
}

// Observe registers fn to receive every state change. fn runs on the session
// goroutine and must not call back into the Session.
func (s *Session) Observe(fn func(State)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Current returns the latest state snapshot
func (s *Session) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WaitFor blocks until the state satisfies pred
func (s *Session) WaitFor(ctx context.Context, pred func(State) bool) (State, error) {
	for {
		s.mu.Lock()
		st := s.state
		ch := s.changed
		s.mu.Unlock()

		if pred(st) {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		case <-s.done:
			return s.Current(), ErrClosed
		}
	}
}

// Done is closed when Run returns
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run processes commands until ctx ends. An active upload is cancelled on exit.
func (s *Session) Run(ctx context.Context) {
	s.ctx = ctx
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case ev := <-s.events:
			switch e := ev.(type) {
			case command:
				e.reply <- s.handleCommand(e)
			case pickDone:
				s.pickFinished(e)
			case uploadProgress:
				s.uploadProgressed(e)
			case uploadDone:
				s.uploadFinished(e)
			case commitDone:
				s.commitFinished(e)
			}
		}
	}
}

func (s *Session) shutdown() {
	if s.pickCancel != nil {
		s.pickCancel()
	}
	if s.handle != nil {
		s.handle.Cancel()
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

type event any

type commandKind int

const (
	cmdPick commandKind = iota
	cmdUpload
	cmdCancel
	cmdRetry
	cmdSaveName
)

type command struct {
	kind  commandKind
	reply chan error
}

type pickDone struct {
	attempt uint64
	result  media.PickResult
}

type uploadProgress struct {
	attempt  uint64
	progress upload.Progress
}

type uploadDone struct {
	attempt uint64
	result  upload.Result
}

type commitDone struct {
	attempt uint64
	err     error
}

// Pick opens the picker. A cancelled pick returns to the previous state.
func (s *Session) Pick() error { return s.do(cmdPick) }

// RequestUpload uploads the picked image and commits it to the profile
func (s *Session) RequestUpload() error { return s.do(cmdUpload) }

// Cancel aborts an open picker or a running upload
func (s *Session) Cancel() error { return s.do(cmdCancel) }

// Retry re-runs the step that failed, with the same image
func (s *Session) Retry() error { return s.do(cmdRetry) }

// SaveDisplayName commits a new display name on its own. The picture flow is
// left untouched.
func (s *Session) SaveDisplayName(ctx context.Context, name string) error {
	if err := s.do(cmdSaveName); err != nil {
		return err
	}
	if err := s.opts.Updater.Apply(ctx, profile.DisplayNamePatch(name)); err != nil {
		return apierrors.Wrap(apierrors.KindProfileCommit, "save display name", err)
	}
	s.goBack()
	return nil
}

func (s *Session) do(kind commandKind) error {
	reply := make(chan error, 1)
	select {
	case s.events <- command{kind: kind, reply: reply}:
	case <-s.done:
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) handleCommand(c command) error {
	cur := s.Current()
	switch c.kind {
	case cmdPick:
		return s.startPick(cur)
	case cmdUpload:
		if cur.Phase.Busy() {
			return ErrUploadInProgress
		}
		if cur.Phase != PhaseReady {
			return fmt.Errorf("%w: upload from %s", ErrInvalidTransition, cur.Phase)
		}
		s.startUpload(cur.Ref)
		return nil
	case cmdCancel:
		switch cur.Phase {
		case PhasePickingMedia:
			s.pickCancel()
			return nil
		case PhaseUploading:
			s.handle.Cancel()
			return nil
		}
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, cur.Phase)
	case cmdRetry:
		if cur.Phase != PhaseFailed {
			return fmt.Errorf("%w: retry from %s", ErrInvalidTransition, cur.Phase)
		}
		switch s.failedStep {
		case stepUpload:
			s.startUpload(cur.Ref)
		case stepCommit:
			s.startCommit(cur.Ref, cur.DownloadRef)
		default:
			return fmt.Errorf("%w: nothing to retry", ErrInvalidTransition)
		}
		return nil
	case cmdSaveName:
		if cur.Phase.Busy() {
			return ErrUploadInProgress
		}
		return nil
	}
	return fmt.Errorf("unknown command %d", c.kind)
}

// =============================================================================
// PICK
// =============================================================================

func (s *Session) startPick(cur State) error {
	switch cur.Phase {
	case PhaseIdle, PhaseReady, PhaseFailed:
	case PhaseUploading, PhaseCommitting:
		return ErrUploadInProgress
	default:
		return fmt.Errorf("%w: pick from %s", ErrInvalidTransition, cur.Phase)
	}

	s.attempt++
	attempt := s.attempt
	cur.LastError = nil
	s.beforePick = cur

	ctx, cancel := context.WithCancel(s.ctx)
	s.pickCancel = cancel
	s.setState(State{Phase: PhasePickingMedia})

	go func() {
		res := s.opts.Picker.Pick(ctx, s.opts.PickConfig)
		if ctx.Err() != nil && res.Outcome == media.OutcomeError {
			res = media.Cancelled()
		}
		s.post(pickDone{attempt: attempt, result: res})
	}()
	return nil
}

func (s *Session) pickFinished(e pickDone) {
	if e.attempt != s.attempt || s.Current().Phase != PhasePickingMedia {
		return
	}
	s.pickCancel()
	s.pickCancel = nil

	switch e.result.Outcome {
	case media.OutcomePicked:
		s.failedStep = stepNone
		s.setState(State{Phase: PhaseReady, Ref: e.result.Ref})
	case media.OutcomeCancelled:
		s.setState(s.beforePick)
	default:
		err := apierrors.Wrap(apierrors.KindPick, "pick", e.result.Err)
		logger.Warn("Media pick failed", zap.Error(err))
		restored := s.beforePick
		restored.LastError = err
		s.setState(restored)
	}
}

// =============================================================================
// UPLOAD + COMMIT
// =============================================================================

func (s *Session) startUpload(ref media.LocalMediaRef) {
	s.attempt++
	attempt := s.attempt

	h := upload.WithTimeout(s.opts.Uploader.Start(s.ctx, ref, s.key), s.opts.UploadTimeout)
	s.handle = h
	s.failedStep = stepNone

	total := uint64(0)
	if ref.Size > 0 {
		total = uint64(ref.Size)
	}
	s.setState(State{Phase: PhaseUploading, Ref: ref, Progress: upload.Progress{BytesTotal: total}})

	go func() {
		for p := range h.Progress() {
			if !s.post(uploadProgress{attempt: attempt, progress: p}) {
				return
			}
		}
		s.post(uploadDone{attempt: attempt, result: h.Result()})
	}()
}

func (s *Session) uploadProgressed(e uploadProgress) {
	cur := s.Current()
	if e.attempt != s.attempt || cur.Phase != PhaseUploading {
		return
	}
	if e.progress.BytesTransferred < cur.Progress.BytesTransferred {
		return
	}
	cur.Progress = e.progress
	s.setState(cur)
}

func (s *Session) uploadFinished(e uploadDone) {
	cur := s.Current()
	if e.attempt != s.attempt || cur.Phase != PhaseUploading {
		return
	}
	s.handle = nil

	switch e.result.Status {
	case upload.StatusSuccess:
		s.startCommit(cur.Ref, e.result.DownloadRef)
	case upload.StatusCancelled:
		s.setState(State{Phase: PhaseReady, Ref: cur.Ref})
	default:
		s.fail(stepUpload, State{Ref: cur.Ref}, e.result.Kind, e.result.Err)
	}
}

func (s *Session) startCommit(ref media.LocalMediaRef, downloadRef string) {
	s.attempt++
	attempt := s.attempt
	s.failedStep = stepNone
	s.setState(State{Phase: PhaseCommitting, Ref: ref, DownloadRef: downloadRef})

	go func() {
		err := s.opts.Updater.Apply(s.ctx, profile.MediaPatch(downloadRef))
		s.post(commitDone{attempt: attempt, err: err})
	}()
}

func (s *Session) commitFinished(e commitDone) {
	cur := s.Current()
	if e.attempt != s.attempt || cur.Phase != PhaseCommitting {
		return
	}
	if e.err != nil {
		s.fail(stepCommit, State{Ref: cur.Ref, DownloadRef: cur.DownloadRef}, apierrors.KindProfileCommit, e.err)
		return
	}

	s.setState(State{Phase: PhaseSucceeded, Ref: cur.Ref, DownloadRef: cur.DownloadRef})
	logger.Log.Info("Profile picture updated",
		logger.WithUserID(s.opts.Identity.UserID),
		logger.WithKey(s.key),
	)
	s.goBack()
}

func (s *Session) fail(at step, st State, kind apierrors.Kind, err error) {
	if apierrors.KindOf(err) == apierrors.KindNone {
		err = apierrors.Wrap(kind, at.String(), err)
	}
	s.failedStep = at
	st.Phase = PhaseFailed
	st.Kind = kind
	st.Err = err
	logger.Warn("Profile edit step failed",
		logger.WithUserID(s.opts.Identity.UserID),
		zap.String("step", at.String()),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	s.setState(st)
}

func (st step) String() string {
	switch st {
	case stepUpload:
		return "upload"
	case stepCommit:
		return "commit"
	default:
		return "none"
	}
}

// =============================================================================
// PLUMBING
// =============================================================================

// post delivers an async completion to the Run goroutine. It reports false
// once the session has stopped.
func (s *Session) post(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	close(s.changed)
	s.changed = make(chan struct{})
	observers := s.observers
	s.mu.Unlock()

	if prev.Phase != next.Phase {
		metrics.Get().EditorTransitionsTotal.WithLabelValues(prev.Phase.String(), next.Phase.String()).Inc()
		logger.Log.Debug("Edit session transition",
			zap.String("from", prev.Phase.String()),
			zap.String("to", next.Phase.String()),
		)
	}
	for _, fn := range observers {
		fn(next)
	}
}

// goBack navigates away at most once per session
func (s *Session) goBack() {
	if s.wentBack.CompareAndSwap(false, true) {
		s.opts.Navigator.GoBack()
	}
}
