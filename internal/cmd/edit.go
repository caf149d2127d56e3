package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/zfogg/sidechain/profiles/internal/client"
	"github.com/zfogg/sidechain/profiles/internal/config"
	"github.com/zfogg/sidechain/profiles/internal/credentials"
	"github.com/zfogg/sidechain/profiles/internal/editor"
	apierrors "github.com/zfogg/sidechain/profiles/internal/errors"
	"github.com/zfogg/sidechain/profiles/internal/logger"
	"github.com/zfogg/sidechain/profiles/internal/media"
	"github.com/zfogg/sidechain/profiles/internal/output"
	"github.com/zfogg/sidechain/profiles/internal/profile"
	"github.com/zfogg/sidechain/profiles/internal/prompter"
	"github.com/zfogg/sidechain/profiles/internal/storage"
	"github.com/zfogg/sidechain/profiles/internal/upload"
	"go.uber.org/zap"
)

var errNotLoggedIn = errors.New("not logged in")

// confirmRetry asks whether to retry a failed step
var confirmRetry = prompter.PromptConfirm

// editEnv is everything an edit command needs
type editEnv struct {
	cfg   *config.Client
	creds *credentials.Credentials
	api   *client.ProfileAPI
	store storage.Store
}

func loadEnv(ctx context.Context, withStore bool) (*editEnv, error) {
	creds, err := credentials.Load(cfg.CredentialsPath)
	if err != nil {
		return nil, err
	}
	if creds == nil || !creds.IsValid() {
		output.PrintError("Not logged in. Run 'profile-cli auth token <access-token>'")
		return nil, errNotLoggedIn
	}

	env := &editEnv{
		cfg:   cfg,
		creds: creds,
		api:   client.NewProfileAPI(client.New(cfg.APIBaseURL, cfg.APITimeout, creds.AccessToken)),
	}
	if withStore {
		if env.store, err = newStore(ctx, cfg); err != nil {
			return nil, err
		}
	}
	return env, nil
}

// newStore connects to the configured bucket, failing before anything is
// picked when the bucket or credentials are wrong
func newStore(ctx context.Context, c *config.Client) (storage.Store, error) {
	if c.StorageDriver != "s3" && c.StorageDriver != "" {
		return nil, fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	store, err := storage.NewS3Store(ctx, storage.S3Options{
		Region:   c.StorageRegion,
		Bucket:   c.StorageBucket,
		BaseURL:  c.StorageBaseURL,
		Endpoint: c.StorageEndpoint,
	})
	if err != nil {
		return nil, err
	}
	if err := store.CheckBucketAccess(ctx); err != nil {
		output.PrintError("Cannot reach the media bucket %q. Check storage settings in %s", c.StorageBucket, c.File)
		return nil, err
	}
	return store, nil
}

func (e *editEnv) newSession(picker media.Picker) *editor.Session {
	return editor.NewSession(editor.Options{
		Picker:        picker,
		Uploader:      upload.NewTask(e.store),
		Updater:       profile.NewAPIUpdater(e.api, e.creds.Identity()),
		Identity:      e.creds.Identity(),
		UploadTimeout: e.cfg.UploadTimeout,
	})
}

func settled(s editor.State) bool {
	switch s.Phase {
	case editor.PhaseReady, editor.PhaseSucceeded, editor.PhaseFailed:
		return true
	}
	return false
}

// uploadAvatar picks an image, uploads it and saves it as the profile
// picture. Interrupting ctx cancels a running upload.
func uploadAvatar(ctx context.Context, env *editEnv, picker media.Picker) error {
	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()

	session := env.newSession(picker)
	session.Observe(progressObserver())
	go session.Run(runCtx)

	if err := session.Pick(); err != nil {
		return err
	}
	st, err := session.WaitFor(ctx, func(s editor.State) bool { return s.Phase != editor.PhasePickingMedia })
	if err != nil {
		_ = session.Cancel()
		return err
	}
	if st.Phase != editor.PhaseReady {
		if st.LastError != nil {
			output.PrintError("%s: %v", apierrors.KindOf(st.LastError).Message(), errors.Unwrap(st.LastError))
			return st.LastError
		}
		output.PrintInfo("No image selected, profile unchanged")
		return nil
	}

	if err := session.RequestUpload(); err != nil {
		return err
	}
	for {
		st, err = session.WaitFor(ctx, settled)
		if err != nil && ctx.Err() != nil {
			st = interrupt(session)
		} else if err != nil {
			return err
		}

		switch st.Phase {
		case editor.PhaseSucceeded:
			output.PrintSuccess("✓ Profile picture updated")
			output.PrintFields([]output.Field{{Key: "Picture", Value: st.DownloadRef}})
			return nil
		case editor.PhaseReady:
			output.PrintWarning("Upload cancelled, profile unchanged")
			return ctx.Err()
		case editor.PhaseFailed:
			output.PrintError("%s", st.Kind.Message())
			logger.Log.Debug("Profile picture update failed", zap.Error(st.Err))
			if ctx.Err() != nil {
				return st.Err
			}
			retry, perr := confirmRetry("Retry")
			if perr != nil || !retry {
				return st.Err
			}
			if err := session.Retry(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("upload interrupted while %s", st.Phase)
		}
	}
}

// interrupt cancels the running upload and waits briefly for the outcome. A
// commit already in flight is allowed to finish.
func interrupt(session *editor.Session) editor.State {
	_ = session.Cancel()
	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, _ := session.WaitFor(waitCtx, settled)
	return st
}

func progressObserver() func(editor.State) {
	var bar *progressbar.ProgressBar
	return func(st editor.State) {
		if st.Phase == editor.PhaseUploading {
			if bar == nil {
				bar = output.NewUploadBar(int64(st.Progress.BytesTotal), "Uploading "+st.Ref.Name())
			}
			_ = bar.Set64(int64(st.Progress.BytesTransferred))
			return
		}
		if bar != nil {
			_ = bar.Exit()
			bar = nil
		}
		if st.Phase == editor.PhaseCommitting {
			output.PrintInfo("Saving to your profile...")
		}
	}
}

// saveName commits a new display name
func saveName(ctx context.Context, env *editEnv, name string) error {
	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()

	session := env.newSession(media.PathPicker{})
	go session.Run(runCtx)

	err := session.SaveDisplayName(ctx, name)
	var fieldErr *profile.FieldError
	switch {
	case err == nil:
		output.PrintSuccess("✓ Display name saved")
		return nil
	case errors.As(err, &fieldErr):
		output.PrintError("Display name %s", fieldErr.Reason)
	case errors.Is(err, profile.ErrAuth):
		output.PrintError("Your session has expired. Run 'profile-cli auth token <access-token>'")
	default:
		output.PrintError("Could not save the display name: %v", err)
	}
	return err
}
