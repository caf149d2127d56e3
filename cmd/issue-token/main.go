package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/profiles/internal/auth"
	"github.com/zfogg/sidechain/profiles/internal/config"
	"github.com/zfogg/sidechain/profiles/internal/database"
	"github.com/zfogg/sidechain/profiles/internal/logger"
	"github.com/zfogg/sidechain/profiles/internal/models"
	"github.com/zfogg/sidechain/profiles/internal/repository"
	"go.uber.org/zap"
)

var (
	username string
	create   bool
)

// issue-token prints an access token for a local user, creating the user
// first with --create. Used to point profile-cli at a development server.
func main() {
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue a profile API token for a user",
		RunE:  run,
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username to issue the token for (random with --create)")
	cmd.Flags().BoolVar(&create, "create", false, "Create the user if it does not exist")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}
	if err := logger.InitializeWithOptions(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		return err
	}
	defer logger.Close()

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	users := repository.NewUserRepository(db)

	user, err := findOrCreate(ctx, users)
	if err != nil {
		return err
	}

	issued, err := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.TokenTTL).Issue(user)
	if err != nil {
		return err
	}
	logger.Log.Info("Issued token", logger.WithUserID(user.ID), zap.Time("expires_at", issued.ExpiresAt))

	fmt.Fprintf(cmd.ErrOrStderr(), "user %s (%s), expires %s\n", user.Username, user.ID, issued.ExpiresAt.Format("2006-01-02 15:04"))
	fmt.Fprintln(cmd.OutOrStdout(), issued.Token)
	return nil
}

func findOrCreate(ctx context.Context, users repository.UserRepository) (*models.User, error) {
	if username != "" {
		user, err := users.GetUserByUsername(ctx, username)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrUserNotFound) || !create {
			return nil, fmt.Errorf("user %q: %w", username, err)
		}
	} else if !create {
		return nil, fmt.Errorf("--username is required without --create")
	}

	name := username
	if name == "" {
		name = strings.ToLower(gofakeit.Username())
	}
	user := &models.User{
		Email:       fmt.Sprintf("%s@%s", name, gofakeit.DomainName()),
		Username:    name,
		DisplayName: gofakeit.Name(),
	}
	if err := users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
