package cmd

import (
	"errors"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/profiles/internal/media"
	"github.com/zfogg/sidechain/profiles/internal/output"
	"github.com/zfogg/sidechain/profiles/internal/prompter"
)

var avatarFile string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		me, err := env.api.GetMe(cmd.Context())
		if err != nil {
			return err
		}
		output.PrintFields([]output.Field{
			{Key: "Username", Value: me.Username},
			{Key: "Display Name", Value: me.DisplayName},
			{Key: "Email", Value: me.Email},
			{Key: "Picture", Value: me.AvatarURL},
			{Key: "Updated", Value: me.UpdatedAt.Local().Format("2006-01-02 15:04")},
		})
		return nil
	},
}

var nameCmd = &cobra.Command{
	Use:   "name [display-name]",
	Short: "Change your display name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		env, err := loadEnv(ctx, false)
		if err != nil {
			return err
		}

		var name string
		if len(args) > 0 {
			name = args[0]
		} else {
			me, err := env.api.GetMe(ctx)
			if err != nil {
				return err
			}
			name, err = prompter.PromptString("Display name", me.DisplayName)
			if errors.Is(err, prompter.ErrCancelled) {
				return nil
			}
			if err != nil {
				return err
			}
			if strings.TrimSpace(name) == me.DisplayName {
				output.PrintInfo("Display name unchanged")
				return nil
			}
		}
		return saveName(ctx, env, name)
	},
}

var avatarCmd = &cobra.Command{
	Use:   "avatar",
	Short: "Upload a new profile picture",
	Long: `Upload an image as your profile picture. Without --file you are
asked for a path. Press Ctrl-C during the upload to cancel it; your
current picture is kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var picker media.Picker
		switch {
		case avatarFile != "":
			picker = media.PathPicker{Path: avatarFile}
		case prompter.IsInteractive():
			picker = media.NewPromptPicker()
		default:
			return errors.New("--file is required without a terminal")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		env, err := loadEnv(ctx, true)
		if err != nil {
			return err
		}
		return uploadAvatar(ctx, env, picker)
	},
}

func init() {
	avatarCmd.Flags().StringVarP(&avatarFile, "file", "f", "", "Image to upload")
}
