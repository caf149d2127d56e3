package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/profiles/internal/credentials"
	"github.com/zfogg/sidechain/profiles/internal/output"
	"github.com/zfogg/sidechain/profiles/internal/prompter"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
}

var authTokenCmd = &cobra.Command{
	Use:   "token [access-token]",
	Short: "Save an access token for later commands",
	Long:  "Save an access token issued by the Sidechain API. Without an argument the token is read from stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := ""
		if len(args) == 1 {
			token = args[0]
		} else {
			t, err := prompter.PromptString("Access token", "")
			if err != nil {
				return err
			}
			token = t
		}
		return saveToken(strings.TrimSpace(token))
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show who you are logged in as",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := credentials.Load(cfg.CredentialsPath)
		if err != nil {
			return err
		}
		if creds == nil {
			output.PrintWarning("Not logged in")
			return nil
		}
		state := "valid"
		if creds.IsExpired() {
			state = "expired"
		}
		output.PrintFields([]output.Field{
			{Key: "Username", Value: creds.Username},
			{Key: "User ID", Value: creds.UserID},
			{Key: "Expires", Value: fmt.Sprintf("%s (%s)", creds.ExpiresAt.Local().Format("2006-01-02 15:04"), state)},
		})
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := credentials.Delete(cfg.CredentialsPath); err != nil {
			return err
		}
		output.PrintSuccess("✓ Logged out")
		return nil
	},
}

func saveToken(token string) error {
	if token == "" {
		return fmt.Errorf("no access token given")
	}
	creds, err := credentials.FromToken(token)
	if err != nil {
		return err
	}
	if creds.IsExpired() {
		return fmt.Errorf("access token expired at %s", creds.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	if err := credentials.Save(cfg.CredentialsPath, creds); err != nil {
		return err
	}
	output.PrintSuccess("✓ Logged in as %s", creds.Username)
	return nil
}

func init() {
	authCmd.AddCommand(authTokenCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
}
