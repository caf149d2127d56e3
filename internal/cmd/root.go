package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/profiles/internal/config"
	"github.com/zfogg/sidechain/profiles/internal/logger"
)

var (
	verbose    bool
	configPath string

	cfg *config.Client
)

var rootCmd = &cobra.Command{
	Use:   "profile-cli",
	Short: "Edit your Sidechain profile from the terminal",
	Long: `profile-cli updates the display name and profile picture of the
logged-in Sidechain user. Pictures are uploaded to object storage and the
resulting link is saved to the profile.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadClient(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c

		level := c.LogLevel
		if verbose {
			level = "debug"
		}
		return logger.InitializeWithOptions(logger.Options{Level: level, File: c.LogFile, Console: verbose})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to the terminal")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/sidechain/profiles/config.toml)")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(nameCmd)
	rootCmd.AddCommand(avatarCmd)
}
