package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Client holds the profile CLI settings
type Client struct {
	Dir             string
	File            string
	CredentialsPath string

	APIBaseURL string
	APITimeout time.Duration

	// StorageDriver is "s3", the only driver the CLI ships with
	StorageDriver   string
	StorageBucket   string
	StorageRegion   string
	StorageBaseURL  string
	StorageEndpoint string

	// UploadTimeout of zero waits for the upload indefinitely
	UploadTimeout time.Duration

	LogLevel string
	LogFile  string
}

// getConfigDir returns the platform-specific config directory
func getConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = home
		}
		return filepath.Join(appData, "sidechain", "profiles"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sidechain", "profiles"), nil
}

// LoadClient reads config.toml from configPath (or the default config dir),
// layering it over defaults and SIDECHAIN_* environment overrides.
func LoadClient(configPath string) (*Client, error) {
	var dir, file string
	if configPath != "" {
		dir = filepath.Dir(configPath)
		file = configPath
	} else {
		d, err := getConfigDir()
		if err != nil {
			return nil, err
		}
		dir = d
		file = filepath.Join(dir, "config.toml")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v, dir)
	v.SetEnvPrefix("sidechain")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(file)
	// a missing user config just means defaults
	_ = v.ReadInConfig()

	return &Client{
		Dir:             dir,
		File:            file,
		CredentialsPath: filepath.Join(dir, "credentials"),
		APIBaseURL:      v.GetString("api.base_url"),
		APITimeout:      time.Duration(v.GetInt("api.timeout")) * time.Second,
		StorageDriver:   v.GetString("storage.driver"),
		StorageBucket:   v.GetString("storage.bucket"),
		StorageRegion:   v.GetString("storage.region"),
		StorageBaseURL:  v.GetString("storage.base_url"),
		StorageEndpoint: v.GetString("storage.endpoint"),
		UploadTimeout:   v.GetDuration("upload.timeout"),
		LogLevel:        v.GetString("log.level"),
		LogFile:         expandPath(v.GetString("log.file")),
	}, nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("api.base_url", "http://localhost:8787")
	v.SetDefault("api.timeout", 30)

	v.SetDefault("storage.driver", "s3")
	v.SetDefault("storage.bucket", "sidechain-media")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.base_url", "https://sidechain-media.s3.amazonaws.com")
	v.SetDefault("storage.endpoint", "")

	v.SetDefault("upload.timeout", "0s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dir, "profiles-cli.log"))
}

// expandPath expands ~ to the home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
