package credentials

import (
	"errors"
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/sidechain/profiles/internal/auth"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Credentials struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
}

// FromToken builds credentials from a signed access token. The signature is
// checked by the server on first use, not here.
func FromToken(token string) (*Credentials, error) {
	identity, expiresAt, err := auth.IdentityFromToken(token)
	if err != nil {
		return nil, err
	}
	return &Credentials{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		UserID:      identity.UserID,
		Username:    identity.Username,
		Email:       identity.Email,
	}, nil
}

// Load loads credentials from path. Missing credentials are (nil, nil).
func Load(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("corrupt credentials file %s: %w", path, err)
	}
	return &creds, nil
}

// Save writes credentials readable by the owner only
func Save(path string, creds *Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Delete removes saved credentials. Deleting nothing is not an error.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// IsExpired checks if the access token is expired
func (c *Credentials) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// IsValid checks if credentials are usable
func (c *Credentials) IsValid() bool {
	return c.AccessToken != "" && c.UserID != "" && !c.IsExpired()
}

// Identity is the user these credentials act for
func (c *Credentials) Identity() auth.Identity {
	return auth.Identity{UserID: c.UserID, Username: c.Username, Email: c.Email}
}
