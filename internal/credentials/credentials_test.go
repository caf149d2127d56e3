package credentials

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/profiles/internal/auth"
	"github.com/zfogg/sidechain/profiles/internal/models"
)

func TestCredentialsIsValid(t *testing.T) {
	testCases := []struct {
		name        string
		accessToken string
		userID      string
		expiresAt   time.Time
		expect      bool
	}{
		{"valid credentials", "tok", "u1", time.Now().Add(time.Hour), true},
		{"empty access token", "", "u1", time.Now().Add(time.Hour), false},
		{"no user", "tok", "", time.Now().Add(time.Hour), false},
		{"expired token", "tok", "u1", time.Now().Add(-time.Minute), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			creds := &Credentials{AccessToken: tc.accessToken, UserID: tc.userID, ExpiresAt: tc.expiresAt}
			assert.Equal(t, tc.expect, creds.IsValid())
		})
	}
}

func TestSaveLoadDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")

	missing, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, missing)

	creds := &Credentials{AccessToken: "tok", UserID: "u1", Username: "ada", ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second)}
	require.NoError(t, Save(path, creds))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, creds.AccessToken, loaded.AccessToken)
	assert.True(t, creds.ExpiresAt.Equal(loaded.ExpiresAt))
	assert.Equal(t, auth.Identity{UserID: "u1", Username: "ada"}, loaded.Identity())

	require.NoError(t, Delete(path))
	require.NoError(t, Delete(path), "deleting twice is fine")
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "corrupt credentials")
}

func TestFromToken(t *testing.T) {
	issued, err := auth.NewTokenService([]byte("secret"), time.Hour).
		Issue(&models.User{ID: "u1", Username: "ada", Email: "ada@example.test"})
	require.NoError(t, err)

	creds, err := FromToken(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", creds.UserID)
	assert.Equal(t, "ada", creds.Username)
	assert.WithinDuration(t, issued.ExpiresAt, creds.ExpiresAt, time.Second)
	assert.True(t, creds.IsValid())

	_, err = FromToken("not-a-token")
	assert.Error(t, err)
}
