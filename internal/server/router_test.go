package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/profiles/internal/auth"
	"github.com/zfogg/sidechain/profiles/internal/client"
	"github.com/zfogg/sidechain/profiles/internal/database"
	"github.com/zfogg/sidechain/profiles/internal/handlers"
	"github.com/zfogg/sidechain/profiles/internal/models"
	"github.com/zfogg/sidechain/profiles/internal/profile"
	"github.com/zfogg/sidechain/profiles/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryCache struct {
	mu          sync.Mutex
	users       map[string]models.User
	hits        int
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{users: make(map[string]models.User)}
}

func (c *memoryCache) Get(_ context.Context, id string) (*models.User, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[id]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &u, true, nil
}

func (c *memoryCache) Set(_ context.Context, u *models.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[u.ID] = *u
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type mirrorFunc func(*models.User)

func (f mirrorFunc) MirrorProfile(_ context.Context, u *models.User) error {
	f(u)
	return nil
}

type testServer struct {
	router *gin.Engine
	repo   repository.UserRepository
	cache  *memoryCache
	tokens *auth.TokenService
	user   *models.User
	token  string
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	db := openDB(t)
	repo := repository.NewUserRepository(db)
	user := &models.User{
		Email:       "ada@example.test",
		Username:    "ada",
		DisplayName: "Ada",
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))

	tokens := auth.NewTokenService([]byte("test-secret"), time.Hour)
	issued, err := tokens.Issue(user)
	require.NoError(t, err)

	c := newMemoryCache()
	h := handlers.NewHandlers(db, repo)
	h.SetProfileCache(c)

	return &testServer{
		router: NewRouter(h, tokens),
		repo:   repo,
		cache:  c,
		tokens: tokens,
		user:   user,
		token:  issued.Token,
	}
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := setupServer(t)
	w := s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestGetMyProfile(t *testing.T) {
	s := setupServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/users/me", "", "").Code)

	w := s.do(http.MethodGet, "/api/v1/users/me", s.token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		User client.Profile `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Ada", body.User.DisplayName)
	assert.Empty(t, body.User.ProfilePictureURL)
	assert.Equal(t, models.DefaultAvatarURL, body.User.AvatarURL)

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/users/me", s.token, "").Code)
	assert.Equal(t, 1, s.cache.hits, "second read comes from the cache")
}

func TestUpdateMyProfileLeavesOmittedFields(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()

	w := s.do(http.MethodPatch, "/api/v1/users/me", s.token, `{"profile_picture_url":"https://cdn.example.test/profile-pics/u?v=1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got, err := s.repo.GetUser(ctx, s.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.DisplayName)
	assert.Equal(t, "https://cdn.example.test/profile-pics/u?v=1", got.ProfilePictureURL)

	w = s.do(http.MethodPut, "/api/v1/users/me", s.token, `{"display_name":"  Countess  "}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got, err = s.repo.GetUser(ctx, s.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Countess", got.DisplayName)
	assert.Equal(t, "https://cdn.example.test/profile-pics/u?v=1", got.ProfilePictureURL)

	assert.Equal(t, []string{s.user.ID, s.user.ID}, s.cache.invalidated)
}

func TestUpdateMyProfileRejections(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"empty object", `{}`, http.StatusBadRequest, ""},
		{"malformed json", `{"display_name":`, http.StatusBadRequest, ""},
		{"local file reference", `{"profile_picture_url":"file:///home/ada/a.png"}`, http.StatusUnprocessableEntity, "profile_picture_url"},
		{"not a url", `{"profile_picture_url":"avatar.png"}`, http.StatusUnprocessableEntity, "profile_picture_url"},
		{"name too long", `{"display_name":"` + strings.Repeat("x", profile.MaxDisplayNameLength+1) + `"}`, http.StatusUnprocessableEntity, "display_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPatch, "/api/v1/users/me", s.token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.field != "" {
				assert.Contains(t, w.Body.String(), `"field":"`+tt.field+`"`)
			}
		})
	}

	got, err := s.repo.GetUser(context.Background(), s.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.DisplayName)
	assert.Empty(t, got.ProfilePictureURL)
}

func TestUnknownUserToken(t *testing.T) {
	s := setupServer(t)
	ghost, err := s.tokens.Issue(&models.User{ID: "ghost", Username: "ghost"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/users/me", ghost.Token, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPatch, "/api/v1/users/me", ghost.Token, `{"display_name":"Boo"}`).Code)
}

func TestAPIUpdaterAgainstRouter(t *testing.T) {
	s := setupServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	api := client.NewProfileAPI(client.New(srv.URL, 5*time.Second, s.token))
	identity, err := s.tokens.Validate(s.token)
	require.NoError(t, err)
	updater := profile.NewAPIUpdater(api, identity)
	ctx := context.Background()

	ref := "https://cdn.example.test/profile-pics/" + s.user.ID + "?v=abc"
	require.NoError(t, updater.Apply(ctx, profile.MediaPatch(ref)))
	require.NoError(t, updater.Apply(ctx, profile.MediaPatch(ref)), "applying twice is harmless")

	me, err := api.GetMe(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada", me.DisplayName)
	assert.Equal(t, ref, me.ProfilePictureURL)
	assert.Equal(t, ref, me.AvatarURL)

	bad := profile.NewAPIUpdater(client.NewProfileAPI(client.New(srv.URL, 5*time.Second, "expired")), identity)
	assert.ErrorIs(t, bad.Apply(ctx, profile.DisplayNamePatch("x")), profile.ErrAuth)
}

func TestMirrorReceivesCommittedProfile(t *testing.T) {
	db := openDB(t)
	repo := repository.NewUserRepository(db)
	user := &models.User{Email: "bob@example.test", Username: "bob", DisplayName: "Bob"}
	require.NoError(t, repo.CreateUser(context.Background(), user))

	var mirrored []models.User
	h := handlers.NewHandlers(db, repo)
	h.SetMirror(mirrorFunc(func(u *models.User) { mirrored = append(mirrored, *u) }))

	tokens := auth.NewTokenService([]byte("s"), time.Hour)
	issued, err := tokens.Issue(user)
	require.NoError(t, err)

	s := &testServer{router: NewRouter(h, tokens)}
	w := s.do(http.MethodPatch, "/api/v1/users/me", issued.Token, `{"display_name":"Robert"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mirrored, 1)
	assert.Equal(t, "Robert", mirrored[0].DisplayName)
}
