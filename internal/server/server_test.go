package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"artenis/internal/config"
	"artenis/internal/middleware"
	"artenis/internal/models"
	"artenis/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret-key-12345678901234567890123456789012"

func testConfig() *config.Config {
	return &config.Config{
		Port:                "0",
		Env:                 "test",
		JWTSecret:           testJWTSecret,
		JWTAccessTTLMinutes: 15,
		JWTRefreshTTLHours:  24,
		MediaStorage:        config.StorageMemory,
		MediaMaxUploadMB:    10,
		FeedCandidateLimit:  200,
		AllowedOrigins:      "http://localhost:5173",
	}
}

// newTestServer wires a Server over an in-memory SQLite database with routes
// registered and no Redis.
func newTestServer(t *testing.T) (*Server, *fiber.App, *gorm.DB) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	s, err := NewServerWithDeps(testConfig(), db, nil)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: s.errorHandler})
	s.SetupRoutes(app)
	return s, app, db
}

func bearer(t *testing.T, userID uint) string {
	t.Helper()
	token, _, err := middleware.IssueAccessToken(testJWTSecret, userID, time.Hour, time.Now())
	require.NoError(t, err)
	return "Bearer " + token
}

// call performs a request with an optional JSON body and bearer token.
func call(t *testing.T, app *fiber.App, method, path string, body any, auth string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set(fiber.HeaderAuthorization, auth)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestHealthLive(t *testing.T) {
	_, app, _ := newTestServer(t)

	resp := call(t, app, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthReady_WithoutRedisIsUnavailable(t *testing.T) {
	_, app, _ := newTestServer(t)

	resp := call(t, app, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "unavailable", checks["redis"])
}

func TestRoutes_LiteralSegmentsBeatNumericParams(t *testing.T) {
	_, app, db := newTestServer(t)
	user := testutil.CreateUser(t, db)

	resp := call(t, app, http.MethodGet, "/api/users/profile", nil, bearer(t, user.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[models.UserProfile](t, resp)
	assert.Equal(t, user.ID, profile.ID)

	resp = call(t, app, http.MethodGet, "/api/users/profile", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMemoryMediaIsServed(t *testing.T) {
	s, app, db := newTestServer(t)
	user := testutil.CreateUser(t, db)

	url, err := s.media.Put(t.Context(), "posts/1/clip.mp4", "video/mp4", []byte("fake-video"))
	require.NoError(t, err)
	assert.Equal(t, "/media/posts/1/clip.mp4", url)

	resp := call(t, app, http.MethodGet, url, nil, bearer(t, user.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/mp4", resp.Header.Get(fiber.HeaderContentType))

	resp = call(t, app, http.MethodGet, "/media/posts/1/missing.mp4", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
