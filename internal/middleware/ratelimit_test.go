package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCheckRateLimit(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		calls   int
		limit   int
		allowed []bool
	}{
		{"Test Environment Bypass", "test", 3, 1, []bool{true, true, true}},
		{"Development Environment Bypass", "development", 3, 1, []bool{true, true, true}},
		{"Production Enforces Limit", "production", 3, 2, []bool{true, true, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", tt.env)
			_, rdb := newMiniRedis(t)

			for i := 0; i < tt.calls; i++ {
				allowed, err := CheckRateLimit(context.Background(), rdb, "login", "ip:1.2.3.4", tt.limit, time.Minute)
				require.NoError(t, err)
				assert.Equal(t, tt.allowed[i], allowed, "call %d", i+1)
			}
		})
	}
}

func TestCheckRateLimit_WindowExpiry(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr, rdb := newMiniRedis(t)
	ctx := context.Background()

	allowed, err := CheckRateLimit(ctx, rdb, "posts", "user:1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = CheckRateLimit(ctx, rdb, "posts", "user:1", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.Greater(t, mr.TTL("rl:posts:user:1"), time.Duration(0), "the window carries a TTL")

	mr.FastForward(2 * time.Minute)
	allowed, err = CheckRateLimit(ctx, rdb, "posts", "user:1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckRateLimit_LocalFallback(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	local.reset()

	ctx := context.Background()
	first, err := CheckRateLimit(ctx, nil, "search", "ip:9.9.9.9", 1, time.Hour)
	require.NoError(t, err)
	second, err := CheckRateLimit(ctx, nil, "search", "ip:9.9.9.9", 1, time.Hour)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	t.Run("Bypass in test mode", func(t *testing.T) {
		t.Setenv("APP_ENV", "test")
		app := fiber.New()
		app.Get("/test", RateLimit(nil, 1, time.Minute), handler)

		for i := 0; i < 3; i++ {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			_ = resp.Body.Close()
		}
	})

	t.Run("Rejects over limit in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, rdb := newMiniRedis(t)
		app := fiber.New()
		app.Get("/test", RateLimit(rdb, 1, time.Minute, "limited"), handler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "60", resp.Header.Get(fiber.HeaderRetryAfter))
	})

	t.Run("Authenticated users have their own budget", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, rdb := newMiniRedis(t)
		app := fiber.New()
		app.Use(func(c *fiber.Ctx) error {
			if uid, err := strconv.ParseUint(c.Get("X-User"), 10, 32); err == nil {
				c.Locals("userID", uint(uid))
			}
			return c.Next()
		})
		app.Post("/like", RateLimit(rdb, 1, time.Minute, "like"), handler)

		for _, user := range []string{"1", "2"} {
			req := httptest.NewRequest(http.MethodPost, "/like", nil)
			req.Header.Set("X-User", user)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode, "user %s", user)
		}
	})

	t.Run("FailOpen uses local limiter when redis is down", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		local.reset()
		mr, rdb := newMiniRedis(t)
		mr.Close()

		app := fiber.New()
		app.Get("/test", RateLimit(rdb, 5, time.Minute, "open"), handler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil), 5000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("FailClosed when redis is down", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr, rdb := newMiniRedis(t)
		mr.Close()

		app := fiber.New()
		app.Get("/sensitive", RateLimitWithPolicy(rdb, 1, time.Minute, FailClosed), handler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sensitive", nil), 5000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}
