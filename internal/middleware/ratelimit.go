package middleware

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"artenis/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// FailPolicy decides what happens to a request when Redis cannot answer.
type FailPolicy int

const (
	// FailOpen counts the request in the in-process limiter instead.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// fixedWindow increments the counter and starts its window on first use in
// one round trip, so a crash between INCR and PEXPIRE cannot leave a
// counter without a TTL.
var fixedWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

const maxLocalLimiters = 10000

// bucketStore holds token buckets for when Redis is absent or failing. It is
// cleared wholesale once it grows past maxLocalLimiters.
type bucketStore struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

var local = &bucketStore{buckets: make(map[string]*rate.Limiter)}

func (s *bucketStore) allow(key string, limit int, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buckets[key]
	if b == nil {
		if len(s.buckets) >= maxLocalLimiters {
			s.buckets = make(map[string]*rate.Limiter)
		}
		b = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
		s.buckets[key] = b
	}
	return b.Allow()
}

func (s *bucketStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[string]*rate.Limiter)
}

// rateLimitBypassed is true outside deployed environments so local runs and
// load tests are not throttled.
func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

func limitKey(resource, id string) string {
	return "rl:" + resource + ":" + id
}

// CheckRateLimit counts one hit of id against resource and reports whether
// it fits in limit per window. Without a Redis client the in-process
// limiter answers.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rateLimitBypassed() {
		return true, nil
	}
	key := limitKey(resource, id)
	if rdb == nil {
		return local.allow(key, limit, window), nil
	}

	n, err := fixedWindow.Run(ctx, rdb, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n <= int64(limit), nil
}

// RateLimit allows limit requests per window for each caller, keyed by the
// authenticated user or else the client IP. name labels the budget; it
// defaults to the request path. Redis outages fall back to the in-process
// limiter.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit Redis failure policy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resource := c.Path()
		if len(name) > 0 && name[0] != "" {
			resource = name[0]
		}
		id := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			id = "user:" + strconv.FormatUint(uint64(uid), 10)
		}

		ctx := c.UserContext()
		allowed, err := CheckRateLimit(ctx, rdb, resource, id, limit, window)
		if err != nil {
			Logger.WarnContext(ctx, "rate limit store unavailable",
				slog.String("resource", resource), slog.String("error", err.Error()))
			if policy == FailClosed {
				return models.RespondWithError(c, fiber.StatusServiceUnavailable,
					&models.AppError{Code: models.CodeInternal, Message: "rate limit unavailable", Err: err})
			}
			allowed = local.allow(limitKey(resource, id), limit, window)
		}

		if !allowed {
			RateLimitRejections.WithLabelValues(resource).Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return models.RespondWithAppError(c, models.NewRateLimitError("rate limit exceeded"))
		}
		return c.Next()
	}
}
