package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"artenis/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

type cachedThing struct {
	Name string `json:"name"`
}

func TestAside(t *testing.T) {
	mr := withMiniRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			calls++
			dest.Name = "from-db"
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, UserKey(1), &first, UserTTL, fetch(&first)))
	assert.Equal(t, "from-db", first.Name)
	assert.True(t, mr.Exists("user:1"))

	var second cachedThing
	require.NoError(t, Aside(ctx, UserKey(1), &second, UserTTL, fetch(&second)))
	assert.Equal(t, "from-db", second.Name)
	assert.Equal(t, 1, calls)

	mr.FastForward(UserTTL + time.Second)
	var third cachedThing
	require.NoError(t, Aside(ctx, UserKey(1), &third, UserTTL, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAsideFetchError(t *testing.T) {
	mr := withMiniRedis(t)
	boom := errors.New("boom")

	var dest cachedThing
	err := Aside(context.Background(), PostKey(5), &dest, PostTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("post:5"))
}

func TestAsideWithoutRedis(t *testing.T) {
	SetClient(nil)
	var dest cachedThing
	err := Aside(context.Background(), "k", &dest, time.Minute, func() error {
		dest.Name = "direct"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", dest.Name)
}

func TestInvalidateFeeds(t *testing.T) {
	mr := withMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, FeedKey(3, 1, "abc"), []int{1}, FeedTTL))
	require.NoError(t, SetJSON(ctx, FeedKey(3, 2, "abc"), []int{2}, FeedTTL))
	require.NoError(t, SetJSON(ctx, FeedKey(4, 1, "abc"), []int{3}, FeedTTL))

	InvalidateFeeds(ctx, 3)
	assert.False(t, mr.Exists("feed:3:1:abc"))
	assert.False(t, mr.Exists("feed:3:2:abc"))
	assert.True(t, mr.Exists("feed:4:1:abc"))
}

func tokenStores(t *testing.T) map[string]TokenStore {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]TokenStore{
		"redis":  NewRedisTokenStore(rdb),
		"memory": NewMemoryTokenStore(),
	}
}

func TestTokenStores(t *testing.T) {
	for name, store := range tokenStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.SaveRefresh(ctx, "tok", 11, time.Hour))
			userID, err := store.ConsumeRefresh(ctx, "tok")
			require.NoError(t, err)
			assert.Equal(t, uint(11), userID)

			_, err = store.ConsumeRefresh(ctx, "tok")
			assert.ErrorIs(t, err, ErrTokenNotFound)

			require.NoError(t, store.SaveRefresh(ctx, "other", 12, time.Hour))
			require.NoError(t, store.DeleteRefresh(ctx, "other"))
			_, err = store.ConsumeRefresh(ctx, "other")
			assert.ErrorIs(t, err, ErrTokenNotFound)

			revoked, err := store.IsRevoked(ctx, "jti-1")
			require.NoError(t, err)
			assert.False(t, revoked)

			require.NoError(t, store.Revoke(ctx, "jti-1", time.Minute))
			revoked, err = store.IsRevoked(ctx, "jti-1")
			require.NoError(t, err)
			assert.True(t, revoked)
		})
	}
}

func TestMemoryTokenStoreExpiry(t *testing.T) {
	store := NewMemoryTokenStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.SaveRefresh(ctx, "tok", 1, time.Minute))
	require.NoError(t, store.Revoke(ctx, "jti", time.Minute))

	now = now.Add(2 * time.Minute)
	_, err := store.ConsumeRefresh(ctx, "tok")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	revoked, err := store.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryTokenStoreSweepsExpired(t *testing.T) {
	store := NewMemoryTokenStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, store.SaveRefresh(ctx, fmt.Sprintf("tok-%d", i), 1, time.Minute))
		require.NoError(t, store.Revoke(ctx, fmt.Sprintf("jti-%d", i), time.Minute))
	}
	require.NoError(t, store.SaveRefresh(ctx, "long", 1, time.Hour))

	now = now.Add(2 * time.Minute)
	require.NoError(t, store.SaveRefresh(ctx, "fresh", 2, time.Minute))
	require.NoError(t, store.Revoke(ctx, "fresh-jti", time.Minute))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.refresh, 2)
	assert.Contains(t, store.refresh, "long")
	assert.Len(t, store.revoked, 1)
}

func TestOptions(t *testing.T) {
	opts, err := Options("redis://:secret@cache.internal:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = Options(" localhost:6379 ")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	_, err = Options("")
	assert.Error(t, err)
	_, err = Options("redis://host:6379/notadb")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := Open(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
	assert.True(t, mr.Exists("k"))

	addr := mr.Addr()
	mr.Close()
	_, err = Open(context.Background(), addr)
	assert.Error(t, err)
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCommandHookCountsFailures(t *testing.T) {
	mr := withMiniRedis(t)
	ctx := context.Background()
	counter := middleware.RedisErrors.WithLabelValues("get")
	before := counterValue(t, counter)

	_, err := GetClient().Get(ctx, "missing").Result()
	require.ErrorIs(t, err, redis.Nil)
	assert.Equal(t, before, counterValue(t, counter), "a miss is not a failure")

	mr.SetError("ERR injected failure")
	_, err = GetClient().Get(ctx, "missing").Result()
	require.Error(t, err)
	assert.Equal(t, before+1, counterValue(t, counter))
}

func TestGetJSONDropsUndecodableEntry(t *testing.T) {
	mr := withMiniRedis(t)
	require.NoError(t, mr.Set("post:9", "{not json"))

	var dest cachedThing
	hit, err := GetJSON(context.Background(), PostKey(9), &dest)
	assert.False(t, hit)
	assert.Error(t, err)
	assert.False(t, mr.Exists("post:9"))
}
