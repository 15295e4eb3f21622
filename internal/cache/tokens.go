package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned for unknown or expired refresh tokens.
var ErrTokenNotFound = errors.New("token not found")

const (
	refreshKeyPrefix   = "refresh:"
	blacklistKeyPrefix = "blacklist:"
)

// TokenStore keeps refresh tokens and revoked access token IDs.
type TokenStore interface {
	SaveRefresh(ctx context.Context, token string, userID uint, ttl time.Duration) error
	// ConsumeRefresh returns the owner of token and deletes it.
	ConsumeRefresh(ctx context.Context, token string) (uint, error)
	DeleteRefresh(ctx context.Context, token string) error
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisTokenStore stores tokens in Redis with native expiry.
type RedisTokenStore struct {
	rdb *redis.Client
}

func NewRedisTokenStore(rdb *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb}
}

func (s *RedisTokenStore) SaveRefresh(ctx context.Context, token string, userID uint, ttl time.Duration) error {
	return s.rdb.Set(ctx, refreshKeyPrefix+token, strconv.FormatUint(uint64(userID), 10), ttl).Err()
}

func (s *RedisTokenStore) ConsumeRefresh(ctx context.Context, token string) (uint, error) {
	val, err := s.rdb.GetDel(ctx, refreshKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTokenNotFound
	}
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, ErrTokenNotFound
	}
	return uint(id), nil
}

func (s *RedisTokenStore) DeleteRefresh(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, refreshKeyPrefix+token).Err()
}

func (s *RedisTokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, blacklistKeyPrefix+jti, "1", ttl).Err()
}

func (s *RedisTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, blacklistKeyPrefix+jti).Result()
	return n > 0, err
}

type memoryEntry struct {
	userID    uint
	expiresAt time.Time
}

// memorySweepEvery bounds how often writes scan for expired entries.
const memorySweepEvery = time.Minute

// MemoryTokenStore is a process-local TokenStore for development and tests.
// Expired entries are dropped on writes.
type MemoryTokenStore struct {
	mu        sync.Mutex
	now       func() time.Time
	lastSweep time.Time
	refresh   map[string]memoryEntry
	revoked   map[string]time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		now:     time.Now,
		refresh: make(map[string]memoryEntry),
		revoked: make(map[string]time.Time),
	}
}

func (s *MemoryTokenStore) SaveRefresh(_ context.Context, token string, userID uint, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	s.refresh[token] = memoryEntry{userID: userID, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryTokenStore) ConsumeRefresh(_ context.Context, token string) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.refresh[token]
	delete(s.refresh, token)
	if !ok || !s.now().Before(e.expiresAt) {
		return 0, ErrTokenNotFound
	}
	return e.userID, nil
}

func (s *MemoryTokenStore) DeleteRefresh(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.refresh, token)
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	now := s.now()
	s.sweepLocked(now)
	s.revoked[jti] = now.Add(ttl)
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < memorySweepEvery {
		return
	}
	s.lastSweep = now
	for token, e := range s.refresh {
		if !now.Before(e.expiresAt) {
			delete(s.refresh, token)
		}
	}
	for jti, exp := range s.revoked {
		if !now.Before(exp) {
			delete(s.revoked, jti)
		}
	}
}

func (s *MemoryTokenStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	return ok && s.now().Before(exp), nil
}
