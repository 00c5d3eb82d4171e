package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/angelmondragon/contributions-backend/pkg/redis"
)

// DefaultCacheTTL bounds how long a terminal verification result is reused.
const DefaultCacheTTL = 5 * time.Minute

// VerificationCache memoizes terminal verification results by reference. It is a
// load-shedding layer only; every implementation may forget entries at any time.
type VerificationCache interface {
	Get(ctx context.Context, reference string) (*VerifyResult, bool, error)
	Set(ctx context.Context, reference string, result VerifyResult) error
}

type memoryEntry struct {
	result    VerifyResult
	expiresAt time.Time
}

// MemoryCache is a process-local TTL map.
type MemoryCache struct {
	ttl   time.Duration
	clock clockz.Clock

	mu      sync.Mutex
	entries map[string]memoryEntry
	writes  int
}

// NewMemoryCache builds a MemoryCache; ttl <= 0 uses DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return NewMemoryCacheWithClock(ttl, clockz.RealClock)
}

// NewMemoryCacheWithClock is NewMemoryCache with an explicit time source.
func NewMemoryCacheWithClock(ttl time.Duration, clock clockz.Clock) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = clockz.RealClock
	}
	return &MemoryCache{ttl: ttl, clock: clock, entries: map[string]memoryEntry{}}
}

func (m *MemoryCache) Get(_ context.Context, reference string) (*VerifyResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[reference]
	if !ok {
		return nil, false, nil
	}
	if !m.clock.Now().Before(entry.expiresAt) {
		delete(m.entries, reference)
		return nil, false, nil
	}
	result := entry.result
	return &result, true, nil
}

func (m *MemoryCache) Set(_ context.Context, reference string, result VerifyResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.entries[reference] = memoryEntry{result: result, expiresAt: now.Add(m.ttl)}
	m.writes++
	// sweep expired entries every 256 writes
	if m.writes%256 == 0 {
		for key, entry := range m.entries {
			if !now.Before(entry.expiresAt) {
				delete(m.entries, key)
			}
		}
	}
	return nil
}

// Len reports the number of stored entries, expired or not.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	VerifyCacheKey(reference string) string
}

var _ redisStore = (*redis.Client)(nil)

// RedisCache shares verification results across API instances.
type RedisCache struct {
	store redisStore
	ttl   time.Duration
}

func NewRedisCache(store redisStore, ttl time.Duration) (*RedisCache, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{store: store, ttl: ttl}, nil
}

func (r *RedisCache) Get(ctx context.Context, reference string) (*VerifyResult, bool, error) {
	raw, err := r.store.Get(ctx, r.store.VerifyCacheKey(reference))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get verification: %w", err)
	}
	var result VerifyResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, false, fmt.Errorf("decode cached verification: %w", err)
	}
	return &result, true, nil
}

func (r *RedisCache) Set(ctx context.Context, reference string, result VerifyResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode verification: %w", err)
	}
	if err := r.store.Set(ctx, r.store.VerifyCacheKey(reference), string(payload), r.ttl); err != nil {
		return fmt.Errorf("redis set verification: %w", err)
	}
	return nil
}
