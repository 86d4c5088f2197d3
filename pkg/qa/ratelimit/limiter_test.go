package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"admission-chatbot-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
)

// memoryStore is an in-process CounterStore with the same atomicity contract
// as the Redis implementation.
type memoryStore struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Time
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		counts:  make(map[string]int64),
		expires: make(map[string]time.Time),
	}
}

func (s *memoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, 0, s.err
	}

	now := time.Now()
	if exp, ok := s.expires[key]; !ok || now.After(exp) {
		s.counts[key] = 0
		s.expires[key] = now.Add(window)
	}
	s.counts[key]++
	return s.counts[key], time.Until(s.expires[key]), nil
}

func testLogger() logger.ILogger {
	return logger.NewZapLogger("", false)
}

func TestCheckAndConsume_WindowLimit(t *testing.T) {
	store := newMemoryStore()
	limiter := NewLimiter(store, 20, time.Hour, testLogger())
	identity := Identity{Key: "visitor:abc"}

	for i := 1; i <= 20; i++ {
		res := limiter.CheckAndConsume(context.Background(), identity)
		assert.True(t, res.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 20-i, res.Remaining)
	}

	res := limiter.CheckAndConsume(context.Background(), identity)
	assert.False(t, res.Allowed, "21st request must be rejected")
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.ResetIn, time.Duration(0))
	assert.LessOrEqual(t, res.ResetIn, time.Hour)
}

func TestCheckAndConsume_IndependentIdentities(t *testing.T) {
	store := newMemoryStore()
	limiter := NewLimiter(store, 1, time.Hour, testLogger())

	first := limiter.CheckAndConsume(context.Background(), Identity{Key: "visitor:a"})
	second := limiter.CheckAndConsume(context.Background(), Identity{Key: "visitor:b"})

	assert.True(t, first.Allowed)
	assert.True(t, second.Allowed)
}

func TestCheckAndConsume_AuthenticatedBypass(t *testing.T) {
	store := newMemoryStore()
	limiter := NewLimiter(store, 1, time.Hour, testLogger())
	identity := Identity{Key: "user:staff", Authenticated: true}

	for i := 0; i < 50; i++ {
		res := limiter.CheckAndConsume(context.Background(), identity)
		assert.True(t, res.Allowed)
	}

	// Bypass must not touch the counter at all.
	assert.Empty(t, store.counts)
}

func TestCheckAndConsume_FailOpen(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	limiter := NewLimiter(store, 1, time.Hour, testLogger())

	res := limiter.CheckAndConsume(context.Background(), Identity{Key: "visitor:abc"})
	assert.True(t, res.Allowed, "store failure must fail open")
}

func TestCheckAndConsume_ConcurrentRequestsNeverExceedLimit(t *testing.T) {
	store := newMemoryStore()
	limit := 20
	limiter := NewLimiter(store, limit, time.Hour, testLogger())
	identity := Identity{Key: "visitor:race"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := limiter.CheckAndConsume(context.Background(), identity)
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, allowed, "exactly the window limit may pass")
}

func TestWindowReset(t *testing.T) {
	store := newMemoryStore()
	limiter := NewLimiter(store, 1, 50*time.Millisecond, testLogger())
	identity := Identity{Key: "visitor:reset"}

	assert.True(t, limiter.CheckAndConsume(context.Background(), identity).Allowed)
	assert.False(t, limiter.CheckAndConsume(context.Background(), identity).Allowed)

	time.Sleep(60 * time.Millisecond)

	assert.True(t, limiter.CheckAndConsume(context.Background(), identity).Allowed,
		"a new window grants a fresh allowance")
}

func TestPolicy(t *testing.T) {
	limiter := NewLimiter(newMemoryStore(), 20, time.Hour, testLogger())

	policy := limiter.Policy()
	assert.Equal(t, 20, policy.Limit)
	assert.Equal(t, 3600, policy.WindowSeconds)
	assert.NotEmpty(t, policy.Description)
}
