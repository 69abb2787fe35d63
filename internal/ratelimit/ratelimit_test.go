package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newMemory(threshold int) (*MemoryLimiter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(threshold)
	l.Now = clk.now
	return l, clk
}

func TestMemoryLimiterWindow(t *testing.T) {
	l, clk := newMemory(0)
	ctx := context.Background()
	key := SignIn.Key("10.0.0.1")

	for i := 1; i <= SignIn.Max; i++ {
		d, err := l.Check(ctx, key, SignIn.Max, SignIn.Window)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "attempt %d", i)
		assert.Equal(t, i, d.Count)
	}

	clk.advance(time.Minute)
	d, err := l.Check(ctx, key, SignIn.Max, SignIn.Window)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 14*time.Minute, d.RetryAfter)
	assert.Equal(t, 840, d.RetryAfterSeconds())

	other, err := l.Check(ctx, SignIn.Key("10.0.0.2"), SignIn.Max, SignIn.Window)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are independent")

	clk.advance(14 * time.Minute)
	d, err = l.Check(ctx, key, SignIn.Max, SignIn.Window)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "window elapsed")
	assert.Equal(t, 1, d.Count)
}

func TestMemoryLimiterReset(t *testing.T) {
	l, _ := newMemory(0)
	ctx := context.Background()
	_, _ = l.Check(ctx, "k", 1, time.Minute)
	d, _ := l.Check(ctx, "k", 1, time.Minute)
	require.False(t, d.Allowed)

	require.NoError(t, l.Reset(ctx, "k"))
	d, _ = l.Check(ctx, "k", 1, time.Minute)
	assert.True(t, d.Allowed)
}

func TestMemoryLimiterSweepsExpiredEntries(t *testing.T) {
	l, clk := newMemory(10)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_, _ = l.Check(ctx, fmt.Sprint("old-", i), 5, time.Second)
	}
	assert.Equal(t, 20, l.Len())

	clk.advance(2 * time.Second)
	_, _ = l.Check(ctx, "fresh", 5, time.Minute)
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiterThrottlesSizeSweeps(t *testing.T) {
	l, clk := newMemory(10)
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		_, _ = l.Check(ctx, fmt.Sprint("short-", i), 5, 100*time.Millisecond)
	}

	clk.advance(200 * time.Millisecond)
	_, _ = l.Check(ctx, "fresh", 5, time.Minute)
	assert.Equal(t, 16, l.Len(), "no rescan within a second of the last sweep")

	clk.advance(time.Second)
	_, _ = l.Check(ctx, "later", 5, time.Minute)
	assert.Equal(t, 2, l.Len())
}

func TestMemoryLimiterConcurrentIncrements(t *testing.T) {
	l := NewMemoryLimiter(0)
	ctx := context.Background()
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _ := l.Check(ctx, "k", 10, time.Hour)
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	assert.Equal(t, 1, Decision{RetryAfter: 0}.RetryAfterSeconds())
	assert.Equal(t, 1, Decision{RetryAfter: 200 * time.Millisecond}.RetryAfterSeconds())
	assert.Equal(t, 2, Decision{RetryAfter: 1001 * time.Millisecond}.RetryAfterSeconds())
}

func newRedisLimiterForTest(t *testing.T) (*miniredis.Miniredis, *RedisLimiter) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return m, NewRedisLimiter(client, "rl_test")
}

func TestRedisLimiterWindow(t *testing.T) {
	m, l := newRedisLimiterForTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Check(ctx, "forgot-password:1.2.3.4", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Check(ctx, "forgot-password:1.2.3.4", 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.True(t, m.Exists("rl_test:forgot-password:1.2.3.4"))

	m.FastForward(time.Hour)
	d, err = l.Check(ctx, "forgot-password:1.2.3.4", 3, time.Hour)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestRedisLimiterReset(t *testing.T) {
	_, l := newRedisLimiterForTest(t)
	ctx := context.Background()
	_, err := l.Check(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, l.Reset(ctx, "k"))
	d, err := l.Check(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiterBackendErrors(t *testing.T) {
	_, err := NewRedisLimiter(nil, "").Check(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)

	bad := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 20 * time.Millisecond})
	t.Cleanup(func() { _ = bad.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = NewRedisLimiter(bad, "").Check(ctx, "k", 1, time.Minute)
	assert.Error(t, err)
}
