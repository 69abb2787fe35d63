package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// The first hit of a window creates the key with the window as TTL; later
// hits only increment.  A key that somehow lost its TTL gets it back.
var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return { count, ttl }
`)

// RedisLimiter keeps counters in Redis so every instance sees the same
// windows.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLimiter(rdb *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisLimiter{rdb: rdb, prefix: prefix}
}

func (l *RedisLimiter) key(k string) string { return l.prefix + ":" + k }

func (l *RedisLimiter) Check(ctx context.Context, key string, max int, win time.Duration) (Decision, error) {
	if l.rdb == nil {
		return Decision{}, errors.New("redis limiter: nil client")
	}
	vals, err := fixedWindowScript.Run(ctx, l.rdb, []string{l.key(key)}, win.Milliseconds()).Result()
	if err != nil {
		return Decision{}, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 2 {
		return Decision{}, fmt.Errorf("redis limiter: unexpected script result %#v", vals)
	}
	count, err := parseRedisInt64(arr[0])
	if err != nil {
		return Decision{}, err
	}
	ttl, err := parseRedisInt64(arr[1])
	if err != nil {
		return Decision{}, err
	}
	d := Decision{Allowed: count <= int64(max), Count: int(count)}
	if !d.Allowed {
		d.RetryAfter = time.Duration(ttl) * time.Millisecond
	}
	return d, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if l.rdb == nil {
		return errors.New("redis limiter: nil client")
	}
	return l.rdb.Del(ctx, l.key(key)).Err()
}

func parseRedisInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	default:
		return 0, fmt.Errorf("redis limiter: unexpected value type %T", v)
	}
}
