package xstore

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xguard/internal/storageopt"
)

// compareAndDeleteScript 仅在值匹配时删除 key。
// 返回 1 表示已删除，0 表示值不匹配或 key 不存在。
var compareAndDeleteScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// compareAndExpireScript 仅在值匹配时重置过期时间（毫秒）。
var compareAndExpireScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Redis 是基于 go-redis 的 Store 实现。
type Redis struct {
	client  redis.UniversalClient
	options *RedisOptions
	health  storageopt.HealthProbe
	closed  atomic.Bool
}

var _ Store = (*Redis)(nil)

// NewRedis 创建 Redis Store。
// client 必须是已初始化的 redis.UniversalClient。
func NewRedis(client redis.UniversalClient, opts ...RedisOption) (*Redis, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	options := defaultRedisOptions()
	for _, opt := range opts {
		opt(options)
	}

	r := &Redis{client: client, options: options}
	r.health.Timeout = options.HealthTimeout
	if r.health.Timeout == 0 {
		r.health.Timeout = -1
	}
	return r, nil
}

// Get 实现 Store。
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if err := r.check(key); err != nil {
		return "", err
	}
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

// Set 实现 Store。
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.check(key); err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

// SetNX 实现 Store。
func (r *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := r.check(key); err != nil {
		return false, err
	}
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

// Delete 实现 Store。
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		if k == "" {
			return ErrEmptyKey
		}
	}
	return r.client.Del(ctx, keys...).Err()
}

// Incr 实现 Store。
func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	if err := r.check(key); err != nil {
		return 0, err
	}
	return r.client.Incr(ctx, key).Result()
}

// CompareAndDelete 实现 Store。
func (r *Redis) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	if err := r.check(key); err != nil {
		return false, err
	}
	n, err := compareAndDeleteScript.Run(ctx, r.client, []string{key}, expected).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CompareAndExpire 实现 Store。
func (r *Redis) CompareAndExpire(ctx context.Context, key, expected string, ttl time.Duration) (bool, error) {
	if err := r.check(key); err != nil {
		return false, err
	}
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	n, err := compareAndExpireScript.Run(ctx, r.client, []string{key}, expected, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Health 通过 PING 检查连接可用性。
func (r *Redis) Health(ctx context.Context) error {
	if r.closed.Load() {
		return ErrClosed
	}
	return r.health.Run(ctx, func(ctx context.Context) error {
		return r.client.Ping(ctx).Err()
	})
}

// HealthStats 返回累计的健康检查次数与失败次数。
func (r *Redis) HealthStats() (pings, errs int64) {
	return r.health.Counts()
}

// Client 返回底层的 redis.UniversalClient。
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

// Close 关闭 Store。重复调用返回 ErrClosed。
func (r *Redis) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if r.options.OwnsClient {
		return r.client.Close()
	}
	return nil
}

func (r *Redis) check(key string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
