package xdlock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/go-redsync/redsync/v4"
	rsredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// Redsync 是 redsync.Redsync 的类型别名，用于访问 Redlock 的高级特性。
type Redsync = *redsync.Redsync

// RedisFactory 是基于 redsync 的锁工厂。
type RedisFactory interface {
	Factory

	// Redsync 返回底层 redsync 实例。
	Redsync() Redsync
}

type redisFactory struct {
	clients []redis.UniversalClient
	rs      *redsync.Redsync
	closed  atomic.Bool
}

// NewRedisFactory 创建 Redis 锁工厂。
// 单节点为标准 Redis 锁；多节点使用 Redlock 算法（需过半成功）。
// 工厂不负责关闭传入的客户端。
func NewRedisFactory(clients ...redis.UniversalClient) (RedisFactory, error) {
	if len(clients) == 0 {
		return nil, ErrNilClient
	}
	for i, client := range clients {
		if client == nil {
			return nil, errors.Join(ErrNilClient, errors.New("client at index "+strconv.Itoa(i)+" is nil"))
		}
	}

	pools := make([]rsredis.Pool, len(clients))
	for i, client := range clients {
		pools[i] = goredis.NewPool(client)
	}

	return &redisFactory{
		clients: clients,
		rs:      redsync.New(pools...),
	}, nil
}

// TryLock 实现 Locker，只尝试一次。
func (f *redisFactory) TryLock(ctx context.Context, key string, opts ...MutexOption) (LockHandle, error) {
	if f.closed.Load() {
		return nil, ErrFactoryClosed
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	mutex, fullKey, err := f.createMutex(key, opts)
	if err != nil {
		return nil, err
	}

	if err := mutex.TryLockContext(ctx); err != nil {
		err = wrapRedisError(err)
		if errors.Is(err, ErrLockHeld) {
			return nil, nil
		}
		return nil, err
	}
	return &redisLockHandle{mutex: mutex, key: fullKey}, nil
}

// Lock 实现 Factory。
func (f *redisFactory) Lock(ctx context.Context, key string, opts ...MutexOption) (LockHandle, error) {
	if f.closed.Load() {
		return nil, ErrFactoryClosed
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	mutex, fullKey, err := f.createMutex(key, opts)
	if err != nil {
		return nil, err
	}

	if err := mutex.LockContext(ctx); err != nil {
		// redsync 不会传递 context 错误，需要单独检查
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, wrapRedisError(err)
	}
	return &redisLockHandle{mutex: mutex, key: fullKey}, nil
}

func (f *redisFactory) createMutex(key string, opts []MutexOption) (*redsync.Mutex, string, error) {
	o := applyMutexOptions(opts)
	if o.Expiry <= 0 {
		return nil, "", ErrInvalidExpiry
	}
	fullKey := o.KeyPrefix + key

	rsOpts := []redsync.Option{
		redsync.WithExpiry(o.Expiry),
		redsync.WithTries(o.Tries),
		redsync.WithRetryDelay(o.RetryDelay),
		redsync.WithDriftFactor(o.DriftFactor),
		redsync.WithTimeoutFactor(o.TimeoutFactor),
		redsync.WithGenValueFunc(o.GenValueFunc),
		redsync.WithFailFast(o.FailFast),
		redsync.WithShufflePools(o.ShufflePools),
	}
	if o.RetryDelayFunc != nil {
		rsOpts = append(rsOpts, redsync.WithRetryDelayFunc(redsync.DelayFunc(o.RetryDelayFunc)))
	}
	return f.rs.NewMutex(fullKey, rsOpts...), fullKey, nil
}

// Close 实现 Factory。
func (f *redisFactory) Close() error {
	f.closed.Store(true)
	return nil
}

// Health 对所有节点执行 PING。
func (f *redisFactory) Health(ctx context.Context) error {
	if f.closed.Load() {
		return ErrFactoryClosed
	}
	for _, client := range f.clients {
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Redsync 实现 RedisFactory。
func (f *redisFactory) Redsync() Redsync {
	return f.rs
}

// redisLockHandle 实现 LockHandle。
type redisLockHandle struct {
	mutex *redsync.Mutex
	key   string
}

// Unlock 实现 LockHandle。
func (h *redisLockHandle) Unlock(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()
	}
	ok, err := h.mutex.UnlockContext(ctx)
	if err != nil {
		wrapped := wrapRedisError(err)
		if errors.Is(wrapped, ErrLockExpired) {
			return ErrNotLocked
		}
		return wrapped
	}
	if !ok {
		return ErrNotLocked
	}
	return nil
}

// Extend 实现 LockHandle。
func (h *redisLockHandle) Extend(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	ok, err := h.mutex.ExtendContext(ctx)
	if err != nil {
		wrapped := wrapRedisError(err)
		if errors.Is(wrapped, ErrLockExpired) {
			return ErrNotLocked
		}
		return wrapped
	}
	if !ok {
		return ErrNotLocked
	}
	return nil
}

// Key 实现 LockHandle。
func (h *redisLockHandle) Key() string { return h.key }

// Token 实现 LockHandle。
func (h *redisLockHandle) Token() string { return h.mutex.Value() }

// wrapRedisError 将 redsync 错误转换为 xdlock 错误，保留原始错误链。
func wrapRedisError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var errTaken *redsync.ErrTaken
	if errors.As(err, &errTaken) {
		return fmt.Errorf("%w: %w", ErrLockHeld, err)
	}
	if errors.Is(err, redsync.ErrFailed) {
		return fmt.Errorf("%w: %w", ErrLockFailed, err)
	}
	if errors.Is(err, redsync.ErrExtendFailed) {
		return fmt.Errorf("%w: %w", ErrExtendFailed, err)
	}
	if errors.Is(err, redsync.ErrLockAlreadyExpired) {
		return fmt.Errorf("%w: %w", ErrLockExpired, err)
	}
	return err
}
