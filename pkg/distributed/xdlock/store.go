package xdlock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/omeyang/xguard/pkg/storage/xstore"
)

// unlockTimeout 是调用方 ctx 已取消时释放锁使用的独立超时。
const unlockTimeout = 5 * time.Second

// healthChecker 是可选的存储健康检查能力。
type healthChecker interface {
	Health(ctx context.Context) error
}

// storeFactory 基于 xstore.Store 的锁工厂。
type storeFactory struct {
	store    xstore.Store
	defaults []MutexOption
	closed   atomic.Bool
}

var _ Factory = (*storeFactory)(nil)

// NewStoreFactory 创建基于 Store 的锁工厂。
// defaults 作为每次加锁的基础选项，可被调用时传入的选项覆盖。
func NewStoreFactory(store xstore.Store, defaults ...MutexOption) (Factory, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	return &storeFactory{store: store, defaults: defaults}, nil
}

func (f *storeFactory) options(opts []MutexOption) *mutexOptions {
	all := make([]MutexOption, 0, len(f.defaults)+len(opts))
	all = append(all, f.defaults...)
	all = append(all, opts...)
	return applyMutexOptions(all)
}

// TryLock 实现 Locker。
func (f *storeFactory) TryLock(ctx context.Context, key string, opts ...MutexOption) (LockHandle, error) {
	if f.closed.Load() {
		return nil, ErrFactoryClosed
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	o := f.options(opts)
	if o.Expiry <= 0 {
		return nil, ErrInvalidExpiry
	}
	return f.tryOnce(ctx, o.KeyPrefix+key, o)
}

func (f *storeFactory) tryOnce(ctx context.Context, fullKey string, o *mutexOptions) (LockHandle, error) {
	token, err := o.GenValueFunc()
	if err != nil {
		return nil, fmt.Errorf("xdlock: generate token: %w", err)
	}

	ok, err := f.store.SetNX(ctx, fullKey, token, o.Expiry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &storeLockHandle{
		store:  f.store,
		key:    fullKey,
		token:  token,
		expiry: o.Expiry,
	}, nil
}

// Lock 实现 Factory。
func (f *storeFactory) Lock(ctx context.Context, key string, opts ...MutexOption) (LockHandle, error) {
	if f.closed.Load() {
		return nil, ErrFactoryClosed
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	o := f.options(opts)
	if o.Expiry <= 0 {
		return nil, ErrInvalidExpiry
	}
	fullKey := o.KeyPrefix + key

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for i := 0; i < o.Tries; i++ {
		if i > 0 {
			d := o.retryDelay(i)
			if timer == nil {
				timer = time.NewTimer(d)
			} else {
				timer.Reset(d)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		h, err := f.tryOnce(ctx, fullKey, o)
		if err != nil {
			return nil, err
		}
		if h != nil {
			return h, nil
		}
	}
	return nil, ErrLockFailed
}

// Close 实现 Factory。Store 的生命周期由调用方管理。
func (f *storeFactory) Close() error {
	f.closed.Store(true)
	return nil
}

// Health 实现 Factory。Store 不支持健康检查时视为健康。
func (f *storeFactory) Health(ctx context.Context) error {
	if f.closed.Load() {
		return ErrFactoryClosed
	}
	if hc, ok := f.store.(healthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}

// storeLockHandle 实现 LockHandle。
type storeLockHandle struct {
	store    xstore.Store
	key      string
	token    string
	expiry   time.Duration
	released atomic.Bool
}

// Unlock 实现 LockHandle。
func (h *storeLockHandle) Unlock(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	if h.released.Load() {
		return ErrNotLocked
	}
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()
	}

	ok, err := h.store.CompareAndDelete(ctx, h.key, h.token)
	if err != nil {
		return err
	}
	h.released.Store(true)
	if !ok {
		return ErrNotLocked
	}
	return nil
}

// Extend 实现 LockHandle。
func (h *storeLockHandle) Extend(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	if h.released.Load() {
		return ErrNotLocked
	}
	ok, err := h.store.CompareAndExpire(ctx, h.key, h.token, h.expiry)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtendFailed, err)
	}
	if !ok {
		return ErrNotLocked
	}
	return nil
}

// Key 实现 LockHandle。
func (h *storeLockHandle) Key() string { return h.key }

// Token 实现 LockHandle。
func (h *storeLockHandle) Token() string { return h.token }
