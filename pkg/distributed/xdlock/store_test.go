package xdlock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/omeyang/xguard/pkg/distributed/xdlock"
	"github.com/omeyang/xguard/pkg/storage/xstore"
	"github.com/omeyang/xguard/pkg/storage/xstore/xstoremock"
)

func newStoreFactory(t *testing.T, opts ...xdlock.MutexOption) (xdlock.Factory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := xstore.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f, err := xdlock.NewStoreFactory(store, opts...)
	require.NoError(t, err)
	return f, mr
}

func TestNewStoreFactory_NilStore(t *testing.T) {
	_, err := xdlock.NewStoreFactory(nil)
	assert.ErrorIs(t, err, xdlock.ErrNilStore)
}

func TestStoreFactory_TryLock_AcquireThenHeld(t *testing.T) {
	f, mr := newStoreFactory(t)
	ctx := context.Background()

	h, err := f.TryLock(ctx, "cache:shop:1", xdlock.WithExpiry(10*time.Second))
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "lock:cache:shop:1", h.Key())
	assert.NotEmpty(t, h.Token())

	stored, err := mr.Get("lock:cache:shop:1")
	require.NoError(t, err)
	assert.Equal(t, h.Token(), stored)
	assert.Equal(t, 10*time.Second, mr.TTL("lock:cache:shop:1"))

	// 不可重入：同一进程再次获取也失败
	again, err := f.TryLock(ctx, "cache:shop:1")
	require.NoError(t, err)
	assert.Nil(t, again)

	require.NoError(t, h.Unlock(ctx))
	assert.False(t, mr.Exists("lock:cache:shop:1"))

	next, err := f.TryLock(ctx, "cache:shop:1")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.NotEqual(t, h.Token(), next.Token())
}

func TestStoreFactory_Unlock_AfterLeaseExpiry_KeepsSuccessorLock(t *testing.T) {
	f, mr := newStoreFactory(t)
	ctx := context.Background()

	stale, err := f.TryLock(ctx, "k", xdlock.WithExpiry(time.Second))
	require.NoError(t, err)
	require.NotNil(t, stale)

	mr.FastForward(2 * time.Second)

	successor, err := f.TryLock(ctx, "k", xdlock.WithExpiry(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, successor)

	// 旧持有者释放不能删除新持有者的锁
	assert.ErrorIs(t, stale.Unlock(ctx), xdlock.ErrNotLocked)
	stored, err := mr.Get("lock:k")
	require.NoError(t, err)
	assert.Equal(t, successor.Token(), stored)

	assert.ErrorIs(t, stale.Extend(ctx), xdlock.ErrNotLocked)
	require.NoError(t, successor.Unlock(ctx))
}

func TestStoreFactory_Unlock_Twice(t *testing.T) {
	f, _ := newStoreFactory(t)
	ctx := context.Background()

	h, err := f.TryLock(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, h.Unlock(ctx))
	assert.ErrorIs(t, h.Unlock(ctx), xdlock.ErrNotLocked)
	assert.ErrorIs(t, h.Extend(ctx), xdlock.ErrNotLocked)
}

func TestStoreFactory_Unlock_WithCanceledContext(t *testing.T) {
	f, mr := newStoreFactory(t)

	h, err := f.TryLock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.Unlock(ctx))
	assert.False(t, mr.Exists("lock:k"))
}

func TestStoreFactory_Extend(t *testing.T) {
	f, mr := newStoreFactory(t)
	ctx := context.Background()

	h, err := f.TryLock(ctx, "k", xdlock.WithExpiry(5*time.Second))
	require.NoError(t, err)

	mr.FastForward(4 * time.Second)
	require.NoError(t, h.Extend(ctx))
	assert.Equal(t, 5*time.Second, mr.TTL("lock:k"))
}

func TestStoreFactory_Lock_WaitsForRelease(t *testing.T) {
	f, _ := newStoreFactory(t)
	ctx := context.Background()

	holder, err := f.TryLock(ctx, "k")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = holder.Unlock(context.Background())
	}()

	h, err := f.Lock(ctx, "k", xdlock.WithRetryDelay(5*time.Millisecond), xdlock.WithTries(100))
	require.NoError(t, err)
	require.NotNil(t, h)
	require.NoError(t, h.Unlock(ctx))
}

func TestStoreFactory_Lock_TriesExhausted(t *testing.T) {
	f, _ := newStoreFactory(t)
	ctx := context.Background()

	_, err := f.TryLock(ctx, "k")
	require.NoError(t, err)

	_, err = f.Lock(ctx, "k", xdlock.WithTries(3), xdlock.WithRetryDelay(time.Millisecond))
	assert.ErrorIs(t, err, xdlock.ErrLockFailed)
}

func TestStoreFactory_Lock_ContextCanceled(t *testing.T) {
	f, _ := newStoreFactory(t)

	_, err := f.TryLock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Lock(ctx, "k", xdlock.WithRetryDelay(5*time.Millisecond))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStoreFactory_MutualExclusion(t *testing.T) {
	f, _ := newStoreFactory(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := f.TryLock(ctx, "contended")
			if err == nil && h != nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestStoreFactory_Validation(t *testing.T) {
	f, _ := newStoreFactory(t)
	ctx := context.Background()

	_, err := f.TryLock(ctx, "  ")
	assert.ErrorIs(t, err, xdlock.ErrEmptyKey)

	_, err = f.TryLock(ctx, "k", xdlock.WithExpiry(0))
	assert.ErrorIs(t, err, xdlock.ErrInvalidExpiry)

	require.NoError(t, f.Health(ctx))
	require.NoError(t, f.Close())
	_, err = f.TryLock(ctx, "k")
	assert.ErrorIs(t, err, xdlock.ErrFactoryClosed)
	assert.ErrorIs(t, f.Health(ctx), xdlock.ErrFactoryClosed)
}

func TestStoreFactory_DefaultsAndOverrides(t *testing.T) {
	f, mr := newStoreFactory(t,
		xdlock.WithKeyPrefix("mutex:"),
		xdlock.WithGenValueFunc(func() (string, error) { return "fixed-token", nil }),
	)

	h, err := f.TryLock(context.Background(), "k", xdlock.WithExpiry(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "mutex:k", h.Key())
	assert.Equal(t, "fixed-token", h.Token())
	assert.Equal(t, time.Minute, mr.TTL("mutex:k"))
}

func TestStoreFactory_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := xstoremock.NewMockStore(ctrl)
	boom := errors.New("redis down")
	store.EXPECT().SetNX(gomock.Any(), "lock:k", gomock.Any(), 10*time.Second).Return(false, boom)

	f, err := xdlock.NewStoreFactory(store)
	require.NoError(t, err)

	h, err := f.TryLock(context.Background(), "k")
	assert.Nil(t, h)
	assert.ErrorIs(t, err, boom)
}

func TestStoreFactory_ExtendError_WrapsErrExtendFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := xstoremock.NewMockStore(ctrl)
	boom := errors.New("redis down")
	store.EXPECT().SetNX(gomock.Any(), "lock:k", gomock.Any(), gomock.Any()).Return(true, nil)
	store.EXPECT().CompareAndExpire(gomock.Any(), "lock:k", gomock.Any(), gomock.Any()).Return(false, boom)

	f, err := xdlock.NewStoreFactory(store)
	require.NoError(t, err)
	h, err := f.TryLock(context.Background(), "k")
	require.NoError(t, err)

	err = h.Extend(context.Background())
	assert.ErrorIs(t, err, xdlock.ErrExtendFailed)
	assert.ErrorIs(t, err, boom)
}
