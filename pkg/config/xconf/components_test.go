package xconf

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xguard/pkg/storage/xcache"
	"github.com/omeyang/xguard/pkg/storage/xstore"
	"github.com/omeyang/xguard/pkg/util/xpool"
)

func TestRefresherSettings_NewPool(t *testing.T) {
	cfg, err := NewFromBytes([]byte("refresher:\n  core_workers: 1\n  max_workers: 3\n  queue_size: 4\n  overflow: reject\n"), FormatYAML)
	require.NoError(t, err)
	s, err := cfg.Settings()
	require.NoError(t, err)

	pool, err := s.Refresher.NewPool(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	assert.Equal(t, 1, pool.Workers())
	assert.Equal(t, 3, pool.MaxWorkers())
	assert.Equal(t, 4, pool.QueueSize())

	done := make(chan struct{})
	require.NoError(t, pool.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestRefresherSettings_NewPool_InvalidOverflow(t *testing.T) {
	r := Default().Refresher
	r.Overflow = "block"
	_, err := r.NewPool(nil)
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestRefresherSettings_NewPool_InvalidSize(t *testing.T) {
	r := Default().Refresher
	r.QueueSize = 0
	_, err := r.NewPool(nil)
	assert.ErrorIs(t, err, xpool.ErrInvalidQueueSize)
}

func TestCacheSettings_CacheOptions(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store, err := xstore.NewRedis(rc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg, err := NewFromBytes([]byte("cache:\n  null_ttl: 45s\n"), FormatYAML)
	require.NoError(t, err)
	s, err := cfg.Settings()
	require.NoError(t, err)

	c, err := xcache.New[int, string](store, append(s.Cache.CacheOptions(), xcache.WithLogger(nil))...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	ctx := context.Background()
	_, found, err := c.QueryWithPassThrough(ctx, "item:", 7, func(context.Context, int) (string, bool, error) {
		return "", false, nil
	}, time.Minute)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 45*time.Second, mr.TTL("item:7"))
}

func TestCacheSettings_CacheOptions_Invalid(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := xstore.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cs := Default().Cache
	cs.LockLease = 0
	_, err = xcache.New[int, string](store, cs.CacheOptions()...)
	assert.ErrorIs(t, err, xcache.ErrInvalidConfig)
}
