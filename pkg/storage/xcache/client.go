package xcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/omeyang/xguard/internal/storageopt"
	"github.com/omeyang/xguard/pkg/distributed/xdlock"
	"github.com/omeyang/xguard/pkg/observability/xmetrics"
	"github.com/omeyang/xguard/pkg/storage/xstore"
	"github.com/omeyang/xguard/pkg/util/xcodec"
	"github.com/omeyang/xguard/pkg/util/xpool"
)

// nullMarker 表示"实体确定不存在"的缓存值。
const nullMarker = ""

// LoadFunc 从后端加载 id 对应的实体。
// 实体不存在返回 (零值, false, nil)，这是正常结果而非错误。
type LoadFunc[K comparable, V any] func(ctx context.Context, id K) (V, bool, error)

// entryState 表示一次缓存读取的结果。
type entryState int

const (
	entryMiss entryState = iota
	entryNull
	entryHit
)

// 观测属性 result 的取值。
const (
	resultHit    = "hit"
	resultNull   = "null"
	resultMiss   = "miss"
	resultStale  = "stale"
	resultLoaded = "loaded"
	resultAbsent = "absent"
)

// outcome 是一次查询的最终结果。
type outcome[V any] struct {
	value  V
	found  bool
	result string
}

// Client 是缓存查询客户端，并发安全。
type Client[K comparable, V any] struct {
	store    xstore.Store
	codec    xcodec.Codec[V]
	locker   xdlock.Locker
	lockOpts []xdlock.MutexOption
	opts     *options
	logger   *slog.Logger
	slow     *storageopt.SlowDetector[SlowLoad]
	group    singleflight.Group
	stats    counters

	poolMu sync.Mutex
	pool   *xpool.Pool[func()]
	closed bool
}

// New 创建缓存客户端。
//
// 未设置 WithLocker 时使用基于 store 的 SetNX 锁。
// 未设置 WithRefresher 时，首次逻辑过期重建会创建自有刷新池，需调用 Close 释放。
func New[K comparable, V any](store xstore.Store, opts ...Option) (*Client[K, V], error) {
	if store == nil {
		return nil, ErrNilStore
	}

	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	var codec xcodec.Codec[V] = xcodec.JSON[V]{}
	if o.codec != nil {
		c, ok := o.codec.(xcodec.Codec[V])
		if !ok {
			return nil, fmt.Errorf("%w: codec %T does not encode %T", ErrInvalidConfig, o.codec, *new(V))
		}
		codec = c
	}

	locker := o.locker
	if locker == nil {
		f, err := xdlock.NewStoreFactory(store)
		if err != nil {
			return nil, fmt.Errorf("xcache: create locker: %w", err)
		}
		locker = f
	}

	c := &Client[K, V]{
		store:  store,
		codec:  codec,
		locker: locker,
		lockOpts: []xdlock.MutexOption{
			xdlock.WithKeyPrefix(o.lockKeyPrefix),
			xdlock.WithExpiry(o.lockLease),
		},
		opts:   o,
		logger: o.logger,
	}

	slow, err := storageopt.NewSlowDetector(storageopt.SlowOptions[SlowLoad]{
		Threshold: o.slowThreshold,
		SyncHook: func(_ context.Context, info SlowLoad) {
			c.logger.Warn("xcache: slow load", "key", info.Key, "duration", info.Duration)
		},
		AsyncHook: o.slowHook,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	c.slow = slow
	return c, nil
}

// Close 关闭自有的刷新池并等待队列中的重建任务完成。
// 注入的 Refresher 不受影响。重复调用返回 nil。
func (c *Client[K, V]) Close(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	c.poolMu.Lock()
	if c.closed {
		c.poolMu.Unlock()
		return nil
	}
	c.closed = true
	pool := c.pool
	c.poolMu.Unlock()

	c.slow.Close()
	if pool != nil {
		return pool.Shutdown(ctx)
	}
	return nil
}

// Set 编码 value 并以 ttl 写入 key，ttl 为 0 表示不过期。
func (c *Client[K, V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if err := checkArgs(ctx, key); err != nil {
		return err
	}
	if ttl < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}
	b, err := c.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("xcache: encode %s: %w", key, err)
	}
	if err := c.store.Set(ctx, key, string(b), ttl); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrStore, key, err)
	}
	return nil
}

// SetWithLogicalExpire 写入逻辑过期条目，过期时间为 now+ttl，存储层不设 TTL。
func (c *Client[K, V]) SetWithLogicalExpire(ctx context.Context, key string, value V, ttl time.Duration) error {
	if err := checkArgs(ctx, key); err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}
	return c.writeEnvelope(ctx, key, value, ttl)
}

func (c *Client[K, V]) writeEnvelope(ctx context.Context, key string, value V, ttl time.Duration) error {
	b, err := xcodec.Wrap(c.codec, value, c.opts.clock().Add(ttl))
	if err != nil {
		return fmt.Errorf("xcache: encode %s: %w", key, err)
	}
	if err := c.store.Set(ctx, key, string(b), 0); err != nil {
		return fmt.Errorf("%w: set %s: %w", ErrStore, key, err)
	}
	return nil
}

// Delete 删除缓存条目，用于写路径失效。不存在的 key 不报错。
func (c *Client[K, V]) Delete(ctx context.Context, keys ...string) error {
	if ctx == nil {
		return ErrNilContext
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("%w: delete: %w", ErrStore, err)
	}
	return nil
}

// Warmup 回源并写入逻辑过期条目，返回实体是否存在。
// 实体不存在时不写入任何内容。
func (c *Client[K, V]) Warmup(ctx context.Context, keyPrefix string, id K, loader LoadFunc[K, V], ttl time.Duration) (bool, error) {
	key := Key(keyPrefix, id)
	if err := checkQuery(ctx, key, loader); err != nil {
		return false, err
	}
	if ttl <= 0 {
		return false, fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}

	v, found, err := c.load(ctx, key, id, loader)
	if err != nil || !found {
		return false, err
	}
	if err := c.writeEnvelope(ctx, key, v, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// Key 拼接缓存 key：keyPrefix + id。
func Key[K comparable](keyPrefix string, id K) string {
	return keyPrefix + fmt.Sprint(id)
}

func checkArgs(ctx context.Context, key string) error {
	if ctx == nil {
		return ErrNilContext
	}
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}

func checkQuery[K comparable, V any](ctx context.Context, key string, loader LoadFunc[K, V]) error {
	if err := checkArgs(ctx, key); err != nil {
		return err
	}
	if loader == nil {
		return ErrNilLoader
	}
	return nil
}

// read 读取原始值。不存在时返回 ok=false。
func (c *Client[K, V]) read(ctx context.Context, key string) (string, bool, error) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, xstore.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: get %s: %w", ErrStore, key, err)
	}
	return raw, true, nil
}

// lookup 读取普通条目。解码失败视为未命中。
func (c *Client[K, V]) lookup(ctx context.Context, key string) (V, entryState, error) {
	var zero V
	raw, ok, err := c.read(ctx, key)
	if err != nil || !ok {
		c.countLookup(entryMiss)
		return zero, entryMiss, err
	}
	if raw == nullMarker {
		c.countLookup(entryNull)
		return zero, entryNull, nil
	}
	v, err := c.codec.Decode([]byte(raw))
	if err != nil {
		c.corrupt(key, err)
		c.countLookup(entryMiss)
		return zero, entryMiss, nil
	}
	c.countLookup(entryHit)
	return v, entryHit, nil
}

func (c *Client[K, V]) countLookup(s entryState) {
	switch s {
	case entryHit:
		c.stats.hits.Add(1)
	case entryNull:
		c.stats.nullHits.Add(1)
	default:
		c.stats.misses.Add(1)
	}
}

func (c *Client[K, V]) corrupt(key string, err error) {
	c.stats.corrupt.Add(1)
	c.logger.Warn("xcache: corrupt cache entry", "key", key, "error", err)
}

// load 调用回源函数，统计耗时并把 panic 转为 ErrLoaderFailed。
func (c *Client[K, V]) load(ctx context.Context, key string, id K, loader LoadFunc[K, V]) (v V, found bool, err error) {
	c.stats.loads.Add(1)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			var zero V
			v, found = zero, false
			err = fmt.Errorf("%w: %s: %w: %v", ErrLoaderFailed, key, ErrLoadPanic, r)
			c.logger.Error("xcache: loader panicked", "key", key, "panic", r, "stack", string(debug.Stack()))
		}
		if err != nil {
			c.stats.loadErrors.Add(1)
		}
		c.slow.Observe(ctx, SlowLoad{Key: key, Duration: time.Since(start)}, time.Since(start))
	}()

	v, found, err = loader(ctx, id)
	if err != nil {
		var zero V
		return zero, false, fmt.Errorf("%w: %s: %w", ErrLoaderFailed, key, err)
	}
	return v, found, nil
}

// loadAndStore 回源并写回普通条目或空值标记。写回失败只记录日志。
func (c *Client[K, V]) loadAndStore(ctx context.Context, key string, id K, loader LoadFunc[K, V], ttl time.Duration) (outcome[V], error) {
	v, found, err := c.load(ctx, key, id, loader)
	if err != nil {
		return outcome[V]{}, err
	}
	if !found {
		c.write(ctx, key, nullMarker, c.opts.nullTTL)
		return outcome[V]{result: resultAbsent}, nil
	}

	b, err := c.codec.Encode(v)
	if err != nil {
		c.logger.Warn("xcache: encode loaded value failed", "key", key, "error", err)
		return outcome[V]{value: v, found: true, result: resultLoaded}, nil
	}
	c.write(ctx, key, string(b), ttl)
	return outcome[V]{value: v, found: true, result: resultLoaded}, nil
}

func (c *Client[K, V]) write(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.stats.writeErrors.Add(1)
		c.logger.Warn("xcache: cache write failed", "key", key, "error", err)
	}
}

// tryLock 尝试获取 key 的重建锁，锁被占用时返回 nil handle。
func (c *Client[K, V]) tryLock(ctx context.Context, key string) (xdlock.LockHandle, error) {
	h, err := c.locker.TryLock(ctx, key, c.lockOpts...)
	if err != nil {
		return nil, fmt.Errorf("xcache: acquire lock for %s: %w", key, err)
	}
	if h == nil {
		c.stats.lockBusy.Add(1)
	}
	return h, nil
}

// unlock 在脱离调用方取消链的 ctx 上释放锁。
func (c *Client[K, V]) unlock(ctx context.Context, h xdlock.LockHandle) {
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
	defer cancel()
	if err := h.Unlock(uctx); err != nil {
		if errors.Is(err, xdlock.ErrNotLocked) {
			c.logger.Warn("xcache: lock lease expired before release", "lock", h.Key())
			return
		}
		c.logger.Warn("xcache: release lock failed", "lock", h.Key(), "error", err)
	}
}

func (c *Client[K, V]) observe(ctx context.Context, operation, key string) (context.Context, xmetrics.Span) {
	return xmetrics.Start(ctx, c.opts.observer, xmetrics.SpanOptions{
		Component: "xcache",
		Operation: operation,
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String(xmetrics.AttrKey, key)},
	})
}

func endSpan[V any](span xmetrics.Span, out outcome[V], err error) {
	res := xmetrics.Result{Err: err}
	if err == nil {
		res.Outcome = out.result
	}
	span.End(res)
}
