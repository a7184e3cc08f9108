package xcache

import (
	"context"
	"fmt"
	"time"

	"github.com/omeyang/xguard/pkg/distributed/xdlock"
	"github.com/omeyang/xguard/pkg/util/xcodec"
	"github.com/omeyang/xguard/pkg/util/xpool"
)

// QueryWithLogicalExpire 查询逻辑过期条目，从不阻塞在回源上。
//
// 条目不存在时直接返回不存在，不回源（热点数据应通过 Warmup 预热）。
// 条目已过期时返回旧值，并在拿到重建锁后提交后台重建；
// 同一时刻最多一个重建任务。
func (c *Client[K, V]) QueryWithLogicalExpire(ctx context.Context, keyPrefix string, id K, loader LoadFunc[K, V], ttl time.Duration) (V, bool, error) {
	key := Key(keyPrefix, id)
	if err := checkQuery(ctx, key, loader); err != nil {
		var zero V
		return zero, false, err
	}

	ctx, span := c.observe(ctx, "logical_expire", key)
	out, err := c.logicalExpire(ctx, key, id, loader, ttl)
	endSpan(span, out, err)
	return out.value, out.found, err
}

func (c *Client[K, V]) logicalExpire(ctx context.Context, key string, id K, loader LoadFunc[K, V], ttl time.Duration) (outcome[V], error) {
	v, expireAt, state, err := c.lookupEnvelope(ctx, key, true)
	if err != nil {
		return outcome[V]{}, err
	}
	switch state {
	case entryMiss:
		return outcome[V]{result: resultMiss}, nil
	case entryNull:
		return outcome[V]{result: resultNull}, nil
	}

	if c.opts.clock().Before(expireAt) {
		return outcome[V]{value: v, found: true, result: resultHit}, nil
	}

	c.stats.staleReads.Add(1)
	c.scheduleRebuild(ctx, key, id, loader, ttl)
	return outcome[V]{value: v, found: true, result: resultStale}, nil
}

// lookupEnvelope 读取逻辑过期条目。purge 为 true 时删除无法解码的条目。
func (c *Client[K, V]) lookupEnvelope(ctx context.Context, key string, purge bool) (V, time.Time, entryState, error) {
	var zero V
	raw, ok, err := c.read(ctx, key)
	if err != nil || !ok {
		c.countLookup(entryMiss)
		return zero, time.Time{}, entryMiss, err
	}
	if raw == nullMarker {
		c.countLookup(entryNull)
		return zero, time.Time{}, entryNull, nil
	}

	v, expireAt, err := xcodec.Unwrap(c.codec, []byte(raw))
	if err != nil {
		c.corrupt(key, err)
		c.countLookup(entryMiss)
		if purge {
			if delErr := c.store.Delete(ctx, key); delErr != nil {
				c.logger.Warn("xcache: delete corrupt entry failed", "key", key, "error", delErr)
			}
		}
		return zero, time.Time{}, entryMiss, nil
	}
	c.countLookup(entryHit)
	return v, expireAt, entryHit, nil
}

// scheduleRebuild 抢占重建锁并提交后台重建。拿不到锁说明已有重建在进行。
func (c *Client[K, V]) scheduleRebuild(ctx context.Context, key string, id K, loader LoadFunc[K, V], ttl time.Duration) {
	h, err := c.tryLock(ctx, key)
	if err != nil {
		c.logger.Warn("xcache: skip rebuild", "key", key, "error", err)
		return
	}
	if h == nil {
		return
	}

	// 拿锁前可能刚有一次重建完成
	if _, expireAt, state, err := c.lookupEnvelope(ctx, key, false); err == nil && state == entryHit && c.opts.clock().Before(expireAt) {
		c.unlock(ctx, h)
		return
	}

	refresher, err := c.refresher()
	if err == nil {
		err = refresher.Submit(func() {
			c.rebuild(ctx, h, key, id, loader, ttl)
		})
	}
	if err != nil {
		c.stats.refreshRejected.Add(1)
		c.logger.Warn("xcache: rebuild rejected", "key", key, "error", err)
		c.unlock(ctx, h)
		return
	}
	c.stats.refreshSubmitted.Add(1)
}

// rebuild 在后台回源并写回新的逻辑过期条目，结束后释放锁。
// 运行在脱离请求取消链的 ctx 上，以锁租期为超时。
func (c *Client[K, V]) rebuild(parent context.Context, h xdlock.LockHandle, key string, id K, loader LoadFunc[K, V], ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.opts.lockLease)
	defer cancel()
	defer c.unlock(ctx, h)

	if err := c.refreshEntry(ctx, key, id, loader, ttl); err != nil {
		c.refreshFailed(key, err)
	}
}

func (c *Client[K, V]) refreshEntry(ctx context.Context, key string, id K, loader LoadFunc[K, V], ttl time.Duration) error {
	v, found, err := c.load(ctx, key, id, loader)
	if err != nil {
		return err
	}
	if !found {
		// 实体已被删除，旧值不再有效
		return c.Delete(ctx, key)
	}
	return c.writeEnvelope(ctx, key, v, ttl)
}

func (c *Client[K, V]) refreshFailed(key string, err error) {
	c.stats.refreshErrors.Add(1)
	c.logger.Error("xcache: background rebuild failed", "key", key, "error", err)
	if hook := c.opts.onRefreshError; hook != nil {
		hook(key, err)
	}
}

// refresher 返回注入的刷新池，或按需创建自有刷新池。
func (c *Client[K, V]) refresher() (Refresher, error) {
	if c.opts.refresher != nil {
		return c.opts.refresher, nil
	}

	c.poolMu.Lock()
	defer c.poolMu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.pool == nil {
		pool, err := xpool.NewTaskPool(
			xpool.WithName("xcache-refresh"),
			xpool.WithLogger(c.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("xcache: create refresher: %w", err)
		}
		c.pool = pool
	}
	return c.pool, nil
}
