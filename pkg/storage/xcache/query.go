package xcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// QueryWithPassThrough 查询 keyPrefix+id，未命中时回源并写回。
//
// 实体不存在时写入空值标记，NullTTL 内的后续查询不再回源。
// 返回值 found 为 false 表示实体不存在。
func (c *Client[K, V]) QueryWithPassThrough(ctx context.Context, keyPrefix string, id K, loader LoadFunc[K, V], ttl time.Duration) (V, bool, error) {
	key := Key(keyPrefix, id)
	if err := checkQuery(ctx, key, loader); err != nil {
		var zero V
		return zero, false, err
	}

	ctx, span := c.observe(ctx, "pass_through", key)
	out, err := c.passThrough(ctx, key, id, loader, ttl)
	endSpan(span, out, err)
	return out.value, out.found, err
}

func (c *Client[K, V]) passThrough(ctx context.Context, key string, id K, loader LoadFunc[K, V], ttl time.Duration) (outcome[V], error) {
	v, state, err := c.lookup(ctx, key)
	if err != nil {
		return outcome[V]{}, err
	}
	switch state {
	case entryHit:
		return outcome[V]{value: v, found: true, result: resultHit}, nil
	case entryNull:
		return outcome[V]{result: resultNull}, nil
	}
	return c.loadAndStore(ctx, key, id, loader, ttl)
}

// QueryWithMutex 查询 keyPrefix+id，未命中时通过互斥锁保证只有一个调用方回源。
//
// 竞争锁失败的调用方等待 RetryInterval 后重试整个查询，
// 超过 MaxRetries 次仍未成功返回 ErrRebuildTimeout。
// 持锁者回源前会再次检查缓存，锁总会被释放。
func (c *Client[K, V]) QueryWithMutex(ctx context.Context, keyPrefix string, id K, loader LoadFunc[K, V], ttl time.Duration) (V, bool, error) {
	key := Key(keyPrefix, id)
	if err := checkQuery(ctx, key, loader); err != nil {
		var zero V
		return zero, false, err
	}

	ctx, span := c.observe(ctx, "mutex", key)
	var (
		out outcome[V]
		err error
	)
	if c.opts.singleflight {
		out, err = c.mutexShared(ctx, key, id, loader, ttl)
	} else {
		out, err = c.mutex(ctx, key, id, loader, ttl)
	}
	endSpan(span, out, err)
	return out.value, out.found, err
}

// mutexShared 合并本进程内同一 key 的并发查询。
// 共享的查询运行在脱离首个调用方取消链的 ctx 上，每个调用方可独立放弃等待。
func (c *Client[K, V]) mutexShared(ctx context.Context, key string, id K, loader LoadFunc[K, V], ttl time.Duration) (outcome[V], error) {
	ch := c.group.DoChan(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.mutexBudget())
		defer cancel()
		return c.mutex(sctx, key, id, loader, ttl)
	})

	select {
	case <-ctx.Done():
		return outcome[V]{}, ctx.Err()
	case r := <-ch:
		out, _ := r.Val.(outcome[V])
		return out, r.Err
	}
}

// mutexBudget 是一次互斥查询的最长耗时估计。
func (c *Client[K, V]) mutexBudget() time.Duration {
	return c.opts.lockLease + c.opts.retryInterval*time.Duration(c.opts.maxRetries+1)
}

func (c *Client[K, V]) mutex(ctx context.Context, key string, id K, loader LoadFunc[K, V], ttl time.Duration) (outcome[V], error) {
	r := retry.NewWithData[outcome[V]](
		retry.Context(ctx),
		retry.Attempts(uint(c.opts.maxRetries)+1),
		retry.Delay(c.opts.retryInterval),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errLockBusy) }),
		retry.LastErrorOnly(true),
	)
	out, err := r.Do(func() (outcome[V], error) {
		return c.mutexAttempt(ctx, key, id, loader, ttl)
	})
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return outcome[V]{}, ctxErr
	}
	if errors.Is(err, errLockBusy) {
		return outcome[V]{}, fmt.Errorf("%w: %s after %d retries", ErrRebuildTimeout, key, c.opts.maxRetries)
	}
	return outcome[V]{}, err
}

func (c *Client[K, V]) mutexAttempt(ctx context.Context, key string, id K, loader LoadFunc[K, V], ttl time.Duration) (outcome[V], error) {
	if out, done, err := c.cached(ctx, key); done {
		return out, err
	}

	h, err := c.tryLock(ctx, key)
	if err != nil {
		return outcome[V]{}, err
	}
	if h == nil {
		return outcome[V]{}, errLockBusy
	}
	defer c.unlock(ctx, h)

	// 拿到锁之前其他实例可能已经写回
	if out, done, err := c.cached(ctx, key); done {
		return out, err
	}
	return c.loadAndStore(ctx, key, id, loader, ttl)
}

// cached 检查普通条目，done 为 true 表示已有结果（命中、空值或错误）。
func (c *Client[K, V]) cached(ctx context.Context, key string) (outcome[V], bool, error) {
	v, state, err := c.lookup(ctx, key)
	if err != nil {
		return outcome[V]{}, true, err
	}
	switch state {
	case entryHit:
		return outcome[V]{value: v, found: true, result: resultHit}, true, nil
	case entryNull:
		return outcome[V]{result: resultNull}, true, nil
	}
	return outcome[V]{}, false, nil
}
