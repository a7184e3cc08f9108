package xconf

import (
	"fmt"
	"log/slog"

	"github.com/omeyang/xguard/pkg/storage/xcache"
	"github.com/omeyang/xguard/pkg/util/xpool"
)

// CacheOptions 把缓存配置转换为 xcache 选项，可追加到调用方自己的选项之前。
func (c CacheSettings) CacheOptions() []xcache.Option {
	return []xcache.Option{
		xcache.WithNullTTL(c.NullTTL),
		xcache.WithLockLease(c.LockLease),
		xcache.WithMutexRetry(c.RetryInterval, c.MaxRetries),
	}
}

// NewPool 按刷新池配置创建 xpool，用作 xcache.WithRefresher。
// 调用方负责 Shutdown。
func (r RefresherSettings) NewPool(logger *slog.Logger) (*xpool.Pool[func()], error) {
	policy, ok := xpool.ParseOverflowPolicy(r.Overflow)
	if !ok {
		return nil, fmt.Errorf("%w: refresher.overflow %q", ErrInvalidSettings, r.Overflow)
	}
	return xpool.NewTaskPoolSize(r.CoreWorkers, r.QueueSize,
		xpool.WithName("xcache-refresh"),
		xpool.WithMaxWorkers(r.MaxWorkers),
		xpool.WithKeepAlive(r.KeepAlive),
		xpool.WithOverflowPolicy(policy),
		xpool.WithLogger(logger),
	)
}
