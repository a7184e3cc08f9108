package storageopt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/xguard/pkg/util/xpool"
)

// SyncHook 同步钩子，在请求路径上执行，耗时会直接叠加到请求延迟。
type SyncHook[T any] func(ctx context.Context, info T)

// AsyncHook 异步钩子，通过内部 worker pool 执行。
// 不接收 context，因为执行时原始请求可能已结束。
type AsyncHook[T any] func(info T)

// SlowOptions 慢操作检测配置。
type SlowOptions[T any] struct {
	// Threshold 慢操作阈值，为 0 时禁用检测。
	Threshold time.Duration

	// SyncHook 同步回调钩子。
	SyncHook SyncHook[T]

	// AsyncHook 异步回调钩子。与 SyncHook 同时设置时两者都会被调用。
	AsyncHook AsyncHook[T]

	// AsyncWorkers 异步 worker 数，默认 1。
	AsyncWorkers int

	// AsyncQueueSize 异步队列大小，默认 256。队列满时丢弃最旧通知。
	AsyncQueueSize int
}

// 默认值常量。
const (
	DefaultAsyncWorkers   = 1
	DefaultAsyncQueueSize = 256
)

// SlowDetector 检测耗时超过阈值的操作并触发钩子。
type SlowDetector[T any] struct {
	options SlowOptions[T]
	slow    atomic.Int64
	pool    *xpool.Pool[T]
	mu      sync.RWMutex
	closed  bool
}

// NewSlowDetector 创建慢操作检测器。
// 设置 AsyncHook 时立即创建 worker pool，参数非法直接返回错误。
func NewSlowDetector[T any](opts SlowOptions[T]) (*SlowDetector[T], error) {
	if opts.AsyncWorkers <= 0 {
		opts.AsyncWorkers = DefaultAsyncWorkers
	}
	if opts.AsyncQueueSize <= 0 {
		opts.AsyncQueueSize = DefaultAsyncQueueSize
	}

	d := &SlowDetector[T]{options: opts}
	if opts.AsyncHook != nil {
		pool, err := xpool.New(opts.AsyncWorkers, opts.AsyncQueueSize, (func(T))(opts.AsyncHook),
			xpool.WithName("storageopt-slow"),
			xpool.WithOverflowPolicy(xpool.OverflowDropOldest),
		)
		if err != nil {
			return nil, fmt.Errorf("storageopt: create async pool: %w", err)
		}
		d.pool = pool
	}
	return d, nil
}

// Observe 在 duration 达到阈值时计数并触发钩子，返回是否判定为慢操作。
func (d *SlowDetector[T]) Observe(ctx context.Context, info T, duration time.Duration) bool {
	if d.options.Threshold <= 0 || duration < d.options.Threshold {
		return false
	}

	d.slow.Add(1)
	if d.options.SyncHook != nil {
		d.options.SyncHook(ctx, info)
	}

	d.mu.RLock()
	if !d.closed && d.pool != nil {
		_ = d.pool.Submit(info) //nolint:errcheck // DropOldest 策略下只会在关闭后失败
	}
	d.mu.RUnlock()
	return true
}

// Count 返回累计的慢操作次数。
func (d *SlowDetector[T]) Count() int64 {
	return d.slow.Load()
}

// Threshold 返回阈值。
func (d *SlowDetector[T]) Threshold() time.Duration {
	return d.options.Threshold
}

// Close 关闭检测器并等待异步钩子执行完毕。
func (d *SlowDetector[T]) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	pool := d.pool
	d.pool = nil
	d.mu.Unlock()

	if pool != nil {
		_ = pool.Close()
	}
}
