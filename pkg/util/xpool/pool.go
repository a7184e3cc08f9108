package xpool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// 参数上限。
const (
	maxWorkers   = 1 << 16
	maxQueueSize = 1 << 24
)

// 任务池默认参数，用于 NewTaskPool。
const (
	DefaultCoreWorkers = 2
	DefaultMaxWorkers  = 5
	DefaultQueueSize   = 3
	DefaultKeepAlive   = 3 * time.Second
)

// Stats 是 Pool 的运行时快照。
type Stats struct {
	Workers   int   // 当前存活的 worker 数（含临时 worker）
	Queued    int   // 队列中等待的任务数
	Submitted int64 // Submit 成功受理的任务数
	Completed int64 // 执行完毕的任务数（含 panic）
	Dropped   int64 // 因溢出被丢弃的任务数
	Panics    int64 // handler panic 次数
}

// Pool 是一个泛型 worker pool。
//
// 核心 worker 常驻；队列满时按需启动临时 worker，直到达到上限，
// 临时 worker 空闲超过 keepAlive 后退出。二者都满时按溢出策略处理新任务。
type Pool[T any] struct {
	core      int
	max       int
	handler   func(T)
	opts      options
	queue     chan T
	wg        sync.WaitGroup
	mu        sync.RWMutex // 保护 closed 与 queue 的关闭
	closed    bool
	closeOnce sync.Once
	done      chan struct{}

	workers   atomic.Int64
	submitted atomic.Int64
	completed atomic.Int64
	dropped   atomic.Int64
	panics    atomic.Int64
}

var _ io.Closer = (*Pool[int])(nil)

// New 创建并启动 worker pool。
//
// workers 为核心 worker 数，范围 [1, 65536]；queueSize 范围 [1, 16777216]。
func New[T any](workers, queueSize int, handler func(T), opts ...Option) (*Pool[T], error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if workers < 1 || workers > maxWorkers {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkers, workers)
	}
	if queueSize < 1 || queueSize > maxQueueSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQueueSize, queueSize)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	maxW := o.maxWorkers
	if maxW == 0 {
		maxW = workers
	}
	if maxW < workers || maxW > maxWorkers {
		return nil, fmt.Errorf("%w: max %d < core %d", ErrInvalidWorkers, maxW, workers)
	}
	if maxW > workers && o.keepAlive <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKeepAlive, o.keepAlive)
	}

	p := &Pool[T]{
		core:    workers,
		max:     maxW,
		handler: handler,
		opts:    o,
		queue:   make(chan T, queueSize),
		done:    make(chan struct{}),
	}

	p.workers.Store(int64(workers))
	p.wg.Add(workers)
	for range workers {
		go p.coreWorker()
	}
	return p, nil
}

// NewTaskPool 创建执行闭包任务的 pool。
// 默认 2 个核心 worker、上限 5、队列 3、临时 worker 空闲 3 秒退出、
// 溢出时丢弃最旧任务；opts 可覆盖这些默认值。
func NewTaskPool(opts ...Option) (*Pool[func()], error) {
	base := []Option{
		WithMaxWorkers(DefaultMaxWorkers),
		WithKeepAlive(DefaultKeepAlive),
		WithOverflowPolicy(OverflowDropOldest),
	}
	return New(DefaultCoreWorkers, DefaultQueueSize, func(fn func()) { fn() }, append(base, opts...)...)
}

// NewTaskPoolSize 与 NewTaskPool 相同，但显式指定核心 worker 数与队列大小。
func NewTaskPoolSize(workers, queueSize int, opts ...Option) (*Pool[func()], error) {
	return New(workers, queueSize, func(fn func()) { fn() }, opts...)
}

func (p *Pool[T]) coreWorker() {
	defer p.exitWorker()
	for task := range p.queue {
		p.run(task)
	}
}

// burstWorker 先执行触发扩容的任务，之后从队列取任务，空闲超过 keepAlive 退出。
func (p *Pool[T]) burstWorker(first T) {
	defer p.exitWorker()
	p.run(first)

	timer := time.NewTimer(p.opts.keepAlive)
	defer timer.Stop()
	for {
		select {
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(task)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.opts.keepAlive)
		case <-timer.C:
			return
		}
	}
}

func (p *Pool[T]) exitWorker() {
	p.workers.Add(-1)
	p.wg.Done()
}

// run 安全执行 handler，捕获 panic。
func (p *Pool[T]) run(task T) {
	defer p.completed.Add(1)
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			attrs := []any{
				slog.String("pool", p.opts.name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			}
			if p.opts.logTaskValue {
				attrs = append(attrs, slog.Any("task", task))
			} else {
				attrs = append(attrs, slog.String("task_type", fmt.Sprintf("%T", task)))
			}
			p.opts.logger.Error("xpool: worker panic recovered", attrs...)
		}
	}()
	p.handler(task)
}

// Submit 提交任务，永不阻塞。
//
// 队列有空位时直接入队；否则尝试启动临时 worker 执行该任务；
// 仍无法受理时按溢出策略处理：
//   - OverflowDropOldest：丢弃最早入队的任务后入队，返回 nil
//   - OverflowDropNewest：丢弃本任务，返回 nil
//   - OverflowReject：返回 ErrQueueFull
//
// pool 关闭后返回 ErrPoolStopped。
func (p *Pool[T]) Submit(task T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolStopped
	}

	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return nil
	default:
	}

	if p.startBurst(task) {
		p.submitted.Add(1)
		return nil
	}

	switch p.opts.overflow {
	case OverflowDropOldest:
		return p.replaceOldest(task)
	case OverflowDropNewest:
		p.drop(task, "newest")
		return nil
	default:
		return ErrQueueFull
	}
}

// startBurst 在 worker 未达上限时启动一个临时 worker。
func (p *Pool[T]) startBurst(task T) bool {
	for {
		n := p.workers.Load()
		if n >= int64(p.max) {
			return false
		}
		if p.workers.CompareAndSwap(n, n+1) {
			break
		}
	}
	p.wg.Add(1)
	go p.burstWorker(task)
	return true
}

// replaceOldest 反复尝试腾出队首位置后入队。
// 并发提交者可能抢占腾出的位置，超过重试次数后丢弃本任务。
func (p *Pool[T]) replaceOldest(task T) error {
	for range 8 {
		select {
		case old := <-p.queue:
			p.drop(old, "oldest")
		default:
		}
		select {
		case p.queue <- task:
			p.submitted.Add(1)
			return nil
		default:
		}
	}
	p.drop(task, "newest")
	return nil
}

func (p *Pool[T]) drop(task T, which string) {
	p.dropped.Add(1)
	p.opts.logger.Warn("xpool: queue full, task dropped",
		slog.String("pool", p.opts.name),
		slog.String("dropped", which),
		slog.String("policy", p.opts.overflow.String()))
	if p.opts.onDrop != nil {
		p.opts.onDrop(task)
	}
}

// Shutdown 停止接收新任务，等待队列中的任务执行完毕。
// ctx 到期时立即返回 ctx.Err()，残留 worker 继续在后台排空队列，
// 可通过 Done() 等待其最终退出。
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}

	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		go func() {
			p.wg.Wait()
			close(p.done)
		}()
	})

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 等价于 Shutdown(context.Background())。
func (p *Pool[T]) Close() error {
	return p.Shutdown(context.Background())
}

// Done 返回在所有 worker 退出后关闭的 channel。
func (p *Pool[T]) Done() <-chan struct{} {
	return p.done
}

// Stats 返回运行时快照。
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Workers:   int(p.workers.Load()),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Dropped:   p.dropped.Load(),
		Panics:    p.panics.Load(),
	}
}

// Workers 返回核心 worker 数。
func (p *Pool[T]) Workers() int {
	return p.core
}

// MaxWorkers 返回 worker 上限。
func (p *Pool[T]) MaxWorkers() int {
	return p.max
}

// QueueSize 返回队列容量。
func (p *Pool[T]) QueueSize() int {
	return cap(p.queue)
}
