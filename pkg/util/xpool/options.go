package xpool

import (
	"log/slog"
	"time"
)

// OverflowPolicy 决定队列已满且 worker 已达上限时如何处理新任务。
type OverflowPolicy int

const (
	// OverflowDropOldest 丢弃队列中最早的任务，为新任务腾出位置。
	OverflowDropOldest OverflowPolicy = iota
	// OverflowDropNewest 丢弃新提交的任务，Submit 返回 nil。
	OverflowDropNewest
	// OverflowReject 拒绝新任务，Submit 返回 ErrQueueFull。
	OverflowReject
)

// String 返回策略名称，与配置文件中的取值一致。
func (p OverflowPolicy) String() string {
	switch p {
	case OverflowDropOldest:
		return "drop_oldest"
	case OverflowDropNewest:
		return "drop_newest"
	case OverflowReject:
		return "reject"
	default:
		return "unknown"
	}
}

// ParseOverflowPolicy 解析配置中的策略名称。
func ParseOverflowPolicy(s string) (OverflowPolicy, bool) {
	switch s {
	case "drop_oldest", "":
		return OverflowDropOldest, true
	case "drop_newest":
		return OverflowDropNewest, true
	case "reject":
		return OverflowReject, true
	default:
		return 0, false
	}
}

// Option 定义 Pool 可选配置函数类型。
type Option func(*options)

type options struct {
	logger       *slog.Logger
	name         string
	maxWorkers   int // 0 表示与核心 worker 数相同
	keepAlive    time.Duration
	overflow     OverflowPolicy
	onDrop       func(task any)
	logTaskValue bool
}

func defaultOptions() options {
	return options{
		logger:    slog.Default(),
		keepAlive: 3 * time.Second,
		overflow:  OverflowReject,
	}
}

// WithLogger 设置自定义日志记录器。
// 默认使用 slog.Default()。传入 nil 将被忽略，保持使用默认值。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName 设置 pool 名称，用于在多实例场景下区分日志来源。
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithMaxWorkers 设置 worker 上限。
// 队列满时会临时启动额外 worker，直到总数达到上限。
// 小于核心 worker 数时 New 返回 ErrInvalidWorkers。
func WithMaxWorkers(n int) Option {
	return func(o *options) {
		o.maxWorkers = n
	}
}

// WithKeepAlive 设置临时 worker 的空闲存活时间，默认 3 秒。
func WithKeepAlive(d time.Duration) Option {
	return func(o *options) {
		o.keepAlive = d
	}
}

// WithOverflowPolicy 设置溢出策略，默认 OverflowReject。
func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(o *options) {
		o.overflow = p
	}
}

// WithOnDrop 设置任务被丢弃时的回调。
// 回调在 Submit 调用方的 goroutine 中同步执行，参数为被丢弃的任务。
func WithOnDrop(fn func(task any)) Option {
	return func(o *options) {
		o.onDrop = fn
	}
}

// WithLogTaskValue 在 panic 日志中输出完整的 task 值。
// 默认只记录 task 类型。
func WithLogTaskValue() Option {
	return func(o *options) {
		o.logTaskValue = true
	}
}
