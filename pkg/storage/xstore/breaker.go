package xstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerOptions 定义熔断装饰器的配置选项。
type BreakerOptions struct {
	// Name 熔断器名称，出现在日志中。
	// 默认为 "xstore"。
	Name string

	// ConsecutiveFailures 连续失败多少次后打开熔断器。
	// 默认为 5。
	ConsecutiveFailures uint32

	// OpenTimeout 熔断器从 Open 转为 HalfOpen 的等待时间。
	// 默认为 30 秒。
	OpenTimeout time.Duration

	// HalfOpenRequests HalfOpen 状态下允许通过的探测请求数。
	// 默认为 1。
	HalfOpenRequests uint32

	// Logger 记录状态迁移。nil 表示不记录。
	// 默认为 slog.Default()。
	Logger *slog.Logger
}

// BreakerOption 定义配置熔断装饰器的函数类型。
type BreakerOption func(*BreakerOptions)

func defaultBreakerOptions() *BreakerOptions {
	return &BreakerOptions{
		Name:                "xstore",
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
		Logger:              slog.Default(),
	}
}

// WithBreakerName 设置熔断器名称。
func WithBreakerName(name string) BreakerOption {
	return func(o *BreakerOptions) {
		if name != "" {
			o.Name = name
		}
	}
}

// WithConsecutiveFailures 设置触发熔断的连续失败次数。
func WithConsecutiveFailures(n uint32) BreakerOption {
	return func(o *BreakerOptions) {
		if n > 0 {
			o.ConsecutiveFailures = n
		}
	}
}

// WithOpenTimeout 设置 Open 状态持续时间。
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(o *BreakerOptions) {
		if d > 0 {
			o.OpenTimeout = d
		}
	}
}

// WithHalfOpenRequests 设置 HalfOpen 状态下的探测请求数。
func WithHalfOpenRequests(n uint32) BreakerOption {
	return func(o *BreakerOptions) {
		if n > 0 {
			o.HalfOpenRequests = n
		}
	}
}

// WithBreakerLogger 设置状态迁移日志记录器。
func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(o *BreakerOptions) {
		o.Logger = logger
	}
}

// Breaker 为 Store 增加熔断保护。
type Breaker struct {
	next Store
	cb   *gobreaker.CircuitBreaker[any]
}

var _ Store = (*Breaker)(nil)

// NewBreaker 用熔断器包装 store。
func NewBreaker(store Store, opts ...BreakerOption) (*Breaker, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	options := defaultBreakerOptions()
	for _, opt := range opts {
		opt(options)
	}

	threshold := options.ConsecutiveFailures
	logger := options.Logger
	st := gobreaker.Settings{
		Name:        options.Name,
		MaxRequests: options.HalfOpenRequests,
		Timeout:     options.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("xstore: circuit breaker state changed",
					slog.String("name", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			}
		},
	}

	return &Breaker{
		next: store,
		cb:   gobreaker.NewCircuitBreaker[any](st),
	}, nil
}

// isSuccessful 判定哪些结果不计入失败。
// key 不存在与调用方主动取消都不代表后端故障。
func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrEmptyKey) ||
		errors.Is(err, ErrInvalidTTL) ||
		errors.Is(err, context.Canceled)
}

// State 返回熔断器当前状态。
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Get 实现 Store。
func (b *Breaker) Get(ctx context.Context, key string) (string, error) {
	return execute(b, func() (string, error) {
		return b.next.Get(ctx, key)
	})
}

// Set 实现 Store。
func (b *Breaker) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := execute(b, func() (struct{}, error) {
		return struct{}{}, b.next.Set(ctx, key, value, ttl)
	})
	return err
}

// SetNX 实现 Store。
func (b *Breaker) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return execute(b, func() (bool, error) {
		return b.next.SetNX(ctx, key, value, ttl)
	})
}

// Delete 实现 Store。
func (b *Breaker) Delete(ctx context.Context, keys ...string) error {
	_, err := execute(b, func() (struct{}, error) {
		return struct{}{}, b.next.Delete(ctx, keys...)
	})
	return err
}

// Incr 实现 Store。
func (b *Breaker) Incr(ctx context.Context, key string) (int64, error) {
	return execute(b, func() (int64, error) {
		return b.next.Incr(ctx, key)
	})
}

// CompareAndDelete 实现 Store。
func (b *Breaker) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	return execute(b, func() (bool, error) {
		return b.next.CompareAndDelete(ctx, key, expected)
	})
}

// CompareAndExpire 实现 Store。
func (b *Breaker) CompareAndExpire(ctx context.Context, key, expected string, ttl time.Duration) (bool, error) {
	return execute(b, func() (bool, error) {
		return b.next.CompareAndExpire(ctx, key, expected, ttl)
	})
}

// execute 通过熔断器执行 fn，并把 gobreaker 的拒绝错误映射为 ErrCircuitOpen。
func execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
		// fn 的业务结果（如 ErrNotFound）原样返回
		if v, ok := res.(T); ok {
			return v, err
		}
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}
