package xdlock

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// validateKey 验证锁 key 是否有效。
func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return nil
}

// MutexOption 定义锁实例的配置选项。
type MutexOption func(*mutexOptions)

type mutexOptions struct {
	KeyPrefix      string        // Key 前缀，默认 "lock:"
	Expiry         time.Duration // 租约时长，默认 10s
	Tries          int           // Lock 的最大尝试次数，默认 32
	RetryDelay     time.Duration // Lock 的重试间隔，默认 50ms
	RetryDelayFunc func(tries int) time.Duration
	GenValueFunc   func() (string, error)

	// redsync 专用
	DriftFactor   float64
	TimeoutFactor float64
	FailFast      bool
	ShufflePools  bool
}

func defaultMutexOptions() *mutexOptions {
	return &mutexOptions{
		KeyPrefix:     "lock:",
		Expiry:        10 * time.Second,
		Tries:         32,
		RetryDelay:    50 * time.Millisecond,
		GenValueFunc:  genToken,
		DriftFactor:   0.01,
		TimeoutFactor: 0.05,
	}
}

func applyMutexOptions(opts []MutexOption) *mutexOptions {
	o := defaultMutexOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// retryDelay 返回第 tries 次失败后的等待时间。
func (o *mutexOptions) retryDelay(tries int) time.Duration {
	if o.RetryDelayFunc != nil {
		return o.RetryDelayFunc(tries)
	}
	return o.RetryDelay
}

// genToken 生成 UUID v4 令牌。
func genToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// WithKeyPrefix 设置锁 key 的前缀，最终 key = prefix + key。
// 默认值："lock:"。
func WithKeyPrefix(prefix string) MutexOption {
	return func(o *mutexOptions) {
		o.KeyPrefix = prefix
	}
}

// WithExpiry 设置租约时长。默认 10 秒。
func WithExpiry(d time.Duration) MutexOption {
	return func(o *mutexOptions) {
		o.Expiry = d
	}
}

// WithTries 设置 Lock 的最大尝试次数。默认 32。
func WithTries(n int) MutexOption {
	return func(o *mutexOptions) {
		if n > 0 {
			o.Tries = n
		}
	}
}

// WithRetryDelay 设置 Lock 的固定重试间隔。默认 50ms。
func WithRetryDelay(d time.Duration) MutexOption {
	return func(o *mutexOptions) {
		if d > 0 {
			o.RetryDelay = d
		}
	}
}

// WithRetryDelayFunc 设置按尝试次数计算的重试间隔，优先于 WithRetryDelay。
func WithRetryDelayFunc(fn func(tries int) time.Duration) MutexOption {
	return func(o *mutexOptions) {
		o.RetryDelayFunc = fn
	}
}

// WithGenValueFunc 设置令牌生成函数。默认 UUID v4。
func WithGenValueFunc(fn func() (string, error)) MutexOption {
	return func(o *mutexOptions) {
		if fn != nil {
			o.GenValueFunc = fn
		}
	}
}

// WithDriftFactor 设置 Redlock 时钟漂移因子（仅 redsync 后端）。
func WithDriftFactor(f float64) MutexOption {
	return func(o *mutexOptions) {
		o.DriftFactor = f
	}
}

// WithTimeoutFactor 设置 Redlock 单节点超时因子（仅 redsync 后端）。
func WithTimeoutFactor(f float64) MutexOption {
	return func(o *mutexOptions) {
		o.TimeoutFactor = f
	}
}

// WithFailFast 多节点模式下任一节点失败即返回（仅 redsync 后端）。
func WithFailFast(b bool) MutexOption {
	return func(o *mutexOptions) {
		o.FailFast = b
	}
}

// WithShufflePools 每次加锁随机打乱节点顺序（仅 redsync 后端）。
func WithShufflePools(b bool) MutexOption {
	return func(o *mutexOptions) {
		o.ShufflePools = b
	}
}
