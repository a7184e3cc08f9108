package xcache

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/omeyang/xguard/pkg/distributed/xdlock"
	"github.com/omeyang/xguard/pkg/observability/xmetrics"
	"github.com/omeyang/xguard/pkg/util/xcodec"
)

// 默认值。
const (
	DefaultNullTTL       = 2 * time.Minute
	DefaultLockLease     = 10 * time.Second
	DefaultRetryInterval = 50 * time.Millisecond
	DefaultMaxRetries    = 40
	DefaultLockKeyPrefix = "lock:"

	// unlockTimeout 释放锁使用的独立超时，与调用方 ctx 是否取消无关。
	unlockTimeout = 5 * time.Second
)

// Refresher 执行逻辑过期策略的后台重建任务。*xpool.Pool[func()] 满足此接口。
type Refresher interface {
	Submit(task func()) error
}

// RefreshErrorHook 后台重建失败回调，在刷新池的 worker 中执行。
type RefreshErrorHook func(key string, err error)

// SlowLoad 描述一次慢回源。
type SlowLoad struct {
	Key      string
	Duration time.Duration
}

type options struct {
	codec          any
	nullTTL        time.Duration
	lockLease      time.Duration
	retryInterval  time.Duration
	maxRetries     int
	locker         xdlock.Locker
	refresher      Refresher
	singleflight   bool
	logger         *slog.Logger
	observer       xmetrics.Observer
	slowThreshold  time.Duration
	slowHook       func(SlowLoad)
	onRefreshError RefreshErrorHook
	clock          func() time.Time
	lockKeyPrefix  string
}

func defaultOptions() *options {
	return &options{
		nullTTL:       DefaultNullTTL,
		lockLease:     DefaultLockLease,
		retryInterval: DefaultRetryInterval,
		maxRetries:    DefaultMaxRetries,
		logger:        slog.Default(),
		observer:      xmetrics.NoopObserver{},
		clock:         time.Now,
		lockKeyPrefix: DefaultLockKeyPrefix,
	}
}

func (o *options) validate() error {
	switch {
	case o.nullTTL <= 0:
		return fmt.Errorf("%w: null ttl must be positive, got %s", ErrInvalidConfig, o.nullTTL)
	case o.lockLease <= 0:
		return fmt.Errorf("%w: lock lease must be positive, got %s", ErrInvalidConfig, o.lockLease)
	case o.retryInterval < 0:
		return fmt.Errorf("%w: retry interval must be non-negative, got %s", ErrInvalidConfig, o.retryInterval)
	case o.maxRetries < 0:
		return fmt.Errorf("%w: max retries must be non-negative, got %d", ErrInvalidConfig, o.maxRetries)
	case o.clock == nil:
		return fmt.Errorf("%w: nil clock", ErrInvalidConfig)
	case o.slowThreshold < 0:
		return fmt.Errorf("%w: slow load threshold must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// Option 配置 Client。
type Option func(*options)

// WithCodec 设置值的编解码器，默认 xcodec.JSON。
// 编解码器的类型参数必须与 Client 的 V 一致，否则 New 返回 ErrInvalidConfig。
func WithCodec[V any](c xcodec.Codec[V]) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithNullTTL 设置空值标记的 TTL，默认 2 分钟。
func WithNullTTL(d time.Duration) Option {
	return func(o *options) {
		o.nullTTL = d
	}
}

// WithLockLease 设置重建锁的租期，默认 10 秒。
// 逻辑过期策略的后台重建也以此为超时。
func WithLockLease(d time.Duration) Option {
	return func(o *options) {
		o.lockLease = d
	}
}

// WithMutexRetry 设置互斥策略竞争失败后的重试间隔与最大重试次数。
// 默认 50ms × 40，即最多等待约 2 秒。
func WithMutexRetry(interval time.Duration, maxRetries int) Option {
	return func(o *options) {
		o.retryInterval = interval
		o.maxRetries = maxRetries
	}
}

// WithLocker 替换分布式锁实现。
func WithLocker(l xdlock.Locker) Option {
	return func(o *options) {
		o.locker = l
	}
}

// WithRefresher 注入后台刷新池，其生命周期由调用方管理。
func WithRefresher(r Refresher) Option {
	return func(o *options) {
		o.refresher = r
	}
}

// WithSingleflight 在互斥策略前合并本进程内同一 key 的并发查询。
func WithSingleflight(enable bool) Option {
	return func(o *options) {
		o.singleflight = enable
	}
}

// WithLogger 设置日志记录器，nil 表示不输出日志。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		o.logger = logger
	}
}

// WithObserver 设置观测器，每次查询产生一个跨度。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithSlowLoadThreshold 设置慢回源阈值，0 表示不检测。
func WithSlowLoadThreshold(d time.Duration) Option {
	return func(o *options) {
		o.slowThreshold = d
	}
}

// WithSlowLoadHook 设置慢回源的异步回调。
func WithSlowLoadHook(fn func(SlowLoad)) Option {
	return func(o *options) {
		o.slowHook = fn
	}
}

// WithOnRefreshError 设置后台重建失败回调。
func WithOnRefreshError(fn RefreshErrorHook) Option {
	return func(o *options) {
		o.onRefreshError = fn
	}
}

// WithClock 替换判断逻辑过期使用的时钟。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithLockKeyPrefix 设置重建锁 key 的前缀，默认 "lock:"。
func WithLockKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.lockKeyPrefix = prefix
	}
}
