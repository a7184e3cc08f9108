package xstore

import (
	"time"

	"github.com/omeyang/xguard/internal/storageopt"
)

// RedisOptions 定义 Redis Store 的配置选项。
type RedisOptions struct {
	// HealthTimeout Health 检查的超时时间。
	// 默认为 5 秒，<= 0 表示沿用调用方 context。
	HealthTimeout time.Duration

	// OwnsClient 为 true 时 Close 会关闭底层客户端。
	// 默认为 true。
	OwnsClient bool
}

// RedisOption 定义配置 Redis Store 的函数类型。
type RedisOption func(*RedisOptions)

func defaultRedisOptions() *RedisOptions {
	return &RedisOptions{
		HealthTimeout: storageopt.DefaultHealthTimeout,
		OwnsClient:    true,
	}
}

// WithHealthTimeout 设置健康检查超时时间。
func WithHealthTimeout(timeout time.Duration) RedisOption {
	return func(o *RedisOptions) {
		o.HealthTimeout = timeout
	}
}

// WithSharedClient 声明底层客户端由调用方管理，Close 时不关闭它。
func WithSharedClient() RedisOption {
	return func(o *RedisOptions) {
		o.OwnsClient = false
	}
}
