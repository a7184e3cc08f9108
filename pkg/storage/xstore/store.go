package xstore

import (
	"context"
	"time"
)

// Store 是缓存层使用的键值存储契约。
//
// 所有方法都是并发安全的。值以字符串存取，序列化由上层负责。
//
//go:generate mockgen -source=store.go -destination=xstoremock/store_mock.go -package=xstoremock
type Store interface {
	// Get 读取 key 的值。key 不存在时返回 ErrNotFound。
	Get(ctx context.Context, key string) (string, error)

	// Set 写入 key。ttl <= 0 表示不设置过期时间。
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX 仅当 key 不存在时写入并设置 ttl。
	// 返回 true 表示本次写入成功。
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete 删除 key，不存在的 key 被忽略。
	Delete(ctx context.Context, keys ...string) error

	// Incr 将 key 原子加一并返回新值。key 不存在时视为 0。
	Incr(ctx context.Context, key string) (int64, error)

	// CompareAndDelete 仅当 key 当前值等于 expected 时删除。
	// 返回 true 表示已删除。
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)

	// CompareAndExpire 仅当 key 当前值等于 expected 时将过期时间重置为 ttl。
	// 返回 true 表示已续期。
	CompareAndExpire(ctx context.Context, key, expected string, ttl time.Duration) (bool, error)
}
