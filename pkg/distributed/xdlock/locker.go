package xdlock

import "context"

// LockHandle 表示一次成功的锁获取。
//
// 每次获取成功都会返回新的 handle，内部封装唯一令牌。
// 只有持有该令牌的 handle 才能释放或续期锁。
type LockHandle interface {
	// Unlock 释放锁。
	//
	// 令牌不匹配（租约已过期、锁被他人重新获取或已释放过）时返回 ErrNotLocked，
	// 不会删除他人的锁。ctx 已取消时使用独立的清理 context 尽力完成释放。
	Unlock(ctx context.Context) error

	// Extend 用创建时的租约时长重置锁的过期时间。
	//
	// 返回值：
	//   - nil: 续期成功
	//   - ErrNotLocked: 所有权已丢失
	//   - 其他错误: 续期操作失败，锁可能仍在
	Extend(ctx context.Context) error

	// Key 返回锁的完整 key（含前缀）。
	Key() string

	// Token 返回本次获取的所有权令牌。
	Token() string
}

// Locker 是非阻塞加锁的最小接口，xcache 只依赖它。
type Locker interface {
	// TryLock 非阻塞式获取锁。
	//
	// 成功时返回 LockHandle；锁被占用时返回 (nil, nil)；
	// 锁服务异常时返回错误。
	TryLock(ctx context.Context, key string, opts ...MutexOption) (LockHandle, error)
}

// Factory 定义锁工厂接口。
type Factory interface {
	Locker

	// Lock 阻塞式获取锁。
	//
	// 按 WithTries/WithRetryDelay 重试，直到成功、重试耗尽（ErrLockFailed）
	// 或 ctx 取消。
	Lock(ctx context.Context, key string, opts ...MutexOption) (LockHandle, error)

	// Close 关闭工厂。已获取的 handle 仍可 Unlock/Extend。
	Close() error

	// Health 检查底层存储是否可用。
	Health(ctx context.Context) error
}
