package xdlock

import "errors"

// 预定义错误。
// 使用 errors.Is 进行错误匹配，例如：
//
//	if errors.Is(err, xdlock.ErrNotLocked) {
//	    // 租约已过期，锁可能已被他人持有
//	}
var (
	// ErrLockHeld 锁被其他持有者占用。
	// TryLock 将其转换为 (nil, nil)，业务代码通常不会直接看到此错误。
	ErrLockHeld = errors.New("xdlock: lock is held by another owner")

	// ErrLockFailed 获取锁失败，Lock 重试耗尽时返回。
	ErrLockFailed = errors.New("xdlock: failed to acquire lock")

	// ErrLockExpired 锁已过期或被其他持有者抢走。
	ErrLockExpired = errors.New("xdlock: lock expired or stolen")

	// ErrExtendFailed 续期操作失败（锁可能仍在，可重试）。
	ErrExtendFailed = errors.New("xdlock: failed to extend lock")

	// ErrNilClient Redis 客户端为空。
	ErrNilClient = errors.New("xdlock: client is nil")

	// ErrNilStore 存储为空。
	ErrNilStore = errors.New("xdlock: store is nil")

	// ErrFactoryClosed 工厂已关闭。
	ErrFactoryClosed = errors.New("xdlock: factory is closed")

	// ErrNotLocked 锁未被当前 handle 持有。
	// Unlock/Extend 发现令牌不匹配（租约过期或已释放）时返回。
	ErrNotLocked = errors.New("xdlock: not locked")

	// ErrEmptyKey 锁 key 为空或仅含空白。
	ErrEmptyKey = errors.New("xdlock: key must not be empty")

	// ErrInvalidExpiry 租约时长非正数。
	ErrInvalidExpiry = errors.New("xdlock: expiry must be positive")

	// ErrNilContext context 为 nil。
	ErrNilContext = errors.New("xdlock: nil context")
)
