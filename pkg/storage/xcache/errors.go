package xcache

import "errors"

var (
	// ErrNilStore 传入的 Store 为 nil。
	ErrNilStore = errors.New("xcache: nil store")

	// ErrNilLoader 回源函数为 nil。
	ErrNilLoader = errors.New("xcache: nil loader function")

	// ErrNilContext context 参数为 nil。
	ErrNilContext = errors.New("xcache: nil context")

	// ErrEmptyKey 拼接后的缓存 key 为空。
	ErrEmptyKey = errors.New("xcache: empty key")

	// ErrInvalidTTL TTL 无效。
	ErrInvalidTTL = errors.New("xcache: invalid ttl")

	// ErrInvalidConfig 配置参数无效，应在开发阶段修复。
	ErrInvalidConfig = errors.New("xcache: invalid configuration")

	// ErrRebuildTimeout 互斥策略在重试上限内没有拿到锁，也没有等到其他实例写回。
	ErrRebuildTimeout = errors.New("xcache: rebuild timeout")

	// ErrLoaderFailed 回源函数返回错误或发生 panic。
	ErrLoaderFailed = errors.New("xcache: loader failed")

	// ErrLoadPanic 回源函数发生了 panic，总是与 ErrLoaderFailed 一起返回。
	ErrLoadPanic = errors.New("xcache: load function panicked")

	// ErrStore 读写底层存储失败。
	ErrStore = errors.New("xcache: store failure")

	// ErrClosed 客户端已关闭，无法再提交后台刷新。
	ErrClosed = errors.New("xcache: client closed")
)

// errLockBusy 锁被其他调用方持有，触发互斥策略的重试。
var errLockBusy = errors.New("xcache: lock busy")
