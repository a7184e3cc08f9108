package xstore

import "errors"

var (
	// ErrNilClient 表示传入的 Redis 客户端为 nil。
	ErrNilClient = errors.New("xstore: nil client")

	// ErrNilStore 表示装饰器包装的 Store 为 nil。
	ErrNilStore = errors.New("xstore: nil store")

	// ErrNotFound 表示 key 不存在。
	// 这是正常结果而非故障，调用方通常据此走回源逻辑。
	ErrNotFound = errors.New("xstore: key not found")

	// ErrEmptyKey 表示 key 为空字符串。
	ErrEmptyKey = errors.New("xstore: empty key")

	// ErrInvalidTTL 表示 SetNX/CompareAndExpire 的 ttl 非正数。
	ErrInvalidTTL = errors.New("xstore: ttl must be positive")

	// ErrClosed 表示 Store 已关闭。
	ErrClosed = errors.New("xstore: store closed")

	// ErrCircuitOpen 表示熔断器处于打开状态，请求被快速拒绝。
	ErrCircuitOpen = errors.New("xstore: circuit breaker is open")
)
