// Package xdlock 提供基于租约的分布式互斥锁。
//
// # 后端
//
//   - NewStoreFactory：基于 xstore.Store 的 SET NX PX 锁，适用于单个 Redis 实例，
//     也是 xcache 防击穿的默认锁实现
//   - NewRedisFactory：基于 redsync 的 Redlock 实现，支持多个独立 Redis 节点
//
// # 所有权
//
// 每次获取成功都会生成唯一令牌（默认 UUID v4）作为锁值，LockHandle 持有该令牌。
// Unlock 与 Extend 只在存储中的值仍等于令牌时生效：租约过期后被他人重新获取的锁
// 不会被旧持有者误删，此时返回 ErrNotLocked。
//
// # 使用模式
//
//	handle, err := factory.TryLock(ctx, "shop:1", xdlock.WithExpiry(10*time.Second))
//	if err != nil {
//	    return err // 锁服务异常
//	}
//	if handle == nil {
//	    return nil // 被其他持有者占用
//	}
//	defer handle.Unlock(ctx)
//
// 锁不可重入：同一持有者再次 TryLock 同一 key 会得到 (nil, nil)。
// 租约到期后锁自动释放，持有者崩溃不会导致死锁。
package xdlock
