// Package xid 提供分布式、按时间大致单调递增的 64 位 ID 生成器。
//
// # 存储计数器生成器
//
// Generator 基于共享存储的原子自增生成 ID：
//
//	id = (当前秒 - epoch) << 32 | sequence
//
// sequence 来自 INCR icr:<prefix>:<yyyy:MM:dd>，按业务前缀与本地日期分桶，
// 每天从 1 开始。同一前缀同一天内 ID 严格递增；跨天时高 32 位的秒数已经增大，
// 新一天的计数器重新从 1 开始也不会与前一天冲突。
//
// 默认 epoch 为 2023-05-20T20:42:17Z（Unix 1684615337），可通过 WithEpoch 调整。
// 注意：生成器依赖本机时钟，时钟回拨可能导致 ID 不再单调，本包不做防护。
//
// # Sonyflake 生成器
//
// Sonyflake 封装 sony/sonyflake/v2，不依赖共享存储，
// 适用于无法访问 Redis 的进程。其 NextID 忽略 prefix。
//
// 两者都实现 IDGenerator 接口，可按部署环境互换。
package xid
