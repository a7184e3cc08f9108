// Package xstore 定义缓存层依赖的最小键值存储契约，并提供基于 go-redis 的实现。
//
// # 操作集合
//
//   - Get：读取字符串值，key 不存在返回 ErrNotFound
//   - Set：写入字符串值，ttl <= 0 表示永不过期
//   - SetNX：仅当 key 不存在时写入，总是带 ttl（锁原语）
//   - Delete：删除一个或多个 key，不存在的 key 视为成功
//   - Incr：原子自增，key 不存在时从 0 开始
//   - CompareAndDelete / CompareAndExpire：仅当当前值等于期望值时删除或续期，
//     用于带所有权校验的锁释放与续租
//
// # 实现
//
// NewRedis 包装 redis.UniversalClient（单机、哨兵、集群均可）。
// 比较类操作以 Lua 脚本执行，保证原子性。
//
// NewBreaker 是装饰器，为任意 Store 增加 gobreaker 熔断保护：
// 后端持续故障时快速失败（ErrCircuitOpen），避免请求堆积在不可用的 Redis 上。
// ErrNotFound 属于正常结果，不计入失败。
//
// 测试中可使用 xstoremock 子包提供的 gomock 实现构造故障路径。
package xstore
