// Package xcache 在 Redis 之上提供防穿透、防击穿的缓存查询客户端。
//
// # 三种查询策略
//
//   - QueryWithPassThrough：缓存未命中时回源，实体不存在时写入空值标记（""），
//     在 NullTTL（默认 2 分钟）内直接返回不存在，防止缓存穿透。
//   - QueryWithMutex：未命中时竞争 lock:<key> 互斥锁，只有持锁者回源并写回；
//     竞争失败者按固定间隔重试整个查询，超过上限返回 ErrRebuildTimeout。
//   - QueryWithLogicalExpire：缓存条目不设 TTL，由信封中的逻辑过期时间判断新鲜度。
//     过期时立即返回旧值，并由后台刷新池异步重建，同一时刻至多一个重建任务。
//
// # 数据格式
//
// 普通条目直接保存编码后的值；空值标记为空字符串；
// 逻辑过期条目保存 xcodec 信封（过期时间 + 编码后的值）。
// 无法解码的条目视为未命中，并计入 Stats().Corrupt。
//
// # 后台刷新
//
// 逻辑过期策略的重建任务提交给 Refresher。未通过 WithRefresher 注入时，
// 客户端在首次需要时创建自有的 xpool 任务池，由 Close 负责关闭。
// 后台失败会记录 error 日志、调用 WithOnRefreshError 钩子并计入 Stats().RefreshErrors。
//
// # 锁
//
// 默认锁基于同一个 Store 的 SetNX，释放时校验 token，不会误删他人的锁。
// 可通过 WithLocker 替换为 xdlock.NewRedisFactory 等实现。
package xcache
