// Package xpool 提供有界的泛型 worker pool，用作后台任务执行器。
//
// Pool 的容量模型：
//   - 核心 worker 常驻，数量由 New 的 workers 参数指定
//   - 有界队列，容量由 queueSize 指定
//   - 队列满时按需启动临时 worker（WithMaxWorkers），空闲超过 keepAlive 后退出
//   - 队列与 worker 都满时按溢出策略处理：
//     OverflowDropOldest 丢弃最旧任务、OverflowDropNewest 丢弃新任务、
//     OverflowReject 返回 ErrQueueFull（New 的默认策略）
//
// 被丢弃的任务会记录 Warn 日志、计入 Stats().Dropped，并回调 WithOnDrop。
//
// NewTaskPool 按缓存后台重建的典型配置创建闭包任务池：
// 2 个核心 worker、上限 5、队列 3、临时 worker 空闲 3 秒、丢弃最旧任务。
//
// # 注意事项
//
//   - Submit 永不阻塞
//   - pool 由调用方显式创建并在退出前 Shutdown，没有全局实例
//   - Close/Shutdown 不可在 handler 内调用，否则会死锁
//   - handler panic 会被恢复并记录堆栈，不影响其他任务；
//     默认只记录 task 类型，WithLogTaskValue 可输出完整值
//   - Shutdown(ctx) 到期后立即返回，残留 worker 继续排空队列，
//     通过 Done() 等待其最终退出
package xpool
