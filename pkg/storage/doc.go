// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xstore: 键值存储契约与 Redis 实现，可选熔断装饰
//   - xcache: 防穿透、防击穿的缓存读取策略
package storage
