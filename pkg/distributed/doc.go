// Package distributed 提供分布式协调相关的子包。
//
// 子包列表：
//   - xdlock: 带所有权令牌的租约锁，支持 xstore 单节点与 redsync 多节点后端
package distributed
