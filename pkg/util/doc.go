// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xcodec: 值编解码（JSON/msgpack/CBOR）与逻辑过期信封
//   - xid: 基于 Redis 计数器的分布式 ID，以及本地 sonyflake 生成器
//   - xpool: 泛型 Worker Pool，弹性扩容、溢出策略、优雅关闭
package util
