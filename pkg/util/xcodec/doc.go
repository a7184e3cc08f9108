// Package xcodec 提供缓存值的序列化与逻辑过期信封。
//
// # Codec
//
// Codec[V] 把值编码为字节序列，缓存层以字符串形式存入 Redis：
//   - JSON：encoding/json，默认选择，便于人工排查
//   - Msgpack：vmihailenco/msgpack/v5，体积更小
//   - CBOR：fxamacker/cbor/v2，需用 NewCBOR 构造，可选确定性编码
//
// # Envelope
//
// 逻辑过期条目使用固定二进制格式包装载荷与过期时间：
//
//	magic "XGLE"(4) | version(1) | expireAt unix 毫秒 int64 BE(8) | payloadLen u32 BE(4) | payload
//
// 条目本身不设置存储 TTL，过期与否由读取方比较 ExpireAt 判断。
// 无法识别的数据解码为 ErrCorrupt，缓存层将其视为未命中。
package xcodec
