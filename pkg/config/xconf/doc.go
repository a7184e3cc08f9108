// Package xconf 加载 xguard 的 YAML/JSON 配置，基于 koanf。
//
// 两层能力：
//   - Config：文件/字节数据加载、Unmarshal、并发安全的 Reload，
//     以及基于 fsnotify 的文件监视（Watch）。
//   - Settings：xguard 的类型化配置（redis / cache / refresher / idgen / breaker / log），
//     Default 提供全部默认值，配置文件只需覆盖需要修改的键。
//
// 时长字段使用 Go duration 字符串，例如：
//
//	cache:
//	  null_ttl: 2m
//	  lock_lease: 10s
//	refresher:
//	  overflow: drop_oldest
//
// 监视的是配置文件所在目录而非文件本身，以便覆盖编辑器"写临时文件再 rename"的保存方式。
package xconf
