// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xmetrics: 统一的操作观测接口，OpenTelemetry 追踪与指标实现
package observability
