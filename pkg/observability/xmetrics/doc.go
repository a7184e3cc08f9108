// Package xmetrics 是 xguard 各组件共用的观测接口。
//
// 组件只依赖 Observer/Span；每次操作开始时 Start，结束时以 Result 收尾：
//
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//		Component: "xcache",
//		Operation: "mutex",
//		Kind:      xmetrics.KindClient,
//		Attrs:     []xmetrics.Attr{xmetrics.String(xmetrics.AttrKey, key)},
//	})
//	span.End(xmetrics.Result{Outcome: "hit", Err: err})
//
// OTelObserver 基于 OpenTelemetry 输出 span 与两个指标：
//   - xguard.operation.total
//   - xguard.operation.duration（秒）
//
// Outcome 总是作为指标维度 result，其余属性只进入 span。
// Tee 可以同时挂接多个 Observer，例如 OTel 加上测试用的记录器。
package xmetrics
