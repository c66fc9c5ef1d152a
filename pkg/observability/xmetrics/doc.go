// Package xmetrics 提供统一的观测跨度抽象，默认实现基于 OpenTelemetry。
//
// 一次跨度同时产生一个 trace span 和两条指标：
//
//   - marketguard.operation.total（Counter，维度 component/operation/status）
//   - marketguard.operation.duration（Histogram，单位秒）
//
// 用法：
//
//	ctx, span := xmetrics.Start(ctx, observer, xmetrics.SpanOptions{
//		Component: "xlimit",
//		Operation: "check",
//	})
//	defer func() { span.End(xmetrics.Result{Err: err}) }()
//
// observer 为 nil 时 [Start] 返回空跨度，调用方无需判空。
// 跨度开始后 trace_id/span_id 会同步到 xctx，日志自动带上同一标识。
package xmetrics
