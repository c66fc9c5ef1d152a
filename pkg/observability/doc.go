// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，自动注入请求标识
//   - xmetrics: 观测跨度抽象，默认实现基于 OpenTelemetry
package observability
