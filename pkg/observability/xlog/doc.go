// Package xlog 基于 log/slog 的结构化日志库。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、文件轮转）
//   - 自动从 context 注入 request_id、trace_id、user_id、organization_id（EnrichHandler，默认启用）
//   - 动态级别调整（运行时热更新）
//   - 全局 Logger 便利函数
//
// # 创建 Logger
//
// Builder 为 first-error-wins：遇到第一个配置错误后 Build 返回该错误。
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetFile("/var/log/marketguard/gateway.log", xlog.FileRotation{MaxSizeMB: 100}).
//		Build()
//	defer cleanup()
//
// 文件轮转委托给 gopkg.in/natefinch/lumberjack.v2。
//
// # 库代码中的 Logger
//
// 库组件默认持有 [Discard]，由调用方通过选项注入真实 Logger。
//
// # 便捷属性
//
// [Err]、[Duration]、[Component]、[Operation]、[Route]、[RateKey]、[ClientIP]、[StatusCode]、[Method]、[Path]。
//
// # EnrichHandler 注意事项
//
// 对启用了 enrich 的 logger 调用 WithGroup 时，注入字段会归入该 group 下。
package xlog
