// Package xctx 提供请求上下文字段的注入与提取。
//
// # 字段分类
//
// 身份（Identity）：
//   - user_id：已认证用户 ID
//   - organization_id：用户所属组织 ID
//
// 追踪（Trace）：
//   - request_id：请求 ID（入口生成，UUID）
//   - trace_id / span_id：W3C Trace Context 标识
//
// # 校验策略
//
// xctx 是纯存取层：WithXxx 不校验值的内容，只拒绝 nil context。
// 读取函数在字段缺失时返回空字符串，调用方据此决定是否省略。
//
// # 与日志集成
//
// AppendIdentityAttrs / AppendTraceAttrs 以 slog.Attr 形式导出字段，
// 供 xlog 的 EnrichHandler 自动注入日志。
//
// # 示例
//
//	ctx, _ = xctx.WithUserID(ctx, "u-1001")
//	ctx, _ = xctx.WithOrganizationID(ctx, "org-7")
//	ctx, _ = xctx.EnsureRequestID(ctx)
//
//	userID := xctx.UserID(ctx) // "u-1001"
package xctx
