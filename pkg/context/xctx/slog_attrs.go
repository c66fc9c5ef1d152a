package xctx

import (
	"context"
	"log/slog"
)

// AppendIdentityAttrs 将身份字段追加为 slog 属性，空字段跳过
//
// 追加式 API 便于调用方使用栈数组，避免热路径分配。
func AppendIdentityAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if v := UserID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyUserID, v))
	}
	if v := OrganizationID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyOrganizationID, v))
	}
	return attrs
}

// AppendTraceAttrs 将追踪字段追加为 slog 属性，空字段跳过
func AppendTraceAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if v := RequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyRequestID, v))
	}
	if v := TraceID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyTraceID, v))
	}
	if v := SpanID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeySpanID, v))
	}
	return attrs
}
