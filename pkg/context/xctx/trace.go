package xctx

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Trace 日志属性 Key 常量
const (
	KeyRequestID = "request_id"
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
)

const (
	keyRequestID = contextKey("xctx:request_id")
	keyTraceID   = contextKey("xctx:trace_id")
	keySpanID    = contextKey("xctx:span_id")
)

// WithRequestID 将请求 ID 注入 context
func WithRequestID(ctx context.Context, requestID string) (context.Context, error) {
	return withValue(ctx, keyRequestID, requestID)
}

// RequestID 从 context 提取请求 ID，不存在返回空字符串
func RequestID(ctx context.Context) string {
	return stringValue(ctx, keyRequestID)
}

// RequireRequestID 提取请求 ID，缺失时返回 ErrMissingRequestID
func RequireRequestID(ctx context.Context) (string, error) {
	return require(ctx, keyRequestID, ErrMissingRequestID)
}

// WithTraceID 将 W3C trace-id 注入 context
func WithTraceID(ctx context.Context, traceID string) (context.Context, error) {
	return withValue(ctx, keyTraceID, traceID)
}

// TraceID 从 context 提取 trace-id
func TraceID(ctx context.Context) string {
	return stringValue(ctx, keyTraceID)
}

// WithSpanID 将 W3C span-id 注入 context
func WithSpanID(ctx context.Context, spanID string) (context.Context, error) {
	return withValue(ctx, keySpanID, spanID)
}

// SpanID 从 context 提取 span-id
func SpanID(ctx context.Context) string {
	return stringValue(ctx, keySpanID)
}

// GenerateRequestID 生成请求 ID
//
// 格式: 32 位小写十六进制（去掉连字符的 UUIDv4），与 trace-id 长度一致，
// 便于在日志中统一检索。
func GenerateRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// EnsureRequestID 有则沿用，无则生成
//
// 用于 HTTP 入口中间件，保证每个请求都带请求 ID。
func EnsureRequestID(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if RequestID(ctx) != "" {
		return ctx, nil
	}
	return context.WithValue(ctx, keyRequestID, GenerateRequestID()), nil
}
