package xctx

import (
	"context"
	"errors"
)

// contextKey 包私有的 context key 类型，字符串值便于调试时识别
type contextKey string

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrMissingUserID user_id 缺失
	ErrMissingUserID = errors.New("xctx: missing user_id")

	// ErrMissingOrganizationID organization_id 缺失
	ErrMissingOrganizationID = errors.New("xctx: missing organization_id")

	// ErrMissingRequestID request_id 缺失
	ErrMissingRequestID = errors.New("xctx: missing request_id")
)

func withValue(ctx context.Context, key contextKey, value string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, key, value), nil
}

// stringValue 读取字符串字段，缺失或 ctx 为 nil 时返回空串
func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func require(ctx context.Context, key contextKey, missing error) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := stringValue(ctx, key)
	if v == "" {
		return "", missing
	}
	return v, nil
}
