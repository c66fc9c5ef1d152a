package xctx

import "context"

// Identity 日志属性 Key 常量
const (
	KeyUserID         = "user_id"
	KeyOrganizationID = "organization_id"
)

const (
	keyUserID         = contextKey("xctx:user_id")
	keyOrganizationID = contextKey("xctx:organization_id")
)

// Identity 请求身份，由上游认证层注入
type Identity struct {
	UserID         string
	OrganizationID string
}

// IsEmpty 身份字段是否全部为空
func (i Identity) IsEmpty() bool {
	return i.UserID == "" && i.OrganizationID == ""
}

// WithUserID 将用户 ID 注入 context
//
// 不校验 value（空字符串也会写入），如需确认值存在请使用 RequireUserID。
func WithUserID(ctx context.Context, userID string) (context.Context, error) {
	return withValue(ctx, keyUserID, userID)
}

// UserID 从 context 提取用户 ID，不存在返回空字符串
func UserID(ctx context.Context) string {
	return stringValue(ctx, keyUserID)
}

// RequireUserID 提取用户 ID，缺失时返回 ErrMissingUserID
func RequireUserID(ctx context.Context) (string, error) {
	return require(ctx, keyUserID, ErrMissingUserID)
}

// WithOrganizationID 将组织 ID 注入 context
func WithOrganizationID(ctx context.Context, organizationID string) (context.Context, error) {
	return withValue(ctx, keyOrganizationID, organizationID)
}

// OrganizationID 从 context 提取组织 ID，不存在返回空字符串
func OrganizationID(ctx context.Context) string {
	return stringValue(ctx, keyOrganizationID)
}

// RequireOrganizationID 提取组织 ID，缺失时返回 ErrMissingOrganizationID
func RequireOrganizationID(ctx context.Context) (string, error) {
	return require(ctx, keyOrganizationID, ErrMissingOrganizationID)
}

// WithIdentity 批量注入身份字段，空字段跳过
//
// 跳过空值意味着无法用它"清空"父 context 中已有的字段，
// 中间件链里后续层只补充缺失字段。
func WithIdentity(ctx context.Context, id Identity) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if id.UserID != "" {
		ctx = context.WithValue(ctx, keyUserID, id.UserID)
	}
	if id.OrganizationID != "" {
		ctx = context.WithValue(ctx, keyOrganizationID, id.OrganizationID)
	}
	return ctx, nil
}

// GetIdentity 一次性读取全部身份字段
func GetIdentity(ctx context.Context) Identity {
	return Identity{
		UserID:         UserID(ctx),
		OrganizationID: OrganizationID(ctx),
	}
}
