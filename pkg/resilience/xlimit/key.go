package xlimit

import (
	"net/http"
	"strings"

	"github.com/omeyang/marketguard/pkg/util/xnet"
)

// Request 限流判定所需的请求上下文，与具体传输层无关
type Request struct {
	// Method HTTP 方法
	Method string
	// Path 请求路径，用于构造 Key
	Path string
	// Route 路由标识（见 [RouteID]），为空时由 Method 和 Path 推导
	Route string
	// Controller 控制器名称，用于控制器级策略
	Controller string
	// RemoteAddr 直连对端地址，"host:port" 或纯 IP
	RemoteAddr string
	// Header 请求头，读取 X-Forwarded-For
	Header http.Header
	// UserID 认证后的用户 ID，可为空
	UserID string
	// OrganizationID 认证后的组织 ID，可为空
	OrganizationID string
}

func (r Request) routeID() string {
	if r.Route != "" {
		return r.Route
	}
	return RouteID(r.Method, r.Path)
}

// HeaderForwardedFor 代理链请求头
const HeaderForwardedFor = "X-Forwarded-For"

// KeyBuilder 构造计数 Key，只读，并发安全
type KeyBuilder struct {
	prefix  string
	proxies *xnet.ProxySet
}

// NewKeyBuilder 创建 KeyBuilder，trustedProxies 格式见 [Config.TrustedProxies]
func NewKeyBuilder(prefix string, trustedProxies []string) (*KeyBuilder, error) {
	proxies, err := xnet.NewProxySet(trustedProxies)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &KeyBuilder{prefix: prefix, proxies: proxies}, nil
}

// ClientIP 解析客户端 IP：X-Forwarded-For 首个可解析条目 > 直连对端 > "0.0.0.0"
func (b *KeyBuilder) ClientIP(r Request) string {
	var xff string
	if r.Header != nil {
		xff = strings.Join(r.Header.Values(HeaderForwardedFor), ",")
	}
	return xnet.ClientIP(xff, r.RemoteAddr, b.proxies)
}

// Build 构造 Key：<prefix><path>:<ip>[:user:<id>][:org:<id>]
//
// 身份段仅在策略要求且请求携带对应 ID 时追加。ID 原样拼接不做转义，
// 含 ':' 的 ID 可能与其他用户、组织组合出相同的 Key，需由身份来源保证不含 ':'。
func (b *KeyBuilder) Build(r Request, p Policy) string {
	path := r.Path
	ip := b.ClientIP(r)

	var sb strings.Builder
	sb.Grow(len(b.prefix) + len(path) + len(ip) + len(r.UserID) + len(r.OrganizationID) + 12)
	sb.WriteString(b.prefix)
	sb.WriteString(path)
	sb.WriteByte(':')
	sb.WriteString(ip)
	if p.ScopeByUser && r.UserID != "" {
		sb.WriteString(":user:")
		sb.WriteString(r.UserID)
	}
	if p.ScopeByOrganization && r.OrganizationID != "" {
		sb.WriteString(":org:")
		sb.WriteString(r.OrganizationID)
	}
	return sb.String()
}
