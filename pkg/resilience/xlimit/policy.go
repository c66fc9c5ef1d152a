package xlimit

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Policy 生效的限流策略，值类型，不可变
type Policy struct {
	// Limit 窗口内允许的请求数
	Limit int `koanf:"limit"`
	// Window 窗口长度，整秒，至少 1 秒
	Window time.Duration `koanf:"window"`
	// ScopeByUser Key 中追加用户 ID
	ScopeByUser bool `koanf:"scope_by_user"`
	// ScopeByOrganization Key 中追加组织 ID
	ScopeByOrganization bool `koanf:"scope_by_organization"`
	// ErrorMessage 拒绝时的提示，空则使用默认提示
	ErrorMessage string `koanf:"error_message"`
}

// Validate 检查策略字段
func (p Policy) Validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidPolicy, p.Limit)
	}
	if p.Window < time.Second {
		return fmt.Errorf("%w: window must be at least 1s, got %s", ErrInvalidPolicy, p.Window)
	}
	if p.Window%time.Second != 0 {
		return fmt.Errorf("%w: window must be whole seconds, got %s", ErrInvalidPolicy, p.Window)
	}
	return nil
}

// RouteID 由方法和路由模式组成，如 "POST /api/orders"。
// 方法为空时只返回 pattern，表示匹配任意方法。
func RouteID(method, pattern string) string {
	if method == "" {
		return pattern
	}
	return strings.ToUpper(method) + " " + pattern
}

// HTTPRouteID 从请求推导路由标识。
//
// 优先使用 ServeMux 匹配到的 Pattern（可能已带方法，如 "GET /products/{id}"），
// 否则退化为 "METHOD /path"。
func HTTPRouteID(r *http.Request) string {
	if p := r.Pattern; p != "" {
		if method, _, ok := splitRouteID(p); ok && method != "" {
			return p
		}
		return RouteID(r.Method, stripHost(p))
	}
	return RouteID(r.Method, r.URL.Path)
}

// stripHost 去掉 "host/path" 形式 pattern 中的 host 部分
func stripHost(pattern string) string {
	if strings.HasPrefix(pattern, "/") {
		return pattern
	}
	if i := strings.IndexByte(pattern, '/'); i >= 0 {
		return pattern[i:]
	}
	return pattern
}

// splitRouteID 拆分 "METHOD /path"，ok 为 false 表示格式不合法
func splitRouteID(id string) (method, path string, ok bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "", false
	}
	if before, after, found := strings.Cut(id, " "); found {
		after = strings.TrimSpace(after)
		if before == "" || after == "" || strings.Contains(before, "/") {
			return "", "", false
		}
		return strings.ToUpper(before), after, true
	}
	return "", id, true
}

// policyTable 不可变的策略查找表
type policyTable struct {
	routes      map[string]Policy // key: "METHOD path" 或 path
	controllers map[string]Policy
	global      *Policy
}

// Resolver 按 路由 > 控制器 > 全局 的顺序解析策略，构造后只读，并发安全
type Resolver struct {
	table policyTable
}

// NewResolver 从配置构建查找表，所有策略在此处校验
func NewResolver(cfg Config) (*Resolver, error) {
	t := policyTable{
		routes:      make(map[string]Policy, len(cfg.Routes)),
		controllers: make(map[string]Policy, len(cfg.Controllers)),
	}

	for _, rp := range cfg.Routes {
		method, path, ok := splitRouteID(rp.Route)
		if !ok {
			return nil, fmt.Errorf("%w: malformed route %q", ErrInvalidConfig, rp.Route)
		}
		if err := rp.Policy.Validate(); err != nil {
			return nil, fmt.Errorf("route %q: %w", rp.Route, err)
		}
		id := RouteID(method, path)
		if _, dup := t.routes[id]; dup {
			return nil, fmt.Errorf("%w: duplicate route %q", ErrInvalidConfig, id)
		}
		t.routes[id] = rp.Policy
	}

	for _, cp := range cfg.Controllers {
		name := strings.TrimSpace(cp.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: controller policy without name", ErrInvalidConfig)
		}
		if err := cp.Policy.Validate(); err != nil {
			return nil, fmt.Errorf("controller %q: %w", name, err)
		}
		if _, dup := t.controllers[name]; dup {
			return nil, fmt.Errorf("%w: duplicate controller %q", ErrInvalidConfig, name)
		}
		t.controllers[name] = cp.Policy
	}

	if cfg.Global.RequestsPerMinutePerIP < 0 {
		return nil, fmt.Errorf("%w: global requests_per_minute_per_ip must not be negative", ErrInvalidConfig)
	}
	if n := cfg.Global.RequestsPerMinutePerIP; n > 0 {
		t.global = &Policy{Limit: n, Window: time.Minute}
	}

	return &Resolver{table: t}, nil
}

// Resolve 返回生效策略，ok 为 false 表示三级都未配置
//
// route 为 "METHOD /path" 形式：先精确匹配，再匹配未声明方法的同路径策略。
func (r *Resolver) Resolve(route, controller string) (Policy, bool) {
	p, _, ok := r.resolveRule(route, controller)
	return p, ok
}

// resolveRule 额外返回命中的规则名：配置中的路由标识、"controller:<name>" 或 "global"
func (r *Resolver) resolveRule(route, controller string) (Policy, string, bool) {
	if route != "" {
		if p, ok := r.table.routes[route]; ok {
			return p, route, true
		}
		if _, path, ok := splitRouteID(route); ok {
			if p, ok := r.table.routes[path]; ok {
				return p, path, true
			}
		}
	}
	if controller != "" {
		if p, ok := r.table.controllers[controller]; ok {
			return p, "controller:" + controller, true
		}
	}
	if r.table.global != nil {
		return *r.table.global, ruleGlobal, true
	}
	return Policy{}, "", false
}

const ruleGlobal = "global"

// Routes 返回按路由声明的策略副本，用于诊断输出
func (r *Resolver) Routes() map[string]Policy {
	out := make(map[string]Policy, len(r.table.routes))
	for k, v := range r.table.routes {
		out[k] = v
	}
	return out
}

// Controllers 返回按控制器声明的策略副本
func (r *Resolver) Controllers() map[string]Policy {
	out := make(map[string]Policy, len(r.table.controllers))
	for k, v := range r.table.controllers {
		out[k] = v
	}
	return out
}

// Global 返回全局默认策略
func (r *Resolver) Global() (Policy, bool) {
	if r.table.global == nil {
		return Policy{}, false
	}
	return *r.table.global, true
}
