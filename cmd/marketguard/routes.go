package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/omeyang/marketguard/pkg/context/xctx"
	"github.com/omeyang/marketguard/pkg/observability/xlog"
	"github.com/omeyang/marketguard/pkg/resilience/xlimit"
)

// 上游认证层写入的身份头
const (
	headerUserID         = "X-User-ID"
	headerOrganizationID = "X-Organization-ID"
	headerRequestID      = "X-Request-ID"
)

// controller 一组共享控制器级限流策略的路由
type controller struct {
	name   string
	routes []string
}

// controllers 平台资源控制器。处理函数为占位实现，业务由下游服务提供。
var controllers = []controller{
	{name: "products", routes: []string{
		"GET /api/products",
		"GET /api/products/{id}",
		"POST /api/products",
		"PUT /api/products/{id}",
		"DELETE /api/products/{id}",
	}},
	{name: "orders", routes: []string{
		"GET /api/orders",
		"GET /api/orders/{id}",
		"POST /api/orders",
	}},
	{name: "organizations", routes: []string{
		"GET /api/organizations/{id}",
		"PUT /api/organizations/{id}",
	}},
	{name: "users", routes: []string{
		"GET /api/users/me",
	}},
}

// newRouter 组装路由：请求 ID 与身份注入 > 限流 > 控制器
func newRouter(limiter *xlimit.Limiter, logger xlog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": limiter.StoreType()})
	})

	for _, c := range controllers {
		guard := xlimit.HTTPMiddleware(limiter,
			xlimit.WithController(c.name),
			xlimit.WithPathNormalizer(normalizePath),
		)
		h := guard(placeholder(c.name))
		for _, pattern := range c.routes {
			mux.Handle(pattern, h)
		}
	}

	return withIdentity(mux, logger)
}

func placeholder(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"controller": name,
			"route":      r.Pattern,
			"request_id": xctx.RequestID(r.Context()),
		})
	})
}

// withIdentity 写入请求 ID 与身份字段到 context，并回写 X-Request-ID
func withIdentity(next http.Handler, logger xlog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var err error
		if id := r.Header.Get(headerRequestID); id != "" {
			ctx, err = xctx.WithRequestID(ctx, id)
		} else {
			ctx, err = xctx.EnsureRequestID(ctx)
		}
		ident := xctx.Identity{
			UserID:         strings.TrimSpace(r.Header.Get(headerUserID)),
			OrganizationID: strings.TrimSpace(r.Header.Get(headerOrganizationID)),
		}
		if err == nil {
			ctx, err = xctx.WithIdentity(ctx, ident)
		}
		if err != nil {
			logger.Error(ctx, "inject request identity failed", xlog.Err(err))
		}
		w.Header().Set(headerRequestID, xctx.RequestID(ctx))

		if !validIdentityID(ident.UserID) || !validIdentityID(ident.OrganizationID) {
			logger.Warn(ctx, "rejecting request with malformed identity header")
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed identity header"})
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validIdentityID 身份 ID 会拼入计数 Key 的 ":user:" / ":org:" 段，
// 含 ':' 的值可能与其他用户、组织组合出相同的 Key
func validIdentityID(id string) bool {
	return !strings.ContainsRune(id, ':')
}

// normalizePath 将数字或 UUID 路径段替换为 ":id"，使同一资源的不同实例共享计数
func normalizePath(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if isIdentifier(s) {
			segs[i] = ":id"
		}
	}
	return strings.Join(segs, "/")
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func instrument(h http.Handler, t *telemetry) http.Handler {
	return otelhttp.NewHandler(h, "marketguard",
		otelhttp.WithTracerProvider(t.tracerProvider),
		otelhttp.WithMeterProvider(t.meterProvider),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if r.Pattern != "" {
				return r.Pattern
			}
			return r.Method
		}),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // 响应已提交
}
