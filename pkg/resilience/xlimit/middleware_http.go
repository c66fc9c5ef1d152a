package xlimit

import (
	"net/http"

	"github.com/omeyang/marketguard/pkg/context/xctx"
)

// DenyHandler 自定义拒绝响应，调用时限流头已写入
type DenyHandler func(w http.ResponseWriter, r *http.Request, d Denied)

type middlewareOptions struct {
	controller string
	skip       func(*http.Request) bool
	normalize  func(path string) string
	deny       DenyHandler
}

// MiddlewareOption HTTP 中间件选项
type MiddlewareOption func(*middlewareOptions)

// WithController 指定控制器名称，用于控制器级策略
func WithController(name string) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.controller = name
	}
}

// WithSkipFunc 返回 true 的请求不做限流，如健康检查
func WithSkipFunc(fn func(*http.Request) bool) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.skip = fn
	}
}

// WithPathNormalizer 归一化计数路径，如 /products/123 -> /products/:id
func WithPathNormalizer(fn func(path string) string) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.normalize = fn
	}
}

// WithDenyHandler 替换默认的 429 JSON 响应
func WithDenyHandler(h DenyHandler) MiddlewareOption {
	return func(o *middlewareOptions) {
		if h != nil {
			o.deny = h
		}
	}
}

// HTTPMiddleware 创建 HTTP 限流中间件
//
// 用户与组织 ID 从请求 context 读取（[xctx.UserID]、[xctx.OrganizationID]），
// 由上游认证中间件写入。
//
//	mux.Handle("POST /api/orders", xlimit.HTTPMiddleware(limiter,
//		xlimit.WithController("orders"),
//	)(ordersHandler))
func HTTPMiddleware(limiter *Limiter, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if limiter == nil {
		panic("xlimit: HTTPMiddleware requires a non-nil Limiter")
	}
	mo := &middlewareOptions{
		deny: func(w http.ResponseWriter, _ *http.Request, d Denied) {
			WriteRejection(w, d)
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mo)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if mo.skip != nil && mo.skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			d := limiter.Check(r.Context(), mo.request(r))
			SetHeaders(w, d, limiter.now())

			if denied, ok := d.(Denied); ok {
				mo.deny(w, r, denied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HTTPRequest 将 *http.Request 转换为 [Request]
func HTTPRequest(r *http.Request, controller string) Request {
	ctx := r.Context()
	return Request{
		Method:         r.Method,
		Path:           r.URL.Path,
		Route:          HTTPRouteID(r),
		Controller:     controller,
		RemoteAddr:     r.RemoteAddr,
		Header:         r.Header,
		UserID:         xctx.UserID(ctx),
		OrganizationID: xctx.OrganizationID(ctx),
	}
}

func (o *middlewareOptions) request(r *http.Request) Request {
	req := HTTPRequest(r, o.controller)
	if o.normalize != nil {
		req.Path = o.normalize(req.Path)
	}
	return req
}
