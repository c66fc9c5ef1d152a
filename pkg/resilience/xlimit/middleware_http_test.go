package xlimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/marketguard/pkg/context/xctx"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func serve(h http.Handler, method, target, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPMiddleware_HeadersAndRejection(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, policyConfig("POST /api/orders", Policy{Limit: 2, Window: time.Minute}), WithClock(clock.Now))

	mux := http.NewServeMux()
	mux.Handle("POST /api/orders", HTTPMiddleware(l)(okHandler))

	for i, want := range []string{"1", "0"} {
		rec := serve(mux, "POST", "/api/orders", "192.0.2.1:1000")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "2", rec.Header().Get(HeaderLimit))
		assert.Equal(t, want, rec.Header().Get(HeaderRemaining))

		reset, err := strconv.ParseInt(rec.Header().Get(HeaderReset), 10, 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, reset, clock.Now().Unix())
	}

	rec := serve(mux, "POST", "/api/orders", "192.0.2.1:1000")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get(HeaderRemaining))
	assert.Equal(t, "60", rec.Header().Get(HeaderRetryAfter))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))

	var body Rejection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 429, body.StatusCode)
	assert.Equal(t, "Too Many Requests", body.Error)
	assert.Equal(t, DefaultMessage, body.Message)
}

func TestHTTPMiddleware_UntrackedHasNoHeaders(t *testing.T) {
	l := newTestLimiter(t, DefaultConfig())
	rec := serve(HTTPMiddleware(l)(okHandler), "GET", "/anything", "192.0.2.1:1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderLimit))
	assert.Empty(t, rec.Header().Get(HeaderRemaining))
	assert.Empty(t, rec.Header().Get(HeaderReset))
}

func TestHTTPMiddleware_ServeMuxPattern(t *testing.T) {
	l := newTestLimiter(t, policyConfig("GET /products/{id}", Policy{Limit: 1, Window: time.Minute}), WithClock(newFakeClock().Now))

	mux := http.NewServeMux()
	mux.Handle("GET /products/{id}", HTTPMiddleware(l, WithPathNormalizer(func(string) string {
		return "/products/:id"
	}))(okHandler))

	assert.Equal(t, http.StatusOK, serve(mux, "GET", "/products/1", "192.0.2.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(mux, "GET", "/products/2", "192.0.2.1:1").Code,
		"normalized path shares one counter")
}

func TestHTTPMiddleware_Controller(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Controllers = []ControllerPolicy{{Name: "orders", Policy: Policy{Limit: 1, Window: time.Minute, ErrorMessage: "orders busy"}}}
	l := newTestLimiter(t, cfg, WithClock(newFakeClock().Now))
	h := HTTPMiddleware(l, WithController("orders"))(okHandler)

	assert.Equal(t, http.StatusOK, serve(h, "GET", "/orders", "192.0.2.1:1").Code)
	rec := serve(h, "GET", "/orders", "192.0.2.1:1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "orders busy")
}

func TestHTTPMiddleware_IdentityFromContext(t *testing.T) {
	l := newTestLimiter(t, policyConfig("/api/orders", Policy{Limit: 1, Window: time.Minute, ScopeByUser: true}), WithClock(newFakeClock().Now))
	h := HTTPMiddleware(l)(okHandler)

	asUser := func(user string) int {
		req := httptest.NewRequest("GET", "/api/orders", nil)
		req.RemoteAddr = "192.0.2.1:1"
		ctx, err := xctx.WithUserID(req.Context(), user)
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req.WithContext(ctx))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, asUser("alice"))
	assert.Equal(t, http.StatusOK, asUser("bob"))
	assert.Equal(t, http.StatusTooManyRequests, asUser("alice"))
}

func TestHTTPMiddleware_SkipAndCustomDeny(t *testing.T) {
	l := newTestLimiter(t, policyConfig("/healthz", Policy{Limit: 1, Window: time.Minute}), WithClock(newFakeClock().Now))

	skipped := HTTPMiddleware(l, WithSkipFunc(func(r *http.Request) bool {
		return r.URL.Path == "/healthz"
	}))(okHandler)
	for range 3 {
		assert.Equal(t, http.StatusOK, serve(skipped, "GET", "/healthz", "192.0.2.1:1").Code)
	}

	custom := HTTPMiddleware(l, WithDenyHandler(func(w http.ResponseWriter, _ *http.Request, d Denied) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))(okHandler)
	assert.Equal(t, http.StatusOK, serve(custom, "GET", "/healthz", "192.0.2.1:1").Code)
	rec := serve(custom, "GET", "/healthz", "192.0.2.1:1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get(HeaderLimit), "headers are written before the deny handler")
}

func TestHTTPMiddleware_NilLimiterPanics(t *testing.T) {
	assert.Panics(t, func() { HTTPMiddleware(nil) })
}
