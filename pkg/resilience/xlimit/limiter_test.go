package xlimit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/omeyang/marketguard/pkg/observability/xmetrics"
	"github.com/omeyang/marketguard/pkg/resilience/xbreaker"
)

var threePerMinute = Policy{Limit: 3, Window: time.Minute}

func requireAllowed(t *testing.T, d Decision, count, remaining int64) {
	t.Helper()
	a, ok := d.(Allowed)
	require.True(t, ok, "expected Allowed, got %#v", d)
	assert.True(t, a.Tracked)
	assert.Equal(t, count, a.Count)
	assert.Equal(t, remaining, a.Remaining())
}

func requireDenied(t *testing.T, d Decision, count int64) Denied {
	t.Helper()
	den, ok := d.(Denied)
	require.True(t, ok, "expected Denied, got %#v", d)
	assert.Equal(t, count, den.Count)
	assert.Zero(t, den.Remaining())
	return den
}

func TestLimiter_ExampleScenario_Local(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, policyConfig("POST /api/orders", threePerMinute), WithClock(clock.Now))
	require.True(t, l.UsingLocal())

	ctx := context.Background()
	req := orderRequest("198.51.100.4")

	requireAllowed(t, l.Check(ctx, req), 1, 2)
	requireAllowed(t, l.Check(ctx, req), 2, 1)
	requireAllowed(t, l.Check(ctx, req), 3, 0)
	den := requireDenied(t, l.Check(ctx, req), 4)
	assert.Equal(t, DefaultMessage, den.Message)

	clock.Advance(61 * time.Second)
	requireAllowed(t, l.Check(ctx, req), 1, 2)
}

func TestLimiter_ExampleScenario_Redis(t *testing.T) {
	mr, client := setupMiniredis(t)
	p := threePerMinute
	p.ErrorMessage = "Order creation is rate limited"
	l := newTestLimiter(t, policyConfig("POST /api/orders", p), WithRedisClient(client))
	require.False(t, l.UsingLocal())

	ctx := context.Background()
	req := orderRequest("198.51.100.4")

	requireAllowed(t, l.Check(ctx, req), 1, 2)
	requireAllowed(t, l.Check(ctx, req), 2, 1)
	requireAllowed(t, l.Check(ctx, req), 3, 0)
	den := requireDenied(t, l.Check(ctx, req), 4)
	assert.Equal(t, "Order creation is rate limited", den.Message)
	assert.Equal(t, time.Minute, den.TTL)

	assert.True(t, mr.Exists("rate-limit:/api/orders:198.51.100.4"))

	mr.FastForward(61 * time.Second)
	requireAllowed(t, l.Check(ctx, req), 1, 2)
}

func TestLimiter_DeniedRequestsStillCount(t *testing.T) {
	l := newTestLimiter(t, policyConfig("POST /api/orders", threePerMinute), WithClock(newFakeClock().Now))
	ctx := context.Background()
	req := orderRequest("198.51.100.4")
	for range 4 {
		l.Check(ctx, req)
	}
	requireDenied(t, l.Check(ctx, req), 5)
}

func TestLimiter_KeyIndependence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Routes = []RoutePolicy{
		{Route: "/by-ip", Policy: Policy{Limit: 1, Window: time.Minute}},
		{Route: "/by-user", Policy: Policy{Limit: 1, Window: time.Minute, ScopeByUser: true}},
	}
	l := newTestLimiter(t, cfg, WithClock(newFakeClock().Now))
	ctx := context.Background()

	a := Request{Method: "GET", Path: "/by-ip", RemoteAddr: "192.0.2.1:1"}
	b := Request{Method: "GET", Path: "/by-ip", RemoteAddr: "192.0.2.2:1"}
	assert.True(t, l.Check(ctx, a).IsAllowed())
	assert.True(t, l.Check(ctx, b).IsAllowed())
	assert.False(t, l.Check(ctx, a).IsAllowed())

	u1 := Request{Method: "GET", Path: "/by-user", RemoteAddr: "192.0.2.1:1", UserID: "alice"}
	u2 := u1
	u2.UserID = "bob"
	assert.True(t, l.Check(ctx, u1).IsAllowed())
	assert.True(t, l.Check(ctx, u2).IsAllowed())
	assert.False(t, l.Check(ctx, u1).IsAllowed())
}

func TestLimiter_NoPolicyPassThrough(t *testing.T) {
	l := newTestLimiter(t, DefaultConfig())
	for range 100 {
		d := l.Check(context.Background(), orderRequest("192.0.2.1"))
		assert.Equal(t, Allowed{}, d)
		assert.Nil(t, Headers(d, time.Now()))
	}
}

func TestLimiter_GlobalAndControllerPolicies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.RequestsPerMinutePerIP = 2
	cfg.Controllers = []ControllerPolicy{{Name: "orders", Policy: Policy{Limit: 1, Window: time.Minute}}}
	l := newTestLimiter(t, cfg, WithClock(newFakeClock().Now))
	ctx := context.Background()

	products := Request{Method: "GET", Path: "/products", RemoteAddr: "192.0.2.1:1", Controller: "products"}
	requireAllowed(t, l.Check(ctx, products), 1, 1)
	requireAllowed(t, l.Check(ctx, products), 2, 0)
	requireDenied(t, l.Check(ctx, products), 3)

	orders := Request{Method: "GET", Path: "/orders", RemoteAddr: "192.0.2.1:1", Controller: "orders"}
	requireAllowed(t, l.Check(ctx, orders), 1, 0)
	requireDenied(t, l.Check(ctx, orders), 2)
}

func TestLimiter_FallbackEnforcesAndRecovers(t *testing.T) {
	mr, client := setupMiniredis(t)
	var fallbacks atomic.Int32
	l := newTestLimiter(t, policyConfig("POST /api/orders", threePerMinute),
		WithRedisClient(client),
		WithClock(newFakeClock().Now),
		WithOnFallback(func(context.Context, string, string, error) { fallbacks.Add(1) }),
	)
	ctx := context.Background()
	req := orderRequest("198.51.100.4")

	mr.SetError("ERR unavailable")
	requireAllowed(t, l.Check(ctx, req), 1, 2)
	requireAllowed(t, l.Check(ctx, req), 2, 1)
	requireAllowed(t, l.Check(ctx, req), 3, 0)
	requireDenied(t, l.Check(ctx, req), 4)
	assert.EqualValues(t, 4, fallbacks.Load())

	mr.SetError("")
	requireAllowed(t, l.Check(ctx, req), 1, 2)
	assert.True(t, mr.Exists("rate-limit:/api/orders:198.51.100.4"))
	assert.EqualValues(t, 4, fallbacks.Load())
}

func TestLimiter_Close(t *testing.T) {
	l, err := New(context.Background(), policyConfig("POST /api/orders", threePerMinute))
	require.NoError(t, err)

	require.NoError(t, l.Close(context.Background()))
	assert.ErrorIs(t, l.Close(context.Background()), ErrLimiterClosed)
	assert.ErrorIs(t, l.UpdateConfig(DefaultConfig()), ErrLimiterClosed)

	for range 5 {
		assert.Equal(t, Allowed{}, l.Check(context.Background(), orderRequest("192.0.2.1")))
	}
}

func TestLimiter_UpdateConfig(t *testing.T) {
	l := newTestLimiter(t, policyConfig("POST /api/orders", threePerMinute), WithClock(newFakeClock().Now))
	ctx := context.Background()
	req := orderRequest("192.0.2.1")

	requireAllowed(t, l.Check(ctx, req), 1, 2)

	bad := policyConfig("POST /api/orders", Policy{Limit: 0, Window: time.Minute})
	require.ErrorIs(t, l.UpdateConfig(bad), ErrInvalidPolicy)
	requireAllowed(t, l.Check(ctx, req), 2, 1)

	require.NoError(t, l.UpdateConfig(policyConfig("POST /api/orders", Policy{Limit: 2, Window: time.Minute, ErrorMessage: "new"})))
	den := requireDenied(t, l.Check(ctx, req), 3)
	assert.Equal(t, "new", den.Message)

	require.NoError(t, l.UpdateConfig(DefaultConfig()))
	assert.Equal(t, Allowed{}, l.Check(ctx, req))
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), policyConfig("GET /x", Policy{Limit: 1, Window: 10 * time.Millisecond}))
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	cfg := DefaultConfig()
	cfg.Store.Endpoint = "://not-a-url"
	_, err = New(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.TrustedProxies = []string{"nope"}
	_, err = New(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_NoEndpointUsesLocal(t *testing.T) {
	cfg := policyConfig("POST /api/orders", threePerMinute)
	cfg.Store.Breaker.Enabled = true

	var reasons []string
	l := newTestLimiter(t, cfg, WithOnFallback(func(_ context.Context, _, reason string, _ error) {
		reasons = append(reasons, reason)
	}))
	assert.True(t, l.UsingLocal())
	assert.Equal(t, StoreTypeLocal, l.StoreType())

	ctx := context.Background()
	requireAllowed(t, l.Check(ctx, orderRequest("192.0.2.1")), 1, 2)
	requireAllowed(t, l.Check(ctx, orderRequest("192.0.2.1")), 2, 1)
	assert.Empty(t, reasons)
}

func TestNewRemoteStore_Unconfigured(t *testing.T) {
	remote, err := newRemoteStore(DefaultConfig().Store, nil)
	require.NoError(t, err)
	// 接口值本身必须为 nil，assert.Nil 对带类型的 nil 指针同样通过
	assert.True(t, remote == nil, "got %T", remote)
}

func TestLimiter_NewBreakerFromConfig(t *testing.T) {
	l := newTestLimiter(t, DefaultConfig())
	ctx := context.Background()

	consecutive := l.newBreaker(ctx, BreakerConfig{ConsecutiveFailures: 3, OpenTimeout: time.Minute})
	ratio := l.newBreaker(ctx, BreakerConfig{
		ConsecutiveFailures: 3,
		FailureRatio:        0.5,
		MinRequests:         2,
		OpenTimeout:         time.Minute,
	})
	assert.Equal(t, storeBreakerName, ratio.Name())

	for range 2 {
		_ = consecutive.Do(ctx, func() error { return ErrStoreUnavailable })
		_ = ratio.Do(ctx, func() error { return ErrStoreUnavailable })
	}
	assert.Equal(t, xbreaker.StateClosed, consecutive.State())
	assert.Equal(t, xbreaker.StateOpen, ratio.State())
}

func TestNew_Endpoint(t *testing.T) {
	mr := setupMiniredisOnly(t)
	cfg := policyConfig("POST /api/orders", threePerMinute)
	cfg.Store.Endpoint = "redis://" + mr.Addr() + "/0"
	cfg.Store.Breaker.Enabled = true

	l, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, l.UsingLocal())
	assert.Equal(t, StoreTypeRedis, l.StoreType())

	requireAllowed(t, l.Check(context.Background(), orderRequest("192.0.2.1")), 1, 2)
	require.NoError(t, l.Close(context.Background()))
}

func TestNew_EndpointUnreachable(t *testing.T) {
	mr := setupMiniredisOnly(t)
	addr := mr.Addr()
	mr.Close()

	cfg := policyConfig("POST /api/orders", threePerMinute)
	cfg.Store.Endpoint = "redis://" + addr
	cfg.Store.Timeout = 50 * time.Millisecond
	l := newTestLimiter(t, cfg)
	assert.True(t, l.UsingLocal())
	requireAllowed(t, l.Check(context.Background(), orderRequest("192.0.2.1")), 1, 2)
}

func collectInt64Sum(t *testing.T, reader *sdkmetric.ManualReader, name string, match attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(match.Key); ok && v.Emit() == match.Value.Emit() {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestLimiter_Metrics(t *testing.T) {
	mr, client := setupMiniredis(t)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	l := newTestLimiter(t, policyConfig("POST /api/orders", threePerMinute),
		WithRedisClient(client),
		WithMeterProvider(mp),
	)
	ctx := context.Background()
	for range 4 {
		l.Check(ctx, orderRequest("192.0.2.1"))
	}
	mr.SetError("ERR down")
	l.Check(ctx, orderRequest("192.0.2.1"))

	rule := attribute.String("rule", "POST /api/orders")
	assert.EqualValues(t, 5, collectInt64Sum(t, reader, metricNameCheck, rule))
	assert.EqualValues(t, 1, collectInt64Sum(t, reader, metricNameExceeded, rule))
	assert.EqualValues(t, 1, collectInt64Sum(t, reader, metricNameFallback, attribute.String("reason", reasonOther)))
}

func TestLimiter_ObserverSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	obs, err := xmetrics.NewOTelObserver(
		xmetrics.WithTracerProvider(tp),
		xmetrics.WithMeterProvider(sdkmetric.NewMeterProvider()),
	)
	require.NoError(t, err)

	l := newTestLimiter(t, policyConfig("POST /api/orders", threePerMinute), WithObserver(obs))
	l.Check(context.Background(), orderRequest("192.0.2.1"))
	l.Check(context.Background(), Request{Method: "GET", Path: "/untracked"})

	spans := sr.Ended()
	require.Len(t, spans, 1, "untracked requests produce no span")
	assert.Equal(t, "xlimit.check", spans[0].Name())
}

func TestLimiter_DenyHook(t *testing.T) {
	var denied atomic.Int32
	l := newTestLimiter(t, policyConfig("POST /api/orders", Policy{Limit: 1, Window: time.Minute}),
		WithOnDeny(func(_ context.Context, req Request, d Denied) {
			denied.Add(1)
			panic("deny hook")
		}),
	)
	ctx := context.Background()
	assert.NotPanics(t, func() {
		l.Check(ctx, orderRequest("192.0.2.1"))
		d := l.Check(ctx, orderRequest("192.0.2.1"))
		assert.False(t, d.IsAllowed())
	})
	assert.EqualValues(t, 1, denied.Load())
}
