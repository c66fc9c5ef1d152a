//nolint:errcheck // 测试清理中的 Close 允许忽略错误
package xlimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:       mr.Addr(),
		MaxRetries: -1,
	})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func policyConfig(route string, p Policy) Config {
	cfg := DefaultConfig()
	cfg.Routes = []RoutePolicy{{Route: route, Policy: p}}
	return cfg
}

func newTestLimiter(t *testing.T, cfg Config, opts ...Option) *Limiter {
	t.Helper()
	l, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close(context.Background()) })
	return l
}

func orderRequest(ip string) Request {
	return Request{
		Method:     "POST",
		Path:       "/api/orders",
		RemoteAddr: ip + ":51234",
	}
}

func setupMiniredisOnly(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	return miniredis.RunT(t)
}
