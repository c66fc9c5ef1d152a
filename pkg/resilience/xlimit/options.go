package xlimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/marketguard/pkg/observability/xlog"
	"github.com/omeyang/marketguard/pkg/observability/xmetrics"
)

// DenyHook 拒绝回调
type DenyHook func(ctx context.Context, req Request, d Denied)

type options struct {
	logger        xlog.Logger
	observer      xmetrics.Observer
	meterProvider metric.MeterProvider
	redisClient   redis.UniversalClient
	now           func() time.Time
	onDeny        DenyHook
	onFallback    FallbackHook
	connectDelay  time.Duration
}

func defaultOptions() *options {
	return &options{
		logger:       xlog.Discard(),
		observer:     xmetrics.NoopObserver{},
		now:          time.Now,
		connectDelay: 100 * time.Millisecond,
	}
}

// Option 限流器选项
type Option func(*options)

// WithLogger 设置日志
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 设置观测器，每次检查产生一个 xlimit.check 跨度
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithMeterProvider 启用 ratelimit.* 指标
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithRedisClient 使用外部 Redis 客户端，优先于 store.endpoint。
// 客户端由调用方管理，Close 时不会关闭。
func WithRedisClient(c redis.UniversalClient) Option {
	return func(o *options) {
		o.redisClient = c
	}
}

// WithClock 注入时钟，作用于本地计数和响应头
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithOnDeny 请求被拒绝时回调，panic 会被吞掉
func WithOnDeny(h DenyHook) Option {
	return func(o *options) {
		o.onDeny = h
	}
}

// WithOnFallback 分布式计数降级时回调，panic 会被吞掉
func WithOnFallback(h FallbackHook) Option {
	return func(o *options) {
		o.onFallback = h
	}
}

// WithConnectDelay 启动 PING 重试间隔，默认 100ms
func WithConnectDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectDelay = d
		}
	}
}
