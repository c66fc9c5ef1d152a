package xlimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/omeyang/marketguard/pkg/observability/xlog"
	"github.com/omeyang/marketguard/pkg/observability/xmetrics"
	"github.com/omeyang/marketguard/pkg/resilience/xbreaker"
)

// policySet 一次配置对应的只读视图，整体原子替换
type policySet struct {
	resolver       *Resolver
	keys           *KeyBuilder
	defaultMessage string
}

func newPolicySet(cfg Config) (*policySet, error) {
	resolver, err := NewResolver(cfg)
	if err != nil {
		return nil, err
	}
	keys, err := NewKeyBuilder(cfg.KeyPrefix, cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("%w: trusted_proxies: %w", ErrInvalidConfig, err)
	}
	return &policySet{resolver: resolver, keys: keys, defaultMessage: cfg.DefaultMessage}, nil
}

// 超限日志以 Warn 输出的速率，超出部分降为 Debug
const (
	denyLogRate  = rate.Limit(10)
	denyLogBurst = 20
)

const storeBreakerName = "xlimit-store"

// Limiter 限流器，并发安全
type Limiter struct {
	policies atomic.Pointer[policySet]
	store    *FallbackStore
	metrics  *Metrics
	opts     *options
	denyLog  *rate.Limiter
	closed   atomic.Bool
}

// New 创建限流器
//
// 配置错误在此返回。Redis 不可达不是错误：限流器会改用本地计数。
func New(ctx context.Context, cfg Config, opts ...Option) (*Limiter, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	set, err := newPolicySet(cfg)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(o.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("xlimit: create metrics: %w", err)
	}

	l := &Limiter{metrics: metrics, opts: o, denyLog: rate.NewLimiter(denyLogRate, denyLogBurst)}
	l.policies.Store(set)

	remote, err := newRemoteStore(cfg.Store, o.redisClient)
	if err != nil {
		return nil, err
	}
	local := NewLocalStore(WithSweepInterval(cfg.Store.SweepInterval), WithLocalClock(o.now))

	fopts := []FallbackOption{
		WithFallbackLogger(o.logger),
		WithConnectAttempts(cfg.Store.ConnectAttempts, o.connectDelay),
		WithFallbackHook(l.onFallback),
	}
	if cfg.Store.Breaker.Enabled && remote != nil {
		fopts = append(fopts, WithStoreBreaker(l.newBreaker(ctx, cfg.Store.Breaker)))
	}

	store, err := NewFallbackStore(ctx, remote, local, fopts...)
	if err != nil {
		_ = local.Close(ctx) //nolint:errcheck // 构造失败路径
		return nil, err
	}
	l.store = store
	return l, nil
}

// newRemoteStore 注入的客户端优先，其次 endpoint；都没有时返回无类型的 nil，
// 使 NewFallbackStore 能识别为未配置远端
func newRemoteStore(cfg StoreConfig, client redis.UniversalClient) (RemoteStore, error) {
	if client != nil {
		return redisRemote(NewRedisStore(client, cfg.Timeout))
	}
	if cfg.Endpoint == "" {
		return nil, nil
	}
	redisOpts, err := redis.ParseURL(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: store.endpoint: %w", ErrInvalidConfig, err)
	}
	redisOpts.DialTimeout = cfg.Timeout
	redisOpts.ReadTimeout = cfg.Timeout
	redisOpts.WriteTimeout = cfg.Timeout
	redisOpts.MaxRetries = -1
	return redisRemote(NewRedisStore(redis.NewClient(redisOpts), cfg.Timeout, WithOwnedClient()))
}

func redisRemote(s *RedisStore, err error) (RemoteStore, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (l *Limiter) newBreaker(ctx context.Context, cfg BreakerConfig) *xbreaker.Breaker {
	logger := l.opts.logger
	var trip xbreaker.TripPolicy = xbreaker.NewConsecutiveFailures(cfg.ConsecutiveFailures)
	if cfg.FailureRatio > 0 {
		trip = xbreaker.NewFailureRatio(cfg.FailureRatio, cfg.MinRequests)
	}
	return xbreaker.NewBreaker(storeBreakerName,
		xbreaker.WithTripPolicy(trip),
		xbreaker.WithTimeout(cfg.OpenTimeout),
		xbreaker.WithInterval(cfg.Interval),
		xbreaker.WithMaxRequests(cfg.MaxRequests),
		xbreaker.WithOnStateChange(func(name string, from, to xbreaker.State) {
			logger.Warn(ctx, "counter store breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		}),
	)
}

// Check 对请求计数并给出判定，不返回错误
//
// 无生效策略、限流器已关闭或计数失败时返回未追踪的 [Allowed]。
// 被拒绝的请求同样计数。
func (l *Limiter) Check(ctx context.Context, req Request) Decision {
	if ctx == nil {
		ctx = context.Background()
	}
	if l.closed.Load() {
		l.opts.logger.Debug(ctx, "rate limiter closed, request not tracked", xlog.Route(req.routeID()))
		return Allowed{}
	}

	set := l.policies.Load()
	policy, rule, ok := set.resolver.resolveRule(req.routeID(), req.Controller)
	if !ok {
		return Allowed{}
	}

	start := time.Now()
	ctx, span := xmetrics.Start(ctx, l.opts.observer, xmetrics.SpanOptions{
		Component: "xlimit",
		Operation: "check",
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.String("rule", rule)},
	})

	key := set.keys.Build(req, policy)
	c, err := l.store.Increment(ctx, key, policy.Window)
	if err != nil {
		l.opts.logger.Error(ctx, "rate limit counter failed, allowing request", xlog.RateKey(key), xlog.Err(err))
		span.End(xmetrics.Result{Err: err})
		return Allowed{}
	}

	var d Decision
	if c.Count <= int64(policy.Limit) {
		d = Allowed{Count: c.Count, Limit: policy.Limit, TTL: c.TTL, Tracked: true}
		l.opts.logger.Debug(ctx, "rate limit check passed",
			xlog.RateKey(key),
			slog.Int64("count", c.Count),
			slog.Int("limit", policy.Limit),
		)
	} else {
		msg := policy.ErrorMessage
		if msg == "" {
			msg = set.defaultMessage
		}
		denied := Denied{Count: c.Count, Limit: policy.Limit, TTL: c.TTL, Message: msg}
		d = denied
		log := l.opts.logger.Debug
		if l.denyLog.Allow() {
			log = l.opts.logger.Warn
		}
		log(ctx, "rate limit exceeded",
			xlog.RateKey(key),
			slog.String("rule", rule),
			slog.Int64("count", c.Count),
			slog.Int("limit", policy.Limit),
			slog.Duration("ttl", c.TTL),
		)
		l.onDeny(ctx, req, denied)
	}

	l.metrics.RecordCheck(ctx, rule, d.IsAllowed(), time.Since(start))
	span.End(xmetrics.Result{Attrs: []xmetrics.Attr{
		xmetrics.Bool("allowed", d.IsAllowed()),
		xmetrics.Int64("count", c.Count),
	}})
	return d
}

func (l *Limiter) onDeny(ctx context.Context, req Request, d Denied) {
	if l.opts.onDeny == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.opts.logger.Error(ctx, "deny hook panicked", slog.Any("panic", r))
		}
	}()
	l.opts.onDeny(ctx, req, d)
}

// onFallback 由 FallbackStore 调用，外层已做 panic 保护
func (l *Limiter) onFallback(ctx context.Context, key, reason string, err error) {
	l.metrics.RecordFallback(ctx, reason)
	if l.opts.onFallback != nil {
		l.opts.onFallback(ctx, key, reason, err)
	}
}

// UpdateConfig 原子替换策略表、Key 前缀、受信代理和默认提示。
// 存储相关配置（store.*）只在 New 时生效。
func (l *Limiter) UpdateConfig(cfg Config) error {
	if l.closed.Load() {
		return ErrLimiterClosed
	}
	cfg = cfg.withDefaults()
	set, err := newPolicySet(cfg)
	if err != nil {
		return err
	}
	l.policies.Store(set)
	l.opts.logger.Info(context.Background(), "rate limit policies updated",
		slog.Int("routes", len(cfg.Routes)),
		slog.Int("controllers", len(cfg.Controllers)),
		slog.Int("global_limit", cfg.Global.RequestsPerMinutePerIP),
	)
	return nil
}

// Resolver 返回当前策略表
func (l *Limiter) Resolver() *Resolver {
	return l.policies.Load().resolver
}

// StoreType 当前计数存储类型
func (l *Limiter) StoreType() string {
	return l.store.Type()
}

// UsingLocal 是否只使用本地计数
func (l *Limiter) UsingLocal() bool {
	return l.store.UsingLocal()
}

func (l *Limiter) now() time.Time {
	return l.opts.now()
}

// Close 停止后台清理并关闭自有的 Redis 客户端，重复调用返回 ErrLimiterClosed
func (l *Limiter) Close(ctx context.Context) error {
	if !l.closed.CompareAndSwap(false, true) {
		return ErrLimiterClosed
	}
	if err := l.store.Close(ctx); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
