package xlimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v5"

	"github.com/omeyang/marketguard/pkg/observability/xlog"
	"github.com/omeyang/marketguard/pkg/resilience/xbreaker"
)

var _ CounterStore = (*FallbackStore)(nil)

// RemoteStore 可探活的分布式计数存储
type RemoteStore interface {
	CounterStore
	Ping(ctx context.Context) error
}

// FallbackHook 降级回调，reason 取值见 classifyError
type FallbackHook func(ctx context.Context, key string, reason string, err error)

// FallbackStore 分布式优先、本地兜底的计数存储
//
// 构造时决定运行模式：remote 为 nil 或启动 PING 失败时整个生命周期只用本地计数。
// 分布式模式下每次调用都先访问 remote，失败时仅本次调用改用本地计数。
type FallbackStore struct {
	remote   RemoteStore
	local    *LocalStore
	useLocal bool

	breaker      *xbreaker.Breaker
	logger       xlog.Logger
	hook         FallbackHook
	attempts     int
	attemptDelay time.Duration
}

// FallbackOption FallbackStore 选项
type FallbackOption func(*FallbackStore)

// WithFallbackLogger 设置日志
func WithFallbackLogger(l xlog.Logger) FallbackOption {
	return func(f *FallbackStore) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithConnectAttempts 启动 PING 的尝试次数和间隔
func WithConnectAttempts(n int, delay time.Duration) FallbackOption {
	return func(f *FallbackStore) {
		if n > 0 {
			f.attempts = n
		}
		if delay > 0 {
			f.attemptDelay = delay
		}
	}
}

// WithStoreBreaker 在 remote 前加熔断器，打开期间直接使用本地计数
func WithStoreBreaker(b *xbreaker.Breaker) FallbackOption {
	return func(f *FallbackStore) {
		f.breaker = b
	}
}

// WithFallbackHook 每次降级时调用，panic 会被吞掉
func WithFallbackHook(h FallbackHook) FallbackOption {
	return func(f *FallbackStore) {
		f.hook = h
	}
}

// NewFallbackStore 创建降级存储，local 不能为 nil
func NewFallbackStore(ctx context.Context, remote RemoteStore, local *LocalStore, opts ...FallbackOption) (*FallbackStore, error) {
	if local == nil {
		return nil, fmt.Errorf("%w: local store is required", ErrInvalidConfig)
	}
	f := &FallbackStore{
		remote:       remote,
		local:        local,
		logger:       xlog.Discard(),
		attempts:     DefaultConnectAttempt,
		attemptDelay: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	if remote == nil {
		f.useLocal = true
		f.logger.Info(ctx, "rate limiter using local counter store", slog.String("reason", "no remote store configured"))
		return f, nil
	}

	if err := f.connect(ctx); err != nil {
		f.useLocal = true
		f.logger.Warn(ctx, "remote counter store unreachable at startup, using local counter store",
			xlog.Err(err),
			slog.Int("attempts", f.attempts),
		)
		return f, nil
	}
	f.logger.Info(ctx, "rate limiter using remote counter store", slog.String("store", remote.Type()))
	return f, nil
}

func (f *FallbackStore) connect(ctx context.Context) error {
	return retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(f.attempts)),
		retry.Delay(f.attemptDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Debug(ctx, "remote counter store ping failed", slog.Uint64("attempt", uint64(n)+1), xlog.Err(err))
		}),
	).Do(func() error {
		return f.remote.Ping(ctx)
	})
}

// UsingLocal 是否在整个生命周期内只使用本地计数
func (f *FallbackStore) UsingLocal() bool {
	return f.useLocal
}

// Increment 优先分布式自增，失败时本次调用改用本地计数
func (f *FallbackStore) Increment(ctx context.Context, key string, window time.Duration) (Counter, error) {
	if f.useLocal {
		return f.local.Increment(ctx, key, window)
	}

	c, err := f.incrementRemote(ctx, key, window)
	if err == nil {
		return c, nil
	}

	reason := classifyError(err)
	if reason == reasonCircuitOpen {
		f.logger.Debug(ctx, "remote counter store circuit open, using local counter", xlog.RateKey(key))
	} else {
		f.logger.Warn(ctx, "remote counter store failed, using local counter",
			xlog.RateKey(key),
			slog.String("reason", reason),
			xlog.Err(err),
		)
	}
	f.notify(ctx, key, reason, err)

	return f.local.Increment(ctx, key, window)
}

func (f *FallbackStore) incrementRemote(ctx context.Context, key string, window time.Duration) (Counter, error) {
	if f.breaker == nil {
		return f.remote.Increment(ctx, key, window)
	}
	var c Counter
	err := f.breaker.Do(context.WithoutCancel(ctx), func() error {
		var ierr error
		c, ierr = f.remote.Increment(ctx, key, window)
		return ierr
	})
	return c, err
}

func (f *FallbackStore) notify(ctx context.Context, key, reason string, err error) {
	if f.hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error(ctx, "fallback hook panicked", slog.Any("panic", r))
		}
	}()
	f.hook(ctx, key, reason, err)
}

// Type 返回当前生效的存储类型
func (f *FallbackStore) Type() string {
	if f.useLocal {
		return StoreTypeLocal
	}
	return f.remote.Type()
}

// Close 关闭 remote 与 local
func (f *FallbackStore) Close(ctx context.Context) error {
	var errs []error
	if f.remote != nil {
		if err := f.remote.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := f.local.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
