package xlimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/omeyang/marketguard/pkg/util/xnet"
)

// 默认值
const (
	DefaultKeyPrefix      = "rate-limit:"
	DefaultMessage        = "Too many requests, please try again later."
	DefaultStoreTimeout   = 200 * time.Millisecond
	DefaultSweepInterval  = 30 * time.Second
	DefaultConnectAttempt = 1

	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 10 * time.Second
)

// Config 限流器配置
type Config struct {
	// KeyPrefix 计数 Key 前缀，默认 "rate-limit:"
	KeyPrefix string `koanf:"key_prefix"`

	// DefaultMessage 策略未配置 ErrorMessage 时的拒绝提示
	DefaultMessage string `koanf:"default_message"`

	// TrustedProxies 受信代理（IP、CIDR 或 "a-b" 区间）。
	// 为空时始终采信 X-Forwarded-For；非空时仅当直连对端在其中才采信。
	TrustedProxies []string `koanf:"trusted_proxies"`

	Global      GlobalConfig       `koanf:"global"`
	Controllers []ControllerPolicy `koanf:"controllers"`
	Routes      []RoutePolicy      `koanf:"routes"`
	Store       StoreConfig        `koanf:"store"`
}

// GlobalConfig 全局默认策略，窗口固定 60 秒，0 表示不启用
type GlobalConfig struct {
	RequestsPerMinutePerIP int `koanf:"requests_per_minute_per_ip"`
}

// ControllerPolicy 控制器级策略
type ControllerPolicy struct {
	Name   string `koanf:"name"`
	Policy `koanf:",squash"`
}

// RoutePolicy 路由级策略，Route 形如 "POST /api/orders" 或 "/api/orders"
type RoutePolicy struct {
	Route  string `koanf:"route"`
	Policy `koanf:",squash"`
}

// StoreConfig 计数存储配置
type StoreConfig struct {
	// Endpoint Redis 地址（redis:// URL），为空时仅使用本地计数。
	// 通过 WithRedisClient 注入客户端时忽略此项。
	Endpoint string `koanf:"endpoint"`

	// Timeout 单次 Redis 调用超时，默认 200ms
	Timeout time.Duration `koanf:"timeout"`

	// ConnectAttempts 启动时 PING 的尝试次数，默认 1
	ConnectAttempts int `koanf:"connect_attempts"`

	// SweepInterval 本地计数过期清理间隔，默认 30s
	SweepInterval time.Duration `koanf:"sweep_interval"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig Redis 熔断配置，默认关闭
//
// FailureRatio > 0 时按失败率熔断（统计满 MinRequests 次后判定），
// 否则按 ConsecutiveFailures 连续失败次数熔断。
type BreakerConfig struct {
	Enabled             bool          `koanf:"enabled"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
	FailureRatio        float64       `koanf:"failure_ratio"`
	MinRequests         uint32        `koanf:"min_requests"`
	OpenTimeout         time.Duration `koanf:"open_timeout"`
	// Interval Closed 状态下清零统计的周期，0 表示不清零
	Interval time.Duration `koanf:"interval"`
	// MaxRequests HalfOpen 状态下放行的探测次数，0 按 1 处理
	MaxRequests uint32 `koanf:"max_requests"`
}

// DefaultConfig 返回默认配置：无任何策略，仅本地计数
func DefaultConfig() Config {
	return Config{
		KeyPrefix:      DefaultKeyPrefix,
		DefaultMessage: DefaultMessage,
		Store: StoreConfig{
			Timeout:         DefaultStoreTimeout,
			ConnectAttempts: DefaultConnectAttempt,
			SweepInterval:   DefaultSweepInterval,
			Breaker: BreakerConfig{
				ConsecutiveFailures: defaultBreakerFailures,
				OpenTimeout:         defaultBreakerTimeout,
			},
		},
	}
}

// withDefaults 补齐零值字段
func (c Config) withDefaults() Config {
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.DefaultMessage == "" {
		c.DefaultMessage = DefaultMessage
	}
	if c.Store.Timeout == 0 {
		c.Store.Timeout = DefaultStoreTimeout
	}
	if c.Store.ConnectAttempts == 0 {
		c.Store.ConnectAttempts = DefaultConnectAttempt
	}
	if c.Store.SweepInterval == 0 {
		c.Store.SweepInterval = DefaultSweepInterval
	}
	if c.Store.Breaker.ConsecutiveFailures == 0 {
		c.Store.Breaker.ConsecutiveFailures = defaultBreakerFailures
	}
	if c.Store.Breaker.OpenTimeout == 0 {
		c.Store.Breaker.OpenTimeout = defaultBreakerTimeout
	}
	return c
}

// Validate 校验配置，零值字段按默认值处理
func (c Config) Validate() error {
	c = c.withDefaults()

	var errs []error
	if c.Store.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: store.timeout must be positive", ErrInvalidConfig))
	}
	if c.Store.ConnectAttempts < 0 {
		errs = append(errs, fmt.Errorf("%w: store.connect_attempts must be positive", ErrInvalidConfig))
	}
	if c.Store.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: store.sweep_interval must be positive", ErrInvalidConfig))
	}
	if c.Store.Breaker.OpenTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: store.breaker.open_timeout must be positive", ErrInvalidConfig))
	}
	if c.Store.Breaker.Interval < 0 {
		errs = append(errs, fmt.Errorf("%w: store.breaker.interval must not be negative", ErrInvalidConfig))
	}
	if r := c.Store.Breaker.FailureRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("%w: store.breaker.failure_ratio must be within [0, 1]", ErrInvalidConfig))
	}
	if _, err := xnet.NewProxySet(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("%w: trusted_proxies: %w", ErrInvalidConfig, err))
	}
	if _, err := NewResolver(c); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
