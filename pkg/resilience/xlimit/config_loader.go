package xlimit

import (
	"context"
	"fmt"

	"github.com/omeyang/marketguard/pkg/config/xconf"
	"github.com/omeyang/marketguard/pkg/observability/xlog"
)

// DefaultConfigPath 配置文件中限流配置所在路径
const DefaultConfigPath = "ratelimit"

// LoadConfig 从 xconf 读取并校验限流配置，未设置的字段使用默认值
func LoadConfig(cfg xconf.Config, path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	out := DefaultConfig()
	if cfg.Exists(path) {
		if err := cfg.Unmarshal(path, &out); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	out = out.withDefaults()
	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

// WatchConfig 监视配置文件，变更后重新加载策略并调用 [Limiter.UpdateConfig]。
// 新配置不合法时保留旧策略并记录错误。返回的 Watcher 需调用 Run。
func WatchConfig(cfg xconf.Config, path string, limiter *Limiter, logger xlog.Logger, opts ...xconf.WatchOption) (*xconf.Watcher, error) {
	if logger == nil {
		logger = xlog.Discard()
	}
	return xconf.Watch(cfg, func(c xconf.Config, err error) {
		ctx := context.Background()
		if err != nil {
			logger.Error(ctx, "reload config file failed, keeping current rate limit policies", xlog.Err(err))
			return
		}
		next, err := LoadConfig(c, path)
		if err != nil {
			logger.Error(ctx, "invalid rate limit config, keeping current policies", xlog.Err(err))
			return
		}
		if err := limiter.UpdateConfig(next); err != nil {
			logger.Error(ctx, "apply rate limit config failed", xlog.Err(err))
		}
	}, opts...)
}
