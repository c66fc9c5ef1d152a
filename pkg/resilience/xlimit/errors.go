package xlimit

import (
	"context"
	"errors"
	"net"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/marketguard/pkg/resilience/xbreaker"
)

var (
	// ErrInvalidPolicy 策略字段不合法（limit <= 0、window 不足 1 秒或不是整秒）
	ErrInvalidPolicy = errors.New("xlimit: invalid policy")

	// ErrInvalidConfig 配置不合法
	ErrInvalidConfig = errors.New("xlimit: invalid config")

	// ErrLimiterClosed 限流器已关闭
	ErrLimiterClosed = errors.New("xlimit: limiter closed")

	// ErrStoreUnavailable 分布式计数存储调用失败
	ErrStoreUnavailable = errors.New("xlimit: store unavailable")

	// ErrNilClient Redis 客户端为 nil
	ErrNilClient = errors.New("xlimit: nil redis client")
)

// 降级原因，作为指标维度，取值固定
const (
	reasonTimeout     = "timeout"
	reasonNetwork     = "network"
	reasonCircuitOpen = "circuit_open"
	reasonClosed      = "closed"
	reasonOther       = "other"
)

// classifyError 将存储错误归类为低基数的降级原因
func classifyError(err error) string {
	var netErr net.Error
	switch {
	case err == nil:
		return ""
	case xbreaker.IsOpen(err) || xbreaker.IsTooManyRequests(err):
		return reasonCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return reasonTimeout
	case errors.Is(err, redis.ErrClosed), errors.Is(err, net.ErrClosed):
		return reasonClosed
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return reasonTimeout
		}
		return reasonNetwork
	default:
		return reasonOther
	}
}
