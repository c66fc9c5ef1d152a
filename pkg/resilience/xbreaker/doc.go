// Package xbreaker 基于 sony/gobreaker/v2 的熔断器封装。
//
// 用于保护共享存储调用：连续失败达到阈值后熔断器打开，
// 后续调用直接返回 ErrOpenState，不再等待超时，调用方据此走降级路径。
// Timeout 过后进入半开状态放行探测请求，成功则恢复。
//
//	b := xbreaker.NewBreaker("redis",
//		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(5)),
//		xbreaker.WithTimeout(10*time.Second),
//	)
//	err := b.Do(ctx, func() error { return client.Ping(ctx).Err() })
//	if xbreaker.IsOpen(err) {
//		// 降级
//	}
package xbreaker
