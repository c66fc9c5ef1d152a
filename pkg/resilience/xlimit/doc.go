// Package xlimit 入站 API 固定窗口限流。
//
// 每个请求依次经过：
//
//  1. 策略解析（[Resolver]）：路由策略 > 控制器策略 > 全局默认，首个命中即生效，字段不合并。
//     三级都未配置时限流器对该请求不生效（默认放行，不输出限流头）。
//  2. Key 构造（[KeyBuilder]）：rate-limit:<path>:<clientIp>[:user:<id>][:org:<id>]。
//  3. 计数（[FallbackStore]）：优先 Redis 原子计数，失败时本次请求改用进程内计数。
//  4. 判定（[Limiter.Check]）：count <= limit 放行，否则拒绝，返回 [Decision]。
//  5. 输出（[SetHeaders] / [WriteRejection]）：X-RateLimit-* 响应头与 429 响应体。
//
// # 计数语义
//
// 固定窗口从 Key 首次出现开始计时，窗口内的 TTL 不会被后续请求刷新。
// 被拒绝的请求同样计数，持续请求的客户端 count 会一直增长直到窗口结束。
//
// # 降级
//
// 未配置 Redis 或启动时 PING 失败，整个进程使用本地计数。
// 分布式模式下每次调用都先尝试 Redis，失败则本次请求走本地计数，
// Redis 恢复后自动回到分布式计数。降级期间每个进程独立计数，
// 客户端访问多个实例时实际额度会放大。
//
// 可选的熔断器（store.breaker.enabled）在 Redis 持续故障时跳过网络调用。
//
// # 快速开始
//
//	limiter, err := xlimit.New(ctx, cfg,
//		xlimit.WithRedisClient(rdb),
//		xlimit.WithLogger(logger),
//	)
//	defer limiter.Close(ctx)
//
//	mux.Handle("POST /api/orders", xlimit.HTTPMiddleware(limiter,
//		xlimit.WithController("orders"),
//	)(ordersHandler))
package xlimit
