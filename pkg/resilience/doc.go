// Package resilience 提供入站保护相关的子包。
//
// 子包列表：
//   - xlimit: 固定窗口限流，Redis 原子计数，不可用时降级为进程内计数
//   - xbreaker: 熔断器，基于 sony/gobreaker，用于保护 Redis 计数调用
package resilience
