package xlimit

import (
	"context"
	"time"
)

// 存储类型，作为指标维度
const (
	StoreTypeLocal = "local"
	StoreTypeRedis = "redis"
)

// Counter 一次自增后的计数视图
type Counter struct {
	// Count 自增后的窗口内计数
	Count int64
	// TTL 窗口剩余时间，向上取整到秒，至少 1 秒
	TTL time.Duration
}

// CounterStore 固定窗口计数存储
//
// Increment 原子地对 key 自增：key 不存在或已过期时以 window 开始新窗口并计为 1，
// 否则计数加 1 且不改变窗口结束时间。
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (Counter, error)
	Type() string
	Close(ctx context.Context) error
}

// ceilSeconds 向上取整到秒，结果至少 1 秒
func ceilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	s := (d + time.Second - 1) / time.Second
	return s * time.Second
}
