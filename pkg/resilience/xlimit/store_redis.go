package xlimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ CounterStore = (*RedisStore)(nil)

// incrementScript 固定窗口自增：
// 首次出现时设置过期；已存在的 Key 不刷新过期；丢失过期（PTTL = -1）时补设一次。
// 返回 {count, pttl_ms}。
var incrementScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local window = tonumber(ARGV[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], window)
  return {count, window}
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], window)
  ttl = window
end
return {count, ttl}
`)

// RedisStore 基于 Redis 的分布式固定窗口计数
//
// 每次调用使用独立的超时上下文，且不受请求取消影响。
type RedisStore struct {
	client  redis.UniversalClient
	timeout time.Duration
	owned   bool
}

// RedisOption RedisStore 选项
type RedisOption func(*RedisStore)

// WithOwnedClient Close 时同时关闭客户端
func WithOwnedClient() RedisOption {
	return func(s *RedisStore) {
		s.owned = true
	}
}

// NewRedisStore 创建 Redis 计数存储，timeout <= 0 时使用 [DefaultStoreTimeout]
func NewRedisStore(client redis.UniversalClient, timeout time.Duration, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	s := &RedisStore{client: client, timeout: timeout}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *RedisStore) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

// Increment 执行自增脚本（EVALSHA，脚本未缓存时回退 EVAL）
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (Counter, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	vals, err := incrementScript.Run(callCtx, s.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Counter{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if len(vals) != 2 {
		return Counter{}, fmt.Errorf("%w: unexpected script reply length %d", ErrStoreUnavailable, len(vals))
	}
	return Counter{
		Count: vals[0],
		TTL:   ceilSeconds(time.Duration(vals[1]) * time.Millisecond),
	}, nil
}

// Ping 检查连通性，使用与自增相同的超时
func (s *RedisStore) Ping(ctx context.Context) error {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	if err := s.client.Ping(callCtx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Type() string { return StoreTypeRedis }

// Close 仅关闭自己创建的客户端
func (s *RedisStore) Close(context.Context) error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
