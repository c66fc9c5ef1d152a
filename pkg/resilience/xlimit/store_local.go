package xlimit

import (
	"context"
	"sync"
	"time"

	"github.com/omeyang/marketguard/pkg/lifecycle/xrun"
)

var _ CounterStore = (*LocalStore)(nil)

type localEntry struct {
	count   int64
	resetAt time.Time
}

// LocalStore 进程内固定窗口计数
//
// 自增与清理共用同一把锁，互斥执行。构造时启动后台清理协程，Close 停止。
type LocalStore struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	now     func() time.Time

	sweepInterval time.Duration
	cancel        context.CancelFunc
	done          chan struct{}
	closeOnce     sync.Once
}

// LocalOption LocalStore 选项
type LocalOption func(*LocalStore)

// WithSweepInterval 设置过期清理间隔，<= 0 时不启动后台清理
func WithSweepInterval(d time.Duration) LocalOption {
	return func(s *LocalStore) {
		s.sweepInterval = d
	}
}

// WithLocalClock 注入时钟，测试用
func WithLocalClock(now func() time.Time) LocalOption {
	return func(s *LocalStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewLocalStore 创建本地计数存储
func NewLocalStore(opts ...LocalOption) *LocalStore {
	s := &LocalStore{
		entries:       make(map[string]*localEntry),
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.sweepInterval <= 0 {
		close(s.done)
		s.cancel = func() {}
		return s
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	run := xrun.Ticker(s.sweepInterval, func(context.Context) error {
		s.Sweep()
		return nil
	})
	go func() {
		defer close(s.done)
		_ = run(ctx) //nolint:errcheck // 仅在 Close 时以 context.Canceled 退出
	}()
	return s
}

// Increment 原子自增
func (s *LocalStore) Increment(_ context.Context, key string, window time.Duration) (Counter, error) {
	now := s.now()

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &localEntry{count: 1, resetAt: now.Add(window)}
		s.entries[key] = e
	} else {
		e.count++
	}
	c := Counter{Count: e.count, TTL: ceilSeconds(e.resetAt.Sub(now))}
	s.mu.Unlock()

	return c, nil
}

// Sweep 删除已过期条目，返回删除数量
func (s *LocalStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.entries {
		if !now.Before(e.resetAt) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Len 当前条目数（含尚未清理的过期条目）
func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *LocalStore) Type() string { return StoreTypeLocal }

// Close 停止后台清理并等待协程退出，可重复调用
func (s *LocalStore) Close(ctx context.Context) error {
	s.closeOnce.Do(s.cancel)
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
