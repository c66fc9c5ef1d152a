package xbreaker

import (
	"errors"
	"fmt"
)

// BreakerError 熔断器拒绝执行时返回的错误
type BreakerError struct {
	Err   error // ErrOpenState 或 ErrTooManyRequests
	Name  string
	State State
}

func (e *BreakerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("breaker %s: %v", e.Name, e.Err)
	}
	return e.Err.Error()
}

func (e *BreakerError) Unwrap() error {
	return e.Err
}

// Retryable 熔断拒绝不应重试
func (e *BreakerError) Retryable() bool {
	return false
}

// wrapBreakerError 只包装 gobreaker 直接返回的 sentinel，
// 状态从错误推导而非再次查询，避免与并发状态切换产生偏差。
func wrapBreakerError(err error, name string) error {
	switch {
	case err == nil:
		return nil
	case err == ErrOpenState:
		return &BreakerError{Err: err, Name: name, State: StateOpen}
	case err == ErrTooManyRequests:
		return &BreakerError{Err: err, Name: name, State: StateHalfOpen}
	default:
		return err
	}
}

// IsOpen 熔断器打开导致的拒绝
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpenState)
}

// IsTooManyRequests 半开状态探测请求已满
func IsTooManyRequests(err error) bool {
	return errors.Is(err, ErrTooManyRequests)
}

// IsBreakerError 任一熔断拒绝
func IsBreakerError(err error) bool {
	var be *BreakerError
	return errors.As(err, &be)
}
