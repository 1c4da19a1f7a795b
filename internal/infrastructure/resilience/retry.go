package resilience

import (
	"context"
	"errors"
	"time"

	"plantcare-http-service/internal/error/apperror"
)

// Policy 单次调用的超时与重试策略
type Policy struct {
	Timeout  time.Duration // 每次尝试的超时
	Attempts int           // 总尝试次数，默认2（即重试一次）
	Backoff  time.Duration // 两次尝试之间的等待
}

// DefaultPolicy 外部依赖的默认策略：超时后只重试一次
func DefaultPolicy(timeout time.Duration) Policy {
	return Policy{Timeout: timeout, Attempts: 2, Backoff: 200 * time.Millisecond}
}

// Do 按策略执行 fn。只有临时错误（显式标记的 Transient 或单次尝试超时）才会重试，
// 调用方 ctx 被取消时立即返回。
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 2
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Backoff):
			}
		}

		lastErr = attempt(ctx, p.Timeout, fn)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func attempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(attemptCtx)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return apperror.Transient(err)
	}
	return err
}

func retryable(err error) bool {
	return apperror.IsTransient(err) || errors.Is(err, context.DeadlineExceeded)
}
