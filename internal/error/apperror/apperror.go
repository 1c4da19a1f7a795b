// Package apperror 定义跨层使用的错误类型。
// 只有 ValidationError、RateLimited、InvariantViolation、ErrNotFound 会返回给调用方，
// 依赖不可用（ErrUnavailable）在内部被吸收为降级结果。
package apperror

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("not found")
	// ErrUnavailable 外部依赖不可用
	ErrUnavailable = errors.New("dependency unavailable")
)

// ValidationError 请求参数不合法，不重试，原样返回给调用方
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidation 创建参数验证错误
func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// RateLimited 调用方超出配额
type RateLimited struct {
	RetryAfter time.Duration
}

func (e *RateLimited) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// RetryAfterSeconds 向上取整的秒数，用于 Retry-After 头
func (e *RateLimited) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// InvariantViolation 违反业务不变量的操作，例如重复处理调整建议
type InvariantViolation struct {
	Message string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Message
}

// NewInvariant 创建不变量错误
func NewInvariant(format string, args ...interface{}) error {
	return &InvariantViolation{Message: fmt.Sprintf(format, args...)}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient 标记一个可重试的临时错误（超时、网络错误、5xx）
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient 判断错误是否可重试
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// IsValidation 判断是否为参数验证错误
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsInvariant 判断是否为不变量错误
func IsInvariant(err error) bool {
	var v *InvariantViolation
	return errors.As(err, &v)
}

// AsRateLimited 提取限流错误
func AsRateLimited(err error) (*RateLimited, bool) {
	var r *RateLimited
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
