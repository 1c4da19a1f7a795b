package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/error/apperror"
	"plantcare-http-service/internal/infrastructure/logger"
	"plantcare-http-service/internal/infrastructure/resilience"
)

// Provider 天气服务，返回位置未来24小时的预报
type Provider interface {
	Forecast(ctx context.Context, loc Location) (Observation, error)
}

// Status 天气结果状态
type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
)

// Result 天气查询结果，不可用是正常的结果状态而不是错误
type Result struct {
	Snapshot *models.WeatherSnapshot
	Status   Status
	Reason   string
}

// Available 是否拿到了天气
func (r Result) Available() bool {
	return r.Status == StatusAvailable && r.Snapshot != nil
}

// Err 不可用时返回包装了 apperror.ErrUnavailable 的错误，便于日志和调用方分类
func (r Result) Err() error {
	if r.Available() {
		return nil
	}
	reason := r.Reason
	if reason == "" {
		reason = "no snapshot"
	}
	return fmt.Errorf("%w: weather: %s", apperror.ErrUnavailable, reason)
}

// Unavailable 构造不可用结果
func Unavailable(reason string) Result {
	return Result{Status: StatusUnavailable, Reason: reason}
}

// Context 带超时和一次重试的天气查询
type Context struct {
	provider Provider
	policy   resilience.Policy
}

// NewContext 创建天气查询上下文，provider 为空时所有查询都返回不可用
func NewContext(provider Provider, timeout time.Duration) *Context {
	return &Context{provider: provider, policy: resilience.DefaultPolicy(timeout)}
}

// WithPolicy 替换超时重试策略
func (c *Context) WithPolicy(p resilience.Policy) *Context {
	c.policy = p
	return c
}

// Fetch 查询天气，从不返回错误
func (c *Context) Fetch(ctx context.Context, loc Location) Result {
	if c == nil || c.provider == nil {
		return Unavailable("weather provider not configured")
	}

	var obs Observation
	err := resilience.Do(ctx, c.policy, func(ctx context.Context) error {
		var err error
		obs, err = c.provider.Forecast(ctx, loc)
		return err
	})
	if err != nil {
		reason := "weather lookup failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "weather lookup timed out"
		}
		logger.Warning("天气不可用: location=%s, err=%v", loc, err)
		return Unavailable(reason)
	}

	if obs.Location == "" {
		obs.Location = loc.String()
	}
	snapshot := Normalize(obs)
	return Result{Snapshot: &snapshot, Status: StatusAvailable}
}

// FetchRaw 解析原始位置后查询，位置无法解析时返回不可用
func (c *Context) FetchRaw(ctx context.Context, raw string, lat, lon *float64) Result {
	loc, ok := ParseLocation(raw, lat, lon)
	if !ok {
		return Unavailable("location could not be parsed")
	}
	return c.Fetch(ctx, loc)
}
