package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"plantcare-http-service/internal/error/apperror"
	"plantcare-http-service/internal/infrastructure/config"
	"plantcare-http-service/internal/infrastructure/logger"
)

// InterfaceRateLimitService 提问配额检查
type InterfaceRateLimitService interface {
	Allow(ctx context.Context, key string) error
}

// TokenBucket 简单的令牌桶限流器
type TokenBucket struct {
	rate       float64    // 每秒填充的令牌数
	capacity   int        // 桶的容量
	tokens     float64    // 当前令牌数
	lastRefill time.Time  // 上次填充时间
	mu         sync.Mutex // 互斥锁
}

// NewTokenBucket 创建新的令牌桶限流器
func NewTokenBucket(rate float64, capacity int) *TokenBucket {
	return &TokenBucket{
		rate:       rate,
		capacity:   capacity,
		tokens:     float64(capacity),
		lastRefill: time.Now(),
	}
}

// Allow 尝试获取令牌
func (tb *TokenBucket) Allow() bool {
	ok, _ := tb.Take()
	return ok
}

// Take 尝试获取令牌，失败时返回下一个令牌可用前需要等待的时间
func (tb *TokenBucket) Take() (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.lastRefill = now

	// 填充令牌
	tb.tokens += elapsed * tb.rate
	if tb.tokens > float64(tb.capacity) {
		tb.tokens = float64(tb.capacity)
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true, 0
	}
	wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
	return false, wait
}

// RateLimitService 固定窗口计数；Redis 不可用时使用进程内令牌桶
type RateLimitService struct {
	redis  InterfaceRedisService
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*TokenBucket
}

// NewRateLimitService 创建限流服务，redis 为 nil 时使用进程内令牌桶
func NewRateLimitService(redis InterfaceRedisService, cfg *config.Config) InterfaceRateLimitService {
	limit := cfg.AskRateLimit
	if limit < 1 {
		limit = 1
	}
	return &RateLimitService{
		redis:   redis,
		limit:   limit,
		window:  cfg.AskRateWindow,
		buckets: make(map[string]*TokenBucket),
	}
}

// Allow 检查并消耗一次配额，超限时返回 *apperror.RateLimited；Redis 故障时返回错误
func (s *RateLimitService) Allow(ctx context.Context, key string) error {
	if s.redis == nil {
		return s.allowLocal(key)
	}

	count, ttl, err := s.redis.IncrWindow(ctx, "ratelimit:ask:"+key, s.window)
	if err != nil {
		return fmt.Errorf("限流计数失败: %w", err)
	}
	if count > int64(s.limit) {
		logger.Warning("提问频率超限: key=%s, count=%d", key, count)
		return &apperror.RateLimited{RetryAfter: ttl}
	}
	return nil
}

func (s *RateLimitService) allowLocal(key string) error {
	s.mu.Lock()
	bucket, ok := s.buckets[key]
	if !ok {
		bucket = NewTokenBucket(float64(s.limit)/s.window.Seconds(), s.limit)
		s.buckets[key] = bucket
	}
	s.mu.Unlock()

	if ok, wait := bucket.Take(); !ok {
		return &apperror.RateLimited{RetryAfter: wait}
	}
	return nil
}
