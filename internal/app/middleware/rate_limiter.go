package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"plantcare-http-service/internal/domain/services"
	"plantcare-http-service/internal/error/code"
	"plantcare-http-service/internal/error/response"
)

// RateLimiterConfig 限流器配置
type RateLimiterConfig struct {
	Rate       float64                   // 每秒允许的请求数
	Burst      int                       // 允许的突发请求数
	ExpiryTime time.Duration             // 限流器闲置多久后回收
	LimitType  string                    // 限流类型: "ip", "path", "combined", "custom"
	KeyFunc    func(*gin.Context) string // 自定义键生成函数
}

// DefaultRateLimiterConfig 默认限流器配置
var DefaultRateLimiterConfig = RateLimiterConfig{
	Rate:       1,             // 每秒1个请求
	Burst:      5,             // 允许5个突发请求
	ExpiryTime: 1 * time.Hour, // 闲置1小时后回收
	LimitType:  "ip",          // 默认按IP限流
}

type limiterEntry struct {
	bucket   *services.TokenBucket
	lastSeen time.Time
}

// 每个中间件实例持有自己的限流器表，闲置的限流器在访问时顺带回收
type limiterRegistry struct {
	mu       sync.Mutex
	cfg      RateLimiterConfig
	limiters map[string]*limiterEntry
	lastScan time.Time
}

func (r *limiterRegistry) get(key string) *services.TokenBucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if r.cfg.ExpiryTime > 0 && now.Sub(r.lastScan) > r.cfg.ExpiryTime {
		for k, e := range r.limiters {
			if now.Sub(e.lastSeen) > r.cfg.ExpiryTime {
				delete(r.limiters, k)
			}
		}
		r.lastScan = now
	}

	entry, ok := r.limiters[key]
	if !ok {
		entry = &limiterEntry{bucket: services.NewTokenBucket(r.cfg.Rate, r.cfg.Burst)}
		r.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.bucket
}

// RateLimiter 创建限流中间件
func RateLimiter(config ...RateLimiterConfig) gin.HandlerFunc {
	// 使用默认配置或自定义配置
	var cfg RateLimiterConfig
	if len(config) > 0 {
		cfg = config[0]
	} else {
		cfg = DefaultRateLimiterConfig
	}

	// 确保配置有效
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRateLimiterConfig.Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultRateLimiterConfig.Burst
	}
	if cfg.LimitType == "" {
		cfg.LimitType = DefaultRateLimiterConfig.LimitType
	}

	registry := &limiterRegistry{cfg: cfg, limiters: make(map[string]*limiterEntry), lastScan: time.Now()}

	return func(c *gin.Context) {
		var key string

		// 根据限流类型选择限流键
		switch cfg.LimitType {
		case "path":
			key = c.FullPath()
		case "combined":
			key = c.ClientIP() + ":" + c.FullPath()
		case "custom":
			if cfg.KeyFunc != nil {
				key = cfg.KeyFunc(c)
				break
			}
			key = c.ClientIP()
		default:
			key = c.ClientIP()
		}

		// 检查是否允许请求
		if ok, wait := registry.get(key).Take(); !ok {
			seconds := int(wait.Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(seconds))
			response.FailWithMessage(c, code.ErrTooManyRequests, "请求频率过高，请稍后再试", gin.H{"retry_after": seconds})
			c.Abort()
			return
		}

		c.Next()
	}
}

// IPRateLimiter 按IP限流
func IPRateLimiter(rate float64, burst int) gin.HandlerFunc {
	return RateLimiter(RateLimiterConfig{
		Rate:       rate,
		Burst:      burst,
		ExpiryTime: DefaultRateLimiterConfig.ExpiryTime,
		LimitType:  "ip",
	})
}

// CallerRateLimiter 按调用者（用户或IP）限流
func CallerRateLimiter(rate float64, burst int) gin.HandlerFunc {
	return RateLimiter(RateLimiterConfig{
		Rate:       rate,
		Burst:      burst,
		ExpiryTime: DefaultRateLimiterConfig.ExpiryTime,
		LimitType:  "custom",
		KeyFunc:    CallerKey,
	})
}
