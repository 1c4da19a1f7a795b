package container

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"plantcare-http-service/internal/domain/advisor"
	"plantcare-http-service/internal/domain/knowledge"
	"plantcare-http-service/internal/domain/safety"
	"plantcare-http-service/internal/domain/services"
	"plantcare-http-service/internal/domain/weather"
	"plantcare-http-service/internal/infrastructure/config"
	"plantcare-http-service/internal/infrastructure/logger"
	"plantcare-http-service/internal/infrastructure/resilience"
)

// ServiceContainer 管理所有服务的依赖注入
type ServiceContainer struct {
	db     *gorm.DB
	config *config.Config
	redis  *redis.Client

	// 基础服务
	jwtService   services.InterfaceJWTService
	redisService services.InterfaceRedisService

	// 外部依赖
	weatherService   services.InterfaceWeatherService
	rateLimitService services.InterfaceRateLimitService
	completion       *services.CompletionService
	moderation       *services.ModerationService

	// 领域组件
	knowledgeBase  *knowledge.KnowledgeBase
	weatherContext *weather.Context
	gate           *safety.Gate
	orchestrator   *advisor.Orchestrator

	// 业务服务
	plantService    services.InterfacePlantService
	reminderService services.InterfaceReminderService

	mu sync.RWMutex
}

// NewServiceContainer 创建新的服务容器，redisClient 为 nil 或不可用时不使用Redis
func NewServiceContainer(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) (*ServiceContainer, error) {
	if db == nil {
		panic("数据库连接为空")
	}

	if cfg == nil {
		panic("配置为空")
	}

	// 测试Redis连接
	if redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warning("Redis连接测试失败: %v，将不使用Redis缓存", err)
			redisClient = nil
		}
	}

	container := &ServiceContainer{
		db:     db,
		config: cfg,
		redis:  redisClient,
	}
	if err := container.initializeServices(); err != nil {
		return nil, err
	}
	return container, nil
}

// initializeServices 初始化所有服务
func (c *ServiceContainer) initializeServices() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	kb, err := knowledge.LoadEmbedded()
	if err != nil {
		return err
	}
	c.knowledgeBase = kb

	// 初始化基础服务
	c.jwtService = services.NewJWTService(c.config)
	if c.redis != nil {
		c.redisService = services.NewRedisServiceWithClient(c.redis)
	}

	// 天气和限流服务
	c.weatherService = services.NewWeatherService(c.config, c.redisService)
	c.rateLimitService = services.NewRateLimitService(c.redisService, c.config)
	c.weatherContext = weather.NewContext(c.weatherService, c.config.WeatherTimeout)

	// AI服务，未配置时跳过
	ctx := context.Background()
	if c.completion, err = services.NewCompletionService(ctx, c.config); err != nil {
		logger.Warning("AI补全服务初始化失败: %v，仅使用知识库回答", err)
		c.completion = nil
	}
	if c.moderation, err = services.NewModerationService(ctx, c.config); err != nil {
		logger.Warning("远程审核服务初始化失败: %v，仅使用本地审核", err)
		c.moderation = nil
	}

	var remote safety.Classifier
	if c.moderation != nil {
		remote = c.moderation
	}
	c.gate = safety.NewGate(remote, c.config.ModerationTimeout)

	policy := services.AdjustmentPolicy(c.config)
	opts := []advisor.Option{
		advisor.WithRateLimiter(c.rateLimitService),
		advisor.WithThresholds(policy.Thresholds()),
		advisor.WithCompletionPolicy(resilience.DefaultPolicy(c.config.CompletionTimeout)),
	}
	if c.completion != nil {
		opts = append(opts, advisor.WithCompleter(c.completion))
	}
	c.orchestrator = advisor.NewOrchestrator(c.knowledgeBase, c.weatherContext, c.gate, opts...)

	// 初始化业务服务
	c.plantService = services.NewPlantService(c.db, c.config)
	c.reminderService = services.NewReminderService(c.db, c.config, c.weatherContext)

	logger.Info("服务初始化完成: redis=%t, completion=%t, remote_moderation=%t",
		c.redisService != nil, c.completion != nil, c.moderation != nil)
	return nil
}

// GetService 获取指定名称的服务
func (c *ServiceContainer) GetService(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch name {
	case "config":
		return c.config
	case "db":
		return c.db
	case "jwt":
		return c.jwtService
	case "redis":
		return c.redisService
	case "weather":
		return c.weatherService
	case "rate_limit":
		return c.rateLimitService
	case "knowledge":
		return c.knowledgeBase
	case "advisor":
		return c.orchestrator
	case "plant":
		return c.plantService
	case "reminder":
		return c.reminderService
	default:
		return nil
	}
}

// GetDB 获取数据库连接
func (c *ServiceContainer) GetDB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// HasRedis Redis是否可用
func (c *ServiceContainer) HasRedis() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.redisService != nil
}
