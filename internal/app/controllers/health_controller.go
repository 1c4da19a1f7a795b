package controllers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"plantcare-http-service/internal/app/middleware"
	"plantcare-http-service/internal/domain/services"
	"plantcare-http-service/internal/domain/services/container"
	"plantcare-http-service/internal/error/code"
	"plantcare-http-service/internal/error/response"
	"plantcare-http-service/internal/infrastructure/config"
	"plantcare-http-service/internal/infrastructure/database"
	"plantcare-http-service/internal/infrastructure/logger"

	"gorm.io/gorm"
)

// HealthCheckController 健康检查控制器
type HealthCheckController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewHealthCheckController 创建健康检查控制器实例
func NewHealthCheckController(ctx *gin.Context, container *container.ServiceContainer) *HealthCheckController {
	return &HealthCheckController{
		Ctx:       ctx,
		Container: container,
	}
}

// Ping 健康检查端点
func (h *HealthCheckController) Ping() {
	response.Success(h.Ctx, gin.H{
		"status":  "healthy",
		"message": "pong",
	})
}

// Status 依赖组件状态：数据库失败时整体不健康，其余组件只报告是否启用
func (h *HealthCheckController) Status() {
	ctx, cancel := context.WithTimeout(h.Ctx.Request.Context(), 3*time.Second)
	defer cancel()

	cfg := h.Container.GetService("config").(*config.Config)
	components := gin.H{}
	healthy := true

	db := h.Container.GetService("db").(*gorm.DB)
	if err := database.HealthCheck(ctx, db); err != nil {
		logger.Error("数据库健康检查失败: %v", err)
		components["database"] = "down"
		healthy = false
	} else {
		components["database"] = "up"
	}

	if redisService, ok := h.Container.GetService("redis").(services.InterfaceRedisService); ok && redisService != nil {
		if err := redisService.Ping(ctx); err != nil {
			components["redis"] = "down"
		} else {
			components["redis"] = "up"
		}
	} else {
		components["redis"] = "disabled"
	}

	components["weather"] = enabledLabel(cfg.WeatherAPIKey != "")
	components["completion"] = enabledLabel(cfg.CompletionEnabled())
	components["remote_moderation"] = enabledLabel(cfg.ModerationRemote && cfg.CompletionEnabled())

	if !healthy {
		response.FailWithMessage(h.Ctx, code.ErrDatabase, "数据库不可用", gin.H{"status": "unhealthy", "components": components})
		return
	}
	response.Success(h.Ctx, gin.H{"status": "healthy", "components": components})
}

// CacheStats 响应缓存统计
func (h *HealthCheckController) CacheStats() {
	response.Success(h.Ctx, middleware.CacheStats())
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// HandleHealthFunc 返回处理健康检查请求的函数
func HandleHealthFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewHealthCheckController(ctx, container)

		switch method {
		case "ping":
			controller.Ping()
		case "status":
			controller.Status()
		case "cacheStats":
			controller.CacheStats()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}
