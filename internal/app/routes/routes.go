package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"plantcare-http-service/internal/app/controllers"
	"plantcare-http-service/internal/app/middleware"
	"plantcare-http-service/internal/domain/services"
	"plantcare-http-service/internal/domain/services/container"
)

// SetupRouter 初始化并返回配置好的路由
func SetupRouter(serviceContainer *container.ServiceContainer) *gin.Engine {
	// 初始化 Gin
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// 添加 CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// 注册路由
	registerRoutes(r, serviceContainer)
	return r
}

// registerRoutes 配置所有API路由
func registerRoutes(
	r *gin.Engine,
	container *container.ServiceContainer,
) {
	// API 路由根路径
	api := r.Group("/api")
	// 注册公共路由
	registerPublicRoutes(api, container)
	// 注册业务路由
	registerCareRoutes(api, container)
}

// registerPublicRoutes 注册公共路由
func registerPublicRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 健康检查路由
	api.GET("/ping", controllers.HandleHealthFunc(container, "ping"))

	// 健康状态路由组
	healthGroup := api.Group("/health")
	healthGroup.GET("/status", controllers.HandleHealthFunc(container, "status"))
	healthGroup.GET("/cache-stats", controllers.HandleHealthFunc(container, "cacheStats"))

	// 知识库路由 - 结果只依赖参数，使用响应缓存
	knowledgeGroup := api.Group("")
	knowledgeGroup.Use(middleware.IPRateLimiter(10, 20)) // 每秒10个请求，最多突发20个
	tipsCache := middleware.NewResponseCache("tips", 10*time.Minute, "plant", "context", "topic", "question")
	presetsCache := middleware.NewResponseCache("presets", 30*time.Minute, "region", "city", "lat", "lon")
	knowledgeGroup.GET("/tips", tipsCache.Handler(), controllers.HandleKnowledgeFunc(container, "getTips"))
	knowledgeGroup.GET("/presets", presetsCache.Handler(), controllers.HandleKnowledgeFunc(container, "getPresets"))
}

// registerCareRoutes 注册问答、植物和提醒路由；携带令牌时按用户识别调用者
func registerCareRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	jwtService := container.GetService("jwt").(services.InterfaceJWTService)

	care := api.Group("")
	care.Use(middleware.Identify(jwtService))

	// 问答路由 - 配额由问答服务按调用者检查，这里只挡住突发流量
	care.POST("/answers", middleware.CallerRateLimiter(2, 10), controllers.HandleAnswerFunc(container, "askQuestion"))

	// 通用限流中间件 - 每秒30个请求，最多突发50个请求
	care.Use(middleware.CallerRateLimiter(30, 50))

	// 植物路由
	plantGroup := care.Group("/plants")
	plantGroup.GET("", middleware.RequireUser(), controllers.HandlePlantFunc(container, "listPlants"))
	plantGroup.POST("", controllers.HandlePlantFunc(container, "createPlant"))
	plantGroup.GET("/:id", controllers.HandlePlantFunc(container, "getPlant"))
	plantGroup.GET("/:id/reminders", controllers.HandlePlantFunc(container, "listReminders"))
	plantGroup.POST("/:id/reminders", controllers.HandlePlantFunc(container, "createReminder"))

	// 提醒路由
	reminderGroup := care.Group("/reminders")
	// 按用户汇总的视图必须登录；静态路径优先于 /:id 匹配
	userReminders := reminderGroup.Group("", middleware.RequireUser())
	userReminders.GET("/due", controllers.HandleReminderFunc(container, "dueReminders"))
	userReminders.GET("/upcoming", controllers.HandleReminderFunc(container, "upcomingReminders"))
	userReminders.GET("/stats", controllers.HandleReminderFunc(container, "reminderStats"))
	reminderGroup.GET("/:id", controllers.HandleReminderFunc(container, "getReminder"))
	reminderGroup.POST("/:id/adjustments", controllers.HandleReminderFunc(container, "computeAdjustment"))
	reminderGroup.GET("/:id/adjustments/pending", controllers.HandleReminderFunc(container, "pendingAdjustment"))
	reminderGroup.POST("/:id/complete", controllers.HandleReminderFunc(container, "completeReminder"))
	reminderGroup.POST("/:id/snooze", controllers.HandleReminderFunc(container, "snoozeReminder"))
	reminderGroup.POST("/:id/clear-weather", controllers.HandleReminderFunc(container, "clearWeather"))

	// 调整建议路由
	adjustmentGroup := care.Group("/adjustments")
	adjustmentGroup.POST("/:id/accept", controllers.HandleReminderFunc(container, "acceptAdjustment"))
	adjustmentGroup.POST("/:id/dismiss", controllers.HandleReminderFunc(container, "dismissAdjustment"))
}
