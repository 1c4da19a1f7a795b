package controllers

import (
	"github.com/gin-gonic/gin"

	"plantcare-http-service/internal/app/middleware"
	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/domain/services"
	"plantcare-http-service/internal/domain/services/container"
	"plantcare-http-service/internal/error/code"
	"plantcare-http-service/internal/error/response"
)

// PlantController 处理植物相关的请求
type PlantController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewPlantController 创建一个新的植物控制器
func NewPlantController(ctx *gin.Context, container *container.ServiceContainer) *PlantController {
	return &PlantController{
		Ctx:       ctx,
		Container: container,
	}
}

// CreatePlant 创建植物；携带令牌时以令牌中的用户为准
// @Summary      创建植物
// @Tags         Plant
// @Accept       json
// @Produce      json
// @Param        request body services.CreatePlantInput true "植物信息"
// @Success      200  {object}  models.Plant
// @Failure      400  {object}  response.Response
// @Router       /plants [post]
func (c *PlantController) CreatePlant() {
	var input services.CreatePlantInput
	if err := c.Ctx.ShouldBindJSON(&input); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "请求参数错误: "+err.Error(), nil)
		return
	}
	if userID := middleware.UserID(c.Ctx); userID != "" {
		input.UserID = userID
	}

	plantService := c.Container.GetService("plant").(services.InterfacePlantService)
	plant, err := plantService.CreatePlant(c.Ctx.Request.Context(), input)
	if err != nil {
		response.FromError(c.Ctx, err, code.ErrPlantNotFound)
		return
	}
	response.Success(c.Ctx, plant)
}

// ListPlants 获取当前用户的所有植物
func (c *PlantController) ListPlants() {
	plantService := c.Container.GetService("plant").(services.InterfacePlantService)
	plants, err := plantService.ListUserPlants(c.Ctx.Request.Context(), middleware.UserID(c.Ctx))
	if err != nil {
		response.FromError(c.Ctx, err, code.ErrPlantNotFound)
		return
	}
	response.Success(c.Ctx, gin.H{"plants": plants})
}

// GetPlant 获取植物详情
func (c *PlantController) GetPlant() {
	plantService := c.Container.GetService("plant").(services.InterfacePlantService)
	plant, err := plantService.GetPlant(c.Ctx.Request.Context(), c.Ctx.Param("id"))
	if err != nil {
		response.FromError(c.Ctx, err, code.ErrPlantNotFound)
		return
	}
	response.Success(c.Ctx, plant)
}

// ListReminders 分页获取植物的提醒
func (c *PlantController) ListReminders() {
	var query models.PaginationQuery
	if err := c.Ctx.ShouldBindQuery(&query); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "分页参数错误", nil)
		return
	}

	plantService := c.Container.GetService("plant").(services.InterfacePlantService)
	reminders, page, err := plantService.ListPlantReminders(c.Ctx.Request.Context(), c.Ctx.Param("id"), query)
	if err != nil {
		response.FromError(c.Ctx, err, code.ErrPlantNotFound)
		return
	}
	response.Success(c.Ctx, gin.H{
		"pagination": page,
		"data":       reminders,
	})
}

// CreateReminder 为植物创建提醒
func (c *PlantController) CreateReminder() {
	var input services.CreateReminderInput
	if err := c.Ctx.ShouldBindJSON(&input); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "请求参数错误: "+err.Error(), nil)
		return
	}

	reminderService := c.Container.GetService("reminder").(services.InterfaceReminderService)
	reminder, err := reminderService.CreateReminder(c.Ctx.Request.Context(), c.Ctx.Param("id"), input)
	if err != nil {
		response.FromError(c.Ctx, err, code.ErrPlantNotFound)
		return
	}
	response.Success(c.Ctx, reminder)
}

// HandlePlantFunc 返回处理植物请求的函数
func HandlePlantFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewPlantController(ctx, container)

		switch method {
		case "createPlant":
			controller.CreatePlant()
		case "listPlants":
			controller.ListPlants()
		case "getPlant":
			controller.GetPlant()
		case "listReminders":
			controller.ListReminders()
		case "createReminder":
			controller.CreateReminder()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}
