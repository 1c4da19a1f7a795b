package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"plantcare-http-service/internal/app/middleware"
	"plantcare-http-service/internal/domain/services"
	"plantcare-http-service/internal/domain/services/container"
	"plantcare-http-service/internal/error/apperror"
	"plantcare-http-service/internal/error/code"
	"plantcare-http-service/internal/error/response"
)

// ReminderController 处理提醒和天气调整建议相关的请求
type ReminderController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewReminderController 创建一个新的提醒控制器
func NewReminderController(ctx *gin.Context, container *container.ServiceContainer) *ReminderController {
	return &ReminderController{
		Ctx:       ctx,
		Container: container,
	}
}

// SnoozeRequest 延后请求
type SnoozeRequest struct {
	Days int `json:"days" binding:"required"`
}

func (c *ReminderController) service() services.InterfaceReminderService {
	return c.Container.GetService("reminder").(services.InterfaceReminderService)
}

// GetReminder 获取提醒详情
func (c *ReminderController) GetReminder() {
	reminder, err := c.service().GetReminder(c.Ctx.Request.Context(), c.Ctx.Param("id"))
	if err != nil {
		response.FromError(c.Ctx, err, code.ErrReminderNotFound)
		return
	}
	response.Success(c.Ctx, reminder)
}

// ComputeAdjustment 根据天气计算调整建议，不需要调整时 data 为 null
// @Summary      计算天气调整建议
// @Tags         Reminder
// @Produce      json
// @Param        id path string true "提醒ID"
// @Success      200  {object}  models.Adjustment
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /reminders/{id}/adjustments [post]
func (c *ReminderController) ComputeAdjustment() {
	adj, err := c.service().ComputeAdjustment(c.Ctx.Request.Context(), c.Ctx.Param("id"))
	if err != nil {
		if apperror.IsInvariant(err) {
			response.FailWithMessage(c.Ctx, code.ErrAdjustmentConflict, err.Error(), nil)
			return
		}
		response.FromError(c.Ctx, err, code.ErrReminderNotFound)
		return
	}
	response.Success(c.Ctx, gin.H{"adjustment": adj})
}

// PendingAdjustment 获取待处理的调整建议
func (c *ReminderController) PendingAdjustment() {
	adj, err := c.service().PendingAdjustment(c.Ctx.Request.Context(), c.Ctx.Param("id"))
	if err != nil {
		response.FromError(c.Ctx, err, code.ErrReminderNotFound)
		return
	}
	response.Success(c.Ctx, gin.H{"adjustment": adj})
}

// AcceptAdjustment 接受调整建议
func (c *ReminderController) AcceptAdjustment() {
	adj, reminder, err := c.service().AcceptAdjustment(c.Ctx.Request.Context(), c.Ctx.Param("id"))
	if err != nil {
		response.FromError(c.Ctx, err, code.ErrAdjustmentNotFound)
		return
	}
	response.Success(c.Ctx, gin.H{"adjustment": adj, "reminder": reminder})
}

// DismissAdjustment 忽略调整建议
func (c *ReminderController) DismissAdjustment() {
	adj, err := c.service().DismissAdjustment(c.Ctx.Request.Context(), c.Ctx.Param("id"))
	if err != nil {
		response.FromError(c.Ctx, err, code.ErrAdjustmentNotFound)
		return
	}
	response.Success(c.Ctx, gin.H{"adjustment": adj})
}

// CompleteReminder 完成本周期
func (c *ReminderController) CompleteReminder() {
	reminder, err := c.service().CompleteReminder(c.Ctx.Request.Context(), c.Ctx.Param("id"))
	if err != nil {
		response.FromError(c.Ctx, err, code.ErrReminderNotFound)
		return
	}
	response.Success(c.Ctx, reminder)
}

// SnoozeReminder 延后提醒
func (c *ReminderController) SnoozeReminder() {
	var req SnoozeRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.Fail(c.Ctx, code.ErrInvalidSnooze, nil)
		return
	}

	reminder, err := c.service().SnoozeReminder(c.Ctx.Request.Context(), c.Ctx.Param("id"), req.Days)
	if err != nil {
		if apperror.IsValidation(err) {
			response.FailWithMessage(c.Ctx, code.ErrInvalidSnooze, err.Error(), nil)
			return
		}
		response.FromError(c.Ctx, err, code.ErrReminderNotFound)
		return
	}
	response.Success(c.Ctx, reminder)
}

// ClearWeatherAdjustment 撤销已接受的天气调整，延后天数保留
func (c *ReminderController) ClearWeatherAdjustment() {
	reminder, err := c.service().ClearWeatherAdjustment(c.Ctx.Request.Context(), c.Ctx.Param("id"))
	if err != nil {
		response.FromError(c.Ctx, err, code.ErrReminderNotFound)
		return
	}
	response.Success(c.Ctx, reminder)
}

// DueReminders 获取当前用户今天及之前到期的提醒
// @Summary      到期提醒
// @Tags         Reminder
// @Produce      json
// @Success      200  {array}   models.Reminder
// @Failure      401  {object}  response.Response
// @Router       /reminders/due [get]
func (c *ReminderController) DueReminders() {
	reminders, err := c.service().DueReminders(c.Ctx.Request.Context(), middleware.UserID(c.Ctx))
	if err != nil {
		response.FromError(c.Ctx, err, code.ErrReminderNotFound)
		return
	}
	response.Success(c.Ctx, gin.H{"reminders": reminders})
}

// UpcomingReminders 获取当前用户未来若干天内到期的提醒，days 默认7
func (c *ReminderController) UpcomingReminders() {
	days := 7
	if raw := c.Ctx.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.FailWithMessage(c.Ctx, code.ErrBind, "days 必须为整数", nil)
			return
		}
		days = n
	}

	reminders, err := c.service().UpcomingReminders(c.Ctx.Request.Context(), middleware.UserID(c.Ctx), days)
	if err != nil {
		response.FromError(c.Ctx, err, code.ErrReminderNotFound)
		return
	}
	response.Success(c.Ctx, gin.H{"days": days, "reminders": reminders})
}

// ReminderStats 当前用户的提醒统计
func (c *ReminderController) ReminderStats() {
	stats, err := c.service().ReminderStats(c.Ctx.Request.Context(), middleware.UserID(c.Ctx))
	if err != nil {
		response.FromError(c.Ctx, err, code.ErrReminderNotFound)
		return
	}
	response.Success(c.Ctx, stats)
}

// HandleReminderFunc 返回处理提醒请求的函数
func HandleReminderFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewReminderController(ctx, container)

		switch method {
		case "getReminder":
			controller.GetReminder()
		case "computeAdjustment":
			controller.ComputeAdjustment()
		case "pendingAdjustment":
			controller.PendingAdjustment()
		case "acceptAdjustment":
			controller.AcceptAdjustment()
		case "dismissAdjustment":
			controller.DismissAdjustment()
		case "completeReminder":
			controller.CompleteReminder()
		case "snoozeReminder":
			controller.SnoozeReminder()
		case "clearWeather":
			controller.ClearWeatherAdjustment()
		case "dueReminders":
			controller.DueReminders()
		case "upcomingReminders":
			controller.UpcomingReminders()
		case "reminderStats":
			controller.ReminderStats()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}
