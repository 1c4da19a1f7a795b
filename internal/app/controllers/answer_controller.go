package controllers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"plantcare-http-service/internal/app/middleware"
	"plantcare-http-service/internal/domain/advisor"
	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/domain/services/container"
	"plantcare-http-service/internal/error/apperror"
	"plantcare-http-service/internal/error/code"
	"plantcare-http-service/internal/error/response"
	"plantcare-http-service/internal/infrastructure/logger"
)

// AnswerController 处理养护问答请求
type AnswerController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewAnswerController 创建问答控制器
func NewAnswerController(ctx *gin.Context, container *container.ServiceContainer) *AnswerController {
	return &AnswerController{
		Ctx:       ctx,
		Container: container,
	}
}

// AskQuestion 回答养护问题
// @Summary      养护问答
// @Description  根据植物、位置和问题返回养护建议，天气和AI不可用时退化为知识库回答
// @Tags         Answer
// @Accept       json
// @Produce      json
// @Param        request body models.AnswerRequest true "问题"
// @Success      200  {object}  models.AnswerResponse
// @Failure      400  {object}  response.Response
// @Failure      429  {object}  response.Response
// @Router       /answers [post]
func (c *AnswerController) AskQuestion() {
	var req models.AnswerRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.FailWithMessage(c.Ctx, code.ErrBind, "请求参数错误: "+err.Error(), nil)
		return
	}
	req.CallerKey = middleware.CallerKey(c.Ctx)

	orchestrator := c.Container.GetService("advisor").(*advisor.Orchestrator)
	resp, err := orchestrator.Answer(c.Ctx.Request.Context(), req)
	if err != nil {
		var validation *apperror.ValidationError
		switch {
		case errors.As(err, &validation):
			response.FailWithMessage(c.Ctx, code.ErrQuestionInvalid, validation.Error(), gin.H{"field": validation.Field})
		default:
			if _, ok := apperror.AsRateLimited(err); ok {
				response.FromError(c.Ctx, err, code.ErrRecordNotFound)
				return
			}
			logger.Error("问答失败: %v", err)
			response.Fail(c.Ctx, code.ErrAdvisorUnavailable, nil)
		}
		return
	}

	response.Success(c.Ctx, resp)
}

// HandleAnswerFunc 返回处理问答请求的函数
func HandleAnswerFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewAnswerController(ctx, container)

		switch method {
		case "askQuestion":
			controller.AskQuestion()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}
