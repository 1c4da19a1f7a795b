package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"plantcare-http-service/internal/error/apperror"
	"plantcare-http-service/internal/error/code"
	"plantcare-http-service/internal/infrastructure/logger"
)

// Response 定义统一的响应格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    code.ErrSuccess,
		Message: code.GetMessage(code.ErrSuccess),
		Data:    data,
	})
}

// Fail 失败响应
func Fail(c *gin.Context, errorCode int, data interface{}) {
	httpStatus := code.GetStatus(errorCode)
	message := code.GetMessage(errorCode)

	c.JSON(httpStatus, Response{
		Code:    errorCode,
		Message: message,
		Data:    data,
	})
}

// FailWithMessage 失败响应（自定义消息）
func FailWithMessage(c *gin.Context, errorCode int, message string, data interface{}) {
	httpStatus := code.GetStatus(errorCode)

	c.JSON(httpStatus, Response{
		Code:    errorCode,
		Message: message,
		Data:    data,
	})
}

// ParamError 参数错误响应
func ParamError(c *gin.Context, message string) {
	FailWithMessage(c, code.ErrValidation, message, nil)
}

// ServerError 服务器错误响应
func ServerError(c *gin.Context) {
	Fail(c, code.ErrUnknown, nil)
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context) {
	Fail(c, code.ErrTokenInvalid, nil)
}

// FromError 将业务错误映射为统一响应，notFoundCode 为该资源的"不存在"错误码
func FromError(c *gin.Context, err error, notFoundCode int) {
	var validation *apperror.ValidationError
	var invariant *apperror.InvariantViolation

	switch {
	case errors.As(err, &validation):
		FailWithMessage(c, code.ErrValidation, validation.Error(), nil)
	case errors.As(err, &invariant):
		FailWithMessage(c, code.ErrAdjustmentNotPending, invariant.Message, nil)
	case errors.Is(err, apperror.ErrNotFound):
		Fail(c, notFoundCode, nil)
	default:
		if rl, ok := apperror.AsRateLimited(err); ok {
			c.Header("Retry-After", strconv.Itoa(rl.RetryAfterSeconds()))
			Fail(c, code.ErrAskRateLimited, gin.H{"retry_after": rl.RetryAfterSeconds()})
			return
		}
		logger.Error("请求处理失败: %v", err)
		ServerError(c)
	}
}
