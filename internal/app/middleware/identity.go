package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"plantcare-http-service/internal/domain/services"
	"plantcare-http-service/internal/error/code"
	"plantcare-http-service/internal/error/response"
)

const (
	ctxUserID    = "userID"
	ctxCallerKey = "callerKey"
)

// extractToken 从授权头中提取token
func extractToken(authHeader string) string {
	// 检查并移除 "Bearer " 前缀
	if len(authHeader) > 7 && strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[7:]
	}
	return authHeader
}

// Identify 识别调用者：携带有效令牌时按用户计，否则按IP计。
// 携带了令牌但无效时直接拒绝。
func Identify(jwtService services.InterfaceJWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Set(ctxCallerKey, "ip:"+c.ClientIP())
			c.Next()
			return
		}

		claims, err := jwtService.ExtractClaims(extractToken(authHeader))
		if err != nil {
			response.FailWithMessage(c, code.ErrTokenInvalid, "Invalid token: "+err.Error(), nil)
			c.Abort()
			return
		}

		// 存储调用者到上下文
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxCallerKey, "user:"+claims.UserID)
		c.Next()
	}
}

// RequireUser 必须携带有效令牌
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			response.FailWithMessage(c, code.ErrTokenInvalid, "Authorization header is required", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID 当前用户ID，匿名时为空
func UserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// CallerKey 配额键，未经过 Identify 时退回到IP
func CallerKey(c *gin.Context) string {
	if key := c.GetString(ctxCallerKey); key != "" {
		return key
	}
	return "ip:" + c.ClientIP()
}
