// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"content-gen-api/pkg/logger"
	"content-gen-api/pkg/utils"
)

// AuthConfig 认证配置
type AuthConfig struct {
	Secret string
	Issuer string
	// SkipPaths 跳过认证的路径前缀
	SkipPaths []string
}

// DefaultSkipPaths 默认跳过认证的路径
var DefaultSkipPaths = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
}

// Auth JWT 认证中间件，user_id 声明即调用方身份
func Auth(cfg AuthConfig) gin.HandlerFunc {
	jwtManager := utils.NewJWTManager(cfg.Secret, cfg.Issuer)

	return func(c *gin.Context) {
		for _, path := range cfg.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, path) {
				c.Next()
				return
			}
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}
		token := utils.BearerToken(header)
		if token == "" {
			abortUnauthorized(c, "invalid authorization format")
			return
		}

		claims, err := jwtManager.ParseToken(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, utils.ErrExpiredToken) {
				msg = "token expired"
			}
			abortUnauthorized(c, msg)
			return
		}

		c.Set("user_id", claims.UserID)
		ctx := logger.WithContext(c.Request.Context(), logger.UserIDKey, claims.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// abortUnauthorized 终止请求并返回 401
func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":     http.StatusUnauthorized,
		"message":  msg,
		"trace_id": c.GetString("trace_id"),
	})
}
