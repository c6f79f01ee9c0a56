// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"consultor-ia-go/pkg/log"
	"consultor-ia-go/pkg/token"

	"github.com/gin-gonic/gin"
)

const (
	// ContextClaims 是 gin 上下文中 JWT claims 的键
	ContextClaims = "claims"
	// ContextSessionID 是认证后确定的会话 ID 的键
	ContextSessionID = "sessionID"
	// SessionHeader 在关闭认证时由客户端携带会话 ID
	SessionHeader = "X-Session-ID"
)

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 认证通过后会话固定为 "user_<id>"，同一用户的所有请求共享一个会话历史。
func AuthMiddleware(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "请求未包含有效的授权头", "data": nil})
			return
		}

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			log.Warnf("[AuthMiddleware] token 校验失败: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效或已过期的 token", "data": nil})
			return
		}

		c.Set(ContextClaims, claims)
		c.Set(ContextSessionID, fmt.Sprintf("user_%d", claims.UserID))
		c.Next()
	}
}

// bearerToken 从 Authorization 头读取 token；websocket 握手无法设置请求头，允许使用 ?token= 参数。
func bearerToken(c *gin.Context) (string, bool) {
	const bearerPrefix = "Bearer "
	if h := c.GetHeader("Authorization"); h != "" {
		if !strings.HasPrefix(h, bearerPrefix) {
			return "", false
		}
		return strings.TrimPrefix(h, bearerPrefix), true
	}
	if t := c.Query("token"); t != "" {
		return t, true
	}
	return "", false
}

// SessionID 返回认证确定的会话 ID；关闭认证时依次读取请求头与查询参数，都为空则返回 fallback。
func SessionID(c *gin.Context, fallback string) string {
	if v, ok := c.Get(ContextSessionID); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	if id := strings.TrimSpace(c.GetHeader(SessionHeader)); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.Query("session_id")); id != "" {
		return id
	}
	return fallback
}
