package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-intent/internal/model"
)

const (
	userKey   = "user"
	userIDKey = "user_id"
)

// TokenValidator 校验访问令牌
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.User, error)
}

// RequireAuth 要求有效认证的中间件
// 必须提供有效的 JWT token，否则返回 401
func RequireAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			deny(c, http.StatusUnauthorized, "missing Authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			deny(c, http.StatusUnauthorized, "invalid Authorization header format")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		user, err := v.ValidateToken(c.Request.Context(), token)
		if err != nil {
			deny(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		c.Set(userKey, user)
		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

// RequireApproval 要求账户已被批准，需在 RequireAuth 之后使用
func RequireApproval() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetCurrentUser(c)
		if !ok {
			deny(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if !user.IsApproved && user.Role != model.RoleAdmin {
			deny(c, http.StatusForbidden, "account pending approval")
			return
		}
		c.Next()
	}
}

// RequireAdmin 要求管理员角色，需在 RequireAuth 之后使用
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetCurrentUser(c)
		if !ok {
			deny(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if user.Role != model.RoleAdmin {
			deny(c, http.StatusForbidden, "admin role required")
			return
		}
		c.Next()
	}
}

func deny(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "msg": msg})
}

// GetCurrentUser 从上下文获取当前用户
func GetCurrentUser(c *gin.Context) (*model.User, bool) {
	user, exists := c.Get(userKey)
	if !exists {
		return nil, false
	}
	u, ok := user.(*model.User)
	return u, ok
}

// GetUserID 从上下文获取当前用户ID
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok
}

// Actor 当前请求的操作者，未认证时为空身份
func Actor(c *gin.Context) model.Actor {
	if u, ok := GetCurrentUser(c); ok {
		return u.Actor()
	}
	return model.Actor{}
}
