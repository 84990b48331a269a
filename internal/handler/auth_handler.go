package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-intent/internal/middleware"
	"github.com/ashwinyue/next-intent/internal/service"
	"github.com/ashwinyue/next-intent/internal/service/auth"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	svc *service.Services
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(svc *service.Services) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register 用户注册
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid parameters: "+err.Error())
		return
	}

	user, err := h.svc.Auth.Register(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, user)
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid parameters: "+err.Error())
		return
	}

	resp, err := h.svc.Auth.Login(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, resp)
}

// Profile 当前用户信息
func (h *AuthHandler) Profile(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		NotFound(c, "user not found")
		return
	}
	Success(c, user)
}

// ChangePassword 修改密码
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"oldPassword" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid parameters")
		return
	}

	actor := middleware.Actor(c)
	if err := h.svc.Auth.ChangePassword(c.Request.Context(), actor.UserID, req.OldPassword, req.NewPassword); err != nil {
		Error(c, err)
		return
	}

	Success(c, nil)
}

// ApproveUser 批准用户
func (h *AuthHandler) ApproveUser(c *gin.Context) {
	user, err := h.svc.Auth.Approve(c.Request.Context(), middleware.Actor(c), c.Param("userId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, user)
}
