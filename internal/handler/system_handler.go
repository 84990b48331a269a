package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-intent/internal/config"
)

// Pinger 存储健康检查
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler 系统处理器
type SystemHandler struct {
	cfg    *config.Config
	pinger Pinger
}

// NewSystemHandler 创建系统处理器，pinger 为 nil 表示使用内存存储
func NewSystemHandler(cfg *config.Config, pinger Pinger) *SystemHandler {
	return &SystemHandler{cfg: cfg, pinger: pinger}
}

// Health 健康检查
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	db := "memory"
	status := http.StatusOK
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			db = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			db = "ok"
		}
	}

	c.JSON(status, gin.H{
		"status":  http.StatusText(status),
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
		"db":      db,
	})
}

// Info 系统信息
// GET /api/v1/system/info
func (h *SystemHandler) Info(c *gin.Context) {
	Success(c, gin.H{
		"name":        h.cfg.App.Name,
		"version":     h.cfg.App.Version,
		"environment": h.cfg.App.Environment,
		"classifier": gin.H{
			"uncertaintyThreshold": h.cfg.Classifier.UncertaintyThreshold,
			"confidenceFloor":      h.cfg.Classifier.ConfidenceFloor,
		},
	})
}
