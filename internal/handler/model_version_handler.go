package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-intent/internal/middleware"
	"github.com/ashwinyue/next-intent/internal/service"
	"github.com/ashwinyue/next-intent/internal/service/registry"
)

// ModelVersionHandler 模型版本处理器
type ModelVersionHandler struct {
	svc *service.Services
}

// NewModelVersionHandler 创建模型版本处理器
func NewModelVersionHandler(svc *service.Services) *ModelVersionHandler {
	return &ModelVersionHandler{svc: svc}
}

// ListVersions 列出 workspace 的版本
func (h *ModelVersionHandler) ListVersions(c *gin.Context) {
	versions, err := h.svc.Registry.ListVersions(c.Request.Context(), c.Param("workspaceId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, versions)
}

// ActiveVersion 获取 workspace 的生效版本
func (h *ModelVersionHandler) ActiveVersion(c *gin.Context) {
	v, err := h.svc.Registry.GetActiveVersion(c.Request.Context(), c.Param("workspaceId"))
	if err != nil {
		Error(c, err)
		return
	}
	if v == nil {
		NotFound(c, "No active model version found for this workspace")
		return
	}

	Success(c, v)
}

// GetVersion 获取版本
func (h *ModelVersionHandler) GetVersion(c *gin.Context) {
	v, err := h.svc.Registry.GetVersion(c.Request.Context(), c.Param("versionId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, v)
}

// CreateVersion 为 workspace 当前加载的模型创建版本
func (h *ModelVersionHandler) CreateVersion(c *gin.Context) {
	var req struct {
		WorkspaceID string   `json:"workspaceId" binding:"required"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "workspaceId is required")
		return
	}

	ctx := c.Request.Context()
	m, err := h.svc.Classifier.ModelInfo(ctx, req.WorkspaceID)
	if err != nil {
		Error(c, err)
		return
	}
	v, err := h.svc.Registry.CreateFromModel(ctx, m, req.Description, req.Tags, middleware.Actor(c).UserID, nil)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, v)
}

// UpdateVersion 更新版本描述与标签
func (h *ModelVersionHandler) UpdateVersion(c *gin.Context) {
	var req registry.MetadataUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	v, err := h.svc.Registry.UpdateMetadata(c.Request.Context(), c.Param("versionId"), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, v)
}

// CompareVersions 对比多个版本
func (h *ModelVersionHandler) CompareVersions(c *gin.Context) {
	var req struct {
		VersionIDs []string `json:"versionIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "versionIds is required")
		return
	}

	cmp, err := h.svc.Registry.CompareVersions(c.Request.Context(), req.VersionIDs)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, cmp)
}

// DeleteVersion 删除版本
func (h *ModelVersionHandler) DeleteVersion(c *gin.Context) {
	if err := h.svc.Registry.DeleteVersion(c.Request.Context(), c.Param("versionId")); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}

// ExportVersion 下载版本
func (h *ModelVersionHandler) ExportVersion(c *gin.Context) {
	id := c.Param("versionId")
	doc, err := h.svc.Registry.Export(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	attachment(c, fmt.Sprintf("model-version-%s.json", id), doc)
}

// Statistics 版本统计
func (h *ModelVersionHandler) Statistics(c *gin.Context) {
	stats, err := h.svc.Registry.Statistics(c.Request.Context(), c.Query("workspaceId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, stats)
}
