package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-intent/internal/middleware"
	"github.com/ashwinyue/next-intent/internal/model"
	"github.com/ashwinyue/next-intent/internal/service"
	"github.com/ashwinyue/next-intent/internal/service/activelearning"
)

// ActiveLearningHandler 主动学习处理器
type ActiveLearningHandler struct {
	svc *service.Services
}

// NewActiveLearningHandler 创建主动学习处理器
func NewActiveLearningHandler(svc *service.Services) *ActiveLearningHandler {
	return &ActiveLearningHandler{svc: svc}
}

// AddUncertain 手动加入不确定样本
func (h *ActiveLearningHandler) AddUncertain(c *gin.Context) {
	var req activelearning.AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	sample, created, err := h.svc.ActiveLearning.Add(c.Request.Context(), middleware.Actor(c), &req)
	if err != nil {
		Error(c, err)
		return
	}
	if !created {
		Success(c, gin.H{"sample": sample, "created": false})
		return
	}

	Created(c, gin.H{"sample": sample, "created": true})
}

// Queue 按优先级列出待标注样本
func (h *ActiveLearningHandler) Queue(c *gin.Context) {
	res, err := h.svc.ActiveLearning.List(c.Request.Context(), middleware.Actor(c), activelearning.ListFilter{
		WorkspaceID: c.Query("workspaceId"),
		UserID:      c.Query("userId"),
		Status:      model.SampleStatus(c.Query("status")),
		Priority:    model.SamplePriority(c.Query("priority")),
		Page:        queryInt(c, "page", 1),
		Limit:       queryInt(c, "limit", 10),
	})
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, res)
}

// GetSample 获取样本
func (h *ActiveLearningHandler) GetSample(c *gin.Context) {
	sample, err := h.svc.ActiveLearning.Get(c.Request.Context(), c.Param("sampleId"))
	if err != nil {
		Error(c, err)
		return
	}
	if !middleware.Actor(c).CanAccess(sample.UserID) {
		NotFound(c, "sample not found")
		return
	}

	Success(c, sample)
}

// Annotate 标注样本
func (h *ActiveLearningHandler) Annotate(c *gin.Context) {
	var req activelearning.AnnotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	sample, err := h.svc.ActiveLearning.Annotate(c.Request.Context(), middleware.Actor(c), c.Param("sampleId"), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, sample)
}

// Review 将样本标记为已复核
func (h *ActiveLearningHandler) Review(c *gin.Context) {
	sample, err := h.svc.ActiveLearning.MarkReviewed(c.Request.Context(), middleware.Actor(c), c.Param("sampleId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, sample)
}

// Retrain 标记样本已用于重训
func (h *ActiveLearningHandler) Retrain(c *gin.Context) {
	sample, err := h.svc.ActiveLearning.MarkRetrained(c.Request.Context(), middleware.Actor(c), c.Param("sampleId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, sample)
}

// BatchAnnotate 批量标注
func (h *ActiveLearningHandler) BatchAnnotate(c *gin.Context) {
	var req struct {
		Annotations []activelearning.Annotation `json:"annotations" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "annotations is required")
		return
	}

	results, err := h.svc.ActiveLearning.BatchAnnotate(c.Request.Context(), middleware.Actor(c), req.Annotations)
	if err != nil {
		Error(c, err)
		return
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	Success(c, gin.H{
		"results":    results,
		"successful": succeeded,
		"failed":     len(results) - succeeded,
	})
}

// Stats 队列统计
func (h *ActiveLearningHandler) Stats(c *gin.Context) {
	stats, err := h.svc.ActiveLearning.Stats(c.Request.Context(), middleware.Actor(c), c.Query("workspaceId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, stats)
}

// Delete 删除样本
func (h *ActiveLearningHandler) Delete(c *gin.Context) {
	if err := h.svc.ActiveLearning.Delete(c.Request.Context(), middleware.Actor(c), c.Param("sampleId")); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}
