package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-intent/internal/middleware"
	"github.com/ashwinyue/next-intent/internal/service"
)

// TrainingHandler 训练与预测处理器
type TrainingHandler struct {
	svc *service.Services
}

// NewTrainingHandler 创建训练处理器
func NewTrainingHandler(svc *service.Services) *TrainingHandler {
	return &TrainingHandler{svc: svc}
}

// UploadAndTrain 上传训练数据并训练模型
func (h *TrainingHandler) UploadAndTrain(c *gin.Context) {
	ds, ok := createFromUpload(c, h.svc, "trainingData")
	if !ok {
		return
	}

	result, err := h.svc.Classifier.Train(c.Request.Context(), ds)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{
		"message": "Model trained successfully",
		"model":   result,
		"dataset": gin.H{
			"id":            ds.ID,
			"totalSamples":  ds.TotalSamples,
			"uniqueIntents": ds.UniqueIntents,
			"intentCounts":  ds.IntentCounts,
		},
	})
}

// Retrain 用 workspace 当前的数据集重新训练
func (h *TrainingHandler) Retrain(c *gin.Context) {
	var req struct {
		WorkspaceID string `json:"workspaceId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "workspaceId is required")
		return
	}

	ds, err := h.svc.Dataset.GetActive(c.Request.Context(), req.WorkspaceID)
	if err != nil {
		Error(c, err)
		return
	}
	result, err := h.svc.Classifier.Train(c.Request.Context(), ds)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, result)
}

// Predict 预测意图，不确定的预测会进入主动学习队列
func (h *TrainingHandler) Predict(c *gin.Context) {
	var req struct {
		Text        string `json:"text" binding:"required"`
		WorkspaceID string `json:"workspaceId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "text and workspaceId are required")
		return
	}

	pred, err := h.svc.Classifier.Predict(c.Request.Context(), req.Text, req.WorkspaceID, middleware.Actor(c).UserID)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, pred)
}

// ModelInfo workspace 的模型信息
func (h *TrainingHandler) ModelInfo(c *gin.Context) {
	m, err := h.svc.Classifier.ModelInfo(c.Request.Context(), c.Param("workspaceId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, m)
}

// ListModels 列出已加载的模型
func (h *TrainingHandler) ListModels(c *gin.Context) {
	Success(c, h.svc.Classifier.ListModels())
}

// DeleteModel 卸载 workspace 的模型
func (h *TrainingHandler) DeleteModel(c *gin.Context) {
	workspaceID := c.Param("workspaceId")
	if !h.svc.Classifier.DeleteModel(c.Request.Context(), workspaceID) {
		NotFound(c, "No trained model found for this workspace")
		return
	}

	Success(c, gin.H{"workspaceId": workspaceID})
}
