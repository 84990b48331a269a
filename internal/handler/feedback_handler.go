package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-intent/internal/middleware"
	"github.com/ashwinyue/next-intent/internal/model"
	"github.com/ashwinyue/next-intent/internal/service"
	"github.com/ashwinyue/next-intent/internal/service/feedback"
)

// FeedbackHandler 反馈处理器
type FeedbackHandler struct {
	svc *service.Services
}

// NewFeedbackHandler 创建反馈处理器
func NewFeedbackHandler(svc *service.Services) *FeedbackHandler {
	return &FeedbackHandler{svc: svc}
}

// Submit 提交反馈
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req feedback.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	rec, err := h.svc.Feedback.Submit(c.Request.Context(), middleware.Actor(c), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, rec)
}

// ListMine 列出当前用户的反馈
func (h *FeedbackHandler) ListMine(c *gin.Context) {
	res, err := h.svc.Feedback.ListForUser(c.Request.Context(), middleware.Actor(c), listFilter(c))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, res)
}

// ListAll 列出全部反馈
func (h *FeedbackHandler) ListAll(c *gin.Context) {
	res, err := h.svc.Feedback.ListAll(c.Request.Context(), middleware.Actor(c), listFilter(c))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, res)
}

// Review 审核反馈
func (h *FeedbackHandler) Review(c *gin.Context) {
	var req feedback.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	rec, err := h.svc.Feedback.Review(c.Request.Context(), middleware.Actor(c), c.Param("feedbackId"), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, rec)
}

// Retrain 标记反馈已应用并合并进训练数据
func (h *FeedbackHandler) Retrain(c *gin.Context) {
	rec, err := h.svc.Feedback.MarkRetrained(c.Request.Context(), middleware.Actor(c), c.Param("feedbackId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, rec)
}

// Stats 反馈统计
func (h *FeedbackHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Feedback.Stats(c.Request.Context(), c.Query("workspaceId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, stats)
}

// Suggestions 基于历史纠正的意图建议
func (h *FeedbackHandler) Suggestions(c *gin.Context) {
	res, err := h.svc.Feedback.SuggestIntents(c.Request.Context(), c.Param("text"), c.Query("workspaceId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, res)
}

func listFilter(c *gin.Context) feedback.ListFilter {
	return feedback.ListFilter{
		WorkspaceID: c.Query("workspaceId"),
		Status:      model.FeedbackStatus(c.Query("status")),
		Type:        model.FeedbackType(c.Query("feedbackType")),
		Page:        queryInt(c, "page", 1),
		Limit:       queryInt(c, "limit", 10),
	}
}
