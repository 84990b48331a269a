package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-intent/internal/middleware"
	"github.com/ashwinyue/next-intent/internal/model"
	"github.com/ashwinyue/next-intent/internal/service"
	"github.com/ashwinyue/next-intent/internal/service/dataset"
	"github.com/ashwinyue/next-intent/internal/service/evaluation"
	"github.com/ashwinyue/next-intent/internal/service/registry"
)

// evaluatedSampleSize 评估版本中保留的测试样本数
const evaluatedSampleSize = 5

// EvaluationHandler 评估处理器
type EvaluationHandler struct {
	svc *service.Services
}

// NewEvaluationHandler 创建评估处理器
func NewEvaluationHandler(svc *service.Services) *EvaluationHandler {
	return &EvaluationHandler{svc: svc}
}

// Validate 校验测试数据，不执行评估
func (h *EvaluationHandler) Validate(c *gin.Context) {
	records, err := readUpload(c, "testData")
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, h.svc.Evaluation.Validate(records))
}

// Evaluate 在上传的测试数据上评估模型，并创建带评估结果的模型版本
func (h *EvaluationHandler) Evaluate(c *gin.Context) {
	workspaceID := strings.TrimSpace(formOrQuery(c, "workspaceId"))
	if workspaceID == "" {
		BadRequest(c, "workspaceId is required")
		return
	}
	records, err := readUpload(c, "testData")
	if err != nil {
		Error(c, err)
		return
	}
	if res := h.svc.Evaluation.Validate(records); !res.IsValid {
		InvalidData(c, "Invalid test data format", res)
		return
	}

	ctx := c.Request.Context()
	result, err := h.svc.Evaluation.EvaluateRecords(ctx, records, workspaceID, formOrQuery(c, "modelId"))
	if err != nil {
		Error(c, err)
		return
	}

	testData, _ := dataset.Normalize(records)
	description := formOrQuery(c, "description")
	if description == "" {
		description = fmt.Sprintf("Model evaluation on %d test samples", len(testData))
	}
	sample := testData
	if len(sample) > evaluatedSampleSize {
		sample = sample[:evaluatedSampleSize]
	}

	version, err := h.svc.Registry.CreateVersion(ctx, workspaceID, &registry.ModelData{
		ModelID:            result.ModelID,
		Intents:            distinctIntents(testData),
		TrainingExamples:   len(testData),
		TrainingDataSample: sample,
		Description:        description,
		Tags:               []string{"evaluated"},
		CreatedBy:          middleware.Actor(c).UserID,
	}, result)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{
		"evaluation": gin.H{
			"id":              result.ID,
			"metrics":         result.Metrics,
			"confusionMatrix": result.ConfusionMatrix,
			"testDataSize":    result.TestDataSize,
		},
		"modelVersion": gin.H{
			"id":            version.ID,
			"versionNumber": version.VersionNumber,
			"createdAt":     version.CreatedAt,
		},
	})
}

// EvaluateHoldout 在训练数据的留出集上评估
func (h *EvaluationHandler) EvaluateHoldout(c *gin.Context) {
	var req struct {
		WorkspaceID  string  `json:"workspaceId" binding:"required"`
		HoldoutRatio float64 `json:"holdoutRatio"`
		Seed         *uint64 `json:"seed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "workspaceId is required")
		return
	}
	seed := uint64(time.Now().UnixNano())
	if req.Seed != nil {
		seed = *req.Seed
	}

	result, err := h.svc.Evaluation.EvaluateHoldout(c.Request.Context(), req.WorkspaceID, req.HoldoutRatio, seed)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{
		"evaluation": gin.H{
			"id":              result.ID,
			"metrics":         result.Metrics,
			"confusionMatrix": result.ConfusionMatrix,
			"testDataSize":    result.TestDataSize,
			"holdoutRatio":    result.HoldoutRatio,
			"seed":            seed,
		},
	})
}

// GetResult 获取评估结果
func (h *EvaluationHandler) GetResult(c *gin.Context) {
	result, err := h.svc.Evaluation.Get(c.Request.Context(), c.Param("evaluationId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, result)
}

// ListWorkspace 列出 workspace 的评估摘要
func (h *EvaluationHandler) ListWorkspace(c *gin.Context) {
	list, err := h.svc.Evaluation.ListByWorkspace(c.Request.Context(), c.Param("workspaceId"))
	if err != nil {
		Error(c, err)
		return
	}

	summaries := make([]evaluation.Summary, 0, len(list))
	for _, r := range list {
		summaries = append(summaries, evaluation.Summarize(r))
	}
	Success(c, summaries)
}

// Compare 对比多个评估
func (h *EvaluationHandler) Compare(c *gin.Context) {
	var req struct {
		EvaluationIDs []string `json:"evaluationIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "evaluationIds is required")
		return
	}

	cmp, err := h.svc.Evaluation.Compare(c.Request.Context(), req.EvaluationIDs)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, cmp)
}

// Export 下载评估结果
func (h *EvaluationHandler) Export(c *gin.Context) {
	id := c.Param("evaluationId")
	doc, err := h.svc.Evaluation.Export(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}

	attachment(c, fmt.Sprintf("evaluation-%s.json", id), doc)
}

func distinctIntents(examples []model.TrainingExample) []string {
	seen := make(map[string]struct{}, len(examples))
	intents := make([]string, 0)
	for _, ex := range examples {
		if _, ok := seen[ex.Intent]; ok {
			continue
		}
		seen[ex.Intent] = struct{}{}
		intents = append(intents, ex.Intent)
	}
	return intents
}

// attachment 以附件形式返回 JSON 文档
func attachment(c *gin.Context, filename string, doc interface{}) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.IndentedJSON(http.StatusOK, doc)
}
