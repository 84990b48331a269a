package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-intent/internal/middleware"
	"github.com/ashwinyue/next-intent/internal/model"
	"github.com/ashwinyue/next-intent/internal/service"
	"github.com/ashwinyue/next-intent/internal/service/dataset"
)

// DatasetHandler 数据集处理器
type DatasetHandler struct {
	svc *service.Services
}

// NewDatasetHandler 创建数据集处理器
func NewDatasetHandler(svc *service.Services) *DatasetHandler {
	return &DatasetHandler{svc: svc}
}

// CreateDataset 创建数据集
func (h *DatasetHandler) CreateDataset(c *gin.Context) {
	var req dataset.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if res := dataset.Validate(req.Records); !res.IsValid {
		InvalidData(c, "Invalid training data format", res)
		return
	}
	req.OwnerID = middleware.Actor(c).UserID

	ds, err := h.svc.Dataset.Create(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, ds)
}

// UploadDataset 上传 JSON 文件创建数据集
func (h *DatasetHandler) UploadDataset(c *gin.Context) {
	ds, ok := createFromUpload(c, h.svc, "trainingData")
	if !ok {
		return
	}
	Created(c, ds)
}

// GetDataset 获取数据集
func (h *DatasetHandler) GetDataset(c *gin.Context) {
	ds, err := h.svc.Dataset.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, ds)
}

// ListDatasets 列出数据集
func (h *DatasetHandler) ListDatasets(c *gin.Context) {
	page := queryInt(c, "page", 1)
	size := queryInt(c, "size", 20)

	datasets, total, err := h.svc.Dataset.List(c.Request.Context(), c.Query("workspaceId"), page, size)
	if err != nil {
		Error(c, err)
		return
	}

	SuccessWithPagination(c, datasets, total, page, size)
}

// DeleteDataset 删除数据集
func (h *DatasetHandler) DeleteDataset(c *gin.Context) {
	if err := h.svc.Dataset.Delete(c.Request.Context(), middleware.Actor(c), c.Param("id")); err != nil {
		Error(c, err)
		return
	}

	NoContent(c)
}

// createFromUpload 从上传内容创建数据集，失败时已写出响应
func createFromUpload(c *gin.Context, svc *service.Services, fileField string) (*model.Dataset, bool) {
	workspaceID := strings.TrimSpace(formOrQuery(c, "workspaceId"))
	if workspaceID == "" {
		BadRequest(c, "workspaceId is required")
		return nil, false
	}
	records, err := readUpload(c, fileField)
	if err != nil {
		Error(c, err)
		return nil, false
	}
	if res := dataset.Validate(records); !res.IsValid {
		InvalidData(c, "Invalid training data format", res)
		return nil, false
	}

	ds, err := svc.Dataset.Create(c.Request.Context(), &dataset.CreateRequest{
		Name:        formOrQuery(c, "name"),
		Description: formOrQuery(c, "description"),
		WorkspaceID: workspaceID,
		Records:     records,
		OwnerID:     middleware.Actor(c).UserID,
	})
	if err != nil {
		Error(c, err)
		return nil, false
	}
	return ds, true
}
