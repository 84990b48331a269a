package handler

import (
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-intent/internal/apperr"
	"github.com/ashwinyue/next-intent/internal/service"
	"github.com/ashwinyue/next-intent/internal/service/dataset"
)

// maxUploadSize 上传文件大小上限
const maxUploadSize = 10 << 20

// Handlers 处理器集合
type Handlers struct {
	Auth           *AuthHandler
	Dataset        *DatasetHandler
	Training       *TrainingHandler
	Evaluation     *EvaluationHandler
	ModelVersion   *ModelVersionHandler
	ActiveLearning *ActiveLearningHandler
	Feedback       *FeedbackHandler
	System         *SystemHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services, pinger Pinger) *Handlers {
	return &Handlers{
		Auth:           NewAuthHandler(svc),
		Dataset:        NewDatasetHandler(svc),
		Training:       NewTrainingHandler(svc),
		Evaluation:     NewEvaluationHandler(svc),
		ModelVersion:   NewModelVersionHandler(svc),
		ActiveLearning: NewActiveLearningHandler(svc),
		Feedback:       NewFeedbackHandler(svc),
		System:         NewSystemHandler(svc.Config, pinger),
	}
}

// readUpload 读取上传的 JSON 数据
// multipart 请求读取 fileField 文件，其余字段从表单取；否则整个请求体为 JSON
func readUpload(c *gin.Context, fileField string) ([]dataset.RawRecord, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile(fileField)
		if err != nil {
			return nil, apperr.Validation("no file uploaded in field %q", fileField)
		}
		if fh.Size > maxUploadSize {
			return nil, apperr.Validation("file exceeds %d bytes", maxUploadSize)
		}
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".json") {
			return nil, apperr.Validation("only JSON files are allowed")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrValidation, "failed to read upload", err)
		}
		defer f.Close()
		raw, err := io.ReadAll(io.LimitReader(f, maxUploadSize))
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrValidation, "failed to read upload", err)
		}
		return dataset.ParseRecords(raw)
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadSize))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "failed to read request body", err)
	}
	return dataset.ParseRecords(raw)
}

// formOrQuery 依次从表单与查询参数取值
func formOrQuery(c *gin.Context, key string) string {
	if v := c.PostForm(key); v != "" {
		return v
	}
	return c.Query(key)
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}
