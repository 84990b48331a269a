package dataset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ashwinyue/next-intent/internal/apperr"
	"github.com/ashwinyue/next-intent/internal/lock"
	"github.com/ashwinyue/next-intent/internal/metrics"
	"github.com/ashwinyue/next-intent/internal/model"
	"github.com/ashwinyue/next-intent/internal/repository"
	"github.com/ashwinyue/next-intent/internal/validation"
)

const maxReportedErrors = 5

// Invalidator 数据集变更后使 workspace 的分类模型失效
type Invalidator interface {
	Invalidate(ctx context.Context, workspaceID string)
}

// Service 数据集服务
type Service struct {
	repo        repository.DatasetRepository
	locks       *lock.Keyed
	invalidator Invalidator
	logger      *zap.Logger
}

// NewService 创建数据集服务
func NewService(repo repository.DatasetRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		locks:  lock.NewKeyed(),
		logger: logger.Named("dataset"),
	}
}

// SetInvalidator 设置模型失效回调，分类服务依赖数据集服务，只能创建后再注入
func (s *Service) SetInvalidator(inv Invalidator) {
	s.invalidator = inv
}

func (s *Service) invalidate(ctx context.Context, workspaceID string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, workspaceID)
	}
}

// CreateRequest 创建数据集请求
type CreateRequest struct {
	Name        string      `json:"name" validate:"max=255"`
	Description string      `json:"description" validate:"max=2000"`
	WorkspaceID string      `json:"workspaceId" validate:"notblank,max=255"`
	Tags        []string    `json:"tags"`
	Records     []RawRecord `json:"data"`
	OwnerID     string      `json:"-"`
}

// AppendResult 追加样本的结果
type AppendResult struct {
	DatasetID     string    `json:"datasetId"`
	Text          string    `json:"text"`
	Intent        string    `json:"intent"`
	Merged        bool      `json:"merged"` // false 表示样本已存在
	TotalExamples int       `json:"totalExamples"`
	UniqueIntents int       `json:"uniqueIntents"`
	MergedAt      time.Time `json:"mergedAt"`
}

// Create 规范化记录并创建生效数据集
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*model.Dataset, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	examples, errs := Normalize(req.Records)
	if len(errs) > 0 {
		return nil, invalidRecords(errs)
	}
	if len(examples) == 0 {
		return nil, apperr.Validation("dataset must contain at least one example")
	}

	workspaceID := strings.TrimSpace(req.WorkspaceID)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = fmt.Sprintf("%s training data %s", workspaceID, time.Now().Format("2006-01-02 15:04"))
	}

	ds := &model.Dataset{
		Name:         name,
		Description:  req.Description,
		OwnerID:      req.OwnerID,
		WorkspaceID:  workspaceID,
		Examples:     examples,
		Tags:         req.Tags,
		Version:      "1.0",
		IsActive:     true,
		LastModified: time.Now(),
	}
	ds.Recount()

	unlock := s.locks.Lock(workspaceID)
	defer unlock()

	if err := s.repo.Create(ctx, ds); err != nil {
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}
	s.invalidate(ctx, workspaceID)

	s.logger.Info("dataset created",
		zap.String("dataset_id", ds.ID),
		zap.String("workspace_id", workspaceID),
		zap.Int("examples", ds.TotalSamples),
		zap.Int("intents", len(ds.UniqueIntents)),
	)
	return ds, nil
}

// ImportJSON 从 JSON 负载创建数据集
func (s *Service) ImportJSON(ctx context.Context, req *CreateRequest, raw []byte) (*model.Dataset, error) {
	records, err := ParseRecords(raw)
	if err != nil {
		return nil, err
	}
	req.Records = records
	return s.Create(ctx, req)
}

// Get 获取数据集
func (s *Service) Get(ctx context.Context, id string) (*model.Dataset, error) {
	ds, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return ds, nil
}

// GetActive 获取 workspace 的生效数据集
func (s *Service) GetActive(ctx context.Context, workspaceID string) (*model.Dataset, error) {
	ds, err := s.repo.GetActiveByWorkspace(ctx, workspaceID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.New(apperr.ErrNoTrainingData, "no training data for workspace "+workspaceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return ds, nil
}

// List 列出数据集
func (s *Service) List(ctx context.Context, workspaceID string, page, size int) ([]*model.Dataset, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	datasets, total, err := s.repo.List(ctx, workspaceID, (page-1)*size, size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list datasets: %w", err)
	}
	return datasets, total, nil
}

// Delete 删除数据集
func (s *Service) Delete(ctx context.Context, actor model.Actor, id string) error {
	ds, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanAccess(ds.OwnerID) {
		return apperr.PermissionDenied("not allowed to delete dataset %s", id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	s.invalidate(ctx, ds.WorkspaceID)

	s.logger.Info("dataset deleted", zap.String("dataset_id", id), zap.String("workspace_id", ds.WorkspaceID))
	return nil
}

// AppendExample 将 (text, intent) 追加到 workspace 的生效数据集
// 同一 workspace 的追加串行执行，已存在的样本不会重复写入
func (s *Service) AppendExample(ctx context.Context, workspaceID, text, intent, annotatedBy string) (*AppendResult, error) {
	text = strings.TrimSpace(text)
	intent = strings.TrimSpace(intent)
	if text == "" || intent == "" {
		return nil, apperr.Validation("text and intent are required")
	}

	unlock := s.locks.Lock(workspaceID)
	defer unlock()

	ds, err := s.GetActive(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	result := &AppendResult{
		DatasetID: ds.ID,
		Text:      text,
		Intent:    intent,
		MergedAt:  time.Now(),
	}

	if ds.HasExample(text, intent) {
		result.TotalExamples = ds.TotalSamples
		result.UniqueIntents = len(ds.UniqueIntents)
		metrics.DatasetMerges.WithLabelValues("duplicate").Inc()
		return result, nil
	}

	now := time.Now()
	ex := model.TrainingExample{
		Position:    len(ds.Examples),
		Text:        text,
		Intent:      intent,
		Confidence:  1.0,
		IsAnnotated: true,
		AnnotatedBy: annotatedBy,
		AnnotatedAt: &now,
	}
	ds.Examples = append(ds.Examples, ex)
	ds.Recount()

	if err := s.repo.AppendExample(ctx, ds, &ex); err != nil {
		return nil, fmt.Errorf("failed to append example: %w", err)
	}

	result.Merged = true
	result.TotalExamples = ds.TotalSamples
	result.UniqueIntents = len(ds.UniqueIntents)
	metrics.DatasetMerges.WithLabelValues("merged").Inc()

	s.logger.Info("example merged",
		zap.String("workspace_id", workspaceID),
		zap.String("dataset_id", ds.ID),
		zap.String("intent", intent),
		zap.Int("total_examples", ds.TotalSamples),
	)
	return result, nil
}

func invalidRecords(errs []ItemError) error {
	msgs := make([]string, 0, maxReportedErrors)
	for i, e := range errs {
		if i == maxReportedErrors {
			msgs = append(msgs, fmt.Sprintf("and %d more", len(errs)-maxReportedErrors))
			break
		}
		msgs = append(msgs, e.Error())
	}
	return apperr.Validation("invalid training data: %s", strings.Join(msgs, "; "))
}
