// Package registry 管理 workspace 的模型版本
// 每个 workspace 的版本号单调递增且不复用，任意时刻最多一个生效版本
package registry

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
	"github.com/ashwinyue/next-intent/internal/service/classifier"
)

// sampleSize 版本中保留的训练样本数
const sampleSize = 10

var (
	// ErrVersionNotFound 模型版本不存在
	ErrVersionNotFound = apperr.New(apperr.ErrNotFound, "model version not found")
	// ErrInsufficientVersions 对比需要至少两个版本
	ErrInsufficientVersions = apperr.New(apperr.ErrInsufficientData, "at least 2 versions are required for comparison")
)

// Service 模型版本服务
type Service struct {
	repo   repository.SnapshotRepository
	locks  *lock.Keyed
	logger *zap.Logger
}

// NewService 创建模型版本服务
func NewService(repo repository.SnapshotRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		locks:  lock.NewKeyed(),
		logger: logger.Named("registry"),
	}
}

// ModelData 创建版本所需的模型信息
type ModelData struct {
	ModelID            string                  `json:"modelId"`
	Intents            []string                `json:"intents"`
	TrainingExamples   int                     `json:"trainingExamples"`
	TrainingDataSample []model.TrainingExample `json:"trainingDataSample"`
	Description        string                  `json:"description"`
	Tags               []string                `json:"tags"`
	CreatedBy          string                  `json:"createdBy"`
}

// CreateVersion 创建新版本并设为生效，其他版本同时停用
func (s *Service) CreateVersion(ctx context.Context, workspaceID string, data *ModelData, eval *model.EvaluationResult) (*model.ModelSnapshot, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return nil, apperr.Validation("workspaceId is required")
	}
	if data == nil {
		data = &ModelData{}
	}

	unlock := s.locks.Lock(workspaceID)
	defer unlock()

	last, err := s.repo.MaxVersionNumber(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to read version number: %w", err)
	}
	number := last + 1

	description := data.Description
	if description == "" {
		description = fmt.Sprintf("Model version %d", number)
	}
	createdBy := data.CreatedBy
	if createdBy == "" {
		createdBy = "system"
	}

	snap := &model.ModelSnapshot{
		WorkspaceID:          workspaceID,
		VersionNumber:        number,
		ModelID:              data.ModelID,
		Status:               model.SnapshotStatusActive,
		Intents:              append(model.StringList{}, data.Intents...),
		TrainingExampleCount: data.TrainingExamples,
		TrainingDataSample:   append(model.ExampleList{}, data.TrainingDataSample...),
		EvaluationResult:     eval,
		Description:          description,
		Tags:                 append(model.StringList{}, data.Tags...),
		CreatedBy:            createdBy,
	}
	if err := s.repo.CreateActive(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to create model version: %w", err)
	}

	metrics.ModelVersionsCreated.Inc()
	s.logger.Info("model version created",
		zap.String("workspace_id", workspaceID),
		zap.String("version_id", snap.ID),
		zap.Int("version_number", number),
		zap.Bool("evaluated", eval != nil),
	)
	return snap, nil
}

// CreateFromModel 为当前加载的分类模型创建版本
func (s *Service) CreateFromModel(ctx context.Context, m *classifier.Model, description string, tags []string, createdBy string, eval *model.EvaluationResult) (*model.ModelSnapshot, error) {
	examples := m.Examples()
	if len(examples) > sampleSize {
		examples = examples[:sampleSize]
	}
	return s.CreateVersion(ctx, m.WorkspaceID, &ModelData{
		ModelID:            m.ID,
		Intents:            m.Intents,
		TrainingExamples:   m.TrainingExamples,
		TrainingDataSample: examples,
		Description:        description,
		Tags:               tags,
		CreatedBy:          createdBy,
	}, eval)
}

// GetVersion 获取版本
func (s *Service) GetVersion(ctx context.Context, id string) (*model.ModelSnapshot, error) {
	snap, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model version: %w", err)
	}
	return snap, nil
}

// GetActiveVersion 获取生效版本，没有时返回 nil
func (s *Service) GetActiveVersion(ctx context.Context, workspaceID string) (*model.ModelSnapshot, error) {
	snap, err := s.repo.GetActive(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active version: %w", err)
	}
	return snap, nil
}

// ListVersions 按版本号倒序列出
func (s *Service) ListVersions(ctx context.Context, workspaceID string) ([]*model.ModelSnapshot, error) {
	list, err := s.repo.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list model versions: %w", err)
	}
	return list, nil
}

// MetadataUpdate 可修改的版本元数据，nil 字段保持不变
type MetadataUpdate struct {
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
}

// UpdateMetadata 更新描述与标签
func (s *Service) UpdateMetadata(ctx context.Context, id string, upd *MetadataUpdate) (*model.ModelSnapshot, error) {
	snap, err := s.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd != nil {
		if upd.Description != nil {
			snap.Description = *upd.Description
		}
		if upd.Tags != nil {
			snap.Tags = append(model.StringList{}, upd.Tags...)
		}
	}
	snap.UpdatedAt = time.Now()

	if err := s.repo.UpdateMetadata(ctx, snap); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to update model version: %w", err)
	}
	return snap, nil
}

// DeleteVersion 删除版本
// 删除生效版本后 workspace 没有生效版本，不会自动启用其他版本
func (s *Service) DeleteVersion(ctx context.Context, id string) error {
	snap, err := s.GetVersion(ctx, id)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(snap.WorkspaceID)
	defer unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return ErrVersionNotFound
		}
		return fmt.Errorf("failed to delete model version: %w", err)
	}
	s.logger.Info("model version deleted",
		zap.String("workspace_id", snap.WorkspaceID),
		zap.String("version_id", id),
		zap.Bool("was_active", snap.IsActive()),
	)
	return nil
}
