// Package repository 定义数据访问接口
// 每个接口都有 gorm 实现与内存实现，服务层只依赖接口
package repository

import (
	"context"

	"github.com/ashwinyue/next-intent/internal/model"
)

// ========== DatasetRepository 接口 ==========

// DatasetRepository 数据集数据访问接口
type DatasetRepository interface {
	Create(ctx context.Context, ds *model.Dataset) error
	GetByID(ctx context.Context, id string) (*model.Dataset, error)
	// GetActiveByWorkspace 返回 workspace 最新创建的生效数据集（含样本）
	GetActiveByWorkspace(ctx context.Context, workspaceID string) (*model.Dataset, error)
	List(ctx context.Context, workspaceID string, offset, limit int) ([]*model.Dataset, int64, error)
	// AppendExample 追加样本并保存 ds 上已重算的汇总字段
	AppendExample(ctx context.Context, ds *model.Dataset, ex *model.TrainingExample) error
	Delete(ctx context.Context, id string) error
}

// ========== SnapshotRepository 接口 ==========

// SnapshotRepository 模型版本数据访问接口
type SnapshotRepository interface {
	// CreateActive 原子地停用 workspace 其他版本并插入新的生效版本
	CreateActive(ctx context.Context, s *model.ModelSnapshot) error
	GetByID(ctx context.Context, id string) (*model.ModelSnapshot, error)
	// GetActive 无生效版本时返回 (nil, nil)
	GetActive(ctx context.Context, workspaceID string) (*model.ModelSnapshot, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.ModelSnapshot, error)
	ListAll(ctx context.Context) ([]*model.ModelSnapshot, error)
	// MaxVersionNumber 包含已删除版本
	MaxVersionNumber(ctx context.Context, workspaceID string) (int, error)
	UpdateMetadata(ctx context.Context, s *model.ModelSnapshot) error
	Delete(ctx context.Context, id string) error
}

// ========== EvaluationRepository 接口 ==========

// EvaluationRepository 评估结果数据访问接口
type EvaluationRepository interface {
	Create(ctx context.Context, r *model.EvaluationResult) error
	GetByID(ctx context.Context, id string) (*model.EvaluationResult, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.EvaluationResult, error)
}

// ========== ActiveLearningRepository 接口 ==========

// ActiveLearningRepository 主动学习样本数据访问接口
type ActiveLearningRepository interface {
	Create(ctx context.Context, s *model.ActiveLearningSample) error
	GetByID(ctx context.Context, id string) (*model.ActiveLearningSample, error)
	// FindOpen 查找 pending/reviewed 状态的同文本样本，不存在时返回 (nil, nil)
	FindOpen(ctx context.Context, workspaceID, text string) (*model.ActiveLearningSample, error)
	List(ctx context.Context, f model.SampleFilter) ([]*model.ActiveLearningSample, int64, error)
	Update(ctx context.Context, s *model.ActiveLearningSample) error
	Delete(ctx context.Context, id string) error
	// Stats 按状态和优先级计数，忽略 f 中的 Status/Priority/分页
	Stats(ctx context.Context, f model.SampleFilter) (map[model.SampleStatus]int64, map[model.SamplePriority]int64, error)
}

// ========== FeedbackRepository 接口 ==========

// FeedbackRepository 反馈数据访问接口
type FeedbackRepository interface {
	Create(ctx context.Context, f *model.FeedbackRecord) error
	GetByID(ctx context.Context, id string) (*model.FeedbackRecord, error)
	List(ctx context.Context, f model.FeedbackFilter) ([]*model.FeedbackRecord, int64, error)
	Update(ctx context.Context, f *model.FeedbackRecord) error
	CountByStatus(ctx context.Context, workspaceID string) (map[model.FeedbackStatus]int64, error)
	// SearchCorrections 返回原文包含 text（不区分大小写）的 reviewed/applied 反馈，按创建时间倒序
	SearchCorrections(ctx context.Context, workspaceID, text string, limit int) ([]*model.FeedbackRecord, error)
}

// ========== UserRepository 接口 ==========

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
}

// 确保实现了接口
var (
	_ DatasetRepository        = (*datasetRepository)(nil)
	_ SnapshotRepository       = (*snapshotRepository)(nil)
	_ EvaluationRepository     = (*evaluationRepository)(nil)
	_ ActiveLearningRepository = (*activeLearningRepository)(nil)
	_ FeedbackRepository       = (*feedbackRepository)(nil)
	_ UserRepository           = (*userRepository)(nil)

	_ DatasetRepository        = (*memoryDatasetRepository)(nil)
	_ SnapshotRepository       = (*memorySnapshotRepository)(nil)
	_ EvaluationRepository     = (*memoryEvaluationRepository)(nil)
	_ ActiveLearningRepository = (*memoryActiveLearningRepository)(nil)
	_ FeedbackRepository       = (*memoryFeedbackRepository)(nil)
	_ UserRepository           = (*memoryUserRepository)(nil)
)
