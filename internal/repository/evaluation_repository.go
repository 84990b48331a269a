package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-intent/internal/model"
)

// evaluationRepository 评估结果仓库
type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository 创建评估结果仓库
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

// Create 保存评估结果
func (r *evaluationRepository) Create(ctx context.Context, result *model.EvaluationResult) error {
	rec := model.NewEvaluationRecord(result)
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return err
	}
	result.ID = rec.ID
	return nil
}

// GetByID 根据ID获取评估结果
func (r *evaluationRepository) GetByID(ctx context.Context, id string) (*model.EvaluationResult, error) {
	var rec model.EvaluationRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, translate(err, "evaluation")
	}
	result := rec.Result
	result.ID = rec.ID
	return &result, nil
}

// ListByWorkspace 按时间倒序列出 workspace 的评估结果
func (r *evaluationRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.EvaluationResult, error) {
	var recs []*model.EvaluationRecord
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("timestamp DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	results := make([]*model.EvaluationResult, len(recs))
	for i, rec := range recs {
		result := rec.Result
		result.ID = rec.ID
		results[i] = &result
	}
	return results, nil
}
