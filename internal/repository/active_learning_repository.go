package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-intent/internal/model"
)

// queueOrder 与 model.QueueLess 保持一致
const queueOrder = "CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3 ELSE 4 END ASC, uncertainty_score DESC, created_at DESC"

// activeLearningRepository 主动学习样本仓库
type activeLearningRepository struct {
	db *gorm.DB
}

// NewActiveLearningRepository 创建主动学习样本仓库
func NewActiveLearningRepository(db *gorm.DB) ActiveLearningRepository {
	return &activeLearningRepository{db: db}
}

// Create 创建样本
func (r *activeLearningRepository) Create(ctx context.Context, s *model.ActiveLearningSample) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// GetByID 根据ID获取样本
func (r *activeLearningRepository) GetByID(ctx context.Context, id string) (*model.ActiveLearningSample, error) {
	var s model.ActiveLearningSample
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, translate(err, "sample")
	}
	return &s, nil
}

// FindOpen 查找未关闭的同文本样本
func (r *activeLearningRepository) FindOpen(ctx context.Context, workspaceID, text string) (*model.ActiveLearningSample, error) {
	var s model.ActiveLearningSample
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND text = ? AND status IN ?", workspaceID, text,
			[]model.SampleStatus{model.SampleStatusPending, model.SampleStatusReviewed}).
		Order("created_at ASC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List 按队列顺序列出样本
func (r *activeLearningRepository) List(ctx context.Context, f model.SampleFilter) ([]*model.ActiveLearningSample, int64, error) {
	var samples []*model.ActiveLearningSample
	var total int64

	query := r.filter(ctx, f)
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		query = query.Where("priority = ?", f.Priority)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(queueOrder).Offset(f.Offset)
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}
	err := query.Find(&samples).Error
	return samples, total, err
}

// Update 更新样本
func (r *activeLearningRepository) Update(ctx context.Context, s *model.ActiveLearningSample) error {
	return r.db.WithContext(ctx).Save(s).Error
}

// Delete 删除样本
func (r *activeLearningRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.ActiveLearningSample{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("sample")
	}
	return nil
}

type groupCount struct {
	Key   string
	Count int64
}

// Stats 按状态与优先级分组计数
func (r *activeLearningRepository) Stats(ctx context.Context, f model.SampleFilter) (map[model.SampleStatus]int64, map[model.SamplePriority]int64, error) {
	var byStatus, byPriority []groupCount

	if err := r.filter(ctx, f).Select("status AS key, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, nil, err
	}
	if err := r.filter(ctx, f).Select("priority AS key, COUNT(*) AS count").Group("priority").Scan(&byPriority).Error; err != nil {
		return nil, nil, err
	}

	statuses := make(map[model.SampleStatus]int64, len(byStatus))
	for _, g := range byStatus {
		statuses[model.SampleStatus(g.Key)] = g.Count
	}
	priorities := make(map[model.SamplePriority]int64, len(byPriority))
	for _, g := range byPriority {
		priorities[model.SamplePriority(g.Key)] = g.Count
	}
	return statuses, priorities, nil
}

func (r *activeLearningRepository) filter(ctx context.Context, f model.SampleFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&model.ActiveLearningSample{})
	if f.WorkspaceID != "" {
		query = query.Where("workspace_id = ?", f.WorkspaceID)
	}
	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}
	return query
}
