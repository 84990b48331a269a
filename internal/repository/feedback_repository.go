package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-intent/internal/model"
)

// feedbackRepository 反馈仓库
type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository 创建反馈仓库
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

// Create 创建反馈
func (r *feedbackRepository) Create(ctx context.Context, f *model.FeedbackRecord) error {
	return r.db.WithContext(ctx).Create(f).Error
}

// GetByID 根据ID获取反馈
func (r *feedbackRepository) GetByID(ctx context.Context, id string) (*model.FeedbackRecord, error) {
	var f model.FeedbackRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, translate(err, "feedback")
	}
	return &f, nil
}

// List 列出反馈（支持筛选和分页）
func (r *feedbackRepository) List(ctx context.Context, f model.FeedbackFilter) ([]*model.FeedbackRecord, int64, error) {
	var records []*model.FeedbackRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&model.FeedbackRecord{})
	if f.WorkspaceID != "" {
		query = query.Where("workspace_id = ?", f.WorkspaceID)
	}
	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		query = query.Where("feedback_type = ?", f.Type)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC").Offset(f.Offset)
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}
	err := query.Find(&records).Error
	return records, total, err
}

// Update 更新反馈
func (r *feedbackRepository) Update(ctx context.Context, f *model.FeedbackRecord) error {
	return r.db.WithContext(ctx).Save(f).Error
}

// CountByStatus 按状态计数
func (r *feedbackRepository) CountByStatus(ctx context.Context, workspaceID string) (map[model.FeedbackStatus]int64, error) {
	var rows []groupCount
	query := r.db.WithContext(ctx).Model(&model.FeedbackRecord{})
	if workspaceID != "" {
		query = query.Where("workspace_id = ?", workspaceID)
	}
	if err := query.Select("status AS key, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[model.FeedbackStatus]int64, len(rows))
	for _, row := range rows {
		counts[model.FeedbackStatus(row.Key)] = row.Count
	}
	return counts, nil
}

// SearchCorrections 子串匹配已审核/已应用的反馈
func (r *feedbackRepository) SearchCorrections(ctx context.Context, workspaceID, text string, limit int) ([]*model.FeedbackRecord, error) {
	var records []*model.FeedbackRecord
	query := r.db.WithContext(ctx).
		Where("workspace_id = ? AND status IN ?", workspaceID,
			[]model.FeedbackStatus{model.FeedbackStatusReviewed, model.FeedbackStatusApplied}).
		Where("LOWER(original_text) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(text))+"%").
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
