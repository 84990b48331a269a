package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-intent/internal/model"
)

// snapshotRepository 模型版本仓库
type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository 创建模型版本仓库
func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

// CreateActive 在同一事务内停用旧版本并插入新版本
func (r *snapshotRepository) CreateActive(ctx context.Context, s *model.ModelSnapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.ModelSnapshot{}).
			Where("workspace_id = ? AND status = ?", s.WorkspaceID, model.SnapshotStatusActive).
			Update("status", model.SnapshotStatusInactive).Error
		if err != nil {
			return err
		}
		s.Status = model.SnapshotStatusActive
		return tx.Create(s).Error
	})
}

// GetByID 根据ID获取版本
func (r *snapshotRepository) GetByID(ctx context.Context, id string) (*model.ModelSnapshot, error) {
	var s model.ModelSnapshot
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, translate(err, "model version")
	}
	return &s, nil
}

// GetActive 获取生效版本
func (r *snapshotRepository) GetActive(ctx context.Context, workspaceID string) (*model.ModelSnapshot, error) {
	var s model.ModelSnapshot
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND status = ?", workspaceID, model.SnapshotStatusActive).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByWorkspace 按版本号倒序列出
func (r *snapshotRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.ModelSnapshot, error) {
	var list []*model.ModelSnapshot
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("version_number DESC").
		Find(&list).Error
	return list, err
}

// ListAll 列出全部版本
func (r *snapshotRepository) ListAll(ctx context.Context) ([]*model.ModelSnapshot, error) {
	var list []*model.ModelSnapshot
	err := r.db.WithContext(ctx).Order("workspace_id ASC, version_number DESC").Find(&list).Error
	return list, err
}

// MaxVersionNumber 历史最大版本号，包含软删除的行
func (r *snapshotRepository) MaxVersionNumber(ctx context.Context, workspaceID string) (int, error) {
	var n int
	err := r.db.WithContext(ctx).Unscoped().
		Model(&model.ModelSnapshot{}).
		Where("workspace_id = ?", workspaceID).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&n).Error
	return n, err
}

// UpdateMetadata 只更新描述与标签
func (r *snapshotRepository) UpdateMetadata(ctx context.Context, s *model.ModelSnapshot) error {
	res := r.db.WithContext(ctx).Model(&model.ModelSnapshot{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"description": s.Description,
			"tags":        s.Tags,
			"updated_at":  s.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("model version")
	}
	return nil
}

// Delete 软删除版本
func (r *snapshotRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.ModelSnapshot{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("model version")
	}
	return nil
}
