package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-intent/internal/model"
)

const exampleBatchSize = 500

// datasetRepository 数据集仓库
type datasetRepository struct {
	db *gorm.DB
}

// NewDatasetRepository 创建数据集仓库
func NewDatasetRepository(db *gorm.DB) DatasetRepository {
	return &datasetRepository{db: db}
}

// Create 创建数据集及其样本
func (r *datasetRepository) Create(ctx context.Context, ds *model.Dataset) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Examples").Create(ds).Error; err != nil {
			return err
		}
		if len(ds.Examples) == 0 {
			return nil
		}
		for i := range ds.Examples {
			ds.Examples[i].DatasetID = ds.ID
		}
		return tx.CreateInBatches(&ds.Examples, exampleBatchSize).Error
	})
}

// GetByID 根据ID获取数据集（含样本）
func (r *datasetRepository) GetByID(ctx context.Context, id string) (*model.Dataset, error) {
	var ds model.Dataset
	err := r.db.WithContext(ctx).
		Preload("Examples", orderByPosition).
		Where("id = ?", id).
		First(&ds).Error
	if err != nil {
		return nil, translate(err, "dataset")
	}
	return &ds, nil
}

// GetActiveByWorkspace 获取 workspace 最新的生效数据集
func (r *datasetRepository) GetActiveByWorkspace(ctx context.Context, workspaceID string) (*model.Dataset, error) {
	var ds model.Dataset
	err := r.db.WithContext(ctx).
		Preload("Examples", orderByPosition).
		Where("workspace_id = ? AND is_active = ?", workspaceID, true).
		Order("created_at DESC").
		First(&ds).Error
	if err != nil {
		return nil, translate(err, "dataset")
	}
	return &ds, nil
}

// List 列出数据集（不含样本）
func (r *datasetRepository) List(ctx context.Context, workspaceID string, offset, limit int) ([]*model.Dataset, int64, error) {
	var datasets []*model.Dataset
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Dataset{})
	if workspaceID != "" {
		query = query.Where("workspace_id = ?", workspaceID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&datasets).Error
	return datasets, total, err
}

// AppendExample 追加样本并更新汇总
func (r *datasetRepository) AppendExample(ctx context.Context, ds *model.Dataset, ex *model.TrainingExample) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ex.DatasetID = ds.ID
		if err := tx.Create(ex).Error; err != nil {
			return err
		}
		return tx.Model(&model.Dataset{}).Where("id = ?", ds.ID).Updates(map[string]interface{}{
			"total_samples":  ds.TotalSamples,
			"unique_intents": ds.UniqueIntents,
			"intent_counts":  ds.IntentCounts,
			"last_modified":  time.Now(),
		}).Error
	})
}

// Delete 删除数据集
func (r *datasetRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 删除关联的样本
		if err := tx.Delete(&model.TrainingExample{}, "dataset_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Dataset{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("dataset")
		}
		return nil
	})
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
