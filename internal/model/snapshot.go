package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SnapshotStatus 模型版本状态
type SnapshotStatus string

const (
	SnapshotStatusActive   SnapshotStatus = "active"   // 当前生效
	SnapshotStatusInactive SnapshotStatus = "inactive" // 历史版本
)

// ModelSnapshot 模型版本快照
// 软删除保留版本号高水位，版本号在 workspace 内不会复用
type ModelSnapshot struct {
	ID                   string            `json:"id" gorm:"type:varchar(36);primaryKey"`
	WorkspaceID          string            `json:"workspaceId" gorm:"type:varchar(255);not null;uniqueIndex:idx_snapshot_workspace_version,priority:1"`
	VersionNumber        int               `json:"versionNumber" gorm:"not null;uniqueIndex:idx_snapshot_workspace_version,priority:2"`
	ModelID              string            `json:"modelId" gorm:"type:varchar(255)"`
	Status               SnapshotStatus    `json:"status" gorm:"type:varchar(20);not null;index"`
	Intents              StringList        `json:"intents" gorm:"type:jsonb"`
	TrainingExampleCount int               `json:"trainingExampleCount"`
	TrainingDataSample   ExampleList       `json:"trainingDataSample" gorm:"type:jsonb"`
	EvaluationResult     *EvaluationResult `json:"evaluationResult,omitempty" gorm:"type:jsonb"`
	Description          string            `json:"description" gorm:"type:text"`
	Tags                 StringList        `json:"tags" gorm:"type:jsonb"`
	CreatedBy            string            `json:"createdBy,omitempty" gorm:"type:varchar(36)"`
	CreatedAt            time.Time         `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt            time.Time         `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt            gorm.DeletedAt    `json:"-" gorm:"index"`
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (s *ModelSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (ModelSnapshot) TableName() string {
	return "model_snapshots"
}

// IsActive 是否为当前生效版本
func (s *ModelSnapshot) IsActive() bool {
	return s.Status == SnapshotStatusActive
}
