package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SampleStatus 主动学习样本状态
type SampleStatus string

const (
	SampleStatusPending   SampleStatus = "pending"   // 待标注
	SampleStatusAnnotated SampleStatus = "annotated" // 已标注
	SampleStatusReviewed  SampleStatus = "reviewed"  // 已复核
	SampleStatusRetrained SampleStatus = "retrained" // 已用于重训
)

// SamplePriority 样本优先级
type SamplePriority string

const (
	PriorityLow    SamplePriority = "low"
	PriorityMedium SamplePriority = "medium"
	PriorityHigh   SamplePriority = "high"
	PriorityUrgent SamplePriority = "urgent"
)

// PriorityRank 队列排序用的优先级序号，越小越靠前
func PriorityRank(p SamplePriority) int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// PriorityForUncertainty 根据不确定度计算优先级
func PriorityForUncertainty(u float64) SamplePriority {
	switch {
	case u > 0.8:
		return PriorityUrgent
	case u > 0.6:
		return PriorityHigh
	case u < 0.3:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// ValidPriority 是否为合法优先级
func ValidPriority(p SamplePriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ActiveLearningSample 待人工标注的低置信度预测
type ActiveLearningSample struct {
	ID               string          `json:"id" gorm:"type:varchar(36);primaryKey"`
	Text             string          `json:"text" gorm:"type:text;not null"`
	PredictedIntent  string          `json:"predictedIntent" gorm:"type:varchar(255)"`
	Confidence       float64         `json:"confidence"`
	UncertaintyScore float64         `json:"uncertaintyScore" gorm:"index"`
	Alternatives     AlternativeList `json:"alternatives" gorm:"type:jsonb"`
	WorkspaceID      string          `json:"workspaceId" gorm:"type:varchar(255);not null;index"`
	UserID           string          `json:"userId" gorm:"type:varchar(36);not null;index"`
	ModelID          string          `json:"modelId,omitempty" gorm:"type:varchar(255)"`
	Status           SampleStatus    `json:"status" gorm:"type:varchar(20);not null;index"`
	Priority         SamplePriority  `json:"priority" gorm:"type:varchar(20);not null;index"`
	CorrectIntent    string          `json:"correctIntent,omitempty" gorm:"type:varchar(255)"`
	AnnotatedBy      string          `json:"annotatedBy,omitempty" gorm:"type:varchar(36)"`
	AnnotatedAt      *time.Time      `json:"annotatedAt,omitempty"`
	AnnotationNotes  string          `json:"annotationNotes,omitempty" gorm:"type:text"`
	IsRetrained      bool            `json:"isRetrained"`
	RetrainedAt      *time.Time      `json:"retrainedAt,omitempty"`
	CreatedAt        time.Time       `json:"createdAt" gorm:"index"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (s *ActiveLearningSample) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (ActiveLearningSample) TableName() string {
	return "active_learning_samples"
}

// IsOpen 处于 pending 或 reviewed 的样本参与去重
func (s *ActiveLearningSample) IsOpen() bool {
	return s.Status == SampleStatusPending || s.Status == SampleStatusReviewed
}

// QueueLess 队列顺序：优先级 → 不确定度降序 → 创建时间降序
func QueueLess(a, b *ActiveLearningSample) bool {
	ra, rb := PriorityRank(a.Priority), PriorityRank(b.Priority)
	if ra != rb {
		return ra < rb
	}
	if a.UncertaintyScore != b.UncertaintyScore {
		return a.UncertaintyScore > b.UncertaintyScore
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// SampleFilter 样本查询条件
type SampleFilter struct {
	WorkspaceID string
	UserID      string
	Status      SampleStatus
	Priority    SamplePriority
	Offset      int
	Limit       int
}
