package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FeedbackType 反馈类型
type FeedbackType string

const (
	FeedbackTypeCorrection FeedbackType = "correction" // 纠正
	FeedbackTypeSuggestion FeedbackType = "suggestion" // 建议
	FeedbackTypeComplaint  FeedbackType = "complaint"  // 投诉
)

// FeedbackStatus 反馈状态
type FeedbackStatus string

const (
	FeedbackStatusPending  FeedbackStatus = "pending"  // 待审核
	FeedbackStatusReviewed FeedbackStatus = "reviewed" // 已审核
	FeedbackStatusApplied  FeedbackStatus = "applied"  // 已应用到训练数据
	FeedbackStatusRejected FeedbackStatus = "rejected" // 已拒绝
)

// ValidFeedbackStatus 是否为合法状态
func ValidFeedbackStatus(s FeedbackStatus) bool {
	switch s {
	case FeedbackStatusPending, FeedbackStatusReviewed, FeedbackStatusApplied, FeedbackStatusRejected:
		return true
	}
	return false
}

// FeedbackRecord 用户对预测的纠正
type FeedbackRecord struct {
	ID                 string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID             string         `json:"userId" gorm:"type:varchar(36);not null;index"`
	WorkspaceID        string         `json:"workspaceId" gorm:"type:varchar(255);not null;index"`
	OriginalText       string         `json:"originalText" gorm:"type:text;not null"`
	OriginalIntent     string         `json:"originalIntent" gorm:"type:varchar(255);not null"`
	OriginalConfidence float64        `json:"originalConfidence"`
	CorrectedIntent    string         `json:"correctedIntent" gorm:"type:varchar(255);not null;index"`
	FeedbackType       FeedbackType   `json:"feedbackType" gorm:"type:varchar(20);not null"`
	FeedbackText       string         `json:"feedbackText,omitempty" gorm:"type:varchar(500)"`
	Confidence         int            `json:"confidence"` // 用户自评把握度 0-5
	Status             FeedbackStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	ReviewedBy         string         `json:"reviewedBy,omitempty" gorm:"type:varchar(36)"`
	ReviewedAt         *time.Time     `json:"reviewedAt,omitempty"`
	IsRetrained        bool           `json:"isRetrained"`
	RetrainedAt        *time.Time     `json:"retrainedAt,omitempty"`
	CreatedAt          time.Time      `json:"createdAt" gorm:"index"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (f *FeedbackRecord) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (FeedbackRecord) TableName() string {
	return "feedback_records"
}

// FeedbackFilter 反馈查询条件
type FeedbackFilter struct {
	WorkspaceID string
	UserID      string
	Status      FeedbackStatus
	Type        FeedbackType
	Offset      int
	Limit       int
}
