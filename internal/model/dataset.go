package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrainingExample 训练样本，进入数据集边界后字段已规范化
type TrainingExample struct {
	ID          string     `json:"id,omitempty" gorm:"type:varchar(36);primaryKey"`
	DatasetID   string     `json:"datasetId,omitempty" gorm:"type:varchar(36);not null;index"`
	Position    int        `json:"position" gorm:"not null"` // 在数据集中的顺序
	Text        string     `json:"text" gorm:"type:text;not null"`
	Intent      string     `json:"intent" gorm:"type:varchar(255);not null;index"`
	Confidence  float64    `json:"confidence"`
	IsAnnotated bool       `json:"isAnnotated"`
	AnnotatedBy string     `json:"annotatedBy,omitempty" gorm:"type:varchar(36)"`
	AnnotatedAt *time.Time `json:"annotatedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"autoCreateTime"`
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (e *TrainingExample) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (TrainingExample) TableName() string {
	return "training_examples"
}

// Dataset 某个 workspace 的训练数据集
type Dataset struct {
	ID            string            `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name          string            `json:"name" gorm:"type:varchar(255);not null"`
	Description   string            `json:"description" gorm:"type:text"`
	OwnerID       string            `json:"ownerId" gorm:"type:varchar(36);index"`
	WorkspaceID   string            `json:"workspaceId" gorm:"type:varchar(255);not null;index"`
	Examples      []TrainingExample `json:"examples,omitempty" gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE"`
	TotalSamples  int               `json:"totalSamples"`
	UniqueIntents StringList        `json:"uniqueIntents" gorm:"type:jsonb"`
	IntentCounts  IntentCounts      `json:"intentCounts" gorm:"type:jsonb"`
	Tags          StringList        `json:"tags" gorm:"type:jsonb"`
	Version       string            `json:"version" gorm:"type:varchar(20)"`
	IsActive      bool              `json:"isActive" gorm:"index"`
	LastModified  time.Time         `json:"lastModified"`
	CreatedAt     time.Time         `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time         `json:"updatedAt" gorm:"autoUpdateTime"`
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (d *Dataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (Dataset) TableName() string {
	return "datasets"
}

// HasExample 判断 (text, intent) 是否已存在
func (d *Dataset) HasExample(text, intent string) bool {
	for _, ex := range d.Examples {
		if ex.Text == text && ex.Intent == intent {
			return true
		}
	}
	return false
}

// Recount 根据样本重新计算汇总字段
func (d *Dataset) Recount() {
	counts := make(IntentCounts)
	for _, ex := range d.Examples {
		counts[ex.Intent]++
	}
	intents := make(StringList, 0, len(counts))
	for intent := range counts {
		intents = append(intents, intent)
	}
	sort.Strings(intents)

	d.TotalSamples = len(d.Examples)
	d.UniqueIntents = intents
	d.IntentCounts = counts
}
