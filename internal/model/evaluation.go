// Package model 提供领域数据模型
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClassMetrics 单个标签的指标
type ClassMetrics struct {
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1Score        float64 `json:"f1Score"`
	Support        int     `json:"support"` // 真实标签出现次数
	TruePositives  int     `json:"truePositives"`
	FalsePositives int     `json:"falsePositives"`
	FalseNegatives int     `json:"falseNegatives"`
}

// Metrics 整体指标
type Metrics struct {
	Accuracy           float64                 `json:"accuracy"`
	MacroPrecision     float64                 `json:"macroPrecision"`
	MacroRecall        float64                 `json:"macroRecall"`
	MacroF1            float64                 `json:"macroF1"`
	F1Score            float64                 `json:"f1Score"` // 与 MacroF1 相同
	PerClass           map[string]ClassMetrics `json:"perClass"`
	TotalPredictions   int                     `json:"totalPredictions"`
	CorrectPredictions int                     `json:"correctPredictions"`
}

// ConfusionMatrix 混淆矩阵，Counts[真实][预测]
type ConfusionMatrix struct {
	Labels       []string                  `json:"labels"`
	Counts       map[string]map[string]int `json:"counts"`
	TotalSamples int                       `json:"totalSamples"`
}

// PredictionRecord 评估中的单条预测
type PredictionRecord struct {
	Text           string  `json:"text"`
	TrueLabel      string  `json:"trueLabel"`
	PredictedLabel string  `json:"predictedLabel"`
	Confidence     float64 `json:"confidence"`
}

// EvaluationResult 一次评估的完整结果，创建后不可变
type EvaluationResult struct {
	ID                string             `json:"id"`
	WorkspaceID       string             `json:"workspaceId"`
	ModelID           string             `json:"modelId"`
	Timestamp         time.Time          `json:"timestamp"`
	TestDataSize      int                `json:"testDataSize"`
	Metrics           Metrics            `json:"metrics"`
	ConfusionMatrix   ConfusionMatrix    `json:"confusionMatrix"`
	SamplePredictions []PredictionRecord `json:"samplePredictions"`
}

// Value 实现 driver.Valuer 接口
func (r EvaluationResult) Value() (driver.Value, error) {
	b, err := json.Marshal(r)
	return string(b), err
}

// Scan 实现 sql.Scanner 接口
func (r *EvaluationResult) Scan(value interface{}) error {
	return scanJSON(value, r)
}

// EvaluationRecord 评估结果的持久化行
// 常用字段单独成列便于查询，完整结果存于 Result
type EvaluationRecord struct {
	ID           string           `json:"id" gorm:"type:varchar(36);primaryKey"`
	WorkspaceID  string           `json:"workspaceId" gorm:"type:varchar(255);not null;index"`
	ModelID      string           `json:"modelId" gorm:"type:varchar(255)"`
	Accuracy     float64          `json:"accuracy"`
	MacroF1      float64          `json:"macroF1"`
	TestDataSize int              `json:"testDataSize"`
	Timestamp    time.Time        `json:"timestamp" gorm:"index"`
	Result       EvaluationResult `json:"result" gorm:"type:jsonb"`
	CreatedAt    time.Time        `json:"createdAt" gorm:"autoCreateTime"`
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (r *EvaluationRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (EvaluationRecord) TableName() string {
	return "evaluation_results"
}

// NewEvaluationRecord 从评估结果构造持久化行
func NewEvaluationRecord(r *EvaluationResult) *EvaluationRecord {
	return &EvaluationRecord{
		ID:           r.ID,
		WorkspaceID:  r.WorkspaceID,
		ModelID:      r.ModelID,
		Accuracy:     r.Metrics.Accuracy,
		MacroF1:      r.Metrics.MacroF1,
		TestDataSize: r.TestDataSize,
		Timestamp:    r.Timestamp,
		Result:       *r,
	}
}
