package dataset

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/ashwinyue/next-intent/internal/apperr"
	"github.com/ashwinyue/next-intent/internal/model"
)

// RawRecord 上传的原始记录，字段名不固定
type RawRecord map[string]interface{}

// 字段别名，按顺序取第一个非空字符串
var (
	TextFields   = []string{"text", "Text", "utterance", "Utterance", "message", "Message"}
	IntentFields = []string{"intent", "Intent", "label", "Label", "class", "Class"}
)

// ItemError 单条记录的错误
type ItemError struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (e ItemError) Error() string {
	return fmt.Sprintf("item %d: %s", e.Index, e.Message)
}

// ValidationStats 校验统计
type ValidationStats struct {
	TotalItems   int `json:"totalItems"`
	ValidItems   int `json:"validItems"`
	UniqueLabels int `json:"uniqueLabels"`
}

// ValidationResult 校验结果
type ValidationResult struct {
	IsValid bool            `json:"isValid"`
	Errors  []ItemError     `json:"errors"`
	Stats   ValidationStats `json:"stats"`
}

// Normalize 将原始记录转换为训练样本
// 无法识别的记录不会进入结果，而是以 ItemError 返回
func Normalize(records []RawRecord) ([]model.TrainingExample, []ItemError) {
	examples := make([]model.TrainingExample, 0, len(records))
	var errs []ItemError

	for i, rec := range records {
		text, ok := pick(rec, TextFields)
		if !ok {
			errs = append(errs, ItemError{Index: i, Field: "text", Message: "missing text field (text, utterance or message)"})
			continue
		}
		intent, ok := pick(rec, IntentFields)
		if !ok {
			errs = append(errs, ItemError{Index: i, Field: "intent", Message: "missing intent field (intent, label or class)"})
			continue
		}
		examples = append(examples, model.TrainingExample{
			Position:   len(examples),
			Text:       text,
			Intent:     intent,
			Confidence: 1.0,
		})
	}
	return examples, errs
}

// Validate 校验记录，从不返回错误，问题写入结果
func Validate(records []RawRecord) *ValidationResult {
	examples, errs := Normalize(records)

	labels := make(map[string]struct{})
	for _, ex := range examples {
		labels[ex.Intent] = struct{}{}
	}
	if len(records) == 0 {
		errs = append(errs, ItemError{Index: -1, Field: "data", Message: "no records provided"})
	}

	return &ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
		Stats: ValidationStats{
			TotalItems:   len(records),
			ValidItems:   len(examples),
			UniqueLabels: len(labels),
		},
	}
}

// ParseRecords 解析上传的 JSON，格式错误时先尝试修复
// 支持顶层数组，或包含 data / examples 数组的对象
func ParseRecords(raw []byte) ([]RawRecord, error) {
	records, err := decodeRecords(raw)
	if err == nil {
		return records, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(string(raw))
	if repairErr != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "invalid JSON payload", err)
	}
	records, err = decodeRecords([]byte(repaired))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "invalid JSON payload", err)
	}
	return records, nil
}

func decodeRecords(raw []byte) ([]RawRecord, error) {
	var records []RawRecord
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}

	var wrapped struct {
		Data     []RawRecord `json:"data"`
		Examples []RawRecord `json:"examples"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	if wrapped.Examples != nil {
		return wrapped.Examples, nil
	}
	return nil, fmt.Errorf("expected an array of records")
}

// pick 取第一个非空字符串字段，结果已去除首尾空白
func pick(rec RawRecord, fields []string) (string, bool) {
	for _, f := range fields {
		v, ok := rec[f]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "", false
}
