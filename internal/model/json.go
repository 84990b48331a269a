package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList 以 JSON 数组存储的字符串列表
type StringList []string

// Value 实现 driver.Valuer 接口
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

// Scan 实现 sql.Scanner 接口
func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// IntentCounts 意图 -> 样本数
type IntentCounts map[string]int

// Value 实现 driver.Valuer 接口
func (c IntentCounts) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(c)
	return string(b), err
}

// Scan 实现 sql.Scanner 接口
func (c *IntentCounts) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// ExampleList 以 JSON 存储的训练样本列表（用于快照）
type ExampleList []TrainingExample

// Value 实现 driver.Valuer 接口
func (l ExampleList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

// Scan 实现 sql.Scanner 接口
func (l *ExampleList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// AlternativeList 以 JSON 存储的候选意图列表
type AlternativeList []Alternative

// Value 实现 driver.Valuer 接口
func (l AlternativeList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

// Scan 实现 sql.Scanner 接口
func (l *AlternativeList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// scanJSON 将数据库中的 JSON 列解码到 dst
func scanJSON(value interface{}, dst interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
}
