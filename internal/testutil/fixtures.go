// Package testutil 提供测试辅助工具
package testutil

import (
	"context"
	"testing"
)

// Context 返回随测试结束而取消的 context
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

// Record 构造一条上传记录
func Record(text, intent string) map[string]interface{} {
	return map[string]interface{}{"text": text, "intent": intent}
}

// TrainingRecords 三个意图的小型训练集
func TrainingRecords() []map[string]interface{} {
	return []map[string]interface{}{
		Record("hello there", "greet"),
		Record("good morning", "greet"),
		Record("cancel my order", "cancel"),
		Record("please cancel the subscription", "cancel"),
		Record("i want a refund", "refund"),
		Record("refund my payment", "refund"),
	}
}

// TestRecords 与训练集逐字相同的测试集，分类结果应全部正确
func TestRecords() []map[string]interface{} {
	return []map[string]interface{}{
		Record("hello there", "greet"),
		Record("cancel my order", "cancel"),
		Record("refund my payment", "refund"),
	}
}
