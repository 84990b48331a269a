// Package evaluation 提供分类效果评估服务
package evaluation

import (
	"sort"

	"github.com/ashwinyue/next-intent/internal/model"
)

// MetricInput 指标计算输入
type MetricInput struct {
	// TrueLabels 测试集标注的意图
	TrueLabels []string

	// PredictedLabels 分类器预测的意图，与 TrueLabels 一一对应
	PredictedLabels []string
}

// Metric 指标接口
type Metric interface {
	Compute(input *MetricInput) float64
	Name() string
}

// pairs 按较短的一侧对齐
func (in *MetricInput) pairs() int {
	if len(in.TrueLabels) < len(in.PredictedLabels) {
		return len(in.TrueLabels)
	}
	return len(in.PredictedLabels)
}

// Labels 真实与预测标签的并集，已排序
func (in *MetricInput) Labels() []string {
	seen := make(map[string]struct{})
	n := in.pairs()
	for i := 0; i < n; i++ {
		seen[in.TrueLabels[i]] = struct{}{}
		seen[in.PredictedLabels[i]] = struct{}{}
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// ========== Accuracy 准确率 ==========

// AccuracyMetric 准确率指标
// Accuracy = 预测正确数 / 样本总数
type AccuracyMetric struct{}

// NewAccuracyMetric 创建准确率指标
func NewAccuracyMetric() *AccuracyMetric {
	return &AccuracyMetric{}
}

// Compute 计算准确率
func (m *AccuracyMetric) Compute(input *MetricInput) float64 {
	n := input.pairs()
	if n == 0 {
		return 0.0
	}
	return float64(correctCount(input)) / float64(n)
}

// Name 返回指标名称
func (m *AccuracyMetric) Name() string {
	return "accuracy"
}

func correctCount(input *MetricInput) int {
	correct := 0
	for i := 0; i < input.pairs(); i++ {
		if input.TrueLabels[i] == input.PredictedLabels[i] {
			correct++
		}
	}
	return correct
}

// ========== Precision 精确率 ==========

// PrecisionMetric 宏平均精确率
// 每个标签 Precision = TP / (TP + FP)
type PrecisionMetric struct{}

// NewPrecisionMetric 创建精确率指标
func NewPrecisionMetric() *PrecisionMetric {
	return &PrecisionMetric{}
}

// Compute 计算宏平均精确率
func (m *PrecisionMetric) Compute(input *MetricInput) float64 {
	return macroAverage(PerClass(input), func(c model.ClassMetrics) float64 { return c.Precision })
}

// Name 返回指标名称
func (m *PrecisionMetric) Name() string {
	return "macro_precision"
}

// ========== Recall 召回率 ==========

// RecallMetric 宏平均召回率
// 每个标签 Recall = TP / (TP + FN)
type RecallMetric struct{}

// NewRecallMetric 创建召回率指标
func NewRecallMetric() *RecallMetric {
	return &RecallMetric{}
}

// Compute 计算宏平均召回率
func (m *RecallMetric) Compute(input *MetricInput) float64 {
	return macroAverage(PerClass(input), func(c model.ClassMetrics) float64 { return c.Recall })
}

// Name 返回指标名称
func (m *RecallMetric) Name() string {
	return "macro_recall"
}

// ========== F1 Score ==========

// F1Metric 宏平均 F1 分数
// 每个标签 F1 = 2 * Precision * Recall / (Precision + Recall)
type F1Metric struct{}

// NewF1Metric 创建 F1 指标
func NewF1Metric() *F1Metric {
	return &F1Metric{}
}

// Compute 计算宏平均 F1
func (m *F1Metric) Compute(input *MetricInput) float64 {
	return macroAverage(PerClass(input), func(c model.ClassMetrics) float64 { return c.F1Score })
}

// Name 返回指标名称
func (m *F1Metric) Name() string {
	return "macro_f1"
}

// ========== 按标签统计 ==========

// PerClass 计算每个标签的 TP/FP/FN 及派生指标
// 分母为 0 的指标取 0
func PerClass(input *MetricInput) map[string]model.ClassMetrics {
	stats := make(map[string]*model.ClassMetrics)
	get := func(label string) *model.ClassMetrics {
		c, ok := stats[label]
		if !ok {
			c = &model.ClassMetrics{}
			stats[label] = c
		}
		return c
	}

	for i := 0; i < input.pairs(); i++ {
		truth, pred := input.TrueLabels[i], input.PredictedLabels[i]
		get(truth).Support++
		if truth == pred {
			get(truth).TruePositives++
			continue
		}
		get(truth).FalseNegatives++
		get(pred).FalsePositives++
	}

	out := make(map[string]model.ClassMetrics, len(stats))
	for label, c := range stats {
		c.Precision = ratio(c.TruePositives, c.TruePositives+c.FalsePositives)
		c.Recall = ratio(c.TruePositives, c.TruePositives+c.FalseNegatives)
		if c.Precision+c.Recall > 0 {
			c.F1Score = 2 * c.Precision * c.Recall / (c.Precision + c.Recall)
		}
		out[label] = *c
	}
	return out
}

// macroAverage 只对至少有一个 TP/FP/FN 的标签求平均
func macroAverage(perClass map[string]model.ClassMetrics, pick func(model.ClassMetrics) float64) float64 {
	sum, n := 0.0, 0
	for _, c := range perClass {
		if c.TruePositives+c.FalsePositives+c.FalseNegatives == 0 {
			continue
		}
		sum += pick(c)
		n++
	}
	if n == 0 {
		return 0.0
	}
	return sum / float64(n)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0.0
	}
	return float64(num) / float64(den)
}

// ComputeMetrics 计算整体指标
func ComputeMetrics(input *MetricInput) model.Metrics {
	perClass := PerClass(input)
	macroF1 := macroAverage(perClass, func(c model.ClassMetrics) float64 { return c.F1Score })
	return model.Metrics{
		Accuracy:           NewAccuracyMetric().Compute(input),
		MacroPrecision:     macroAverage(perClass, func(c model.ClassMetrics) float64 { return c.Precision }),
		MacroRecall:        macroAverage(perClass, func(c model.ClassMetrics) float64 { return c.Recall }),
		MacroF1:            macroF1,
		F1Score:            macroF1,
		PerClass:           perClass,
		TotalPredictions:   input.pairs(),
		CorrectPredictions: correctCount(input),
	}
}

// BuildConfusionMatrix 构建混淆矩阵，行列为真实与预测标签的排序并集
func BuildConfusionMatrix(input *MetricInput) model.ConfusionMatrix {
	labels := input.Labels()
	counts := make(map[string]map[string]int, len(labels))
	for _, truth := range labels {
		row := make(map[string]int, len(labels))
		for _, pred := range labels {
			row[pred] = 0
		}
		counts[truth] = row
	}
	for i := 0; i < input.pairs(); i++ {
		counts[input.TrueLabels[i]][input.PredictedLabels[i]]++
	}
	return model.ConfusionMatrix{
		Labels:       labels,
		Counts:       counts,
		TotalSamples: input.pairs(),
	}
}
