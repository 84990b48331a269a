package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}

func labels(truth, pred []string) *MetricInput {
	return &MetricInput{TrueLabels: truth, PredictedLabels: pred}
}

// ========== Accuracy 测试 ==========

func TestAccuracyMetric_Compute(t *testing.T) {
	tests := []struct {
		name     string
		input    *MetricInput
		expected float64
	}{
		{name: "perfect", input: labels([]string{"a", "b"}, []string{"a", "b"}), expected: 1.0},
		{name: "half", input: labels([]string{"a", "b"}, []string{"a", "a"}), expected: 0.5},
		{name: "none", input: labels([]string{"a", "b"}, []string{"b", "a"}), expected: 0.0},
		{name: "empty", input: labels(nil, nil), expected: 0.0},
		{name: "mismatched lengths use shorter", input: labels([]string{"a", "b", "c"}, []string{"a"}), expected: 1.0},
	}

	am := NewAccuracyMetric()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := am.Compute(tt.input)
			if !almostEqual(got, tt.expected, 1e-9) {
				t.Errorf("Compute() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// ========== 宏平均指标测试 ==========

func TestMacroMetrics(t *testing.T) {
	// a: TP=2 FN=1 FP=0 -> P=1 R=2/3
	// b: TP=1 FN=0 FP=1 -> P=0.5 R=1
	input := labels(
		[]string{"a", "a", "a", "b"},
		[]string{"a", "a", "b", "b"},
	)

	f1a := 2 * 1.0 * (2.0 / 3.0) / (1.0 + 2.0/3.0)
	f1b := 2 * 0.5 * 1.0 / 1.5

	tests := []struct {
		metric   Metric
		name     string
		expected float64
	}{
		{metric: NewPrecisionMetric(), name: "macro_precision", expected: (1.0 + 0.5) / 2},
		{metric: NewRecallMetric(), name: "macro_recall", expected: (2.0/3.0 + 1.0) / 2},
		{metric: NewF1Metric(), name: "macro_f1", expected: (f1a + f1b) / 2},
		{metric: NewAccuracyMetric(), name: "accuracy", expected: 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.metric.Name())
			got := tt.metric.Compute(input)
			if !almostEqual(got, tt.expected, 1e-9) {
				t.Errorf("Compute() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPerClass_ZeroDenominators(t *testing.T) {
	// c 只出现在预测中：TP=0 FP=1 FN=0
	per := PerClass(labels([]string{"a"}, []string{"c"}))

	require.Contains(t, per, "a")
	require.Contains(t, per, "c")
	assert.Equal(t, 0.0, per["a"].Precision)
	assert.Equal(t, 0.0, per["a"].Recall)
	assert.Equal(t, 1, per["a"].Support)
	assert.Equal(t, 0, per["c"].Support)
	assert.Equal(t, 1, per["c"].FalsePositives)
	assert.Equal(t, 0.0, per["c"].F1Score)
}

func TestComputeMetrics_PerfectBalanced(t *testing.T) {
	m := ComputeMetrics(labels(
		[]string{"x", "y", "x", "y"},
		[]string{"x", "y", "x", "y"},
	))

	assert.Equal(t, 1.0, m.Accuracy)
	assert.Equal(t, 1.0, m.MacroF1)
	assert.Equal(t, m.MacroF1, m.F1Score)
	assert.Equal(t, 4, m.TotalPredictions)
	assert.Equal(t, 4, m.CorrectPredictions)
	assert.Len(t, m.PerClass, 2)
}

func TestComputeMetrics_ExcludesUntouchedLabels(t *testing.T) {
	// 宏平均只包含出现过的标签，不因为其他意图拉低
	m := ComputeMetrics(labels([]string{"a", "a"}, []string{"a", "a"}))
	assert.Equal(t, 1.0, m.MacroPrecision)
	assert.Equal(t, 1.0, m.MacroRecall)
	assert.Len(t, m.PerClass, 1)
}

// ========== 混淆矩阵测试 ==========

func TestBuildConfusionMatrix(t *testing.T) {
	truth := []string{"b", "a", "a", "c", "b"}
	pred := []string{"b", "a", "b", "a", "d"}

	cm := BuildConfusionMatrix(labels(truth, pred))

	assert.Equal(t, []string{"a", "b", "c", "d"}, cm.Labels)
	assert.Equal(t, 5, cm.TotalSamples)
	assert.Equal(t, 1, cm.Counts["a"]["a"])
	assert.Equal(t, 1, cm.Counts["a"]["b"])
	assert.Equal(t, 1, cm.Counts["c"]["a"])
	assert.Equal(t, 1, cm.Counts["b"]["d"])
	assert.Equal(t, 0, cm.Counts["d"]["d"])

	// 方阵
	for _, row := range cm.Labels {
		assert.Len(t, cm.Counts[row], len(cm.Labels))
	}

	// 行和等于该真实标签的样本数
	want := map[string]int{}
	for _, l := range truth {
		want[l]++
	}
	for _, l := range cm.Labels {
		sum := 0
		for _, n := range cm.Counts[l] {
			sum += n
		}
		assert.Equal(t, want[l], sum, "row %s", l)
	}
}

func TestBuildConfusionMatrix_Empty(t *testing.T) {
	cm := BuildConfusionMatrix(labels(nil, nil))
	assert.Empty(t, cm.Labels)
	assert.Equal(t, 0, cm.TotalSamples)
}

// ========== 基准测试 ==========

func BenchmarkComputeMetrics(b *testing.B) {
	truth := make([]string, 1000)
	pred := make([]string, 1000)
	for i := range truth {
		truth[i] = string(rune('a' + i%10))
		pred[i] = string(rune('a' + (i*7)%10))
	}
	input := labels(truth, pred)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ComputeMetrics(input)
	}
}
