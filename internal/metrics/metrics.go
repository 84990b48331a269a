// Package metrics 定义 Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PredictionsTotal 预测次数，按是否不确定区分
	PredictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "next_intent_predictions_total",
		Help: "Total intent predictions by uncertainty",
	}, []string{"uncertain"})

	// PredictionConfidence 预测置信度分布
	PredictionConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "next_intent_prediction_confidence",
		Help:    "Confidence of intent predictions",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	})

	// ClassifierCacheLoads 分类器缓存加载结果
	ClassifierCacheLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "next_intent_classifier_cache_loads_total",
		Help: "Classifier cache loads by result",
	}, []string{"result"})

	// EvaluationsTotal 评估次数
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "next_intent_evaluations_total",
		Help: "Total evaluations by result",
	}, []string{"result"})

	// EvaluationDuration 评估耗时
	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "next_intent_evaluation_duration_seconds",
		Help:    "Evaluation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	// ActiveLearningEnqueued 入队样本数，按优先级
	ActiveLearningEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "next_intent_active_learning_enqueued_total",
		Help: "Samples added to the active learning queue by priority",
	}, []string{"priority"})

	// FeedbackTotal 反馈提交数，按类型
	FeedbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "next_intent_feedback_total",
		Help: "Feedback records submitted by type",
	}, []string{"type"})

	// ModelVersionsCreated 创建的模型版本数
	ModelVersionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "next_intent_model_versions_created_total",
		Help: "Model versions created",
	})

	// DatasetMerges 合并到数据集的样本，按是否实际写入
	DatasetMerges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "next_intent_dataset_merges_total",
		Help: "Corrections merged into datasets by result",
	}, []string{"result"})
)

// ObservePrediction 记录一次预测
func ObservePrediction(confidence float64, uncertain bool) {
	PredictionsTotal.WithLabelValues(strconv.FormatBool(uncertain)).Inc()
	PredictionConfidence.Observe(confidence)
}

// Handler 返回 /metrics 处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
