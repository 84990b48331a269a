package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ashwinyue/next-intent/internal/apperr"
	"github.com/ashwinyue/next-intent/internal/config"
	"github.com/ashwinyue/next-intent/internal/metrics"
	"github.com/ashwinyue/next-intent/internal/model"
	"github.com/ashwinyue/next-intent/internal/repository"
	"github.com/ashwinyue/next-intent/internal/service/classifier"
	"github.com/ashwinyue/next-intent/internal/service/dataset"
)

// ErrEvaluationNotFound 评估结果不存在
var ErrEvaluationNotFound = apperr.New(apperr.ErrNotFound, "evaluation not found")

// Classifier 评估依赖的分类能力
// 评估只调用无副作用的 PredictIntent，不会写入主动学习队列
type Classifier interface {
	PredictIntent(ctx context.Context, text, workspaceID string) (*model.PredictionResult, error)
	ModelInfo(ctx context.Context, workspaceID string) (*classifier.Model, error)
}

// Service 评估服务
type Service struct {
	classifier Classifier
	repo       repository.EvaluationRepository
	cache      *ResultCache
	cfg        config.EvaluationConfig
	logger     *zap.Logger
}

// NewService 创建评估服务
func NewService(c Classifier, repo repository.EvaluationRepository, cache *ResultCache, cfg config.EvaluationConfig, logger *zap.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.SamplePredictions <= 0 {
		cfg.SamplePredictions = 10
	}
	if cfg.HoldoutRatio <= 0 || cfg.HoldoutRatio >= 1 {
		cfg.HoldoutRatio = 0.2
	}
	return &Service{
		classifier: c,
		repo:       repo,
		cache:      cache,
		cfg:        cfg,
		logger:     logger.Named("evaluation"),
	}
}

// Validate 校验测试数据，不返回错误，由调用方决定是否继续
func (s *Service) Validate(records []dataset.RawRecord) *dataset.ValidationResult {
	return dataset.Validate(records)
}

// EvaluateRecords 校验并规范化原始测试数据后评估
func (s *Service) EvaluateRecords(ctx context.Context, records []dataset.RawRecord, workspaceID, modelID string) (*model.EvaluationResult, error) {
	if res := s.Validate(records); !res.IsValid {
		return nil, apperr.Validation("invalid test data: %d of %d items are invalid", len(res.Errors), res.Stats.TotalItems)
	}
	testData, _ := dataset.Normalize(records)
	return s.Evaluate(ctx, testData, workspaceID, modelID)
}

// Evaluate 在测试集上运行分类器并计算指标
// 预测并行执行，结果按下标写回，与顺序执行的结果一致
// 任意一条失败则整体失败，不返回部分结果
func (s *Service) Evaluate(ctx context.Context, testData []model.TrainingExample, workspaceID, modelID string) (*model.EvaluationResult, error) {
	if len(testData) == 0 {
		return nil, apperr.Validation("test data must not be empty")
	}
	if workspaceID == "" {
		return nil, apperr.Validation("workspaceId is required")
	}

	start := time.Now()
	preds := make([]*model.PredictionResult, len(testData))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := range testData {
		g.Go(func() error {
			pred, err := s.classifier.PredictIntent(gctx, testData[i].Text, workspaceID)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			preds[i] = pred
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.EvaluationsTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("evaluation failed", zap.String("workspace_id", workspaceID), zap.Error(err))
		return nil, apperr.Wrap(apperr.ErrEvaluationFailed, "evaluation failed", err)
	}

	input := &MetricInput{
		TrueLabels:      make([]string, len(testData)),
		PredictedLabels: make([]string, len(testData)),
	}
	for i, ex := range testData {
		input.TrueLabels[i] = ex.Intent
		input.PredictedLabels[i] = preds[i].PredictedIntent
	}

	samples := make([]model.PredictionRecord, 0, s.cfg.SamplePredictions)
	for i := 0; i < len(testData) && i < s.cfg.SamplePredictions; i++ {
		samples = append(samples, model.PredictionRecord{
			Text:           testData[i].Text,
			TrueLabel:      testData[i].Intent,
			PredictedLabel: preds[i].PredictedIntent,
			Confidence:     preds[i].Confidence,
		})
	}

	if modelID == "" {
		modelID = preds[0].ModelID
	}

	result := &model.EvaluationResult{
		ID:                uuid.New().String(),
		WorkspaceID:       workspaceID,
		ModelID:           modelID,
		Timestamp:         time.Now(),
		TestDataSize:      len(testData),
		Metrics:           ComputeMetrics(input),
		ConfusionMatrix:   BuildConfusionMatrix(input),
		SamplePredictions: samples,
	}

	if err := s.repo.Create(ctx, result); err != nil {
		metrics.EvaluationsTotal.WithLabelValues("failed").Inc()
		return nil, apperr.Wrap(apperr.ErrEvaluationFailed, "failed to save evaluation", err)
	}
	s.cache.Put(ctx, result)

	metrics.EvaluationsTotal.WithLabelValues("succeeded").Inc()
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())

	s.logger.Info("evaluation completed",
		zap.String("evaluation_id", result.ID),
		zap.String("workspace_id", workspaceID),
		zap.Int("test_size", result.TestDataSize),
		zap.Float64("accuracy", result.Metrics.Accuracy),
		zap.Float64("macro_f1", result.Metrics.MacroF1),
	)
	return result, nil
}

// HoldoutResult 留出集评估结果
type HoldoutResult struct {
	*model.EvaluationResult
	HoldoutRatio float64 `json:"holdoutRatio"`
}

// EvaluateHoldout 从当前模型的训练数据中抽取留出集评估
// ratio <= 0 时使用配置值；相同 seed 得到相同的抽样
func (s *Service) EvaluateHoldout(ctx context.Context, workspaceID string, ratio float64, seed uint64) (*HoldoutResult, error) {
	if workspaceID == "" {
		return nil, apperr.Validation("workspaceId is required")
	}
	if ratio <= 0 {
		ratio = s.cfg.HoldoutRatio
	}
	if ratio > 1 {
		return nil, apperr.Validation("holdoutRatio must be at most 1")
	}

	info, err := s.classifier.ModelInfo(ctx, workspaceID)
	if errors.Is(err, apperr.ErrNoTrainingData) {
		return nil, apperr.Wrap(apperr.ErrInsufficientData, "insufficient training data for holdout evaluation", err)
	}
	if err != nil {
		return nil, err
	}

	holdout := Holdout(info.Examples(), ratio, seed)
	if holdout == nil {
		return nil, apperr.InsufficientData("insufficient training data for holdout evaluation")
	}

	result, err := s.Evaluate(ctx, holdout, workspaceID, info.ID)
	if err != nil {
		return nil, err
	}
	return &HoldoutResult{EvaluationResult: result, HoldoutRatio: ratio}, nil
}

// Holdout 打乱后取前 max(1, floor(n*ratio)) 条；少于 2 条时返回 nil
func Holdout(examples []model.TrainingExample, ratio float64, seed uint64) []model.TrainingExample {
	n := len(examples)
	if n < 2 {
		return nil
	}
	shuffled := append([]model.TrainingExample(nil), examples...)
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	r.Shuffle(n, func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	size := int(float64(n) * ratio)
	if size < 1 {
		size = 1
	}
	if size > n {
		size = n
	}
	return shuffled[:size]
}

// Get 获取评估结果
func (s *Service) Get(ctx context.Context, id string) (*model.EvaluationResult, error) {
	if r, ok := s.cache.Get(ctx, id); ok {
		return r, nil
	}
	r, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrEvaluationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	s.cache.Put(ctx, r)
	return r, nil
}

// ListByWorkspace 列出 workspace 的评估结果，最新的在前
func (s *Service) ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.EvaluationResult, error) {
	list, err := s.repo.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	return list, nil
}

// Summary 评估摘要
type Summary struct {
	ID           string        `json:"id"`
	ModelID      string        `json:"modelId"`
	Timestamp    time.Time     `json:"timestamp"`
	Metrics      model.Metrics `json:"metrics"`
	TestDataSize int           `json:"testDataSize"`
}

// Summarize 构造评估摘要
func Summarize(r *model.EvaluationResult) Summary {
	return Summary{
		ID:           r.ID,
		ModelID:      r.ModelID,
		Timestamp:    r.Timestamp,
		Metrics:      r.Metrics,
		TestDataSize: r.TestDataSize,
	}
}

// Comparison 多个评估的对比
type Comparison struct {
	Timestamp    time.Time `json:"timestamp"`
	Evaluations  []Summary `json:"evaluations"`
	BestAccuracy Summary   `json:"bestAccuracy"`
	BestF1Score  Summary   `json:"bestF1Score"`
}

// Compare 对比多个评估，未知 id 被跳过，至少需要 2 个已知评估
// 指标相同时取先出现的
func (s *Service) Compare(ctx context.Context, ids []string) (*Comparison, error) {
	var found []*model.EvaluationResult
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if len(found) < 2 {
		return nil, apperr.InsufficientData("at least 2 evaluations are required for comparison")
	}

	cmp := &Comparison{
		Timestamp:   time.Now(),
		Evaluations: make([]Summary, 0, len(found)),
	}
	bestAcc, bestF1 := found[0], found[0]
	for _, r := range found {
		cmp.Evaluations = append(cmp.Evaluations, Summarize(r))
		if r.Metrics.Accuracy > bestAcc.Metrics.Accuracy {
			bestAcc = r
		}
		if r.Metrics.F1Score > bestF1.Metrics.F1Score {
			bestF1 = r
		}
	}
	cmp.BestAccuracy = Summarize(bestAcc)
	cmp.BestF1Score = Summarize(bestF1)
	return cmp, nil
}

// ExportDocument 评估结果的完整导出文档
type ExportDocument struct {
	EvaluationID      string                   `json:"evaluationId"`
	WorkspaceID       string                   `json:"workspaceId"`
	ModelID           string                   `json:"modelId"`
	Timestamp         time.Time                `json:"timestamp"`
	Metrics           model.Metrics            `json:"metrics"`
	ConfusionMatrix   model.ConfusionMatrix    `json:"confusionMatrix"`
	TestDataSize      int                      `json:"testDataSize"`
	SamplePredictions []model.PredictionRecord `json:"samplePredictions"`
}

// Export 导出评估结果
func (s *Service) Export(ctx context.Context, id string) (*ExportDocument, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ExportDocument{
		EvaluationID:      r.ID,
		WorkspaceID:       r.WorkspaceID,
		ModelID:           r.ModelID,
		Timestamp:         r.Timestamp,
		Metrics:           r.Metrics,
		ConfusionMatrix:   r.ConfusionMatrix,
		TestDataSize:      r.TestDataSize,
		SamplePredictions: r.SamplePredictions,
	}, nil
}
