package classifier

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ashwinyue/next-intent/internal/apperr"
	"github.com/ashwinyue/next-intent/internal/config"
	"github.com/ashwinyue/next-intent/internal/metrics"
	"github.com/ashwinyue/next-intent/internal/model"
)

// invalidateChannel 跨实例缓存失效通知频道
const invalidateChannel = "next-intent:classifier:invalidate"

// DatasetSource 提供 workspace 的生效数据集
type DatasetSource interface {
	GetActive(ctx context.Context, workspaceID string) (*model.Dataset, error)
}

// Enqueuer 接收不确定的预测
type Enqueuer interface {
	Enqueue(ctx context.Context, pred *model.PredictionResult, userID string) (*model.ActiveLearningSample, bool, error)
}

// Model workspace 已加载的分类模型，构建后不再修改
type Model struct {
	ID               string     `json:"modelId"`
	WorkspaceID      string     `json:"workspaceId"`
	DatasetID        string     `json:"datasetId"`
	Intents          []string   `json:"intents"`
	TrainingExamples int        `json:"trainingExamples"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastRetrained    *time.Time `json:"lastRetrained,omitempty"`
	RetrainCount     int        `json:"retrainCount"`
	Status           string     `json:"status"`

	examples []model.TrainingExample
	groups   *IntentGroups
}

// Examples 训练样本副本
func (m *Model) Examples() []model.TrainingExample {
	return append([]model.TrainingExample(nil), m.examples...)
}

// ModelID 由 workspace 与数据集推导的模型 ID
func ModelID(workspaceID, datasetID string) string {
	return fmt.Sprintf("intent-classifier-%s-%s", workspaceID, datasetID)
}

// TrainResult 训练结果
type TrainResult struct {
	ModelID          string   `json:"modelId"`
	WorkspaceID      string   `json:"workspaceId"`
	DatasetID        string   `json:"datasetId"`
	Intents          []string `json:"intents"`
	TrainingExamples int      `json:"trainingExamples"`
	Status           string   `json:"status"`
}

// Service 分类服务，按 workspace 缓存已分组的训练数据
type Service struct {
	datasets  DatasetSource
	queue     Enqueuer
	opts      Options
	threshold float64
	logger    *zap.Logger

	mu       sync.RWMutex
	models   map[string]*Model
	gens     map[string]uint64 // 失效代数，加载期间发生失效则丢弃加载结果
	retrains map[string]int
	flight   singleflight.Group

	redis      *redis.Client
	instanceID string
}

// NewService 创建分类服务，redisClient 可为 nil
func NewService(datasets DatasetSource, cfg config.ClassifierConfig, logger *zap.Logger, redisClient *redis.Client) *Service {
	opts := DefaultOptions()
	if cfg.ConfidenceFloor > 0 {
		opts.ConfidenceFloor = cfg.ConfidenceFloor
	}
	if cfg.MaxAlternatives > 0 {
		opts.MaxAlternatives = cfg.MaxAlternatives
	}
	threshold := cfg.UncertaintyThreshold
	if threshold <= 0 {
		threshold = 0.8
	}

	return &Service{
		datasets:   datasets,
		opts:       opts,
		threshold:  threshold,
		logger:     logger.Named("classifier"),
		models:     make(map[string]*Model),
		gens:       make(map[string]uint64),
		retrains:   make(map[string]int),
		redis:      redisClient,
		instanceID: uuid.New().String(),
	}
}

// SetEnqueuer 设置主动学习队列
func (s *Service) SetEnqueuer(q Enqueuer) {
	s.queue = q
}

// Train 用数据集构建并安装模型
func (s *Service) Train(ctx context.Context, ds *model.Dataset) (*TrainResult, error) {
	if ds == nil || len(ds.Examples) == 0 {
		return nil, ErrNoTrainingData
	}

	s.mu.Lock()
	s.gens[ds.WorkspaceID]++
	m := s.buildLocked(ds)
	s.models[ds.WorkspaceID] = m
	s.mu.Unlock()

	s.publish(ctx, ds.WorkspaceID)

	s.logger.Info("model trained",
		zap.String("workspace_id", ds.WorkspaceID),
		zap.String("model_id", m.ID),
		zap.Int("intents", len(m.Intents)),
		zap.Int("examples", m.TrainingExamples),
	)

	return &TrainResult{
		ModelID:          m.ID,
		WorkspaceID:      m.WorkspaceID,
		DatasetID:        m.DatasetID,
		Intents:          append([]string(nil), m.Intents...),
		TrainingExamples: m.TrainingExamples,
		Status:           m.Status,
	}, nil
}

// PredictIntent 预测意图，无副作用
func (s *Service) PredictIntent(ctx context.Context, text, workspaceID string) (*model.PredictionResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("text is required")
	}
	if strings.TrimSpace(workspaceID) == "" {
		return nil, apperr.Validation("workspaceId is required")
	}

	m, err := s.model(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	cls, err := Classify(text, m.groups, s.opts)
	if err != nil {
		return nil, err
	}

	uncertainty := 1 - cls.Confidence
	result := &model.PredictionResult{
		Text:             text,
		PredictedIntent:  cls.Intent,
		Confidence:       cls.Confidence,
		UncertaintyScore: uncertainty,
		Alternatives:     cls.Alternatives,
		IsUncertain:      uncertainty > s.threshold,
		WorkspaceID:      workspaceID,
		ModelID:          m.ID,
	}
	metrics.ObservePrediction(result.Confidence, result.IsUncertain)
	return result, nil
}

// Predict 预测意图；结果不确定且已知用户时送入主动学习队列
// 入队失败只记录日志，不影响预测结果
func (s *Service) Predict(ctx context.Context, text, workspaceID, userID string) (*model.PredictionResult, error) {
	result, err := s.PredictIntent(ctx, text, workspaceID)
	if err != nil {
		return nil, err
	}

	if result.IsUncertain && userID != "" && s.queue != nil {
		if _, _, err := s.queue.Enqueue(ctx, result, userID); err != nil {
			s.logger.Warn("failed to enqueue uncertain prediction",
				zap.String("workspace_id", workspaceID),
				zap.Error(err),
			)
		}
	}
	return result, nil
}

// ModelInfo 获取 workspace 的模型，必要时从数据集加载
func (s *Service) ModelInfo(ctx context.Context, workspaceID string) (*Model, error) {
	return s.model(ctx, workspaceID)
}

// ListModels 列出已缓存的模型
func (s *Service) ListModels() []*Model {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Model, 0, len(s.models))
	for _, m := range s.models {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].WorkspaceID < list[j].WorkspaceID })
	return list
}

// DeleteModel 从缓存移除模型，下次使用时重新加载
func (s *Service) DeleteModel(ctx context.Context, workspaceID string) bool {
	s.mu.Lock()
	_, ok := s.models[workspaceID]
	s.dropLocked(workspaceID)
	s.mu.Unlock()

	s.publish(ctx, workspaceID)
	return ok
}

// Invalidate 数据集变更后调用，丢弃缓存并通知其他实例
func (s *Service) Invalidate(ctx context.Context, workspaceID string) {
	s.mu.Lock()
	if _, ok := s.models[workspaceID]; ok {
		s.retrains[workspaceID]++
	}
	s.dropLocked(workspaceID)
	s.mu.Unlock()

	s.publish(ctx, workspaceID)
	s.logger.Debug("classifier cache invalidated", zap.String("workspace_id", workspaceID))
}

// WatchInvalidations 订阅其他实例的失效通知，直到 ctx 结束
func (s *Service) WatchInvalidations(ctx context.Context) {
	if s.redis == nil {
		return
	}

	sub := s.redis.Subscribe(ctx, invalidateChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			origin, workspaceID, found := strings.Cut(msg.Payload, "|")
			if !found || origin == s.instanceID {
				continue
			}
			s.mu.Lock()
			s.dropLocked(workspaceID)
			s.mu.Unlock()
		}
	}
}

// model 读取缓存，未命中时加载；同一 workspace 的并发加载只执行一次
func (s *Service) model(ctx context.Context, workspaceID string) (*Model, error) {
	s.mu.RLock()
	m, ok := s.models[workspaceID]
	gen := s.gens[workspaceID]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}

	// 加载结果由所有等待者共享，不随首个调用方的取消而失败
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.flight.Do(workspaceID, func() (interface{}, error) {
		ds, err := s.datasets.GetActive(loadCtx, workspaceID)
		if err != nil {
			metrics.ClassifierCacheLoads.WithLabelValues("error").Inc()
			return nil, err
		}
		if len(ds.Examples) == 0 {
			metrics.ClassifierCacheLoads.WithLabelValues("empty").Inc()
			return nil, ErrNoTrainingData
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if cached, ok := s.models[workspaceID]; ok {
			return cached, nil
		}
		loaded := s.buildLocked(ds)
		if s.gens[workspaceID] == gen {
			s.models[workspaceID] = loaded
		}
		metrics.ClassifierCacheLoads.WithLabelValues("loaded").Inc()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

// buildLocked 构建模型，调用方持有写锁
func (s *Service) buildLocked(ds *model.Dataset) *Model {
	groups := Group(ds.Examples)
	m := &Model{
		ID:               ModelID(ds.WorkspaceID, ds.ID),
		WorkspaceID:      ds.WorkspaceID,
		DatasetID:        ds.ID,
		Intents:          groups.Intents(),
		TrainingExamples: len(ds.Examples),
		CreatedAt:        ds.CreatedAt,
		RetrainCount:     s.retrains[ds.WorkspaceID],
		Status:           "trained",
		examples:         append([]model.TrainingExample(nil), ds.Examples...),
		groups:           groups,
	}
	if m.RetrainCount > 0 {
		t := ds.LastModified
		m.LastRetrained = &t
	}
	return m
}

func (s *Service) dropLocked(workspaceID string) {
	delete(s.models, workspaceID)
	s.gens[workspaceID]++
}

func (s *Service) publish(ctx context.Context, workspaceID string) {
	if s.redis == nil {
		return
	}
	payload := s.instanceID + "|" + workspaceID
	if err := s.redis.Publish(ctx, invalidateChannel, payload).Err(); err != nil {
		s.logger.Warn("failed to publish cache invalidation",
			zap.String("workspace_id", workspaceID),
			zap.Error(err),
		)
	}
}
