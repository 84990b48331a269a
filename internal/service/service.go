package service

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-intent/internal/config"
	"github.com/ashwinyue/next-intent/internal/repository"
	"github.com/ashwinyue/next-intent/internal/service/activelearning"
	"github.com/ashwinyue/next-intent/internal/service/auth"
	"github.com/ashwinyue/next-intent/internal/service/classifier"
	"github.com/ashwinyue/next-intent/internal/service/dataset"
	"github.com/ashwinyue/next-intent/internal/service/evaluation"
	"github.com/ashwinyue/next-intent/internal/service/feedback"
	"github.com/ashwinyue/next-intent/internal/service/registry"
)

// Services 服务集合
type Services struct {
	Config *config.Config

	Auth           *auth.Service
	Dataset        *dataset.Service
	Classifier     *classifier.Service
	Evaluation     *evaluation.Service
	Registry       *registry.Service
	ActiveLearning *activelearning.Queue
	Feedback       *feedback.Service
}

// NewServices 创建所有服务，redisClient 为 nil 时只使用进程内缓存
func NewServices(repos *repository.Repositories, cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (*Services, error) {
	authSvc, err := auth.NewService(repos.User, cfg.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	datasets := dataset.NewService(repos.Dataset, logger)
	cls := classifier.NewService(datasets, cfg.Classifier, logger, redisClient)
	datasets.SetInvalidator(cls)
	fb := feedback.NewService(repos.Feedback, repos.User, datasets, cls, cfg.Feedback, logger)
	queue := activelearning.NewQueue(repos.ActiveLearning, fb, logger)
	// 预测不确定时自动入队
	cls.SetEnqueuer(queue)

	cache := evaluation.NewResultCache(redisClient, cfg.Evaluation.CacheDuration(), logger)

	return &Services{
		Config:         cfg,
		Auth:           authSvc,
		Dataset:        datasets,
		Classifier:     cls,
		Evaluation:     evaluation.NewService(cls, repos.Evaluation, cache, cfg.Evaluation, logger),
		Registry:       registry.NewService(repos.Snapshot, logger),
		ActiveLearning: queue,
		Feedback:       fb,
	}, nil
}
