package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/ashwinyue/next-intent/internal/apperr"
)

// Repositories 仓库集合，用于统一管理所有仓库
type Repositories struct {
	DB             *gorm.DB // 内存模式下为 nil
	Dataset        DatasetRepository
	Snapshot       SnapshotRepository
	Evaluation     EvaluationRepository
	ActiveLearning ActiveLearningRepository
	Feedback       FeedbackRepository
	User           UserRepository
}

// NewRepositories 创建基于 gorm 的仓库
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:             db,
		Dataset:        NewDatasetRepository(db),
		Snapshot:       NewSnapshotRepository(db),
		Evaluation:     NewEvaluationRepository(db),
		ActiveLearning: NewActiveLearningRepository(db),
		Feedback:       NewFeedbackRepository(db),
		User:           NewUserRepository(db),
	}
}

// NewMemoryRepositories 创建内存仓库，进程退出即丢失
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		Dataset:        NewMemoryDatasetRepository(),
		Snapshot:       NewMemorySnapshotRepository(),
		Evaluation:     NewMemoryEvaluationRepository(),
		ActiveLearning: NewMemoryActiveLearningRepository(),
		Feedback:       NewMemoryFeedbackRepository(),
		User:           NewMemoryUserRepository(),
	}
}

// translate 将 gorm 的未找到错误转换为 apperr.ErrNotFound
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Wrap(apperr.ErrNotFound, what+" not found", err)
	}
	return err
}

// notFound 构造未找到错误
func notFound(what string) error {
	return apperr.NotFound("%s not found", what)
}

// conflict 构造冲突错误
func conflict(what string) error {
	return apperr.New(apperr.ErrConflict, what+" already exists")
}
