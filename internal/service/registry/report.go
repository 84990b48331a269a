package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashwinyue/next-intent/internal/apperr"
	"github.com/ashwinyue/next-intent/internal/model"
)

// VersionSummary 对比中的版本摘要
type VersionSummary struct {
	ID               string                  `json:"id"`
	WorkspaceID      string                  `json:"workspaceId"`
	VersionNumber    int                     `json:"versionNumber"`
	CreatedAt        time.Time               `json:"createdAt"`
	Status           model.SnapshotStatus    `json:"status"`
	Intents          []string                `json:"intents"`
	TrainingExamples int                     `json:"trainingExamples"`
	EvaluationResult *model.EvaluationResult `json:"evaluationResult,omitempty"`
	Description      string                  `json:"description"`
	Tags             []string                `json:"tags"`
	CreatedBy        string                  `json:"createdBy"`
}

func summarize(s *model.ModelSnapshot) VersionSummary {
	return VersionSummary{
		ID:               s.ID,
		WorkspaceID:      s.WorkspaceID,
		VersionNumber:    s.VersionNumber,
		CreatedAt:        s.CreatedAt,
		Status:           s.Status,
		Intents:          s.Intents,
		TrainingExamples: s.TrainingExampleCount,
		EvaluationResult: s.EvaluationResult,
		Description:      s.Description,
		Tags:             s.Tags,
		CreatedBy:        s.CreatedBy,
	}
}

// ComparisonSummary 对比汇总
type ComparisonSummary struct {
	TotalVersions  int            `json:"totalVersions"`
	ActiveVersions int            `json:"activeVersions"`
	LatestVersion  VersionSummary `json:"latestVersion"`
}

// PerformanceComparison 带评估结果的版本中表现最好的
type PerformanceComparison struct {
	BestAccuracy VersionSummary `json:"bestAccuracy"`
	BestF1Score  VersionSummary `json:"bestF1Score"`
}

// Comparison 版本对比结果
type Comparison struct {
	Timestamp             time.Time              `json:"timestamp"`
	Versions              []VersionSummary       `json:"versions"`
	Summary               ComparisonSummary      `json:"summary"`
	PerformanceComparison *PerformanceComparison `json:"performanceComparison,omitempty"`
}

// CompareVersions 对比多个版本，未知 id 被跳过
// 至少两个版本带评估结果时给出表现对比，指标相同取先出现的
func (s *Service) CompareVersions(ctx context.Context, ids []string) (*Comparison, error) {
	var versions []*model.ModelSnapshot
	for _, id := range ids {
		snap, err := s.GetVersion(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		versions = append(versions, snap)
	}
	if len(versions) < 2 {
		return nil, ErrInsufficientVersions
	}

	cmp := &Comparison{
		Timestamp: time.Now(),
		Versions:  make([]VersionSummary, 0, len(versions)),
	}
	latest := versions[0]
	var evaluated []*model.ModelSnapshot
	for _, v := range versions {
		cmp.Versions = append(cmp.Versions, summarize(v))
		if v.IsActive() {
			cmp.Summary.ActiveVersions++
		}
		if v.CreatedAt.After(latest.CreatedAt) {
			latest = v
		}
		if v.EvaluationResult != nil {
			evaluated = append(evaluated, v)
		}
	}
	cmp.Summary.TotalVersions = len(versions)
	cmp.Summary.LatestVersion = summarize(latest)

	if len(evaluated) >= 2 {
		bestAcc, bestF1 := evaluated[0], evaluated[0]
		for _, v := range evaluated[1:] {
			if v.EvaluationResult.Metrics.Accuracy > bestAcc.EvaluationResult.Metrics.Accuracy {
				bestAcc = v
			}
			if v.EvaluationResult.Metrics.F1Score > bestF1.EvaluationResult.Metrics.F1Score {
				bestF1 = v
			}
		}
		cmp.PerformanceComparison = &PerformanceComparison{
			BestAccuracy: summarize(bestAcc),
			BestF1Score:  summarize(bestF1),
		}
	}
	return cmp, nil
}

// ModelDataExport 导出文档中的模型部分
type ModelDataExport struct {
	ModelID          string                  `json:"modelId"`
	Intents          []string                `json:"intents"`
	TrainingExamples int                     `json:"trainingExamples"`
	TrainingData     []model.TrainingExample `json:"trainingData"`
}

// MetadataExport 导出文档中的元数据部分
type MetadataExport struct {
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	CreatedBy   string    `json:"createdBy"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ExportDocument 版本的完整导出文档
type ExportDocument struct {
	VersionID         string                  `json:"versionId"`
	WorkspaceID       string                  `json:"workspaceId"`
	VersionNumber     int                     `json:"versionNumber"`
	CreatedAt         time.Time               `json:"createdAt"`
	Status            model.SnapshotStatus    `json:"status"`
	ModelData         ModelDataExport         `json:"modelData"`
	EvaluationResults *model.EvaluationResult `json:"evaluationResults"`
	Metadata          MetadataExport          `json:"metadata"`
}

// Export 导出版本
func (s *Service) Export(ctx context.Context, id string) (*ExportDocument, error) {
	snap, err := s.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ExportDocument{
		VersionID:     snap.ID,
		WorkspaceID:   snap.WorkspaceID,
		VersionNumber: snap.VersionNumber,
		CreatedAt:     snap.CreatedAt,
		Status:        snap.Status,
		ModelData: ModelDataExport{
			ModelID:          snap.ModelID,
			Intents:          snap.Intents,
			TrainingExamples: snap.TrainingExampleCount,
			TrainingData:     snap.TrainingDataSample,
		},
		EvaluationResults: snap.EvaluationResult,
		Metadata: MetadataExport{
			Description: snap.Description,
			Tags:        snap.Tags,
			CreatedBy:   snap.CreatedBy,
			UpdatedAt:   snap.UpdatedAt,
		},
	}, nil
}

// Statistics 版本统计
type Statistics struct {
	TotalVersions           int     `json:"totalVersions"`
	ActiveVersions          int     `json:"activeVersions"`
	InactiveVersions        int     `json:"inactiveVersions"`
	Workspaces              int     `json:"workspaces"`
	AverageIntents          float64 `json:"averageIntents"`
	AverageTrainingExamples float64 `json:"averageTrainingExamples"`
}

// Statistics 统计版本；workspaceID 为空时统计全部 workspace
func (s *Service) Statistics(ctx context.Context, workspaceID string) (*Statistics, error) {
	var (
		versions []*model.ModelSnapshot
		err      error
	)
	if workspaceID != "" {
		versions, err = s.repo.ListByWorkspace(ctx, workspaceID)
	} else {
		versions, err = s.repo.ListAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model versions: %w", err)
	}

	stats := &Statistics{TotalVersions: len(versions)}
	workspaces := make(map[string]struct{})
	intents, examples := 0, 0
	for _, v := range versions {
		if v.IsActive() {
			stats.ActiveVersions++
		} else {
			stats.InactiveVersions++
		}
		workspaces[v.WorkspaceID] = struct{}{}
		intents += len(v.Intents)
		examples += v.TrainingExampleCount
	}
	stats.Workspaces = len(workspaces)
	if len(versions) > 0 {
		stats.AverageIntents = float64(intents) / float64(len(versions))
		stats.AverageTrainingExamples = float64(examples) / float64(len(versions))
	}
	return stats, nil
}
