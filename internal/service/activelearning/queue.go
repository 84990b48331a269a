// Package activelearning 维护待人工标注的低置信度预测队列
package activelearning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ashwinyue/next-intent/internal/apperr"
	"github.com/ashwinyue/next-intent/internal/lock"
	"github.com/ashwinyue/next-intent/internal/metrics"
	"github.com/ashwinyue/next-intent/internal/model"
	"github.com/ashwinyue/next-intent/internal/repository"
	"github.com/ashwinyue/next-intent/internal/service/dataset"
	"github.com/ashwinyue/next-intent/internal/validation"
)

// ErrSampleNotFound 样本不存在
var ErrSampleNotFound = apperr.New(apperr.ErrNotFound, "sample not found")

// Merger 把已标注的样本合并进训练数据
type Merger interface {
	MergeIntoDataset(ctx context.Context, text, intent, workspaceID string, actor model.Actor) (*dataset.AppendResult, error)
}

// Queue 主动学习队列
type Queue struct {
	repo   repository.ActiveLearningRepository
	merger Merger
	locks  *lock.Keyed
	logger *zap.Logger
}

// NewQueue 创建主动学习队列
func NewQueue(repo repository.ActiveLearningRepository, merger Merger, logger *zap.Logger) *Queue {
	return &Queue{
		repo:   repo,
		merger: merger,
		locks:  lock.NewKeyed(),
		logger: logger.Named("active_learning"),
	}
}

// Enqueue 将不确定的预测加入队列
// 同一 workspace 已有相同文本的 pending/reviewed 样本时返回已有样本，created 为 false
func (q *Queue) Enqueue(ctx context.Context, pred *model.PredictionResult, userID string) (*model.ActiveLearningSample, bool, error) {
	if pred == nil || strings.TrimSpace(pred.Text) == "" || pred.WorkspaceID == "" {
		return nil, false, apperr.Validation("prediction with text and workspaceId is required")
	}
	return q.enqueue(ctx, &model.ActiveLearningSample{
		Text:             pred.Text,
		PredictedIntent:  pred.PredictedIntent,
		Confidence:       pred.Confidence,
		UncertaintyScore: pred.UncertaintyScore,
		Alternatives:     append(model.AlternativeList(nil), pred.Alternatives...),
		WorkspaceID:      pred.WorkspaceID,
		UserID:           userID,
		ModelID:          pred.ModelID,
		Priority:         model.PriorityForUncertainty(pred.UncertaintyScore),
	})
}

// AddRequest 手动加入样本
type AddRequest struct {
	WorkspaceID      string               `json:"workspaceId" validate:"notblank,max=255"`
	Text             string               `json:"text" validate:"notblank"`
	PredictedIntent  string               `json:"predictedIntent" validate:"notblank,max=255"`
	Confidence       *float64             `json:"confidence" validate:"required,gte=0,lte=1"`
	UncertaintyScore *float64             `json:"uncertaintyScore" validate:"required,gte=0,lte=1"`
	Priority         model.SamplePriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

// Add 手动加入样本，未指定优先级时按不确定度计算
func (q *Queue) Add(ctx context.Context, actor model.Actor, req *AddRequest) (*model.ActiveLearningSample, bool, error) {
	if err := validation.Struct(req); err != nil {
		return nil, false, err
	}
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityForUncertainty(*req.UncertaintyScore)
	}
	return q.enqueue(ctx, &model.ActiveLearningSample{
		Text:             strings.TrimSpace(req.Text),
		PredictedIntent:  strings.TrimSpace(req.PredictedIntent),
		Confidence:       *req.Confidence,
		UncertaintyScore: *req.UncertaintyScore,
		WorkspaceID:      strings.TrimSpace(req.WorkspaceID),
		UserID:           actor.UserID,
		Priority:         priority,
	})
}

func (q *Queue) enqueue(ctx context.Context, sample *model.ActiveLearningSample) (*model.ActiveLearningSample, bool, error) {
	unlock := q.locks.Lock(sample.WorkspaceID)
	defer unlock()

	existing, err := q.repo.FindOpen(ctx, sample.WorkspaceID, sample.Text)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up sample: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	sample.Status = model.SampleStatusPending
	if err := q.repo.Create(ctx, sample); err != nil {
		return nil, false, fmt.Errorf("failed to enqueue sample: %w", err)
	}

	metrics.ActiveLearningEnqueued.WithLabelValues(string(sample.Priority)).Inc()
	q.logger.Debug("sample enqueued",
		zap.String("sample_id", sample.ID),
		zap.String("workspace_id", sample.WorkspaceID),
		zap.String("priority", string(sample.Priority)),
		zap.Float64("uncertainty", sample.UncertaintyScore),
	)
	return sample, true, nil
}

// StatusAll 列表查询时不按状态过滤
const StatusAll model.SampleStatus = "all"

// ListFilter 队列查询条件
type ListFilter struct {
	WorkspaceID string
	UserID      string
	Status      model.SampleStatus // 为空时默认 pending，StatusAll 表示全部
	Priority    model.SamplePriority
	Page        int
	Limit       int
}

// ListResult 队列分页结果
type ListResult struct {
	Samples     []*model.ActiveLearningSample `json:"samples"`
	Total       int64                         `json:"total"`
	TotalPages  int                           `json:"totalPages"`
	CurrentPage int                           `json:"currentPage"`
}

// List 按队列顺序列出样本，非管理员只能看到自己的样本
func (q *Queue) List(ctx context.Context, actor model.Actor, f ListFilter) (*ListResult, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 10
	}
	status := f.Status
	switch status {
	case "":
		status = model.SampleStatusPending
	case StatusAll:
		status = ""
	}
	userID := f.UserID
	if !actor.IsAdmin() {
		userID = actor.UserID
	}

	samples, total, err := q.repo.List(ctx, model.SampleFilter{
		WorkspaceID: f.WorkspaceID,
		UserID:      userID,
		Status:      status,
		Priority:    f.Priority,
		Offset:      (f.Page - 1) * f.Limit,
		Limit:       f.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	return &ListResult{
		Samples:     samples,
		Total:       total,
		TotalPages:  int((total + int64(f.Limit) - 1) / int64(f.Limit)),
		CurrentPage: f.Page,
	}, nil
}

// Get 获取样本
func (q *Queue) Get(ctx context.Context, id string) (*model.ActiveLearningSample, error) {
	s, err := q.repo.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrSampleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sample: %w", err)
	}
	return s, nil
}

// AnnotateRequest 标注请求
type AnnotateRequest struct {
	CorrectIntent   string               `json:"correctIntent" validate:"notblank,max=255"`
	AnnotationNotes string               `json:"annotationNotes" validate:"max=1000"`
	Priority        model.SamplePriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

// Annotate 标注样本，样本提交者或管理员可操作；已用于重训的样本不可再标注
func (q *Queue) Annotate(ctx context.Context, actor model.Actor, id string, req *AnnotateRequest) (*model.ActiveLearningSample, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	s, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(s.UserID) {
		return nil, apperr.PermissionDenied("not allowed to annotate sample %s", id)
	}
	if s.Status == model.SampleStatusRetrained {
		return nil, apperr.New(apperr.ErrConflict, "retrained samples cannot be annotated")
	}

	now := time.Now()
	s.CorrectIntent = strings.TrimSpace(req.CorrectIntent)
	s.Status = model.SampleStatusAnnotated
	s.AnnotatedBy = actor.UserID
	s.AnnotatedAt = &now
	if req.AnnotationNotes != "" {
		s.AnnotationNotes = req.AnnotationNotes
	}
	if req.Priority != "" {
		s.Priority = req.Priority
	}

	if err := q.repo.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to annotate sample: %w", err)
	}
	return s, nil
}

// MarkReviewed 将 pending 样本标记为已复核，仍参与去重
func (q *Queue) MarkReviewed(ctx context.Context, actor model.Actor, id string) (*model.ActiveLearningSample, error) {
	s, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(s.UserID) {
		return nil, apperr.PermissionDenied("not allowed to review sample %s", id)
	}
	if s.Status != model.SampleStatusPending {
		return nil, apperr.New(apperr.ErrConflict, "only pending samples can be marked reviewed")
	}
	s.Status = model.SampleStatusReviewed
	if err := q.repo.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to review sample: %w", err)
	}
	return s, nil
}

// Annotation 批量标注中的一项
type Annotation struct {
	SampleID string `json:"sampleId"`
	AnnotateRequest
}

// BatchResult 批量标注中单项的结果
type BatchResult struct {
	SampleID string `json:"sampleId"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// BatchAnnotate 逐项标注，单项失败不影响其他项
func (q *Queue) BatchAnnotate(ctx context.Context, actor model.Actor, items []Annotation) ([]BatchResult, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("annotations are required")
	}
	results := make([]BatchResult, 0, len(items))
	for _, item := range items {
		req := item.AnnotateRequest
		_, err := q.Annotate(ctx, actor, item.SampleID, &req)
		r := BatchResult{SampleID: item.SampleID, Success: err == nil}
		if err != nil {
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	return results, nil
}

// MarkRetrained 标记样本已用于重训（仅管理员）
// 已标注正确意图的样本会先合并进 workspace 的训练数据
func (q *Queue) MarkRetrained(ctx context.Context, actor model.Actor, id string) (*model.ActiveLearningSample, error) {
	if !actor.IsAdmin() {
		return nil, apperr.PermissionDenied("admin role required")
	}
	s, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.CorrectIntent != "" && q.merger != nil {
		if _, err := q.merger.MergeIntoDataset(ctx, s.Text, s.CorrectIntent, s.WorkspaceID, actor); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	s.IsRetrained = true
	s.RetrainedAt = &now
	s.Status = model.SampleStatusRetrained
	if err := q.repo.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to mark sample retrained: %w", err)
	}

	q.logger.Info("sample marked retrained",
		zap.String("sample_id", id),
		zap.String("workspace_id", s.WorkspaceID),
		zap.String("correct_intent", s.CorrectIntent),
	)
	return s, nil
}

// Stats 队列统计
type Stats struct {
	Total         int64                          `json:"total"`
	Pending       int64                          `json:"pending"`
	Annotated     int64                          `json:"annotated"`
	Reviewed      int64                          `json:"reviewed"`
	Retrained     int64                          `json:"retrained"`
	StatusStats   map[model.SampleStatus]int64   `json:"statusStats"`
	PriorityStats map[model.SamplePriority]int64 `json:"priorityStats"`
}

// Stats 统计样本，非管理员只统计自己的样本
func (q *Queue) Stats(ctx context.Context, actor model.Actor, workspaceID string) (*Stats, error) {
	f := model.SampleFilter{WorkspaceID: workspaceID}
	if !actor.IsAdmin() {
		f.UserID = actor.UserID
	}
	statuses, priorities, err := q.repo.Stats(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to compute queue stats: %w", err)
	}

	st := &Stats{
		Pending:       statuses[model.SampleStatusPending],
		Annotated:     statuses[model.SampleStatusAnnotated],
		Reviewed:      statuses[model.SampleStatusReviewed],
		Retrained:     statuses[model.SampleStatusRetrained],
		StatusStats:   statuses,
		PriorityStats: priorities,
	}
	for _, n := range statuses {
		st.Total += n
	}
	return st, nil
}

// Delete 删除样本，样本提交者或管理员可操作
func (q *Queue) Delete(ctx context.Context, actor model.Actor, id string) error {
	s, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanAccess(s.UserID) {
		return apperr.PermissionDenied("not allowed to delete sample %s", id)
	}
	if err := q.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete sample: %w", err)
	}
	return nil
}
