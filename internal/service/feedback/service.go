// Package feedback 收集用户对预测结果的纠正，并把审核通过的纠正合并回训练数据
package feedback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ashwinyue/next-intent/internal/apperr"
	"github.com/ashwinyue/next-intent/internal/config"
	"github.com/ashwinyue/next-intent/internal/metrics"
	"github.com/ashwinyue/next-intent/internal/model"
	"github.com/ashwinyue/next-intent/internal/repository"
	"github.com/ashwinyue/next-intent/internal/service/dataset"
	"github.com/ashwinyue/next-intent/internal/validation"
)

// ErrFeedbackNotFound 反馈不存在
var ErrFeedbackNotFound = apperr.New(apperr.ErrNotFound, "feedback not found")

// DatasetAppender 向 workspace 的生效数据集追加样本
type DatasetAppender interface {
	AppendExample(ctx context.Context, workspaceID, text, intent, annotatedBy string) (*dataset.AppendResult, error)
}

// Invalidator 使 workspace 的分类缓存失效
type Invalidator interface {
	Invalidate(ctx context.Context, workspaceID string)
}

// Service 反馈服务
type Service struct {
	repo        repository.FeedbackRepository
	users       repository.UserRepository
	datasets    DatasetAppender
	invalidator Invalidator
	cfg         config.FeedbackConfig
	logger      *zap.Logger
}

// NewService 创建反馈服务，users 与 invalidator 可为 nil
func NewService(
	repo repository.FeedbackRepository,
	users repository.UserRepository,
	datasets DatasetAppender,
	invalidator Invalidator,
	cfg config.FeedbackConfig,
	logger *zap.Logger,
) *Service {
	if cfg.SuggestionLimit <= 0 {
		cfg.SuggestionLimit = 10
	}
	return &Service{
		repo:        repo,
		users:       users,
		datasets:    datasets,
		invalidator: invalidator,
		cfg:         cfg,
		logger:      logger.Named("feedback"),
	}
}

// SubmitRequest 提交反馈
type SubmitRequest struct {
	WorkspaceID        string             `json:"workspaceId" validate:"notblank,max=255"`
	OriginalText       string             `json:"originalText" validate:"notblank"`
	OriginalIntent     string             `json:"originalIntent" validate:"notblank,max=255"`
	OriginalConfidence *float64           `json:"originalConfidence" validate:"required,gte=0,lte=1"`
	CorrectedIntent    string             `json:"correctedIntent" validate:"notblank,max=255"`
	FeedbackType       model.FeedbackType `json:"feedbackType" validate:"omitempty,oneof=correction suggestion complaint"`
	FeedbackText       string             `json:"feedbackText" validate:"max=500"`
	Confidence         int                `json:"confidence" validate:"gte=0,lte=5"`
}

// Submit 提交反馈，初始状态为 pending
func (s *Service) Submit(ctx context.Context, actor model.Actor, req *SubmitRequest) (*model.FeedbackRecord, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	feedbackType := req.FeedbackType
	if feedbackType == "" {
		feedbackType = model.FeedbackTypeCorrection
	}

	rec := &model.FeedbackRecord{
		UserID:             actor.UserID,
		WorkspaceID:        strings.TrimSpace(req.WorkspaceID),
		OriginalText:       strings.TrimSpace(req.OriginalText),
		OriginalIntent:     strings.TrimSpace(req.OriginalIntent),
		OriginalConfidence: *req.OriginalConfidence,
		CorrectedIntent:    strings.TrimSpace(req.CorrectedIntent),
		FeedbackType:       feedbackType,
		FeedbackText:       req.FeedbackText,
		Confidence:         req.Confidence,
		Status:             model.FeedbackStatusPending,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}

	metrics.FeedbackTotal.WithLabelValues(string(feedbackType)).Inc()
	s.logger.Info("feedback submitted",
		zap.String("feedback_id", rec.ID),
		zap.String("workspace_id", rec.WorkspaceID),
		zap.String("original_intent", rec.OriginalIntent),
		zap.String("corrected_intent", rec.CorrectedIntent),
	)
	return rec, nil
}

// ListFilter 反馈查询条件
type ListFilter struct {
	WorkspaceID string
	Status      model.FeedbackStatus
	Type        model.FeedbackType
	Page        int
	Limit       int
}

// ListResult 反馈分页结果
type ListResult struct {
	Feedbacks   []*model.FeedbackRecord `json:"feedbacks"`
	Total       int64                   `json:"total"`
	TotalPages  int                     `json:"totalPages"`
	CurrentPage int                     `json:"currentPage"`
}

// ListForUser 列出操作者自己提交的反馈
func (s *Service) ListForUser(ctx context.Context, actor model.Actor, f ListFilter) (*ListResult, error) {
	return s.list(ctx, actor.UserID, f)
}

// ListAll 列出全部反馈（仅管理员）
func (s *Service) ListAll(ctx context.Context, actor model.Actor, f ListFilter) (*ListResult, error) {
	if !actor.IsAdmin() {
		return nil, apperr.PermissionDenied("admin role required")
	}
	return s.list(ctx, "", f)
}

func (s *Service) list(ctx context.Context, userID string, f ListFilter) (*ListResult, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 10
	}
	records, total, err := s.repo.List(ctx, model.FeedbackFilter{
		WorkspaceID: f.WorkspaceID,
		UserID:      userID,
		Status:      f.Status,
		Type:        f.Type,
		Offset:      (f.Page - 1) * f.Limit,
		Limit:       f.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return &ListResult{
		Feedbacks:   records,
		Total:       total,
		TotalPages:  int((total + int64(f.Limit) - 1) / int64(f.Limit)),
		CurrentPage: f.Page,
	}, nil
}

// Get 获取反馈
func (s *Service) Get(ctx context.Context, id string) (*model.FeedbackRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrFeedbackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return rec, nil
}

// ReviewRequest 审核请求
type ReviewRequest struct {
	Status       model.FeedbackStatus `json:"status" validate:"required"`
	FeedbackText string               `json:"feedbackText" validate:"max=500"`
}

// Review 审核反馈（仅管理员），记录审核人与时间
func (s *Service) Review(ctx context.Context, actor model.Actor, id string, req *ReviewRequest) (*model.FeedbackRecord, error) {
	if !actor.IsAdmin() {
		return nil, apperr.PermissionDenied("admin role required")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if !model.ValidFeedbackStatus(req.Status) {
		return nil, apperr.Validation("invalid status %q", req.Status)
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	rec.Status = req.Status
	rec.ReviewedBy = actor.UserID
	rec.ReviewedAt = &now
	if req.FeedbackText != "" {
		rec.FeedbackText = req.FeedbackText
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to review feedback: %w", err)
	}
	return rec, nil
}

// MarkRetrained 标记反馈已应用（仅管理员），纠正的意图合并进训练数据
func (s *Service) MarkRetrained(ctx context.Context, actor model.Actor, id string) (*model.FeedbackRecord, error) {
	if !actor.IsAdmin() {
		return nil, apperr.PermissionDenied("admin role required")
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.MergeIntoDataset(ctx, rec.OriginalText, rec.CorrectedIntent, rec.WorkspaceID, actor); err != nil {
		return nil, err
	}

	now := time.Now()
	rec.Status = model.FeedbackStatusApplied
	rec.IsRetrained = true
	rec.RetrainedAt = &now
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to mark feedback retrained: %w", err)
	}
	return rec, nil
}

// MergeIntoDataset 把纠正后的样本追加到 workspace 的训练数据
// 实际写入时使分类缓存失效，下一次预测会重新分组
func (s *Service) MergeIntoDataset(ctx context.Context, text, intent, workspaceID string, actor model.Actor) (*dataset.AppendResult, error) {
	result, err := s.datasets.AppendExample(ctx, workspaceID, text, intent, actor.UserID)
	if err != nil {
		return nil, err
	}
	if result.Merged && s.invalidator != nil {
		s.invalidator.Invalidate(ctx, workspaceID)
	}
	return result, nil
}

// Example 建议中引用的历史纠正
type Example struct {
	Text        string    `json:"text"`
	CorrectedBy string    `json:"correctedBy"`
	CorrectedAt time.Time `json:"correctedAt"`
}

// Suggestion 基于历史纠正的意图建议
type Suggestion struct {
	Intent     string    `json:"intent"`
	Count      int       `json:"count"`
	Confidence float64   `json:"confidence"`
	Examples   []Example `json:"examples"`
}

// Suggestions 意图建议结果
type Suggestions struct {
	Text           string       `json:"text"`
	Suggestions    []Suggestion `json:"suggestions"`
	TotalFeedbacks int          `json:"totalFeedbacks"`
}

// SuggestIntents 在已审核的纠正中查找原文包含 text 的记录，按纠正后的意图分组
// confidence = count / 匹配总数，按 count 倒序，count 相同时保持首次出现的顺序
func (s *Service) SuggestIntents(ctx context.Context, text, workspaceID string) (*Suggestions, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.TrimSpace(workspaceID) == "" {
		return nil, apperr.Validation("text and workspaceId are required")
	}

	records, err := s.repo.SearchCorrections(ctx, workspaceID, text, s.cfg.SuggestionLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search feedback: %w", err)
	}

	out := &Suggestions{Text: text, Suggestions: []Suggestion{}, TotalFeedbacks: len(records)}
	if len(records) == 0 {
		return out, nil
	}

	index := make(map[string]int)
	names := make(map[string]string)
	for _, rec := range records {
		i, ok := index[rec.CorrectedIntent]
		if !ok {
			i = len(out.Suggestions)
			index[rec.CorrectedIntent] = i
			out.Suggestions = append(out.Suggestions, Suggestion{Intent: rec.CorrectedIntent})
		}
		sg := &out.Suggestions[i]
		sg.Count++
		sg.Examples = append(sg.Examples, Example{
			Text:        rec.OriginalText,
			CorrectedBy: s.username(ctx, names, rec.UserID),
			CorrectedAt: rec.CreatedAt,
		})
	}

	total := float64(len(records))
	for i := range out.Suggestions {
		out.Suggestions[i].Confidence = float64(out.Suggestions[i].Count) / total
	}
	sort.SliceStable(out.Suggestions, func(i, j int) bool {
		return out.Suggestions[i].Count > out.Suggestions[j].Count
	})
	return out, nil
}

func (s *Service) username(ctx context.Context, cache map[string]string, userID string) string {
	if name, ok := cache[userID]; ok {
		return name
	}
	name := "Unknown"
	if s.users != nil && userID != "" {
		if u, err := s.users.GetByID(ctx, userID); err == nil {
			name = u.Username
		}
	}
	cache[userID] = name
	return name
}

// Stats 反馈统计
type Stats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Reviewed int64 `json:"reviewed"`
	Applied  int64 `json:"applied"`
	Rejected int64 `json:"rejected"`
}

// Stats 按状态统计，workspaceID 为空时统计全部
func (s *Service) Stats(ctx context.Context, workspaceID string) (*Stats, error) {
	counts, err := s.repo.CountByStatus(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to count feedback: %w", err)
	}
	st := &Stats{
		Pending:  counts[model.FeedbackStatusPending],
		Reviewed: counts[model.FeedbackStatusReviewed],
		Applied:  counts[model.FeedbackStatusApplied],
		Rejected: counts[model.FeedbackStatusRejected],
	}
	for _, n := range counts {
		st.Total += n
	}
	return st, nil
}
