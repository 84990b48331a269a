package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashwinyue/next-intent/internal/model"
)

// 内存仓库：与 gorm 实现语义一致，读写都做拷贝，调用方拿到的对象不与存储共享

// ========== Dataset ==========

type memoryDatasetRepository struct {
	mu       sync.RWMutex
	datasets map[string]*model.Dataset
	seq      map[string]int // 创建顺序，CreatedAt 相同时区分先后
	next     int
}

// NewMemoryDatasetRepository 创建内存数据集仓库
func NewMemoryDatasetRepository() DatasetRepository {
	return &memoryDatasetRepository{
		datasets: make(map[string]*model.Dataset),
		seq:      make(map[string]int),
	}
}

func (r *memoryDatasetRepository) Create(ctx context.Context, ds *model.Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ds.ID == "" {
		ds.ID = uuid.New().String()
	}
	now := time.Now()
	if ds.CreatedAt.IsZero() {
		ds.CreatedAt = now
	}
	ds.UpdatedAt = now
	for i := range ds.Examples {
		ds.Examples[i].DatasetID = ds.ID
		if ds.Examples[i].ID == "" {
			ds.Examples[i].ID = uuid.New().String()
		}
		if ds.Examples[i].CreatedAt.IsZero() {
			ds.Examples[i].CreatedAt = now
		}
	}
	r.datasets[ds.ID] = copyDataset(ds, true)
	r.next++
	r.seq[ds.ID] = r.next
	return nil
}

func (r *memoryDatasetRepository) GetByID(ctx context.Context, id string) (*model.Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, ok := r.datasets[id]
	if !ok {
		return nil, notFound("dataset")
	}
	return copyDataset(ds, true), nil
}

func (r *memoryDatasetRepository) GetActiveByWorkspace(ctx context.Context, workspaceID string) (*model.Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.Dataset
	for id, ds := range r.datasets {
		if ds.WorkspaceID != workspaceID || !ds.IsActive {
			continue
		}
		if latest == nil || ds.CreatedAt.After(latest.CreatedAt) ||
			(ds.CreatedAt.Equal(latest.CreatedAt) && r.seq[id] > r.seq[latest.ID]) {
			latest = ds
		}
	}
	if latest == nil {
		return nil, notFound("dataset")
	}
	return copyDataset(latest, true), nil
}

func (r *memoryDatasetRepository) List(ctx context.Context, workspaceID string, offset, limit int) ([]*model.Dataset, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*model.Dataset
	for _, ds := range r.datasets {
		if workspaceID == "" || ds.WorkspaceID == workspaceID {
			all = append(all, ds)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return r.seq[all[i].ID] > r.seq[all[j].ID]
	})

	page := paginate(all, offset, limit)
	out := make([]*model.Dataset, len(page))
	for i, ds := range page {
		out[i] = copyDataset(ds, false)
	}
	return out, int64(len(all)), nil
}

func (r *memoryDatasetRepository) AppendExample(ctx context.Context, ds *model.Dataset, ex *model.TrainingExample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.datasets[ds.ID]
	if !ok {
		return notFound("dataset")
	}
	if ex.ID == "" {
		ex.ID = uuid.New().String()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}
	ex.DatasetID = ds.ID
	stored.Examples = append(stored.Examples, *ex)
	stored.TotalSamples = ds.TotalSamples
	stored.UniqueIntents = append(model.StringList(nil), ds.UniqueIntents...)
	stored.IntentCounts = copyCounts(ds.IntentCounts)
	stored.LastModified = time.Now()
	stored.UpdatedAt = stored.LastModified
	return nil
}

func (r *memoryDatasetRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.datasets[id]; !ok {
		return notFound("dataset")
	}
	delete(r.datasets, id)
	delete(r.seq, id)
	return nil
}

func copyDataset(ds *model.Dataset, withExamples bool) *model.Dataset {
	cp := *ds
	cp.UniqueIntents = append(model.StringList(nil), ds.UniqueIntents...)
	cp.Tags = append(model.StringList(nil), ds.Tags...)
	cp.IntentCounts = copyCounts(ds.IntentCounts)
	if withExamples {
		cp.Examples = append([]model.TrainingExample(nil), ds.Examples...)
	} else {
		cp.Examples = nil
	}
	return &cp
}

func copyCounts(c model.IntentCounts) model.IntentCounts {
	if c == nil {
		return nil
	}
	cp := make(model.IntentCounts, len(c))
	for k, v := range c {
		cp[k] = v
	}
	return cp
}

// ========== Snapshot ==========

type memorySnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*model.ModelSnapshot
	highWater map[string]int // workspace -> 历史最大版本号
}

// NewMemorySnapshotRepository 创建内存模型版本仓库
func NewMemorySnapshotRepository() SnapshotRepository {
	return &memorySnapshotRepository{
		snapshots: make(map[string]*model.ModelSnapshot),
		highWater: make(map[string]int),
	}
}

func (r *memorySnapshotRepository) CreateActive(ctx context.Context, s *model.ModelSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.snapshots {
		if existing.WorkspaceID == s.WorkspaceID && existing.VersionNumber == s.VersionNumber {
			return conflict("model version number")
		}
	}
	if s.VersionNumber <= r.highWater[s.WorkspaceID] {
		return conflict("model version number")
	}

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	s.Status = model.SnapshotStatusActive

	for _, existing := range r.snapshots {
		if existing.WorkspaceID == s.WorkspaceID && existing.Status == model.SnapshotStatusActive {
			existing.Status = model.SnapshotStatusInactive
			existing.UpdatedAt = now
		}
	}
	r.snapshots[s.ID] = copySnapshot(s)
	r.highWater[s.WorkspaceID] = s.VersionNumber
	return nil
}

func (r *memorySnapshotRepository) GetByID(ctx context.Context, id string) (*model.ModelSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.snapshots[id]
	if !ok {
		return nil, notFound("model version")
	}
	return copySnapshot(s), nil
}

func (r *memorySnapshotRepository) GetActive(ctx context.Context, workspaceID string) (*model.ModelSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.snapshots {
		if s.WorkspaceID == workspaceID && s.Status == model.SnapshotStatusActive {
			return copySnapshot(s), nil
		}
	}
	return nil, nil
}

func (r *memorySnapshotRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.ModelSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []*model.ModelSnapshot
	for _, s := range r.snapshots {
		if s.WorkspaceID == workspaceID {
			list = append(list, copySnapshot(s))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].VersionNumber > list[j].VersionNumber })
	return list, nil
}

func (r *memorySnapshotRepository) ListAll(ctx context.Context) ([]*model.ModelSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*model.ModelSnapshot, 0, len(r.snapshots))
	for _, s := range r.snapshots {
		list = append(list, copySnapshot(s))
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].WorkspaceID != list[j].WorkspaceID {
			return list[i].WorkspaceID < list[j].WorkspaceID
		}
		return list[i].VersionNumber > list[j].VersionNumber
	})
	return list, nil
}

func (r *memorySnapshotRepository) MaxVersionNumber(ctx context.Context, workspaceID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.highWater[workspaceID], nil
}

func (r *memorySnapshotRepository) UpdateMetadata(ctx context.Context, s *model.ModelSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.snapshots[s.ID]
	if !ok {
		return notFound("model version")
	}
	stored.Description = s.Description
	stored.Tags = append(model.StringList(nil), s.Tags...)
	stored.UpdatedAt = s.UpdatedAt
	return nil
}

func (r *memorySnapshotRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.snapshots[id]; !ok {
		return notFound("model version")
	}
	delete(r.snapshots, id)
	return nil
}

func copySnapshot(s *model.ModelSnapshot) *model.ModelSnapshot {
	cp := *s
	cp.Intents = append(model.StringList(nil), s.Intents...)
	cp.Tags = append(model.StringList(nil), s.Tags...)
	cp.TrainingDataSample = append(model.ExampleList(nil), s.TrainingDataSample...)
	return &cp
}

// ========== Evaluation ==========

type memoryEvaluationRepository struct {
	mu      sync.RWMutex
	results map[string]*model.EvaluationResult
}

// NewMemoryEvaluationRepository 创建内存评估结果仓库
func NewMemoryEvaluationRepository() EvaluationRepository {
	return &memoryEvaluationRepository{results: make(map[string]*model.EvaluationResult)}
}

func (r *memoryEvaluationRepository) Create(ctx context.Context, result *model.EvaluationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	cp := *result
	r.results[result.ID] = &cp
	return nil
}

func (r *memoryEvaluationRepository) GetByID(ctx context.Context, id string) (*model.EvaluationResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result, ok := r.results[id]
	if !ok {
		return nil, notFound("evaluation")
	}
	cp := *result
	return &cp, nil
}

func (r *memoryEvaluationRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*model.EvaluationResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []*model.EvaluationResult
	for _, result := range r.results {
		if result.WorkspaceID == workspaceID {
			cp := *result
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Timestamp.After(list[j].Timestamp) })
	return list, nil
}

// ========== ActiveLearning ==========

type memoryActiveLearningRepository struct {
	mu      sync.RWMutex
	samples map[string]*model.ActiveLearningSample
}

// NewMemoryActiveLearningRepository 创建内存主动学习样本仓库
func NewMemoryActiveLearningRepository() ActiveLearningRepository {
	return &memoryActiveLearningRepository{samples: make(map[string]*model.ActiveLearningSample)}
}

func (r *memoryActiveLearningRepository) Create(ctx context.Context, s *model.ActiveLearningSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	r.samples[s.ID] = copySample(s)
	return nil
}

func (r *memoryActiveLearningRepository) GetByID(ctx context.Context, id string) (*model.ActiveLearningSample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.samples[id]
	if !ok {
		return nil, notFound("sample")
	}
	return copySample(s), nil
}

func (r *memoryActiveLearningRepository) FindOpen(ctx context.Context, workspaceID, text string) (*model.ActiveLearningSample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *model.ActiveLearningSample
	for _, s := range r.samples {
		if s.WorkspaceID != workspaceID || s.Text != text || !s.IsOpen() {
			continue
		}
		if found == nil || s.CreatedAt.Before(found.CreatedAt) {
			found = s
		}
	}
	if found == nil {
		return nil, nil
	}
	return copySample(found), nil
}

func (r *memoryActiveLearningRepository) List(ctx context.Context, f model.SampleFilter) ([]*model.ActiveLearningSample, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*model.ActiveLearningSample
	for _, s := range r.samples {
		if !matchSample(s, f) {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.Priority != "" && s.Priority != f.Priority {
			continue
		}
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return model.QueueLess(all[i], all[j]) })

	page := paginate(all, f.Offset, f.Limit)
	out := make([]*model.ActiveLearningSample, len(page))
	for i, s := range page {
		out[i] = copySample(s)
	}
	return out, int64(len(all)), nil
}

func (r *memoryActiveLearningRepository) Update(ctx context.Context, s *model.ActiveLearningSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.samples[s.ID]; !ok {
		return notFound("sample")
	}
	s.UpdatedAt = time.Now()
	r.samples[s.ID] = copySample(s)
	return nil
}

func (r *memoryActiveLearningRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.samples[id]; !ok {
		return notFound("sample")
	}
	delete(r.samples, id)
	return nil
}

func (r *memoryActiveLearningRepository) Stats(ctx context.Context, f model.SampleFilter) (map[model.SampleStatus]int64, map[model.SamplePriority]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make(map[model.SampleStatus]int64)
	priorities := make(map[model.SamplePriority]int64)
	for _, s := range r.samples {
		if !matchSample(s, f) {
			continue
		}
		statuses[s.Status]++
		priorities[s.Priority]++
	}
	return statuses, priorities, nil
}

func matchSample(s *model.ActiveLearningSample, f model.SampleFilter) bool {
	if f.WorkspaceID != "" && s.WorkspaceID != f.WorkspaceID {
		return false
	}
	if f.UserID != "" && s.UserID != f.UserID {
		return false
	}
	return true
}

func copySample(s *model.ActiveLearningSample) *model.ActiveLearningSample {
	cp := *s
	cp.Alternatives = append(model.AlternativeList(nil), s.Alternatives...)
	return &cp
}

// ========== Feedback ==========

type memoryFeedbackRepository struct {
	mu      sync.RWMutex
	records map[string]*model.FeedbackRecord
}

// NewMemoryFeedbackRepository 创建内存反馈仓库
func NewMemoryFeedbackRepository() FeedbackRepository {
	return &memoryFeedbackRepository{records: make(map[string]*model.FeedbackRecord)}
}

func (r *memoryFeedbackRepository) Create(ctx context.Context, f *model.FeedbackRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	cp := *f
	r.records[f.ID] = &cp
	return nil
}

func (r *memoryFeedbackRepository) GetByID(ctx context.Context, id string) (*model.FeedbackRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.records[id]
	if !ok {
		return nil, notFound("feedback")
	}
	cp := *f
	return &cp, nil
}

func (r *memoryFeedbackRepository) List(ctx context.Context, f model.FeedbackFilter) ([]*model.FeedbackRecord, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*model.FeedbackRecord
	for _, rec := range r.records {
		if f.WorkspaceID != "" && rec.WorkspaceID != f.WorkspaceID {
			continue
		}
		if f.UserID != "" && rec.UserID != f.UserID {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if f.Type != "" && rec.FeedbackType != f.Type {
			continue
		}
		all = append(all, rec)
	}
	sortFeedbackNewestFirst(all)

	page := paginate(all, f.Offset, f.Limit)
	out := make([]*model.FeedbackRecord, len(page))
	for i, rec := range page {
		cp := *rec
		out[i] = &cp
	}
	return out, int64(len(all)), nil
}

func (r *memoryFeedbackRepository) Update(ctx context.Context, f *model.FeedbackRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[f.ID]; !ok {
		return notFound("feedback")
	}
	f.UpdatedAt = time.Now()
	cp := *f
	r.records[f.ID] = &cp
	return nil
}

func (r *memoryFeedbackRepository) CountByStatus(ctx context.Context, workspaceID string) (map[model.FeedbackStatus]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[model.FeedbackStatus]int64)
	for _, rec := range r.records {
		if workspaceID == "" || rec.WorkspaceID == workspaceID {
			counts[rec.Status]++
		}
	}
	return counts, nil
}

func (r *memoryFeedbackRepository) SearchCorrections(ctx context.Context, workspaceID, text string, limit int) ([]*model.FeedbackRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(text)
	var matched []*model.FeedbackRecord
	for _, rec := range r.records {
		if rec.WorkspaceID != workspaceID {
			continue
		}
		if rec.Status != model.FeedbackStatusReviewed && rec.Status != model.FeedbackStatusApplied {
			continue
		}
		if !strings.Contains(strings.ToLower(rec.OriginalText), needle) {
			continue
		}
		matched = append(matched, rec)
	}
	sortFeedbackNewestFirst(matched)

	page := paginate(matched, 0, limit)
	out := make([]*model.FeedbackRecord, len(page))
	for i, rec := range page {
		cp := *rec
		out[i] = &cp
	}
	return out, nil
}

func sortFeedbackNewestFirst(list []*model.FeedbackRecord) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

// ========== User ==========

type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

// NewMemoryUserRepository 创建内存用户仓库
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[string]*model.User)}
}

func (r *memoryUserRepository) Create(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return conflict("user")
		}
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID == id })
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email == email })
}

func (r *memoryUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Username == username })
}

func (r *memoryUserRepository) Update(ctx context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; !ok {
		return notFound("user")
	}
	u.UpdatedAt = time.Now()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memoryUserRepository) find(match func(*model.User) bool) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, notFound("user")
}

// paginate 对已排序的切片分页，limit<=0 表示不限
func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
