package activelearning

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-intent/internal/apperr"
	"github.com/ashwinyue/next-intent/internal/model"
	"github.com/ashwinyue/next-intent/internal/repository"
	"github.com/ashwinyue/next-intent/internal/service/dataset"
)

var (
	admin = model.Actor{UserID: "admin-1", Role: model.RoleAdmin}
	alice = model.Actor{UserID: "alice-1", Role: model.RoleUser}
	bob   = model.Actor{UserID: "bob-1", Role: model.RoleUser}
)

type merge struct {
	text, intent, workspaceID string
}

type fakeMerger struct {
	mu     sync.Mutex
	merges []merge
	err    error
}

func (m *fakeMerger) MergeIntoDataset(_ context.Context, text, intent, ws string, _ model.Actor) (*dataset.AppendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.merges = append(m.merges, merge{text, intent, ws})
	return &dataset.AppendResult{Text: text, Intent: intent, Merged: true}, nil
}

func newTestQueue() (*Queue, *fakeMerger) {
	m := &fakeMerger{}
	return NewQueue(repository.NewMemoryActiveLearningRepository(), m, zap.NewNop()), m
}

func prediction(text string, uncertainty float64) *model.PredictionResult {
	return &model.PredictionResult{
		Text:             text,
		PredictedIntent:  "greet",
		Confidence:       1 - uncertainty,
		UncertaintyScore: uncertainty,
		Alternatives:     []model.Alternative{{Intent: "bye", Confidence: 0.1}},
		IsUncertain:      uncertainty > 0.8,
		WorkspaceID:      "ws",
		ModelID:          "m",
	}
}

func TestQueue_EnqueueDeduplicates(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	first, created, err := q.Enqueue(ctx, prediction("what is this", 0.9), alice.UserID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.SampleStatusPending, first.Status)
	assert.Equal(t, model.PriorityUrgent, first.Priority)
	assert.Len(t, first.Alternatives, 1)

	again, created, err := q.Enqueue(ctx, prediction("what is this", 0.95), bob.UserID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	// 不同 workspace 不去重
	other := prediction("what is this", 0.9)
	other.WorkspaceID = "other"
	_, created, err = q.Enqueue(ctx, other, alice.UserID)
	require.NoError(t, err)
	assert.True(t, created)

	_, _, err = q.Enqueue(ctx, &model.PredictionResult{WorkspaceID: "ws"}, alice.UserID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestQueue_ConcurrentEnqueueCreatesOne(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := q.Enqueue(ctx, prediction("same text", 0.9), alice.UserID)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestQueue_EnqueueAfterAnnotateCreatesNew(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	s, _, err := q.Enqueue(ctx, prediction("hmm", 0.9), alice.UserID)
	require.NoError(t, err)
	_, err = q.Annotate(ctx, alice, s.ID, &AnnotateRequest{CorrectIntent: "greet"})
	require.NoError(t, err)

	next, created, err := q.Enqueue(ctx, prediction("hmm", 0.9), alice.UserID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, s.ID, next.ID)
}

func TestQueue_PriorityMapping(t *testing.T) {
	tests := []struct {
		uncertainty float64
		want        model.SamplePriority
	}{
		{0.95, model.PriorityUrgent},
		{0.81, model.PriorityUrgent},
		{0.8, model.PriorityHigh},
		{0.61, model.PriorityHigh},
		{0.6, model.PriorityMedium},
		{0.3, model.PriorityMedium},
		{0.29, model.PriorityLow},
	}
	q, _ := newTestQueue()
	ctx := context.Background()
	for i, tt := range tests {
		s, _, err := q.Enqueue(ctx, prediction(string(rune('a'+i)), tt.uncertainty), alice.UserID)
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.Priority, "uncertainty %v", tt.uncertainty)
	}
}

func TestQueue_ListOrderingAndScope(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	for _, in := range []struct {
		text        string
		uncertainty float64
		user        string
	}{
		{"low", 0.1, alice.UserID},
		{"urgent-a", 0.85, alice.UserID},
		{"urgent-b", 0.95, bob.UserID},
		{"medium", 0.5, alice.UserID},
		{"high", 0.7, bob.UserID},
	} {
		_, _, err := q.Enqueue(ctx, prediction(in.text, in.uncertainty), in.user)
		require.NoError(t, err)
	}

	res, err := q.List(ctx, admin, ListFilter{})
	require.NoError(t, err)
	texts := make([]string, 0, len(res.Samples))
	for _, s := range res.Samples {
		texts = append(texts, s.Text)
	}
	assert.Equal(t, []string{"urgent-b", "urgent-a", "high", "medium", "low"}, texts)
	assert.Equal(t, int64(5), res.Total)

	mine, err := q.List(ctx, alice, ListFilter{UserID: bob.UserID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), mine.Total)
	for _, s := range mine.Samples {
		assert.Equal(t, alice.UserID, s.UserID)
	}

	paged, err := q.List(ctx, admin, ListFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, paged.TotalPages)
	assert.Equal(t, 2, paged.CurrentPage)
	require.Len(t, paged.Samples, 2)
	assert.Equal(t, "high", paged.Samples[0].Text)

	urgent, err := q.List(ctx, admin, ListFilter{Priority: model.PriorityUrgent})
	require.NoError(t, err)
	assert.Equal(t, int64(2), urgent.Total)
}

func TestQueue_ListDefaultsToPending(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	s, _, err := q.Enqueue(ctx, prediction("one", 0.9), alice.UserID)
	require.NoError(t, err)
	_, _, err = q.Enqueue(ctx, prediction("two", 0.9), alice.UserID)
	require.NoError(t, err)
	_, err = q.Annotate(ctx, alice, s.ID, &AnnotateRequest{CorrectIntent: "x"})
	require.NoError(t, err)

	pending, err := q.List(ctx, alice, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Total)

	all, err := q.List(ctx, alice, ListFilter{Status: StatusAll})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)

	annotated, err := q.List(ctx, alice, ListFilter{Status: model.SampleStatusAnnotated})
	require.NoError(t, err)
	assert.Equal(t, int64(1), annotated.Total)
}

func TestQueue_Annotate(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	s, _, err := q.Enqueue(ctx, prediction("unclear", 0.9), alice.UserID)
	require.NoError(t, err)

	_, err = q.Annotate(ctx, alice, s.ID, &AnnotateRequest{CorrectIntent: "  "})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = q.Annotate(ctx, bob, s.ID, &AnnotateRequest{CorrectIntent: "greet"})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = q.Annotate(ctx, alice, "missing", &AnnotateRequest{CorrectIntent: "greet"})
	assert.ErrorIs(t, err, ErrSampleNotFound)

	got, err := q.Annotate(ctx, alice, s.ID, &AnnotateRequest{
		CorrectIntent:   " farewell ",
		AnnotationNotes: "typo in input",
		Priority:        model.PriorityLow,
	})
	require.NoError(t, err)
	assert.Equal(t, model.SampleStatusAnnotated, got.Status)
	assert.Equal(t, "farewell", got.CorrectIntent)
	assert.Equal(t, alice.UserID, got.AnnotatedBy)
	require.NotNil(t, got.AnnotatedAt)
	assert.Equal(t, model.PriorityLow, got.Priority)

	// 管理员可以标注任何人的样本
	_, err = q.Annotate(ctx, admin, s.ID, &AnnotateRequest{CorrectIntent: "greet"})
	assert.NoError(t, err)
}

func TestQueue_BatchAnnotate(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	mine, _, err := q.Enqueue(ctx, prediction("mine", 0.9), alice.UserID)
	require.NoError(t, err)
	theirs, _, err := q.Enqueue(ctx, prediction("theirs", 0.9), bob.UserID)
	require.NoError(t, err)

	results, err := q.BatchAnnotate(ctx, alice, []Annotation{
		{SampleID: mine.ID, AnnotateRequest: AnnotateRequest{CorrectIntent: "a"}},
		{SampleID: theirs.ID, AnnotateRequest: AnnotateRequest{CorrectIntent: "b"}},
		{SampleID: "missing", AnnotateRequest: AnnotateRequest{CorrectIntent: "c"}},
		{SampleID: mine.ID},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.NotEmpty(t, results[1].Error)
	assert.False(t, results[2].Success)
	assert.False(t, results[3].Success)

	got, err := q.Get(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.CorrectIntent)

	_, err = q.BatchAnnotate(ctx, alice, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestQueue_MarkReviewed(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	s, _, err := q.Enqueue(ctx, prediction("later", 0.9), alice.UserID)
	require.NoError(t, err)

	got, err := q.MarkReviewed(ctx, alice, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SampleStatusReviewed, got.Status)

	// reviewed 样本仍参与去重
	again, created, err := q.Enqueue(ctx, prediction("later", 0.9), alice.UserID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, s.ID, again.ID)

	_, err = q.MarkReviewed(ctx, alice, s.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestQueue_MarkRetrained(t *testing.T) {
	q, merger := newTestQueue()
	ctx := context.Background()

	annotated, _, err := q.Enqueue(ctx, prediction("annotated text", 0.9), alice.UserID)
	require.NoError(t, err)
	_, err = q.Annotate(ctx, alice, annotated.ID, &AnnotateRequest{CorrectIntent: "refund"})
	require.NoError(t, err)
	bare, _, err := q.Enqueue(ctx, prediction("bare text", 0.9), alice.UserID)
	require.NoError(t, err)

	_, err = q.MarkRetrained(ctx, alice, annotated.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	got, err := q.MarkRetrained(ctx, admin, annotated.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SampleStatusRetrained, got.Status)
	assert.True(t, got.IsRetrained)
	require.NotNil(t, got.RetrainedAt)

	_, err = q.MarkRetrained(ctx, admin, bare.ID)
	require.NoError(t, err)

	assert.Equal(t, []merge{{"annotated text", "refund", "ws"}}, merger.merges)
}

func TestQueue_AnnotateAfterRetrainConflicts(t *testing.T) {
	q, merger := newTestQueue()
	ctx := context.Background()

	s, _, err := q.Enqueue(ctx, prediction("stop my plan", 0.9), alice.UserID)
	require.NoError(t, err)
	_, err = q.Annotate(ctx, alice, s.ID, &AnnotateRequest{CorrectIntent: "cancel"})
	require.NoError(t, err)
	_, err = q.MarkRetrained(ctx, admin, s.ID)
	require.NoError(t, err)

	_, err = q.Annotate(ctx, admin, s.ID, &AnnotateRequest{CorrectIntent: "refund"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	results, err := q.BatchAnnotate(ctx, alice, []Annotation{
		{SampleID: s.ID, AnnotateRequest: AnnotateRequest{CorrectIntent: "refund"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)

	got, err := q.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SampleStatusRetrained, got.Status)
	assert.Equal(t, "cancel", got.CorrectIntent)
	assert.Equal(t, []merge{{"stop my plan", "cancel", "ws"}}, merger.merges)
}

func TestQueue_MarkRetrainedMergeFailure(t *testing.T) {
	q, merger := newTestQueue()
	ctx := context.Background()
	merger.err = errors.New("dataset unavailable")

	s, _, err := q.Enqueue(ctx, prediction("text", 0.9), alice.UserID)
	require.NoError(t, err)
	_, err = q.Annotate(ctx, alice, s.ID, &AnnotateRequest{CorrectIntent: "x"})
	require.NoError(t, err)

	_, err = q.MarkRetrained(ctx, admin, s.ID)
	require.Error(t, err)

	got, err := q.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SampleStatusAnnotated, got.Status)
	assert.False(t, got.IsRetrained)
}

func TestQueue_Add(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	conf, unc := 0.35, 0.65
	s, created, err := q.Add(ctx, alice, &AddRequest{
		WorkspaceID:      "ws",
		Text:             "manual sample",
		PredictedIntent:  "greet",
		Confidence:       &conf,
		UncertaintyScore: &unc,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.PriorityHigh, s.Priority)
	assert.Equal(t, alice.UserID, s.UserID)

	s, _, err = q.Add(ctx, alice, &AddRequest{
		WorkspaceID:      "ws",
		Text:             "another",
		PredictedIntent:  "greet",
		Confidence:       &conf,
		UncertaintyScore: &unc,
		Priority:         model.PriorityUrgent,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PriorityUrgent, s.Priority)

	_, _, err = q.Add(ctx, alice, &AddRequest{WorkspaceID: "ws", Text: "x", PredictedIntent: "y", UncertaintyScore: &unc})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestQueue_StatsAndDelete(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	a, _, err := q.Enqueue(ctx, prediction("a", 0.9), alice.UserID)
	require.NoError(t, err)
	_, _, err = q.Enqueue(ctx, prediction("b", 0.1), alice.UserID)
	require.NoError(t, err)
	c, _, err := q.Enqueue(ctx, prediction("c", 0.9), bob.UserID)
	require.NoError(t, err)
	_, err = q.Annotate(ctx, alice, a.ID, &AnnotateRequest{CorrectIntent: "x"})
	require.NoError(t, err)

	all, err := q.Stats(ctx, admin, "ws")
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	assert.Equal(t, int64(2), all.Pending)
	assert.Equal(t, int64(1), all.Annotated)
	assert.Equal(t, int64(2), all.PriorityStats[model.PriorityUrgent])

	mine, err := q.Stats(ctx, alice, "ws")
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Total)

	assert.ErrorIs(t, q.Delete(ctx, alice, c.ID), apperr.ErrPermissionDenied)
	require.NoError(t, q.Delete(ctx, bob, c.ID))
	assert.ErrorIs(t, q.Delete(ctx, admin, c.ID), ErrSampleNotFound)

	after, err := q.Stats(ctx, admin, "ws")
	require.NoError(t, err)
	assert.Equal(t, int64(2), after.Total)
}
