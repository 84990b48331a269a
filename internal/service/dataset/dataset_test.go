package dataset

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-intent/internal/apperr"
	"github.com/ashwinyue/next-intent/internal/model"
	"github.com/ashwinyue/next-intent/internal/repository"
)

// ========== Normalize 测试 ==========

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		record     RawRecord
		wantText   string
		wantIntent string
		wantErr    string
	}{
		{name: "canonical", record: RawRecord{"text": "hi", "intent": "greet"}, wantText: "hi", wantIntent: "greet"},
		{name: "capitalised", record: RawRecord{"Text": "hi", "Intent": "greet"}, wantText: "hi", wantIntent: "greet"},
		{name: "utterance label", record: RawRecord{"utterance": "hi", "label": "greet"}, wantText: "hi", wantIntent: "greet"},
		{name: "message class", record: RawRecord{"Message": " hi ", "Class": " greet "}, wantText: "hi", wantIntent: "greet"},
		{name: "blank text falls through", record: RawRecord{"text": "  ", "utterance": "hi", "intent": "greet"}, wantText: "hi", wantIntent: "greet"},
		{name: "missing text", record: RawRecord{"intent": "greet"}, wantErr: "text"},
		{name: "missing intent", record: RawRecord{"text": "hi"}, wantErr: "intent"},
		{name: "non string", record: RawRecord{"text": 42, "intent": "greet"}, wantErr: "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			examples, errs := Normalize([]RawRecord{tt.record})
			if tt.wantErr != "" {
				require.Len(t, errs, 1)
				assert.Equal(t, tt.wantErr, errs[0].Field)
				assert.Empty(t, examples)
				return
			}
			require.Empty(t, errs)
			require.Len(t, examples, 1)
			assert.Equal(t, tt.wantText, examples[0].Text)
			assert.Equal(t, tt.wantIntent, examples[0].Intent)
			assert.Equal(t, 1.0, examples[0].Confidence)
		})
	}
}

func TestValidate(t *testing.T) {
	res := Validate([]RawRecord{
		{"text": "hi", "intent": "greet"},
		{"text": "bye", "label": "goodbye"},
		{"text": "hello", "intent": "greet"},
		{"intent": "orphan"},
	})

	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].Index)
	assert.Equal(t, 4, res.Stats.TotalItems)
	assert.Equal(t, 3, res.Stats.ValidItems)
	assert.Equal(t, 2, res.Stats.UniqueLabels)

	empty := Validate(nil)
	assert.False(t, empty.IsValid)
	assert.Equal(t, 0, empty.Stats.TotalItems)
}

func TestParseRecords(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "array", raw: `[{"text":"hi","intent":"greet"}]`, want: 1},
		{name: "wrapped data", raw: `{"data":[{"text":"hi","intent":"greet"},{"text":"yo","intent":"greet"}]}`, want: 2},
		{name: "wrapped examples", raw: `{"examples":[]}`, want: 0},
		{name: "trailing comma repaired", raw: `[{"text":"hi","intent":"greet"},]`, want: 1},
		{name: "single quotes repaired", raw: `[{'text':'hi','intent':'greet'}]`, want: 1},
		{name: "object without records", raw: `{"foo":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseRecords([]byte(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}
}

// ========== Service 测试 ==========

func newTestService() *Service {
	return NewService(repository.NewMemoryDatasetRepository(), zap.NewNop())
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	ds, err := svc.Create(ctx, &CreateRequest{
		WorkspaceID: "ws",
		Records: []RawRecord{
			{"text": "hi", "intent": "greet"},
			{"utterance": "bye", "label": "goodbye"},
		},
	})
	require.NoError(t, err)
	assert.True(t, ds.IsActive)
	assert.Equal(t, 2, ds.TotalSamples)
	assert.Equal(t, model.StringList{"goodbye", "greet"}, ds.UniqueIntents)
	assert.NotEmpty(t, ds.Name)

	active, err := svc.GetActive(ctx, "ws")
	require.NoError(t, err)
	assert.Equal(t, ds.ID, active.ID)
	assert.Len(t, active.Examples, 2)
}

func TestService_CreateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.Create(ctx, &CreateRequest{WorkspaceID: "ws"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(ctx, &CreateRequest{WorkspaceID: "ws", Records: []RawRecord{{"text": "hi"}}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(ctx, &CreateRequest{Records: []RawRecord{{"text": "hi", "intent": "x"}}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestService_GetActiveWithoutData(t *testing.T) {
	_, err := newTestService().GetActive(context.Background(), "empty")
	assert.ErrorIs(t, err, apperr.ErrNoTrainingData)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, apperr.ErrNoTrainingData, apperr.KindOf(err))
}

func TestService_AppendExample(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	_, err := svc.Create(ctx, &CreateRequest{WorkspaceID: "ws", Records: []RawRecord{{"text": "hi", "intent": "greet"}}})
	require.NoError(t, err)

	res, err := svc.AppendExample(ctx, "ws", "cancel my order", "cancel", "admin")
	require.NoError(t, err)
	assert.True(t, res.Merged)
	assert.Equal(t, 2, res.TotalExamples)
	assert.Equal(t, 2, res.UniqueIntents)

	res, err = svc.AppendExample(ctx, "ws", " cancel my order ", "cancel", "admin")
	require.NoError(t, err)
	assert.False(t, res.Merged)
	assert.Equal(t, 2, res.TotalExamples)

	ds, err := svc.GetActive(ctx, "ws")
	require.NoError(t, err)
	require.Len(t, ds.Examples, 2)
	assert.True(t, ds.Examples[1].IsAnnotated)
	assert.Equal(t, 1, ds.IntentCounts["cancel"])

	_, err = svc.AppendExample(ctx, "missing", "x", "y", "admin")
	assert.ErrorIs(t, err, apperr.ErrNoTrainingData)
}

func TestService_AppendExampleConcurrentDedup(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	_, err := svc.Create(ctx, &CreateRequest{WorkspaceID: "ws", Records: []RawRecord{{"text": "hi", "intent": "greet"}}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AppendExample(ctx, "ws", "same text", "same", "u")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ds, err := svc.GetActive(ctx, "ws")
	require.NoError(t, err)
	assert.Equal(t, 2, ds.TotalSamples)
}

type recordingInvalidator struct {
	workspaces []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, workspaceID string) {
	r.workspaces = append(r.workspaces, workspaceID)
}

func TestService_CreateAndDeleteInvalidate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	inv := &recordingInvalidator{}
	svc.SetInvalidator(inv)

	_, err := svc.Create(ctx, &CreateRequest{WorkspaceID: "ws", Records: []RawRecord{{"text": "hi"}}})
	require.Error(t, err)
	assert.Empty(t, inv.workspaces)

	ds, err := svc.Create(ctx, &CreateRequest{WorkspaceID: " ws ", OwnerID: "owner", Records: []RawRecord{{"text": "hi", "intent": "greet"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ws"}, inv.workspaces)

	err = svc.Delete(ctx, model.Actor{UserID: "stranger", Role: model.RoleUser}, ds.ID)
	require.Error(t, err)
	assert.Len(t, inv.workspaces, 1)

	require.NoError(t, svc.Delete(ctx, model.Actor{UserID: "owner", Role: model.RoleUser}, ds.ID))
	assert.Equal(t, []string{"ws", "ws"}, inv.workspaces)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	ds, err := svc.Create(ctx, &CreateRequest{WorkspaceID: "ws", OwnerID: "owner", Records: []RawRecord{{"text": "hi", "intent": "greet"}}})
	require.NoError(t, err)

	err = svc.Delete(ctx, model.Actor{UserID: "stranger", Role: model.RoleUser}, ds.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	require.NoError(t, svc.Delete(ctx, model.Actor{UserID: "owner", Role: model.RoleUser}, ds.ID))
	_, err = svc.Get(ctx, ds.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
