package router

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-intent/internal/config"
	"github.com/ashwinyue/next-intent/internal/handler"
	"github.com/ashwinyue/next-intent/internal/repository"
	"github.com/ashwinyue/next-intent/internal/service"
	"github.com/ashwinyue/next-intent/internal/testutil"
)

func newTestServer(t *testing.T) *testutil.APIClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Defaults()
	cfg.Auth.JWTSecret = "test-secret"
	logger := zap.NewNop()

	svc, err := service.NewServices(repository.NewMemoryRepositories(), cfg, nil, logger)
	require.NoError(t, err)

	r := SetupRouter(handler.NewHandlers(svc, nil), svc, logger)
	return testutil.NewAPIClient(t, r)
}

func login(t *testing.T, api *testutil.APIClient, username string) *testutil.APIClient {
	t.Helper()
	email := username + "@example.com"

	rec := api.Do(http.MethodPost, "/api/v1/auth/register", gin.H{
		"username": username,
		"email":    email,
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.Do(http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    email,
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	testutil.DecodeData(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return api.WithToken(resp.Token)
}

func TestHealth(t *testing.T) {
	api := newTestServer(t)

	rec := api.Do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db":"memory"`)

	rec = api.Do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	api := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"datasets", http.MethodGet, "/api/v1/datasets"},
		{"predict", http.MethodPost, "/api/v1/training/predict"},
		{"queue", http.MethodGet, "/api/v1/active-learning/queue"},
		{"profile", http.MethodGet, "/api/v1/auth/profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.Do(tt.method, tt.path, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	rec := api.WithToken("garbage").Do(http.MethodGet, "/api/v1/datasets", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTrainPredictEvaluate(t *testing.T) {
	api := login(t, newTestServer(t), "alice")

	rec := api.Do(http.MethodPost, "/api/v1/training/upload-and-train?workspaceId=ws1", testutil.TrainingRecords())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.Do(http.MethodPost, "/api/v1/training/predict", gin.H{
		"text":        "cancel my order",
		"workspaceId": "ws1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pred struct {
		PredictedIntent string  `json:"predictedIntent"`
		Confidence      float64 `json:"confidence"`
		IsUncertain     bool    `json:"isUncertain"`
	}
	testutil.DecodeData(t, rec, &pred)
	assert.Equal(t, "cancel", pred.PredictedIntent)
	assert.InDelta(t, 1.0, pred.Confidence, 1e-9)
	assert.False(t, pred.IsUncertain)

	rec = api.Do(http.MethodPost, "/api/v1/evaluation/evaluate?workspaceId=ws1", testutil.TestRecords())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var eval struct {
		Evaluation struct {
			ID      string `json:"id"`
			Metrics struct {
				Accuracy float64 `json:"accuracy"`
			} `json:"metrics"`
			TestDataSize int `json:"testDataSize"`
		} `json:"evaluation"`
		ModelVersion struct {
			ID            string `json:"id"`
			VersionNumber int    `json:"versionNumber"`
		} `json:"modelVersion"`
	}
	testutil.DecodeData(t, rec, &eval)
	assert.InDelta(t, 1.0, eval.Evaluation.Metrics.Accuracy, 1e-9)
	assert.Equal(t, 3, eval.Evaluation.TestDataSize)
	assert.Equal(t, 1, eval.ModelVersion.VersionNumber)

	rec = api.Do(http.MethodGet, "/api/v1/evaluation/results/"+eval.Evaluation.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.Do(http.MethodGet, "/api/v1/model-versions/active/ws1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var active struct {
		ID string `json:"id"`
	}
	testutil.DecodeData(t, rec, &active)
	assert.Equal(t, eval.ModelVersion.ID, active.ID)

	rec = api.Do(http.MethodGet, "/api/v1/evaluation/results/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUncertainPredictionIsQueued(t *testing.T) {
	api := login(t, newTestServer(t), "bob")

	rec := api.Do(http.MethodPost, "/api/v1/training/upload-and-train?workspaceId=ws1", testutil.TrainingRecords())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.Do(http.MethodPost, "/api/v1/training/predict", gin.H{
		"text":        "what is the weather",
		"workspaceId": "ws1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.Do(http.MethodGet, "/api/v1/active-learning/queue?workspaceId=ws1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var queue struct {
		Samples []struct {
			Text string `json:"text"`
		} `json:"samples"`
		Total int64 `json:"total"`
	}
	testutil.DecodeData(t, rec, &queue)
	require.Equal(t, int64(1), queue.Total)
	assert.Equal(t, "what is the weather", queue.Samples[0].Text)
}

func TestAdminRoutesRejectUsers(t *testing.T) {
	api := login(t, newTestServer(t), "carol")

	rec := api.Do(http.MethodPost, "/api/v1/feedback/submit", gin.H{
		"workspaceId":        "ws1",
		"originalText":       "stop billing me",
		"originalIntent":     "greet",
		"originalConfidence": 0.4,
		"correctedIntent":    "cancel",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.Do(http.MethodGet, "/api/v1/feedback/user", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, path := range []string{"/api/v1/feedback/admin", "/api/v1/feedback/stats"} {
		rec = api.Do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestUploadRejectsInvalidRecords(t *testing.T) {
	api := login(t, newTestServer(t), "dave")

	rec := api.Do(http.MethodPost, "/api/v1/training/upload-and-train?workspaceId=ws1", []map[string]interface{}{
		testutil.Record("hello", "greet"),
		{"text": "missing intent"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "details")

	rec = api.Do(http.MethodPost, "/api/v1/training/upload-and-train", testutil.TrainingRecords())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
