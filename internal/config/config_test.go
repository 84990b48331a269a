package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "next-intent", cfg.App.Name)
	assert.Equal(t, 0.8, cfg.Classifier.UncertaintyThreshold)
	assert.Equal(t, 0.1, cfg.Classifier.ConfidenceFloor)
	assert.Equal(t, 3, cfg.Classifier.MaxAlternatives)
	assert.Equal(t, 10, cfg.Evaluation.SamplePredictions)
	assert.Equal(t, 0.2, cfg.Evaluation.HoldoutRatio)
	assert.Equal(t, 10, cfg.Feedback.SuggestionLimit)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenDuration())
	assert.Same(t, cfg, Get())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
database:
  driver: memory
classifier:
  uncertaintyThreshold: 0.7
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Database.IsMemory())
	assert.Equal(t, 0.7, cfg.Classifier.UncertaintyThreshold)
	// 未覆盖的键仍取默认值
	assert.Equal(t, 3, cfg.Classifier.MaxAlternatives)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.GetAddr())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", c.GetDSN())
}
