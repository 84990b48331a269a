package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ashwinyue/next-intent/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		app     config.AppConfig
		log     config.LogConfig
		wantErr bool
	}{
		{name: "development console", app: config.AppConfig{Name: "t", Debug: true}, log: config.LogConfig{Level: "debug"}},
		{name: "production json", app: config.AppConfig{Name: "t"}, log: config.LogConfig{Level: "warn", Format: "json"}},
		{name: "bad level", log: config.LogConfig{Level: "loud"}, wantErr: true},
		{name: "bad format", log: config.LogConfig{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.app, tt.log)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, level)

	level, err = parseLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, zapcore.ErrorLevel, level)
}
