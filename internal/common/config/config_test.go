package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: credisense-test
predictor:
  base_url: http://predictor:8000
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "credisense-test", cfg.App.Name)
	assert.Equal(t, "http://predictor:8000", cfg.Predictor.BaseURL)
	assert.Equal(t, "/predict", cfg.Predictor.PredictPath)
	assert.Equal(t, 0, cfg.Predictor.Timeout)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "credisense_session", cfg.Server.CookieName)
	assert.Equal(t, SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, 30*time.Minute, GetDuration(cfg.Session.TTL))
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Camunda.Enabled)
	assert.Equal(t, TracingExporterNone, cfg.Tracing.Exporter)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("CREDISENSE_TEST_PREDICTOR", "https://risk.example.com")
	path := writeConfig(t, `
predictor:
  base_url: ${CREDISENSE_TEST_PREDICTOR}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://risk.example.com", cfg.Predictor.BaseURL)
}

func TestLoadFromFile_UnsetPlaceholderFallsBackToDefault(t *testing.T) {
	path := writeConfig(t, `
predictor:
  base_url: ${CREDISENSE_TEST_UNSET_VARIABLE}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.Predictor.BaseURL)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "non http predictor",
			body:    "predictor:\n  base_url: ftp://predictor\n",
			wantErr: "predictor.base_url",
		},
		{
			name:    "unknown session store",
			body:    "session:\n  store: memcached\n",
			wantErr: "session.store",
		},
		{
			name:    "redis store without address",
			body:    "session:\n  store: redis\n",
			wantErr: "database.redis.address",
		},
		{
			name:    "camunda without broker",
			body:    "camunda:\n  enabled: true\n",
			wantErr: "camunda.broker_address",
		},
		{
			name:    "sns without topic",
			body:    "notifications:\n  sns:\n    enabled: true\n",
			wantErr: "notifications.sns.topic_arn",
		},
		{
			name:    "unknown tracing exporter",
			body:    "tracing:\n  exporter: zipkin\n",
			wantErr: "tracing.exporter",
		},
		{
			name:    "jaeger without endpoint",
			body:    "tracing:\n  exporter: jaeger\n",
			wantErr: "tracing.endpoint",
		},
		{
			name:    "sample ratio above one",
			body:    "tracing:\n  sample_ratio: 2\n",
			wantErr: "tracing.sample_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"assess-credit-risk": {Enabled: false, MaxJobsActive: 2, Timeout: 1000},
	}}

	w := GetWorkerConfig(cfg, "assess-credit-risk")
	assert.Equal(t, 2, w.MaxJobsActive)
	assert.False(t, IsWorkerEnabled(cfg, "assess-credit-risk"))

	fallback := GetWorkerConfig(cfg, "other")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 5, fallback.MaxJobsActive)
	assert.True(t, IsWorkerEnabled(cfg, "other"))
}
