package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JordanRousseau/capital-problem/internal/domain"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "climate-comparison-requests", cfg.KafkaSourceTopic)
	assert.Equal(t, "climate-comparison-reports", cfg.KafkaSinkTopic)
	assert.Equal(t, "climate-match", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Empty(t, cfg.ReportDBPath)
	assert.Equal(t, DefaultAnalysis(), cfg.Analysis)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("REPORT_DB_PATH", "/tmp/reports.db")
	t.Setenv("OUTLIER_WINDOW", "7")
	t.Setenv("OUTLIER_THRESHOLD", "8.5")
	t.Setenv("RANKING_METRIC", "frechet_dist")
	t.Setenv("REFERENCE_YEAR", "2020")
	t.Setenv("DAY_COLUMN", "1")
	t.Setenv("MONTH_COLUMNS", "2, 3, 4")
	t.Setenv("SCORING_WORKERS", "8")
	t.Setenv("SERIES_CACHE_SIZE", "32")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, "/tmp/reports.db", cfg.ReportDBPath)

	a := cfg.Analysis
	assert.Equal(t, domain.CleanOptions{Window: 7, Threshold: 8.5}, a.Clean)
	assert.Equal(t, domain.MetricFrechet, a.Metric)
	assert.Equal(t, 2020, a.ReferenceYear)
	assert.Equal(t, domain.SchemaFromPositions(1, []int{2, 3, 4}), a.Schema)
	assert.Equal(t, 8, a.Workers)
	assert.Equal(t, 32, a.CacheSize)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidAnalysisEnv(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"OUTLIER_WINDOW", "0"},
		{"OUTLIER_THRESHOLD", "-1"},
		{"RANKING_METRIC", "cosine"},
		{"REFERENCE_YEAR", "year"},
		{"DAY_COLUMN", "-2"},
		{"MONTH_COLUMNS", "1,x"},
		{"MONTH_COLUMNS", "1,2,3,4,5,6,7,8,9,10,11,12,13"},
		{"SCORING_WORKERS", "0"},
		{"SERIES_CACHE_SIZE", "lots"},
		{"SERIES_CACHE_SIZE", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAnalysis_Profile(t *testing.T) {
	path := writeProfile(t, `
metric = "pcm"
reference_year = 2019
workers = 2

[clean]
window = 9

[schema]
month_columns = [3, 4]
`)
	t.Setenv("ANALYSIS_PROFILE", path)
	t.Setenv("OUTLIER_THRESHOLD", "4")

	a, err := LoadAnalysis()
	require.NoError(t, err)
	assert.Equal(t, domain.MetricPCM, a.Metric)
	assert.Equal(t, 2019, a.ReferenceYear)
	assert.Equal(t, 2, a.Workers)
	assert.Equal(t, 256, a.CacheSize)
	assert.Equal(t, domain.CleanOptions{Window: 9, Threshold: 4}, a.Clean, "env overrides the profile")
	assert.Equal(t, domain.SchemaFromPositions(0, []int{3, 4}), a.Schema)
}

func TestLoadAnalysisWithProfile_EnvWins(t *testing.T) {
	path := writeProfile(t, `
metric = "area"

[clean]
window = 7
`)
	t.Setenv("ANALYSIS_PROFILE", path)
	t.Setenv("OUTLIER_WINDOW", "3")
	t.Setenv("RANKING_METRIC", "pcm")

	a, err := LoadAnalysisWithProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Clean.Window)
	assert.Equal(t, domain.MetricPCM, a.Metric)
}

func TestLoadAnalysisWithProfile_Empty(t *testing.T) {
	t.Setenv("ANALYSIS_PROFILE", writeProfile(t, "metric = \"area\"\n"))

	a, err := LoadAnalysisWithProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAnalysis(), a)
}

func TestLoadProfile_Errors(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	_, err = LoadProfile(writeProfile(t, `colour = "blue"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")

	_, err = LoadProfile(writeProfile(t, `metric = `))
	require.Error(t, err)
}

func TestProfileApply_Invalid(t *testing.T) {
	metric := "cosine"
	a := DefaultAnalysis()
	require.ErrorIs(t, (&Profile{Metric: &metric}).Apply(&a), domain.ErrUnknownMetric)

	window := 0
	a = DefaultAnalysis()
	require.ErrorIs(t, (&Profile{Clean: &CleanProfile{Window: &window}}).Apply(&a), domain.ErrInvalidOptions)
}

func TestAnalysisBuilder(t *testing.T) {
	a := DefaultAnalysis()
	a.ReferenceYear = 2021
	b := a.Builder()
	assert.Equal(t, 2021, b.DefaultYear)
	assert.Equal(t, a.Clean, b.Options)
	assert.Equal(t, a.Schema, b.Schema)
}
