package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/JordanRousseau/capital-problem/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// ReportDBPath enables the SQLite report store when set.
	ReportDBPath string

	Analysis Analysis
}

// Analysis configures how series are cleaned, compared and ranked.
type Analysis struct {
	Schema        domain.TableSchema
	Clean         domain.CleanOptions
	Metric        domain.Metric
	ReferenceYear int
	Workers       int
	CacheSize     int
}

// DefaultAnalysis matches the workbook layout and the default cleaning options.
func DefaultAnalysis() Analysis {
	return Analysis{
		Schema:        domain.DefaultTableSchema(),
		Clean:         domain.DefaultCleanOptions(),
		Metric:        domain.DefaultMetric,
		ReferenceYear: domain.DefaultYear,
		Workers:       4,
		CacheSize:     256,
	}
}

// Builder returns a series builder configured by the analysis settings.
func (a Analysis) Builder() domain.Builder {
	return domain.Builder{Schema: a.Schema, Options: a.Clean, DefaultYear: a.ReferenceYear}
}

// Validate checks every analysis setting.
func (a Analysis) Validate() error {
	if err := a.Schema.Validate(); err != nil {
		return err
	}
	if err := a.Clean.Validate(); err != nil {
		return err
	}
	if _, err := domain.ParseMetric(string(a.Metric)); err != nil {
		return err
	}
	if a.ReferenceYear < 1 || a.ReferenceYear > 9999 {
		return fmt.Errorf("invalid REFERENCE_YEAR %d", a.ReferenceYear)
	}
	if a.Workers < 1 {
		return fmt.Errorf("invalid SCORING_WORKERS %d", a.Workers)
	}
	if a.CacheSize < 1 {
		return fmt.Errorf("invalid SERIES_CACHE_SIZE %d", a.CacheSize)
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	analysis, err := LoadAnalysis()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "climate-comparison-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "climate-comparison-reports"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "climate-match"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		ReportDBPath:       os.Getenv("REPORT_DB_PATH"),
		Analysis:           analysis,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}

	return cfg, nil
}

// LoadAnalysis starts from DefaultAnalysis, applies the TOML profile named by
// ANALYSIS_PROFILE, then applies individual environment overrides.
func LoadAnalysis() (Analysis, error) {
	return LoadAnalysisWithProfile(os.Getenv("ANALYSIS_PROFILE"))
}

// LoadAnalysisWithProfile is LoadAnalysis with the profile path given
// explicitly. An empty path skips the profile. Environment overrides still
// win over the profile.
func LoadAnalysisWithProfile(path string) (Analysis, error) {
	a := DefaultAnalysis()

	if path != "" {
		p, err := LoadProfile(path)
		if err != nil {
			return Analysis{}, err
		}
		if err := p.Apply(&a); err != nil {
			return Analysis{}, err
		}
	}

	if err := applyEnv(&a); err != nil {
		return Analysis{}, err
	}
	if err := a.Validate(); err != nil {
		return Analysis{}, err
	}
	return a, nil
}

func applyEnv(a *Analysis) error {
	if s := os.Getenv("OUTLIER_WINDOW"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return errors.New("invalid OUTLIER_WINDOW")
		}
		a.Clean.Window = n
	}
	if s := os.Getenv("OUTLIER_THRESHOLD"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return errors.New("invalid OUTLIER_THRESHOLD")
		}
		a.Clean.Threshold = v
	}
	if s := os.Getenv("RANKING_METRIC"); s != "" {
		m, err := domain.ParseMetric(s)
		if err != nil {
			return fmt.Errorf("invalid RANKING_METRIC: %w", err)
		}
		a.Metric = m
	}
	if s := os.Getenv("REFERENCE_YEAR"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.New("invalid REFERENCE_YEAR")
		}
		a.ReferenceYear = n
	}
	if s := os.Getenv("DAY_COLUMN"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return errors.New("invalid DAY_COLUMN")
		}
		a.Schema.DayColumn = n
	}
	if s := os.Getenv("MONTH_COLUMNS"); s != "" {
		cols, err := parseColumns(s)
		if err != nil {
			return fmt.Errorf("invalid MONTH_COLUMNS: %w", err)
		}
		a.Schema = domain.SchemaFromPositions(a.Schema.DayColumn, cols)
	}
	if s := os.Getenv("SCORING_WORKERS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return errors.New("invalid SCORING_WORKERS")
		}
		a.Workers = n
	}
	if s := os.Getenv("SERIES_CACHE_SIZE"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return errors.New("invalid SERIES_CACHE_SIZE")
		}
		a.CacheSize = n
	}
	return nil
}

// parseColumns reads a comma-separated list of column indexes, January first.
func parseColumns(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) > 12 {
		return nil, fmt.Errorf("%d columns for 12 months", len(parts))
	}
	cols := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("column %q", p)
		}
		cols = append(cols, n)
	}
	return cols, nil
}
