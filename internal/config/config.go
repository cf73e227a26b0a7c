// SPDX-License-Identifier: MIT

// Package config loads daemon configuration with the precedence
// ENV > file > defaults.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/careshift/careshift/internal/metrics"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// AppConfig is the resolved daemon configuration.
type AppConfig struct {
	Version string

	// HTTP
	Listen         string
	AllowedOrigins []string
	RateLimitRPM   int

	// Storage
	DataDir      string
	StoreBackend string
	SQLitePath   string
	PostgresDSN  string

	// Plan cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// History archive (BadgerDB). Empty disables persistence and uses an
	// in-memory archive.
	HistoryDir string

	// Ingest
	IngestDir          string
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaGroupID       string
	KafkaMaxEventsPerS float64

	// Background replanning
	ReplanEnabled  bool
	ReplanDebounce time.Duration
	ExportPath     string

	// Scheduler weight modifiers. Zero means "use the built-in default".
	STATBonus      float64
	PRNPenalty     float64
	AcuityLow      float64
	AcuityMedium   float64
	AcuityHigh     float64
	AcuityCritical float64
	TypeMedication float64
	TypeProcedure  float64
	TypeLab        float64
	TypeAssessment float64

	// Logging
	LogLevel string

	// Telemetry
	OTELEnabled      bool
	OTELExporter     string
	OTELEndpoint     string
	OTELSamplingRate float64
	Environment      string
}

// Loader loads configuration with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a configuration loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load resolves the configuration: defaults first, then the optional YAML
// file, then environment overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		fileCfg, err := loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	mergeEnvConfig(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join(cfg.DataDir, "careshift.db")
	}
	if cfg.ExportPath == "" {
		cfg.ExportPath = filepath.Join(cfg.DataDir, "schedule.json")
	}

	if err := Validate(cfg); err != nil {
		metrics.IncConfigValidationError()
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() AppConfig {
	return AppConfig{
		Listen:         ":8080",
		RateLimitRPM:   600,
		DataDir:        "./data",
		StoreBackend:   StoreMemory,
		CacheTTL:       5 * time.Minute,
		KafkaTopic:     "careshift.orders",
		KafkaGroupID:   "careshift",
		ReplanEnabled:  true,
		ReplanDebounce: 2 * time.Second,
		LogLevel:       "info",
		OTELExporter:   "grpc",
		OTELEndpoint:   "localhost:4317",
		Environment:    "development",
	}
}

func mergeEnvConfig(cfg *AppConfig) {
	cfg.Listen = ParseString("CARESHIFT_LISTEN", cfg.Listen)
	cfg.AllowedOrigins = parseCommaSeparated(ParseString("CARESHIFT_CORS_ORIGINS", ""), cfg.AllowedOrigins)
	cfg.RateLimitRPM = ParseInt("CARESHIFT_RATE_LIMIT_RPM", cfg.RateLimitRPM)

	cfg.DataDir = ParseString("CARESHIFT_DATA_DIR", cfg.DataDir)
	cfg.StoreBackend = ParseString("CARESHIFT_STORE_BACKEND", cfg.StoreBackend)
	cfg.SQLitePath = ParseString("CARESHIFT_SQLITE_PATH", cfg.SQLitePath)
	cfg.PostgresDSN = ParseString("CARESHIFT_POSTGRES_DSN", cfg.PostgresDSN)

	cfg.RedisAddr = ParseString("CARESHIFT_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = ParseString("CARESHIFT_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = ParseInt("CARESHIFT_REDIS_DB", cfg.RedisDB)
	cfg.CacheTTL = ParseDuration("CARESHIFT_CACHE_TTL", cfg.CacheTTL)

	cfg.HistoryDir = ParseString("CARESHIFT_HISTORY_DIR", cfg.HistoryDir)

	cfg.IngestDir = ParseString("CARESHIFT_INGEST_DIR", cfg.IngestDir)
	cfg.KafkaBrokers = parseCommaSeparated(ParseString("CARESHIFT_KAFKA_BROKERS", ""), cfg.KafkaBrokers)
	cfg.KafkaTopic = ParseString("CARESHIFT_KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.KafkaGroupID = ParseString("CARESHIFT_KAFKA_GROUP", cfg.KafkaGroupID)
	cfg.KafkaMaxEventsPerS = ParseFloat("CARESHIFT_KAFKA_MAX_EPS", cfg.KafkaMaxEventsPerS)

	cfg.ReplanEnabled = ParseBool("CARESHIFT_REPLAN_ENABLED", cfg.ReplanEnabled)
	cfg.ReplanDebounce = ParseDuration("CARESHIFT_REPLAN_DEBOUNCE", cfg.ReplanDebounce)
	cfg.ExportPath = ParseString("CARESHIFT_EXPORT_PATH", cfg.ExportPath)

	cfg.STATBonus = ParseFloat("CARESHIFT_WEIGHT_STAT_BONUS", cfg.STATBonus)
	cfg.PRNPenalty = ParseFloat("CARESHIFT_WEIGHT_PRN_PENALTY", cfg.PRNPenalty)
	cfg.AcuityLow = ParseFloat("CARESHIFT_WEIGHT_ACUITY_LOW", cfg.AcuityLow)
	cfg.AcuityMedium = ParseFloat("CARESHIFT_WEIGHT_ACUITY_MEDIUM", cfg.AcuityMedium)
	cfg.AcuityHigh = ParseFloat("CARESHIFT_WEIGHT_ACUITY_HIGH", cfg.AcuityHigh)
	cfg.AcuityCritical = ParseFloat("CARESHIFT_WEIGHT_ACUITY_CRITICAL", cfg.AcuityCritical)
	cfg.TypeMedication = ParseFloat("CARESHIFT_WEIGHT_TYPE_MEDICATION", cfg.TypeMedication)
	cfg.TypeProcedure = ParseFloat("CARESHIFT_WEIGHT_TYPE_PROCEDURE", cfg.TypeProcedure)
	cfg.TypeLab = ParseFloat("CARESHIFT_WEIGHT_TYPE_LAB", cfg.TypeLab)
	cfg.TypeAssessment = ParseFloat("CARESHIFT_WEIGHT_TYPE_ASSESSMENT", cfg.TypeAssessment)

	cfg.LogLevel = ParseString("CARESHIFT_LOG_LEVEL", cfg.LogLevel)

	cfg.OTELEnabled = ParseBool("CARESHIFT_OTEL_ENABLED", cfg.OTELEnabled)
	cfg.OTELExporter = ParseString("CARESHIFT_OTEL_EXPORTER", cfg.OTELExporter)
	cfg.OTELEndpoint = ParseString("CARESHIFT_OTEL_ENDPOINT", cfg.OTELEndpoint)
	cfg.OTELSamplingRate = ParseFloat("CARESHIFT_OTEL_SAMPLING_RATE", cfg.OTELSamplingRate)
	cfg.Environment = ParseString("CARESHIFT_ENVIRONMENT", cfg.Environment)
}

// Validate checks cross-field constraints that would otherwise surface as
// confusing runtime failures.
func Validate(cfg AppConfig) error {
	switch cfg.StoreBackend {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("store backend %q requires CARESHIFT_POSTGRES_DSN", cfg.StoreBackend)
		}
	default:
		return fmt.Errorf("unknown store backend %q (supported: memory, sqlite, postgres)", cfg.StoreBackend)
	}

	if cfg.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if cfg.RateLimitRPM < 0 {
		return fmt.Errorf("rate limit must be >= 0 (got %d)", cfg.RateLimitRPM)
	}
	if cfg.CacheTTL < 0 {
		return fmt.Errorf("cache TTL must be >= 0 (got %s)", cfg.CacheTTL)
	}
	if cfg.ReplanDebounce <= 0 && cfg.ReplanEnabled {
		return fmt.Errorf("replan debounce must be > 0 (got %s)", cfg.ReplanDebounce)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return fmt.Errorf("kafka brokers configured without a topic")
	}
	if cfg.OTELEnabled {
		if cfg.OTELExporter != "grpc" && cfg.OTELExporter != "http" {
			return fmt.Errorf("unknown OTEL exporter %q (supported: grpc, http)", cfg.OTELExporter)
		}
		if cfg.OTELSamplingRate < 0 || cfg.OTELSamplingRate > 1 {
			return fmt.Errorf("OTEL sampling rate must be in [0,1] (got %g)", cfg.OTELSamplingRate)
		}
	}
	weights := map[string]float64{
		"stat bonus":             cfg.STATBonus,
		"prn penalty":            cfg.PRNPenalty,
		"acuity low weight":      cfg.AcuityLow,
		"acuity medium weight":   cfg.AcuityMedium,
		"acuity high weight":     cfg.AcuityHigh,
		"acuity critical weight": cfg.AcuityCritical,
		"medication weight":      cfg.TypeMedication,
		"procedure weight":       cfg.TypeProcedure,
		"lab weight":             cfg.TypeLab,
		"assessment weight":      cfg.TypeAssessment,
	}
	for name, v := range weights {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0 (got %g)", name, v)
		}
	}
	return nil
}
