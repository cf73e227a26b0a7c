// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors AppConfig for the optional YAML file. Pointer fields
// distinguish "unset" from zero values so the file only overrides what it
// names.
type FileConfig struct {
	Listen         *string  `yaml:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimitRPM   *int     `yaml:"rate_limit_rpm"`

	DataDir      *string `yaml:"data_dir"`
	StoreBackend *string `yaml:"store_backend"`
	SQLitePath   *string `yaml:"sqlite_path"`
	PostgresDSN  *string `yaml:"postgres_dsn"`

	RedisAddr     *string `yaml:"redis_addr"`
	RedisPassword *string `yaml:"redis_password"`
	RedisDB       *int    `yaml:"redis_db"`
	CacheTTL      *string `yaml:"cache_ttl"`

	HistoryDir *string `yaml:"history_dir"`

	IngestDir          *string  `yaml:"ingest_dir"`
	KafkaBrokers       []string `yaml:"kafka_brokers"`
	KafkaTopic         *string  `yaml:"kafka_topic"`
	KafkaGroupID       *string  `yaml:"kafka_group_id"`
	KafkaMaxEventsPerS *float64 `yaml:"kafka_max_events_per_second"`

	ReplanEnabled  *bool   `yaml:"replan_enabled"`
	ReplanDebounce *string `yaml:"replan_debounce"`
	ExportPath     *string `yaml:"export_path"`

	STATBonus      *float64 `yaml:"stat_bonus"`
	PRNPenalty     *float64 `yaml:"prn_penalty"`
	AcuityLow      *float64 `yaml:"acuity_low"`
	AcuityMedium   *float64 `yaml:"acuity_medium"`
	AcuityHigh     *float64 `yaml:"acuity_high"`
	AcuityCritical *float64 `yaml:"acuity_critical"`
	TypeMedication *float64 `yaml:"type_medication"`
	TypeProcedure  *float64 `yaml:"type_procedure"`
	TypeLab        *float64 `yaml:"type_lab"`
	TypeAssessment *float64 `yaml:"type_assessment"`

	LogLevel *string `yaml:"log_level"`

	OTELEnabled      *bool    `yaml:"otel_enabled"`
	OTELExporter     *string  `yaml:"otel_exporter"`
	OTELEndpoint     *string  `yaml:"otel_endpoint"`
	OTELSamplingRate *float64 `yaml:"otel_sampling_rate"`
	Environment      *string  `yaml:"environment"`
}

// loadFile parses the YAML config strictly: unknown fields are errors so
// misspelled keys never pass silently.
func loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)
	f, err := os.Open(path) // #nosec G304 -- path is operator supplied
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	var cfg FileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func mergeFileConfig(dst *AppConfig, src *FileConfig) {
	setString(&dst.Listen, src.Listen)
	if len(src.AllowedOrigins) > 0 {
		dst.AllowedOrigins = src.AllowedOrigins
	}
	setInt(&dst.RateLimitRPM, src.RateLimitRPM)

	setString(&dst.DataDir, src.DataDir)
	setString(&dst.StoreBackend, src.StoreBackend)
	setString(&dst.SQLitePath, src.SQLitePath)
	setString(&dst.PostgresDSN, src.PostgresDSN)

	setString(&dst.RedisAddr, src.RedisAddr)
	setString(&dst.RedisPassword, src.RedisPassword)
	setInt(&dst.RedisDB, src.RedisDB)
	setDuration(&dst.CacheTTL, src.CacheTTL)

	setString(&dst.HistoryDir, src.HistoryDir)

	setString(&dst.IngestDir, src.IngestDir)
	if len(src.KafkaBrokers) > 0 {
		dst.KafkaBrokers = src.KafkaBrokers
	}
	setString(&dst.KafkaTopic, src.KafkaTopic)
	setString(&dst.KafkaGroupID, src.KafkaGroupID)
	setFloat(&dst.KafkaMaxEventsPerS, src.KafkaMaxEventsPerS)

	setBool(&dst.ReplanEnabled, src.ReplanEnabled)
	setDuration(&dst.ReplanDebounce, src.ReplanDebounce)
	setString(&dst.ExportPath, src.ExportPath)

	setFloat(&dst.STATBonus, src.STATBonus)
	setFloat(&dst.PRNPenalty, src.PRNPenalty)
	setFloat(&dst.AcuityLow, src.AcuityLow)
	setFloat(&dst.AcuityMedium, src.AcuityMedium)
	setFloat(&dst.AcuityHigh, src.AcuityHigh)
	setFloat(&dst.AcuityCritical, src.AcuityCritical)
	setFloat(&dst.TypeMedication, src.TypeMedication)
	setFloat(&dst.TypeProcedure, src.TypeProcedure)
	setFloat(&dst.TypeLab, src.TypeLab)
	setFloat(&dst.TypeAssessment, src.TypeAssessment)

	setString(&dst.LogLevel, src.LogLevel)

	setBool(&dst.OTELEnabled, src.OTELEnabled)
	setString(&dst.OTELExporter, src.OTELExporter)
	setString(&dst.OTELEndpoint, src.OTELEndpoint)
	setFloat(&dst.OTELSamplingRate, src.OTELSamplingRate)
	setString(&dst.Environment, src.Environment)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) {
	if src == nil {
		return
	}
	if d, err := time.ParseDuration(*src); err == nil {
		*dst = d
	}
}
