// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careshift/careshift/internal/clinical"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.ReplanEnabled)
	assert.Equal(t, "test", cfg.Version)
	assert.True(t, filepath.IsAbs(cfg.DataDir), "data dir is made absolute")
	assert.Equal(t, filepath.Join(cfg.DataDir, "schedule.json"), cfg.ExportPath)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("CARESHIFT_LISTEN", ":9999")
	t.Setenv("CARESHIFT_STORE_BACKEND", "sqlite")
	t.Setenv("CARESHIFT_CACHE_TTL", "90s")
	t.Setenv("CARESHIFT_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("CARESHIFT_REPLAN_ENABLED", "off")

	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Listen)
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.ReplanEnabled)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":7777\"\nlog_level: debug\n"), 0o600))

	t.Setenv("CARESHIFT_LISTEN", ":8888")

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)

	assert.Equal(t, ":8888", cfg.Listen, "env wins over file")
	assert.Equal(t, "debug", cfg.LogLevel, "file wins over default")
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listn: \":7777\"\n"), 0o600))

	_, err := NewLoader(path, "test").Load()
	require.Error(t, err)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CARESHIFT_STORE_BACKEND", "etcd")
	_, err := NewLoader("", "test").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestValidatePostgresNeedsDSN(t *testing.T) {
	t.Setenv("CARESHIFT_STORE_BACKEND", "postgres")
	_, err := NewLoader("", "test").Load()
	require.Error(t, err)

	t.Setenv("CARESHIFT_POSTGRES_DSN", "postgres://localhost/careshift")
	_, err = NewLoader("", "test").Load()
	require.NoError(t, err)
}

func TestSchedulerWeights(t *testing.T) {
	var cfg AppConfig
	w := cfg.SchedulerWeights()
	assert.Equal(t, 1.5, w.STATBonus)
	assert.Equal(t, 0.4, w.PRNPenalty)

	cfg.STATBonus = 2.0
	cfg.PRNPenalty = 0.1
	cfg.AcuityCritical = 3.0
	cfg.TypeLab = 0.9
	w = cfg.SchedulerWeights()
	assert.Equal(t, 2.0, w.STATBonus)
	assert.Equal(t, 0.1, w.PRNPenalty)
	assert.Equal(t, 3.0, w.Acuity[clinical.AcuityCritical])
	assert.Equal(t, 0.9, w.OrderType[clinical.OrderLab])
	assert.Equal(t, 1.0, w.Acuity[clinical.AcuityLow], "unset levels keep defaults")
	assert.Equal(t, 1.4, w.OrderType[clinical.OrderMedication], "unset types keep defaults")
}

func TestEnvWeightOverrides(t *testing.T) {
	t.Setenv("CARESHIFT_WEIGHT_ACUITY_HIGH", "2.5")
	t.Setenv("CARESHIFT_WEIGHT_TYPE_PROCEDURE", "1.7")

	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)

	w := cfg.SchedulerWeights()
	assert.Equal(t, 2.5, w.Acuity[clinical.AcuityHigh])
	assert.Equal(t, 1.7, w.OrderType[clinical.OrderProcedure])
	assert.Equal(t, 1.5, w.STATBonus, "untouched weights keep defaults")
}

func TestValidateRejectsNegativeWeight(t *testing.T) {
	t.Setenv("CARESHIFT_WEIGHT_ACUITY_LOW", "-0.5")
	_, err := NewLoader("", "test").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acuity low weight must be >= 0")
}

func TestParseBoolForms(t *testing.T) {
	t.Setenv("CARESHIFT_TEST_BOOL", "yes")
	assert.True(t, ParseBool("CARESHIFT_TEST_BOOL", false))
	t.Setenv("CARESHIFT_TEST_BOOL", "off")
	assert.False(t, ParseBool("CARESHIFT_TEST_BOOL", true))
	t.Setenv("CARESHIFT_TEST_BOOL", "maybe")
	assert.True(t, ParseBool("CARESHIFT_TEST_BOOL", true), "invalid falls back to default")
}
