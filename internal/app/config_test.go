package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/research-evidence-backend/internal/data/db"
	"github.com/yungbote/research-evidence-backend/internal/similarity"
)

func TestLoadConfigDefaults(t *testing.T) {
	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, db.DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, similarity.DefaultAnalysisTimeout, cfg.AnalysisTimeout)
	assert.Equal(t, 2*time.Minute, cfg.LockTTL)
	assert.False(t, cfg.ObjectStorageEnabled)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, "development", cfg.Log.Mode)
	assert.False(t, cfg.Log.DisableRedaction)
	assert.False(t, cfg.Vision.Enabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("ANALYSIS_TIMEOUT_SECONDS", "5")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443")
	t.Setenv("LOG_REDACTION_ENABLED", "false")
	t.Setenv("VISION_OCR_ENABLED", "true")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/secrets/sa.json")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, db.DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, 5*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.ObjectStorageEnabled)
	assert.True(t, cfg.ObjectStorage.IsEmulatorMode())
	assert.True(t, cfg.Log.DisableRedaction)
	assert.True(t, cfg.Vision.Enabled)
	assert.Equal(t, "/secrets/sa.json", cfg.Vision.Credentials)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR: \":9090\"\nOPENAI_MODEL: gpt-4.1-mini\n"), 0o644))

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "gpt-4.1-mini", cfg.OpenAI.Model)

	_, err = NewViper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	v, err := NewViper("")
	require.NoError(t, err)
	_, err = LoadConfig(v)
	assert.ErrorContains(t, err, "unsupported DB_DRIVER")
}
