package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
port: "9000"
database:
  url: postgres://u:p@localhost/db
s3:
  bucket: docs
ocr:
  endpoint: http://ocr.local/analyze
  timeout: 90s
llm:
  api_key: from-file
jwt:
  access_secret: a
  refresh_secret: r
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 90*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, 120, cfg.OCR.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.OCR.PresignTTL)
	assert.Equal(t, "solar-1-mini-chat", cfg.LLM.Model)
	assert.Equal(t, 10, cfg.LLM.HistoryLimit)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("S3_BUCKET", "env-bucket")
	t.Setenv("UPSTAGE_API_KEY", "from-env")
	t.Setenv("OCR_TIMEOUT", "30s")

	cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-bucket", cfg.S3.Bucket)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, 30*time.Second, cfg.OCR.Timeout)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateReportsMissingFields(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `port: "1"`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
	assert.Contains(t, err.Error(), "ocr.endpoint")
	assert.Contains(t, err.Error(), "jwt.access_secret")
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
	require.NoError(t, err)
	cfg.LLM.Provider = "claude"

	assert.ErrorContains(t, cfg.Validate(), "unsupported llm provider")
}
