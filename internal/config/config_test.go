package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leadqual.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Pipeline.Concurrency)
	assert.False(t, cfg.Pipeline.ProcessAllRows)
	assert.Equal(t, 10, cfg.Pipeline.PreviewRows)
	assert.False(t, cfg.Pipeline.GenerateEmails)
	assert.Equal(t, "https://api.perplexity.ai", cfg.Perplexity.BaseURL)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, "gpt-4", cfg.OpenAI.Model)
	assert.Equal(t, "perplexity", cfg.Policy.Classifier)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leads
log:
  level: debug
  format: console
server:
  port: 9090
pipeline:
  concurrency: 5
  process_all_rows: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/leads", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Pipeline.Concurrency)
	assert.True(t, cfg.Pipeline.ProcessAllRows)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.Pipeline.PreviewRows)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADQUAL_STORE_DRIVER", "postgres")
	t.Setenv("LEADQUAL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("LEADQUAL_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Pipeline.Concurrency = 3
	cfg.Pipeline.PreviewRows = 10
	cfg.Store.Driver = "sqlite"
	cfg.Policy.Classifier = "perplexity"
	cfg.Perplexity.Key = "pplx-key"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateQualify_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("qualify"))
}

func TestValidateQualify_MissingProviderKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Perplexity.Key = ""

	err := cfg.Validate("qualify")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "perplexity.key is required")
}

func TestValidateQualify_AnthropicClassifier(t *testing.T) {
	cfg := validDefaults()
	cfg.Policy.Classifier = "anthropic"
	cfg.Perplexity.Key = ""

	err := cfg.Validate("qualify")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant-key"
	assert.NoError(t, cfg.Validate("qualify"))
}

func TestValidateQualify_UnknownClassifier(t *testing.T) {
	cfg := validDefaults()
	cfg.Policy.Classifier = "oracle"

	err := cfg.Validate("qualify")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "policy.classifier must be perplexity or anthropic")
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("qualify")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/leads"
	assert.NoError(t, cfg.Validate("qualify"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateSync(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("sync")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "salesforce.client_id is required")

	cfg.Salesforce.ClientID = "client"
	cfg.Salesforce.Username = "user@example.com"
	cfg.Salesforce.KeyPath = "/etc/sf.key"
	assert.NoError(t, cfg.Validate("sync"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Pipeline.Concurrency = 0
	err := cfg.Validate("qualify")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.concurrency must be between 1 and 50")

	cfg.Pipeline.Concurrency = 51
	err = cfg.Validate("qualify")
	assert.Error(t, err)

	cfg.Pipeline.Concurrency = 50
	assert.NoError(t, cfg.Validate("qualify"))
}
