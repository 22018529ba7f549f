package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 32, cfg.CacheMaxGraphs)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 3, cfg.DefaultDepth)
	assert.Equal(t, 8, cfg.MaxDepth)
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 32, cfg.CacheMaxGraphs)
	assert.Equal(t, "stdio", cfg.Transport)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("KIDNEY_DATA_DIR", "/tmp/test-kidney")
	t.Setenv("KIDNEY_CACHE_MAX_GRAPHS", "5")
	t.Setenv("KIDNEY_CACHE_TTL", "12h")
	t.Setenv("KIDNEY_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("KIDNEY_DEFAULT_DEPTH", "2")
	t.Setenv("KIDNEY_MAX_DEPTH", "4")
	t.Setenv("KIDNEY_LOG_LEVEL", "debug")
	t.Setenv("KIDNEY_LOG_FORMAT", "text")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-kidney", cfg.DataDir)
	assert.Equal(t, 5, cfg.CacheMaxGraphs)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	assert.Equal(t, 2, cfg.DefaultDepth)
	assert.Equal(t, 4, cfg.MaxDepth)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadLiteConfig_InvalidValuesKeepDefaults(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("KIDNEY_CACHE_MAX_GRAPHS", "-1")
	t.Setenv("KIDNEY_CACHE_TTL", "forever")
	t.Setenv("KIDNEY_DEFAULT_DEPTH", "deep")

	cfg := LoadLiteConfig()

	assert.Equal(t, 32, cfg.CacheMaxGraphs)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 3, cfg.DefaultDepth)
}

func TestLoadLiteConfig_MaxDepthNeverBelowDefault(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("KIDNEY_DEFAULT_DEPTH", "6")
	t.Setenv("KIDNEY_MAX_DEPTH", "2")

	cfg := LoadLiteConfig()

	assert.Equal(t, 6, cfg.DefaultDepth)
	assert.Equal(t, 6, cfg.MaxDepth)
}

func TestLiteConfig_Dirs(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.kidney-chain"}

	assert.Equal(t, "/home/user/.kidney-chain/exports", cfg.ExportDir())
	assert.Equal(t, "/home/user/.kidney-chain/reports", cfg.ReportDir())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	cfg := &LiteConfig{DataDir: filepath.Join(tmpDir, "kidney")}

	err = cfg.EnsureDataDir()
	require.NoError(t, err)

	for _, dir := range []string{cfg.DataDir, cfg.ExportDir(), cfg.ReportDir()} {
		_, err = os.Stat(dir)
		assert.NoError(t, err)
	}
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"KIDNEY_DATA_DIR",
		"KIDNEY_CACHE_MAX_GRAPHS",
		"KIDNEY_CACHE_TTL",
		"KIDNEY_REDIS_URL",
		"KIDNEY_DEFAULT_DEPTH",
		"KIDNEY_MAX_DEPTH",
		"KIDNEY_TRANSPORT",
		"KIDNEY_LOG_LEVEL",
		"KIDNEY_LOG_FORMAT",
	}
	for _, v := range vars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
