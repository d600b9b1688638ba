package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"BUCKETFILE_BACKEND", "BUCKETFILE_BUCKET", "BUCKETFILE_REGION", "BUCKETFILE_ENDPOINT",
	"BUCKETFILE_ACCESS_KEY", "BUCKETFILE_SECRET_KEY", "BUCKETFILE_PATH_STYLE", "BUCKETFILE_USE_SSL",
	"BUCKETFILE_R2_ACCOUNT_ID", "BUCKETFILE_FS_ROOT", "BUCKETFILE_CHUNK_SIZE",
	"BUCKETFILE_LOG_LEVEL", "BUCKETFILE_LOG_FORMAT",
}

// clearEnv blanks every key for the test; empty values fall back to defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, BackendS3, cfg.Backend)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, 65536, cfg.ChunkSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.UseSSL)
	assert.False(t, cfg.PathStyle)
	assert.False(t, cfg.EnvFileFound())

	assert.ErrorContains(t, cfg.Validate(), "BUCKETFILE_BUCKET is required")
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "BUCKETFILE_BACKEND=MinIO\nBUCKETFILE_BUCKET=data\nBUCKETFILE_ENDPOINT=localhost:9000\nBUCKETFILE_USE_SSL=false\nBUCKETFILE_CHUNK_SIZE=1024\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// godotenv.Load does not override variables that are already set, and
	// t.Setenv("", ...) counts as set. Unset the ones the file provides.
	for _, k := range []string{"BUCKETFILE_BACKEND", "BUCKETFILE_BUCKET", "BUCKETFILE_ENDPOINT", "BUCKETFILE_USE_SSL", "BUCKETFILE_CHUNK_SIZE"} {
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.EnvFileFound())
	assert.Equal(t, BackendMinIO, cfg.Backend)
	assert.Equal(t, "data", cfg.Bucket)
	assert.False(t, cfg.UseSSL)
	assert.Equal(t, 1024, cfg.ChunkSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidNumbers(t *testing.T) {
	clearEnv(t)

	t.Setenv("BUCKETFILE_CHUNK_SIZE", "big")
	_, err := Load()
	assert.ErrorContains(t, err, "BUCKETFILE_CHUNK_SIZE")

	t.Setenv("BUCKETFILE_CHUNK_SIZE", "")
	t.Setenv("BUCKETFILE_PATH_STYLE", "maybe")
	_, err = Load()
	assert.ErrorContains(t, err, "BUCKETFILE_PATH_STYLE")
}

func TestValidate(t *testing.T) {
	valid := Config{Backend: BackendMemory, Bucket: "b", ChunkSize: 10, LogLevel: "debug", LogFormat: "json"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Backend = "ftp" }, "unknown BUCKETFILE_BACKEND"},
		{"minio without endpoint", func(c *Config) { c.Backend = BackendMinIO }, "BUCKETFILE_ENDPOINT"},
		{"fs without root", func(c *Config) { c.Backend = BackendFS }, "BUCKETFILE_FS_ROOT"},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, "BUCKETFILE_CHUNK_SIZE"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "BUCKETFILE_LOG_LEVEL"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "BUCKETFILE_LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}
