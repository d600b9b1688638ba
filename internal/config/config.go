// Package config loads bucketfile runtime configuration from environment
// variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Backend names accepted in BUCKETFILE_BACKEND.
const (
	BackendS3     = "s3"
	BackendMinIO  = "minio"
	BackendFS     = "fs"
	BackendMemory = "memory"
)

// Config holds all runtime configuration for the CLI.
type Config struct {
	Backend string
	Bucket  string

	// S3-compatible object storage
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	PathStyle    bool
	UseSSL       bool
	R2AccountID  string
	FSRoot       string
	ChunkSize    int
	LogLevel     string
	LogFormat    string
	envFileFound bool
}

// Load reads configuration from a .env file (if present) and environment
// variables. Values already in the environment win over the file.
func Load(files ...string) (*Config, error) {
	envFileFound := godotenv.Load(files...) == nil

	chunkSize, err := getInt("BUCKETFILE_CHUNK_SIZE", 65536)
	if err != nil {
		return nil, err
	}
	pathStyle, err := getBool("BUCKETFILE_PATH_STYLE", false)
	if err != nil {
		return nil, err
	}
	useSSL, err := getBool("BUCKETFILE_USE_SSL", true)
	if err != nil {
		return nil, err
	}

	return &Config{
		Backend:      strings.ToLower(getEnv("BUCKETFILE_BACKEND", BackendS3)),
		Bucket:       getEnv("BUCKETFILE_BUCKET", ""),
		Region:       getEnv("BUCKETFILE_REGION", "us-east-1"),
		Endpoint:     getEnv("BUCKETFILE_ENDPOINT", ""),
		AccessKey:    getEnv("BUCKETFILE_ACCESS_KEY", ""),
		SecretKey:    getEnv("BUCKETFILE_SECRET_KEY", ""),
		PathStyle:    pathStyle,
		UseSSL:       useSSL,
		R2AccountID:  getEnv("BUCKETFILE_R2_ACCOUNT_ID", ""),
		FSRoot:       getEnv("BUCKETFILE_FS_ROOT", "."),
		ChunkSize:    chunkSize,
		LogLevel:     strings.ToLower(getEnv("BUCKETFILE_LOG_LEVEL", "info")),
		LogFormat:    strings.ToLower(getEnv("BUCKETFILE_LOG_FORMAT", "text")),
		envFileFound: envFileFound,
	}, nil
}

// EnvFileFound reports whether Load read a .env file.
func (c *Config) EnvFileFound() bool {
	return c.envFileFound
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendS3:
	case BackendMinIO:
		if c.Endpoint == "" {
			errs = append(errs, errors.New("BUCKETFILE_ENDPOINT is required for the minio backend"))
		}
	case BackendFS:
		if c.FSRoot == "" {
			errs = append(errs, errors.New("BUCKETFILE_FS_ROOT is required for the fs backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown BUCKETFILE_BACKEND %q", c.Backend))
	}
	if c.Bucket == "" {
		errs = append(errs, errors.New("BUCKETFILE_BUCKET is required"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("BUCKETFILE_CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("BUCKETFILE_LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("BUCKETFILE_LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
