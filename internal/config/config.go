package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	RawDir          string
	OutputDir       string
	HTTPAddr        string
	MetricsFile     string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is applied first when present; variables
// already set in the environment take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RawDir:          sharedcfg.EnvOrDefault("ERA5_RAW_DIR", "../data/raw/era5-datasets"),
		OutputDir:       sharedcfg.EnvOrDefault("ERA5_OUTPUT_DIR", "../data/preprocessed/era5-datasets"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ""),
		MetricsFile:     sharedcfg.EnvOrDefault("METRICS_FILE", ""),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.RawDir == "" {
		return nil, errors.New("ERA5_RAW_DIR is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("ERA5_OUTPUT_DIR is required")
	}
	if filepath.Clean(cfg.RawDir) == filepath.Clean(cfg.OutputDir) {
		return nil, errors.New("ERA5_OUTPUT_DIR must differ from ERA5_RAW_DIR")
	}

	return cfg, nil
}
