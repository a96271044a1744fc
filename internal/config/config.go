// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir     string // Base directory for the runs database (always absolute)
	Port        int
	LogLevel    string
	DevMode     bool
	Shots       int    // Default shot count per circuit execution
	Workers     int    // Loss evaluation worker pool size
	ReportEvery int    // Training progress logging cadence (iterations)
	BackendKind string // "simulator" or "remote"
	BackendURL  string // Remote execution service base URL
	SimSeed     int64  // Simulator shot-sampling seed
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("QCOMPRESS_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:     absDataDir,
		Port:        getEnvAsInt("QCOMPRESS_PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DevMode:     getEnvAsBool("DEV_MODE", false),
		Shots:       getEnvAsInt("QCOMPRESS_SHOTS", 1024),
		Workers:     getEnvAsInt("QCOMPRESS_WORKERS", 4),
		ReportEvery: getEnvAsInt("QCOMPRESS_REPORT_EVERY", 10),
		BackendKind: getEnv("QCOMPRESS_BACKEND", "simulator"),
		BackendURL:  getEnv("QCOMPRESS_BACKEND_URL", "http://localhost:9000"),
		SimSeed:     int64(getEnvAsInt("QCOMPRESS_SIM_SEED", 0)),
	}

	if cfg.BackendKind != "simulator" && cfg.BackendKind != "remote" {
		return nil, fmt.Errorf("unknown backend kind %q", cfg.BackendKind)
	}
	if cfg.Shots < 0 {
		return nil, fmt.Errorf("negative shot count %d", cfg.Shots)
	}

	return cfg, nil
}

// DatabasePath returns the absolute path of the runs database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
