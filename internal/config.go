package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Document store configuration
	DocstoreProvider string // "memory" or "postgres"
	DatabaseUrl      string // required for postgres

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Analyzer Provider Configuration
	AnalyzerProvider       string // "remote" or "mock"
	AnalyzerURL            string
	AnalyzerRequestTimeout time.Duration

	// Monthly usage reconciliation
	ReconcileEnabled  bool
	ReconcileSchedule string // cron expression

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Document store defaults to in-memory for development
		DocstoreProvider: getEnv("DOCSTORE_PROVIDER", "memory"),
		DatabaseUrl:      getEnv("DATABASE_URL", ""),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		// Analyzer provider defaults
		AnalyzerProvider:       getEnv("ANALYZER_PROVIDER", "mock"),
		AnalyzerURL:            getEnv("ANALYZER_URL", ""),
		AnalyzerRequestTimeout: getEnvDuration("ANALYZER_REQUEST_TIMEOUT", 20*time.Minute),

		// Monthly reset sweep: 00:05 UTC on the first of each month
		ReconcileEnabled:  getEnvBool("RECONCILE_ENABLED", true),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "5 0 1 * *"),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Validate document store configuration
	if cfg.DocstoreProvider == "postgres" {
		if cfg.DatabaseUrl == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when DOCSTORE_PROVIDER is 'postgres'")
		}
	} else if cfg.DocstoreProvider != "memory" {
		return nil, fmt.Errorf("DOCSTORE_PROVIDER must be either 'memory' or 'postgres', got: %s", cfg.DocstoreProvider)
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	// Validate analyzer provider configuration
	if cfg.AnalyzerProvider == "remote" {
		if cfg.AnalyzerURL == "" {
			return nil, fmt.Errorf("ANALYZER_URL is required when ANALYZER_PROVIDER is 'remote'")
		}
	} else if cfg.AnalyzerProvider != "mock" {
		return nil, fmt.Errorf("ANALYZER_PROVIDER must be either 'remote' or 'mock', got: %s", cfg.AnalyzerProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
