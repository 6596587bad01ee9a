package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cmportal/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	Admin    AdminConfig
	Datasets DatasetConfig
	Uploads  UploadConfig
	Cache    CacheConfig
	Database DatabaseConfig
	LogLevel string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// AdminConfig holds the admin (health, cache, pprof) listener settings
type AdminConfig struct {
	Port    string
	Enabled bool
}

// DatasetConfig holds the paths of the reference CSV tables
type DatasetConfig struct {
	Dir                     string
	BinaryFeatures          string
	CleanedDatabase         string
	FeatureCategories       string
	CausalFeatureCategories string
	TargetParameters        string
	OddsEnrichments         string
	Enrichments             string
	SelectedVariables       string
}

// UploadConfig holds benchmark upload settings
type UploadConfig struct {
	Dir             string
	MaxSizeMB       int64
	CleanupAfter    time.Duration
	CleanupInterval time.Duration
}

// CacheConfig holds result cache settings
type CacheConfig struct {
	ResultCacheSize int
}

// DatabaseConfig holds the optional Postgres mirror connection
type DatabaseConfig struct {
	URL string
	// ServeReference loads the reference tables from the mirror instead of the CSV files
	ServeReference bool
}

// Enabled reports whether the Postgres mirror is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:   *loadServerConfig(),
		Admin:    *loadAdminConfig(),
		Datasets: *loadDatasetConfig(),
		Uploads:  *loadUploadConfig(),
		Cache: CacheConfig{
			ResultCacheSize: getEnvIntOrDefault("RESULT_CACHE_SIZE", 256),
		},
		Database: DatabaseConfig{
			URL:            getEnvOrDefault("DATABASE_URL", ""),
			ServeReference: getEnvBoolOrDefault("REFERENCE_FROM_DB", false),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadAdminConfig() *AdminConfig {
	return &AdminConfig{
		Port:    getEnvOrDefault("ADMIN_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("ADMIN_ENABLED", true),
	}
}

// Default file names follow the curated dataset release the portal ships with
func loadDatasetConfig() *DatasetConfig {
	dir := getEnvOrDefault("DATASETS_DIR", "./datasets")
	path := func(key, name string) string {
		return getEnvOrDefault(key, filepath.Join(dir, name))
	}
	return &DatasetConfig{
		Dir:                     dir,
		BinaryFeatures:          path("BINARY_FEATURES_FILE", "1_BinaryFeatures_25Feb25.csv"),
		CleanedDatabase:         path("CLEANED_DATABASE_FILE", "0_CleanedDatabase_25Feb25.csv"),
		FeatureCategories:       path("FEATURE_CATEGORIES_FILE", "0_FeatureCategories_01Mar25.csv"),
		CausalFeatureCategories: path("CAUSAL_FEATURE_CATEGORIES_FILE", "0_CausalFeatureCategories_04Mar25.csv"),
		TargetParameters:        path("TARGET_PARAMETERS_FILE", "0_TargetParameters_12Apr25.csv"),
		OddsEnrichments:         path("ODDS_ENRICHMENTS_FILE", "1_PositiveOddsEnrichments_03May25.csv"),
		Enrichments:             path("ENRICHMENTS_FILE", "1_PermutatedImportancesTRUE_02May25.csv"),
		SelectedVariables:       path("SELECTED_VARIABLES_FILE", "2_SelectedVariables_12Dec25.csv"),
	}
}

func loadUploadConfig() *UploadConfig {
	return &UploadConfig{
		Dir:             getEnvOrDefault("UPLOAD_DIR", filepath.Join(os.TempDir(), "cmportal-uploads")),
		MaxSizeMB:       int64(getEnvIntOrDefault("MAX_UPLOAD_MB", 16)),
		CleanupAfter:    getEnvDurationOrDefault("UPLOAD_CLEANUP_AFTER", 20*time.Minute),
		CleanupInterval: getEnvDurationOrDefault("UPLOAD_CLEANUP_INTERVAL", 20*time.Minute),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	if config.Datasets.BinaryFeatures == "" || config.Datasets.CleanedDatabase == "" {
		return errors.ConfigInvalid("binary feature and cleaned database paths are required")
	}
	if config.Uploads.MaxSizeMB <= 0 {
		return errors.ConfigInvalid("MAX_UPLOAD_MB must be positive")
	}
	if config.Uploads.CleanupInterval <= 0 {
		return errors.ConfigInvalid("UPLOAD_CLEANUP_INTERVAL must be positive")
	}
	if config.Database.ServeReference && !config.Database.Enabled() {
		return errors.ConfigInvalid("REFERENCE_FROM_DB requires DATABASE_URL")
	}
	if config.Cache.ResultCacheSize < 0 {
		return errors.ConfigInvalid("RESULT_CACHE_SIZE cannot be negative")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
