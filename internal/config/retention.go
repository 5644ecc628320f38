package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// StorageConfig holds the database location and retention policy
type StorageConfig struct {
	// Path is the sqlite database file
	// Default: .gitpulse/gitpulse.db
	Path string `yaml:"path"`

	// RetentionDays is how long events, milestones, suggestions and deliveries are kept
	// Default: 30, Range: 1-365
	RetentionDays int `yaml:"retention_days"`

	// CleanupInterval is how often rows past retention are deleted
	// Default: 24h, Range: 1m-168h
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// CleanupEnabled controls whether automatic cleanup runs
	// Default: true
	CleanupEnabled bool `yaml:"cleanup_enabled"`
}

// DefaultStorageConfig returns the default storage configuration
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Path:            ".gitpulse/gitpulse.db",
		RetentionDays:   30,
		CleanupInterval: 24 * time.Hour,
		CleanupEnabled:  true,
	}
}

// Retention returns the retention period as a duration
func (c StorageConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Validate checks if the configuration has valid values
func (c StorageConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		return fmt.Errorf("storage.retention_days must be between 1 and 365 (got %d)", c.RetentionDays)
	}
	if c.CleanupInterval < time.Minute {
		return fmt.Errorf("storage.cleanup_interval must be at least 1m (got %v)", c.CleanupInterval)
	}
	if c.CleanupInterval > 168*time.Hour {
		return fmt.Errorf("storage.cleanup_interval too large (got %v, max 168h)", c.CleanupInterval)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c StorageConfig) String() string {
	return fmt.Sprintf("StorageConfig{Path: %s, RetentionDays: %d, CleanupInterval: %v, Enabled: %t}",
		c.Path, c.RetentionDays, c.CleanupInterval, c.CleanupEnabled)
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
	return nil
}

// parseEnvDuration parses a duration such as "90s" or "4h" from an environment variable
func parseEnvDuration(key string, dest *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
