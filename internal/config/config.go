// Package config loads gitpulse configuration from YAML with GITPULSE_*
// environment overrides. Each component owns its config type; this package
// composes them and validates everything at load time.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/gitpulse/internal/guard"
	"github.com/steveyegge/gitpulse/internal/milestones"
	"github.com/steveyegge/gitpulse/internal/suggestions"
	"github.com/steveyegge/gitpulse/internal/webhook"
)

// DefaultPath is the configuration file looked up in the project root.
const DefaultPath = ".gitpulse.yaml"

// ErrInvalidConfig wraps every load and validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// NotificationStyle controls how much the CLI prints.
type NotificationStyle string

const (
	NotifySilent   NotificationStyle = "silent"
	NotifyMinimal  NotificationStyle = "minimal"
	NotifyDetailed NotificationStyle = "detailed"
)

// MonitoringConfig configures observation and suggestions.
type MonitoringConfig struct {
	Enabled              bool                         `yaml:"enabled"`
	ConversationTracking bool                         `yaml:"conversation_tracking"`
	AutoSuggestions      bool                         `yaml:"auto_suggestions"`
	CommitThreshold      int                          `yaml:"commit_threshold"`
	ReleaseThreshold     suggestions.ReleaseThreshold `yaml:"release_threshold"`
	HelpErrorThreshold   int                          `yaml:"help_error_threshold"`
	NotificationStyle    NotificationStyle            `yaml:"notification_style"`
	LearningMode         bool                         `yaml:"learning_mode"`
	IgnoreAfter          time.Duration                `yaml:"ignore_after"`
	PollInterval         time.Duration                `yaml:"poll_interval"`
	MainBranches         []string                     `yaml:"main_branches"`
}

// Suggestions returns the suggestion engine configuration.
func (m MonitoringConfig) Suggestions() suggestions.Config {
	cfg := suggestions.DefaultConfig()
	cfg.AutoSuggestions = m.AutoSuggestions
	cfg.CommitThreshold = m.CommitThreshold
	cfg.ReleaseThreshold = m.ReleaseThreshold
	cfg.HelpErrorThreshold = m.HelpErrorThreshold
	cfg.LearningMode = m.LearningMode
	cfg.IgnoreAfter = m.IgnoreAfter
	if len(m.MainBranches) > 0 {
		cfg.MainBranches = m.MainBranches
	}
	return cfg
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AIConfig configures AI commit messages. The key is read from ANTHROPIC_API_KEY.
type AIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

// Config is the root configuration.
type Config struct {
	Monitoring  MonitoringConfig      `yaml:"monitoring"`
	Aggregation milestones.Config     `yaml:"aggregation"`
	Webhooks    webhook.Config        `yaml:"webhooks"`
	RateLimit   guard.RateLimitConfig `yaml:"rate_limit"`
	Auth        guard.AuthConfig      `yaml:"auth"`
	CORS        guard.CORSConfig      `yaml:"cors"`
	Server      ServerConfig          `yaml:"server"`
	Storage     StorageConfig         `yaml:"storage"`
	AI          AIConfig              `yaml:"ai"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	sug := suggestions.DefaultConfig()
	return &Config{
		Monitoring: MonitoringConfig{
			Enabled:              true,
			ConversationTracking: true,
			AutoSuggestions:      sug.AutoSuggestions,
			CommitThreshold:      sug.CommitThreshold,
			ReleaseThreshold:     sug.ReleaseThreshold,
			HelpErrorThreshold:   sug.HelpErrorThreshold,
			NotificationStyle:    NotifyMinimal,
			IgnoreAfter:          sug.IgnoreAfter,
			PollInterval:         5 * time.Second,
			MainBranches:         sug.MainBranches,
		},
		Aggregation: milestones.DefaultConfig(),
		RateLimit:   guard.DefaultRateLimitConfig(),
		CORS:        guard.DefaultCORSConfig(),
		Server:      ServerConfig{Addr: "127.0.0.1:7420", ShutdownTimeout: 5 * time.Second},
		Storage:     DefaultStorageConfig(),
		AI:          AIConfig{Model: "claude-sonnet-4-5-20250929"},
	}
}

// Load reads path (a missing file yields defaults), applies environment
// overrides and validates. Every error wraps ErrInvalidConfig.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, path, err)
		}
	case os.IsNotExist(err):
		// File doesn't exist, use defaults
	default:
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidConfig, path, err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GITPULSE_* environment variables.
//
// Environment variables:
//   - GITPULSE_MONITORING_ENABLED, GITPULSE_CONVERSATION_TRACKING, GITPULSE_AUTO_SUGGESTIONS
//   - GITPULSE_COMMIT_THRESHOLD, GITPULSE_RELEASE_FEATURES, GITPULSE_RELEASE_BUGFIXES
//   - GITPULSE_NOTIFICATION_STYLE, GITPULSE_LEARNING_MODE, GITPULSE_POLL_INTERVAL
//   - GITPULSE_AGGREGATION_WINDOW
//   - GITPULSE_WEBHOOK_SECRET
//   - GITPULSE_RATE_LIMIT_ENABLED, GITPULSE_RATE_LIMIT_WINDOW, GITPULSE_RATE_LIMIT_MAX
//   - GITPULSE_AUTH_ENABLED
//   - GITPULSE_ADDR, GITPULSE_DB, GITPULSE_RETENTION_DAYS
//   - GITPULSE_AI_ENABLED, GITPULSE_AI_MODEL
func (c *Config) ApplyEnv() error {
	var style string
	steps := []error{
		parseEnvBool("GITPULSE_MONITORING_ENABLED", &c.Monitoring.Enabled),
		parseEnvBool("GITPULSE_CONVERSATION_TRACKING", &c.Monitoring.ConversationTracking),
		parseEnvBool("GITPULSE_AUTO_SUGGESTIONS", &c.Monitoring.AutoSuggestions),
		parseEnvInt("GITPULSE_COMMIT_THRESHOLD", &c.Monitoring.CommitThreshold),
		parseEnvInt("GITPULSE_RELEASE_FEATURES", &c.Monitoring.ReleaseThreshold.Features),
		parseEnvInt("GITPULSE_RELEASE_BUGFIXES", &c.Monitoring.ReleaseThreshold.Bugfixes),
		parseEnvString("GITPULSE_NOTIFICATION_STYLE", &style),
		parseEnvBool("GITPULSE_LEARNING_MODE", &c.Monitoring.LearningMode),
		parseEnvDuration("GITPULSE_POLL_INTERVAL", &c.Monitoring.PollInterval),
		parseEnvDuration("GITPULSE_AGGREGATION_WINDOW", &c.Aggregation.Window),
		parseEnvString("GITPULSE_WEBHOOK_SECRET", &c.Webhooks.SigningSecret),
		parseEnvBool("GITPULSE_RATE_LIMIT_ENABLED", &c.RateLimit.Enabled),
		parseEnvDuration("GITPULSE_RATE_LIMIT_WINDOW", &c.RateLimit.Window),
		parseEnvInt("GITPULSE_RATE_LIMIT_MAX", &c.RateLimit.MaxRequests),
		parseEnvBool("GITPULSE_AUTH_ENABLED", &c.Auth.Enabled),
		parseEnvString("GITPULSE_ADDR", &c.Server.Addr),
		parseEnvString("GITPULSE_DB", &c.Storage.Path),
		parseEnvInt("GITPULSE_RETENTION_DAYS", &c.Storage.RetentionDays),
		parseEnvBool("GITPULSE_AI_ENABLED", &c.AI.Enabled),
		parseEnvString("GITPULSE_AI_MODEL", &c.AI.Model),
	}
	if err := errors.Join(steps...); err != nil {
		return err
	}
	if style != "" {
		c.Monitoring.NotificationStyle = NotificationStyle(style)
	}
	return nil
}

// Validate checks every section. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.Monitoring.NotificationStyle {
	case NotifySilent, NotifyMinimal, NotifyDetailed:
	default:
		return fmt.Errorf("%w: monitoring.notification_style must be silent, minimal or detailed, got %q",
			ErrInvalidConfig, c.Monitoring.NotificationStyle)
	}
	if c.Monitoring.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("%w: monitoring.poll_interval must be at least 100ms, got %v",
			ErrInvalidConfig, c.Monitoring.PollInterval)
	}

	checks := []struct {
		section string
		err     error
	}{
		{"monitoring", c.Monitoring.Suggestions().Validate()},
		{"aggregation", c.Aggregation.Validate()},
		{"webhooks", c.Webhooks.Validate()},
		{"rate_limit", c.RateLimit.Validate()},
		{"auth", c.Auth.Validate()},
		{"cors", c.CORS.Validate()},
		{"storage", c.Storage.Validate()},
	}
	for _, chk := range checks {
		if chk.err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, chk.section, chk.err)
		}
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalidConfig)
	}
	return nil
}
