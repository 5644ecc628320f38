package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/gitpulse/internal/webhook"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 10, cfg.Monitoring.CommitThreshold)
	assert.Equal(t, 4*time.Hour, cfg.Aggregation.Window)
	assert.Equal(t, []string{"/api/health"}, cfg.RateLimit.ExemptPaths)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
monitoring:
  commit_threshold: 15
  release_threshold:
    features: 4
    bugfixes: 1
  notification_style: detailed
  learning_mode: true
  poll_interval: 2s
aggregation:
  window: 2h
  feature_shipped_min: 3
webhooks:
  signing_secret: abc
  endpoints:
    - name: slack
      url: https://hooks.example.com/slack
      events: ["suggestion.*"]
      auth:
        type: bearer
        token: t0k
      retry:
        max_attempts: 5
        backoff: linear
        base_delay: 500ms
        max_delay: 5s
      timeout: 3s
rate_limit:
  enabled: true
  window: 30s
  max_requests: 20
  by: ip
auth:
  enabled: true
  tokens:
    - name: ci
      secret: s3cret
      scopes: [read]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Monitoring.CommitThreshold)
	assert.Equal(t, 4, cfg.Monitoring.ReleaseThreshold.Features)
	assert.Equal(t, NotifyDetailed, cfg.Monitoring.NotificationStyle)
	assert.Equal(t, 2*time.Second, cfg.Monitoring.PollInterval)
	assert.True(t, cfg.Monitoring.ConversationTracking, "unset fields keep defaults")

	assert.Equal(t, 2*time.Hour, cfg.Aggregation.Window)
	assert.Equal(t, 3, cfg.Aggregation.FeatureShippedMin)
	assert.Equal(t, 10, cfg.Aggregation.SprintCommits)

	require.Len(t, cfg.Webhooks.Endpoints, 1)
	ep := cfg.Webhooks.Endpoints[0]
	assert.Equal(t, webhook.AuthBearer, ep.Auth.Type)
	assert.Equal(t, webhook.RetryConfig{MaxAttempts: 5, Backoff: webhook.BackoffLinear, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}, *ep.Retry)
	assert.Equal(t, 3*time.Second, ep.Timeout)

	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "s3cret", cfg.Auth.Tokens[0].Secret)

	sug := cfg.Monitoring.Suggestions()
	assert.Equal(t, 15, sug.CommitThreshold)
	assert.True(t, sug.LearningMode)
}

func TestMalformedAuthFailsAtLoad(t *testing.T) {
	path := writeConfig(t, `
webhooks:
  endpoints:
    - url: https://hooks.example.com/x
      auth:
        type: basic
        username: only-user
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, webhook.ErrInvalidAuth)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "monitoring: [1, 2"},
		{"zero commit threshold", "monitoring:\n  commit_threshold: 0"},
		{"bad style", "monitoring:\n  notification_style: loud"},
		{"negative window", "aggregation:\n  window: -1h"},
		{"retention too long", "storage:\n  retention_days: 400"},
		{"auth without tokens", "auth:\n  enabled: true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GITPULSE_COMMIT_THRESHOLD", "25")
	t.Setenv("GITPULSE_NOTIFICATION_STYLE", "silent")
	t.Setenv("GITPULSE_AGGREGATION_WINDOW", "90m")
	t.Setenv("GITPULSE_RATE_LIMIT_ENABLED", "false")
	t.Setenv("GITPULSE_DB", "/tmp/x.db")
	t.Setenv("GITPULSE_WEBHOOK_SECRET", "from-env")

	cfg, err := Load(writeConfig(t, "monitoring:\n  commit_threshold: 15\n"))
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Monitoring.CommitThreshold)
	assert.Equal(t, NotifySilent, cfg.Monitoring.NotificationStyle)
	assert.Equal(t, 90*time.Minute, cfg.Aggregation.Window)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.Path)
	assert.Equal(t, "from-env", cfg.Webhooks.SigningSecret)
}

func TestEnvParseErrors(t *testing.T) {
	t.Setenv("GITPULSE_POLL_INTERVAL", "soon")
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "GITPULSE_POLL_INTERVAL")
}

func TestStorageConfig(t *testing.T) {
	s := DefaultStorageConfig()
	assert.NoError(t, s.Validate())
	assert.Equal(t, 30*24*time.Hour, s.Retention())
	assert.Contains(t, s.String(), "RetentionDays: 30")

	s.CleanupInterval = time.Second
	assert.Error(t, s.Validate())
}
