package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/gitpulse/internal/config"
	"github.com/steveyegge/gitpulse/internal/events"
)

func TestPickSuggestion(t *testing.T) {
	recorded := []*events.MonitoringSuggestion{
		{ID: "a", Type: events.SuggestionCommit},
		{ID: "b", Type: events.SuggestionBranch},
		{ID: "c", Type: events.SuggestionCommit},
	}

	assert.Equal(t, "c", pickSuggestion(recorded, nil).ID, "latest without id")
	assert.Equal(t, "b", pickSuggestion(recorded, []string{"b"}).ID)
	assert.Nil(t, pickSuggestion(recorded, []string{"zzz"}))
	assert.Nil(t, pickSuggestion(nil, nil))
}

func TestDBPathResolvesAgainstProject(t *testing.T) {
	oldCfg, oldProject := cfg, projectPath
	t.Cleanup(func() { cfg, projectPath = oldCfg, oldProject })

	cfg = config.Default()
	projectPath = "/work/app"
	assert.Equal(t, filepath.Join("/work/app", ".gitpulse", "gitpulse.db"), dbPath())

	cfg.Storage.Path = "/var/lib/gitpulse.db"
	assert.Equal(t, "/var/lib/gitpulse.db", dbPath())
}

func TestNewPipelineWithoutRepository(t *testing.T) {
	oldCfg, oldProject := cfg, projectPath
	t.Cleanup(func() { cfg, projectPath = oldCfg, oldProject })

	cfg = config.Default()
	projectPath = t.TempDir()

	p, err := newPipeline(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, projectPath, p.Project())
}

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"watch", "converse", "events", "milestones", "suggestions", "apply", "webhooks", "mcp", "cleanup", "status"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
