package sqlite

import "github.com/steveyegge/gitpulse/internal/storage/migrations"

// schemaMigrations are applied in version order when the store opens.
// Timestamps are stored as unix nanoseconds so range filters and ordering are exact.
var schemaMigrations = []migrations.Migration{
	{
		Version:     1,
		Description: "events, milestones, suggestions and deliveries",
		Up:          initialSchema,
		Down: `
			DROP TABLE IF EXISTS deliveries;
			DROP TABLE IF EXISTS suggestions;
			DROP TABLE IF EXISTS milestones;
			DROP TABLE IF EXISTS monitoring_events;
		`,
	},
	{
		Version:     2,
		Description: "index milestones and suggestions by project",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_milestones_project ON milestones(project_path, timestamp);
			CREATE INDEX IF NOT EXISTS idx_suggestions_project ON suggestions(project_path, timestamp);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_milestones_project;
			DROP INDEX IF EXISTS idx_suggestions_project;
		`,
	},
}

const initialSchema = `
-- Classified monitoring events
CREATE TABLE IF NOT EXISTS monitoring_events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    project_path TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    data TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_monitoring_events_type ON monitoring_events(type);
CREATE INDEX IF NOT EXISTS idx_monitoring_events_project ON monitoring_events(project_path);
CREATE INDEX IF NOT EXISTS idx_monitoring_events_timestamp ON monitoring_events(timestamp);

-- Aggregated milestones; body holds the full milestone including its events
CREATE TABLE IF NOT EXISTS milestones (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    project_path TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_milestones_type ON milestones(type);
CREATE INDEX IF NOT EXISTS idx_milestones_timestamp ON milestones(timestamp);

-- Suggestions; body holds the full suggestion including related events
CREATE TABLE IF NOT EXISTS suggestions (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    priority TEXT NOT NULL CHECK(priority IN ('high', 'medium', 'low')),
    project_path TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    body TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_suggestions_type ON suggestions(type);
CREATE INDEX IF NOT EXISTS idx_suggestions_timestamp ON suggestions(timestamp);

-- Webhook delivery results
CREATE TABLE IF NOT EXISTS deliveries (
    delivery_id TEXT NOT NULL,
    endpoint TEXT NOT NULL,
    event_type TEXT NOT NULL,
    success INTEGER NOT NULL,
    attempts INTEGER NOT NULL,
    status_code INTEGER NOT NULL DEFAULT 0,
    state TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    timestamp INTEGER NOT NULL,
    PRIMARY KEY (delivery_id, endpoint)
);

CREATE INDEX IF NOT EXISTS idx_deliveries_timestamp ON deliveries(timestamp);
`
