package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/steveyegge/gitpulse/internal/events"
)

// SaveEvent stores a monitoring event. Saving the same id twice is a no-op.
func (s *Store) SaveEvent(ctx context.Context, ev *events.MonitoringEvent) error {
	dataJSON, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO monitoring_events (id, type, project_path, timestamp, data)
		VALUES (?, ?, ?, ?, ?)
	`, ev.ID, string(ev.Type), ev.ProjectPath, toNanos(ev.Timestamp), string(dataJSON))
	if err != nil {
		return fmt.Errorf("failed to store monitoring event (type=%s, id=%s): %w", ev.Type, ev.ID, err)
	}
	return nil
}

// GetEvents returns events matching filter in ascending time order. With a
// limit, the most recent matches are returned.
func (s *Store) GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.MonitoringEvent, error) {
	query, args := filtered(`
		SELECT id, type, project_path, timestamp, data
		FROM monitoring_events
		WHERE 1=1
	`, filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitoring events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

// filtered appends the filter to a "WHERE 1=1" query. Newest rows win the
// limit; the outer select restores ascending order.
func filtered(base string, filter events.EventFilter) (string, []interface{}) {
	query := base
	args := []interface{}{}

	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.Project != "" {
		query += " AND project_path = ?"
		args = append(args, filter.Project)
	}
	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, toNanos(filter.Since))
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return "SELECT * FROM (" + query + ") ORDER BY timestamp ASC", args
}

func scanEvents(rows *sql.Rows) ([]*events.MonitoringEvent, error) {
	var result []*events.MonitoringEvent

	for rows.Next() {
		var ev events.MonitoringEvent
		var eventType, dataJSON string
		var ts int64

		if err := rows.Scan(&ev.ID, &eventType, &ev.ProjectPath, &ts, &dataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan monitoring event: %w", err)
		}
		ev.Type = events.EventType(eventType)
		ev.Timestamp = fromNanos(ts)

		ev.Data = make(map[string]interface{})
		if dataJSON != "" && dataJSON != "{}" && dataJSON != "null" {
			if err := json.Unmarshal([]byte(dataJSON), &ev.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}

		result = append(result, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monitoring event rows: %w", err)
	}
	return result, nil
}
