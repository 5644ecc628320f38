package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/webhook"
)

// SaveMilestone stores an aggregated milestone with its contributing events.
func (s *Store) SaveMilestone(ctx context.Context, m *events.AggregatedMilestone) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal milestone: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO milestones (id, type, project_path, timestamp, title, body)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, string(m.Type), m.ProjectPath, toNanos(m.Timestamp), m.Title, string(body))
	if err != nil {
		return fmt.Errorf("failed to store milestone (type=%s): %w", m.Type, err)
	}
	return nil
}

// GetMilestones returns milestones matching filter in ascending time order.
func (s *Store) GetMilestones(ctx context.Context, filter events.EventFilter) ([]*events.AggregatedMilestone, error) {
	query, args := filtered(`SELECT id, timestamp, body FROM milestones WHERE 1=1`, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query milestones: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*events.AggregatedMilestone
	err = scanBodies(rows, func(body []byte) error {
		var m events.AggregatedMilestone
		if err := json.Unmarshal(body, &m); err != nil {
			return fmt.Errorf("failed to unmarshal milestone: %w", err)
		}
		result = append(result, &m)
		return nil
	})
	return result, err
}

// SaveSuggestion stores a suggestion with its related events. Saving an
// upgraded suggestion under an existing ID replaces the stored version.
func (s *Store) SaveSuggestion(ctx context.Context, sg *events.MonitoringSuggestion) error {
	body, err := json.Marshal(sg)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestion: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO suggestions (id, type, priority, project_path, timestamp, body)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			priority = excluded.priority,
			timestamp = excluded.timestamp,
			body = excluded.body
	`, sg.ID, string(sg.Type), string(sg.Priority), sg.ProjectPath, toNanos(sg.Timestamp), string(body))
	if err != nil {
		return fmt.Errorf("failed to store suggestion (type=%s): %w", sg.Type, err)
	}
	return nil
}

// GetSuggestions returns suggestions matching filter in ascending time order.
func (s *Store) GetSuggestions(ctx context.Context, filter events.EventFilter) ([]*events.MonitoringSuggestion, error) {
	query, args := filtered(`SELECT id, timestamp, body FROM suggestions WHERE 1=1`, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*events.MonitoringSuggestion
	err = scanBodies(rows, func(body []byte) error {
		var sg events.MonitoringSuggestion
		if err := json.Unmarshal(body, &sg); err != nil {
			return fmt.Errorf("failed to unmarshal suggestion: %w", err)
		}
		result = append(result, &sg)
		return nil
	})
	return result, err
}

func scanBodies(rows *sql.Rows, fn func([]byte) error) error {
	for rows.Next() {
		var id, body string
		var ts int64
		if err := rows.Scan(&id, &ts, &body); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		if err := fn([]byte(body)); err != nil {
			return fmt.Errorf("row %s: %w", id, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}
	return nil
}

// SaveDelivery records the outcome of one webhook delivery.
func (s *Store) SaveDelivery(ctx context.Context, res webhook.DeliveryResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO deliveries (
			delivery_id, endpoint, event_type, success, attempts,
			status_code, state, error, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, res.DeliveryID, res.Endpoint, res.EventType, res.Success, res.Attempts,
		res.StatusCode, string(res.State), res.Error, toNanos(res.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to store delivery (endpoint=%s): %w", res.Endpoint, err)
	}
	return nil
}

// GetDeliveries returns the most recent deliveries, newest first.
func (s *Store) GetDeliveries(ctx context.Context, limit int) ([]webhook.DeliveryResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT delivery_id, endpoint, event_type, success, attempts,
		       status_code, state, error, timestamp
		FROM deliveries
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []webhook.DeliveryResult
	for rows.Next() {
		var res webhook.DeliveryResult
		var state string
		var ts int64
		if err := rows.Scan(&res.DeliveryID, &res.Endpoint, &res.EventType, &res.Success,
			&res.Attempts, &res.StatusCode, &state, &res.Error, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		res.State = webhook.State(state)
		res.Timestamp = fromNanos(ts)
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery rows: %w", err)
	}
	return result, nil
}
