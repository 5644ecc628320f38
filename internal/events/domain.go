package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyAggregateID is returned when a domain event is created without an aggregate.
var ErrEmptyAggregateID = errors.New("aggregate id is required")

// ErrEmptyEventType is returned when a domain event is created without a type.
var ErrEmptyEventType = errors.New("event type is required")

// Domain event type prefixes used on the bus.
const (
	MonitoringPrefix = "monitoring."
	MilestonePrefix  = "milestone."
	SuggestionPrefix = "suggestion."
)

// Current payload schema versions. Bump only on breaking payload changes.
const (
	MonitoringEventVersion = 1
	MilestoneEventVersion  = 1
	SuggestionEventVersion = 1
)

// Metadata carries causal and correlation information for a domain event.
type Metadata struct {
	TriggeredBy   string            `json:"triggered_by,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	CausationID   string            `json:"causation_id,omitempty"`
	Context       map[string]string `json:"context,omitempty"`
}

// DomainEvent is an immutable fact about an aggregate (a branch, a commit, a file set, a project).
// Fields are only reachable through accessors; maps are copied in and out.
type DomainEvent struct {
	id           string
	aggregateID  string
	eventType    string
	eventVersion int
	occurredOn   time.Time
	payload      map[string]interface{}
	metadata     *Metadata
}

// DomainEventOption customizes a domain event at creation.
type DomainEventOption func(*DomainEvent)

// WithMetadata attaches causal metadata.
func WithMetadata(md Metadata) DomainEventOption {
	return func(e *DomainEvent) {
		cp := md
		cp.Context = maps.Clone(md.Context)
		e.metadata = &cp
	}
}

// WithOccurredOn overrides the creation timestamp.
func WithOccurredOn(t time.Time) DomainEventOption {
	return func(e *DomainEvent) {
		e.occurredOn = t
	}
}

// NewDomainEvent creates a domain event at the moment a fact is established.
func NewDomainEvent(aggregateID, eventType string, version int, payload map[string]interface{}, opts ...DomainEventOption) (DomainEvent, error) {
	if strings.TrimSpace(aggregateID) == "" {
		return DomainEvent{}, ErrEmptyAggregateID
	}
	if strings.TrimSpace(eventType) == "" {
		return DomainEvent{}, ErrEmptyEventType
	}
	if version < 1 {
		version = 1
	}

	e := DomainEvent{
		id:           uuid.New().String(),
		aggregateID:  aggregateID,
		eventType:    eventType,
		eventVersion: version,
		occurredOn:   time.Now(),
		payload:      deepCopyMap(payload),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e, nil
}

// ID returns the unique id of this domain event.
func (e DomainEvent) ID() string { return e.id }

// AggregateID returns the aggregate the fact belongs to.
func (e DomainEvent) AggregateID() string { return e.aggregateID }

// EventType returns the routing key, e.g. "monitoring.feature_complete".
func (e DomainEvent) EventType() string { return e.eventType }

// EventVersion returns the payload schema version.
func (e DomainEvent) EventVersion() int { return e.eventVersion }

// OccurredOn returns when the fact was established.
func (e DomainEvent) OccurredOn() time.Time { return e.occurredOn }

// Payload returns a copy of the payload.
func (e DomainEvent) Payload() map[string]interface{} { return deepCopyMap(e.payload) }

// Metadata returns a copy of the metadata, or nil.
func (e DomainEvent) Metadata() *Metadata {
	if e.metadata == nil {
		return nil
	}
	cp := *e.metadata
	cp.Context = maps.Clone(e.metadata.Context)
	return &cp
}

// IsZero reports whether e was never initialized.
func (e DomainEvent) IsZero() bool { return e.id == "" }

// domainEventJSON is the wire form of a DomainEvent.
type domainEventJSON struct {
	ID           string                 `json:"id"`
	AggregateID  string                 `json:"aggregate_id"`
	EventType    string                 `json:"event_type"`
	EventVersion int                    `json:"event_version"`
	OccurredOn   time.Time              `json:"occurred_on"`
	Payload      map[string]interface{} `json:"payload"`
	Metadata     *Metadata              `json:"metadata,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e DomainEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(domainEventJSON{
		ID:           e.id,
		AggregateID:  e.aggregateID,
		EventType:    e.eventType,
		EventVersion: e.eventVersion,
		OccurredOn:   e.occurredOn,
		Payload:      e.payload,
		Metadata:     e.metadata,
	})
}

// deepCopyMap copies a JSON-shaped map so callers cannot mutate a published event.
func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}

// ToDomainEvent converts a monitoring event to its bus envelope.
// The aggregate is the project path.
func (e *MonitoringEvent) ToDomainEvent(md *Metadata) (DomainEvent, error) {
	payload := map[string]interface{}{
		"id":           e.ID,
		"type":         string(e.Type),
		"timestamp":    e.Timestamp.Format(time.RFC3339Nano),
		"project_path": e.ProjectPath,
		"data":         e.Data,
	}
	opts := []DomainEventOption{WithOccurredOn(e.Timestamp)}
	if md != nil {
		opts = append(opts, WithMetadata(*md))
	}
	return NewDomainEvent(e.ProjectPath, MonitoringPrefix+string(e.Type), MonitoringEventVersion, payload, opts...)
}

// MonitoringEventFromDomain recovers a monitoring event from its bus envelope.
func MonitoringEventFromDomain(de DomainEvent) (*MonitoringEvent, error) {
	if !strings.HasPrefix(de.EventType(), MonitoringPrefix) {
		return nil, fmt.Errorf("not a monitoring event: %s", de.EventType())
	}
	var ev MonitoringEvent
	if err := mapToStruct(de.payload, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode monitoring event: %w", err)
	}
	return &ev, nil
}

// ToDomainEvent converts a milestone to its bus envelope.
func (m *AggregatedMilestone) ToDomainEvent(md *Metadata) (DomainEvent, error) {
	payload, err := structToMap(m)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("failed to convert milestone: %w", err)
	}
	opts := []DomainEventOption{WithOccurredOn(m.Timestamp)}
	if md != nil {
		opts = append(opts, WithMetadata(*md))
	}
	return NewDomainEvent(m.ProjectPath, MilestonePrefix+string(m.Type), MilestoneEventVersion, payload, opts...)
}

// MilestoneFromDomain recovers a milestone from its bus envelope.
func MilestoneFromDomain(de DomainEvent) (*AggregatedMilestone, error) {
	if !strings.HasPrefix(de.EventType(), MilestonePrefix) {
		return nil, fmt.Errorf("not a milestone event: %s", de.EventType())
	}
	var m AggregatedMilestone
	if err := mapToStruct(de.payload, &m); err != nil {
		return nil, fmt.Errorf("failed to decode milestone: %w", err)
	}
	return &m, nil
}

// ToDomainEvent converts a suggestion to its bus envelope.
func (s *MonitoringSuggestion) ToDomainEvent(md *Metadata) (DomainEvent, error) {
	payload, err := structToMap(s)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("failed to convert suggestion: %w", err)
	}
	opts := []DomainEventOption{WithOccurredOn(s.Timestamp)}
	if md != nil {
		opts = append(opts, WithMetadata(*md))
	}
	return NewDomainEvent(s.ProjectPath, SuggestionPrefix+string(s.Type), SuggestionEventVersion, payload, opts...)
}

// SuggestionFromDomain recovers a suggestion from its bus envelope.
func SuggestionFromDomain(de DomainEvent) (*MonitoringSuggestion, error) {
	if !strings.HasPrefix(de.EventType(), SuggestionPrefix) {
		return nil, fmt.Errorf("not a suggestion event: %s", de.EventType())
	}
	var s MonitoringSuggestion
	if err := mapToStruct(de.payload, &s); err != nil {
		return nil, fmt.Errorf("failed to decode suggestion: %w", err)
	}
	return &s, nil
}

// MonitoringDomainType returns the bus routing key for a monitoring event type.
func MonitoringDomainType(t EventType) string {
	return MonitoringPrefix + string(t)
}

// MilestoneDomainType returns the bus routing key for a milestone type.
func MilestoneDomainType(t MilestoneType) string {
	return MilestonePrefix + string(t)
}

// SuggestionDomainType returns the bus routing key for a suggestion type.
func SuggestionDomainType(t SuggestionType) string {
	return SuggestionPrefix + string(t)
}
