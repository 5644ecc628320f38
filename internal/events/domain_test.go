package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainEventRequiresAggregate(t *testing.T) {
	_, err := NewDomainEvent("", "monitoring.bug_fixed", 1, nil)
	assert.ErrorIs(t, err, ErrEmptyAggregateID)

	_, err = NewDomainEvent("   ", "monitoring.bug_fixed", 1, nil)
	assert.ErrorIs(t, err, ErrEmptyAggregateID)

	_, err = NewDomainEvent("/work/app", "", 1, nil)
	assert.ErrorIs(t, err, ErrEmptyEventType)
}

func TestDomainEventIsImmutable(t *testing.T) {
	payload := map[string]interface{}{
		"nested": map[string]interface{}{"k": "v"},
	}
	md := Metadata{TriggeredBy: "watcher", Context: map[string]string{"branch": "main"}}

	de, err := NewDomainEvent("/work/app", "monitoring.commit_created", 1, payload, WithMetadata(md))
	require.NoError(t, err)

	// Mutating the caller's inputs must not leak into the event.
	payload["nested"].(map[string]interface{})["k"] = "changed"
	md.Context["branch"] = "other"
	assert.Equal(t, "v", de.Payload()["nested"].(map[string]interface{})["k"])
	assert.Equal(t, "main", de.Metadata().Context["branch"])

	// Mutating returned copies must not leak back either.
	de.Payload()["nested"].(map[string]interface{})["k"] = "changed"
	de.Metadata().Context["branch"] = "other"
	assert.Equal(t, "v", de.Payload()["nested"].(map[string]interface{})["k"])
	assert.Equal(t, "main", de.Metadata().Context["branch"])
}

func TestDomainEventDefaults(t *testing.T) {
	before := time.Now()
	de, err := NewDomainEvent("/work/app", "monitoring.commit_created", 0, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, de.ID())
	assert.Equal(t, 1, de.EventVersion())
	assert.False(t, de.OccurredOn().Before(before))
	assert.Nil(t, de.Metadata())
	assert.False(t, de.IsZero())
	assert.True(t, DomainEvent{}.IsZero())
}

func TestMonitoringEventDomainRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	ev := &MonitoringEvent{
		ID:          "ev-1",
		Type:        EventTypeBugFixed,
		Timestamp:   ts,
		ProjectPath: "/work/app",
		Data:        map[string]interface{}{"text": "fixed it"},
	}

	de, err := ev.ToDomainEvent(&Metadata{TriggeredBy: "conversation"})
	require.NoError(t, err)
	assert.Equal(t, "monitoring.bug_fixed", de.EventType())
	assert.Equal(t, "/work/app", de.AggregateID())
	assert.Equal(t, ts, de.OccurredOn())
	assert.Equal(t, "conversation", de.Metadata().TriggeredBy)

	back, err := MonitoringEventFromDomain(de)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, back.ID)
	assert.Equal(t, ev.Type, back.Type)
	assert.True(t, ts.Equal(back.Timestamp))
	assert.Equal(t, "fixed it", back.Data["text"])

	_, err = MilestoneFromDomain(de)
	assert.Error(t, err)
}

func TestMonitoringEventWithoutProjectIsRejected(t *testing.T) {
	ev := NewMonitoringEvent(EventTypeBugFixed, "", nil)
	_, err := ev.ToDomainEvent(nil)
	assert.ErrorIs(t, err, ErrEmptyAggregateID)
}

func TestMilestoneAndSuggestionDomainRoundTrip(t *testing.T) {
	ms := &AggregatedMilestone{
		ID:          "ms-1",
		Type:        MilestoneFeatureShipped,
		Timestamp:   time.Now().UTC(),
		ProjectPath: "/work/app",
		Events:      []*MonitoringEvent{{ID: "e1", Type: EventTypeFeatureComplete}},
		Title:       "Feature shipped",
	}
	de, err := ms.ToDomainEvent(nil)
	require.NoError(t, err)
	assert.Equal(t, MilestoneDomainType(MilestoneFeatureShipped), de.EventType())

	gotMs, err := MilestoneFromDomain(de)
	require.NoError(t, err)
	assert.Equal(t, "ms-1", gotMs.ID)
	require.Len(t, gotMs.Events, 1)
	assert.Equal(t, EventTypeFeatureComplete, gotMs.Events[0].Type)

	sg := &MonitoringSuggestion{
		ID:          "sg-1",
		Type:        SuggestionRelease,
		Priority:    PriorityHigh,
		Message:     "Ready to release",
		ProjectPath: "/work/app",
		Timestamp:   time.Now().UTC(),
	}
	de, err = sg.ToDomainEvent(nil)
	require.NoError(t, err)
	assert.Equal(t, "suggestion.release", de.EventType())

	gotSg, err := SuggestionFromDomain(de)
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, gotSg.Priority)
}

func TestDomainEventMarshalJSON(t *testing.T) {
	de, err := NewDomainEvent("/work/app", "monitoring.tag_created", 1, map[string]interface{}{"tag": "v1.0.0"})
	require.NoError(t, err)

	raw, err := json.Marshal(de)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "/work/app", decoded["aggregate_id"])
	assert.Equal(t, "monitoring.tag_created", decoded["event_type"])
	assert.Equal(t, float64(1), decoded["event_version"])
	assert.NotContains(t, decoded, "metadata")
}
