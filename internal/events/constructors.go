package events

import (
	"time"

	"github.com/google/uuid"
)

// NewMonitoringEvent creates a MonitoringEvent with a fresh id and the current time.
func NewMonitoringEvent(eventType EventType, projectPath string, data map[string]interface{}) *MonitoringEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &MonitoringEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now(),
		ProjectPath: projectPath,
		Data:        data,
	}
}

// NewFileChangeEvent creates a file event with type-safe data.
func NewFileChangeEvent(eventType EventType, projectPath string, data FileChangeData) (*MonitoringEvent, error) {
	event := NewMonitoringEvent(eventType, projectPath, nil)
	if err := event.SetFileChangeData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewBranchEvent creates a branch event with type-safe data.
func NewBranchEvent(eventType EventType, projectPath string, data BranchData) (*MonitoringEvent, error) {
	event := NewMonitoringEvent(eventType, projectPath, nil)
	if err := event.SetBranchData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewCommitEvent creates a commit or merge event with type-safe data.
func NewCommitEvent(eventType EventType, projectPath string, data CommitData) (*MonitoringEvent, error) {
	event := NewMonitoringEvent(eventType, projectPath, nil)
	if err := event.SetCommitData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewUncommittedChangesEvent creates an uncommitted_changes event with type-safe data.
func NewUncommittedChangesEvent(projectPath string, data UncommittedChangesData) (*MonitoringEvent, error) {
	event := NewMonitoringEvent(EventTypeUncommittedChanges, projectPath, nil)
	if err := event.SetUncommittedChangesData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewPushEvent creates a push_completed event with type-safe data.
func NewPushEvent(projectPath string, data PushData) (*MonitoringEvent, error) {
	event := NewMonitoringEvent(EventTypePushCompleted, projectPath, nil)
	if err := event.SetPushData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewTagEvent creates a tag_created event with type-safe data.
func NewTagEvent(projectPath string, data TagData) (*MonitoringEvent, error) {
	event := NewMonitoringEvent(EventTypeTagCreated, projectPath, nil)
	if err := event.SetTagData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewConversationEvent creates an event classified from conversation text.
func NewConversationEvent(eventType EventType, projectPath string, data ConversationData) (*MonitoringEvent, error) {
	event := NewMonitoringEvent(eventType, projectPath, nil)
	if err := event.SetConversationData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// Clone returns a deep copy of the event.
func (e *MonitoringEvent) Clone() *MonitoringEvent {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Data = deepCopyMap(e.Data)
	return &cp
}
