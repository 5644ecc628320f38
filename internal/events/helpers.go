package events

import (
	"encoding/json"
	"fmt"
)

// SetFileChangeData sets the Data field with FileChangeData in a type-safe way.
func (e *MonitoringEvent) SetFileChangeData(data FileChangeData) error {
	return e.setData("FileChangeData", data)
}

// GetFileChangeData retrieves FileChangeData from the Data field.
func (e *MonitoringEvent) GetFileChangeData() (*FileChangeData, error) {
	var data FileChangeData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse FileChangeData: %w", err)
	}
	return &data, nil
}

// SetBranchData sets the Data field with BranchData in a type-safe way.
func (e *MonitoringEvent) SetBranchData(data BranchData) error {
	return e.setData("BranchData", data)
}

// GetBranchData retrieves BranchData from the Data field.
func (e *MonitoringEvent) GetBranchData() (*BranchData, error) {
	var data BranchData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse BranchData: %w", err)
	}
	return &data, nil
}

// SetCommitData sets the Data field with CommitData in a type-safe way.
func (e *MonitoringEvent) SetCommitData(data CommitData) error {
	return e.setData("CommitData", data)
}

// GetCommitData retrieves CommitData from the Data field.
func (e *MonitoringEvent) GetCommitData() (*CommitData, error) {
	var data CommitData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse CommitData: %w", err)
	}
	return &data, nil
}

// SetUncommittedChangesData sets the Data field with UncommittedChangesData in a type-safe way.
func (e *MonitoringEvent) SetUncommittedChangesData(data UncommittedChangesData) error {
	return e.setData("UncommittedChangesData", data)
}

// GetUncommittedChangesData retrieves UncommittedChangesData from the Data field.
func (e *MonitoringEvent) GetUncommittedChangesData() (*UncommittedChangesData, error) {
	var data UncommittedChangesData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse UncommittedChangesData: %w", err)
	}
	return &data, nil
}

// SetPushData sets the Data field with PushData in a type-safe way.
func (e *MonitoringEvent) SetPushData(data PushData) error {
	return e.setData("PushData", data)
}

// GetPushData retrieves PushData from the Data field.
func (e *MonitoringEvent) GetPushData() (*PushData, error) {
	var data PushData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse PushData: %w", err)
	}
	return &data, nil
}

// SetTagData sets the Data field with TagData in a type-safe way.
func (e *MonitoringEvent) SetTagData(data TagData) error {
	return e.setData("TagData", data)
}

// GetTagData retrieves TagData from the Data field.
func (e *MonitoringEvent) GetTagData() (*TagData, error) {
	var data TagData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse TagData: %w", err)
	}
	return &data, nil
}

// SetConversationData sets the Data field with ConversationData in a type-safe way.
func (e *MonitoringEvent) SetConversationData(data ConversationData) error {
	return e.setData("ConversationData", data)
}

// GetConversationData retrieves ConversationData from the Data field.
func (e *MonitoringEvent) GetConversationData() (*ConversationData, error) {
	var data ConversationData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ConversationData: %w", err)
	}
	return &data, nil
}

// SetLLMTaskData sets the Data field with LLMTaskData in a type-safe way.
func (e *MonitoringEvent) SetLLMTaskData(data LLMTaskData) error {
	return e.setData("LLMTaskData", data)
}

// GetLLMTaskData retrieves LLMTaskData from the Data field.
func (e *MonitoringEvent) GetLLMTaskData() (*LLMTaskData, error) {
	var data LLMTaskData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse LLMTaskData: %w", err)
	}
	return &data, nil
}

// FilePaths returns every file path this event mentions, if any.
// File events carry one path; uncommitted change events carry a list.
func (e *MonitoringEvent) FilePaths() []string {
	if e.Data == nil {
		return nil
	}
	var paths []string
	if p, ok := e.Data["file_path"].(string); ok && p != "" {
		paths = append(paths, p)
	}
	switch files := e.Data["files"].(type) {
	case []string:
		paths = append(paths, files...)
	case []interface{}:
		for _, f := range files {
			if s, ok := f.(string); ok && s != "" {
				paths = append(paths, s)
			}
		}
	}
	return paths
}

// StringField returns a string value from Data, or "".
func (e *MonitoringEvent) StringField(key string) string {
	if e.Data == nil {
		return ""
	}
	s, _ := e.Data[key].(string)
	return s
}

func (e *MonitoringEvent) setData(name string, data interface{}) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", name, err)
	}
	e.Data = dataMap
	return nil
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}
