package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEveryEventTypeHasCategory(t *testing.T) {
	seen := make(map[EventType]bool)
	for _, et := range AllEventTypes() {
		assert.False(t, seen[et], "duplicate event type %s", et)
		seen[et] = true
		assert.NotEmpty(t, et.Category(), "event type %s has no category", et)
		assert.True(t, et.IsValid())
	}
	assert.Len(t, seen, 32)
}

func TestCategoryGrouping(t *testing.T) {
	tests := []struct {
		eventType EventType
		expected  Category
	}{
		{EventTypeFileDeleted, CategoryFile},
		{EventTypeBranchCreated, CategoryGit},
		{EventTypeTagCreated, CategoryGit},
		{EventTypeTestsFailing, CategoryProgress},
		{EventTypeSprintComplete, CategoryMilestone},
		{EventTypeHelpNeeded, CategoryConversation},
		{EventTypeLLMError, CategoryLLM},
		{EventType("nope"), ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.eventType.Category())
		})
	}
	assert.False(t, EventType("").IsValid())
}

func TestPriorityRank(t *testing.T) {
	assert.Greater(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Greater(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Equal(t, 0, Priority("urgent").Rank())
}
