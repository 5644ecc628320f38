package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/steveyegge/gitpulse/internal/eventbus"
	"github.com/steveyegge/gitpulse/internal/events"
)

// HandlerName is the bus registry name of the recorder.
const HandlerName = "storage-recorder"

// Handler returns a wildcard bus handler that records monitoring events,
// milestones and suggestions as they are published.
func (s *Store) Handler() eventbus.Handler {
	return eventbus.NewHandler(HandlerName, s.record)
}

func (s *Store) record(ctx context.Context, de events.DomainEvent) error {
	switch t := de.EventType(); {
	case strings.HasPrefix(t, events.MonitoringPrefix):
		ev, err := events.MonitoringEventFromDomain(de)
		if err != nil {
			return err
		}
		return s.SaveEvent(ctx, ev)
	case strings.HasPrefix(t, events.MilestonePrefix):
		m, err := events.MilestoneFromDomain(de)
		if err != nil {
			return err
		}
		return s.SaveMilestone(ctx, m)
	case strings.HasPrefix(t, events.SuggestionPrefix):
		sg, err := events.SuggestionFromDomain(de)
		if err != nil {
			return err
		}
		return s.SaveSuggestion(ctx, sg)
	default:
		return fmt.Errorf("unrecognized domain event type: %s", t)
	}
}
