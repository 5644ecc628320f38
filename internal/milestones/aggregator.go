// Package milestones correlates monitoring events inside a sliding time window
// into higher-level milestones.
package milestones

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/gitpulse/internal/events"
)

// Aggregator keeps a time-ordered window of recent events and evaluates the
// milestone rules on every arrival. All mutation goes through Add, which holds
// the lock, so concurrent producers are serialized.
//
// Events that contribute to a milestone are marked consumed for that milestone
// type only: they never count toward the same type again but remain eligible
// for other types.
type Aggregator struct {
	mu sync.Mutex

	cfg    Config
	now    func() time.Time
	logger *slog.Logger

	// window is ordered by Timestamp
	window []*events.MonitoringEvent
	// consumed tracks event IDs per milestone type
	consumed map[events.MilestoneType]map[string]bool
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the clock used for eviction and milestone timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Aggregator. The configuration must be valid.
func New(cfg Config, opts ...Option) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid aggregation config: %w", err)
	}
	a := &Aggregator{
		cfg:      cfg,
		now:      time.Now,
		logger:   slog.Default(),
		consumed: make(map[events.MilestoneType]map[string]bool),
	}
	for _, t := range events.AllMilestoneTypes() {
		a.consumed[t] = make(map[string]bool)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Add records ev and returns the milestones it completes, in rule order.
// Events already outside the window are ignored.
func (a *Aggregator) Add(ev *events.MonitoringEvent) []*events.AggregatedMilestone {
	if ev == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.evict(now)
	if ev.Timestamp.Before(now.Add(-a.cfg.Window)) {
		a.logger.Debug("event older than aggregation window dropped",
			slog.String("event_id", ev.ID),
			slog.String("event_type", string(ev.Type)))
		return nil
	}
	a.insert(ev.Clone())

	var out []*events.AggregatedMilestone
	for _, r := range a.rules() {
		contributing := r.match()
		if len(contributing) == 0 {
			continue
		}
		ms := a.emit(r, contributing, ev.ProjectPath, now)
		out = append(out, ms)
		a.logger.Debug("milestone reached",
			slog.String("milestone", string(ms.Type)),
			slog.Int("events", len(ms.Events)))
	}
	return out
}

// insert keeps the window ordered when events arrive out of order.
func (a *Aggregator) insert(ev *events.MonitoringEvent) {
	i := sort.Search(len(a.window), func(i int) bool {
		return a.window[i].Timestamp.After(ev.Timestamp)
	})
	a.window = append(a.window, nil)
	copy(a.window[i+1:], a.window[i:])
	a.window[i] = ev
}

// evict drops events older than the window along with their consumed marks.
func (a *Aggregator) evict(now time.Time) {
	cutoff := now.Add(-a.cfg.Window)
	n := 0
	for n < len(a.window) && a.window[n].Timestamp.Before(cutoff) {
		for _, set := range a.consumed {
			delete(set, a.window[n].ID)
		}
		n++
	}
	if n > 0 {
		a.window = append([]*events.MonitoringEvent(nil), a.window[n:]...)
	}
}

func (a *Aggregator) emit(r rule, contributing []*events.MonitoringEvent, project string, now time.Time) *events.AggregatedMilestone {
	set := a.consumed[r.kind]
	evs := make([]*events.MonitoringEvent, 0, len(contributing))
	for _, ev := range contributing {
		set[ev.ID] = true
		evs = append(evs, ev.Clone())
	}
	return &events.AggregatedMilestone{
		ID:          uuid.New().String(),
		Type:        r.kind,
		Timestamp:   now,
		ProjectPath: project,
		Events:      evs,
		Title:       r.title,
		Description: r.describe(evs),
	}
}

// Window returns a copy of the current window after eviction.
func (a *Aggregator) Window() []*events.MonitoringEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.evict(a.now())
	out := make([]*events.MonitoringEvent, len(a.window))
	for i, ev := range a.window {
		out[i] = ev.Clone()
	}
	return out
}

// Config returns the aggregation configuration.
func (a *Aggregator) Config() Config { return a.cfg }
