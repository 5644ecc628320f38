// Package pipeline wires one project's classifier, bus, milestone aggregator
// and suggestion engine into a single event-processing stream.
//
// Raw signals enter through Observe, Conversation or Process. Each classified
// event is published on the bus; the aggregator and engine run as bus
// handlers, and whatever they produce (milestones, suggestions) is published
// after the event that caused it has reached every handler. Processing is
// serialized per pipeline so ordering holds across producers.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/steveyegge/gitpulse/internal/classifier"
	"github.com/steveyegge/gitpulse/internal/eventbus"
	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/git"
	"github.com/steveyegge/gitpulse/internal/milestones"
	"github.com/steveyegge/gitpulse/internal/suggestions"
)

// Handler names registered on the bus.
const (
	AggregatorHandler = "milestone-aggregator"
	EngineHandler     = "suggestion-engine"
)

// Config configures a Pipeline.
type Config struct {
	ProjectPath          string
	ConversationTracking bool
	Aggregation          milestones.Config
	Suggestions          suggestions.Config
	// Branch and Tags seed the engine with the repository state at startup
	Branch string
	Tags   []string
	// Patterns overrides the default conversation patterns when non-nil
	Patterns []classifier.ConversationPattern
	// Now overrides the clock, for tests
	Now    func() time.Time
	Logger *slog.Logger
}

// Result is everything one Process call produced.
type Result struct {
	Events      []*events.MonitoringEvent      `json:"events"`
	Milestones  []*events.AggregatedMilestone  `json:"milestones"`
	Suggestions []*events.MonitoringSuggestion `json:"suggestions"`
}

// Empty reports whether nothing was produced.
func (r *Result) Empty() bool {
	return len(r.Events) == 0 && len(r.Milestones) == 0 && len(r.Suggestions) == 0
}

// Pipeline is the composition root for one project.
type Pipeline struct {
	project    string
	bus        *eventbus.Bus
	classifier *classifier.Classifier
	aggregator *milestones.Aggregator
	engine     *suggestions.Engine
	logger     *slog.Logger

	mu      sync.Mutex
	pending []events.DomainEvent
	result  *Result
}

// New builds the pipeline components and subscribes the aggregator and
// engine to the bus. Configuration errors are returned here, never later.
func New(cfg Config) (*Pipeline, error) {
	if cfg.ProjectPath == "" {
		return nil, fmt.Errorf("project path required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	cls, err := classifier.New(classifier.Config{
		ProjectPath:          cfg.ProjectPath,
		ConversationTracking: cfg.ConversationTracking,
		Patterns:             cfg.Patterns,
		Now:                  cfg.Now,
		Logger:               cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	agg, err := milestones.New(cfg.Aggregation,
		milestones.WithClock(cfg.Now),
		milestones.WithLogger(cfg.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregator: %w", err)
	}

	eng, err := suggestions.New(cfg.Suggestions,
		suggestions.WithClock(cfg.Now),
		suggestions.WithLogger(cfg.Logger),
		suggestions.WithInitialState(cfg.Branch, cfg.Tags))
	if err != nil {
		return nil, fmt.Errorf("failed to create suggestion engine: %w", err)
	}

	p := &Pipeline{
		project:    cfg.ProjectPath,
		bus:        eventbus.New(cfg.Logger),
		classifier: cls,
		aggregator: agg,
		engine:     eng,
		logger:     cfg.Logger.With(slog.String("project", cfg.ProjectPath)),
	}

	aggregate := eventbus.NewHandler(AggregatorHandler, p.aggregate)
	suggest := eventbus.NewHandler(EngineHandler, p.suggest)
	for _, t := range events.AllEventTypes() {
		key := events.MonitoringDomainType(t)
		p.bus.Subscribe(key, aggregate)
		p.bus.Subscribe(key, suggest)
	}
	for _, t := range events.AllMilestoneTypes() {
		p.bus.Subscribe(events.MilestoneDomainType(t), suggest)
	}
	return p, nil
}

// Bus returns the pipeline's bus so consumers (storage, webhooks, UIs) can subscribe.
func (p *Pipeline) Bus() *eventbus.Bus { return p.bus }

// Engine returns the suggestion engine.
func (p *Pipeline) Engine() *suggestions.Engine { return p.engine }

// Aggregator returns the milestone aggregator.
func (p *Pipeline) Aggregator() *milestones.Aggregator { return p.aggregator }

// Classifier returns the classifier.
func (p *Pipeline) Classifier() *classifier.Classifier { return p.classifier }

// Project returns the project path.
func (p *Pipeline) Project() string { return p.project }

// Attach subscribes h to every domain event the pipeline publishes.
func (p *Pipeline) Attach(h eventbus.Handler) *eventbus.Subscription {
	return p.bus.SubscribeToAll(h)
}

// Observe classifies a git snapshot transition. It has the git.SnapshotFunc
// signature so it can be handed to a Watcher directly.
func (p *Pipeline) Observe(ctx context.Context, prev, curr *git.Snapshot) {
	var evs []*events.MonitoringEvent
	p.stage("classify transition", func() {
		evs = p.classifier.ClassifyTransition(prev, curr)
	})
	if len(evs) > 0 {
		p.Process(ctx, evs...)
	}
}

// Conversation classifies conversation text and processes the resulting events.
func (p *Pipeline) Conversation(ctx context.Context, text string) *Result {
	var evs []*events.MonitoringEvent
	p.stage("classify conversation", func() {
		evs = p.classifier.ClassifyConversation(text)
	})
	return p.Process(ctx, evs...)
}

// Emitter adapts the pipeline to git.Emitter for events produced outside the classifier.
func (p *Pipeline) Emitter() git.Emitter {
	return func(ctx context.Context, ev *events.MonitoringEvent) {
		p.Process(ctx, ev)
	}
}

// Process publishes each event and everything derived from it, depth first:
// an event's milestones and suggestions are published before the next event.
func (p *Pipeline) Process(ctx context.Context, evs ...*events.MonitoringEvent) *Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := &Result{}
	p.result = res
	defer func() { p.result = nil }()

	for _, ev := range evs {
		if ev == nil {
			continue
		}
		de, err := ev.ToDomainEvent(&events.Metadata{TriggeredBy: "classifier"})
		if err != nil {
			p.logger.Warn("dropping unpublishable event",
				slog.String("event_type", string(ev.Type)),
				slog.String("error", err.Error()))
			continue
		}
		res.Events = append(res.Events, ev)
		p.drain(ctx, de)
	}
	return res
}

// drain publishes de, then whatever handlers queued while it was delivered.
func (p *Pipeline) drain(ctx context.Context, de events.DomainEvent) {
	queue := []events.DomainEvent{de}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		p.pending = nil
		p.bus.Publish(ctx, next)
		queue = append(queue, p.pending...)
		p.pending = nil
	}
}

// aggregate feeds monitoring events to the aggregator.
func (p *Pipeline) aggregate(_ context.Context, de events.DomainEvent) error {
	ev, err := events.MonitoringEventFromDomain(de)
	if err != nil {
		return err
	}
	for _, m := range p.aggregator.Add(ev) {
		mde, err := m.ToDomainEvent(causedBy(de, "aggregator"))
		if err != nil {
			return fmt.Errorf("failed to publish milestone %s: %w", m.Type, err)
		}
		p.queue(mde)
		if p.result != nil {
			p.result.Milestones = append(p.result.Milestones, m)
		}
	}
	return nil
}

// suggest feeds monitoring events and milestones to the engine.
func (p *Pipeline) suggest(_ context.Context, de events.DomainEvent) error {
	var out []*events.MonitoringSuggestion
	if m, err := events.MilestoneFromDomain(de); err == nil {
		out = p.engine.OnMilestone(m)
	} else {
		ev, err := events.MonitoringEventFromDomain(de)
		if err != nil {
			return err
		}
		out = p.engine.OnEvent(ev)
	}

	for _, s := range out {
		sde, err := s.ToDomainEvent(causedBy(de, "suggestion-engine"))
		if err != nil {
			return fmt.Errorf("failed to publish suggestion %s: %w", s.Type, err)
		}
		p.queue(sde)
		if p.result != nil {
			p.result.Suggestions = append(p.result.Suggestions, s)
		}
	}
	return nil
}

func (p *Pipeline) queue(de events.DomainEvent) {
	p.pending = append(p.pending, de)
}

// stage runs fn and logs instead of propagating a panic.
func (p *Pipeline) stage(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("pipeline stage failed",
				slog.String("stage", name),
				slog.String("error", fmt.Sprint(r)))
		}
	}()
	fn()
}

func causedBy(de events.DomainEvent, by string) *events.Metadata {
	md := &events.Metadata{TriggeredBy: by, CausationID: de.ID(), CorrelationID: de.ID()}
	if parent := de.Metadata(); parent != nil && parent.CorrelationID != "" {
		md.CorrelationID = parent.CorrelationID
	}
	return md
}
