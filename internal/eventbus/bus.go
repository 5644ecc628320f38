// Package eventbus routes domain events from producers to subscribed handlers.
//
// Publishing is synchronous: Publish returns after every handler has seen every
// event. Events in a batch reach each handler in submission order, and handlers
// for one event run in subscription order, exact-type handlers before wildcard
// handlers. A failing or panicking handler is logged and skipped.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/steveyegge/gitpulse/internal/events"
)

// Wildcard is the registry key for handlers subscribed to every event type.
const Wildcard = "*"

// Handler consumes domain events. Name identifies the handler in the registry:
// subscribing two handlers with the same name to the same type registers it once.
type Handler interface {
	Name() string
	Handle(ctx context.Context, event events.DomainEvent) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event events.DomainEvent) error

type namedHandler struct {
	name string
	fn   HandlerFunc
}

func (h namedHandler) Name() string { return h.name }

func (h namedHandler) Handle(ctx context.Context, event events.DomainEvent) error {
	return h.fn(ctx, event)
}

// NewHandler wraps fn as a Handler called name.
func NewHandler(name string, fn HandlerFunc) Handler {
	return namedHandler{name: name, fn: fn}
}

// Stats are cumulative bus counters.
type Stats struct {
	Published  int64 `json:"published"`
	Deliveries int64 `json:"deliveries"`
	Failures   int64 `json:"failures"`
}

// Bus is an in-process publish/subscribe router.
// The zero value is not usable; call New.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler

	logger *slog.Logger

	published  atomic.Int64
	deliveries atomic.Int64
	failures   atomic.Int64
}

// New creates an empty bus. A nil logger means slog.Default().
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscription is the handle returned by Subscribe and SubscribeToAll.
type Subscription struct {
	bus       *Bus
	eventType string
	name      string
	once      sync.Once
}

// Unsubscribe removes the handler. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.eventType, s.name)
	})
}

// EventType returns the routing key the subscription was made for.
func (s *Subscription) EventType() string { return s.eventType }

// Subscribe registers h for events whose EventType equals eventType.
// Registering the same handler name twice for a type keeps the first registration.
func (b *Bus) Subscribe(eventType string, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[eventType]
	exists := slices.ContainsFunc(list, func(existing Handler) bool {
		return existing.Name() == h.Name()
	})
	if !exists {
		b.handlers[eventType] = append(list, h)
		b.logger.Debug("handler subscribed",
			slog.String("event_type", eventType),
			slog.String("handler", h.Name()))
	}

	return &Subscription{bus: b, eventType: eventType, name: h.Name()}
}

// SubscribeToAll registers h for every event type.
func (b *Bus) SubscribeToAll(h Handler) *Subscription {
	return b.Subscribe(Wildcard, h)
}

// Unsubscribe removes h from eventType. Use Wildcard for SubscribeToAll handlers.
func (b *Bus) Unsubscribe(eventType string, h Handler) {
	b.remove(eventType, h.Name())
}

func (b *Bus) remove(eventType, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[eventType]
	idx := slices.IndexFunc(list, func(h Handler) bool { return h.Name() == name })
	if idx < 0 {
		return
	}
	// Build a new slice so in-flight snapshots keep their view.
	next := make([]Handler, 0, len(list)-1)
	next = append(next, list[:idx]...)
	next = append(next, list[idx+1:]...)
	if len(next) == 0 {
		delete(b.handlers, eventType)
	} else {
		b.handlers[eventType] = next
	}
}

// HandlerCount returns the number of handlers registered for eventType.
func (b *Bus) HandlerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Publish delivers each event in order to its exact-type handlers and then to
// wildcard handlers. Handlers added after Publish starts for an event do not
// see that event. Handlers may publish further events re-entrantly.
func (b *Bus) Publish(ctx context.Context, evs ...events.DomainEvent) {
	for _, ev := range evs {
		b.published.Add(1)
		for _, h := range b.snapshot(ev.EventType()) {
			b.dispatch(ctx, h, ev)
		}
	}
}

// snapshot returns the handlers for eventType followed by the wildcard handlers.
func (b *Bus) snapshot(eventType string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	exact := b.handlers[eventType]
	wild := b.handlers[Wildcard]
	out := make([]Handler, 0, len(exact)+len(wild))
	out = append(out, exact...)
	if eventType != Wildcard {
		out = append(out, wild...)
	}
	return out
}

func (b *Bus) dispatch(ctx context.Context, h Handler, ev events.DomainEvent) {
	b.deliveries.Add(1)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panicked: %v", r)
			}
		}()
		return h.Handle(ctx, ev)
	}()

	if err != nil {
		b.failures.Add(1)
		b.logger.Warn("event handler failed",
			slog.String("handler", h.Name()),
			slog.String("event_type", ev.EventType()),
			slog.String("event_id", ev.ID()),
			slog.String("error", err.Error()))
	}
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:  b.published.Load(),
		Deliveries: b.deliveries.Load(),
		Failures:   b.failures.Load(),
	}
}
