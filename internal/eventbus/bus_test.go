package eventbus

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/gitpulse/internal/events"
)

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) handler(name string) Handler {
	return NewHandler(name, func(_ context.Context, ev events.DomainEvent) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.got = append(r.got, name+":"+ev.Payload()["n"].(string))
		return nil
	})
}

func (r *recorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func mustEvent(t *testing.T, eventType, n string) events.DomainEvent {
	t.Helper()
	ev, err := events.NewDomainEvent("/work/app", eventType, 1, map[string]interface{}{"n": n})
	require.NoError(t, err)
	return ev
}

func TestPublishPreservesBatchOrder(t *testing.T) {
	bus := New(nil)
	rec := &recorder{}
	bus.Subscribe("monitoring.bug_fixed", rec.handler("a"))

	bus.Publish(context.Background(),
		mustEvent(t, "monitoring.bug_fixed", "1"),
		mustEvent(t, "monitoring.bug_fixed", "2"),
		mustEvent(t, "monitoring.bug_fixed", "3"),
	)

	assert.Equal(t, []string{"a:1", "a:2", "a:3"}, rec.calls())
}

func TestExactHandlersRunBeforeWildcard(t *testing.T) {
	bus := New(nil)
	rec := &recorder{}
	bus.SubscribeToAll(rec.handler("all"))
	bus.Subscribe("monitoring.bug_fixed", rec.handler("first"))
	bus.Subscribe("monitoring.bug_fixed", rec.handler("second"))

	bus.Publish(context.Background(), mustEvent(t, "monitoring.bug_fixed", "1"))

	assert.Equal(t, []string{"first:1", "second:1", "all:1"}, rec.calls())
}

func TestIdempotentRegistration(t *testing.T) {
	bus := New(nil)
	rec := &recorder{}
	h := rec.handler("dup")
	bus.Subscribe("monitoring.bug_fixed", h)
	bus.Subscribe("monitoring.bug_fixed", h)
	bus.Subscribe("monitoring.bug_fixed", rec.handler("dup"))

	assert.Equal(t, 1, bus.HandlerCount("monitoring.bug_fixed"))

	bus.Publish(context.Background(), mustEvent(t, "monitoring.bug_fixed", "1"))
	assert.Equal(t, []string{"dup:1"}, rec.calls())
}

func TestUnsubscribe(t *testing.T) {
	bus := New(nil)
	rec := &recorder{}
	keep := rec.handler("keep")
	drop := rec.handler("drop")
	bus.Subscribe("monitoring.bug_fixed", keep)
	bus.Subscribe("monitoring.bug_fixed", drop)
	sub := bus.SubscribeToAll(rec.handler("all"))

	bus.Unsubscribe("monitoring.bug_fixed", drop)
	sub.Unsubscribe()
	sub.Unsubscribe()

	bus.Publish(context.Background(), mustEvent(t, "monitoring.bug_fixed", "1"))
	assert.Equal(t, []string{"keep:1"}, rec.calls())
	assert.Equal(t, 0, bus.HandlerCount(Wildcard))
}

func TestFailingHandlersAreIsolated(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	bus := New(logger)
	rec := &recorder{}

	bus.Subscribe("monitoring.bug_fixed", NewHandler("errs", func(context.Context, events.DomainEvent) error {
		return errors.New("boom")
	}))
	bus.Subscribe("monitoring.bug_fixed", NewHandler("panics", func(context.Context, events.DomainEvent) error {
		panic("kaboom")
	}))
	bus.Subscribe("monitoring.bug_fixed", rec.handler("ok"))

	bus.Publish(context.Background(),
		mustEvent(t, "monitoring.bug_fixed", "1"),
		mustEvent(t, "monitoring.bug_fixed", "2"),
	)

	assert.Equal(t, []string{"ok:1", "ok:2"}, rec.calls())
	stats := bus.Stats()
	assert.Equal(t, int64(2), stats.Published)
	assert.Equal(t, int64(6), stats.Deliveries)
	assert.Equal(t, int64(4), stats.Failures)
	assert.True(t, strings.Contains(buf.String(), "handler=errs"))
	assert.True(t, strings.Contains(buf.String(), "kaboom"))
}

func TestLateSubscriberMissesEarlierEvents(t *testing.T) {
	bus := New(nil)
	rec := &recorder{}

	bus.Publish(context.Background(), mustEvent(t, "monitoring.bug_fixed", "1"))
	bus.Subscribe("monitoring.bug_fixed", rec.handler("late"))
	bus.Publish(context.Background(), mustEvent(t, "monitoring.bug_fixed", "2"))

	assert.Equal(t, []string{"late:2"}, rec.calls())
}

func TestReentrantPublish(t *testing.T) {
	bus := New(nil)
	rec := &recorder{}

	bus.Subscribe("milestone.feature_shipped", NewHandler("engine", func(ctx context.Context, ev events.DomainEvent) error {
		follow, err := events.NewDomainEvent(ev.AggregateID(), "suggestion.release", 1, map[string]interface{}{"n": "r"})
		if err != nil {
			return err
		}
		bus.Publish(ctx, follow)
		return nil
	}))
	bus.Subscribe("suggestion.release", rec.handler("webhooks"))

	bus.Publish(context.Background(), mustEvent(t, "milestone.feature_shipped", "m"))
	assert.Equal(t, []string{"webhooks:r"}, rec.calls())
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	bus := New(nil)
	ev := mustEvent(t, "monitoring.bug_fixed", "x")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			bus.Subscribe("monitoring.bug_fixed", NewHandler(string(rune('a'+i)), func(context.Context, events.DomainEvent) error {
				return nil
			}))
		}(i)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), ev)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, bus.HandlerCount("monitoring.bug_fixed"))
}
