package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/steveyegge/gitpulse/internal/eventbus"
	"github.com/steveyegge/gitpulse/internal/events"
)

// ErrQueueFull is returned by the bus handler when an endpoint's deliveries back up.
var ErrQueueFull = errors.New("webhook queue full")

// HandlerName is the bus registry name of the dispatcher's handler.
const HandlerName = "webhook-dispatcher"

// queueSize is the number of events each endpoint may have waiting.
const queueSize = 256

type job struct {
	eventType string
	body      []byte
}

// Handler returns a bus handler that queues matching events for Run, one queue
// per endpoint. It never blocks the publisher on network I/O. A full queue
// drops the event for that endpoint only.
func (d *Dispatcher) Handler() eventbus.Handler {
	return eventbus.NewHandler(HandlerName, func(_ context.Context, de events.DomainEvent) error {
		var j *job
		var full []string
		for _, ep := range d.cfg.Endpoints {
			if !ep.Matches(de.EventType()) {
				continue
			}
			if j == nil {
				body, err := json.Marshal(de)
				if err != nil {
					return fmt.Errorf("failed to encode webhook payload: %w", err)
				}
				j = &job{eventType: de.EventType(), body: body}
			}
			name := ep.DisplayName()
			select {
			case d.queues[name] <- *j:
			default:
				full = append(full, name)
			}
		}
		if len(full) > 0 {
			return fmt.Errorf("%w: %s", ErrQueueFull, strings.Join(full, ", "))
		}
		return nil
	})
}

// Run delivers queued events until ctx is cancelled. Each endpoint drains its
// own queue in order, so a failing endpoint retrying never delays the others.
// onResult, which may be nil, is called from the endpoint goroutines and must
// be safe for concurrent use.
func (d *Dispatcher) Run(ctx context.Context, onResult func(DeliveryResult)) {
	var wg sync.WaitGroup
	for _, ep := range d.cfg.Endpoints {
		wg.Go(func() {
			d.work(ctx, ep, onResult)
		})
	}
	wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context, ep Endpoint, onResult func(DeliveryResult)) {
	name := ep.DisplayName()
	queue := d.queues[name]
	for {
		select {
		case <-ctx.Done():
			if n := len(queue); n > 0 {
				d.logger.Warn("webhook dispatcher stopped with queued events",
					slog.String("endpoint", name),
					slog.Int("queued", n))
			}
			return
		case j := <-queue:
			res := d.Deliver(ctx, ep, j.eventType, j.body)
			if onResult != nil {
				onResult(res)
			}
		}
	}
}
