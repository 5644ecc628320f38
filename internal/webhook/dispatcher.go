// Package webhook delivers domain events to external HTTP endpoints with
// per-endpoint auth, signing, retry and backoff.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/steveyegge/gitpulse/internal/events"
)

// Request headers set on every delivery.
const (
	HeaderEvent     = "X-Gitpulse-Event"
	HeaderDelivery  = "X-Gitpulse-Delivery"
	HeaderSignature = "X-Gitpulse-Signature"
)

// maxResponse bounds the response body kept in a DeliveryResult.
const maxResponse = 4096

// State is a delivery's position in its lifecycle.
type State string

const (
	StatePending        State = "PENDING"
	StateSending        State = "SENDING"
	StateDelivered      State = "DELIVERED"
	StateRetryScheduled State = "RETRY_SCHEDULED"
	StateFailed         State = "FAILED"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateFailed
}

// Transition is reported to an observer on every state change.
type Transition struct {
	DeliveryID string
	Endpoint   string
	Attempt    int
	State      State
	// Delay is set for RETRY_SCHEDULED
	Delay time.Duration
	Err   error
}

// DeliveryResult is the outcome of delivering one event to one endpoint.
// Exhaustion is reported here, never as an error.
type DeliveryResult struct {
	DeliveryID string    `json:"delivery_id"`
	Endpoint   string    `json:"endpoint"`
	EventType  string    `json:"event_type"`
	Success    bool      `json:"success"`
	Attempts   int       `json:"attempts"`
	StatusCode int       `json:"status_code,omitempty"`
	Response   string    `json:"response,omitempty"`
	Error      string    `json:"error,omitempty"`
	State      State     `json:"state"`
	Timestamp  time.Time `json:"timestamp"`
}

// Dispatcher delivers events to the configured endpoints. Endpoints are
// delivered concurrently; attempts to a single endpoint never overlap.
// Dispatch delivers one event synchronously; Handler and Run deliver in the
// background from per-endpoint queues.
type Dispatcher struct {
	cfg      Config
	client   *http.Client
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
	observer func(Transition)
	sem      *semaphore.Weighted

	limiters map[string]*rate.Limiter
	// locks serializes deliveries per endpoint across Dispatch calls
	locks map[string]*sync.Mutex

	queues map[string]chan job
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the HTTP client. Per-attempt timeouts come from the endpoint.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithSleep replaces the backoff sleep, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) { d.sleep = fn }
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithObserver registers a callback for every state transition.
func WithObserver(fn func(Transition)) Option {
	return func(d *Dispatcher) { d.observer = fn }
}

// New creates a Dispatcher. The configuration is validated here so that bad
// credentials fail at load rather than at delivery time.
func New(cfg Config, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid webhook config: %w", err)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 4
	}
	d := &Dispatcher{
		cfg:      cfg,
		client:   &http.Client{},
		logger:   slog.Default(),
		sleep:    sleepCtx,
		now:      time.Now,
		sem:      semaphore.NewWeighted(int64(cfg.Concurrency)),
		limiters: make(map[string]*rate.Limiter),
		locks:    make(map[string]*sync.Mutex),
		queues:   make(map[string]chan job),
	}
	for _, ep := range cfg.Endpoints {
		name := ep.DisplayName()
		d.locks[name] = &sync.Mutex{}
		d.queues[name] = make(chan job, queueSize)
		if ep.RatePerSecond > 0 {
			d.limiters[name] = rate.NewLimiter(rate.Limit(ep.RatePerSecond), 1)
		}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Endpoints returns the configured endpoints.
func (d *Dispatcher) Endpoints() []Endpoint {
	return append([]Endpoint(nil), d.cfg.Endpoints...)
}

// Dispatch delivers de to every matching endpoint and returns one result per
// endpoint in configuration order. It blocks until all deliveries finish.
func (d *Dispatcher) Dispatch(ctx context.Context, de events.DomainEvent) []DeliveryResult {
	body, err := json.Marshal(de)
	if err != nil {
		d.logger.Error("failed to encode webhook payload",
			slog.String("event_type", de.EventType()),
			slog.String("error", err.Error()))
		return nil
	}

	var targets []Endpoint
	for _, ep := range d.cfg.Endpoints {
		if ep.Matches(de.EventType()) {
			targets = append(targets, ep)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	results := make([]DeliveryResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range targets {
		g.Go(func() error {
			if err := d.sem.Acquire(gctx, 1); err != nil {
				results[i] = d.failed(ep, de.EventType(), ulid.Make().String(), 0, err)
				return nil
			}
			defer d.sem.Release(1)
			results[i] = d.Deliver(gctx, ep, de.EventType(), body)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Deliver sends body to ep, retrying per the endpoint's policy.
func (d *Dispatcher) Deliver(ctx context.Context, ep Endpoint, eventType string, body []byte) DeliveryResult {
	id := ulid.Make().String()
	name := ep.DisplayName()
	d.transition(Transition{DeliveryID: id, Endpoint: name, State: StatePending})

	if err := ep.Auth.Validate(); err != nil {
		return d.failed(ep, eventType, id, 0, err)
	}

	if mu := d.lock(name); mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}

	policy := ep.RetryPolicy()
	var (
		lastErr error
		status  int
		resp    string
	)
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if lim := d.limiters[name]; lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return d.failed(ep, eventType, id, attempt-1, err)
			}
		}

		d.transition(Transition{DeliveryID: id, Endpoint: name, Attempt: attempt, State: StateSending})
		status, resp, lastErr = d.attempt(ctx, ep, eventType, id, body)
		if lastErr == nil {
			d.transition(Transition{DeliveryID: id, Endpoint: name, Attempt: attempt, State: StateDelivered})
			d.logger.Debug("webhook delivered",
				slog.String("endpoint", name),
				slog.String("event_type", eventType),
				slog.Int("attempts", attempt))
			return DeliveryResult{
				DeliveryID: id,
				Endpoint:   name,
				EventType:  eventType,
				Success:    true,
				Attempts:   attempt,
				StatusCode: status,
				Response:   resp,
				State:      StateDelivered,
				Timestamp:  d.now(),
			}
		}

		if attempt == policy.MaxAttempts || ctx.Err() != nil {
			result := d.failed(ep, eventType, id, attempt, lastErr)
			result.StatusCode = status
			result.Response = resp
			return result
		}

		delay := policy.Delay(attempt)
		d.transition(Transition{DeliveryID: id, Endpoint: name, Attempt: attempt, State: StateRetryScheduled, Delay: delay, Err: lastErr})
		d.logger.Warn("webhook delivery failed, retrying",
			slog.String("endpoint", name),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", lastErr.Error()))
		if err := d.sleep(ctx, delay); err != nil {
			return d.failed(ep, eventType, id, attempt, fmt.Errorf("%w (last error: %v)", err, lastErr))
		}
	}
	// MaxAttempts >= 1 is validated, so the loop always returns
	return d.failed(ep, eventType, id, 0, errors.New("no delivery attempted"))
}

// attempt performs one bounded HTTP POST. Non-2xx responses are errors.
func (d *Dispatcher) attempt(ctx context.Context, ep Endpoint, eventType, id string, body []byte) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, ep.AttemptTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "gitpulse-webhook/1")
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderDelivery, id)
	if d.cfg.SigningSecret != "" {
		req.Header.Set(HeaderSignature, Sign(d.cfg.SigningSecret, body))
	}
	applyAuth(req, ep.Auth)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, string(data), fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return resp.StatusCode, string(data), nil
}

func applyAuth(req *http.Request, auth *Auth) {
	if auth == nil {
		return
	}
	switch auth.Type {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case AuthBasic:
		req.SetBasicAuth(auth.Username, auth.Password)
	case AuthCustom:
		for k, v := range auth.Headers {
			req.Header.Set(k, v)
		}
	}
}

// Sign returns the signature header value for body: "sha256=" + hex HMAC.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header value against body.
func Verify(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

func (d *Dispatcher) failed(ep Endpoint, eventType, id string, attempts int, err error) DeliveryResult {
	name := ep.DisplayName()
	d.transition(Transition{DeliveryID: id, Endpoint: name, Attempt: attempts, State: StateFailed, Err: err})
	d.logger.Error("webhook delivery failed",
		slog.String("endpoint", name),
		slog.String("event_type", eventType),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()))
	return DeliveryResult{
		DeliveryID: id,
		Endpoint:   name,
		EventType:  eventType,
		Attempts:   attempts,
		Error:      err.Error(),
		State:      StateFailed,
		Timestamp:  d.now(),
	}
}

func (d *Dispatcher) lock(name string) *sync.Mutex {
	return d.locks[name]
}

func (d *Dispatcher) transition(t Transition) {
	if d.observer != nil {
		d.observer(t)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
