package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/gitpulse/internal/events"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEvent(t *testing.T, eventType string) events.DomainEvent {
	t.Helper()
	de, err := events.NewDomainEvent("/repo", eventType, 1, map[string]interface{}{"message": "Consider releasing v1.3.0"})
	require.NoError(t, err)
	return de
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func newTestDispatcher(t *testing.T, cfg Config, opts ...Option) (*Dispatcher, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	opts = append([]Option{WithSleep(rec.sleep), WithLogger(quietLogger())}, opts...)
	d, err := New(cfg, opts...)
	require.NoError(t, err)
	return d, rec
}

func TestPermanentFailureMakesExactlyMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	d, rec := newTestDispatcher(t, Config{Endpoints: []Endpoint{{Name: "ci", URL: srv.URL}}})
	results := d.Dispatch(context.Background(), testEvent(t, "suggestion.release"))

	require.Len(t, results, 1)
	res := results[0]
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, "boom", res.Response)
	assert.Contains(t, res.Error, "500")
	assert.EqualValues(t, 3, hits.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.recorded())
}

func TestRetryThenSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	var mu sync.Mutex
	var states []State
	observe := func(tr Transition) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, tr.State)
	}

	d, _ := newTestDispatcher(t, Config{Endpoints: []Endpoint{{URL: srv.URL, Retry: &RetryConfig{
		MaxAttempts: 5, Backoff: BackoffLinear, BaseDelay: time.Millisecond, MaxDelay: time.Second,
	}}}}, WithObserver(observe))

	results := d.Dispatch(context.Background(), testEvent(t, "monitoring.feature_complete"))
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 3, results[0].Attempts)
	assert.Equal(t, StateDelivered, results[0].State)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{
		StatePending,
		StateSending, StateRetryScheduled,
		StateSending, StateRetryScheduled,
		StateSending, StateDelivered,
	}, states)
}

func TestInvalidAuthFailsWithoutNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	bad := Endpoint{Name: "bad", URL: srv.URL, Auth: &Auth{Type: AuthBearer}}

	_, err := New(Config{Endpoints: []Endpoint{bad}})
	assert.ErrorIs(t, err, ErrInvalidAuth)

	d, _ := newTestDispatcher(t, Config{})
	res := d.Deliver(context.Background(), bad, "suggestion.commit", []byte(`{}`))
	assert.False(t, res.Success)
	assert.Zero(t, res.Attempts)
	assert.Equal(t, StateFailed, res.State)
	assert.Contains(t, res.Error, "bearer auth requires a token")
	assert.Zero(t, hits.Load())
}

func TestAuthHeaders(t *testing.T) {
	tests := []struct {
		name  string
		auth  *Auth
		check func(t *testing.T, r *http.Request)
	}{
		{
			name: "bearer",
			auth: &Auth{Type: AuthBearer, Token: "tok"},
			check: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			},
		},
		{
			name: "basic",
			auth: &Auth{Type: AuthBasic, Username: "u", Password: "p"},
			check: func(t *testing.T, r *http.Request) {
				user, pass, ok := r.BasicAuth()
				assert.True(t, ok)
				assert.Equal(t, "u", user)
				assert.Equal(t, "p", pass)
			},
		},
		{
			name: "custom",
			auth: &Auth{Type: AuthCustom, Headers: map[string]string{"X-Api-Key": "k1"}},
			check: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "k1", r.Header.Get("X-Api-Key"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make(chan *http.Request, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got <- r.Clone(context.Background())
			}))
			defer srv.Close()

			d, _ := newTestDispatcher(t, Config{Endpoints: []Endpoint{{URL: srv.URL, Auth: tt.auth}}})
			results := d.Dispatch(context.Background(), testEvent(t, "suggestion.pr"))
			require.Len(t, results, 1)
			require.True(t, results[0].Success)
			tt.check(t, <-got)
		})
	}
}

func TestSignedRequest(t *testing.T) {
	type captured struct {
		header http.Header
		body   []byte
	}
	got := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- captured{header: r.Header.Clone(), body: body}
	}))
	defer srv.Close()

	d, _ := newTestDispatcher(t, Config{
		SigningSecret: "s3cret",
		Endpoints:     []Endpoint{{URL: srv.URL}},
	})
	de := testEvent(t, "milestone.feature_shipped")
	results := d.Dispatch(context.Background(), de)
	require.True(t, results[0].Success)

	c := <-got
	assert.Equal(t, "application/json", c.header.Get("Content-Type"))
	assert.Equal(t, "milestone.feature_shipped", c.header.Get(HeaderEvent))
	assert.Equal(t, results[0].DeliveryID, c.header.Get(HeaderDelivery))
	assert.Len(t, c.header.Get(HeaderDelivery), 26)
	assert.True(t, Verify("s3cret", c.body, c.header.Get(HeaderSignature)))
	assert.False(t, Verify("other", c.body, c.header.Get(HeaderSignature)))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(c.body, &payload))
	assert.Equal(t, de.ID(), payload["id"])
	assert.Equal(t, "milestone.feature_shipped", payload["event_type"])
}

func TestEndpointFilter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	d, _ := newTestDispatcher(t, Config{Endpoints: []Endpoint{
		{Name: "releases", URL: srv.URL, Events: []string{"suggestion.release"}},
		{Name: "milestones", URL: srv.URL, Events: []string{"milestone.*"}},
	}})

	assert.Empty(t, d.Dispatch(context.Background(), testEvent(t, "monitoring.file_modified")))
	results := d.Dispatch(context.Background(), testEvent(t, "suggestion.release"))
	require.Len(t, results, 1)
	assert.Equal(t, "releases", results[0].Endpoint)
	assert.EqualValues(t, 1, hits.Load())
}

func TestEndpointsDeliverConcurrently(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)
	both := make(chan struct{})
	go func() {
		arrived.Wait()
		close(both)
	}()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived.Done()
		select {
		case <-both:
			w.WriteHeader(http.StatusOK)
		case <-time.After(2 * time.Second):
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})
	a := httptest.NewServer(handler)
	defer a.Close()
	b := httptest.NewServer(handler)
	defer b.Close()

	one := &RetryConfig{MaxAttempts: 1, Backoff: BackoffLinear}
	d, _ := newTestDispatcher(t, Config{Endpoints: []Endpoint{
		{Name: "a", URL: a.URL, Retry: one},
		{Name: "b", URL: b.URL, Retry: one},
	}})

	results := d.Dispatch(context.Background(), testEvent(t, "suggestion.commit"))
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Endpoint)
	assert.Equal(t, "b", results[1].Endpoint)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
}

func TestAttemptsToOneEndpointNeverOverlap(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
	}))
	defer srv.Close()

	d, _ := newTestDispatcher(t, Config{Endpoints: []Endpoint{{Name: "one", URL: srv.URL}}})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(context.Background(), testEvent(t, "suggestion.fix"))
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, maxInFlight.Load())
}

func TestAttemptTimeoutIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	d, rec := newTestDispatcher(t, Config{Endpoints: []Endpoint{{
		URL:     srv.URL,
		Timeout: 20 * time.Millisecond,
		Retry:   &RetryConfig{MaxAttempts: 2, Backoff: BackoffExponential, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}}})

	results := d.Dispatch(context.Background(), testEvent(t, "suggestion.help"))
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, 2, results[0].Attempts)
	assert.Contains(t, results[0].Error, "request failed")
	assert.Len(t, rec.recorded(), 1)
}

func TestHandlerQueuesForRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	d, _ := newTestDispatcher(t, Config{Endpoints: []Endpoint{{Name: "hook", URL: srv.URL, Events: []string{"release"}}}})

	h := d.Handler()
	assert.Equal(t, HandlerName, h.Name())
	require.NoError(t, h.Handle(context.Background(), testEvent(t, "monitoring.file_created")))
	require.NoError(t, h.Handle(context.Background(), testEvent(t, "suggestion.release")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan DeliveryResult, 1)
	go d.Run(ctx, func(res DeliveryResult) { got <- res })

	select {
	case res := <-got:
		assert.True(t, res.Success)
		assert.Equal(t, "hook", res.Endpoint)
		assert.Equal(t, "suggestion.release", res.EventType)
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery result")
	}
}

func TestStalledEndpointDoesNotDelayOthers(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer dead.Close()

	var got atomic.Int32
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Add(1)
	}))
	defer healthy.Close()

	d, _ := newTestDispatcher(t, Config{Endpoints: []Endpoint{
		{Name: "dead", URL: dead.URL, Timeout: time.Minute},
		{Name: "healthy", URL: healthy.URL},
	}})

	h := d.Handler()
	for i := 0; i < 2; i++ {
		require.NoError(t, h.Handle(context.Background(), testEvent(t, "suggestion.release")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, nil)
		close(done)
	}()

	assert.Eventually(t, func() bool { return got.Load() == 2 }, 2*time.Second, 5*time.Millisecond,
		"healthy endpoint receives both events while the other is stuck")
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestFullQueueDropsOnlyForThatEndpoint(t *testing.T) {
	d, _ := newTestDispatcher(t, Config{Endpoints: []Endpoint{
		{Name: "releases", URL: "https://hooks.example.com/releases", Events: []string{"release"}},
		{Name: "commits", URL: "https://hooks.example.com/commits", Events: []string{"commit"}},
	}})
	h := d.Handler()

	for i := 0; i < queueSize; i++ {
		require.NoError(t, h.Handle(context.Background(), testEvent(t, "suggestion.release")))
	}
	err := h.Handle(context.Background(), testEvent(t, "suggestion.release"))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.ErrorContains(t, err, "releases")

	assert.NoError(t, h.Handle(context.Background(), testEvent(t, "suggestion.commit")))
}
