// Package ai writes commit messages with the Anthropic API.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// RetryConfig holds retry configuration for API calls
type RetryConfig struct {
	MaxRetries        int           // Maximum number of retries (default: 3)
	InitialBackoff    time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff        time.Duration // Maximum backoff duration (default: 30s)
	BackoffMultiplier float64       // Backoff multiplier (default: 2.0)
	Timeout           time.Duration // Per-request timeout (default: 60s)

	// Circuit breaker settings
	FailureThreshold int           // Failures before opening circuit (default: 5, 0 disables)
	OpenTimeout      time.Duration // How long to keep circuit open (default: 30s)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Timeout:           60 * time.Second,
		FailureThreshold:  5,
		OpenTimeout:       30 * time.Second,
	}
}

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation, requests pass through
	CircuitOpen                         // Too many failures, block requests (fail fast)
	CircuitHalfOpen                     // Testing recovery, allow one probe
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops calling the API after repeated transient failures.
type CircuitBreaker struct {
	mu sync.Mutex

	state            CircuitState
	failureCount     int
	lastFailureTime  time.Time
	failureThreshold int
	openTimeout      time.Duration
	now              func() time.Time
	logger           *slog.Logger
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(failureThreshold int, openTimeout time.Duration, logger *slog.Logger) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		openTimeout:      openTimeout,
		now:              time.Now,
		logger:           logger,
	}
}

// Allow returns ErrCircuitOpen while the circuit is open and the timeout has not passed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen {
		return nil
	}
	if cb.now().Sub(cb.lastFailureTime) > cb.openTimeout {
		cb.transition(CircuitHalfOpen)
		return nil
	}
	return ErrCircuitOpen
}

// RecordSuccess closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	if cb.state != CircuitClosed {
		cb.transition(CircuitClosed)
	}
}

// RecordFailure counts a transient failure. A failed probe reopens the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = cb.now()
	cb.failureCount++
	switch cb.state {
	case CircuitClosed:
		if cb.failureCount >= cb.failureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transition(CircuitOpen)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transition must be called with the lock held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.logger.Info("circuit breaker state transition",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int("failures", cb.failureCount))
}

// retrier runs API calls with exponential backoff behind an optional circuit breaker.
type retrier struct {
	cfg     RetryConfig
	breaker *CircuitBreaker
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func newRetrier(cfg RetryConfig, logger *slog.Logger) *retrier {
	r := &retrier{cfg: cfg, logger: logger, sleep: sleepCtx}
	if cfg.FailureThreshold > 0 {
		r.breaker = NewCircuitBreaker(cfg.FailureThreshold, cfg.OpenTimeout, logger)
	}
	return r
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

// retryWithBackoff executes an operation with retry and exponential backoff
func (r *retrier) retryWithBackoff(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error
	backoff := r.cfg.InitialBackoff

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if r.breaker != nil {
			if err := r.breaker.Allow(); err != nil {
				return fmt.Errorf("%s failed: %w", operation, err)
			}
		}

		attemptCtx := ctx
		cancel := func() {}
		if r.cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		}
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if r.breaker != nil {
				r.breaker.RecordSuccess()
			}
			if attempt > 0 {
				r.logger.Info("AI API call succeeded after retries",
					slog.String("operation", operation),
					slog.Int("retries", attempt))
			}
			return nil
		}
		lastErr = err

		// Non-retriable errors (like auth failures) don't count against the breaker
		if !isRetriableError(err) {
			return fmt.Errorf("%s failed: %w", operation, err)
		}
		if r.breaker != nil {
			r.breaker.RecordFailure()
		}
		if attempt == r.cfg.MaxRetries {
			break
		}

		r.logger.Warn("AI API call failed, retrying",
			slog.String("operation", operation),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()))

		if err := r.sleep(ctx, backoff); err != nil {
			return fmt.Errorf("%s failed: context canceled during backoff: %w", operation, err)
		}
		backoff = time.Duration(float64(backoff) * r.cfg.BackoffMultiplier)
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, r.cfg.MaxRetries+1, lastErr)
}

// isRetriableError determines if an error is retriable (transient)
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return true
		case apiErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, s := range []string{"rate limit", "connection refused", "connection reset", "timeout", "temporary failure"} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}
