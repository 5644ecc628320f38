package guard

import (
	"sync"
	"time"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the current window ends
	ResetAt time.Time
	// RetryAfter is set when the request was rejected
	RetryAfter time.Duration
}

type window struct {
	start time.Time
	count int
}

// Limiter is a fixed-window request counter per key. The check and the
// increment happen under one lock so concurrent callers cannot over-admit.
type Limiter struct {
	mu      sync.Mutex
	size    time.Duration
	max     int
	now     func() time.Time
	windows map[string]*window
	checks  int
}

// NewLimiter creates a limiter admitting max requests per key per window.
func NewLimiter(size time.Duration, max int) *Limiter {
	return &Limiter{
		size:    size,
		max:     max,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Allow counts a request against key and reports whether it is admitted.
func (l *Limiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.checks++
	if l.checks%1024 == 0 {
		l.sweep(now)
	}

	w := l.windows[key]
	if w == nil || now.Sub(w.start) >= l.size {
		w = &window{start: now}
		l.windows[key] = w
	}
	reset := w.start.Add(l.size)

	if w.count >= l.max {
		retry := reset.Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return Decision{Limit: l.max, ResetAt: reset, RetryAfter: retry}
	}
	w.count++
	return Decision{Allowed: true, Limit: l.max, Remaining: l.max - w.count, ResetAt: reset}
}

// sweep drops expired windows. Called with the lock held.
func (l *Limiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.size {
			delete(l.windows, k)
		}
	}
}
