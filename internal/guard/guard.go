// Package guard holds the admission policies for the HTTP control surface:
// CORS, token and API-key authentication with scopes, and per-caller rate
// limiting. Rejections use the APIError envelope.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Config groups the guard policies.
type Config struct {
	RateLimit RateLimitConfig
	Auth      AuthConfig
	CORS      CORSConfig
}

// Validate checks all policies.
func (c Config) Validate() error {
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.CORS.Validate()
}

type principalKey struct{}

// PrincipalFrom returns the principal stored by the middleware, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// Guard applies the policies to HTTP handlers.
type Guard struct {
	cfg     Config
	auth    *Authenticator
	limiter *Limiter
	logger  *slog.Logger
}

// New creates a Guard. The configuration must be valid.
func New(cfg Config, logger *slog.Logger) (*Guard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid guard config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{cfg: cfg, auth: NewAuthenticator(cfg.Auth), logger: logger}
	if cfg.RateLimit.Enabled {
		g.limiter = NewLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)
	}
	return g, nil
}

// SetClock overrides the rate limiter clock, for tests.
func (g *Guard) SetClock(now func() time.Time) {
	if g.limiter != nil {
		g.limiter.now = now
	}
}

// Middleware wraps next with CORS, authentication and rate limiting, in that
// order. Exempt paths skip authentication and rate limiting. Rate limiting
// runs before an authentication failure is reported so anonymous floods are
// throttled by address.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if applyCORS(g.cfg.CORS, w, r) {
			return
		}
		if g.cfg.RateLimit.Exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		principal, authErr := g.auth.Authenticate(r)

		if g.limiter != nil {
			key := g.rateKey(principal, r)
			d := g.limiter.Allow(key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				g.logger.Warn("request rate limited",
					slog.String("key", key),
					slog.String("path", r.URL.Path),
					slog.Duration("retry_after", d.RetryAfter))
				writeRateLimited(w, d)
				return
			}
		}

		if authErr != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gitpulse"`)
			WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "missing or invalid credentials", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequireScope rejects requests whose principal lacks scope.
func RequireScope(scope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := PrincipalFrom(r.Context()).Authorize(scope); err != nil {
			WriteError(w, http.StatusForbidden, CodeForbidden, err.Error(),
				map[string]interface{}{"scope": scope})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) rateKey(p *Principal, r *http.Request) string {
	if g.cfg.RateLimit.By == KeyByToken && p != nil && p.Kind != "anonymous" {
		return "principal:" + p.Name
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
