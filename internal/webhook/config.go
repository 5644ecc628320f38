package webhook

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidAuth is returned for endpoint auth that is missing required credentials.
var ErrInvalidAuth = errors.New("invalid webhook auth")

// AuthType selects how a request is authenticated.
type AuthType string

const (
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthCustom AuthType = "custom"
)

// Auth holds endpoint credentials. Which fields are required depends on Type.
type Auth struct {
	Type     AuthType          `yaml:"type" json:"type"`
	Token    string            `yaml:"token,omitempty" json:"token,omitempty"`
	Username string            `yaml:"username,omitempty" json:"username,omitempty"`
	Password string            `yaml:"password,omitempty" json:"password,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// Validate checks the credentials required by the auth type are present.
func (a *Auth) Validate() error {
	if a == nil {
		return nil
	}
	switch a.Type {
	case AuthBearer:
		if strings.TrimSpace(a.Token) == "" {
			return fmt.Errorf("%w: bearer auth requires a token", ErrInvalidAuth)
		}
	case AuthBasic:
		if a.Username == "" || a.Password == "" {
			return fmt.Errorf("%w: basic auth requires username and password", ErrInvalidAuth)
		}
	case AuthCustom:
		if len(a.Headers) == 0 {
			return fmt.Errorf("%w: custom auth requires at least one header", ErrInvalidAuth)
		}
		for k := range a.Headers {
			if strings.TrimSpace(k) == "" {
				return fmt.Errorf("%w: custom auth header name is empty", ErrInvalidAuth)
			}
		}
	default:
		return fmt.Errorf("%w: unknown auth type %q", ErrInvalidAuth, a.Type)
	}
	return nil
}

// BackoffPolicy selects how the delay grows between attempts.
type BackoffPolicy string

const (
	BackoffLinear      BackoffPolicy = "linear"
	BackoffExponential BackoffPolicy = "exponential"
)

// RetryConfig bounds delivery attempts to one endpoint.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Backoff     BackoffPolicy `yaml:"backoff" json:"backoff"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// DefaultRetryConfig returns 3 attempts with exponential backoff from 1s capped at 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Backoff:     BackoffExponential,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Validate checks the retry policy
func (r RetryConfig) Validate() error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", r.MaxAttempts)
	}
	if r.Backoff != BackoffLinear && r.Backoff != BackoffExponential {
		return fmt.Errorf("backoff must be linear or exponential, got %q", r.Backoff)
	}
	if r.BaseDelay < 0 {
		return fmt.Errorf("base_delay must not be negative, got %v", r.BaseDelay)
	}
	if r.MaxDelay < r.BaseDelay {
		return fmt.Errorf("max_delay (%v) must be at least base_delay (%v)", r.MaxDelay, r.BaseDelay)
	}
	return nil
}

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 10 * time.Second

// Endpoint is one webhook target.
type Endpoint struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
	// Events filters by domain event type. Empty matches everything. Entries may be
	// exact ("suggestion.release"), a bare type ("release"), a prefix ("milestone.*") or "*".
	Events        []string      `yaml:"events,omitempty" json:"events,omitempty"`
	Auth          *Auth         `yaml:"auth,omitempty" json:"auth,omitempty"`
	Retry         *RetryConfig  `yaml:"retry,omitempty" json:"retry,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	RatePerSecond float64       `yaml:"rate_per_second,omitempty" json:"rate_per_second,omitempty"`
}

// RetryPolicy returns the endpoint's retry config or the default.
func (e Endpoint) RetryPolicy() RetryConfig {
	if e.Retry == nil {
		return DefaultRetryConfig()
	}
	return *e.Retry
}

// AttemptTimeout returns the endpoint's per-attempt timeout or the default.
func (e Endpoint) AttemptTimeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

// DisplayName returns Name, or the full URL when unnamed.
func (e Endpoint) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.URL
}

// Matches reports whether the endpoint wants events of eventType.
func (e Endpoint) Matches(eventType string) bool {
	if len(e.Events) == 0 {
		return true
	}
	_, bare, _ := strings.Cut(eventType, ".")
	for _, f := range e.Events {
		switch {
		case f == "*" || f == eventType:
			return true
		case strings.HasSuffix(f, ".*") && strings.HasPrefix(eventType, strings.TrimSuffix(f, "*")):
			return true
		case !strings.Contains(f, ".") && f == bare:
			return true
		}
	}
	return false
}

// Validate checks the endpoint is deliverable.
func (e Endpoint) Validate() error {
	u, err := url.Parse(e.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("endpoint %s: url must be an absolute http(s) URL, got %q", e.DisplayName(), e.URL)
	}
	if err := e.Auth.Validate(); err != nil {
		return fmt.Errorf("endpoint %s: %w", e.DisplayName(), err)
	}
	if e.Retry != nil {
		if err := e.Retry.Validate(); err != nil {
			return fmt.Errorf("endpoint %s: %w", e.DisplayName(), err)
		}
	}
	if e.Timeout < 0 {
		return fmt.Errorf("endpoint %s: timeout must not be negative", e.DisplayName())
	}
	if e.RatePerSecond < 0 {
		return fmt.Errorf("endpoint %s: rate_per_second must not be negative", e.DisplayName())
	}
	return nil
}

// Config is the webhook section of the configuration.
type Config struct {
	// SigningSecret enables the X-Gitpulse-Signature header when set
	SigningSecret string     `yaml:"signing_secret,omitempty" json:"-"`
	Endpoints     []Endpoint `yaml:"endpoints" json:"endpoints"`
	// Concurrency bounds endpoints delivered in parallel by Dispatch (default: 4)
	Concurrency int `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
}

// Validate checks every endpoint. Endpoint names must be unique.
func (c Config) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	seen := make(map[string]bool, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		if err := ep.Validate(); err != nil {
			return err
		}
		name := ep.DisplayName()
		if seen[name] {
			return fmt.Errorf("duplicate webhook endpoint %s", name)
		}
		seen[name] = true
	}
	return nil
}
