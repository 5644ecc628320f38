package guard

import (
	"fmt"
	"strings"
	"time"
)

// KeyBy selects what a rate limit counts against.
type KeyBy string

const (
	KeyByToken KeyBy = "token"
	KeyByIP    KeyBy = "ip"
)

// RateLimitConfig configures the windowed request counter.
type RateLimitConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max_requests"`
	// By counts per authenticated token name, falling back to the caller
	// address for anonymous requests, or always per address
	By          KeyBy    `yaml:"by"`
	ExemptPaths []string `yaml:"exempt_paths"`
}

// DefaultRateLimitConfig allows 100 requests a minute per token.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:     true,
		Window:      time.Minute,
		MaxRequests: 100,
		By:          KeyByToken,
		ExemptPaths: []string{"/api/health"},
	}
}

// Validate checks the rate limit settings
func (c RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive, got %v", c.Window)
	}
	if c.MaxRequests < 1 {
		return fmt.Errorf("rate_limit.max_requests must be at least 1, got %d", c.MaxRequests)
	}
	if c.By != KeyByToken && c.By != KeyByIP {
		return fmt.Errorf("rate_limit.by must be token or ip, got %q", c.By)
	}
	return nil
}

// Exempt reports whether path bypasses rate limiting and auth.
func (c RateLimitConfig) Exempt(path string) bool {
	for _, p := range c.ExemptPaths {
		if p == path || (strings.HasSuffix(p, "/*") && strings.HasPrefix(path, strings.TrimSuffix(p, "*"))) {
			return true
		}
	}
	return false
}

// Credential is one allow-listed token or API key.
type Credential struct {
	Name   string   `yaml:"name"`
	Secret string   `yaml:"secret"`
	Scopes []string `yaml:"scopes"`
}

// AuthConfig lists accepted bearer tokens and API keys.
type AuthConfig struct {
	Enabled bool         `yaml:"enabled"`
	Tokens  []Credential `yaml:"tokens"`
	APIKeys []Credential `yaml:"api_keys"`
}

// Validate checks every credential is named and non-empty, and names are unique.
func (c AuthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Tokens)+len(c.APIKeys) == 0 {
		return fmt.Errorf("auth is enabled but no tokens or api_keys are configured")
	}
	seen := make(map[string]bool)
	for _, cred := range append(append([]Credential(nil), c.Tokens...), c.APIKeys...) {
		if strings.TrimSpace(cred.Name) == "" {
			return fmt.Errorf("auth credential without a name")
		}
		if strings.TrimSpace(cred.Secret) == "" {
			return fmt.Errorf("auth credential %s has an empty secret", cred.Name)
		}
		if seen[cred.Name] {
			return fmt.Errorf("duplicate auth credential name %s", cred.Name)
		}
		seen[cred.Name] = true
	}
	return nil
}

// CORSConfig configures cross-origin access.
type CORSConfig struct {
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	AllowedMethods   []string      `yaml:"allowed_methods"`
	AllowedHeaders   []string      `yaml:"allowed_headers"`
	AllowCredentials bool          `yaml:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age"`
}

// DefaultCORSConfig allows no cross-origin callers.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", APIKeyHeader},
		MaxAge:         10 * time.Minute,
	}
}

// Validate checks the CORS settings
func (c CORSConfig) Validate() error {
	for _, o := range c.AllowedOrigins {
		if o == "*" && c.AllowCredentials {
			return fmt.Errorf("cors: wildcard origin cannot be combined with allow_credentials")
		}
	}
	return nil
}
