package guard

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// APIKeyHeader carries an API key.
const APIKeyHeader = "X-API-Key"

var (
	// ErrUnauthorized is returned for missing or unknown credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a principal lacks a required scope.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited is returned when a caller exceeds its request budget.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ScopeAll grants every scope.
const ScopeAll = "*"

// Principal is an authenticated caller.
type Principal struct {
	Name   string
	Scopes []string
	// Kind is "token", "api_key" or "anonymous"
	Kind string
}

// HasScope reports whether p carries scope or ScopeAll.
func (p *Principal) HasScope(scope string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Scopes, scope) || slices.Contains(p.Scopes, ScopeAll)
}

// Authorize returns an error wrapping ErrForbidden when p lacks scope.
func (p *Principal) Authorize(scope string) error {
	if !p.HasScope(scope) {
		return fmt.Errorf("%w: scope %q required", ErrForbidden, scope)
	}
	return nil
}

// anonymous is the principal used when auth is disabled.
var anonymous = &Principal{Name: "anonymous", Scopes: []string{ScopeAll}, Kind: "anonymous"}

// Authenticator validates bearer tokens and API keys against an allow-list.
type Authenticator struct {
	enabled bool
	tokens  []Credential
	keys    []Credential
}

// NewAuthenticator creates an Authenticator from cfg.
func NewAuthenticator(cfg AuthConfig) *Authenticator {
	return &Authenticator{
		enabled: cfg.Enabled,
		tokens:  slices.Clone(cfg.Tokens),
		keys:    slices.Clone(cfg.APIKeys),
	}
}

// Authenticate returns the principal for r. When auth is disabled every
// request is an anonymous principal with all scopes.
func (a *Authenticator) Authenticate(r *http.Request) (*Principal, error) {
	if !a.enabled {
		return anonymous, nil
	}
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return nil, ErrUnauthorized
		}
		if c := match(a.tokens, strings.TrimSpace(token)); c != nil {
			return &Principal{Name: c.Name, Scopes: slices.Clone(c.Scopes), Kind: "token"}, nil
		}
		return nil, ErrUnauthorized
	}
	if key := r.Header.Get(APIKeyHeader); key != "" {
		if c := match(a.keys, key); c != nil {
			return &Principal{Name: c.Name, Scopes: slices.Clone(c.Scopes), Kind: "api_key"}, nil
		}
	}
	return nil, ErrUnauthorized
}

// match compares secret against every credential in constant time per entry.
func match(creds []Credential, secret string) *Credential {
	var found *Credential
	for i := range creds {
		if subtle.ConstantTimeCompare([]byte(creds[i].Secret), []byte(secret)) == 1 && found == nil {
			found = &creds[i]
		}
	}
	return found
}
