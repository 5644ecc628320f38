// Package api is the HTTP control surface: queries over what the pipeline
// produced, conversation intake, suggestion feedback and a live stream.
// Every route except health sits behind the guard.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/guard"
	"github.com/steveyegge/gitpulse/internal/pipeline"
)

// Scopes checked by the routes.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
)

// maxBody bounds request bodies.
const maxBody = 1 << 20

// Store is the query side of persistence.
type Store interface {
	GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.MonitoringEvent, error)
	GetMilestones(ctx context.Context, filter events.EventFilter) ([]*events.AggregatedMilestone, error)
	GetSuggestions(ctx context.Context, filter events.EventFilter) ([]*events.MonitoringSuggestion, error)
}

// Server serves the API for one pipeline. Store may be nil, in which case
// queries answer from in-memory state. A nil Guard serves without auth or
// rate limiting.
type Server struct {
	Pipeline  *pipeline.Pipeline
	Store     Store
	Guard     *guard.Guard
	Logger    *slog.Logger
	StartedAt time.Time
}

// Handler returns the routed, guarded handler.
func (s *Server) Handler() http.Handler {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}

	read := func(h http.HandlerFunc) http.Handler { return guard.RequireScope(ScopeRead, h) }
	write := func(h http.HandlerFunc) http.Handler { return guard.RequireScope(ScopeWrite, h) }

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/api/events", read(s.handleEvents))
	mux.Handle("/api/milestones", read(s.handleMilestones))
	mux.Handle("/api/suggestions", read(s.handleSuggestions))
	mux.Handle("/api/suggestions/dismiss", write(s.handleDismiss))
	mux.Handle("/api/conversation", write(s.handleConversation))
	mux.Handle("/api/stream", read(s.handleStream))

	g := s.Guard
	if g == nil {
		// open access: no auth, no rate limit
		g, _ = guard.New(guard.Config{CORS: guard.DefaultCORSConfig()}, s.Logger)
	}
	return g.Middleware(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"project": s.Pipeline.Project(),
		"uptime":  time.Since(s.StartedAt).Round(time.Second).String(),
		"bus":     s.Pipeline.Bus().Stats(),
		"time":    time.Now().UTC(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	filter, ok := s.parseFilter(w, r)
	if !ok {
		return
	}

	if s.Store == nil {
		writeJSON(w, http.StatusOK, filterWindow(s.Pipeline.Aggregator().Window(), filter))
		return
	}
	evs, err := s.Store.GetEvents(r.Context(), filter)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(evs))
}

func (s *Server) handleMilestones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	filter, ok := s.parseFilter(w, r)
	if !ok {
		return
	}
	if s.Store == nil {
		writeJSON(w, http.StatusOK, []*events.AggregatedMilestone{})
		return
	}
	ms, err := s.Store.GetMilestones(r.Context(), filter)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ms))
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	filter, ok := s.parseFilter(w, r)
	if !ok {
		return
	}
	if s.Store == nil {
		recent := s.Pipeline.Engine().Recent(events.SuggestionType(filter.Type), filter.Limit)
		writeJSON(w, http.StatusOK, nonNil(recent))
		return
	}
	list, err := s.Store.GetSuggestions(r.Context(), filter)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var payload struct {
		Type string `json:"type"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	t := events.SuggestionType(payload.Type)
	if !validSuggestionType(t) {
		badRequest(w, "unknown suggestion type: "+payload.Type)
		return
	}
	th := s.Pipeline.Engine().Dismiss(t)
	s.Logger.Info("suggestion dismissed",
		slog.String("type", payload.Type),
		slog.String("by", guard.PrincipalFrom(r.Context()).Name))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "thresholds": th})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var payload struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		badRequest(w, "text is required")
		return
	}
	res := s.Pipeline.Conversation(r.Context(), payload.Text)
	writeJSON(w, http.StatusOK, res)
}

// parseFilter reads type, since (RFC 3339) and limit query parameters.
func (s *Server) parseFilter(w http.ResponseWriter, r *http.Request) (events.EventFilter, bool) {
	q := r.URL.Query()
	filter := events.EventFilter{
		Type:    q.Get("type"),
		Project: s.Pipeline.Project(),
		Limit:   parseInt(q.Get("limit"), 100),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			badRequest(w, "since must be an RFC 3339 timestamp")
			return filter, false
		}
		filter.Since = t
	}
	if filter.Limit < 0 {
		badRequest(w, "limit must not be negative")
		return filter, false
	}
	return filter, true
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.Logger.Error("api query failed", slog.String("error", err.Error()))
	guard.WriteError(w, http.StatusInternalServerError, guard.CodeInternal, "internal error", nil)
}

func filterWindow(evs []*events.MonitoringEvent, filter events.EventFilter) []*events.MonitoringEvent {
	out := make([]*events.MonitoringEvent, 0, len(evs))
	for _, ev := range evs {
		if filter.Type != "" && string(ev.Type) != filter.Type {
			continue
		}
		if !filter.Since.IsZero() && ev.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, ev)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

func validSuggestionType(t events.SuggestionType) bool {
	for _, known := range events.AllSuggestionTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// nonNil keeps empty results encoding as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

func decodeJSON(body io.Reader, dest any) error {
	dec := json.NewDecoder(io.LimitReader(body, maxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func badRequest(w http.ResponseWriter, msg string) {
	guard.WriteError(w, http.StatusBadRequest, guard.CodeBadRequest, msg, nil)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	guard.WriteError(w, http.StatusMethodNotAllowed, guard.CodeBadRequest, "method not allowed", nil)
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
