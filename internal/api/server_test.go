package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/guard"
	"github.com/steveyegge/gitpulse/internal/milestones"
	"github.com/steveyegge/gitpulse/internal/pipeline"
	"github.com/steveyegge/gitpulse/internal/storage/sqlite"
	"github.com/steveyegge/gitpulse/internal/suggestions"
)

const (
	readerToken = "reader-secret"
	writerToken = "writer-secret"
)

func newTestPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(pipeline.Config{
		ProjectPath:          "/work/app",
		ConversationTracking: true,
		Aggregation:          milestones.DefaultConfig(),
		Suggestions:          suggestions.DefaultConfig(),
		Branch:               "main",
	})
	require.NoError(t, err)
	return p
}

func guardConfig() guard.Config {
	return guard.Config{
		RateLimit: guard.RateLimitConfig{ExemptPaths: []string{"/api/health"}},
		Auth: guard.AuthConfig{
			Enabled: true,
			Tokens: []guard.Credential{
				{Name: "dashboard", Secret: readerToken, Scopes: []string{ScopeRead}},
				{Name: "assistant", Secret: writerToken, Scopes: []string{ScopeRead, ScopeWrite}},
			},
		},
		CORS: guard.DefaultCORSConfig(),
	}
}

func newTestServer(t *testing.T, cfg guard.Config, store Store) (*httptest.Server, *pipeline.Pipeline) {
	t.Helper()
	p := newTestPipeline(t)
	g, err := guard.New(cfg, nil)
	require.NoError(t, err)

	srv := httptest.NewServer((&Server{Pipeline: p, Store: store, Guard: g}).Handler())
	t.Cleanup(srv.Close)
	return srv, p
}

func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthIsPublic(t *testing.T) {
	srv, _ := newTestServer(t, guardConfig(), nil)

	resp := do(t, http.MethodGet, srv.URL+"/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "/work/app", body["project"])
}

func TestAuthAndScopes(t *testing.T) {
	srv, _ := newTestServer(t, guardConfig(), nil)
	msg := map[string]string{"text": "I'm stuck and need help with the parser"}

	resp := do(t, http.MethodPost, srv.URL+"/api/conversation", "", msg)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	apiErr := decode[guard.APIError](t, resp)
	assert.Equal(t, guard.CodeUnauthorized, apiErr.Error.Code)

	resp = do(t, http.MethodPost, srv.URL+"/api/conversation", readerToken, msg)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/conversation", writerToken, msg)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[pipeline.Result](t, resp)
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, events.SuggestionHelp, res.Suggestions[0].Type)

	resp = do(t, http.MethodGet, srv.URL+"/api/suggestions", readerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]events.MonitoringSuggestion](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, events.PriorityHigh, list[0].Priority)
}

func TestConversationValidation(t *testing.T) {
	srv, _ := newTestServer(t, guardConfig(), nil)

	resp := do(t, http.MethodPost, srv.URL+"/api/conversation", writerToken, map[string]string{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/conversation", writerToken, map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown fields are rejected")

	resp = do(t, http.MethodGet, srv.URL+"/api/conversation", writerToken, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestQueriesFromStore(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "api.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv, p := newTestServer(t, guardConfig(), store)
	p.Attach(store.Handler())

	var text string
	for _, name := range []string{"login", "search", "export", "billing", "profile"} {
		text += "I finished the " + name + " feature\n"
	}
	p.Conversation(context.Background(), text)

	resp := do(t, http.MethodGet, srv.URL+"/api/events?type=feature_complete&limit=3", readerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	evs := decode[[]events.MonitoringEvent](t, resp)
	assert.Len(t, evs, 3)

	resp = do(t, http.MethodGet, srv.URL+"/api/milestones", readerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ms := decode[[]events.AggregatedMilestone](t, resp)
	require.Len(t, ms, 1)
	assert.Equal(t, events.MilestoneFeatureShipped, ms[0].Type)

	resp = do(t, http.MethodGet, srv.URL+"/api/suggestions?type=release", readerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]events.MonitoringSuggestion](t, resp), 1)

	resp = do(t, http.MethodGet, srv.URL+"/api/events?type=bug_fixed", readerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]\n", readAll(t, resp))

	resp = do(t, http.MethodGet, srv.URL+"/api/events?since=yesterday", readerToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, guard.CodeBadRequest, decode[guard.APIError](t, resp).Error.Code)
}

func TestDismiss(t *testing.T) {
	srv, _ := newTestServer(t, guardConfig(), nil)

	resp := do(t, http.MethodPost, srv.URL+"/api/suggestions/dismiss", writerToken, map[string]string{"type": "deploy"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/suggestions/dismiss", writerToken, map[string]string{"type": "commit"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Success    bool                   `json:"success"`
		Thresholds suggestions.Thresholds `json:"thresholds"`
	}](t, resp)
	assert.True(t, body.Success)
	assert.Equal(t, 10, body.Thresholds.Commit, "thresholds only widen in learning mode")
}

func TestRateLimitedResponse(t *testing.T) {
	cfg := guardConfig()
	cfg.RateLimit = guard.RateLimitConfig{
		Enabled: true, Window: time.Minute, MaxRequests: 2, By: guard.KeyByToken,
		ExemptPaths: []string{"/api/health"},
	}
	srv, _ := newTestServer(t, cfg, nil)

	for i := 0; i < 2; i++ {
		resp := do(t, http.MethodGet, srv.URL+"/api/suggestions", readerToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := do(t, http.MethodGet, srv.URL+"/api/suggestions", readerToken, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, guard.CodeRateLimited, decode[guard.APIError](t, resp).Error.Code)

	// a different principal has its own budget
	resp = do(t, http.MethodGet, srv.URL+"/api/suggestions", writerToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNilGuardIsOpen(t *testing.T) {
	p := newTestPipeline(t)
	srv := httptest.NewServer((&Server{Pipeline: p}).Handler())
	defer srv.Close()

	resp := do(t, http.MethodPost, srv.URL+"/api/conversation", "", map[string]string{"text": "sprint is done"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStreamOverWebsocket(t *testing.T) {
	srv, p := newTestServer(t, guardConfig(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream?types=suggestion."
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + readerToken}},
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	p.Conversation(context.Background(), "the build is broken")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "suggestion.fix", msg["event_type"])
	assert.Equal(t, "/work/app", msg["aggregate_id"])
}

func TestStreamRejectsMissingScope(t *testing.T) {
	srv, _ := newTestServer(t, guardConfig(), nil)
	resp := do(t, http.MethodGet, srv.URL+"/api/stream", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

type fakeWSWriter struct {
	messages [][]byte
}

func (f *fakeWSWriter) Write(_ context.Context, _ websocket.MessageType, data []byte) error {
	f.messages = append(f.messages, data)
	return nil
}

func TestStreamEventsWriter(t *testing.T) {
	ch := make(chan events.DomainEvent, 1)
	de, err := events.NewDomainEvent("/work/app", "milestone.sprint_complete", 1, map[string]interface{}{"title": "Sprint complete"})
	require.NoError(t, err)
	ch <- de

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	writer := &fakeWSWriter{}
	err = streamEvents(ctx, ch, writer)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, writer.messages, 1)
	assert.Contains(t, string(writer.messages[0]), `"event_type":"milestone.sprint_complete"`)
}

func TestWanted(t *testing.T) {
	assert.True(t, wanted(nil, "monitoring.bug_fixed"))
	assert.True(t, wanted([]string{"milestone.", "suggestion."}, "suggestion.pr"))
	assert.False(t, wanted([]string{"milestone."}, "monitoring.bug_fixed"))
	assert.Equal(t, []string{"a", "b"}, splitComma(" a, ,b "))
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.String()
}
