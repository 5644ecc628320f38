package ai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/gitpulse/internal/suggestions"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func messageServer(t *testing.T, status int, text string, gotPrompt *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if gotPrompt != nil && len(body.Messages) > 0 && len(body.Messages[0].Content) > 0 {
			*gotPrompt = body.Messages[0].Content[0].Text
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            "msg_01",
			"type":          "message",
			"role":          "assistant",
			"model":         DefaultModel,
			"content":       []map[string]string{{"type": "text", "text": text}},
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"usage":         map[string]int{"input_tokens": 10, "output_tokens": 10},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestWriter(t *testing.T, srv *httptest.Server) *CommitWriter {
	t.Helper()
	w, err := NewCommitWriter(Config{APIKey: "test-key"}, discardLogger(),
		option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	require.NoError(t, err)
	return w
}

func TestCommitMessage(t *testing.T) {
	var prompt string
	srv := messageServer(t, http.StatusOK,
		"```json\n{\"subject\": \"feat(export): add CSV export\", \"body\": \"Adds the export command.\"}\n```", &prompt)

	msg, err := newTestWriter(t, srv).CommitMessage(context.Background(), suggestions.CommitRequest{
		Branch: "feature/export",
		Files:  []string{"cmd/export.go"},
		Notes:  []string{"Finished the export command"},
		Diff:   "+func export() {}",
	})
	require.NoError(t, err)
	assert.Equal(t, "feat(export): add CSV export\n\nAdds the export command.", msg)

	assert.Contains(t, prompt, "feature/export")
	assert.Contains(t, prompt, "- cmd/export.go")
	assert.Contains(t, prompt, "Finished the export command")
	assert.Contains(t, prompt, "+func export() {}")
}

func TestCommitMessageRejectsMissingSubject(t *testing.T) {
	srv := messageServer(t, http.StatusOK, `{"body": "no subject"}`, nil)
	_, err := newTestWriter(t, srv).CommitMessage(context.Background(), suggestions.CommitRequest{})
	assert.Error(t, err)
}

func TestCommitMessageAPIError(t *testing.T) {
	srv := messageServer(t, http.StatusBadRequest, "", nil)
	_, err := newTestWriter(t, srv).CommitMessage(context.Background(), suggestions.CommitRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate commit message")
}

func TestNewCommitWriterRequiresKey(t *testing.T) {
	_, err := NewCommitWriter(Config{}, nil)
	assert.Error(t, err)
}

func TestBuildPromptTruncatesDiff(t *testing.T) {
	prompt := buildPrompt(suggestions.CommitRequest{Diff: strings.Repeat("x", maxDiff+50)})
	assert.Contains(t, prompt, "...")
	assert.Contains(t, prompt, "(no files listed)")
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		fails bool
	}{
		{"plain", `{"subject":"fix: a"}`, "fix: a", false},
		{"fenced", "```json\n{\"subject\":\"fix: b\"}\n```", "fix: b", false},
		{"trailing comma", `{"subject":"fix: c",}`, "fix: c", false},
		{"prose", "Here you go:\n{\"subject\":\"fix: d\"}\nThanks", "fix: d", false},
		{"empty", "   ", "", true},
		{"garbage", "no json here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJSON[CommitMessageResponse](tt.input)
			if tt.fails {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Subject)
		})
	}
}
