package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/steveyegge/gitpulse/internal/suggestions"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "claude-sonnet-4-5-20250929"

// maxDiff bounds the diff sent in a prompt.
const maxDiff = 10000

// Config configures the commit message writer.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Retry     RetryConfig
}

// CommitMessageResponse is the JSON the model is asked to return.
type CommitMessageResponse struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Reasoning string `json:"reasoning,omitempty"`
}

// Message joins subject and body into a git commit message.
func (r CommitMessageResponse) Message() string {
	subject := strings.TrimSpace(r.Subject)
	body := strings.TrimSpace(r.Body)
	if body == "" {
		return subject
	}
	return subject + "\n\n" + body
}

// CommitWriter generates conventional commit messages. It implements
// suggestions.MessageWriter.
type CommitWriter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	retry     *retrier
	logger    *slog.Logger
}

var _ suggestions.MessageWriter = (*CommitWriter)(nil)

// NewCommitWriter creates a writer. Extra request options are passed to the
// Anthropic client, e.g. option.WithBaseURL.
func NewCommitWriter(cfg Config, logger *slog.Logger, opts ...option.RequestOption) (*CommitWriter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for AI commit messages")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Retry.BackoffMultiplier == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)...)
	return &CommitWriter{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		retry:     newRetrier(cfg.Retry, logger),
		logger:    logger,
	}, nil
}

// CommitMessage asks the model for a commit message describing req.
func (w *CommitWriter) CommitMessage(ctx context.Context, req suggestions.CommitRequest) (string, error) {
	prompt := buildPrompt(req)

	var response *anthropic.Message
	err := w.retry.retryWithBackoff(ctx, "commit-message", func(attemptCtx context.Context) error {
		resp, apiErr := w.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(w.model),
			MaxTokens: w.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate commit message: %w", err)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	parsed, err := parseJSON[CommitMessageResponse](text.String())
	if err != nil {
		return "", fmt.Errorf("failed to parse commit message response: %w", err)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return "", fmt.Errorf("commit message response has no subject")
	}
	w.logger.Debug("commit message generated", slog.String("subject", parsed.Subject))
	return parsed.Message(), nil
}

func buildPrompt(req suggestions.CommitRequest) string {
	var prompt strings.Builder

	prompt.WriteString("You write commit messages for a developer's working tree.\n\n")
	prompt.WriteString("Generate a clear, concise commit message following conventional commits format.\n\n")

	if req.Branch != "" {
		fmt.Fprintf(&prompt, "**Branch**: %s\n\n", req.Branch)
	}

	if len(req.Notes) > 0 {
		prompt.WriteString("## Recent Activity\n\n")
		for _, n := range req.Notes {
			fmt.Fprintf(&prompt, "- %s\n", n)
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Changed Files\n\n")
	if len(req.Files) > 0 {
		for _, f := range req.Files {
			fmt.Fprintf(&prompt, "- %s\n", f)
		}
	} else {
		prompt.WriteString("(no files listed)\n")
	}
	prompt.WriteString("\n")

	if req.Diff != "" {
		prompt.WriteString("## Diff\n\n```diff\n")
		prompt.WriteString(truncate(req.Diff, maxDiff))
		prompt.WriteString("\n```\n\n")
	}

	prompt.WriteString("## Instructions\n\n")
	prompt.WriteString("1. **Subject**: one line, 50 chars max, format `type(scope): description`\n")
	prompt.WriteString("   - Types: feat, fix, docs, refactor, test, chore\n")
	prompt.WriteString("2. **Body**: what changed and why, wrapped at 72 chars\n")
	prompt.WriteString("Use imperative mood: 'add feature' not 'added feature'.\n\n")

	prompt.WriteString("Respond with JSON:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"subject\": \"feat(scope): concise description\",\n")
	prompt.WriteString("  \"body\": \"Detailed explanation of changes.\",\n")
	prompt.WriteString("  \"reasoning\": \"Why I chose this message\"\n")
	prompt.WriteString("}\n")
	prompt.WriteString("```\n")

	return prompt.String()
}
