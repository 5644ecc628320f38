package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	// Matches ```json\n{...}\n```, ```{...}```, ``` json{...}``` anywhere in the text
	codeFenceRegex = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)

	// Greedy, to capture nested structures
	objectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
)

// parseJSON decodes an LLM response into T, tolerating code fences,
// trailing commas and prose around the object.
func parseJSON[T any](text string) (T, error) {
	var zero T
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return zero, fmt.Errorf("empty response")
	}

	candidates := []string{trimmed}
	if m := codeFenceRegex.FindStringSubmatch(trimmed); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	last := candidates[len(candidates)-1]
	candidates = append(candidates, trailingCommaRegex.ReplaceAllString(last, "$1"))
	if obj := objectRegex.FindString(last); obj != "" {
		candidates = append(candidates, trailingCommaRegex.ReplaceAllString(obj, "$1"))
	}

	var err error
	for _, c := range candidates {
		var out T
		if err = json.Unmarshal([]byte(c), &out); err == nil {
			return out, nil
		}
	}
	return zero, fmt.Errorf("no JSON object in response (%s): %w", truncate(text, 100), err)
}

// truncate truncates a string to maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
