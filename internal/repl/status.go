package repl

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/suggestions"
)

var suggestionTypeNames = func() []string {
	var names []string
	for _, t := range events.AllSuggestionTypes() {
		names = append(names, string(t))
	}
	return names
}()

// cmdStatus shows the live thresholds and aggregation window
func (r *REPL) cmdStatus(args []string) error {
	engine := r.pipeline.Engine()
	agg := r.pipeline.Aggregator()
	th := engine.Thresholds()

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Project Status"))
	fmt.Fprintf(r.out, "  %s  %s\n", green("Project"), r.pipeline.Project())
	fmt.Fprintf(r.out, "  %s  %d events in the last %v\n", green("Window"), len(agg.Window()), agg.Config().Window)
	if tag := engine.LatestTag(); tag != "" {
		fmt.Fprintf(r.out, "  %s  %s\n", green("Latest tag"), tag)
	}

	fmt.Fprintf(r.out, "\n%s\n", cyan("Thresholds"))
	fmt.Fprintf(r.out, "  commit after %d uncommitted files\n", th.Commit)
	fmt.Fprintf(r.out, "  release after %d features or %d bug fixes\n", th.ReleaseFeatures, th.ReleaseBugfixes)
	fmt.Fprintf(r.out, "  help after %d errors\n", th.Help)
	fmt.Fprintln(r.out)
	return nil
}

// cmdSuggestions lists recent suggestions, optionally of one type
func (r *REPL) cmdSuggestions(args []string) error {
	var t events.SuggestionType
	if len(args) > 0 {
		var err error
		if t, err = parseSuggestionType(args[0]); err != nil {
			return err
		}
	}

	recent := r.pipeline.Engine().Recent(t, 10)
	if len(recent) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(r.out, "%s No suggestions yet\n", yellow("✨"))
		return nil
	}
	for _, s := range recent {
		PrintSuggestion(r.out, s)
	}
	return nil
}

// cmdDismiss records that suggestions of a type were rejected
func (r *REPL) cmdDismiss(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: /dismiss <type>")
	}
	t, err := parseSuggestionType(args[0])
	if err != nil {
		return err
	}

	th := r.pipeline.Engine().Dismiss(t)
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "%s Dismissed %s suggestions (commit threshold %d, release %d/%d, help %d)\n",
		green("✓"), t, th.Commit, th.ReleaseFeatures, th.ReleaseBugfixes, th.Help)
	return nil
}

// cmdApply applies the most recent suggestion of a type
func (r *REPL) cmdApply(args []string) error {
	if r.applier == nil {
		return fmt.Errorf("apply is unavailable without a git repository")
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: /apply <commit|branch|pr>")
	}
	t, err := parseSuggestionType(args[0])
	if err != nil {
		return err
	}

	recent := r.pipeline.Engine().Recent(t, 1)
	if len(recent) == 0 {
		return fmt.Errorf("no %s suggestion to apply", t)
	}

	res, err := r.applier.Apply(r.ctx, recent[0])
	if err != nil {
		return err
	}
	printApplied(r, res)
	return nil
}

func printApplied(r *REPL, res *suggestions.ApplyResult) {
	green := color.New(color.FgGreen).SprintFunc()
	switch res.Suggestion.Type {
	case events.SuggestionCommit:
		fmt.Fprintf(r.out, "%s Committed %s on %s\n", green("✓"), shortHash(res.Commit), res.Branch)
		fmt.Fprintf(r.out, "  %s\n", truncateString(res.Message, 76))
	case events.SuggestionBranch:
		fmt.Fprintf(r.out, "%s Created branch %s\n", green("✓"), res.Branch)
	default:
		fmt.Fprintf(r.out, "%s Pushed %s\n", green("✓"), res.Branch)
	}
}

func parseSuggestionType(s string) (events.SuggestionType, error) {
	for _, t := range events.AllSuggestionTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown suggestion type %q", s)
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
