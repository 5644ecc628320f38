// Package suggestions turns monitoring events and milestones into prioritized,
// actionable suggestions. Every suggestion carries a reason and the events
// that support it.
package suggestions

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/gitpulse/internal/events"
)

// Engine holds per-project suggestion state. Its methods are safe for
// concurrent use, though the pipeline feeds it from a single stream.
type Engine struct {
	mu sync.Mutex

	cfg    Config
	th     *thresholds
	now    func() time.Time
	logger *slog.Logger

	branch string
	// commitLevel is the priority of the last commit suggestion since the last commit
	commitLevel events.Priority
	features    []*events.MonitoringEvent
	bugfixes    []*events.MonitoringEvent
	// finished holds FEATURE_COMPLETE events per branch until a push turns them into a PR
	finished  map[string][]*events.MonitoringEvent
	llmErrors []*events.MonitoringEvent
	testsRed  bool
	latestTag string

	// openRelease is the release suggestion of the current release cycle.
	// Later release signals upgrade it instead of emitting another one.
	openRelease *events.MonitoringSuggestion
	// covered holds work events already named by a release suggestion since the last tag
	covered map[string]bool

	pending map[events.SuggestionType]time.Time
	history []*events.MonitoringSuggestion
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithInitialState seeds the current branch and known tags, e.g. from the first git snapshot.
func WithInitialState(branch string, tags []string) Option {
	return func(e *Engine) {
		e.branch = branch
		e.latestTag = LatestVersion(tags)
	}
}

// New creates an Engine. The configuration must be valid.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suggestion config: %w", err)
	}
	if len(cfg.MainBranches) == 0 {
		cfg.MainBranches = []string{"main", "master"}
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	e := &Engine{
		cfg:      cfg,
		th:       newThresholds(cfg),
		now:      time.Now,
		logger:   slog.Default(),
		finished: make(map[string][]*events.MonitoringEvent),
		covered:  make(map[string]bool),
		pending:  make(map[events.SuggestionType]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// OnEvent updates state with ev and returns any suggestions it triggers.
func (e *Engine) OnEvent(ev *events.MonitoringEvent) []*events.MonitoringSuggestion {
	if ev == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sweepIgnored()
	return e.finish(e.handleEvent(ev))
}

func (e *Engine) handleEvent(ev *events.MonitoringEvent) []*events.MonitoringSuggestion {
	switch ev.Type {
	case events.EventTypeUncommittedChanges:
		return e.onUncommitted(ev)

	case events.EventTypeCommitCreated, events.EventTypeMergeCompleted:
		e.commitLevel = ""
		e.acted(events.SuggestionCommit)

	case events.EventTypeFeatureComplete:
		e.features = append(e.features, ev)
		e.finished[e.branch] = append(e.finished[e.branch], ev)
		return e.checkRelease()

	case events.EventTypeBugFixed:
		e.bugfixes = append(e.bugfixes, ev)
		e.acted(events.SuggestionFix)
		return e.checkRelease()

	case events.EventTypeTestsFailing:
		if e.testsRed {
			return nil
		}
		e.testsRed = true
		return e.one(events.SuggestionFix, events.PriorityHigh,
			"Tests are failing",
			"run the test suite and fix the failures before continuing",
			"a test run failed", ev)

	case events.EventTypeTestsPassing:
		e.testsRed = false
		e.acted(events.SuggestionFix)

	case events.EventTypeBugFound:
		return e.one(events.SuggestionFix, events.PriorityMedium,
			"A bug was reported",
			"",
			fmt.Sprintf("bug reported: %s", describe(ev)), ev)

	case events.EventTypeFeatureStarted:
		if !slices.Contains(e.cfg.MainBranches, e.branch) {
			return nil
		}
		name := "feature/" + slug(subject(ev))
		return e.one(events.SuggestionBranch, events.PriorityMedium,
			fmt.Sprintf("Start this feature on its own branch instead of %s", e.branch),
			"git checkout -b "+name,
			fmt.Sprintf("feature work started while on %s", e.branch), ev)

	case events.EventTypeBranchCreated:
		e.acted(events.SuggestionBranch)

	case events.EventTypeBranchSwitched:
		if data, err := ev.GetBranchData(); err == nil && data.BranchName != "" {
			e.branch = data.BranchName
		}

	case events.EventTypePushCompleted:
		return e.onPush(ev)

	case events.EventTypeTagCreated:
		if data, err := ev.GetTagData(); err == nil {
			if latest := LatestVersion([]string{e.latestTag, data.Tag}); latest != "" {
				e.latestTag = latest
			}
		}
		e.features, e.bugfixes = nil, nil
		e.openRelease = nil
		clear(e.covered)
		e.acted(events.SuggestionRelease)

	case events.EventTypeHelpNeeded:
		return e.one(events.SuggestionHelp, events.PriorityHigh,
			"You seem stuck: consider asking for a second pair of eyes",
			"",
			fmt.Sprintf("help requested: %s", describe(ev)), ev)

	case events.EventTypeLLMError:
		e.llmErrors = append(e.llmErrors, ev)
		if len(e.llmErrors) < e.th.help {
			return nil
		}
		related := e.llmErrors
		e.llmErrors = nil
		return e.one(events.SuggestionHelp, scalePriority(len(related), e.th.help),
			fmt.Sprintf("The assistant hit %d errors in a row", len(related)),
			"review the assistant's recent errors and adjust the task",
			fmt.Sprintf("%d assistant errors (threshold %d)", len(related), e.th.help), related...)

	case events.EventTypeLLMTaskCompleted:
		e.llmErrors = nil
		e.acted(events.SuggestionHelp)
	}
	return nil
}

func (e *Engine) onUncommitted(ev *events.MonitoringEvent) []*events.MonitoringSuggestion {
	data, err := ev.GetUncommittedChangesData()
	if err != nil {
		e.logger.Warn("malformed uncommitted changes event", slog.String("error", err.Error()))
		return nil
	}
	if data.Count == 0 {
		e.commitLevel = ""
		return nil
	}
	if data.Count < e.th.commit {
		return nil
	}

	priority := scalePriority(data.Count, e.th.commit)
	if priority.Rank() <= e.commitLevel.Rank() {
		return nil
	}
	e.commitLevel = priority
	return e.one(events.SuggestionCommit, priority,
		fmt.Sprintf("You have %d uncommitted changes", data.Count),
		"git add -A && git commit",
		fmt.Sprintf("%d uncommitted changes (threshold %d)", data.Count, e.th.commit), ev)
}

// checkRelease emits a threshold-driven release suggestion once per batch of work.
func (e *Engine) checkRelease() []*events.MonitoringSuggestion {
	nf, nb := len(e.features), len(e.bugfixes)
	if nf < e.th.releaseFeatures || nb < e.th.releaseBugfixes {
		return nil
	}

	priority := scalePriority(nf, e.th.releaseFeatures)
	if e.th.releaseBugfixes > 0 && nb <= 2*e.th.releaseBugfixes {
		priority = events.PriorityMedium
	}
	related := slices.Concat(e.features, e.bugfixes)

	return e.release(priority,
		fmt.Sprintf("%d features and %d bug fixes since the last release (threshold %d/%d)",
			nf, nb, e.th.releaseFeatures, e.th.releaseBugfixes),
		related)
}

// release emits the release suggestion for related, once per release cycle.
// While a release suggestion is open, new work or a higher priority upgrades
// it: the same suggestion ID is re-emitted with the merged evidence. Signals
// that add neither are dropped.
func (e *Engine) release(priority events.Priority, reason string, related []*events.MonitoringEvent) []*events.MonitoringSuggestion {
	fresh := slices.ContainsFunc(related, func(ev *events.MonitoringEvent) bool {
		return isWork(ev) && !e.covered[ev.ID]
	})

	open := e.openRelease
	if open != nil {
		if !fresh && priority.Rank() <= open.Priority.Rank() {
			return nil
		}
		if open.Priority.Rank() > priority.Rank() {
			priority = open.Priority
		}
		related = mergeEvents(open.RelatedEvents, related)
	} else if !fresh {
		return nil
	}
	e.cover(related)

	slices.SortStableFunc(related, func(a, b *events.MonitoringEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	next := NextVersion(e.latestTag, slices.ContainsFunc(related, func(ev *events.MonitoringEvent) bool {
		return ev.Type == events.EventTypeFeatureComplete
	}))
	out := e.one(events.SuggestionRelease, priority,
		fmt.Sprintf("Consider releasing %s", next),
		fmt.Sprintf("git tag %s && git push origin %s", next, next),
		reason, related...)
	if open != nil && len(out) > 0 {
		out[0].ID = open.ID
	}
	return out
}

// cover marks the work in used as suggested and drops it from the release counters.
func (e *Engine) cover(used []*events.MonitoringEvent) {
	for _, ev := range used {
		if isWork(ev) {
			e.covered[ev.ID] = true
		}
	}
	keep := func(list []*events.MonitoringEvent) []*events.MonitoringEvent {
		return slices.DeleteFunc(list, func(ev *events.MonitoringEvent) bool { return e.covered[ev.ID] })
	}
	e.features = keep(e.features)
	e.bugfixes = keep(e.bugfixes)
}

func isWork(ev *events.MonitoringEvent) bool {
	return ev.Type == events.EventTypeFeatureComplete || ev.Type == events.EventTypeBugFixed
}

// mergeEvents returns base followed by the events of extra not already in base.
func mergeEvents(base, extra []*events.MonitoringEvent) []*events.MonitoringEvent {
	seen := make(map[string]bool, len(base))
	out := make([]*events.MonitoringEvent, 0, len(base)+len(extra))
	for _, ev := range base {
		seen[ev.ID] = true
		out = append(out, ev)
	}
	for _, ev := range extra {
		if !seen[ev.ID] {
			seen[ev.ID] = true
			out = append(out, ev)
		}
	}
	return out
}

func (e *Engine) onPush(ev *events.MonitoringEvent) []*events.MonitoringSuggestion {
	data, err := ev.GetPushData()
	if err != nil || data.Branch == "" {
		return nil
	}
	if slices.Contains(e.cfg.MainBranches, data.Branch) {
		return nil
	}
	done := e.finished[data.Branch]
	if len(done) == 0 {
		return nil
	}
	delete(e.finished, data.Branch)

	return e.one(events.SuggestionPR, events.PriorityMedium,
		fmt.Sprintf("Open a pull request for %s", data.Branch),
		fmt.Sprintf("gh pr create --head %s --fill", data.Branch),
		fmt.Sprintf("%d completed features pushed on %s", len(done), data.Branch),
		append(slices.Clone(done), ev)...)
}

// OnMilestone returns the suggestions a milestone implies. Milestone-derived
// suggestions are high priority and carry the milestone's events.
func (e *Engine) OnMilestone(ms *events.AggregatedMilestone) []*events.MonitoringSuggestion {
	if ms == nil || len(ms.Events) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sweepIgnored()

	var out []*events.MonitoringSuggestion
	switch ms.Type {
	case events.MilestoneFeatureShipped, events.MilestoneReleaseReady:
		out = e.release(events.PriorityHigh, milestoneReason(ms), slices.Clone(ms.Events))

	case events.MilestoneSprintComplete:
		out = e.one(events.SuggestionPR, events.PriorityHigh,
			"Sprint complete: open a pull request to review the sprint's work",
			"gh pr create --fill",
			milestoneReason(ms), ms.Events...)

	case events.MilestoneMajorRefactor:
		out = e.one(events.SuggestionPR, events.PriorityHigh,
			"Major refactor finished: get it reviewed before building on it",
			"gh pr create --fill",
			milestoneReason(ms), ms.Events...)
	}
	return e.finish(out)
}

// one builds a single suggestion. Suggestions without evidence are never built.
func (e *Engine) one(t events.SuggestionType, p events.Priority, message, action, reason string, related ...*events.MonitoringEvent) []*events.MonitoringSuggestion {
	if len(related) == 0 {
		return nil
	}
	evs := make([]*events.MonitoringEvent, len(related))
	for i, ev := range related {
		evs[i] = ev.Clone()
	}
	return []*events.MonitoringSuggestion{{
		ID:            uuid.New().String(),
		Type:          t,
		Priority:      p,
		Message:       message,
		Action:        action,
		Reason:        reason,
		ProjectPath:   related[0].ProjectPath,
		Timestamp:     e.now(),
		RelatedEvents: evs,
	}}
}

// finish records emitted suggestions and applies the auto_suggestions switch.
func (e *Engine) finish(out []*events.MonitoringSuggestion) []*events.MonitoringSuggestion {
	if !e.cfg.AutoSuggestions || len(out) == 0 {
		return nil
	}
	for _, s := range out {
		e.pending[s.Type] = s.Timestamp
		if s.Type == events.SuggestionRelease {
			e.openRelease = s
		}
		// an upgraded suggestion replaces its earlier version
		if i := slices.IndexFunc(e.history, func(h *events.MonitoringSuggestion) bool { return h.ID == s.ID }); i >= 0 {
			e.history[i] = s
			continue
		}
		e.history = append(e.history, s)
		e.logger.Debug("suggestion emitted",
			slog.String("type", string(s.Type)),
			slog.String("priority", string(s.Priority)))
	}
	if over := len(e.history) - e.cfg.HistorySize; over > 0 {
		e.history = slices.Delete(e.history, 0, over)
	}
	return out
}

// acted clears the pending mark of a suggestion the developer followed.
func (e *Engine) acted(t events.SuggestionType) {
	delete(e.pending, t)
}

// sweepIgnored treats suggestions left pending past IgnoreAfter as dismissed.
func (e *Engine) sweepIgnored() {
	if !e.cfg.LearningMode {
		return
	}
	now := e.now()
	for t, at := range e.pending {
		if now.Sub(at) < e.cfg.IgnoreAfter {
			continue
		}
		delete(e.pending, t)
		if e.th.widen(t) {
			e.logger.Info("suggestion ignored, threshold widened",
				slog.String("type", string(t)))
		}
	}
}

// Dismiss records that the developer rejected suggestions of type t. In
// learning mode the threshold behind t widens. Returns the live thresholds.
func (e *Engine) Dismiss(t events.SuggestionType) Thresholds {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.pending, t)
	if t == events.SuggestionRelease {
		e.openRelease = nil
	}
	if e.cfg.LearningMode && e.th.widen(t) {
		e.logger.Info("suggestion dismissed, threshold widened", slog.String("type", string(t)))
	}
	return e.th.view()
}

// Thresholds returns the live thresholds.
func (e *Engine) Thresholds() Thresholds {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.th.view()
}

// Recent returns up to limit of the most recent suggestions, oldest first,
// optionally filtered by type. limit <= 0 means all retained.
func (e *Engine) Recent(t events.SuggestionType, limit int) []*events.MonitoringSuggestion {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*events.MonitoringSuggestion
	for _, s := range e.history {
		if t == "" || s.Type == t {
			out = append(out, s)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return slices.Clone(out)
}

// LatestTag returns the highest semver tag observed.
func (e *Engine) LatestTag() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latestTag
}

func milestoneReason(ms *events.AggregatedMilestone) string {
	if ms.Description == "" {
		return fmt.Sprintf("milestone %s reached", ms.Type)
	}
	return fmt.Sprintf("milestone %s: %s", ms.Type, ms.Description)
}

func describe(ev *events.MonitoringEvent) string {
	if text := ev.StringField("text"); text != "" {
		return text
	}
	return string(ev.Type)
}

func subject(ev *events.MonitoringEvent) string {
	if s := ev.StringField("subject"); s != "" {
		return s
	}
	return "new-feature"
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "new-feature"
	}
	return s
}
