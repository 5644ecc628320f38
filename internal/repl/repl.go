// Package repl is the interactive conversation shell. Plain lines are fed to
// the pipeline as conversation text; lines starting with "/" are commands.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/steveyegge/gitpulse/internal/config"
	"github.com/steveyegge/gitpulse/internal/pipeline"
	"github.com/steveyegge/gitpulse/internal/suggestions"
)

// errExit ends the loop without an error.
var errExit = errors.New("exit")

// REPL represents the interactive shell
type REPL struct {
	pipeline *pipeline.Pipeline
	applier  *suggestions.Applier
	style    config.NotificationStyle
	history  string
	out      io.Writer
	ctx      context.Context
	commands map[string]CommandHandler
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Pipeline *pipeline.Pipeline
	// Applier executes suggestions; nil disables /apply
	Applier *suggestions.Applier
	Style   config.NotificationStyle
	// HistoryFile persists input history; empty keeps it in memory
	HistoryFile string
	Out         io.Writer
}

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}

	style := cfg.Style
	if style == "" {
		style = config.NotifyMinimal
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	r := &REPL{
		pipeline: cfg.Pipeline,
		applier:  cfg.Applier,
		style:    style,
		history:  cfg.HistoryFile,
		out:      out,
		ctx:      context.Background(),
		commands: make(map[string]CommandHandler),
	}
	r.registerCommands()
	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("gitpulse> "),
		HistoryFile:       r.history,
		AutoComplete:      r.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdout:            r.out,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			} else if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		if err := r.processInput(line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
	}
}

// processInput processes a single line of input
func (r *REPL) processInput(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if line == "exit" || line == "quit" {
		return r.cmdExit(nil)
	}

	if strings.HasPrefix(line, "/") {
		parts := strings.Fields(strings.TrimPrefix(line, "/"))
		if len(parts) == 0 {
			return nil
		}
		handler, ok := r.commands[parts[0]]
		if !ok {
			return fmt.Errorf("unknown command /%s (try /help)", parts[0])
		}
		return handler(parts[1:])
	}

	res := r.pipeline.Conversation(r.ctx, line)
	if res.Empty() && r.style == config.NotifyDetailed {
		fmt.Fprintln(r.out, color.New(color.FgHiBlack).Sprint("  (nothing recognized)"))
	}
	PrintResult(r.out, res, r.style)
	return nil
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
	r.commands["status"] = r.cmdStatus
	r.commands["suggestions"] = r.cmdSuggestions
	r.commands["dismiss"] = r.cmdDismiss
	r.commands["apply"] = r.cmdApply
}

func (r *REPL) completer() *readline.PrefixCompleter {
	types := make([]readline.PrefixCompleterInterface, 0, len(suggestionTypeNames))
	for _, name := range suggestionTypeNames {
		types = append(types, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("/help"),
		readline.PcItem("/status"),
		readline.PcItem("/suggestions", types...),
		readline.PcItem("/dismiss", types...),
		readline.PcItem("/apply", types...),
		readline.PcItem("/exit"),
	)
}

// printWelcome prints the welcome message
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan("gitpulse conversation"))
	fmt.Fprintf(r.out, "Tracking %s\n\n", r.pipeline.Project())
	fmt.Fprintln(r.out, "Describe what you're working on. Type '/help' for commands, 'exit' to quit")
	fmt.Fprintln(r.out)
}

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"/help, /?", "Show this help message"},
		{"/status", "Show thresholds and the aggregation window"},
		{"/suggestions [type]", "List recent suggestions"},
		{"/dismiss <type>", "Reject suggestions of a type"},
		{"/apply <type>", "Apply the latest commit, branch or pr suggestion"},
		{"/exit, exit", "Exit the shell"},
	}
	for _, cmd := range commands {
		fmt.Fprintf(r.out, "  %-22s %s\n", green(cmd.name), cmd.desc)
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Anything else is tracked as conversation, e.g.:")
	fmt.Fprintln(r.out, "  'I finished the login feature'")
	fmt.Fprintln(r.out, "  'fixed the bug in auth.go'")
	fmt.Fprintln(r.out, "  'I'm stuck on the migration'")
	fmt.Fprintln(r.out)
	return nil
}

// cmdExit exits the REPL
func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s Goodbye!\n", green("✓"))
	return errExit
}
