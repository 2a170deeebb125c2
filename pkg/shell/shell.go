// Package shell implements the interactive line-mode console for browsing
// the catalog and running protocols.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/client"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/form"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/log"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/run"
)

// Shell is a readline console over one catalog and execution service.
type Shell struct {
	service  client.Service
	output   io.Writer
	logger   *log.Logger
	interval time.Duration
	simulate bool

	protocols []protocol.Protocol

	// Selected protocol. ctrl is nil until a protocol is in use.
	current *protocol.Protocol
	plan    *form.Plan
	values  form.Values
	ctrl    *run.Controller
}

// Option configures a Shell.
type Option func(*Shell)

// WithOutput redirects command output. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Shell) { s.output = w }
}

// WithLogger sets the logger handed to run controllers.
func WithLogger(l *log.Logger) Option {
	return func(s *Shell) { s.logger = l }
}

// WithTickInterval sets the progress cadence of runs.
func WithTickInterval(d time.Duration) Option {
	return func(s *Shell) { s.interval = d }
}

// WithSimulate sets the initial simulate flag for new protocols.
func WithSimulate(simulate bool) Option {
	return func(s *Shell) { s.simulate = simulate }
}

// New creates a shell over svc.
func New(svc client.Service, opts ...Option) *Shell {
	s := &Shell{
		service:  svc,
		output:   os.Stdout,
		logger:   log.Nop(),
		simulate: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close releases the active run controller.
func (s *Shell) Close() {
	if s.ctrl != nil {
		s.ctrl.Close()
	}
}

// Run starts the interactive REPL loop.
func (s *Shell) Run(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil {
		fmt.Fprintf(s.output, "Warning: %v\n", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.buildPrompt(),
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()
	defer s.Close()

	fmt.Fprintf(s.output, "labrun shell: %d protocols\n", len(s.protocols))
	fmt.Fprintf(s.output, "Type 'help' for available commands, 'use <id>' to select a protocol.\n\n")

	for {
		rl.SetPrompt(s.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if s.Exec(ctx, line) {
			return nil
		}
	}
}

// Exec runs one command line and reports whether the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string) (quit bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	args := parts[1:]

	var err error
	switch parts[0] {
	case "list", "ls":
		err = s.handleList(ctx, args)
	case "use", "show":
		err = s.handleUse(ctx, args)
	case "params", "p":
		s.handleParams()
	case "set":
		err = s.handleSet(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), parts[0])))
	case "unset":
		err = s.handleUnset(args)
	case "simulate":
		err = s.handleSimulate(args)
	case "run", "r":
		err = s.handleRun(ctx)
	case "expand", "x":
		err = s.handleExpand(args)
	case "reset":
		err = s.handleReset()
	case "help", "?":
		s.handleHelp()
	case "quit", "q", "exit":
		fmt.Fprintln(s.output, "Bye.")
		return true
	default:
		fmt.Fprintf(s.output, "Unknown command: %q. Type 'help' for available commands.\n", parts[0])
	}
	if err != nil {
		fmt.Fprintf(s.output, "Error: %v\n", err)
	}
	return false
}

// buildPrompt creates the prompt string: labrun[protocol | phase]>
func (s *Shell) buildPrompt() string {
	if s.current == nil {
		return "labrun> "
	}
	st := s.ctrl.State()
	mode := "sim"
	if !st.Simulate {
		mode = "hw"
	}
	return fmt.Sprintf("labrun[%s | %s | %s]> ", s.current.ID, st.Phase, mode)
}

func (s *Shell) completer() *readline.PrefixCompleter {
	ids := func(string) []string {
		out := make([]string, len(s.protocols))
		for i, p := range s.protocols {
			out[i] = p.ID
		}
		return out
	}
	fields := func(string) []string {
		if s.plan == nil {
			return nil
		}
		return s.plan.Names()
	}
	assignments := func(string) []string {
		names := fields("")
		for i, n := range names {
			names[i] = n + "="
		}
		return names
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("list"),
		readline.PcItem("use", readline.PcItemDynamic(ids)),
		readline.PcItem("show", readline.PcItemDynamic(ids)),
		readline.PcItem("params"),
		readline.PcItem("set", readline.PcItemDynamic(assignments)),
		readline.PcItem("unset", readline.PcItemDynamic(fields)),
		readline.PcItem("simulate", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("run"),
		readline.PcItem("expand", readline.PcItem("all"), readline.PcItem("none")),
		readline.PcItem("reset"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}
