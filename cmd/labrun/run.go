package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/client"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/form"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/log"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/prompt"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/result"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/run"
)

// errRunFailed marks a run that reached the Error phase; the message has
// already been printed.
var errRunFailed = errors.New("protocol run failed")

type runOptions struct {
	params      []string
	paramsFile  string
	interactive bool
	expand      string
	output      string

	simulate     bool
	tickInterval time.Duration
	styled       bool
	logger       *log.Logger
	filler       *prompt.Filler
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [protocol-id]",
	Short: "Run a protocol",
	Long: `Run a protocol with parameters from --param, --params-file and, with
--interactive, terminal prompts. Parameters not given take their schema
defaults. Runs are simulated unless --simulate=false.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		opts := runOpts
		opts.simulate = e.cfg.Simulate
		opts.tickInterval = e.cfg.TickInterval
		opts.logger = e.logger
		opts.styled = term.IsTerminal(int(os.Stdout.Fd()))

		ctx, cancel := signalContext()
		defer cancel()
		return executeRun(ctx, e.client, args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func initRunFlags() {
	f := runCmd.Flags()
	f.StringArrayVarP(&runOpts.params, "param", "p", nil, "Set a parameter (name=value), repeatable")
	f.StringVar(&runOpts.paramsFile, "params-file", "", "Read parameters from a JSON or YAML file")
	f.BoolVarP(&runOpts.interactive, "interactive", "i", false, "Prompt for every parameter")
	f.StringVar(&runOpts.expand, "expand", "none", "Show command data: all, none or 1-based indices (1,3)")
	f.StringVarP(&runOpts.output, "output", "o", "text", "Output format: text or json")
}

// collectValues builds the submitted values: schema defaults, then the
// params file, then each --param assignment.
func collectValues(plan *form.Plan, opts runOptions) (form.Values, error) {
	values := plan.Defaults()
	if opts.paramsFile != "" {
		fileValues, err := form.LoadValuesFile(opts.paramsFile)
		if err != nil {
			return nil, err
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}
	for _, a := range opts.params {
		if err := plan.Assign(values, a); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// executeRun drives one protocol run through a run.Controller: progress is
// drawn on stderr and the result rendered on stdout. It returns
// errRunFailed when the run ends in Error.
func executeRun(ctx context.Context, svc client.Service, id string, opts runOptions, stdout, stderr io.Writer) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q: use text or json", opts.output)
	}
	p, err := lookupProtocol(ctx, svc, id)
	if err != nil {
		return err
	}
	plan := form.Interpret(p.ParamsSchema)
	values, err := collectValues(plan, opts)
	if err != nil {
		return err
	}
	if opts.interactive {
		filler := opts.filler
		if filler == nil {
			filler = prompt.NewFiller(nil)
		}
		if values, err = filler.Fill(ctx, plan, values); err != nil {
			return err
		}
	}
	if opts.logger == nil {
		opts.logger = log.Nop()
	}

	ctrl := run.New(p.ID, svc,
		run.WithContext(ctx),
		run.WithTickInterval(opts.tickInterval),
		run.WithSimulate(opts.simulate),
		run.WithLogger(opts.logger),
	)
	defer ctrl.Close()

	bar := newProgressLine(stderr)
	ctrl.OnChange(bar.Update)

	err = ctrl.SubmitForm(plan, values)
	var fe form.FieldErrors
	if errors.As(err, &fe) {
		fmt.Fprintf(stderr, "Invalid parameters for %s:\n", p.ID)
		for _, e := range fe {
			fmt.Fprintf(stderr, "  ✗ %s\n", e.Error())
		}
		return fmt.Errorf("%d invalid parameter(s)", len(fe))
	}
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		ctrl.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		bar.Finish()
		return ctx.Err()
	}
	bar.Finish()

	st := ctrl.State()
	if st.Phase == run.Error {
		fmt.Fprintf(stderr, "✗ Protocol failed: %s\n", st.ErrorMessage)
		return errRunFailed
	}

	if opts.output == "json" {
		return result.WriteJSON(stdout, st.Result)
	}
	exp, err := result.ParseExpansion(opts.expand, len(st.Result.Results))
	if err != nil {
		return err
	}
	return result.WriteText(stdout, result.Build(st.Result, exp), opts.styled)
}

// progressLine redraws a progress bar on one terminal line while a run is
// in flight.
type progressLine struct {
	mu       sync.Mutex
	w        io.Writer
	bar      progress.Model
	drawn    bool
	finished bool
}

func newProgressLine(w io.Writer) *progressLine {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40
	return &progressLine{w: w, bar: bar}
}

// Update is a run observer.
func (p *progressLine) Update(s run.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished || s.Phase == run.Idle {
		return
	}
	label := "Running..."
	if s.Simulate {
		label = "Simulating..."
	}
	fmt.Fprintf(p.w, "\r%s %s", p.bar.ViewAs(s.Progress/run.Complete), label)
	p.drawn = true
}

// Finish ends the progress line.
func (p *progressLine) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn && !p.finished {
		fmt.Fprintln(p.w)
	}
	p.finished = true
}
