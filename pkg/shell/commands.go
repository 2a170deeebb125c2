package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/catalog"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/client"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/form"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/result"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/run"
)

var errNoProtocol = errors.New("no protocol selected; use 'use <id>' first")

// refresh reloads the protocol listing.
func (s *Shell) refresh(ctx context.Context) error {
	ps, err := s.service.ListProtocols(ctx)
	if err != nil {
		return err
	}
	s.protocols = ps
	return nil
}

// handleList prints the catalog, optionally narrowed by a search term.
func (s *Shell) handleList(ctx context.Context, args []string) error {
	if err := s.refresh(ctx); err != nil {
		return err
	}
	ps := catalog.Search(s.protocols, catalog.Query{Text: strings.Join(args, " ")})
	if len(ps) == 0 {
		fmt.Fprintln(s.output, "No protocols match.")
		return nil
	}
	return catalog.WriteTable(s.output, ps)
}

// handleUse selects a protocol and starts a fresh run controller for it.
func (s *Shell) handleUse(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(s.output, "Usage: use <protocol-id>")
		return nil
	}
	p, err := s.service.GetProtocol(ctx, args[0])
	if errors.Is(err, client.ErrNotFound) {
		if hint := catalog.Suggest(args[0], s.protocols, 1); len(hint) > 0 {
			return fmt.Errorf("%w (did you mean %q?)", err, hint[0])
		}
	}
	if err != nil {
		return err
	}

	s.Close()
	s.current = p
	s.plan = form.Interpret(p.ParamsSchema)
	s.values = s.plan.Defaults()
	s.ctrl = run.New(p.ID, s.service,
		run.WithTickInterval(s.interval),
		run.WithSimulate(s.simulate),
		run.WithLogger(s.logger),
	)

	fmt.Fprintf(s.output, "%s [%s]\n", p.Name, p.ID)
	if len(p.Tags) > 0 {
		fmt.Fprintf(s.output, "  tags: %s\n", strings.Join(p.Tags, ", "))
	}
	if d := strings.TrimSpace(p.Description); d != "" {
		fmt.Fprintf(s.output, "  %s\n", strings.ReplaceAll(d, "\n", "\n  "))
	}
	fmt.Fprintln(s.output)
	s.handleParams()
	return nil
}

// handleParams lists the form fields with their current values and
// validation state.
func (s *Shell) handleParams() {
	if s.plan == nil {
		fmt.Fprintln(s.output, errNoProtocol)
		return
	}
	if s.plan.Len() == 0 {
		fmt.Fprintln(s.output, "This protocol takes no parameters.")
		return
	}
	errs := s.plan.Validate(s.values)
	for _, f := range s.plan.Fields {
		mark := " "
		if f.Required {
			mark = "*"
		}
		value := "(unset)"
		if v, ok := s.values[f.Name]; ok {
			value = form.FormatValue(v)
		}
		fmt.Fprintf(s.output, "  %s %-20s %-8s = %s\n", mark, f.Name, f.Control.Kind, value)
		if len(f.Control.Options) > 0 {
			fmt.Fprintf(s.output, "       options: %s\n", strings.Join(f.Control.Options, ", "))
		}
		if fe, ok := errs.For(f.Name); ok {
			fmt.Fprintf(s.output, "       ✗ %s\n", fe.Message)
		}
	}
}

// handleSet applies "name=value" or "name value".
func (s *Shell) handleSet(arg string) error {
	if s.plan == nil {
		return errNoProtocol
	}
	if arg == "" {
		fmt.Fprintln(s.output, "Usage: set <name>=<value>")
		return nil
	}
	if !strings.Contains(arg, "=") {
		name, value, _ := strings.Cut(arg, " ")
		arg = name + "=" + strings.TrimSpace(value)
	}
	if err := s.plan.Assign(s.values, arg); err != nil {
		return err
	}
	name, _, _ := form.ParseAssignment(arg)
	if v, ok := s.values[name]; ok {
		fmt.Fprintf(s.output, "  %s = %s\n", name, form.FormatValue(v))
	} else {
		fmt.Fprintf(s.output, "  %s unset\n", name)
	}
	return nil
}

func (s *Shell) handleUnset(args []string) error {
	if s.plan == nil {
		return errNoProtocol
	}
	for _, name := range args {
		if _, ok := s.plan.Field(name); !ok {
			return fmt.Errorf("%w %q", form.ErrUnknownField, name)
		}
		delete(s.values, name)
		fmt.Fprintf(s.output, "  %s unset\n", name)
	}
	return nil
}

func (s *Shell) handleSimulate(args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(s.output, "Usage: simulate on|off")
		return nil
	}
	on, err := parseSwitch(args[0])
	if err != nil {
		return err
	}
	s.simulate = on
	if s.ctrl != nil {
		if err := s.ctrl.SetSimulate(on); err != nil {
			return err
		}
	}
	fmt.Fprintf(s.output, "  %s\n", run.SimulateDescription(on))
	return nil
}

func parseSwitch(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch %q: want on or off", arg)
}

// handleRun submits the form and blocks until the run finishes.
func (s *Shell) handleRun(ctx context.Context) error {
	if s.ctrl == nil {
		return errNoProtocol
	}
	err := s.ctrl.SubmitForm(s.plan, s.values)
	var fe form.FieldErrors
	if errors.As(err, &fe) {
		fmt.Fprintln(s.output, "Cannot run: invalid parameters")
		for _, e := range fe {
			fmt.Fprintf(s.output, "  ✗ %s\n", e.Error())
		}
		return nil
	}
	if err != nil {
		return err
	}

	mode := "simulation"
	if !s.ctrl.State().Simulate {
		mode = "hardware"
	}
	fmt.Fprintf(s.output, "Running %s (%s)...\n", s.current.ID, mode)

	finished := make(chan struct{})
	ctrl := s.ctrl
	go func() {
		ctrl.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.printOutcome(s.ctrl.State())
	return nil
}

func (s *Shell) printOutcome(st run.State) {
	switch st.Phase {
	case run.Error:
		fmt.Fprintf(s.output, "✗ Protocol failed: %s\n", st.ErrorMessage)
	case run.Success:
		fmt.Fprintln(s.output, "✓ Protocol completed")
		_ = result.WriteText(s.output, st.View(), false)
	}
}

// handleExpand toggles command data by 1-based index, or sets all/none.
func (s *Shell) handleExpand(args []string) error {
	if s.ctrl == nil {
		return errNoProtocol
	}
	st := s.ctrl.State()
	if st.Phase != run.Success {
		return errors.New("no result to expand")
	}
	if len(args) != 1 {
		fmt.Fprintln(s.output, "Usage: expand <n>|all|none")
		return nil
	}

	n := len(st.Result.Results)
	var targets []int
	switch strings.ToLower(args[0]) {
	case "all", "none":
		want, _ := result.ParseExpansion(args[0], n)
		for i := range n {
			if st.Expansion.IsExpanded(i) != want.IsExpanded(i) {
				targets = append(targets, i)
			}
		}
	default:
		i, err := strconv.Atoi(args[0])
		if err != nil || i < 1 || i > n {
			return fmt.Errorf("invalid command index %q: want 1..%d", args[0], n)
		}
		targets = append(targets, i-1)
	}
	for _, i := range targets {
		if err := s.ctrl.ToggleExpanded(i); err != nil {
			return err
		}
	}
	return result.WriteText(s.output, s.ctrl.State().View(), false)
}

func (s *Shell) handleReset() error {
	if s.ctrl == nil {
		return errNoProtocol
	}
	if err := s.ctrl.Reset(); err != nil {
		return err
	}
	fmt.Fprintln(s.output, "  Ready.")
	return nil
}

// handleHelp displays available commands.
func (s *Shell) handleHelp() {
	fmt.Fprintln(s.output, "Available commands:")
	fmt.Fprintln(s.output, "  list [text] (ls)    List protocols, optionally filtered")
	fmt.Fprintln(s.output, "  use <id>            Select a protocol and show its parameters")
	fmt.Fprintln(s.output, "  params (p)          Show parameter values and validation")
	fmt.Fprintln(s.output, "  set <name>=<value>  Set a parameter; an empty value unsets it")
	fmt.Fprintln(s.output, "  unset <name>...     Clear parameters")
	fmt.Fprintln(s.output, "  simulate on|off     Choose simulation or hardware")
	fmt.Fprintln(s.output, "  run (r)             Run the selected protocol")
	fmt.Fprintln(s.output, "  expand <n>|all|none Show or hide command data")
	fmt.Fprintln(s.output, "  reset               Clear the last result")
	fmt.Fprintln(s.output, "  help (?)            Show this help")
	fmt.Fprintln(s.output, "  quit (q)            Exit the shell")
}
