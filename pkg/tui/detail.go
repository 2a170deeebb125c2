package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/form"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/result"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/run"
)

// runner is the part of run.Controller the detail panel drives.
type runner interface {
	State() run.State
	SubmitForm(plan *form.Plan, values form.Values) error
	SetSimulate(simulate bool) error
	Reset() error
	ToggleExpanded(i int) error
	Close()
}

// fieldEditor holds the editing widget for one form field. Text, number
// and list controls edit through a text input; the others are driven by
// keys directly.
type fieldEditor struct {
	field    form.Field
	input    textinput.Model
	usesText bool
	parseErr string
}

// detailPanel shows one protocol: its description, the parameter form and
// the run panel.
type detailPanel struct {
	protocol    protocol.Protocol
	plan        *form.Plan
	values      form.Values
	editors     []fieldEditor
	description string

	ctrl  runner
	state run.State
	bar   progress.Model

	focus        int // fields, then simulate, run button, results
	resultCursor int
	showErrors   bool
	errs         form.FieldErrors
	message      string

	width int
}

func newDetailPanel(p protocol.Protocol, ctrl runner, width int) *detailPanel {
	plan := form.Interpret(p.ParamsSchema)
	d := &detailPanel{
		protocol: p,
		plan:     plan,
		values:   plan.Defaults(),
		ctrl:     ctrl,
		state:    ctrl.State(),
		bar:      progress.New(progress.WithDefaultGradient()),
	}
	for _, f := range plan.Fields {
		ed := fieldEditor{field: f}
		switch f.Control.Kind {
		case form.ControlText, form.ControlNumber, form.ControlList:
			ti := textinput.New()
			ti.Prompt = ""
			ti.CharLimit = 512
			ti.Placeholder = placeholder(f)
			if v, ok := d.values[f.Name]; ok {
				ti.SetValue(form.FormatValue(v))
			}
			ed.input = ti
			ed.usesText = true
		}
		d.editors = append(d.editors, ed)
	}
	d.SetWidth(width)
	d.focusSlot(0)
	return d
}

func placeholder(f form.Field) string {
	switch f.Control.Kind {
	case form.ControlList:
		return "comma-separated"
	case form.ControlNumber:
		if f.Kind == form.KindInteger {
			return "integer"
		}
		return "number"
	}
	return ""
}

// SetWidth adapts wrapped content to the terminal width.
func (d *detailPanel) SetWidth(w int) {
	if w <= 0 {
		w = 80
	}
	d.width = w
	d.bar.Width = max(min(w-20, 60), 10)
	for i := range d.editors {
		d.editors[i].input.Width = max(min(w-30, 50), 10)
	}
	d.description = renderMarkdown(d.protocol.Description, w-6)
}

// SetState installs a controller snapshot, ignoring stale ones.
func (d *detailPanel) SetState(s run.State) {
	if s.Version < d.state.Version {
		return
	}
	d.state = s
	if n := len(s.View().Entries); d.resultCursor >= n {
		d.resultCursor = max(n-1, 0)
	}
	if d.focus == d.resultsSlot() && !d.hasResults() {
		d.focusSlot(d.runSlot())
	}
}

// --- focus ---

func (d *detailPanel) simulateSlot() int { return len(d.editors) }
func (d *detailPanel) runSlot() int      { return len(d.editors) + 1 }
func (d *detailPanel) resultsSlot() int  { return len(d.editors) + 2 }

func (d *detailPanel) hasResults() bool {
	return d.state.Result != nil && len(d.state.Result.Results) > 0
}

func (d *detailPanel) lastSlot() int {
	if d.hasResults() {
		return d.resultsSlot()
	}
	return d.runSlot()
}

func (d *detailPanel) focusSlot(i int) tea.Cmd {
	if i < 0 {
		i = d.lastSlot()
	}
	if i > d.lastSlot() {
		i = 0
	}
	d.focus = i
	var cmd tea.Cmd
	for j := range d.editors {
		if j == i && d.editors[j].usesText {
			cmd = d.editors[j].input.Focus()
		} else {
			d.editors[j].input.Blur()
		}
	}
	return cmd
}

// ResultsFocused reports whether keys navigate the result list.
func (d *detailPanel) ResultsFocused() bool {
	return d.focus == d.resultsSlot()
}

// --- input ---

// Update handles a key press on the detail screen. Esc and quit are
// handled by the app.
func (d *detailPanel) Update(msg tea.KeyMsg) tea.Cmd {
	d.message = ""

	switch {
	case matchKey(msg, keys.Simulate):
		d.setSimulate(!d.state.Simulate)
		return nil
	case matchKey(msg, keys.Reset):
		if err := d.ctrl.Reset(); err != nil && !errors.Is(err, run.ErrInvalidTransition) {
			d.message = err.Error()
		}
		return nil
	}

	if d.ResultsFocused() {
		switch msg.String() {
		case "up", "k":
			if d.resultCursor > 0 {
				d.resultCursor--
			}
			return nil
		case "down", "j":
			if d.resultCursor < len(d.state.View().Entries)-1 {
				d.resultCursor++
			}
			return nil
		case "enter", " ":
			_ = d.ctrl.ToggleExpanded(d.resultCursor)
			return nil
		case "tab":
			return d.focusSlot(0)
		case "shift+tab":
			return d.focusSlot(d.focus - 1)
		}
		return nil
	}

	switch msg.String() {
	case "tab", "down":
		return d.focusSlot(d.focus + 1)
	case "shift+tab", "up":
		return d.focusSlot(d.focus - 1)
	}

	switch {
	case d.focus == d.simulateSlot():
		if matchKey(msg, keys.Toggle) || matchKey(msg, keys.Left) || matchKey(msg, keys.Right) {
			d.setSimulate(!d.state.Simulate)
			return nil
		}
		if matchKey(msg, keys.Open) {
			d.submit()
		}
		return nil
	case d.focus == d.runSlot():
		if matchKey(msg, keys.Open) || matchKey(msg, keys.Toggle) {
			d.submit()
		}
		return nil
	}

	ed := &d.editors[d.focus]
	if matchKey(msg, keys.Open) {
		d.submit()
		return nil
	}
	if ed.usesText {
		var cmd tea.Cmd
		before := ed.input.Value()
		ed.input, cmd = ed.input.Update(msg)
		if ed.input.Value() != before {
			d.setRaw(ed)
		}
		return cmd
	}
	d.adjust(ed, msg)
	return nil
}

// setRaw parses a text editor's content into the values.
func (d *detailPanel) setRaw(ed *fieldEditor) {
	ed.parseErr = ""
	if err := d.plan.Set(d.values, ed.field.Name, ed.input.Value()); err != nil {
		delete(d.values, ed.field.Name)
		ed.parseErr = parseMessage(err)
	}
	d.revalidate()
}

func parseMessage(err error) string {
	msg := err.Error()
	if _, after, ok := strings.Cut(msg, ": "); ok {
		return after
	}
	return msg
}

// adjust applies a key to a select, range or toggle control.
func (d *detailPanel) adjust(ed *fieldEditor, msg tea.KeyMsg) {
	f := ed.field
	delta := 0
	switch {
	case matchKey(msg, keys.Left):
		delta = -1
	case matchKey(msg, keys.Right):
		delta = 1
	case matchKey(msg, keys.Toggle):
		delta = 1
	default:
		return
	}

	switch f.Control.Kind {
	case form.ControlToggle:
		on, _ := d.values[f.Name].(bool)
		d.values[f.Name] = !on
	case form.ControlSelect:
		options := selectOptions(f)
		cur, _ := d.values[f.Name].(string)
		i := indexOf(options, cur)
		i = (i + delta + len(options)) % len(options)
		if options[i] == "" {
			delete(d.values, f.Name)
		} else {
			d.values[f.Name] = options[i]
		}
	case form.ControlRange:
		d.values[f.Name] = f.Control.Nudge(d.values[f.Name], delta)
	}
	d.revalidate()
}

// selectOptions lists the choices of a select control; optional fields
// start with an empty "unset" choice.
func selectOptions(f form.Field) []string {
	if f.Required {
		return f.Control.Options
	}
	return append([]string{""}, f.Control.Options...)
}

func indexOf(options []string, v string) int {
	for i, o := range options {
		if o == v {
			return i
		}
	}
	return 0
}

func (d *detailPanel) revalidate() {
	if d.showErrors {
		d.errs = d.plan.Validate(d.values)
	}
}

func (d *detailPanel) setSimulate(on bool) {
	if err := d.ctrl.SetSimulate(on); err != nil {
		d.message = "Simulate cannot change while a run is in progress"
	}
}

// submit validates the form and starts a run.
func (d *detailPanel) submit() {
	d.showErrors = true
	for _, ed := range d.editors {
		if ed.parseErr != "" {
			d.errs = d.plan.Validate(d.values)
			d.message = "Fix the highlighted fields before running"
			return
		}
	}
	err := d.ctrl.SubmitForm(d.plan, d.values)
	var fe form.FieldErrors
	switch {
	case err == nil:
		d.errs = nil
	case errors.As(err, &fe):
		d.errs = fe
		d.message = "Fix the highlighted fields before running"
	case errors.Is(err, run.ErrRunInFlight):
		d.message = "A run is already in progress"
	default:
		d.message = err.Error()
	}
}

// --- view ---

// View renders the protocol detail, form and run panel.
func (d *detailPanel) View() string {
	var b strings.Builder

	b.WriteString(panelTitle.Render(d.protocol.Name) + " " + hintStyle.Render("("+d.protocol.ID+")") + "\n")
	if len(d.protocol.Tags) > 0 {
		b.WriteString(tagStyle.Render(strings.Join(d.protocol.Tags, " ")) + "\n")
	}
	if d.description != "" {
		b.WriteString(d.description + "\n")
	}
	b.WriteString("\n")

	b.WriteString(panelTitle.Render("Parameters") + "\n")
	if len(d.editors) == 0 {
		b.WriteString(hintStyle.Render("  This protocol takes no parameters.") + "\n")
	}
	for i := range d.editors {
		b.WriteString(d.renderField(i))
	}
	b.WriteString("\n")
	b.WriteString(d.renderRunPanel())
	if d.message != "" {
		b.WriteString("\n" + errorStyle.Render(d.message) + "\n")
	}
	return b.String()
}

func (d *detailPanel) renderField(i int) string {
	ed := d.editors[i]
	f := ed.field
	focused := d.focus == i

	label := f.Label
	if f.Required {
		label += " " + GlyphRequired
	}
	ls := labelStyle
	prefix := "  "
	if focused {
		ls = labelFocused
		prefix = labelFocused.Render(GlyphCursor) + " "
	}

	var control string
	switch f.Control.Kind {
	case form.ControlToggle:
		on, _ := d.values[f.Name].(bool)
		glyph := GlyphOff
		if on {
			glyph = GlyphOn
		}
		control = valueStyle.Render(glyph + " " + form.ToggleLabel(on))
	case form.ControlSelect:
		cur, _ := d.values[f.Name].(string)
		var parts []string
		for _, o := range selectOptions(f) {
			text := o
			if text == "" {
				text = "none"
			}
			if o == cur {
				parts = append(parts, tagActiveStyle.Render(text))
			} else {
				parts = append(parts, hintStyle.Render(text))
			}
		}
		control = strings.Join(parts, " ")
	case form.ControlRange:
		control = renderSlider(f, d.values[f.Name])
	default:
		control = ed.input.View()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s  %s\n", prefix, ls.Render(label), control)
	if f.Description != "" && focused {
		b.WriteString("    " + hintStyle.Render(f.Description) + "\n")
	}
	if ed.parseErr != "" {
		b.WriteString("    " + fieldErrorStyle.Render(ed.parseErr) + "\n")
	} else if fe, ok := d.errs.For(f.Name); ok {
		b.WriteString("    " + fieldErrorStyle.Render(fe.Message) + "\n")
	}
	return b.String()
}

// renderSlider draws a range control: a track with the current position and
// its inclusive bounds.
func renderSlider(f form.Field, v any) string {
	const width = 24
	c := f.Control
	lo, hi := *c.Min, *c.Max
	pos := c.Position(v)
	idx := 0
	if hi > lo {
		idx = int((pos - lo) / (hi - lo) * float64(width-1))
	}
	track := strings.Repeat(GlyphTrack, idx) + GlyphSlider + strings.Repeat(GlyphTrack, width-1-idx)
	value := hintStyle.Render("unset")
	if _, ok := v.(float64); ok {
		value = valueStyle.Render(form.FormatValue(pos))
	}
	return fmt.Sprintf("%s %s %s  %s",
		hintStyle.Render(form.FormatValue(lo)), track, hintStyle.Render(form.FormatValue(hi)), value)
}

func (d *detailPanel) renderRunPanel() string {
	s := d.state
	var b strings.Builder

	b.WriteString(panelTitle.Render("Run") + "  " + badge(s.Phase) + "\n")

	glyph := GlyphOff
	if s.Simulate {
		glyph = GlyphOn
	}
	prefix := "  "
	if d.focus == d.simulateSlot() {
		prefix = labelFocused.Render(GlyphCursor) + " "
	}
	fmt.Fprintf(&b, "%s%s %s\n", prefix, valueStyle.Render(glyph+" Simulate"), hintStyle.Render(run.SimulateDescription(s.Simulate)))

	btn := buttonStyle
	switch {
	case s.Phase == run.Running:
		btn = buttonDisabled
	case d.focus == d.runSlot():
		btn = buttonFocused
	}
	prefix = "  "
	if d.focus == d.runSlot() {
		prefix = labelFocused.Render(GlyphCursor) + " "
	}
	b.WriteString("\n" + prefix + btn.Render(s.Phase.ButtonLabel()) + "\n")

	if s.Phase != run.Idle {
		b.WriteString("\n  " + d.bar.ViewAs(s.Progress/run.Complete) + "\n")
	}
	if s.Phase == run.Error {
		b.WriteString("\n  " + statusFailedStyle.Render(GlyphFailed+" "+s.ErrorMessage) + "\n")
	}
	if s.Phase == run.Success {
		cursor := -1
		if d.ResultsFocused() {
			cursor = d.resultCursor
		}
		b.WriteString("\n" + result.Renderer{Styled: true, Cursor: cursor}.Render(s.View()))
	}
	return b.String()
}

func badge(p run.Phase) string {
	style := statusIdleStyle
	switch p {
	case run.Running:
		style = statusRunningStyle
	case run.Success:
		style = statusPassedStyle
	case run.Error:
		style = statusFailedStyle
	}
	return style.Render("[" + p.BadgeLabel() + "]")
}
