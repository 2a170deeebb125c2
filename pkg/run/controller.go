package run

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/form"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/log"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

// Executor issues a protocol run to the execution service.
type Executor interface {
	RunProtocol(ctx context.Context, id string, params map[string]any, simulate bool) (*protocol.ProtocolResult, error)
}

// DetailedError is implemented by errors carrying a structured detail
// message from the execution service.
type DetailedError interface {
	error
	ErrorDetail() string
}

// ErrClosed is returned by operations on a closed Controller.
var ErrClosed = errors.New("controller closed")

var errNoResult = errors.New("execution service returned no result")

// ErrorMessage derives the operator-facing message for a failed run: the
// structured detail if present, else the error text, else UnknownErrorMessage.
func ErrorMessage(err error) string {
	if err == nil {
		return UnknownErrorMessage
	}
	var de DetailedError
	if errors.As(err, &de) {
		if d := de.ErrorDetail(); d != "" {
			return d
		}
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return UnknownErrorMessage
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

// NotificationKind distinguishes success from failure notifications.
type NotificationKind int

const (
	NotifySuccess NotificationKind = iota
	NotifyFailure
)

// Notification is the user-visible message emitted once per finished run.
type Notification struct {
	Kind    NotificationKind
	Title   string
	Message string
	RunID   string
}

// Notifier receives run notifications.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// ---------------------------------------------------------------------------
// Controller
// ---------------------------------------------------------------------------

// Option configures a Controller.
type Option func(*Controller)

// WithTickInterval sets the progress tick cadence.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithIncrement replaces the progress increment source.
func WithIncrement(fn func() float64) Option {
	return func(c *Controller) { c.increment = fn }
}

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithSimulate sets the initial simulate flag. The default is true.
func WithSimulate(simulate bool) Option {
	return func(c *Controller) { c.state.Simulate = simulate }
}

// WithContext sets the parent context for execution requests. Its values
// are inherited but its cancellation is not: runs cannot be aborted.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) { c.ctx = ctx }
}

// Controller owns the run state for one protocol form. At most one run is
// in flight at a time.
type Controller struct {
	protocolID string
	exec       Executor
	notifier   Notifier
	logger     *log.Logger
	interval   time.Duration
	increment  func() float64
	ctx        context.Context

	mu        sync.Mutex
	state     State
	observers []func(State)
	ticker    *progressTicker
	closed    bool

	wg sync.WaitGroup
}

// New creates a controller for the given protocol.
func New(protocolID string, exec Executor, opts ...Option) *Controller {
	c := &Controller{
		protocolID: protocolID,
		exec:       exec,
		notifier:   NotifierFunc(func(Notification) {}),
		logger:     log.Nop(),
		interval:   DefaultTickInterval,
		increment:  UniformIncrement,
		ctx:        context.Background(),
		state:      State{Phase: Idle, Simulate: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProtocolID returns the protocol this controller runs.
func (c *Controller) ProtocolID() string { return c.protocolID }

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnChange registers an observer called with every new snapshot. Observers
// run outside the controller lock, possibly from background goroutines, and
// may see snapshots out of order; compare State.Version.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.observers = append(c.observers, fn)
	}
}

// SubmitForm validates values against plan and submits them. Validation
// failures are returned as form.FieldErrors and never reach the executor.
func (c *Controller) SubmitForm(plan *form.Plan, values form.Values) error {
	if errs := plan.Validate(values); errs != nil {
		return errs
	}
	return c.Submit(values)
}

// Submit starts a run with already-validated values. It returns immediately;
// the outcome arrives through observers and the notifier.
func (c *Controller) Submit(values form.Values) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	runID := uuid.NewString()
	next, err := Transition(c.state, Submitted{RunID: runID})
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	simulate := next.Simulate
	c.wg.Add(2)
	t := startProgressTicker(c.interval, func() bool {
		return c.apply(runID, Ticked{Increment: c.increment()})
	}, c.wg.Done)
	c.ticker = t
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	c.publish(next, observers)
	c.logger.WithRun(runID, c.protocolID).Info("run submitted", map[string]any{
		"simulate": simulate,
		"params":   len(values),
	})

	go c.execute(runID, map[string]any(values.Clone()), simulate, t)
	return nil
}

func (c *Controller) execute(runID string, params map[string]any, simulate bool, t *progressTicker) {
	defer c.wg.Done()
	logger := c.logger.WithRun(runID, c.protocolID)

	res, err := c.invoke(params, simulate, t)
	if err == nil && res == nil {
		err = errNoResult
	}
	if err != nil {
		msg := ErrorMessage(err)
		c.apply(runID, Failed{Message: msg})
		logger.Error("run failed", map[string]any{"error": msg})
		c.notifier.Notify(Notification{Kind: NotifyFailure, Title: "Protocol failed", Message: msg, RunID: runID})
		return
	}
	c.apply(runID, Succeeded{Result: res})
	logger.Info("run completed", map[string]any{
		"status":   res.Status,
		"commands": len(res.Results),
	})
	c.notifier.Notify(Notification{
		Kind:    NotifySuccess,
		Title:   "Protocol completed",
		Message: "The protocol was executed successfully",
		RunID:   runID,
	})
}

// invoke calls the executor. The progress ticker is released on every exit,
// including a panicking executor.
func (c *Controller) invoke(params map[string]any, simulate bool, t *progressTicker) (res *protocol.ProtocolResult, err error) {
	defer t.Release()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return c.exec.RunProtocol(context.WithoutCancel(c.ctx), c.protocolID, params, simulate)
}

// apply feeds a run-scoped event. It reports whether the run is still in
// flight; events for a superseded run are dropped.
func (c *Controller) apply(runID string, e Event) bool {
	c.mu.Lock()
	if c.state.RunID != runID || c.state.Phase != Running {
		c.mu.Unlock()
		return false
	}
	if _, tick := e.(Ticked); tick && c.closed {
		c.mu.Unlock()
		return false
	}
	next, err := Transition(c.state, e)
	if err != nil {
		c.mu.Unlock()
		return false
	}
	c.state = next
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	c.publish(next, observers)
	return next.Phase == Running
}

func (c *Controller) update(e Event) error {
	c.mu.Lock()
	next, err := Transition(c.state, e)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	c.publish(next, observers)
	return nil
}

func (c *Controller) publish(s State, observers []func(State)) {
	for _, fn := range observers {
		fn(s)
	}
}

// SetSimulate changes the simulate flag. Rejected while Running.
func (c *Controller) SetSimulate(simulate bool) error {
	return c.update(SimulateChanged{Simulate: simulate})
}

// Reset returns a finished run to Idle. Only valid from Success or Error.
func (c *Controller) Reset() error {
	prev := c.State()
	if err := c.update(ResetRequested{}); err != nil {
		return err
	}
	c.logger.WithRun(prev.RunID, c.protocolID).Info("run reset", map[string]any{"from": prev.Phase.String()})
	return nil
}

// ToggleExpanded flips command i's expanded flag in the current result.
func (c *Controller) ToggleExpanded(i int) error {
	return c.update(ExpansionToggled{Index: i})
}

// Close releases the progress ticker and detaches observers. An in-flight
// request still runs to completion; its outcome is recorded but not
// published. Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.observers = nil
	t := c.ticker
	c.ticker = nil
	c.mu.Unlock()
	if t != nil {
		t.Release()
	}
}

// Wait blocks until no run or ticker goroutine is active. It must not be
// called from an observer.
func (c *Controller) Wait() {
	c.wg.Wait()
}
