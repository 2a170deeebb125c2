// Package run implements the run lifecycle controller: a pure state
// machine over run events, plus a Controller that drives one execution at a
// time with simulated progress.
package run

import (
	"errors"
	"fmt"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/result"
)

// Phase is the lifecycle position of a run.
type Phase int

const (
	Idle Phase = iota
	Running
	Success
	Error
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Success:
		return "success"
	case Error:
		return "error"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether p is Success or Error.
func (p Phase) Terminal() bool {
	return p == Success || p == Error
}

// BadgeLabel is the status badge shown next to the runner.
func (p Phase) BadgeLabel() string {
	switch p {
	case Running:
		return "Running..."
	case Success:
		return "Completed"
	case Error:
		return "Failed"
	}
	return "Ready"
}

// ButtonLabel is the label of the submit action in this phase.
func (p Phase) ButtonLabel() string {
	switch p {
	case Running:
		return "Running..."
	case Success:
		return "Run Again"
	case Error:
		return "Try Again"
	}
	return "Run Protocol"
}

// SimulateDescription explains the simulate flag to the operator.
func SimulateDescription(simulate bool) string {
	if simulate {
		return "Run in simulation mode without connecting to hardware"
	}
	return "Run on actual hardware (make sure the Hamilton is connected)"
}

// State is an immutable snapshot of one controller's run.
type State struct {
	Phase        Phase
	Progress     float64
	Result       *protocol.ProtocolResult
	ErrorMessage string
	RunID        string
	Simulate     bool
	Expansion    result.Expansion
	// Version increases on every accepted transition; observers use it to
	// discard stale snapshots.
	Version uint64
}

// View aggregates the current result under the current expansion.
func (s State) View() result.View {
	return result.Build(s.Result, s.Expansion)
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// Event is an input to Transition.
type Event interface {
	eventName() string
}

// Submitted starts a run.
type Submitted struct{ RunID string }

// Ticked advances simulated progress by Increment.
type Ticked struct{ Increment float64 }

// Succeeded delivers the execution service's result.
type Succeeded struct{ Result *protocol.ProtocolResult }

// Failed delivers a failure message.
type Failed struct{ Message string }

// ResetRequested returns a finished run to Idle.
type ResetRequested struct{}

// SimulateChanged sets the simulate flag.
type SimulateChanged struct{ Simulate bool }

// ExpansionToggled flips one command's expanded flag.
type ExpansionToggled struct{ Index int }

func (Submitted) eventName() string        { return "submit" }
func (Ticked) eventName() string           { return "tick" }
func (Succeeded) eventName() string        { return "success" }
func (Failed) eventName() string           { return "failure" }
func (ResetRequested) eventName() string   { return "reset" }
func (SimulateChanged) eventName() string  { return "simulate" }
func (ExpansionToggled) eventName() string { return "expand" }

// ---------------------------------------------------------------------------
// Transition
// ---------------------------------------------------------------------------

var (
	// ErrInvalidTransition is returned when an event is not accepted in the
	// current phase.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrRunInFlight is returned for a submit while a run is in flight.
	ErrRunInFlight = errors.New("a run is already in flight")
)

// Progress constants.
const (
	InitialProgress = 10
	ProgressCeiling = 90
	MaxIncrement    = 5
	Complete        = 100
)

// UnknownErrorMessage is used when a failure carries no description.
const UnknownErrorMessage = "Unknown error"

// Transition applies e to s and returns the next state. It is pure: s is
// never modified.
func Transition(s State, e Event) (State, error) {
	next := s
	switch ev := e.(type) {
	case Submitted:
		if s.Phase == Running {
			return s, ErrRunInFlight
		}
		next.Phase = Running
		next.Progress = InitialProgress
		next.Result = nil
		next.ErrorMessage = ""
		next.Expansion = nil
		next.RunID = ev.RunID

	case Ticked:
		if s.Phase != Running {
			return s, invalid(s, e)
		}
		inc := ev.Increment
		if inc < 0 {
			inc = 0
		}
		next.Progress = min(s.Progress+inc, ProgressCeiling)
		// Never move backwards, even if the ceiling was already exceeded.
		next.Progress = max(next.Progress, s.Progress)

	case Succeeded:
		if s.Phase != Running {
			return s, invalid(s, e)
		}
		next.Phase = Success
		next.Progress = Complete
		next.Result = ev.Result

	case Failed:
		if s.Phase != Running {
			return s, invalid(s, e)
		}
		next.Phase = Error
		next.Progress = Complete
		next.Result = nil
		next.ErrorMessage = ev.Message
		if next.ErrorMessage == "" {
			next.ErrorMessage = UnknownErrorMessage
		}

	case ResetRequested:
		if !s.Phase.Terminal() {
			return s, invalid(s, e)
		}
		next.Phase = Idle
		next.Progress = 0
		next.Result = nil
		next.ErrorMessage = ""
		next.Expansion = nil
		next.RunID = ""

	case SimulateChanged:
		if s.Phase == Running {
			return s, invalid(s, e)
		}
		next.Simulate = ev.Simulate

	case ExpansionToggled:
		if s.Result == nil || ev.Index < 0 {
			return s, invalid(s, e)
		}
		next.Expansion = s.Expansion.Toggle(ev.Index)

	default:
		return s, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, e)
	}
	next.Version = s.Version + 1
	return next, nil
}

func invalid(s State, e Event) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, e.eventName(), s.Phase)
}
