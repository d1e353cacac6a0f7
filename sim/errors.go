package sim

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownModel        = errors.New("unknown model")
	ErrUnknownVariable     = errors.New("unknown variable")
	ErrEventInPast         = errors.New("event time precedes current simulated time")
	ErrBeyondHorizon       = errors.New("event time beyond simulation end")
	ErrUnexpectedEvent     = errors.New("event kind not accepted by model")
	ErrInvalidAcceleration = errors.New("acceleration factor must be > 0")
	ErrNotRunning          = errors.New("simulation is not running")
	ErrAborted             = errors.New("simulation aborted")
	ErrAlreadyArmed        = errors.New("scheduler already armed")
	ErrEnded               = errors.New("simulation already ended")
)

// ContractViolation describes a malformed composition detected at run time:
// an unexpected event for the current mode, a read before first publication,
// a negative time-advance and so on. It is raised with panic and is never
// recovered inside the kernel.
type ContractViolation struct {
	Model    string
	Event    *Event
	Variable string
	Reason   string
}

func (v *ContractViolation) Error() string {
	msg := fmt.Sprintf("contract violation in model %q: %s", v.Model, v.Reason)
	if v.Event != nil {
		msg += fmt.Sprintf(" (event %s)", v.Event)
	}
	if v.Variable != "" {
		msg += fmt.Sprintf(" (variable %q)", v.Variable)
	}
	return msg
}

// Violation panics with a ContractViolation for model.
func Violation(model, format string, args ...any) {
	panic(&ContractViolation{Model: model, Reason: fmt.Sprintf(format, args...)})
}

// UnexpectedEvent panics with a ContractViolation naming ev. Models call it
// from the default branch of their transition switch.
func UnexpectedEvent(model string, mode fmt.Stringer, ev Event) {
	panic(&ContractViolation{
		Model:  model,
		Event:  &ev,
		Reason: fmt.Sprintf("unexpected event in mode %s", mode),
	})
}

// AsContractViolation unwraps a recovered panic value.
func AsContractViolation(r any) (*ContractViolation, bool) {
	switch v := r.(type) {
	case *ContractViolation:
		return v, true
	case error:
		var cv *ContractViolation
		if errors.As(v, &cv) {
			return cv, true
		}
	}
	return nil, false
}
