package sim

import (
	"fmt"

	"github.com/hemsim/hemsim/sim/trace"
)

// component is the kernel's uniform view of atomic and coupled models. A
// coupled model is indistinguishable from an atomic one to its parent.
type component interface {
	Model
	prepare(rc *runContext) error
	initialise(t Time)
	nextTime() Time
	urgent(t Time) bool
	internal(t Time) []Event
	external(t Time, ev Event)
	end(t Time)
	emitsKind(k Kind) bool
	acceptsKind(k Kind) bool
	exported(name string) (Exported, bool)
	bindImport(name string, src Exported) error
	lookup(id string) (component, bool)
	walk(fn func(component))
}

// runContext carries per-run collaborators down the model tree.
type runContext struct {
	params   Params
	rng      *PartitionedRNG
	trace    *trace.SimulationTrace
	watchers map[string][]func(Event)
}

// emitted notifies the watchers of model of an event it emitted.
func (rc *runContext) emitted(model string, ev Event) {
	for _, fn := range rc.watchers[model] {
		fn(ev)
	}
}

func asComponent(m Model) (component, error) {
	switch v := m.(type) {
	case *Coupled:
		return v, nil
	case Atomic:
		return &atomicSim{m: v, b: v.base()}, nil
	case nil:
		return nil, fmt.Errorf("nil model")
	default:
		return nil, fmt.Errorf("model %q (%T) is neither atomic nor coupled", m.ID(), m)
	}
}

// atomicSim drives one Atomic and keeps its last and next event times.
type atomicSim struct {
	m     Atomic
	b     *Base
	tL    Time
	tN    Time
	rc    *runContext
	ended bool
}

func (a *atomicSim) ID() string { return a.b.id }

func (a *atomicSim) prepare(rc *runContext) error {
	a.rc = rc
	if a.b.err != nil {
		return a.b.err
	}
	a.b.configure(rc.params)
	if rc.rng != nil {
		a.b.rng = rc.rng.ForSubsystem(a.b.id)
	}
	if c, ok := a.m.(Configurable); ok {
		if err := c.SetRunParameters(rc.params); err != nil {
			return fmt.Errorf("model %q: %w", a.b.id, err)
		}
	}
	for _, imp := range a.b.imports {
		if !imp.Bound() {
			return fmt.Errorf("model %q: import %q is not bound", a.b.id, imp.Name())
		}
	}
	return nil
}

func (a *atomicSim) initialise(t Time) {
	a.b.now = t
	a.b.dirty = false
	a.ended = false
	a.m.Initialise(t)
	a.tL = t
	a.tN = t.Add(a.advance())
}

func (a *atomicSim) advance() Time {
	ta := a.m.TimeAdvance()
	if ta < 0 {
		Violation(a.b.id, "negative time advance %d", int64(ta))
	}
	if a.b.dirty && ta != 0 {
		Violation(a.b.id, "dirty model advanced by %s instead of zero", ta)
	}
	return ta
}

func (a *atomicSim) nextTime() Time { return a.tN }

func (a *atomicSim) urgent(t Time) bool { return a.tN == t && a.b.dirty }

func (a *atomicSim) internal(t Time) []Event {
	if t != a.tN {
		Violation(a.b.id, "internal transition at %s but scheduled at %s", t, a.tN)
	}
	a.b.now = t
	ev, ok := a.m.Output()
	if ok {
		if !a.b.emits[ev.Kind()] {
			panic(&ContractViolation{Model: a.b.id, Event: &ev, Reason: "output of undeclared kind"})
		}
		if ev.Time() != t {
			panic(&ContractViolation{Model: a.b.id, Event: &ev, Reason: fmt.Sprintf("output stamped away from transition time %s", t)})
		}
	}
	a.m.InternalTransition(t - a.tL)
	a.b.dirty = false
	a.tL = t
	a.tN = t.Add(a.advance())
	a.rc.trace.RecordTransition(trace.TransitionRecord{
		Model:    a.b.id,
		Clock:    int64(t),
		Internal: true,
		Next:     int64(a.tN),
	})
	if !ok {
		return nil
	}
	a.rc.trace.RecordOutput(trace.OutputRecord{Model: a.b.id, Clock: int64(t), Kind: ev.Kind().String()})
	return []Event{ev}
}

func (a *atomicSim) external(t Time, ev Event) {
	if ev.Time() < a.tL || t < a.tL {
		panic(&ContractViolation{Model: a.b.id, Event: &ev, Reason: fmt.Sprintf("event precedes model time %s", a.tL)})
	}
	if t > a.tN {
		panic(&ContractViolation{Model: a.b.id, Event: &ev, Reason: fmt.Sprintf("event after missed internal transition at %s", a.tN)})
	}
	if !a.b.accepts[ev.Kind()] {
		panic(&ContractViolation{Model: a.b.id, Event: &ev, Reason: "event kind not imported"})
	}
	a.b.now = t
	a.m.ExternalTransition(t-a.tL, ev)
	a.tL = t
	a.tN = t.Add(a.advance())
	a.rc.trace.RecordTransition(trace.TransitionRecord{
		Model: a.b.id,
		Clock: int64(t),
		Kind:  ev.Kind().String(),
		Next:  int64(a.tN),
	})
}

func (a *atomicSim) end(t Time) {
	if a.ended {
		return
	}
	a.ended = true
	a.b.now = t
	a.m.EndSimulation(t)
}

func (a *atomicSim) emitsKind(k Kind) bool   { return a.b.emits[k] }
func (a *atomicSim) acceptsKind(k Kind) bool { return a.b.accepts[k] }

func (a *atomicSim) exported(name string) (Exported, bool) { return a.b.Exported(name) }

func (a *atomicSim) bindImport(name string, src Exported) error {
	slot, ok := a.b.Imported(name)
	if !ok {
		return fmt.Errorf("model %q import %q: %w", a.b.id, name, ErrUnknownVariable)
	}
	return slot.bind(src)
}

func (a *atomicSim) lookup(id string) (component, bool) {
	if a.b.id == id {
		return a, true
	}
	return nil, false
}

func (a *atomicSim) walk(fn func(component)) { fn(a) }
