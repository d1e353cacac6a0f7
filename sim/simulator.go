// sim/simulator.go
package sim

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hemsim/hemsim/sim/trace"
)

// ErrNotPublished is returned by Query before the exporter's first write.
var ErrNotPublished = errors.New("variable not yet published")

// Simulator is the root coordinator: it holds the simulation clock, the model
// tree, pending host injections, and steps the tree one transition at a time.
// It is not thread-safe except for Query/Variable, which only read atomically
// published values. Real-time pacing wraps a Simulator (see sim/realtime).
type Simulator struct {
	Clock Time
	Start Time
	End   Time
	// Trace records transitions and deliveries according to its level.
	Trace *trace.SimulationTrace

	root       component
	injections *InjectionQueue
	rng        *PartitionedRNG
	outputs    []func(Event)
	rc         *runContext
	runID      uuid.UUID
	log        *logrus.Entry

	initialised bool
	ended       bool
	maxZero     int
	zeroSteps   int
	steps       int64
}

// NewSimulator validates the composition rooted at root and prepares every
// model with the run parameters of cfg.
func NewSimulator(root Model, cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	comp, err := asComponent(root)
	if err != nil {
		return nil, err
	}
	if c, ok := root.(*Coupled); ok {
		if err := c.Err(); err != nil {
			return nil, fmt.Errorf("invalid composition: %w", err)
		}
	}
	if err := checkUniqueIDs(comp); err != nil {
		return nil, err
	}

	runID := cfg.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	if cfg.Trace.RunID == "" {
		cfg.Trace.RunID = runID.String()
	}
	s := &Simulator{
		Clock:      cfg.Start,
		Start:      cfg.Start,
		End:        cfg.End,
		Trace:      trace.NewSimulationTrace(cfg.Trace),
		root:       comp,
		injections: NewInjectionQueue(),
		rng:        NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		runID:      runID,
		log:        logrus.WithFields(logrus.Fields{"run": runID.String(), "root": comp.ID()}),
		maxZero:    cfg.MaxZeroDelaySteps,
	}
	if s.maxZero == 0 {
		s.maxZero = DefaultMaxZeroDelaySteps
	}
	params := cfg.Params
	if params == nil {
		params = Params{}
	}
	s.rc = &runContext{params: params, rng: s.rng, trace: s.Trace, watchers: make(map[string][]func(Event))}
	if err := comp.prepare(s.rc); err != nil {
		return nil, fmt.Errorf("preparing models: %w", err)
	}
	return s, nil
}

func checkUniqueIDs(root component) error {
	seen := make(map[string]bool)
	var err error
	root.walk(func(c component) {
		if seen[c.ID()] {
			err = errors.Join(err, fmt.Errorf("model ID %q used more than once", c.ID()))
		}
		seen[c.ID()] = true
	})
	return err
}

// RootID returns the ID of the root model.
func (sim *Simulator) RootID() string { return sim.root.ID() }

// RunID identifies this run in logs, traces and telemetry.
func (sim *Simulator) RunID() uuid.UUID { return sim.runID }

// Seed returns the master seed of the run.
func (sim *Simulator) Seed() int64 { return int64(sim.rng.Key()) }

// Steps returns the number of steps executed so far.
func (sim *Simulator) Steps() int64 { return sim.steps }

// Ended reports whether EndSimulation has run.
func (sim *Simulator) Ended() bool { return sim.ended }

// OnOutput registers fn to receive every event re-exported by the root model.
// fn runs synchronously on the simulation thread.
func (sim *Simulator) OnOutput(fn func(Event)) {
	sim.outputs = append(sim.outputs, fn)
}

// Watch registers fn to receive every event emitted on the boundary of the
// named model, before it is routed. The root's outputs are watched with
// OnOutput. fn runs synchronously on the simulation thread; register watchers
// before the run starts.
func (sim *Simulator) Watch(model string, fn func(Event)) error {
	if model == sim.root.ID() {
		return fmt.Errorf("watch %q: use OnOutput for the root model", model)
	}
	if _, ok := sim.root.lookup(model); !ok {
		return fmt.Errorf("watch %q: %w", model, ErrUnknownModel)
	}
	sim.rc.watchers[model] = append(sim.rc.watchers[model], fn)
	return nil
}

// Initialise puts every model in its initial state at Start. Step and Run
// call it when needed.
func (sim *Simulator) Initialise() {
	if sim.initialised {
		return
	}
	sim.initialised = true
	sim.Clock = sim.Start
	sim.log.Infof("[t=%s] Initialising simulation, end=%s", sim.Start, sim.End)
	sim.root.initialise(sim.Start)
}

// NextTime returns the time of the next step: the earliest of the models'
// next internal transitions and the pending injections.
func (sim *Simulator) NextTime() Time {
	if !sim.initialised {
		return sim.Start
	}
	return min(sim.root.nextTime(), sim.injections.PeekTime())
}

// Step executes one transition cycle at NextTime. It returns false when no
// step is due at or before End.
func (sim *Simulator) Step() bool {
	if !sim.initialised {
		sim.Initialise()
	}
	if sim.ended {
		return false
	}
	t := sim.NextTime()
	if t.IsInfinite() || t > sim.End {
		return false
	}
	if t == sim.Clock {
		sim.zeroSteps++
		if sim.zeroSteps > sim.maxZero {
			Violation(sim.root.ID(), "more than %d steps at %s, zero-delay loop", sim.maxZero, t)
		}
	} else {
		sim.zeroSteps = 0
	}
	sim.Clock = t
	sim.steps++

	// Model transitions are serviced before injections at the same instant,
	// so an injected event always finds its target idle.
	if sim.root.nextTime() == t {
		for _, ev := range sim.root.internal(t) {
			logrus.Debugf("[t=%s] root output %s", t, ev)
			for _, fn := range sim.outputs {
				fn(ev)
			}
		}
		return true
	}

	inj, _ := sim.injections.popNext()
	target, ok := sim.root.lookup(inj.target)
	if !ok {
		Violation(inj.target, "injection target vanished")
	}
	sim.Trace.RecordInjection(trace.InjectionRecord{Target: inj.target, Kind: inj.event.Kind().String(), Clock: int64(t)})
	logrus.Debugf("[t=%s] injecting %s into %s", t, inj.event, inj.target)
	target.external(t, inj.event)
	return true
}

// Run executes steps as fast as possible until End, then ends the simulation.
func (sim *Simulator) Run() {
	for sim.Step() {
	}
	sim.EndSimulation()
}

// RunUntil executes every step due at or before t without ending the run.
func (sim *Simulator) RunUntil(t Time) {
	if !sim.initialised {
		sim.Initialise()
	}
	for !sim.ended && sim.NextTime() <= min(t, sim.End) {
		sim.Step()
	}
	if t > sim.Clock && t <= sim.End {
		sim.Clock = t
	}
}

// EndSimulation runs every model's EndSimulation at End, exactly once.
func (sim *Simulator) EndSimulation() {
	sim.EndAt(sim.End)
}

// EndAt runs every model's EndSimulation at t (clamped to [Clock, End]),
// exactly once. Used when a run is stopped before its hard end.
func (sim *Simulator) EndAt(t Time) {
	if sim.ended {
		return
	}
	if !sim.initialised {
		sim.Initialise()
	}
	t = max(min(t, sim.End), sim.Clock)
	sim.ended = true
	sim.Clock = t
	sim.root.end(t)
	sim.log.Infof("[t=%s] Simulation ended after %d steps", t, sim.steps)
}

// Inject schedules ev for delivery to the named model (atomic or coupled) at
// ev.Time(). The time must not precede the current clock nor exceed End, and
// the target must import the event's kind.
func (sim *Simulator) Inject(target string, ev Event) error {
	if sim.ended {
		return ErrEnded
	}
	comp, ok := sim.root.lookup(target)
	if !ok {
		return fmt.Errorf("inject into %q: %w", target, ErrUnknownModel)
	}
	if !comp.acceptsKind(ev.Kind()) {
		return fmt.Errorf("inject %s into %q: %w", ev.Kind(), target, ErrUnexpectedEvent)
	}
	if ev.Time() < sim.Clock {
		return fmt.Errorf("inject %s into %q at clock %s: %w", ev, target, sim.Clock, ErrEventInPast)
	}
	if ev.Time() > sim.End {
		return fmt.Errorf("inject %s into %q: %w", ev, target, ErrBeyondHorizon)
	}
	sim.injections.Schedule(target, ev)
	return nil
}

// Trigger injects an event of kind stamped at the current clock.
func (sim *Simulator) Trigger(target string, kind Kind, payload ...Payload) error {
	return sim.Inject(target, NewEvent(kind, sim.Clock, payload...))
}

// Variable returns the exported variable name of model. The returned value
// may be read from any goroutine.
func (sim *Simulator) Variable(model, name string) (Exported, error) {
	comp, ok := sim.root.lookup(model)
	if !ok {
		return nil, fmt.Errorf("query %s.%s: %w", model, name, ErrUnknownModel)
	}
	v, ok := comp.exported(name)
	if !ok {
		return nil, fmt.Errorf("query %s.%s: %w", model, name, ErrUnknownVariable)
	}
	return v, nil
}

// Query returns the last published value of a model's exported variable and
// its publication time. It never blocks.
func (sim *Simulator) Query(model, name string) (any, Time, error) {
	v, err := sim.Variable(model, name)
	if err != nil {
		return nil, 0, err
	}
	val, at, ok := v.Latest()
	if !ok {
		return nil, 0, fmt.Errorf("query %s.%s: %w", model, name, ErrNotPublished)
	}
	return val, at, nil
}

// QueryFloat is Query for float64 variables.
func (sim *Simulator) QueryFloat(model, name string) (float64, error) {
	val, _, err := sim.Query(model, name)
	if err != nil {
		return 0, err
	}
	f, ok := val.(float64)
	if !ok {
		return 0, fmt.Errorf("query %s.%s: %w", model, name, ErrTypeMismatch)
	}
	return f, nil
}
