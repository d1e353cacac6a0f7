// Package testutil provides shared test models and assertion helpers for
// the hemsim test packages.
package testutil

import (
	"math"
	"testing"

	"github.com/hemsim/hemsim/sim"
)

// Emitter emits one event of Kind after each of Delays, then goes passive.
// OnFire, when set, runs inside the internal transition.
type Emitter struct {
	sim.Base
	Kind    sim.Kind
	Delays  []sim.Time
	Payload sim.Payload
	OnFire  func(e *Emitter)
	Fired   []sim.Time
	next    int
}

// NewEmitter returns an Emitter declared to emit kind.
func NewEmitter(id string, kind sim.Kind, delays ...sim.Time) *Emitter {
	e := &Emitter{Base: sim.NewBase(id), Kind: kind, Delays: delays}
	e.Emit(kind)
	return e
}

func (e *Emitter) Initialise(t sim.Time) { e.next = 0 }

func (e *Emitter) TimeAdvance() sim.Time {
	if e.next >= len(e.Delays) {
		return sim.Infinity
	}
	return e.Delays[e.next]
}

func (e *Emitter) Output() (sim.Event, bool) {
	return sim.NewEvent(e.Kind, e.Now(), e.Payload), true
}

func (e *Emitter) InternalTransition(elapsed sim.Time) {
	e.next++
	e.Fired = append(e.Fired, e.Now())
	if e.OnFire != nil {
		e.OnFire(e)
	}
}

func (e *Emitter) ExternalTransition(elapsed sim.Time, ev sim.Event) {
	sim.UnexpectedEvent(e.ID(), mode("emitting"), ev)
}

type mode string

func (m mode) String() string { return string(m) }

// Recorder stores every event it receives. With Fragile set, any received
// event is a contract violation.
type Recorder struct {
	sim.Base
	Got     []sim.Event
	Ended   int
	EndedAt sim.Time
	Fragile bool
}

// NewRecorder returns a Recorder accepting kinds.
func NewRecorder(id string, kinds ...sim.Kind) *Recorder {
	r := &Recorder{Base: sim.NewBase(id)}
	r.Accept(kinds...)
	return r
}

func (r *Recorder) Initialise(t sim.Time)               {}
func (r *Recorder) TimeAdvance() sim.Time               { return r.Advance(sim.Infinity) }
func (r *Recorder) Output() (sim.Event, bool)           { return sim.Event{}, false }
func (r *Recorder) InternalTransition(elapsed sim.Time) {}

func (r *Recorder) ExternalTransition(elapsed sim.Time, ev sim.Event) {
	if r.Fragile {
		sim.UnexpectedEvent(r.ID(), mode("fragile"), ev)
	}
	r.Got = append(r.Got, ev)
	r.MarkDirty()
}

func (r *Recorder) EndSimulation(t sim.Time) {
	r.Ended++
	r.EndedAt = t
}

// Kinds returns the kinds of the received events in order.
func (r *Recorder) Kinds() []sim.Kind {
	out := make([]sim.Kind, len(r.Got))
	for i, ev := range r.Got {
		out[i] = ev.Kind()
	}
	return out
}

// Constant exports a float variable holding a fixed value from Initialise.
type Constant struct {
	sim.Base
	Value *sim.Variable[float64]
	v     float64
}

// NewConstant returns a model publishing v under name.
func NewConstant(id, name string, v float64) *Constant {
	c := &Constant{Base: sim.NewBase(id), Value: sim.NewVariable(name, 0.0), v: v}
	c.Export(c.Value)
	return c
}

func (c *Constant) Initialise(t sim.Time)                             { c.Value.Set(t, c.v) }
func (c *Constant) TimeAdvance() sim.Time                             { return sim.Infinity }
func (c *Constant) Output() (sim.Event, bool)                         { return sim.Event{}, false }
func (c *Constant) InternalTransition(elapsed sim.Time)               {}
func (c *Constant) ExternalTransition(elapsed sim.Time, ev sim.Event) {}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
