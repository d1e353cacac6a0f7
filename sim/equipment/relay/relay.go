// Package relay implements the state-relay model: it re-emits every
// operation it receives, unchanged and one zero-delay hop later, so that an
// electricity model deployed with the meter observes the operations called
// on an appliance's controller elsewhere.
package relay

import (
	"fmt"

	"github.com/hemsim/hemsim/sim"
)

type backlog int

func (b backlog) String() string { return fmt.Sprintf("%d pending", int(b)) }

// Relay forwards events in arrival order.
type Relay struct {
	sim.Base
	pending []sim.Event
	relayed int
}

// New returns a relay accepting and emitting kinds.
func New(id string, kinds ...sim.Kind) *Relay {
	r := &Relay{Base: sim.NewBase(id)}
	r.Accept(kinds...)
	r.Emit(kinds...)
	return r
}

// Relayed returns the number of events forwarded so far.
func (r *Relay) Relayed() int { return r.relayed }

func (r *Relay) Initialise(t sim.Time) {
	r.pending = nil
	r.relayed = 0
}

func (r *Relay) TimeAdvance() sim.Time {
	if len(r.pending) > 0 {
		return 0
	}
	return r.Advance(sim.Infinity)
}

func (r *Relay) Output() (sim.Event, bool) {
	if len(r.pending) == 0 {
		return sim.Event{}, false
	}
	return r.pending[0].At(r.Now()), true
}

func (r *Relay) InternalTransition(elapsed sim.Time) {
	if len(r.pending) == 0 {
		return
	}
	r.Logger().Debugf("[t=%s] relayed %s", r.Now(), r.pending[0])
	r.pending = r.pending[1:]
	r.relayed++
}

func (r *Relay) ExternalTransition(elapsed sim.Time, ev sim.Event) {
	if !r.Accepts(ev.Kind()) {
		sim.UnexpectedEvent(r.ID(), backlog(len(r.pending)), ev)
	}
	r.pending = append(r.pending, ev)
	r.MarkDirty()
}
