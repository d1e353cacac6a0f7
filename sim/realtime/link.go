package realtime

import (
	"github.com/hemsim/hemsim/sim"
)

// Link forwards every event of kind re-exported by the root of from to the
// model target inside to. Delivery happens on to's goroutine; an event that
// would arrive before to's current simulated time is restamped at that time
// and a warning is logged, so the receiver never observes an event from its
// past.
//
// Links must be declared before either scheduler runs.
func Link(from *Scheduler, kind sim.Kind, to *Scheduler, target string) {
	source := from.sim.RootID()
	from.sim.OnOutput(func(ev sim.Event) {
		if ev.Kind() != kind {
			return
		}
		if err := to.enqueue(message{target: target, ev: ev, mode: keepTime, source: source}); err != nil {
			from.log.Warnf("[t=%s] Link to %s/%s dropped %s: %v", ev.Time(), to.sim.RootID(), target, ev, err)
		}
	})
}
