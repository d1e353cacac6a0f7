// Package reservoir models a bounded level that fills or drains at a rate
// selected by operation events: the fuel tank of a generator, the charge of
// a power bank. The level is integrated exactly between events, republished
// on a fixed step while it changes, and reaching a bound is reported with an
// event.
package reservoir

import (
	"fmt"
	"math"

	"github.com/hemsim/hemsim/sim"
)

// epsilon absorbs rounding when the level is projected onto a bound.
const epsilon = 1e-9

// Config parameterises a Reservoir.
type Config struct {
	Variable string   // name of the exported level
	Capacity float64  // upper bound, the lower bound is zero
	Initial  float64  // level at simulation start
	Step     sim.Time // republication period while the level changes
	// Rates maps each accepted operation to the level change per hour it
	// selects: negative drains, positive fills, zero holds.
	Rates map[sim.Kind]float64
	// Refill adds its payload value to the level, or fills to Capacity when
	// the payload is zero. sim.KindUnknown disables it.
	Refill sim.Kind
	// OnEmpty and OnFull are emitted when draining reaches zero or filling
	// reaches Capacity; the rate is then held at zero.
	OnEmpty sim.Kind
	OnFull  sim.Kind
}

// Validate checks the bounds and step.
func (c Config) Validate() error {
	if c.Variable == "" {
		return fmt.Errorf("reservoir variable name is empty")
	}
	if !(c.Capacity > 0) {
		return fmt.Errorf("reservoir %s: capacity must be > 0, got %v", c.Variable, c.Capacity)
	}
	if c.Initial < 0 || c.Initial > c.Capacity {
		return fmt.Errorf("reservoir %s: initial level %v outside [0, %v]", c.Variable, c.Initial, c.Capacity)
	}
	if c.Step <= 0 {
		return fmt.Errorf("reservoir %s: step must be > 0, got %s", c.Variable, c.Step)
	}
	return nil
}

type flow struct {
	rate  float64
	level float64
}

func (f flow) String() string { return fmt.Sprintf("level %.4g at %+.4g/h", f.level, f.rate) }

// Reservoir is the level model.
type Reservoir struct {
	sim.Base
	cfg   Config
	out   *sim.Variable[float64]
	level float64
	rate  float64
	last  sim.Time
}

// New returns a Reservoir exporting cfg.Variable.
func New(id string, cfg Config) *Reservoir {
	r := &Reservoir{Base: sim.NewBase(id), cfg: cfg, out: sim.NewVariable(cfg.Variable, cfg.Initial)}
	for k := range cfg.Rates {
		r.Accept(k)
	}
	if cfg.Refill.Valid() {
		r.Accept(cfg.Refill)
	}
	if cfg.OnEmpty.Valid() {
		r.Emit(cfg.OnEmpty)
	}
	if cfg.OnFull.Valid() {
		r.Emit(cfg.OnFull)
	}
	r.Export(r.out)
	return r
}

// SetRunParameters validates the configuration before the run.
func (r *Reservoir) SetRunParameters(p sim.Params) error {
	var err error
	if r.cfg.Initial, err = p.Float(r.Param("initial"), r.cfg.Initial); err != nil {
		return err
	}
	return r.cfg.Validate()
}

// Level returns the level at the last transition.
func (r *Reservoir) Level() float64 { return r.level }

// Rate returns the current rate per hour.
func (r *Reservoir) Rate() float64 { return r.rate }

func (r *Reservoir) Initialise(t sim.Time) {
	r.level = r.cfg.Initial
	r.rate = 0
	r.last = t
	r.out.Set(t, r.level)
}

// project returns the level at t without mutating state.
func (r *Reservoir) project(t sim.Time) float64 {
	lv := r.level + r.rate*(t-r.last).Hours()
	switch {
	case lv <= epsilon:
		return 0
	case lv >= r.cfg.Capacity-epsilon:
		return r.cfg.Capacity
	}
	return lv
}

func (r *Reservoir) integrate() {
	r.level = r.project(r.Now())
	r.last = r.Now()
}

// untilBound returns the time until the current rate reaches a bound.
func (r *Reservoir) untilBound() sim.Time {
	var hours float64
	switch {
	case r.rate < 0:
		hours = r.level / -r.rate
	case r.rate > 0:
		hours = (r.cfg.Capacity - r.level) / r.rate
	default:
		return sim.Infinity
	}
	return sim.Time(math.Ceil(hours * float64(sim.Hour)))
}

func (r *Reservoir) TimeAdvance() sim.Time {
	if r.rate == 0 {
		return r.Advance(sim.Infinity)
	}
	return r.Advance(min(r.cfg.Step, r.untilBound()))
}

// bound returns the event reporting that the level reaches a bound at t.
func (r *Reservoir) bound(t sim.Time) (sim.Kind, bool) {
	lv := r.project(t)
	switch {
	case r.rate < 0 && lv == 0 && r.cfg.OnEmpty.Valid():
		return r.cfg.OnEmpty, true
	case r.rate > 0 && lv == r.cfg.Capacity && r.cfg.OnFull.Valid():
		return r.cfg.OnFull, true
	}
	return sim.KindUnknown, false
}

func (r *Reservoir) Output() (sim.Event, bool) {
	k, ok := r.bound(r.Now())
	if !ok {
		return sim.Event{}, false
	}
	return sim.NewEvent(k, r.Now(), sim.Payload{Value: r.project(r.Now())}), true
}

func (r *Reservoir) InternalTransition(elapsed sim.Time) {
	r.integrate()
	if (r.rate < 0 && r.level == 0) || (r.rate > 0 && r.level == r.cfg.Capacity) {
		r.Logger().Infof("[t=%s] %s reached %v", r.Now(), r.cfg.Variable, r.level)
		r.rate = 0
	}
	r.out.Set(r.Now(), r.level)
}

func (r *Reservoir) ExternalTransition(elapsed sim.Time, ev sim.Event) {
	r.integrate()
	switch k := ev.Kind(); {
	case r.cfg.Refill.Valid() && k == r.cfg.Refill:
		add := ev.Value()
		if add <= 0 {
			add = r.cfg.Capacity
		}
		r.level = math.Min(r.cfg.Capacity, r.level+add)
	default:
		rate, ok := r.cfg.Rates[k]
		if !ok {
			sim.UnexpectedEvent(r.ID(), flow{rate: r.rate, level: r.level}, ev)
		}
		r.rate = rate
	}
	r.MarkDirty()
}
