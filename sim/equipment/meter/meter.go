// Package meter implements the household electric meter. It sums the power
// variables of every bound appliance on a fixed step and integrates them
// into energy totals.
package meter

import (
	"fmt"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment"
)

// ID is the conventional model ID of the meter.
const ID = "meter"

// Exported variable names.
const (
	CurrentConsumption = "currentConsumption" // W
	CurrentProduction  = "currentProduction"  // W
	NetPower           = "netPower"           // W, consumption minus production
	ConsumedEnergy     = "consumedEnergy"     // Wh
	ProducedEnergy     = "producedEnergy"     // Wh
)

// Variables lists every variable exported by the meter.
var Variables = []string{CurrentConsumption, CurrentProduction, NetPower, ConsumedEnergy, ProducedEnergy}

// DefaultStep is the evaluation period of the meter.
const DefaultStep = sim.Minute

// Reading is a snapshot of the meter.
type Reading struct {
	Time           sim.Time
	Consumption    float64
	Production     float64
	ConsumedEnergy float64
	ProducedEnergy float64
}

// Net returns consumption minus production.
func (r Reading) Net() float64 { return r.Consumption - r.Production }

func (r Reading) String() string {
	return fmt.Sprintf("%.1f W in, %.1f W out, %.1f Wh consumed, %.1f Wh produced",
		r.Consumption, r.Production, r.ConsumedEnergy, r.ProducedEnergy)
}

// Meter aggregates the Consumption and Production variables bound to it.
// Energy is integrated with the power read at the start of each step, so a
// change in an appliance is accounted for from the next step on.
type Meter struct {
	sim.Base
	step        sim.Time
	consumption *sim.ImportSet[float64]
	production  *sim.ImportSet[float64]

	current     Reading
	last        sim.Time
	started     bool
	ended       bool
	inW, outW   *sim.Variable[float64]
	net         *sim.Variable[float64]
	inWh, outWh *sim.Variable[float64]
}

// New returns a meter evaluating every step.
func New(id string, step sim.Time) *Meter {
	m := &Meter{
		Base:        sim.NewBase(id),
		step:        step,
		consumption: sim.NewImportSet[float64](equipment.Consumption),
		production:  sim.NewImportSet[float64](equipment.Production),
		inW:         sim.NewVariable(CurrentConsumption, 0.0),
		outW:        sim.NewVariable(CurrentProduction, 0.0),
		net:         sim.NewVariable(NetPower, 0.0),
		inWh:        sim.NewVariable(ConsumedEnergy, 0.0),
		outWh:       sim.NewVariable(ProducedEnergy, 0.0),
	}
	m.Import(m.consumption, m.production)
	m.Export(m.inW, m.outW, m.net, m.inWh, m.outWh)
	return m
}

// SetRunParameters reads "<id>.step".
func (m *Meter) SetRunParameters(p sim.Params) error {
	var err error
	if m.step, err = p.Duration(m.Param("step"), m.step); err != nil {
		return err
	}
	if m.step <= 0 {
		return fmt.Errorf("%s must be positive, got %s", m.Param("step"), m.step)
	}
	return nil
}

// Sources returns the bound power variables, consumption first.
func (m *Meter) Sources() []string {
	return append(m.consumption.Sources(), m.production.Sources()...)
}

// Reading returns the meter state as of its last evaluation.
func (m *Meter) Reading() Reading { return m.current }

func (m *Meter) Initialise(t sim.Time) {
	m.current = Reading{Time: t}
	m.last = t
	m.started = false
	m.ended = false
	m.publish()
}

// TimeAdvance returns zero before the first evaluation, which runs once
// every appliance has published its initial power.
func (m *Meter) TimeAdvance() sim.Time {
	if !m.started {
		return 0
	}
	return m.step
}

func (m *Meter) Output() (sim.Event, bool) { return sim.Event{}, false }

func (m *Meter) InternalTransition(elapsed sim.Time) {
	m.integrate(m.Now())
	m.current.Consumption = sum(m.consumption.Values())
	m.current.Production = sum(m.production.Values())
	m.started = true
	m.publish()
	m.Logger().Debugf("[t=%s] %s", m.Now(), m.current)
}

func (m *Meter) ExternalTransition(elapsed sim.Time, ev sim.Event) {
	sim.UnexpectedEvent(m.ID(), m.current, ev)
}

// EndSimulation accounts for the time elapsed since the last evaluation.
// Later calls have no effect.
func (m *Meter) EndSimulation(t sim.Time) {
	if m.ended {
		return
	}
	m.ended = true
	m.integrate(t)
	m.publish()
	m.Logger().Infof("[t=%s] final reading: %s", t, m.current)
}

func (m *Meter) integrate(t sim.Time) {
	if t <= m.last {
		return
	}
	h := (t - m.last).Hours()
	m.current.ConsumedEnergy += m.current.Consumption * h
	m.current.ProducedEnergy += m.current.Production * h
	m.last = t
	m.current.Time = t
}

func (m *Meter) publish() {
	t := m.current.Time
	m.inW.Set(t, m.current.Consumption)
	m.outW.Set(t, m.current.Production)
	m.net.Set(t, m.current.Net())
	m.inWh.Set(t, m.current.ConsumedEnergy)
	m.outWh.Set(t, m.current.ProducedEnergy)
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}
