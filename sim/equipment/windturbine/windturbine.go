// Package windturbine models a small wind turbine. A wind model samples the
// wind speed periodically; the electricity model converts it through the
// turbine's power curve while the turbine is on.
package windturbine

import (
	"fmt"
	"math"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment"
	"github.com/hemsim/hemsim/sim/scenario"
)

// WindSpeed is the exported wind speed, in m/s.
const WindSpeed = "windSpeed"

// Kinds are the operations accepted by the turbine.
var Kinds = []sim.Kind{sim.SwitchOn, sim.SwitchOff}

// Config parameterises a turbine and its site.
type Config struct {
	WindShape  float64  // Weibull k of the wind speed distribution
	WindMean   float64  // mean wind speed, m/s
	Period     sim.Time // wind sampling and power evaluation period
	CutIn      float64  // m/s
	Rated      float64  // m/s
	CutOut     float64  // m/s
	RatedPower float64  // W
}

// DefaultConfig returns an 1800 W turbine on a site averaging 6 m/s.
func DefaultConfig() Config {
	return Config{WindShape: 2, WindMean: 6, Period: 5 * sim.Minute, CutIn: 3, Rated: 12, CutOut: 25, RatedPower: 1800}
}

// Validate checks the wind shape, mean and period are positive.
func (c Config) Validate() error {
	if !(c.WindShape > 0) || !(c.WindMean > 0) || c.Period <= 0 {
		return fmt.Errorf("windturbine: wind shape, mean and period must be > 0: %+v", c)
	}
	if !(0 <= c.CutIn && c.CutIn < c.Rated && c.Rated < c.CutOut) || !(c.RatedPower > 0) {
		return fmt.Errorf("windturbine: need 0 <= cut-in < rated < cut-out and rated power > 0: %+v", c)
	}
	return nil
}

// Power returns the electrical power produced at wind speed v: zero below
// cut-in and from cut-out, cubic up to rated speed, rated power above.
func (c Config) Power(v float64) float64 {
	switch {
	case v < c.CutIn || v >= c.CutOut:
		return 0
	case v >= c.Rated:
		return c.RatedPower
	}
	lo := math.Pow(c.CutIn, 3)
	return c.RatedPower * (math.Pow(v, 3) - lo) / (math.Pow(c.Rated, 3) - lo)
}

// Wind samples the wind speed every period.
type Wind struct {
	sim.Base
	cfg     Config
	sampler scenario.WeibullSampler
	speed   *sim.Variable[float64]
}

// NewWind returns the wind speed model.
func NewWind(id string, cfg Config) *Wind {
	w := &Wind{
		Base:    sim.NewBase(id),
		cfg:     cfg,
		sampler: scenario.NewWeibullFromMean(cfg.WindShape, cfg.WindMean),
		speed:   sim.NewVariable(WindSpeed, 0.0),
	}
	w.Export(w.speed)
	return w
}

// SetRunParameters reads "<id>.mean", the mean wind speed.
func (w *Wind) SetRunParameters(p sim.Params) error {
	var err error
	if w.cfg.WindMean, err = p.Float(w.Param("mean"), w.cfg.WindMean); err != nil {
		return err
	}
	if err := w.cfg.Validate(); err != nil {
		return err
	}
	w.sampler = scenario.NewWeibullFromMean(w.cfg.WindShape, w.cfg.WindMean)
	return nil
}

func (w *Wind) Initialise(t sim.Time) {
	w.speed.Set(t, w.sampler.Sample(w.Rand()))
}

func (w *Wind) TimeAdvance() sim.Time     { return w.cfg.Period }
func (w *Wind) Output() (sim.Event, bool) { return sim.Event{}, false }

func (w *Wind) InternalTransition(elapsed sim.Time) {
	w.speed.Set(w.Now(), w.sampler.Sample(w.Rand()))
}

func (w *Wind) ExternalTransition(elapsed sim.Time, ev sim.Event) {
	sim.UnexpectedEvent(w.ID(), w.cfg.Period, ev)
}

type mode int

const (
	off mode = iota
	on
)

func (m mode) String() string {
	if m == on {
		return "on"
	}
	return "off"
}

// Electricity exports the turbine's production.
type Electricity struct {
	sim.Base
	cfg        Config
	mode       mode
	wind       *sim.Import[float64]
	production *sim.Variable[float64]
}

// NewElectricity returns the electricity model, importing WindSpeed.
func NewElectricity(id string, cfg Config) *Electricity {
	e := &Electricity{
		Base:       sim.NewBase(id),
		cfg:        cfg,
		wind:       sim.NewImport[float64](WindSpeed),
		production: sim.NewVariable(equipment.Production, 0.0),
	}
	e.Accept(Kinds...)
	e.Import(e.wind)
	e.Export(e.production)
	return e
}

func (e *Electricity) Initialise(t sim.Time) {
	e.mode = off
	e.production.Set(t, 0)
}

func (e *Electricity) TimeAdvance() sim.Time {
	if e.mode == off {
		return e.Advance(sim.Infinity)
	}
	return e.Advance(e.cfg.Period)
}

func (e *Electricity) Output() (sim.Event, bool) { return sim.Event{}, false }

func (e *Electricity) InternalTransition(elapsed sim.Time) {
	p := 0.0
	if e.mode == on {
		p = e.cfg.Power(e.wind.Value())
	}
	e.production.Set(e.Now(), p)
}

func (e *Electricity) ExternalTransition(elapsed sim.Time, ev sim.Event) {
	switch {
	case e.mode == off && ev.Kind() == sim.SwitchOn:
		e.mode = on
	case e.mode == on && ev.Kind() == sim.SwitchOff:
		e.mode = off
	default:
		sim.UnexpectedEvent(e.ID(), e.mode, ev)
	}
	e.MarkDirty()
}

// NewPowerModel composes the wind and electricity models of turbine name,
// exporting Production and WindSpeed.
func NewPowerModel(name string, cfg Config) *sim.Coupled {
	windID, elecID := name+"-wind", name+"-electricity"
	c := sim.NewCoupled(equipment.PowerID(name), NewWind(windID, cfg), NewElectricity(elecID, cfg))
	for _, k := range Kinds {
		c.ImportEvent(k, sim.To(elecID, k))
	}
	return c.
		Bind(sim.Var(windID, WindSpeed), sim.Var(elecID, WindSpeed)).
		ExportVariable(sim.Var(elecID, equipment.Production), equipment.Production).
		ExportVariable(sim.Var(windID, WindSpeed), WindSpeed)
}

// NewUserConfig returns the default script: on for a while, then off.
func NewUserConfig() scenario.Config {
	sc := scenario.NewConfig(scenario.Step{Kind: sim.SwitchOn}, scenario.Step{Kind: sim.SwitchOff})
	sc.MeanStep = 6 * sim.Hour
	return sc
}

// NewController returns the turbine's on/off control logic.
func NewController(name string) *equipment.Controller {
	return equipment.NewController(name, equipment.RelayID(name), "off", equipment.Table{
		"off": {sim.SwitchOn: "on"},
		"on":  {sim.SwitchOff: "off"},
	})
}

// NewUnit describes a wind turbine named name.
func NewUnit(name string, cfg Config, user scenario.Config) equipment.Unit {
	return equipment.Unit{
		Name:       name,
		Kinds:      Kinds,
		Variables:  []string{equipment.Production},
		Power:      func(n string) *sim.Coupled { return NewPowerModel(n, cfg) },
		User:       func(n string) *scenario.User { return scenario.NewUser(equipment.UserID(n), user) },
		Controller: func() equipment.Owner { return NewController(name) },
	}
}
