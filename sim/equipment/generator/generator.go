// Package generator models a fuel generator: a fuel tank drained while the
// generator runs, and an electricity model producing a fixed power while it
// runs and has fuel. An empty tank switches the generator off by itself.
package generator

import (
	"fmt"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment"
	"github.com/hemsim/hemsim/sim/equipment/reservoir"
	"github.com/hemsim/hemsim/sim/scenario"
)

// FuelLevel is the exported fuel level, in litres.
const FuelLevel = "fuelLevel"

// Kinds are the operations accepted by the generator.
var Kinds = []sim.Kind{sim.SwitchOn, sim.SwitchOff, sim.Refill}

// Config parameterises a generator.
type Config struct {
	Capacity    float64  // tank size, litres
	Consumption float64  // litres per hour while running
	Power       float64  // watts produced while running
	Step        sim.Time // fuel level republication period
}

// DefaultConfig returns a 4.5 L, 1.2 L/h, 2500 W generator.
func DefaultConfig() Config {
	return Config{Capacity: 4.5, Consumption: 1.2, Power: 2500, Step: sim.Minute}
}

// Validate checks every field is positive.
func (c Config) Validate() error {
	if !(c.Capacity > 0) || !(c.Consumption > 0) || !(c.Power >= 0) || c.Step <= 0 {
		return fmt.Errorf("generator: capacity, consumption and step must be > 0, power >= 0: %+v", c)
	}
	return nil
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

// Electricity exports the power produced by the generator.
type Electricity struct {
	sim.Base
	cfg        Config
	mode       mode
	fuel       *sim.Import[float64]
	production *sim.Variable[float64]
}

// NewElectricity returns the electricity model, importing FuelLevel.
func NewElectricity(id string, cfg Config) *Electricity {
	e := &Electricity{
		Base:       sim.NewBase(id),
		cfg:        cfg,
		fuel:       sim.NewImport[float64](FuelLevel),
		production: sim.NewVariable(equipment.Production, 0.0),
	}
	e.Accept(sim.SwitchOn, sim.SwitchOff)
	e.Import(e.fuel)
	e.Export(e.production)
	return e
}

func (e *Electricity) Initialise(t sim.Time) {
	e.mode = off
	e.production.Set(t, 0)
}

func (e *Electricity) TimeAdvance() sim.Time     { return e.Advance(sim.Infinity) }
func (e *Electricity) Output() (sim.Event, bool) { return sim.Event{}, false }

func (e *Electricity) InternalTransition(elapsed sim.Time) {
	p := 0.0
	if e.mode == on && e.fuel.Value() > 0 {
		p = e.cfg.Power
	}
	e.production.Set(e.Now(), p)
}

func (e *Electricity) ExternalTransition(elapsed sim.Time, ev sim.Event) {
	switch {
	case ev.Kind() == sim.SwitchOn && e.mode == off:
		e.mode = on
	case ev.Kind() == sim.SwitchOff:
		// The tank may have switched the generator off before its user.
		e.mode = off
	default:
		sim.UnexpectedEvent(e.ID(), e.mode, ev)
	}
	e.MarkDirty()
}

// NewFuel returns the fuel tank model.
func NewFuel(id string, cfg Config) *reservoir.Reservoir {
	return reservoir.New(id, reservoir.Config{
		Variable: FuelLevel,
		Capacity: cfg.Capacity,
		Initial:  cfg.Capacity,
		Step:     cfg.Step,
		Rates: map[sim.Kind]float64{
			sim.SwitchOn:  -cfg.Consumption,
			sim.SwitchOff: 0,
		},
		Refill:  sim.Refill,
		OnEmpty: sim.SwitchOff,
	})
}

// NewPowerModel composes the tank and the electricity model of appliance
// name. It accepts Kinds, exports Production and FuelLevel, and reports the
// SwitchOff of an empty tank.
func NewPowerModel(name string, cfg Config) *sim.Coupled {
	fuelID, elecID := name+"-fuel", name+"-electricity"
	return sim.NewCoupled(equipment.PowerID(name), NewFuel(fuelID, cfg), NewElectricity(elecID, cfg)).
		ImportEvent(sim.SwitchOn, sim.To(fuelID, sim.SwitchOn), sim.To(elecID, sim.SwitchOn)).
		ImportEvent(sim.SwitchOff, sim.To(fuelID, sim.SwitchOff), sim.To(elecID, sim.SwitchOff)).
		ImportEvent(sim.Refill, sim.To(fuelID, sim.Refill)).
		Route(sim.From(fuelID, sim.SwitchOff), sim.To(elecID, sim.SwitchOff)).
		Bind(sim.Var(fuelID, FuelLevel), sim.Var(elecID, FuelLevel)).
		ExportVariable(sim.Var(elecID, equipment.Production), equipment.Production).
		ExportVariable(sim.Var(fuelID, FuelLevel), FuelLevel).
		ExportEvent(sim.From(fuelID, sim.SwitchOff), sim.SwitchOff)
}

// NewUserConfig returns the default script: start, refill, stop.
func NewUserConfig() scenario.Config {
	cfg := scenario.NewConfig(
		scenario.Step{Kind: sim.SwitchOn},
		scenario.Step{Kind: sim.Refill},
		scenario.Step{Kind: sim.SwitchOff},
	)
	cfg.MeanStep = sim.Hour
	return cfg
}

// NewController returns the generator's control logic.
func NewController(name string) *equipment.Controller {
	return equipment.NewController(name, equipment.RelayID(name), "off", equipment.Table{
		"off": {sim.SwitchOn: "on", sim.Refill: "off"},
		"on":  {sim.SwitchOff: "off", sim.Refill: "on"},
	})
}

// NewUnit describes a generator named name.
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
