// Package oven models an electric oven: switched on with a target
// temperature, it draws a fixed power until switched off.
package oven

import (
	"fmt"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment"
	"github.com/hemsim/hemsim/sim/scenario"
)

// TargetTemperature is the exported thermostat setting, in degrees Celsius.
const TargetTemperature = "targetTemperature"

// Kinds are the operations accepted by the oven.
var Kinds = []sim.Kind{sim.SwitchOn, sim.SetTemperature, sim.SwitchOff}

// Config parameterises an oven.
type Config struct {
	Power       float64 // watts drawn while on
	Temperature float64 // target when switched on without one
}

// DefaultConfig returns a 2000 W oven defaulting to 180 degrees.
func DefaultConfig() Config { return Config{Power: 2000, Temperature: 180} }

// Validate checks the power is positive.
func (c Config) Validate() error {
	if !(c.Power > 0) {
		return fmt.Errorf("oven: power must be > 0, got %v", c.Power)
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

// Electricity is the oven's electricity model.
type Electricity struct {
	sim.Base
	cfg         Config
	mode        mode
	target      float64
	consumption *sim.Variable[float64]
	temperature *sim.Variable[float64]
}

// NewElectricity returns the electricity model exporting Consumption and
// TargetTemperature.
func NewElectricity(id string, cfg Config) *Electricity {
	e := &Electricity{
		Base:        sim.NewBase(id),
		cfg:         cfg,
		consumption: sim.NewVariable(equipment.Consumption, 0.0),
		temperature: sim.NewVariable(TargetTemperature, 0.0),
	}
	e.Accept(Kinds...)
	e.Export(e.consumption, e.temperature)
	return e
}

// SetRunParameters reads "<id>.power".
func (e *Electricity) SetRunParameters(p sim.Params) error {
	var err error
	if e.cfg.Power, err = p.Float(e.Param("power"), e.cfg.Power); err != nil {
		return err
	}
	return e.cfg.Validate()
}

func (e *Electricity) Initialise(t sim.Time) {
	e.mode = off
	e.target = 0
	e.consumption.Set(t, 0)
	e.temperature.Set(t, 0)
}

func (e *Electricity) TimeAdvance() sim.Time     { return e.Advance(sim.Infinity) }
func (e *Electricity) Output() (sim.Event, bool) { return sim.Event{}, false }

func (e *Electricity) InternalTransition(elapsed sim.Time) {
	p := 0.0
	if e.mode == on {
		p = e.cfg.Power
	}
	e.consumption.Set(e.Now(), p)
	e.temperature.Set(e.Now(), e.target)
}

func (e *Electricity) ExternalTransition(elapsed sim.Time, ev sim.Event) {
	switch {
	case e.mode == off && ev.Kind() == sim.SwitchOn:
		e.mode = on
		e.target = e.cfg.Temperature
		if ev.Value() > 0 {
			e.target = ev.Value()
		}
	case e.mode == on && ev.Kind() == sim.SetTemperature:
		e.target = ev.Value()
	case e.mode == on && ev.Kind() == sim.SwitchOff:
		e.mode = off
		e.target = 0
	default:
		sim.UnexpectedEvent(e.ID(), e.mode, ev)
	}
	e.MarkDirty()
}

// NewPowerModel returns the power model of oven name.
func NewPowerModel(name string, cfg Config) *sim.Coupled {
	return equipment.Wrap(name, NewElectricity(name+"-electricity", cfg), Kinds,
		[]string{equipment.Consumption, TargetTemperature})
}

// NewUserConfig returns the default script: SwitchOn(180), SetTemperature(200),
// SwitchOff.
func NewUserConfig() scenario.Config {
	return scenario.NewConfig(
		scenario.Step{Kind: sim.SwitchOn, Payload: sim.Payload{Value: 180}},
		scenario.Step{Kind: sim.SetTemperature, Payload: sim.Payload{Value: 200}},
		scenario.Step{Kind: sim.SwitchOff},
	)
}

// NewController returns the oven's control logic.
func NewController(name string) *equipment.Controller {
	return equipment.NewController(name, equipment.RelayID(name), "off", equipment.Table{
		"off": {sim.SwitchOn: "on"},
		"on":  {sim.SetTemperature: "on", sim.SwitchOff: "off"},
	})
}

// NewUnit describes an oven named name.
func NewUnit(name string, cfg Config, user scenario.Config) equipment.Unit {
	return equipment.Unit{
		Name:       name,
		Kinds:      Kinds,
		Variables:  []string{equipment.Consumption},
		Power:      func(n string) *sim.Coupled { return NewPowerModel(n, cfg) },
		User:       func(n string) *scenario.User { return scenario.NewUser(equipment.UserID(n), user) },
		Controller: func() equipment.Owner { return NewController(name) },
	}
}
