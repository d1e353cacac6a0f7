// Package miner models a crypto-currency mining rig: idle once switched on,
// drawing much more while mining.
package miner

import (
	"fmt"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment"
	"github.com/hemsim/hemsim/sim/scenario"
)

// Kinds are the operations accepted by the miner.
var Kinds = []sim.Kind{sim.SwitchOn, sim.MineOn, sim.MineOff, sim.SwitchOff}

// Config parameterises a miner.
type Config struct {
	IdlePower   float64
	MiningPower float64
}

// DefaultConfig returns a 60 W idle, 1450 W mining rig.
func DefaultConfig() Config { return Config{IdlePower: 60, MiningPower: 1450} }

func (c Config) Validate() error {
	if c.IdlePower < 0 || !(c.MiningPower > 0) {
		return fmt.Errorf("miner: idle power must be >= 0 and mining power > 0: %+v", c)
	}
	return nil
}

type mode int

const (
	off mode = iota
	idle
	mining
)

var modeNames = [...]string{off: "off", idle: "idle", mining: "mining"}

func (m mode) String() string { return modeNames[m] }

// Electricity is the miner's electricity model.
type Electricity struct {
	sim.Base
	cfg         Config
	mode        mode
	consumption *sim.Variable[float64]
}

func NewElectricity(id string, cfg Config) *Electricity {
	e := &Electricity{Base: sim.NewBase(id), cfg: cfg, consumption: sim.NewVariable(equipment.Consumption, 0.0)}
	e.Accept(Kinds...)
	e.Export(e.consumption)
	return e
}

// SetRunParameters reads "<id>.idlePower" and "<id>.miningPower".
func (e *Electricity) SetRunParameters(p sim.Params) error {
	var err error
	if e.cfg.IdlePower, err = p.Float(e.Param("idlePower"), e.cfg.IdlePower); err != nil {
		return err
	}
	if e.cfg.MiningPower, err = p.Float(e.Param("miningPower"), e.cfg.MiningPower); err != nil {
		return err
	}
	return e.cfg.Validate()
}

func (e *Electricity) Initialise(t sim.Time) {
	e.mode = off
	e.consumption.Set(t, 0)
}

func (e *Electricity) TimeAdvance() sim.Time     { return e.Advance(sim.Infinity) }
func (e *Electricity) Output() (sim.Event, bool) { return sim.Event{}, false }

func (e *Electricity) InternalTransition(elapsed sim.Time) {
	var p float64
	switch e.mode {
	case idle:
		p = e.cfg.IdlePower
	case mining:
		p = e.cfg.MiningPower
	}
	e.consumption.Set(e.Now(), p)
}

func (e *Electricity) ExternalTransition(elapsed sim.Time, ev sim.Event) {
	switch {
	case e.mode == off && ev.Kind() == sim.SwitchOn:
		e.mode = idle
	case e.mode == idle && ev.Kind() == sim.MineOn:
		e.mode = mining
	case e.mode == mining && ev.Kind() == sim.MineOff:
		e.mode = idle
	case e.mode != off && ev.Kind() == sim.SwitchOff:
		e.mode = off
	default:
		sim.UnexpectedEvent(e.ID(), e.mode, ev)
	}
	e.MarkDirty()
}

func NewPowerModel(name string, cfg Config) *sim.Coupled {
	return equipment.Wrap(name, NewElectricity(name+"-electricity", cfg), Kinds, []string{equipment.Consumption})
}

// NewUserConfig returns the default script: SwitchOn, MineOn, MineOff,
// SwitchOff.
func NewUserConfig() scenario.Config {
	sc := scenario.NewConfig(
		scenario.Step{Kind: sim.SwitchOn},
		scenario.Step{Kind: sim.MineOn},
		scenario.Step{Kind: sim.MineOff},
		scenario.Step{Kind: sim.SwitchOff},
	)
	sc.MeanStep = 2 * sim.Hour
	return sc
}

func NewController(name string) *equipment.Controller {
	return equipment.NewController(name, equipment.RelayID(name), "off", equipment.Table{
		"off":    {sim.SwitchOn: "idle"},
		"idle":   {sim.MineOn: "mining", sim.SwitchOff: "off"},
		"mining": {sim.MineOff: "idle", sim.SwitchOff: "off"},
	})
}

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
