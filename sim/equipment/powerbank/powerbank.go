// Package powerbank models a home battery. It charges from and discharges
// into the household, and falls back to standby by itself when full or
// empty.
package powerbank

import (
	"fmt"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment"
	"github.com/hemsim/hemsim/sim/equipment/reservoir"
	"github.com/hemsim/hemsim/sim/scenario"
)

// Charge is the exported stored energy, in watt-hours.
const Charge = "charge"

// Kinds are the operations accepted by the power bank.
var Kinds = []sim.Kind{sim.StartCharging, sim.StartDischarging, sim.Standby}

// Config parameterises a power bank.
type Config struct {
	Capacity       float64  // Wh
	Initial        float64  // Wh stored at start
	ChargePower    float64  // W drawn while charging
	DischargePower float64  // W delivered while discharging
	Step           sim.Time // charge republication period
}

// DefaultConfig returns a half-charged 5 kWh bank charging at 1000 W and
// discharging at 800 W.
func DefaultConfig() Config {
	return Config{Capacity: 5000, Initial: 2500, ChargePower: 1000, DischargePower: 800, Step: sim.Minute}
}

// Validate checks the capacity is positive and the initial charge fits in it.
func (c Config) Validate() error {
	if !(c.Capacity > 0) || c.Initial < 0 || c.Initial > c.Capacity {
		return fmt.Errorf("powerbank: need 0 <= initial <= capacity, capacity > 0: %+v", c)
	}
	if !(c.ChargePower > 0) || !(c.DischargePower > 0) || c.Step <= 0 {
		return fmt.Errorf("powerbank: charge and discharge power and step must be > 0: %+v", c)
	}
	return nil
}

type mode int

const (
	standby mode = iota
	charging
	discharging
)

var modeNames = [...]string{standby: "standby", charging: "charging", discharging: "discharging"}

func (m mode) String() string { return modeNames[m] }

// Electricity exports the power drawn and delivered by the bank.
type Electricity struct {
	sim.Base
	cfg         Config
	mode        mode
	charge      *sim.Import[float64]
	consumption *sim.Variable[float64]
	production  *sim.Variable[float64]
}

// NewElectricity returns the electricity model, importing Charge.
func NewElectricity(id string, cfg Config) *Electricity {
	e := &Electricity{
		Base:        sim.NewBase(id),
		cfg:         cfg,
		charge:      sim.NewImport[float64](Charge),
		consumption: sim.NewVariable(equipment.Consumption, 0.0),
		production:  sim.NewVariable(equipment.Production, 0.0),
	}
	e.Accept(Kinds...)
	e.Import(e.charge)
	e.Export(e.consumption, e.production)
	return e
}

func (e *Electricity) Initialise(t sim.Time) {
	e.mode = standby
	e.consumption.Set(t, 0)
	e.production.Set(t, 0)
}

func (e *Electricity) TimeAdvance() sim.Time     { return e.Advance(sim.Infinity) }
func (e *Electricity) Output() (sim.Event, bool) { return sim.Event{}, false }

func (e *Electricity) InternalTransition(elapsed sim.Time) {
	var in, out float64
	lv := e.charge.Value()
	switch {
	case e.mode == charging && lv < e.cfg.Capacity:
		in = e.cfg.ChargePower
	case e.mode == discharging && lv > 0:
		out = e.cfg.DischargePower
	}
	e.consumption.Set(e.Now(), in)
	e.production.Set(e.Now(), out)
}

func (e *Electricity) ExternalTransition(elapsed sim.Time, ev sim.Event) {
	switch ev.Kind() {
	case sim.StartCharging:
		if e.mode == charging {
			sim.UnexpectedEvent(e.ID(), e.mode, ev)
		}
		e.mode = charging
	case sim.StartDischarging:
		if e.mode == discharging {
			sim.UnexpectedEvent(e.ID(), e.mode, ev)
		}
		e.mode = discharging
	case sim.Standby:
		// Reported by both the user and a full or empty bank.
		e.mode = standby
	default:
		sim.UnexpectedEvent(e.ID(), e.mode, ev)
	}
	e.MarkDirty()
}

// NewStorage returns the charge model.
func NewStorage(id string, cfg Config) *reservoir.Reservoir {
	return reservoir.New(id, reservoir.Config{
		Variable: Charge,
		Capacity: cfg.Capacity,
		Initial:  cfg.Initial,
		Step:     cfg.Step,
		Rates: map[sim.Kind]float64{
			sim.StartCharging:    cfg.ChargePower,
			sim.StartDischarging: -cfg.DischargePower,
			sim.Standby:          0,
		},
		OnEmpty: sim.Standby,
		OnFull:  sim.Standby,
	})
}

// NewPowerModel composes the storage and electricity models of bank name.
// It exports Consumption, Production and Charge, and reports Standby when
// the bank fills up or runs empty.
func NewPowerModel(name string, cfg Config) *sim.Coupled {
	storeID, elecID := name+"-storage", name+"-electricity"
	c := sim.NewCoupled(equipment.PowerID(name), NewStorage(storeID, cfg), NewElectricity(elecID, cfg))
	for _, k := range Kinds {
		c.ImportEvent(k, sim.To(storeID, k), sim.To(elecID, k))
	}
	return c.
		Route(sim.From(storeID, sim.Standby), sim.To(elecID, sim.Standby)).
		Bind(sim.Var(storeID, Charge), sim.Var(elecID, Charge)).
		ExportVariable(sim.Var(elecID, equipment.Consumption), equipment.Consumption).
		ExportVariable(sim.Var(elecID, equipment.Production), equipment.Production).
		ExportVariable(sim.Var(storeID, Charge), Charge).
		ExportEvent(sim.From(storeID, sim.Standby), sim.Standby)
}

// NewUserConfig returns the default script: charge, pause, discharge, pause.
func NewUserConfig() scenario.Config {
	sc := scenario.NewConfig(
		scenario.Step{Kind: sim.StartCharging},
		scenario.Step{Kind: sim.Standby},
		scenario.Step{Kind: sim.StartDischarging},
		scenario.Step{Kind: sim.Standby},
	)
	sc.MeanStep = 2 * sim.Hour
	return sc
}

// NewController returns the power bank's control logic.
func NewController(name string) *equipment.Controller {
	return equipment.NewController(name, equipment.RelayID(name), "standby", equipment.Table{
		"standby":     {sim.StartCharging: "charging", sim.StartDischarging: "discharging", sim.Standby: "standby"},
		"charging":    {sim.StartDischarging: "discharging", sim.Standby: "standby"},
		"discharging": {sim.StartCharging: "charging", sim.Standby: "standby"},
	})
}

// NewUnit describes a power bank named name.
func NewUnit(name string, cfg Config, user scenario.Config) equipment.Unit {
	return equipment.Unit{
		Name:       name,
		Kinds:      Kinds,
		Variables:  []string{equipment.Consumption, equipment.Production},
		Outputs:    []sim.Kind{sim.Standby},
		Power:      func(n string) *sim.Coupled { return NewPowerModel(n, cfg) },
		User:       func(n string) *scenario.User { return scenario.NewUser(equipment.UserID(n), user) },
		Controller: func() equipment.Owner { return NewController(name) },
	}
}
