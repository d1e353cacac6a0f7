// Package dishwasher models a dishwasher running one of a set of washing
// programs. A program ends by itself after its duration and reports it with
// ProgramDone.
package dishwasher

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment"
	"github.com/hemsim/hemsim/sim/scenario"
)

// ProgramVariable is the exported name of the running program, empty when idle.
const ProgramVariable = "program"

// Kinds are the operations accepted by the dishwasher.
var Kinds = []sim.Kind{sim.SwitchOn, sim.SetProgram, sim.SwitchOff}

// Program is a washing cycle.
type Program struct {
	Power    float64  // watts drawn while washing
	Duration sim.Time // length of the cycle
}

// Config parameterises a dishwasher.
type Config struct {
	IdlePower float64 // watts drawn while on and not washing
	Programs  map[string]Program
}

// DefaultConfig returns the eco, intensive and quick programs.
func DefaultConfig() Config {
	return Config{
		IdlePower: 5,
		Programs: map[string]Program{
			"eco":       {Power: 1200, Duration: 2 * sim.Hour},
			"intensive": {Power: 2000, Duration: sim.Hour + 30*sim.Minute},
			"quick":     {Power: 1800, Duration: 30 * sim.Minute},
		},
	}
}

// Validate checks there is at least one program and every figure is positive.
func (c Config) Validate() error {
	if c.IdlePower < 0 {
		return fmt.Errorf("dishwasher: idle power must be >= 0, got %v", c.IdlePower)
	}
	if len(c.Programs) == 0 {
		return fmt.Errorf("dishwasher: no program")
	}
	for name, p := range c.Programs {
		if !(p.Power > 0) || p.Duration <= 0 {
			return fmt.Errorf("dishwasher: program %q needs power > 0 and duration > 0", name)
		}
	}
	return nil
}

// ProgramNames returns the program names, sorted.
func (c Config) ProgramNames() []string {
	names := make([]string, 0, len(c.Programs))
	for n := range c.Programs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type mode int

const (
	off mode = iota
	on
	washing
)

var modeNames = [...]string{off: "off", on: "on", washing: "washing"}

func (m mode) String() string { return modeNames[m] }

// Electricity is the dishwasher's electricity model.
type Electricity struct {
	sim.Base
	cfg         Config
	mode        mode
	program     string
	ends        sim.Time
	consumption *sim.Variable[float64]
	running     *sim.Variable[string]
}

// NewElectricity returns the electricity model. It emits ProgramDone.
func NewElectricity(id string, cfg Config) *Electricity {
	e := &Electricity{
		Base:        sim.NewBase(id),
		cfg:         cfg,
		consumption: sim.NewVariable(equipment.Consumption, 0.0),
		running:     sim.NewVariable(ProgramVariable, ""),
	}
	e.Accept(Kinds...)
	e.Emit(sim.ProgramDone)
	e.Export(e.consumption, e.running)
	return e
}

func (e *Electricity) Initialise(t sim.Time) {
	e.mode = off
	e.program = ""
	e.ends = sim.Infinity
	e.consumption.Set(t, 0)
	e.running.Set(t, "")
}

func (e *Electricity) done() bool { return e.mode == washing && e.Now() >= e.ends }

func (e *Electricity) TimeAdvance() sim.Time {
	if e.mode != washing {
		return e.Advance(sim.Infinity)
	}
	return e.Advance(e.ends - e.Now())
}

func (e *Electricity) Output() (sim.Event, bool) {
	if !e.done() {
		return sim.Event{}, false
	}
	return sim.NewEvent(sim.ProgramDone, e.Now(), sim.Payload{Label: e.program}), true
}

func (e *Electricity) InternalTransition(elapsed sim.Time) {
	if e.done() {
		e.Logger().Infof("[t=%s] program %s done", e.Now(), e.program)
		e.mode = on
		e.program = ""
		e.ends = sim.Infinity
	}
	var p float64
	switch e.mode {
	case on:
		p = e.cfg.IdlePower
	case washing:
		p = e.cfg.Programs[e.program].Power
	}
	e.consumption.Set(e.Now(), p)
	e.running.Set(e.Now(), e.program)
}

func (e *Electricity) ExternalTransition(elapsed sim.Time, ev sim.Event) {
	switch {
	case e.mode == off && ev.Kind() == sim.SwitchOn:
		e.mode = on
	case e.mode == on && ev.Kind() == sim.SetProgram:
		prog, ok := e.cfg.Programs[ev.Label()]
		if !ok {
			sim.UnexpectedEvent(e.ID(), e.mode, ev)
		}
		e.mode = washing
		e.program = ev.Label()
		e.ends = e.Now() + prog.Duration
	case e.mode != off && ev.Kind() == sim.SwitchOff:
		if e.mode == washing {
			e.Logger().Infof("[t=%s] program %s interrupted", e.Now(), e.program)
		}
		e.mode = off
		e.program = ""
		e.ends = sim.Infinity
	default:
		sim.UnexpectedEvent(e.ID(), e.mode, ev)
	}
	e.MarkDirty()
}

// NewPowerModel returns the power model of dishwasher name, exporting
// Consumption, ProgramVariable and ProgramDone.
func NewPowerModel(name string, cfg Config) *sim.Coupled {
	return equipment.Wrap(name, NewElectricity(name+"-electricity", cfg), Kinds,
		[]string{equipment.Consumption, ProgramVariable}, sim.ProgramDone)
}

// Planner is implemented by owners that schedule a program ahead of time.
type Planner interface {
	Plan(program string, deadline sim.Time) error
}

// NewUserConfig returns the default script: SwitchOn, SetProgram with a
// random program, SwitchOff. On SetProgram the user also plans the program
// on its owner, with the time it is expected to end as deadline.
func NewUserConfig(cfg Config) scenario.Config {
	sc := scenario.NewConfig(
		scenario.Step{Kind: sim.SwitchOn},
		scenario.Step{Kind: sim.SetProgram, Labels: cfg.ProgramNames()},
		scenario.Step{Kind: sim.SwitchOff},
	)
	sc.MeanStep = 3 * sim.Hour
	sc.Hooks = map[sim.Kind]scenario.Hook{
		sim.SetProgram: func(owner any, ev sim.Event) error {
			p, ok := owner.(Planner)
			if !ok {
				return fmt.Errorf("owner %T cannot plan programs", owner)
			}
			return p.Plan(ev.Label(), ev.Time()+cfg.Programs[ev.Label()].Duration)
		},
	}
	return sc
}

// Plan is a program scheduled by a Controller.
type Plan struct {
	Program  string
	Deadline sim.Time
}

// Controller is the dishwasher's control logic. Besides the operations it
// keeps the programs planned by its user.
type Controller struct {
	*equipment.Controller
	programs map[string]Program

	mu    sync.Mutex
	plans []Plan
}

// NewController returns the control logic of dishwasher name.
func NewController(name string, cfg Config) *Controller {
	return &Controller{
		Controller: equipment.NewController(name, equipment.RelayID(name), "off", equipment.Table{
			"off":     {sim.SwitchOn: "on"},
			"on":      {sim.SetProgram: "washing", sim.SwitchOff: "off"},
			"washing": {sim.SwitchOff: "off", sim.ProgramDone: "on"},
		}),
		programs: cfg.Programs,
	}
}

// Plan records that program must be finished by deadline.
func (c *Controller) Plan(program string, deadline sim.Time) error {
	if _, ok := c.programs[program]; !ok {
		return fmt.Errorf("%s: unknown program %q", c.Name(), program)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans = append(c.plans, Plan{Program: program, Deadline: deadline})
	return nil
}

// Plans returns the programs planned so far.
func (c *Controller) Plans() []Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Plan(nil), c.plans...)
}

// NewUnit describes a dishwasher named name.
func NewUnit(name string, cfg Config, user scenario.Config) equipment.Unit {
	return equipment.Unit{
		Name:       name,
		Kinds:      Kinds,
		Variables:  []string{equipment.Consumption},
		Outputs:    []sim.Kind{sim.ProgramDone},
		Power:      func(n string) *sim.Coupled { return NewPowerModel(n, cfg) },
		User:       func(n string) *scenario.User { return scenario.NewUser(equipment.UserID(n), user) },
		Controller: func() equipment.Owner { return NewController(name, cfg) },
	}
}
