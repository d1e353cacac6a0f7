package household

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment"
	"github.com/hemsim/hemsim/sim/equipment/meter"
	"github.com/hemsim/hemsim/sim/equipment/relay"
	"github.com/hemsim/hemsim/sim/realtime"
)

// Units returns the descriptors of every appliance, in configuration order.
func (c Config) Units() ([]equipment.Unit, error) {
	units := make([]equipment.Unit, 0, len(c.Appliances))
	for _, a := range c.Appliances {
		u, err := a.Unit()
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

// meterize adds the meter to root's bindings: every power variable of the
// models named in units is bound to the meter input of the same name, and
// the meter variables are re-exported on root.
func meterize(root *sim.Coupled, models []string, units []equipment.Unit) *sim.Coupled {
	for i, u := range units {
		for _, v := range u.Variables {
			root.Bind(sim.Var(models[i], v), sim.Var(meter.ID, v))
		}
	}
	for _, v := range meter.Variables {
		root.ExportVariable(sim.Var(meter.ID, v), v)
	}
	return root
}

// BuildMIL composes the whole household in one tree: one unit per
// appliance, user and power model together, and the meter. Appliance
// outputs such as ProgramDone are re-exported by the root.
func BuildMIL(cfg Config) (*sim.Coupled, error) {
	units, err := cfg.Units()
	if err != nil {
		return nil, err
	}
	children := make([]sim.Model, 0, len(units)+1)
	names := make([]string, len(units))
	for i, u := range units {
		children = append(children, u.Assemble())
		names[i] = u.Name
	}
	children = append(children, meter.New(meter.ID, sim.FromDuration(cfg.Meter.Step)))
	root := meterize(sim.NewCoupled(cfg.Name, children...), names, units)
	for _, u := range units {
		for _, k := range u.Outputs {
			root.ExportEvent(sim.From(u.Name, k), k)
		}
	}
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("household %q: %w", cfg.Name, err)
	}
	return root, nil
}

// Host is the subsystem of one appliance in a SIL deployment: its user
// model, owned by the controller, and the state relay.
type Host struct {
	Unit      equipment.Unit
	Owner     equipment.Owner
	Scheduler *realtime.Scheduler
}

// SIL is a household deployed as independently paced subsystems.
type SIL struct {
	Name     string
	RunID    uuid.UUID
	Metering *realtime.Scheduler
	Hosts    []*Host
}

// BuildSIL deploys the household: a metering subsystem holding every power
// model and the meter, and one subsystem per appliance. Operations performed
// by a controller go to its relay, which the metering subsystem receives
// through a Link; events reported by a power model are observed by its
// controller. Every subsystem shares the run ID and seed of simCfg.
func BuildSIL(cfg Config, simCfg sim.Config, rt realtime.Config) (*SIL, error) {
	units, err := cfg.Units()
	if err != nil {
		return nil, err
	}
	if simCfg.RunID == uuid.Nil {
		simCfg.RunID = uuid.New()
	}
	if simCfg.Params == nil {
		simCfg.Params = sim.Params{}
	}

	children := make([]sim.Model, 0, len(units)+1)
	powers := make([]string, len(units))
	for i, u := range units {
		children = append(children, u.Power(u.Name))
		powers[i] = equipment.PowerID(u.Name)
	}
	children = append(children, meter.New(meter.ID, sim.FromDuration(cfg.Meter.Step)))
	root := meterize(sim.NewCoupled(cfg.Name, children...), powers, units)
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("household %q: %w", cfg.Name, err)
	}
	ms, err := sim.NewSimulator(root, simCfg)
	if err != nil {
		return nil, err
	}
	metering, err := realtime.New(ms, rt)
	if err != nil {
		return nil, err
	}

	out := &SIL{Name: cfg.Name, RunID: simCfg.RunID, Metering: metering}
	for _, u := range units {
		u := u
		h, err := deploy(u, simCfg, rt)
		if err != nil {
			return nil, err
		}
		for _, k := range u.Kinds {
			realtime.Link(h.Scheduler, k, metering, equipment.PowerID(u.Name))
		}
		owner := h.Owner
		if err := ms.Watch(equipment.PowerID(u.Name), func(ev sim.Event) {
			logrus.Debugf("[t=%s] %s reported %s", ev.Time(), u.Name, ev)
			owner.Observe(ev)
		}); err != nil {
			return nil, err
		}
		out.Hosts = append(out.Hosts, h)
	}
	return out, nil
}

func deploy(u equipment.Unit, simCfg sim.Config, rt realtime.Config) (*Host, error) {
	owner := u.Controller()
	userID, relayID := equipment.UserID(u.Name), equipment.RelayID(u.Name)
	root := sim.NewCoupled(u.Name, u.User(u.Name), relay.New(relayID, u.Kinds...))
	for _, k := range u.Kinds {
		root.ExportEvent(sim.From(relayID, k), k)
	}
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("appliance %q: %w", u.Name, err)
	}
	simCfg.Params = simCfg.Params.Merge(sim.Params{sim.ParamKey(userID, sim.OwnerParam): owner})
	s, err := sim.NewSimulator(root, simCfg)
	if err != nil {
		return nil, err
	}
	sched, err := realtime.New(s, rt)
	if err != nil {
		return nil, err
	}
	owner.Connect(sched)
	return &Host{Unit: u, Owner: owner, Scheduler: sched}, nil
}

// Schedulers returns every subsystem's scheduler, metering first.
func (s *SIL) Schedulers() []*realtime.Scheduler {
	out := []*realtime.Scheduler{s.Metering}
	for _, h := range s.Hosts {
		out = append(out, h.Scheduler)
	}
	return out
}

// Host returns the subsystem of the named appliance.
func (s *SIL) Host(name string) (*Host, bool) {
	for _, h := range s.Hosts {
		if h.Unit.Name == name {
			return h, true
		}
	}
	return nil, false
}

// Run arms every subsystem on wall start and runs them, with companions,
// until the simulated window [start, end] is over.
func (s *SIL) Run(ctx context.Context, wall time.Time, start, end sim.Time, companions ...realtime.Runner) error {
	if err := realtime.ArmAll(wall, start, end, s.Schedulers()...); err != nil {
		return err
	}
	return realtime.RunAll(ctx, s.Schedulers(), companions...)
}
