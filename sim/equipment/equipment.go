// Package equipment holds what every household appliance shares: the names
// of exported power variables, the host-side Controller that owns an
// appliance's user model, and the Unit descriptor from which MIL and SIL
// assemblies are built.
//
// Appliances live in sub-packages (oven, dishwasher, miner, generator,
// powerbank, windturbine); the meter aggregates their power.
package equipment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/scenario"
)

// Names of the power variables exported by electricity models, in watts.
const (
	Consumption = "consumption"
	Production  = "production"
)

var (
	ErrInvalidOperation = errors.New("operation not allowed in current state")
	ErrNotConnected     = errors.New("controller not connected to a simulation")
)

// UserID, PowerID and RelayID name the models of appliance name.
func UserID(name string) string  { return name + "-user" }
func PowerID(name string) string { return name + "-power" }
func RelayID(name string) string { return name + "-relay" }

// Triggerer delivers an event of kind to a named model of a running
// simulation, stamped at the current simulated time. It must not block:
// controllers call it from transitions running on the simulation thread.
// Both *sim.Simulator and *realtime.Scheduler implement it.
type Triggerer interface {
	Trigger(target string, kind sim.Kind, payload ...sim.Payload) error
}

// Table is an operation state machine: state -> operation kind -> next state.
type Table map[string]map[sim.Kind]string

// Owner is the control object injected into an appliance's user model.
type Owner interface {
	scenario.Performer
	// Observe applies an event reported back by the simulation, e.g. the end
	// of a dishwasher program.
	Observe(ev sim.Event)
	Connect(t Triggerer)
	State() string
}

// Controller is the host-side control logic of one appliance. Operations
// are checked against its state table, then forwarded to the appliance's
// state relay in the simulation.
type Controller struct {
	name  string
	relay string
	table Table

	mu    sync.Mutex
	state string
	trig  Triggerer
}

// NewController returns a controller in state initial forwarding accepted
// operations to relay.
func NewController(name, relay, initial string, table Table) *Controller {
	return &Controller{name: name, relay: relay, table: table, state: initial}
}

// Name returns the appliance name.
func (c *Controller) Name() string { return c.name }

// Connect attaches the simulation the controller reports to.
func (c *Controller) Connect(t Triggerer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trig = t
}

// State returns the current state.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Perform executes operation ev.Kind() with ev's payload.
func (c *Controller) Perform(ctx context.Context, ev sim.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next, ok := c.table[c.state][ev.Kind()]
	if !ok {
		return fmt.Errorf("%s: %s in state %s: %w", c.name, ev.Kind(), c.state, ErrInvalidOperation)
	}
	if c.trig == nil {
		return fmt.Errorf("%s: %w", c.name, ErrNotConnected)
	}
	if err := c.trig.Trigger(c.relay, ev.Kind(), ev.Payload()); err != nil {
		return fmt.Errorf("%s: %s: %w", c.name, ev.Kind(), err)
	}
	c.state = next
	return nil
}

// Observe follows the state table for ev without forwarding it. Events the
// current state does not list are ignored.
func (c *Controller) Observe(ev sim.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if next, ok := c.table[c.state][ev.Kind()]; ok {
		c.state = next
	}
}

// Unit describes an appliance to the household assemblies.
type Unit struct {
	Name      string
	Kinds     []sim.Kind // operations accepted by the power model
	Variables []string   // power variables exported by the power model
	Outputs   []sim.Kind // events the power model reports back
	// Power builds the electricity side of the appliance, with ID PowerID(name).
	Power func(name string) *sim.Coupled
	// User builds the user model of the appliance, with ID UserID(name).
	User func(name string) *scenario.User
	// Controller builds the owner of the user model, forwarding operations
	// to RelayID(Name).
	Controller func() Owner
}

// Assemble composes a unit's user and power models under u.Name, the MIL
// form of an appliance: user events are routed to the power model, power
// variables and outputs are re-exported.
func (u Unit) Assemble() *sim.Coupled {
	userID, powerID := UserID(u.Name), PowerID(u.Name)
	user := u.User(u.Name)
	c := sim.NewCoupled(u.Name, user, u.Power(u.Name))
	for _, k := range u.Kinds {
		if user.Emits(k) {
			c.Route(sim.From(userID, k), sim.To(powerID, k))
		}
	}
	for _, v := range u.Variables {
		c.ExportVariable(sim.Var(powerID, v), v)
	}
	for _, k := range u.Outputs {
		c.ExportEvent(sim.From(powerID, k), k)
	}
	return c
}

// Wrap composes a single electricity model as the power model of appliance
// name: kinds are imported into it, vars and outputs re-exported.
func Wrap(name string, m sim.Model, kinds []sim.Kind, vars []string, outputs ...sim.Kind) *sim.Coupled {
	c := sim.NewCoupled(PowerID(name), m)
	for _, k := range kinds {
		c.ImportEvent(k, sim.To(m.ID(), k))
	}
	for _, v := range vars {
		c.ExportVariable(sim.Var(m.ID(), v), v)
	}
	for _, k := range outputs {
		c.ExportEvent(sim.From(m.ID(), k), k)
	}
	return c
}
