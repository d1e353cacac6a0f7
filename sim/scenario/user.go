// Package scenario implements the user models that drive equipment: each one
// plays a script of events at randomised intervals.
//
// A user model has no inputs. When no owner is injected it emits its script
// as events, to be routed by the enclosing composition (MIL). When an owner
// implementing Performer is injected, it performs each step on the owner
// instead (SIL): the owner is the equipment's controller, which in turn
// notifies the simulation.
package scenario

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/hemsim/hemsim/sim"
)

// Run parameter names read by User, qualified with the model ID.
const (
	ParamMeanStep = "meanStep"
	ParamStdDev   = "stdDev"
	ParamBudget   = "budget"
)

// DefaultMeanStep is the mean delay between two steps of a user script.
const DefaultMeanStep = 30 * sim.Minute

// Step is one scripted event. When Labels is non-empty the payload label is
// drawn uniformly from it each time the step is played.
type Step struct {
	Kind    sim.Kind
	Payload sim.Payload
	Labels  []string
}

// Performer is implemented by owners that execute user steps, usually an
// equipment controller.
type Performer interface {
	Perform(ctx context.Context, ev sim.Event) error
}

// Hook is an extra best-effort call made on the owner when a step of its
// kind is played, e.g. planning a dishwasher program.
type Hook func(owner any, ev sim.Event) error

// Config describes a user script.
type Config struct {
	Steps    []Step
	MeanStep sim.Time // mean delay before each step
	StdDev   sim.Time // 0 selects MeanStep/4
	Cyclic   bool     // restart the script after its last step
	Budget   int      // steps played before going silent, 0 for no limit
	Hooks    map[sim.Kind]Hook
}

// NewConfig returns a cyclic script with the default mean step.
func NewConfig(steps ...Step) Config {
	return Config{Steps: steps, MeanStep: DefaultMeanStep, Cyclic: true}
}

type position struct{ next, played int }

func (p position) String() string { return fmt.Sprintf("step %d (%d played)", p.next, p.played) }

// User plays a Config.
type User struct {
	sim.Base
	cfg     Config
	sampler GaussianDelay
	pos     position
	delay   sim.Time
	current sim.Event
	silent  bool
}

// NewUser returns a user model playing cfg.
func NewUser(id string, cfg Config) *User {
	u := &User{Base: sim.NewBase(id), cfg: cfg}
	for _, st := range cfg.Steps {
		u.Emit(st.Kind)
	}
	u.configureSampler()
	return u
}

func (u *User) configureSampler() {
	sd := u.cfg.StdDev
	if sd == 0 {
		sd = u.cfg.MeanStep / 4
	}
	u.sampler = GaussianDelay{Mean: u.cfg.MeanStep, StdDev: sd, Floor: MinDelay}
}

// SetRunParameters overrides the mean step, deviation and budget of this
// instance.
func (u *User) SetRunParameters(p sim.Params) error {
	var err error
	if u.cfg.MeanStep, err = p.Duration(u.Param(ParamMeanStep), u.cfg.MeanStep); err != nil {
		return err
	}
	if u.cfg.StdDev, err = p.Duration(u.Param(ParamStdDev), u.cfg.StdDev); err != nil {
		return err
	}
	if u.cfg.Budget, err = p.Int(u.Param(ParamBudget), u.cfg.Budget); err != nil {
		return err
	}
	if u.cfg.MeanStep <= 0 {
		return fmt.Errorf("%s must be positive, got %s", u.Param(ParamMeanStep), u.cfg.MeanStep)
	}
	u.configureSampler()
	return nil
}

// Played returns the number of steps played so far.
func (u *User) Played() int { return u.pos.played }

// Silent reports whether the script is exhausted.
func (u *User) Silent() bool { return u.silent }

func (u *User) Initialise(t sim.Time) {
	u.pos = position{}
	u.silent = len(u.cfg.Steps) == 0
	if !u.silent {
		u.prepare()
	}
}

// prepare draws the delay and payload of the next step.
func (u *User) prepare() {
	st := u.cfg.Steps[u.pos.next]
	payload := st.Payload
	if len(st.Labels) > 0 {
		payload.Label = pick(u.Rand(), st.Labels)
	}
	u.current = sim.NewEvent(st.Kind, 0, payload)
	u.delay = u.sampler.Sample(u.Rand())
}

func pick(rng *rand.Rand, labels []string) string {
	return labels[rng.Intn(len(labels))]
}

func (u *User) TimeAdvance() sim.Time {
	if u.silent {
		return sim.Infinity
	}
	return u.delay
}

func (u *User) performer() Performer {
	p, _ := u.Owner().(Performer)
	return p
}

func (u *User) Output() (sim.Event, bool) {
	if u.performer() != nil {
		return sim.Event{}, false
	}
	return u.current.At(u.Now()), true
}

func (u *User) InternalTransition(elapsed sim.Time) {
	ev := u.current.At(u.Now())
	if owner := u.Owner(); owner != nil {
		if p := u.performer(); p != nil {
			if err := p.Perform(context.Background(), ev); err != nil {
				u.Logger().Warnf("[t=%s] %s rejected by owner: %v", u.Now(), ev, err)
			}
		}
		if hook, ok := u.cfg.Hooks[ev.Kind()]; ok {
			if err := hook(owner, ev); err != nil {
				u.Logger().Warnf("[t=%s] %s side effect failed: %v", u.Now(), ev, err)
			}
		}
	}
	u.Logger().Infof("[t=%s] %s", u.Now(), ev)

	u.pos.played++
	u.pos.next++
	if u.pos.next == len(u.cfg.Steps) {
		if !u.cfg.Cyclic {
			u.silent = true
			return
		}
		u.pos.next = 0
	}
	if u.cfg.Budget > 0 && u.pos.played >= u.cfg.Budget {
		u.silent = true
		return
	}
	u.prepare()
}

func (u *User) ExternalTransition(elapsed sim.Time, ev sim.Event) {
	sim.UnexpectedEvent(u.ID(), u.pos, ev)
}
