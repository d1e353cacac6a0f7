package sim

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// Model is anything that can be placed in a coupled model: an Atomic or a
// *Coupled.
type Model interface {
	ID() string
}

// Atomic is the contract of an indivisible behavior model. Implementations
// embed Base, which carries identity, the dirty flag, declared ports and the
// injected owner/logger.
//
// The kernel drives an Atomic as follows:
//   - Initialise once at simulation start;
//   - TimeAdvance after every transition; Infinity means "wait for an event";
//   - when the advance elapses, Output then InternalTransition;
//   - when an event is routed to it, ExternalTransition;
//   - EndSimulation once at the end.
type Atomic interface {
	Model
	Initialise(t Time)
	TimeAdvance() Time
	Output() (Event, bool)
	InternalTransition(elapsed Time)
	ExternalTransition(elapsed Time, ev Event)
	EndSimulation(t Time)
	base() *Base
}

// Configurable is implemented by models that read run parameters. It is
// called once, before Initialise.
type Configurable interface {
	SetRunParameters(p Params) error
}

// Base is embedded by every atomic model.
type Base struct {
	id      string
	now     Time
	dirty   bool
	log     logrus.FieldLogger
	owner   any
	params  Params
	rng     *rand.Rand
	exports []Exported
	imports []Importer
	accepts map[Kind]bool
	emits   map[Kind]bool
	err     error
}

// NewBase returns a Base for the model identified by id.
func NewBase(id string) Base {
	return Base{
		id:      id,
		log:     logrus.WithField("model", id),
		accepts: make(map[Kind]bool),
		emits:   make(map[Kind]bool),
	}
}

func (b *Base) base() *Base { return b }

// ID returns the model identifier, unique within a simulation.
func (b *Base) ID() string { return b.id }

// Now returns the simulated time of the transition being executed.
func (b *Base) Now() Time { return b.now }

// Dirty reports whether an external transition requested an immediate
// internal transition.
func (b *Base) Dirty() bool { return b.dirty }

// MarkDirty forces the next time-advance to zero. The flag is cleared by the
// kernel once the internal transition has run.
func (b *Base) MarkDirty() { b.dirty = true }

// Advance returns zero when the model is dirty and d otherwise. Models use it
// as the last step of TimeAdvance.
func (b *Base) Advance(d Time) Time {
	if b.dirty {
		return 0
	}
	return d
}

// Logger returns the model's logger.
func (b *Base) Logger() logrus.FieldLogger { return b.log }

// Owner returns the injected control object, or nil when none was injected.
func (b *Base) Owner() any { return b.owner }

// Params returns the run parameters of the current run.
func (b *Base) Params() Params { return b.params }

// Param returns the run parameter name qualified with this model's ID.
func (b *Base) Param(name string) string { return ParamKey(b.id, name) }

// Rand returns the model's deterministic random source.
func (b *Base) Rand() *rand.Rand {
	if b.rng == nil {
		b.rng = rand.New(rand.NewSource(fnv1a64(b.id)))
	}
	return b.rng
}

// EndSimulation is a no-op default.
func (b *Base) EndSimulation(t Time) {}

// Accept declares the event kinds this model imports.
func (b *Base) Accept(kinds ...Kind) {
	for _, k := range kinds {
		b.accepts[k] = true
	}
}

// Emit declares the event kinds this model exports.
func (b *Base) Emit(kinds ...Kind) {
	for _, k := range kinds {
		b.emits[k] = true
	}
}

// Accepts reports whether k was declared with Accept.
func (b *Base) Accepts(k Kind) bool { return b.accepts[k] }

// Emits reports whether k was declared with Emit.
func (b *Base) Emits(k Kind) bool { return b.emits[k] }

// Export declares exported variables.
func (b *Base) Export(vars ...Exported) {
	for _, v := range vars {
		if _, ok := b.Exported(v.Name()); ok {
			b.err = errors.Join(b.err, fmt.Errorf("model %q: duplicate export %q", b.id, v.Name()))
			continue
		}
		if err := v.claim(b.id); err != nil {
			b.err = errors.Join(b.err, err)
			continue
		}
		b.exports = append(b.exports, v)
	}
}

// Import declares import slots.
func (b *Base) Import(slots ...Importer) {
	for _, s := range slots {
		if _, ok := b.Imported(s.Name()); ok {
			b.err = errors.Join(b.err, fmt.Errorf("model %q: duplicate import %q", b.id, s.Name()))
			continue
		}
		s.attach(b)
		b.imports = append(b.imports, s)
	}
}

// Exported looks up an exported variable by name.
func (b *Base) Exported(name string) (Exported, bool) {
	for _, v := range b.exports {
		if v.Name() == name {
			return v, true
		}
	}
	return nil, false
}

// Imported looks up an import slot by name.
func (b *Base) Imported(name string) (Importer, bool) {
	for _, s := range b.imports {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Exports returns the exported variables in declaration order.
func (b *Base) Exports() []Exported { return b.exports }

// Imports returns the import slots in declaration order.
func (b *Base) Imports() []Importer { return b.imports }

func (b *Base) configure(p Params) {
	b.params = p
	b.owner = p.Owner(b.id)
	if l := p.Logger(b.id); l != nil {
		b.log = l
	}
}
