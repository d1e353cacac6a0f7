package sim

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	ErrTypeMismatch = errors.New("variable type mismatch")
	ErrAlreadyBound = errors.New("import already bound")
)

// Sample is one published value of a variable with its publication time.
type Sample[T any] struct {
	Value T
	Time  Time
}

// Exported is the type-erased view of a Variable used by binding tables and
// by the query contract.
type Exported interface {
	Name() string
	Exporter() string
	// Latest returns the most recent published value. ok is false until the
	// exporter publishes for the first time.
	Latest() (value any, at Time, ok bool)
	claim(exporter string) error
}

// Variable is a named, typed value written by exactly one model and read by
// any number of importers. Writes and reads are atomic so the host may query
// a running simulation from another goroutine.
type Variable[T any] struct {
	name     string
	exporter string
	initial  T
	cur      atomic.Pointer[Sample[T]]
}

// NewVariable creates an unpublished variable holding a default value.
func NewVariable[T any](name string, initial T) *Variable[T] {
	return &Variable[T]{name: name, initial: initial}
}

func (v *Variable[T]) Name() string     { return v.name }
func (v *Variable[T]) Exporter() string { return v.exporter }

func (v *Variable[T]) claim(exporter string) error {
	if v.exporter != "" && v.exporter != exporter {
		return fmt.Errorf("variable %q already exported by %q", v.name, v.exporter)
	}
	v.exporter = exporter
	return nil
}

// Set publishes val at simulated time t.
func (v *Variable[T]) Set(t Time, val T) {
	if prev := v.cur.Load(); prev != nil && t < prev.Time {
		panic(&ContractViolation{
			Model:    v.exporter,
			Variable: v.name,
			Reason:   fmt.Sprintf("write at %s precedes last write at %s", t, prev.Time),
		})
	}
	v.cur.Store(&Sample[T]{Value: val, Time: t})
}

// Value returns the latest published value, or the default before the first
// publication. Only the exporter should rely on the default.
func (v *Variable[T]) Value() T {
	if s := v.cur.Load(); s != nil {
		return s.Value
	}
	return v.initial
}

// Sample returns the latest publication.
func (v *Variable[T]) Sample() (Sample[T], bool) {
	s := v.cur.Load()
	if s == nil {
		return Sample[T]{Value: v.initial}, false
	}
	return *s, true
}

func (v *Variable[T]) Latest() (any, Time, bool) {
	s := v.cur.Load()
	if s == nil {
		return v.initial, 0, false
	}
	return s.Value, s.Time, true
}

// Importer is an import slot declared by a model.
type Importer interface {
	Name() string
	Bound() bool
	bind(src Exported) error
	attach(reader *Base)
}

// Import is a single-source import slot.
type Import[T any] struct {
	name   string
	src    *Variable[T]
	reader *Base
}

// NewImport declares an import slot named name.
func NewImport[T any](name string) *Import[T] {
	return &Import[T]{name: name}
}

func (i *Import[T]) Name() string        { return i.name }
func (i *Import[T]) Bound() bool         { return i.src != nil }
func (i *Import[T]) attach(reader *Base) { i.reader = reader }

func (i *Import[T]) bind(src Exported) error {
	v, ok := src.(*Variable[T])
	if !ok {
		return fmt.Errorf("import %q from %s.%s: %w", i.name, src.Exporter(), src.Name(), ErrTypeMismatch)
	}
	if i.src != nil && i.src != v {
		return fmt.Errorf("import %q: %w", i.name, ErrAlreadyBound)
	}
	i.src = v
	return nil
}

// Value returns the exporter's latest value. Reading an unbound slot, a
// variable that was never published, or a value stamped after the reader's
// current time violates the model contract.
func (i *Import[T]) Value() T {
	return readSample(i.reader, i.name, i.src).Value
}

func readSample[T any](reader *Base, name string, src *Variable[T]) Sample[T] {
	model := ""
	var now Time = Infinity
	if reader != nil {
		model = reader.id
		now = reader.now
	}
	if src == nil {
		panic(&ContractViolation{Model: model, Variable: name, Reason: "import is not bound"})
	}
	s := src.cur.Load()
	if s == nil {
		panic(&ContractViolation{Model: model, Variable: name, Reason: "read before first publication by " + src.exporter})
	}
	if s.Time > now {
		panic(&ContractViolation{
			Model:    model,
			Variable: name,
			Reason:   fmt.Sprintf("value published at %s observed at %s", s.Time, now),
		})
	}
	return *s
}

// ImportSet is an import slot accepting any number of sources. The meter
// uses it to aggregate the power of every bound equipment.
type ImportSet[T any] struct {
	name   string
	srcs   []*Variable[T]
	reader *Base
}

// NewImportSet declares a fan-in import slot named name.
func NewImportSet[T any](name string) *ImportSet[T] {
	return &ImportSet[T]{name: name}
}

func (s *ImportSet[T]) Name() string        { return s.name }
func (s *ImportSet[T]) Bound() bool         { return true }
func (s *ImportSet[T]) attach(reader *Base) { s.reader = reader }

// Len returns the number of bound sources.
func (s *ImportSet[T]) Len() int { return len(s.srcs) }

func (s *ImportSet[T]) bind(src Exported) error {
	v, ok := src.(*Variable[T])
	if !ok {
		return fmt.Errorf("import set %q from %s.%s: %w", s.name, src.Exporter(), src.Name(), ErrTypeMismatch)
	}
	for _, existing := range s.srcs {
		if existing == v {
			return fmt.Errorf("import set %q: %s.%s: %w", s.name, src.Exporter(), src.Name(), ErrAlreadyBound)
		}
	}
	s.srcs = append(s.srcs, v)
	return nil
}

// Values returns the latest value of every source in binding order.
func (s *ImportSet[T]) Values() []T {
	out := make([]T, len(s.srcs))
	for i, src := range s.srcs {
		out[i] = readSample(s.reader, s.name, src).Value
	}
	return out
}

// Sources returns "exporter.variable" for every source in binding order.
func (s *ImportSet[T]) Sources() []string {
	out := make([]string, len(s.srcs))
	for i, src := range s.srcs {
		out[i] = src.exporter + "." + src.name
	}
	return out
}
