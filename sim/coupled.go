package sim

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hemsim/hemsim/sim/trace"
)

// EventPort names an event kind on a submodel: the source side or the sink
// side of a route.
type EventPort struct {
	Model string
	Kind  Kind
}

// From names the source port of a route.
func From(model string, kind Kind) EventPort { return EventPort{Model: model, Kind: kind} }

// To names a sink port of a route.
func To(model string, kind Kind) EventPort { return EventPort{Model: model, Kind: kind} }

func (p EventPort) String() string { return p.Model + ":" + p.Kind.String() }

// VarRef names a variable (exported or imported) on a submodel.
type VarRef struct {
	Model string
	Name  string
}

// Var names a variable on a submodel.
func Var(model, name string) VarRef { return VarRef{Model: model, Name: name} }

func (r VarRef) String() string { return r.Model + "." + r.Name }

type binding struct {
	from VarRef
	to   []VarRef
}

// Coupled is a named composition of models. It owns the routing table
// between its submodels, the variable bindings between them, and the tables
// re-exporting submodel events and variables on its own boundary. To its
// parent it behaves exactly like an atomic model: the parent only sees the
// re-exported ports.
//
// Composition errors are accumulated and reported by Err and by
// NewSimulator; builder methods never panic.
type Coupled struct {
	id       string
	children []component
	index    map[string]component

	routes  map[EventPort][]EventPort
	outputs map[EventPort][]Kind
	inputs  map[Kind][]EventPort

	exports     map[string]Exported
	exportOrder []string
	imports     map[string][]VarRef
	bindings    []binding

	rc  *runContext
	log logrus.FieldLogger
	err error
}

// NewCoupled composes children, in declaration order, under id. Declaration
// order breaks ties between equally imminent submodels.
func NewCoupled(id string, children ...Model) *Coupled {
	c := &Coupled{
		id:      id,
		index:   make(map[string]component),
		routes:  make(map[EventPort][]EventPort),
		outputs: make(map[EventPort][]Kind),
		inputs:  make(map[Kind][]EventPort),
		exports: make(map[string]Exported),
		imports: make(map[string][]VarRef),
		log:     logrus.WithField("coupled", id),
	}
	for _, m := range children {
		comp, err := asComponent(m)
		if err != nil {
			c.fail("%v", err)
			continue
		}
		if _, dup := c.index[comp.ID()]; dup {
			c.fail("duplicate submodel %q", comp.ID())
			continue
		}
		c.children = append(c.children, comp)
		c.index[comp.ID()] = comp
	}
	return c
}

func (c *Coupled) fail(format string, args ...any) {
	c.err = errors.Join(c.err, fmt.Errorf("coupled %q: "+format, append([]any{c.id}, args...)...))
}

// ID returns the composition identifier.
func (c *Coupled) ID() string { return c.id }

// Err returns the accumulated composition errors of c and its descendants.
func (c *Coupled) Err() error {
	err := c.err
	for _, ch := range c.children {
		if sub, ok := ch.(*Coupled); ok {
			err = errors.Join(err, sub.Err())
		}
	}
	return err
}

// Children returns the submodel IDs in declaration order.
func (c *Coupled) Children() []string {
	ids := make([]string, len(c.children))
	for i, ch := range c.children {
		ids[i] = ch.ID()
	}
	return ids
}

func (c *Coupled) member(id string) (component, bool) {
	ch, ok := c.index[id]
	if !ok {
		c.fail("%q is not a submodel", id)
	}
	return ch, ok
}

// Route declares that events of from.Kind emitted by from.Model are delivered
// to every sink, converted to the sink's kind, in the order listed.
func (c *Coupled) Route(from EventPort, to ...EventPort) *Coupled {
	src, ok := c.member(from.Model)
	if !ok {
		return c
	}
	if !src.emitsKind(from.Kind) {
		c.fail("%q does not emit %s", from.Model, from.Kind)
		return c
	}
	for _, sink := range to {
		dst, ok := c.member(sink.Model)
		if !ok {
			continue
		}
		if !dst.acceptsKind(sink.Kind) {
			c.fail("%q does not accept %s", sink.Model, sink.Kind)
			continue
		}
		if slices.Contains(c.routes[from], sink) {
			c.fail("duplicate route %s -> %s", from, sink)
			continue
		}
		c.routes[from] = append(c.routes[from], sink)
	}
	return c
}

// ExportEvent promotes a submodel output to this composition's boundary as
// kind as.
func (c *Coupled) ExportEvent(from EventPort, as Kind) *Coupled {
	src, ok := c.member(from.Model)
	if !ok {
		return c
	}
	if !src.emitsKind(from.Kind) {
		c.fail("%q does not emit %s", from.Model, from.Kind)
		return c
	}
	if slices.Contains(c.outputs[from], as) {
		c.fail("duplicate export %s as %s", from, as)
		return c
	}
	c.outputs[from] = append(c.outputs[from], as)
	return c
}

// ImportEvent declares that events of kind received by this composition are
// delivered to the listed submodel ports.
func (c *Coupled) ImportEvent(kind Kind, to ...EventPort) *Coupled {
	for _, sink := range to {
		dst, ok := c.member(sink.Model)
		if !ok {
			continue
		}
		if !dst.acceptsKind(sink.Kind) {
			c.fail("%q does not accept %s", sink.Model, sink.Kind)
			continue
		}
		if slices.Contains(c.inputs[kind], sink) {
			c.fail("duplicate import %s -> %s", kind, sink)
			continue
		}
		c.inputs[kind] = append(c.inputs[kind], sink)
	}
	return c
}

// Bind connects an exported variable of one submodel to import slots of
// others. Importers read the exporter's latest publication.
func (c *Coupled) Bind(from VarRef, to ...VarRef) *Coupled {
	src, ok := c.member(from.Model)
	if !ok {
		return c
	}
	v, ok := src.exported(from.Name)
	if !ok {
		c.fail("%s: %v", from, ErrUnknownVariable)
		return c
	}
	for _, ref := range to {
		dst, ok := c.member(ref.Model)
		if !ok {
			continue
		}
		if err := dst.bindImport(ref.Name, v); err != nil {
			c.fail("bind %s -> %s: %v", from, ref, err)
		}
	}
	c.bindings = append(c.bindings, binding{from: from, to: to})
	return c
}

// ExportVariable promotes a submodel variable to this composition's boundary
// under name as.
func (c *Coupled) ExportVariable(from VarRef, as string) *Coupled {
	src, ok := c.member(from.Model)
	if !ok {
		return c
	}
	v, ok := src.exported(from.Name)
	if !ok {
		c.fail("%s: %v", from, ErrUnknownVariable)
		return c
	}
	if _, dup := c.exports[as]; dup {
		c.fail("duplicate exported variable %q", as)
		return c
	}
	c.exports[as] = v
	c.exportOrder = append(c.exportOrder, as)
	return c
}

// ImportVariable declares an import slot name on this composition that feeds
// the listed submodel slots once the parent binds it.
func (c *Coupled) ImportVariable(name string, to ...VarRef) *Coupled {
	for _, ref := range to {
		if _, ok := c.member(ref.Model); ok {
			c.imports[name] = append(c.imports[name], ref)
		}
	}
	return c
}

func (c *Coupled) prepare(rc *runContext) error {
	c.rc = rc
	err := c.err
	for _, ch := range c.children {
		if e := ch.prepare(rc); e != nil {
			err = errors.Join(err, e)
		}
	}
	return err
}

func (c *Coupled) initialise(t Time) {
	for _, ch := range c.children {
		ch.initialise(t)
	}
}

func (c *Coupled) nextTime() Time {
	next := Infinity
	for _, ch := range c.children {
		next = min(next, ch.nextTime())
	}
	return next
}

func (c *Coupled) urgent(t Time) bool {
	for _, ch := range c.children {
		if ch.urgent(t) {
			return true
		}
	}
	return false
}

// imminent selects the submodel to fire at t: submodels with a pending
// zero-delay dirty transition first, then declaration order.
func (c *Coupled) imminent(t Time) component {
	var chosen component
	for _, ch := range c.children {
		if ch.nextTime() != t {
			continue
		}
		if ch.urgent(t) {
			return ch
		}
		if chosen == nil {
			chosen = ch
		}
	}
	return chosen
}

func (c *Coupled) internal(t Time) []Event {
	ch := c.imminent(t)
	if ch == nil {
		Violation(c.id, "no imminent submodel at %s", t)
	}
	var up []Event
	for _, ev := range ch.internal(t) {
		c.rc.emitted(ch.ID(), ev)
		up = append(up, c.route(ch.ID(), ev)...)
	}
	return up
}

// route delivers ev, emitted by submodel src, to every declared sink and
// returns the copies re-exported on this composition's boundary.
func (c *Coupled) route(src string, ev Event) []Event {
	port := EventPort{Model: src, Kind: ev.Kind()}
	sinks, exports := c.routes[port], c.outputs[port]
	if len(sinks) == 0 && len(exports) == 0 {
		c.log.Debugf("dropping unrouted %s from %s", ev, src)
		return nil
	}
	for _, sink := range sinks {
		c.rc.trace.RecordDelivery(trace.DeliveryRecord{
			Coupled:  c.id,
			Source:   src,
			Sink:     sink.Model,
			Kind:     ev.Kind().String(),
			SinkKind: sink.Kind.String(),
			Clock:    int64(ev.Time()),
		})
		c.index[sink.Model].external(ev.Time(), ev.As(sink.Kind))
	}
	up := make([]Event, 0, len(exports))
	for _, k := range exports {
		up = append(up, ev.As(k))
	}
	return up
}

func (c *Coupled) external(t Time, ev Event) {
	sinks := c.inputs[ev.Kind()]
	if len(sinks) == 0 {
		panic(&ContractViolation{Model: c.id, Event: &ev, Reason: "event kind not imported"})
	}
	for _, sink := range sinks {
		c.rc.trace.RecordDelivery(trace.DeliveryRecord{
			Coupled:  c.id,
			Source:   c.id,
			Sink:     sink.Model,
			Kind:     ev.Kind().String(),
			SinkKind: sink.Kind.String(),
			Clock:    int64(t),
		})
		c.index[sink.Model].external(t, ev.As(sink.Kind))
	}
}

func (c *Coupled) end(t Time) {
	for _, ch := range c.children {
		ch.end(t)
	}
}

func (c *Coupled) emitsKind(k Kind) bool {
	for _, kinds := range c.outputs {
		for _, out := range kinds {
			if out == k {
				return true
			}
		}
	}
	return false
}

func (c *Coupled) acceptsKind(k Kind) bool { return len(c.inputs[k]) > 0 }

func (c *Coupled) exported(name string) (Exported, bool) {
	v, ok := c.exports[name]
	return v, ok
}

func (c *Coupled) bindImport(name string, src Exported) error {
	refs, ok := c.imports[name]
	if !ok {
		return fmt.Errorf("coupled %q import %q: %w", c.id, name, ErrUnknownVariable)
	}
	var err error
	for _, ref := range refs {
		if e := c.index[ref.Model].bindImport(ref.Name, src); e != nil {
			err = errors.Join(err, e)
		}
	}
	return err
}

func (c *Coupled) lookup(id string) (component, bool) {
	if c.id == id {
		return c, true
	}
	for _, ch := range c.children {
		if found, ok := ch.lookup(id); ok {
			return found, true
		}
	}
	return nil, false
}

func (c *Coupled) walk(fn func(component)) {
	fn(c)
	for _, ch := range c.children {
		ch.walk(fn)
	}
}

// Describe writes the composition tree with its routes and bindings.
func (c *Coupled) Describe(w io.Writer) {
	c.describe(w, 0)
}

func (c *Coupled) describe(w io.Writer, depth int) {
	pad := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s (coupled)\n", pad, c.id)
	for _, ch := range c.children {
		switch v := ch.(type) {
		case *Coupled:
			v.describe(w, depth+1)
		case *atomicSim:
			fmt.Fprintf(w, "%s  %s (%T)\n", pad, v.b.id, v.m)
		}
	}

	ports := make([]EventPort, 0, len(c.routes))
	for p := range c.routes {
		ports = append(ports, p)
	}
	sortPorts(ports)
	for _, p := range ports {
		for _, sink := range c.routes[p] {
			fmt.Fprintf(w, "%s  route %s -> %s\n", pad, p, sink)
		}
	}
	outs := make([]EventPort, 0, len(c.outputs))
	for p := range c.outputs {
		outs = append(outs, p)
	}
	sortPorts(outs)
	for _, p := range outs {
		for _, k := range c.outputs[p] {
			fmt.Fprintf(w, "%s  export %s as %s\n", pad, p, k)
		}
	}
	kinds := make([]Kind, 0, len(c.inputs))
	for k := range c.inputs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		for _, sink := range c.inputs[k] {
			fmt.Fprintf(w, "%s  import %s -> %s\n", pad, k, sink)
		}
	}
	for _, b := range c.bindings {
		for _, to := range b.to {
			fmt.Fprintf(w, "%s  bind %s -> %s\n", pad, b.from, to)
		}
	}
	for _, name := range c.exportOrder {
		v := c.exports[name]
		fmt.Fprintf(w, "%s  export %s.%s as %s\n", pad, v.Exporter(), v.Name(), name)
	}
}

func sortPorts(ports []EventPort) {
	sort.Slice(ports, func(i, j int) bool {
		if ports[i].Model != ports[j].Model {
			return ports[i].Model < ports[j].Model
		}
		return ports[i].Kind < ports[j].Kind
	})
}
