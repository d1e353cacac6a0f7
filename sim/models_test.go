package sim

// Test models shared by the kernel tests.

// emitter emits one event of kind after each delay in delays, then waits.
type emitter struct {
	Base
	kind    Kind
	delays  []Time
	next    int
	payload Payload
}

func newEmitter(id string, kind Kind, delays ...Time) *emitter {
	e := &emitter{Base: NewBase(id), kind: kind, delays: delays}
	e.Emit(kind)
	return e
}

func (e *emitter) Initialise(t Time) { e.next = 0 }

func (e *emitter) TimeAdvance() Time {
	if e.next >= len(e.delays) {
		return Infinity
	}
	return e.delays[e.next]
}

func (e *emitter) Output() (Event, bool) {
	return NewEvent(e.kind, e.Now(), e.payload), true
}

func (e *emitter) InternalTransition(elapsed Time) { e.next++ }

func (e *emitter) ExternalTransition(elapsed Time, ev Event) {
	UnexpectedEvent(e.ID(), modeName("emitting"), ev)
}

type modeName string

func (m modeName) String() string { return string(m) }

// recorder stores every received event, marks itself dirty and republishes
// the number of events received as "count" at its next internal transition.
type recorder struct {
	Base
	got       []Event
	internals []Time
	count     *Variable[float64]
	ended     int
}

func newRecorder(id string, kinds ...Kind) *recorder {
	r := &recorder{Base: NewBase(id), count: NewVariable("count", 0.0)}
	r.Accept(kinds...)
	r.Export(r.count)
	return r
}

func (r *recorder) Initialise(t Time) {
	r.got = nil
	r.count.Set(t, 0)
}

func (r *recorder) TimeAdvance() Time { return r.Advance(Infinity) }

func (r *recorder) Output() (Event, bool) { return Event{}, false }

func (r *recorder) InternalTransition(elapsed Time) {
	r.internals = append(r.internals, r.Now())
	r.count.Set(r.Now(), float64(len(r.got)))
}

func (r *recorder) ExternalTransition(elapsed Time, ev Event) {
	r.got = append(r.got, ev)
	r.MarkDirty()
}

func (r *recorder) EndSimulation(t Time) { r.ended++ }

// reader imports "in" and samples it every period.
type reader struct {
	Base
	in      *Import[float64]
	period  Time
	samples []Sample[float64]
}

func newReader(id string, period Time) *reader {
	r := &reader{Base: NewBase(id), in: NewImport[float64]("in"), period: period}
	r.Import(r.in)
	return r
}

func (r *reader) Initialise(t Time)     {}
func (r *reader) TimeAdvance() Time     { return r.period }
func (r *reader) Output() (Event, bool) { return Event{}, false }

func (r *reader) InternalTransition(elapsed Time) {
	r.samples = append(r.samples, Sample[float64]{Value: r.in.Value(), Time: r.Now()})
}

func (r *reader) ExternalTransition(elapsed Time, ev Event) {}

// ramp publishes "level" = seconds since start every period.
type ramp struct {
	Base
	level  *Variable[float64]
	period Time
	start  Time
}

func newRamp(id string, period Time) *ramp {
	r := &ramp{Base: NewBase(id), level: NewVariable("level", 0.0), period: period}
	r.Export(r.level)
	return r
}

func (r *ramp) Initialise(t Time) {
	r.start = t
	r.level.Set(t, 0)
}
func (r *ramp) TimeAdvance() Time     { return r.period }
func (r *ramp) Output() (Event, bool) { return Event{}, false }
func (r *ramp) InternalTransition(elapsed Time) {
	r.level.Set(r.Now(), (r.Now() - r.start).Seconds())
}
func (r *ramp) ExternalTransition(elapsed Time, ev Event) {}

// looper re-arms with a zero delay forever.
type looper struct{ Base }

func (l *looper) Initialise(t Time)                         {}
func (l *looper) TimeAdvance() Time                         { return 0 }
func (l *looper) Output() (Event, bool)                     { return Event{}, false }
func (l *looper) InternalTransition(elapsed Time)           {}
func (l *looper) ExternalTransition(elapsed Time, ev Event) {}

func newTestSimulator(root Model, end Time) (*Simulator, error) {
	return NewSimulator(root, NewConfig(0, end, 42))
}
