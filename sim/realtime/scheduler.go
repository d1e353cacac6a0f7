// Package realtime paces a simulation against the wall clock.
//
// A Scheduler owns one sim.Simulator and is the only goroutine allowed to
// step it. Simulated time is mapped onto wall time as
//
//	sim = simStart + (wall - wallStart) * acceleration
//
// Other goroutines interact with a running simulation through Trigger
// (asynchronous), Inject (synchronous hand-off) and Query (lock-free read of
// published variables).
package realtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hemsim/hemsim/sim"
)

// State of a Scheduler.
type State int32

const (
	Idle State = iota
	Armed
	Running
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

const (
	// DefaultGranularity is the finest wall-clock wait the scheduler attempts.
	// Steps due sooner than this are fired immediately.
	DefaultGranularity = 10 * time.Millisecond
	// DefaultTolerance is the lateness beyond which a step is an overrun.
	DefaultTolerance = 50 * time.Millisecond
)

// Config parameterises a Scheduler.
type Config struct {
	Acceleration float64       // simulated seconds per wall-clock second, > 0
	Granularity  time.Duration // 0 selects DefaultGranularity
	Tolerance    time.Duration // 0 selects DefaultTolerance
	Clock        Clock         // nil selects SystemClock
}

// NewConfig returns a Config with the given acceleration and default timing.
func NewConfig(acceleration float64) Config {
	return Config{
		Acceleration: acceleration,
		Granularity:  DefaultGranularity,
		Tolerance:    DefaultTolerance,
	}
}

type deliveryMode int

const (
	stampNow  deliveryMode = iota // Trigger: stamped when dequeued
	keepTime                      // Link: restamped only if already in the past
	exactTime                     // Inject: validated as is, error replied
)

type message struct {
	target string
	ev     sim.Event
	mode   deliveryMode
	source string
	reply  chan error
}

// Scheduler drives a Simulator in real time.
type Scheduler struct {
	sim   *sim.Simulator
	cfg   Config
	clock Clock
	log   *logrus.Entry

	state    atomic.Int32
	aborted  atomic.Bool
	overruns atomic.Int64

	mu        sync.Mutex
	wallStart time.Time
	mailbox   []message
	err       error

	notify   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New returns an idle Scheduler for s. The acceleration factor must be
// strictly positive.
func New(s *sim.Simulator, cfg Config) (*Scheduler, error) {
	if !(cfg.Acceleration > 0) {
		return nil, fmt.Errorf("%w, got %v", sim.ErrInvalidAcceleration, cfg.Acceleration)
	}
	if cfg.Granularity <= 0 {
		cfg.Granularity = DefaultGranularity
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	return &Scheduler{
		sim:    s,
		cfg:    cfg,
		clock:  cfg.Clock,
		log:    logrus.WithFields(logrus.Fields{"subsystem": s.RootID(), "run": s.RunID().String()}),
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Simulator returns the paced simulator. It must not be stepped by anyone
// but the scheduler while running.
func (s *Scheduler) Simulator() *sim.Simulator { return s.sim }

// State returns the current lifecycle state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Overruns returns the number of steps fired later than the tolerance.
func (s *Scheduler) Overruns() int64 { return s.overruns.Load() }

// Done is closed once the scheduler has terminated.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Err returns the error that terminated the run, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ArmStart fixes the wall-clock instant at which simulated time simStart
// begins, and the simulated end of the run.
func (s *Scheduler) ArmStart(wall time.Time, simStart, simEnd sim.Time) error {
	if simEnd <= simStart {
		return fmt.Errorf("end time %s must be after start time %s", simEnd, simStart)
	}
	if !s.state.CompareAndSwap(int32(Idle), int32(Armed)) {
		return fmt.Errorf("%w (state %s)", sim.ErrAlreadyArmed, s.State())
	}
	s.mu.Lock()
	s.wallStart = wall
	s.mu.Unlock()
	s.sim.Start, s.sim.End, s.sim.Clock = simStart, simEnd, simStart
	s.log.Infof("Armed: wall start %s, simulated [%s, %s], acceleration %g",
		wall.Format(time.RFC3339Nano), simStart, simEnd, s.cfg.Acceleration)
	return nil
}

// wallAt maps simulated time t onto the wall clock.
func (s *Scheduler) wallAt(t sim.Time) time.Time {
	offset := float64(t-s.sim.Start) / s.cfg.Acceleration
	return s.wallStart.Add(time.Duration(offset * float64(time.Microsecond)))
}

// Now returns the simulated time derived from the wall clock, clamped to the
// armed window.
func (s *Scheduler) Now() sim.Time {
	s.mu.Lock()
	start := s.wallStart
	s.mu.Unlock()
	if s.State() == Idle {
		return s.sim.Start
	}
	elapsed := s.clock.Now().Sub(start)
	t := s.sim.Start + sim.Time(elapsed.Seconds()*s.cfg.Acceleration*float64(sim.Second))
	return max(s.sim.Start, min(t, s.sim.End))
}

// Run waits for the armed start instant, then fires every transition at its
// wall-clock instant until the simulated end, Stop, or ctx cancellation. A
// contract violation aborts the run and is returned wrapped in
// sim.ErrAborted.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.State() != Armed {
		return fmt.Errorf("run in state %s: %w", s.State(), sim.ErrNotRunning)
	}
	if wait := s.wallStart.Sub(s.clock.Now()); wait > 0 {
		select {
		case <-s.clock.After(wait):
		case <-s.stop:
			return s.finish(s.sim.Start)
		case <-ctx.Done():
			return s.finish(s.sim.Start)
		}
	}
	s.state.Store(int32(Running))
	if err := s.protect(s.sim.Initialise); err != nil {
		return s.abort(err)
	}
	s.log.Infof("[t=%s] Running", s.sim.Clock)

	for {
		if err := s.drain(); err != nil {
			return s.abort(err)
		}
		next := s.sim.NextTime()
		finishing := next > s.sim.End
		target := min(next, s.sim.End)
		remaining := s.wallAt(target).Sub(s.clock.Now())

		if remaining >= s.cfg.Granularity {
			select {
			case <-s.clock.After(remaining):
			case <-s.notify:
			case <-s.stop:
				return s.finish(s.Now())
			case <-ctx.Done():
				return s.finish(s.Now())
			}
			continue
		}
		select {
		case <-s.stop:
			return s.finish(s.Now())
		case <-ctx.Done():
			return s.finish(s.Now())
		default:
		}
		if finishing {
			return s.finish(s.sim.End)
		}
		if late := -remaining; late > s.cfg.Tolerance {
			s.overruns.Add(1)
			s.log.Warnf("[t=%s] Step overrun: fired %s late", target, late)
		}
		if err := s.protect(func() { s.sim.Step() }); err != nil {
			return s.abort(err)
		}
	}
}

// Stop ends the run at the current simulated time. The transition in
// progress, if any, completes first.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// protect runs fn, converting a contract violation panic into an error.
func (s *Scheduler) protect(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			cv, ok := sim.AsContractViolation(r)
			if !ok {
				panic(r)
			}
			err = cv
		}
	}()
	fn()
	return nil
}

func (s *Scheduler) finish(at sim.Time) error {
	if err := s.protect(func() { s.sim.EndAt(at) }); err != nil {
		return s.abort(err)
	}
	s.terminate(nil)
	s.log.Infof("[t=%s] Terminated after %d steps, %d overruns", s.sim.Clock, s.sim.Steps(), s.Overruns())
	return nil
}

func (s *Scheduler) abort(err error) error {
	s.aborted.Store(true)
	err = fmt.Errorf("%w: %w", sim.ErrAborted, err)
	s.log.Errorf("[t=%s] %v", s.sim.Clock, err)
	s.terminate(err)
	return err
}

func (s *Scheduler) terminate(err error) {
	s.mu.Lock()
	s.err = err
	pending := s.mailbox
	s.mailbox = nil
	s.state.Store(int32(Terminated))
	s.mu.Unlock()
	for _, m := range pending {
		if m.reply != nil {
			m.reply <- sim.ErrNotRunning
		}
	}
	close(s.done)
}

// enqueue hands a message to the scheduler goroutine.
func (s *Scheduler) enqueue(m message) error {
	s.mu.Lock()
	if s.State() == Terminated {
		s.mu.Unlock()
		return sim.ErrNotRunning
	}
	s.mailbox = append(s.mailbox, m)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// drain delivers queued messages on the scheduler goroutine.
func (s *Scheduler) drain() error {
	s.mu.Lock()
	batch := s.mailbox
	s.mailbox = nil
	s.mu.Unlock()
	for _, m := range batch {
		if err := s.protect(func() { s.deliver(m) }); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) deliver(m message) {
	ev := m.ev
	switch m.mode {
	case stampNow:
		ev = ev.At(max(s.sim.Clock, s.Now()))
	case keepTime:
		if ev.Time() < s.sim.Clock {
			s.log.Warnf("[t=%s] Event %s from %s arrived in the past, restamped", s.sim.Clock, ev, m.source)
			ev = ev.At(s.sim.Clock)
		}
	}
	err := s.sim.Inject(m.target, ev)
	if m.reply != nil {
		m.reply <- err
		return
	}
	if err != nil {
		s.log.Warnf("[t=%s] Dropping %s for %s: %v", s.sim.Clock, ev, m.target, err)
	}
}

// Trigger asks the scheduler to deliver an event of kind to target, stamped
// with the simulated time at which the scheduler dequeues it. It never
// blocks, and may be called from a transition running on the scheduler
// itself. Delivery errors are logged.
func (s *Scheduler) Trigger(target string, kind sim.Kind, payload ...sim.Payload) error {
	return s.enqueue(message{target: target, ev: sim.NewEvent(kind, 0, payload...), mode: stampNow})
}

// Inject hands ev to the scheduler and waits for it to be accepted or
// rejected. It must not be called from the scheduler goroutine.
func (s *Scheduler) Inject(ctx context.Context, target string, ev sim.Event) error {
	reply := make(chan error, 1)
	if err := s.enqueue(message{target: target, ev: ev, mode: exactTime, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		select {
		case err := <-reply:
			return err
		default:
			return sim.ErrNotRunning
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Query returns the last published value of a variable. It is safe to call
// from any goroutine and never blocks.
func (s *Scheduler) Query(model, variable string) (any, sim.Time, error) {
	if s.aborted.Load() {
		return nil, 0, sim.ErrAborted
	}
	return s.sim.Query(model, variable)
}

// QueryFloat is Query for float64 variables.
func (s *Scheduler) QueryFloat(model, variable string) (float64, error) {
	if s.aborted.Load() {
		return 0, sim.ErrAborted
	}
	return s.sim.QueryFloat(model, variable)
}

// Wait blocks until the scheduler terminates or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
