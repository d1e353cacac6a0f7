package cmd

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment/meter"
	"github.com/hemsim/hemsim/sim/household"
	"github.com/hemsim/hemsim/sim/realtime"
	"github.com/hemsim/hemsim/sim/telemetry"
	"github.com/hemsim/hemsim/sim/trace"
)

const (
	modeMIL = "mil"
	modeSIL = "sil"
)

type runOptions struct {
	Mode           string
	RealTime       bool
	Acceleration   float64
	Topic          string        // empty selects telemetry.Topic
	ReportInterval time.Duration // 0 selects telemetry.DefaultInterval
}

// subsystemTrace is the trace of one simulator of a run.
type subsystemTrace struct {
	Name  string
	Trace *trace.SimulationTrace
	Steps int64
}

// result is the outcome of one run.
type result struct {
	Household string
	Mode      string
	RunID     uuid.UUID
	Seed      int64
	End       sim.Time
	Reading   meter.Reading
	Outputs   int
	Overruns  int64
	Published int
	Traces    []subsystemTrace
}

// execute builds the household in the requested mode and runs it. pub may
// be nil, which disables telemetry.
func execute(ctx context.Context, cfg household.Config, simCfg sim.Config, opts runOptions, pub telemetry.Publisher) (result, error) {
	if simCfg.RunID == uuid.Nil {
		simCfg.RunID = uuid.New()
	}
	res := result{Household: cfg.Name, Mode: opts.Mode, RunID: simCfg.RunID, Seed: simCfg.Seed, End: simCfg.End}

	reporter := func(q telemetry.Querier) *telemetry.Reporter {
		if pub == nil {
			return nil
		}
		r := telemetry.NewReporter(q, cfg.Name, simCfg.RunID.String(), pub)
		if opts.Topic != "" {
			r.Topic = opts.Topic
		}
		if opts.ReportInterval > 0 {
			r.Interval = opts.ReportInterval
		}
		return r
	}

	var (
		src telemetry.Querier
		rep *telemetry.Reporter
		err error
	)
	switch opts.Mode {
	case modeMIL:
		src, rep, err = executeMIL(ctx, cfg, simCfg, opts, reporter, &res)
	case modeSIL:
		src, rep, err = executeSIL(ctx, cfg, simCfg, opts, reporter, &res)
	default:
		return res, fmt.Errorf("unknown mode %q, expected %s or %s", opts.Mode, modeMIL, modeSIL)
	}
	if err != nil {
		return res, err
	}
	if rep != nil {
		res.Published = rep.Published()
	}
	res.Reading, err = telemetry.ReadMeter(src, cfg.Name)
	if err != nil {
		return res, fmt.Errorf("reading meter: %w", err)
	}
	return res, nil
}

func executeMIL(ctx context.Context, cfg household.Config, simCfg sim.Config, opts runOptions,
	reporter func(telemetry.Querier) *telemetry.Reporter, res *result) (telemetry.Querier, *telemetry.Reporter, error) {
	root, err := household.BuildMIL(cfg)
	if err != nil {
		return nil, nil, err
	}
	s, err := sim.NewSimulator(root, simCfg)
	if err != nil {
		return nil, nil, err
	}
	s.OnOutput(func(ev sim.Event) {
		res.Outputs++
		logrus.Infof("[t=%s] household reported %s", ev.Time(), ev)
	})
	defer func() {
		res.Traces = []subsystemTrace{{Name: s.RootID(), Trace: s.Trace, Steps: s.Steps()}}
	}()

	rep := reporter(s)
	if !opts.RealTime {
		s.Run()
		if rep != nil {
			rep.Tick()
		}
		return s, rep, nil
	}

	sched, err := realtime.New(s, realtime.NewConfig(opts.Acceleration))
	if err != nil {
		return nil, nil, err
	}
	if err := sched.ArmStart(time.Now(), simCfg.Start, simCfg.End); err != nil {
		return nil, nil, err
	}
	var companions []realtime.Runner
	if rep != nil {
		// Queries go through the scheduler while it runs.
		rep.Source = sched
		companions = append(companions, rep)
	}
	err = realtime.RunAll(ctx, []*realtime.Scheduler{sched}, companions...)
	res.Overruns = sched.Overruns()
	return sched, rep, err
}

func executeSIL(ctx context.Context, cfg household.Config, simCfg sim.Config, opts runOptions,
	reporter func(telemetry.Querier) *telemetry.Reporter, res *result) (telemetry.Querier, *telemetry.Reporter, error) {
	if !opts.RealTime {
		logrus.Infof("SIL subsystems are paced in real time at %gx", opts.Acceleration)
	}
	sil, err := household.BuildSIL(cfg, simCfg, realtime.NewConfig(opts.Acceleration))
	if err != nil {
		return nil, nil, err
	}
	// Hosts run on their own goroutines.
	var outputs atomic.Int64
	for _, h := range sil.Hosts {
		h.Scheduler.Simulator().OnOutput(func(sim.Event) { outputs.Add(1) })
	}
	defer func() {
		res.Outputs = int(outputs.Load())
		for _, sched := range sil.Schedulers() {
			s := sched.Simulator()
			res.Traces = append(res.Traces, subsystemTrace{Name: s.RootID(), Trace: s.Trace, Steps: s.Steps()})
			res.Overruns += sched.Overruns()
		}
	}()

	var companions []realtime.Runner
	rep := reporter(sil.Metering)
	if rep != nil {
		companions = append(companions, rep)
	}
	err = sil.Run(ctx, time.Now(), simCfg.Start, simCfg.End, companions...)
	return sil.Metering, rep, err
}

// Print writes the meter and trace summaries.
func (r result) Print(w io.Writer, wall time.Duration) {
	fmt.Fprintf(w, "=== Household %s (%s) ===\n", r.Household, r.Mode)
	fmt.Fprintf(w, "Run ID          : %s\n", r.RunID)
	fmt.Fprintf(w, "Seed            : %d\n", r.Seed)
	fmt.Fprintf(w, "Simulated       : %s\n", r.End.Duration())
	fmt.Fprintf(w, "Wall time       : %s\n", wall.Round(time.Millisecond))
	fmt.Fprintf(w, "Consumption     : %.1f W\n", r.Reading.Consumption)
	fmt.Fprintf(w, "Production      : %.1f W\n", r.Reading.Production)
	fmt.Fprintf(w, "Net power       : %.1f W\n", r.Reading.Net())
	fmt.Fprintf(w, "Consumed energy : %.1f Wh\n", r.Reading.ConsumedEnergy)
	fmt.Fprintf(w, "Produced energy : %.1f Wh\n", r.Reading.ProducedEnergy)
	fmt.Fprintf(w, "Net energy      : %.1f Wh\n", r.Reading.ConsumedEnergy-r.Reading.ProducedEnergy)
	fmt.Fprintf(w, "Reported events : %d\n", r.Outputs)
	if r.Overruns > 0 {
		fmt.Fprintf(w, "Overruns        : %d\n", r.Overruns)
	}
	if r.Published > 0 {
		fmt.Fprintf(w, "Published       : %d readings\n", r.Published)
	}

	for _, st := range r.Traces {
		if st.Trace == nil || st.Trace.Config.Level == trace.TraceLevelNone || st.Trace.Config.Level == "" {
			continue
		}
		sum := trace.Summarize(st.Trace)
		fmt.Fprintf(w, "=== Trace %s ===\n", st.Name)
		fmt.Fprintf(w, "Steps           : %d\n", st.Steps)
		fmt.Fprintf(w, "Transitions     : %d (%d internal, %d external)\n", sum.TotalTransitions, sum.InternalCount, sum.ExternalCount)
		fmt.Fprintf(w, "Outputs         : %d\n", sum.TotalOutputs)
		for _, k := range trace.SortedKeys(sum.OutputsByKind) {
			fmt.Fprintf(w, "  %-20s %d\n", k, sum.OutputsByKind[k])
		}
		fmt.Fprintf(w, "Deliveries      : %d\n", sum.TotalDeliveries)
		for _, k := range trace.SortedKeys(sum.DeliveriesBySink) {
			fmt.Fprintf(w, "  %-20s %d\n", k, sum.DeliveriesBySink[k])
		}
		fmt.Fprintf(w, "Injections      : %d\n", sum.TotalInjections)
	}
}

// describe writes the composition of the household in the given mode.
func describe(w io.Writer, cfg household.Config, mode string) error {
	switch mode {
	case modeMIL:
		root, err := household.BuildMIL(cfg)
		if err != nil {
			return err
		}
		root.Describe(w)
		return nil
	case modeSIL:
		// The run parameters are only read at construction; a one-second window
		// is enough to validate and print every subsystem.
		sil, err := household.BuildSIL(cfg, sim.NewConfig(0, sim.Second, 1), realtime.NewConfig(1))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s (metering subsystem)\n", sil.Name)
		for _, h := range sil.Hosts {
			fmt.Fprintf(w, "%s (appliance subsystem) kinds=%v -> %s\n", h.Unit.Name, h.Unit.Kinds, sil.Name)
		}
		return nil
	default:
		return fmt.Errorf("unknown mode %q, expected %s or %s", mode, modeMIL, modeSIL)
	}
}
