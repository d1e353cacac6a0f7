package realtime

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hemsim/hemsim/sim"
)

// Runner is a long-lived companion of a paced run, e.g. a telemetry reporter.
type Runner interface {
	Run(ctx context.Context) error
}

// ArmAll arms every scheduler on the same wall start and simulated window.
func ArmAll(wall time.Time, start, end sim.Time, schedulers ...*Scheduler) error {
	for _, s := range schedulers {
		if err := s.ArmStart(wall, start, end); err != nil {
			return err
		}
	}
	return nil
}

// RunAll runs the schedulers concurrently, each on its own goroutine, and
// the companions until every scheduler has terminated. The first error
// cancels the others; it is returned once all have stopped.
func RunAll(ctx context.Context, schedulers []*Scheduler, companions ...Runner) error {
	g, gctx := errgroup.WithContext(ctx)
	compCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, s := range schedulers {
		s := s
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return s.Run(gctx)
		})
	}
	for _, c := range companions {
		c := c
		g.Go(func() error { return c.Run(compCtx) })
	}
	g.Go(func() error {
		wg.Wait()
		cancel()
		return nil
	})
	return g.Wait()
}
