package sim

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hemsim/hemsim/sim/trace"
)

// DefaultMaxZeroDelaySteps bounds the number of steps executed at a single
// simulated instant before the run is declared stuck in a zero-delay loop.
const DefaultMaxZeroDelaySteps = 100000

// Config groups the parameters of one simulation run.
type Config struct {
	Start             Time              // simulated start time
	End               Time              // hard simulated end time (must be > Start)
	Seed              int64             // master seed for every model's random source
	Params            Params            // run parameters handed to every model
	Trace             trace.TraceConfig // trace collection
	MaxZeroDelaySteps int               // 0 selects DefaultMaxZeroDelaySteps
	RunID             uuid.UUID         // shared by every subsystem of one run; zero draws a new one
}

// NewConfig returns a Config for [start, end] with the given seed.
func NewConfig(start, end Time, seed int64) Config {
	return Config{
		Start:  start,
		End:    end,
		Seed:   seed,
		Params: Params{},
	}
}

// Validate checks the time window and trace level.
func (c Config) Validate() error {
	if c.Start < 0 {
		return fmt.Errorf("start time must be non-negative, got %s", c.Start)
	}
	if c.End <= c.Start {
		return fmt.Errorf("end time %s must be after start time %s", c.End, c.Start)
	}
	if !trace.IsValidTraceLevel(string(c.Trace.Level)) {
		return fmt.Errorf("unknown trace level %q", c.Trace.Level)
	}
	if c.MaxZeroDelaySteps < 0 {
		return fmt.Errorf("max zero-delay steps must be non-negative, got %d", c.MaxZeroDelaySteps)
	}
	return nil
}
