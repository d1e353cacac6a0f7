package scenario

import (
	"math"
	"math/rand"

	"github.com/hemsim/hemsim/sim"
)

// MinDelay is the floor applied to every sampled delay, so a scenario never
// schedules a zero or negative step.
const MinDelay = 100 * sim.Millisecond

// DelaySampler draws the delay before a scenario step.
type DelaySampler interface {
	Sample(rng *rand.Rand) sim.Time
}

// GaussianDelay produces normally distributed delays clamped below at Floor.
type GaussianDelay struct {
	Mean   sim.Time
	StdDev sim.Time
	Floor  sim.Time
}

func (s GaussianDelay) Sample(rng *rand.Rand) sim.Time {
	floor := max(s.Floor, MinDelay)
	if s.StdDev <= 0 {
		return max(floor, s.Mean)
	}
	val := rng.NormFloat64()*float64(s.StdDev) + float64(s.Mean)
	return max(floor, sim.Time(math.Round(val)))
}

// ConstantDelay always returns the same delay.
type ConstantDelay sim.Time

func (c ConstantDelay) Sample(_ *rand.Rand) sim.Time {
	return max(MinDelay, sim.Time(c))
}

// WeibullSampler draws Weibull-distributed magnitudes, e.g. wind speeds.
type WeibullSampler struct {
	Shape float64 // Weibull k parameter
	Scale float64 // Weibull λ parameter
}

// NewWeibullFromMean returns the sampler of shape k whose mean is mean.
func NewWeibullFromMean(k, mean float64) WeibullSampler {
	return WeibullSampler{Shape: k, Scale: mean / math.Gamma(1+1/k)}
}

// Mean returns the distribution mean.
func (s WeibullSampler) Mean() float64 {
	return s.Scale * math.Gamma(1+1/s.Shape)
}

func (s WeibullSampler) Sample(rng *rand.Rand) float64 {
	// Inverse CDF: scale * (-ln(U))^(1/shape)
	u := rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64 // prevent -ln(0) = +Inf
	}
	return s.Scale * math.Pow(-math.Log(u), 1.0/s.Shape)
}
