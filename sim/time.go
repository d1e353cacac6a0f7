package sim

import (
	"math"
	"strconv"
	"time"
)

// Time is a point in, or a span of, simulated time counted in microseconds.
// Simulated time is unrelated to wall-clock time until a real-time scheduler
// maps one onto the other.
type Time int64

// Infinity is the time-advance of a model with nothing scheduled.
const Infinity Time = math.MaxInt64

const (
	Microsecond Time = 1
	Millisecond      = 1000 * Microsecond
	Second           = 1000 * Millisecond
	Minute           = 60 * Second
	Hour             = 60 * Minute
)

// Seconds converts a number of simulated seconds to a Time, rounding to the
// nearest microsecond.
func Seconds(s float64) Time {
	if math.IsInf(s, 1) || s >= float64(Infinity)/float64(Second) {
		return Infinity
	}
	return Time(math.Round(s * float64(Second)))
}

// FromDuration converts a Go duration to simulated time.
func FromDuration(d time.Duration) Time {
	return Time(d / time.Microsecond)
}

// Duration converts t to a Go duration. Infinity maps to the largest duration.
func (t Time) Duration() time.Duration {
	if t.IsInfinite() || t > Time(math.MaxInt64/int64(time.Microsecond)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(t) * time.Microsecond
}

// Seconds returns t as a floating point number of seconds.
func (t Time) Seconds() float64 {
	if t.IsInfinite() {
		return math.Inf(1)
	}
	return float64(t) / float64(Second)
}

// Hours returns t as a floating point number of hours.
func (t Time) Hours() float64 {
	if t.IsInfinite() {
		return math.Inf(1)
	}
	return float64(t) / float64(Hour)
}

// IsInfinite reports whether t is Infinity.
func (t Time) IsInfinite() bool {
	return t == Infinity
}

// Add returns t+d, saturating at Infinity.
func (t Time) Add(d Time) Time {
	if t.IsInfinite() || d.IsInfinite() {
		return Infinity
	}
	if d > 0 && t > Infinity-d {
		return Infinity
	}
	return t + d
}

func (t Time) String() string {
	if t.IsInfinite() {
		return "inf"
	}
	return strconv.FormatFloat(t.Seconds(), 'f', -1, 64) + "s"
}
