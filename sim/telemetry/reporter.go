package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hemsim/hemsim/sim"
)

// DefaultInterval is the wall-clock period between two published readings.
const DefaultInterval = time.Second

// Reporter polls the meter of a household and publishes its readings. It
// implements realtime.Runner.
type Reporter struct {
	Source    Querier
	Model     string // model re-exporting the meter variables
	Publisher Publisher
	Topic     string
	RunID     string
	Interval  time.Duration // 0 selects DefaultInterval
	Now       func() time.Time

	published int
	failed    int
}

// NewReporter returns a reporter publishing the meter of household on its
// default topic.
func NewReporter(src Querier, household, runID string, pub Publisher) *Reporter {
	return &Reporter{
		Source:    src,
		Model:     household,
		Publisher: pub,
		Topic:     Topic(household),
		RunID:     runID,
		Interval:  DefaultInterval,
		Now:       time.Now,
	}
}

// Published and Failed count the readings sent and the failed attempts.
func (r *Reporter) Published() int { return r.published }
func (r *Reporter) Failed() int    { return r.failed }

// Tick publishes one reading. Readings not yet available are skipped;
// errors are logged and counted, never returned.
func (r *Reporter) Tick() {
	reading, err := ReadMeter(r.Source, r.Model)
	switch {
	case errors.Is(err, sim.ErrNotPublished):
		logrus.Debugf("telemetry: meter of %s not published yet", r.Model)
		return
	case err != nil:
		r.failed++
		logrus.Warnf("telemetry: reading meter of %s: %v", r.Model, err)
		return
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	payload, err := FormatPayload(r.RunID, now(), reading)
	if err != nil {
		r.failed++
		logrus.Warnf("telemetry: encoding reading: %v", err)
		return
	}
	if err := r.Publisher.Publish(r.Topic, payload); err != nil {
		r.failed++
		logrus.Warnf("telemetry: %v", err)
		return
	}
	r.published++
}

// Run publishes a reading every interval until ctx is done, then a final
// one. It always returns nil: telemetry never stops a run.
func (r *Reporter) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Tick()
			logrus.Infof("telemetry: %d readings published to %s, %d failed", r.published, r.Topic, r.failed)
			return nil
		case <-ticker.C:
			r.Tick()
		}
	}
}
