// Package telemetry publishes meter readings of a running household to an
// MQTT broker. Readings are taken through the query contract only, so the
// reporter never blocks the simulation.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment/meter"
)

// Topic returns the MQTT topic of a household's meter readings.
func Topic(household string) string { return "hemsim/" + household + "/meter" }

// Publisher sends payloads to a broker.
type Publisher interface {
	// Publish sends payload on topic. Failures must not crash the caller.
	Publish(topic string, payload []byte) error
	Close() error
}

// Querier reads published variables. *sim.Simulator and
// *realtime.Scheduler implement it.
type Querier interface {
	Query(model, variable string) (any, sim.Time, error)
}

// Payload is the JSON form of a meter reading.
type Payload struct {
	RunID          string  `json:"run_id"`
	Timestamp      string  `json:"timestamp"`
	SimTime        float64 `json:"sim_time_s"`
	Consumption    float64 `json:"consumption_w"`
	Production     float64 `json:"production_w"`
	Net            float64 `json:"net_w"`
	ConsumedEnergy float64 `json:"consumed_wh"`
	ProducedEnergy float64 `json:"produced_wh"`
}

// FormatPayload encodes r, taken at wall time at, for run.
func FormatPayload(run string, at time.Time, r meter.Reading) ([]byte, error) {
	return json.Marshal(Payload{
		RunID:          run,
		Timestamp:      at.UTC().Format(time.RFC3339Nano),
		SimTime:        r.Time.Seconds(),
		Consumption:    r.Consumption,
		Production:     r.Production,
		Net:            r.Net(),
		ConsumedEnergy: r.ConsumedEnergy,
		ProducedEnergy: r.ProducedEnergy,
	})
}

// ReadMeter queries the meter variables re-exported by model.
func ReadMeter(q Querier, model string) (meter.Reading, error) {
	var r meter.Reading
	fields := []struct {
		name string
		dst  *float64
	}{
		{meter.CurrentConsumption, &r.Consumption},
		{meter.CurrentProduction, &r.Production},
		{meter.ConsumedEnergy, &r.ConsumedEnergy},
		{meter.ProducedEnergy, &r.ProducedEnergy},
	}
	for _, f := range fields {
		v, at, err := q.Query(model, f.name)
		if err != nil {
			return meter.Reading{}, err
		}
		x, ok := v.(float64)
		if !ok {
			return meter.Reading{}, fmt.Errorf("%s.%s: %w", model, f.name, sim.ErrTypeMismatch)
		}
		*f.dst = x
		r.Time = max(r.Time, at)
	}
	return r, nil
}
