package powerbank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment"
)

var id = equipment.PowerID("bank")

func read(t *testing.T, s *sim.Simulator, name string) float64 {
	t.Helper()
	v, err := s.QueryFloat(id, name)
	require.NoError(t, err)
	return v
}

func TestPowerBank_ChargesUntilFullThenStandby(t *testing.T) {
	// GIVEN a half-charged bank charging from t=0
	s, err := sim.NewSimulator(NewPowerModel("bank", DefaultConfig()), sim.NewConfig(0, 8*sim.Hour, 1))
	require.NoError(t, err)
	var outs []sim.Event
	s.OnOutput(func(ev sim.Event) { outs = append(outs, ev) })
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.StartCharging, 0)))

	// WHEN an hour passes, THEN it draws 1000 W and stored 1000 Wh more
	s.RunUntil(sim.Hour)
	assert.Equal(t, 1000.0, read(t, s, equipment.Consumption))
	assert.InDelta(t, 3500, read(t, s, Charge), 1e-6)

	// WHEN it fills up after 2h30m, THEN it reports Standby and stops drawing
	s.RunUntil(3 * sim.Hour)
	require.Len(t, outs, 1)
	assert.Equal(t, sim.Standby, outs[0].Kind())
	assert.InDelta(t, float64(2*sim.Hour+30*sim.Minute), float64(outs[0].Time()), float64(sim.Second))
	assert.Equal(t, 5000.0, read(t, s, Charge))
	assert.Equal(t, 0.0, read(t, s, equipment.Consumption))

	// WHEN discharging for an hour, THEN it delivers 800 W
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.StartDischarging, 3*sim.Hour)))
	s.RunUntil(4 * sim.Hour)
	assert.Equal(t, 800.0, read(t, s, equipment.Production))
	assert.InDelta(t, 4200, read(t, s, Charge), 1e-6)
}

func TestPowerBank_DischargingEmptyBankProducesNothing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Initial = 0
	s, err := sim.NewSimulator(NewPowerModel("bank", cfg), sim.NewConfig(0, sim.Hour, 1))
	require.NoError(t, err)
	var outs []sim.Event
	s.OnOutput(func(ev sim.Event) { outs = append(outs, ev) })
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.StartDischarging, sim.Minute)))

	s.Run()

	assert.Equal(t, 0.0, read(t, s, equipment.Production))
	require.Len(t, outs, 1)
	assert.Equal(t, sim.Minute, outs[0].Time())
}

func TestPowerBank_InitialChargeRunParameter(t *testing.T) {
	cfg := sim.NewConfig(0, sim.Hour, 1)
	cfg.Params[sim.ParamKey("bank-storage", "initial")] = 6000.0
	_, err := sim.NewSimulator(NewPowerModel("bank", DefaultConfig()), cfg)
	assert.Error(t, err, "initial charge above capacity")

	cfg.Params[sim.ParamKey("bank-storage", "initial")] = 1000.0
	s, err := sim.NewSimulator(NewPowerModel("bank", DefaultConfig()), cfg)
	require.NoError(t, err)
	s.Initialise()
	assert.Equal(t, 1000.0, read(t, s, Charge))
}

type triggers struct{}

func (triggers) Trigger(string, sim.Kind, ...sim.Payload) error { return nil }

func TestController_ObservesStandby(t *testing.T) {
	c := NewController("bank")
	c.Connect(triggers{})
	require.NoError(t, c.Perform(context.Background(), sim.NewEvent(sim.StartCharging, 0)))
	assert.Equal(t, "charging", c.State())
	assert.ErrorIs(t, c.Perform(context.Background(), sim.NewEvent(sim.StartCharging, 0)), equipment.ErrInvalidOperation)

	c.Observe(sim.NewEvent(sim.Standby, sim.Hour))
	assert.Equal(t, "standby", c.State())
	require.NoError(t, c.Perform(context.Background(), sim.NewEvent(sim.Standby, 0)))
}
