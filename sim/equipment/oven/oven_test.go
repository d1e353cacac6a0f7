package oven

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment"
)

func TestOven_ConsumptionFollowsOperations(t *testing.T) {
	// GIVEN an oven switched on at 180 degrees at t=0, turned up at t=5, off at t=12
	id := equipment.PowerID("oven")
	s, err := sim.NewSimulator(NewPowerModel("oven", DefaultConfig()), sim.NewConfig(0, 20*sim.Second, 1))
	require.NoError(t, err)
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.SwitchOn, 0, sim.Payload{Value: 180})))
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.SetTemperature, 5*sim.Second, sim.Payload{Value: 220})))
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.SwitchOff, 12*sim.Second)))

	// WHEN time reaches 1s, THEN it draws 2000 W at 180 degrees
	s.RunUntil(sim.Second)
	p, err := s.QueryFloat(id, equipment.Consumption)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, p)
	temp, err := s.QueryFloat(id, TargetTemperature)
	require.NoError(t, err)
	assert.Equal(t, 180.0, temp)

	// WHEN time reaches 6s, THEN the new target is exported
	s.RunUntil(6 * sim.Second)
	temp, err = s.QueryFloat(id, TargetTemperature)
	require.NoError(t, err)
	assert.Equal(t, 220.0, temp)

	// WHEN time reaches 13s, THEN it draws nothing
	s.RunUntil(13 * sim.Second)
	val, at, err := s.Query(id, equipment.Consumption)
	require.NoError(t, err)
	assert.Equal(t, 0.0, val)
	assert.Equal(t, 12*sim.Second, at)
}

func TestOven_SwitchOffWhileOffIsViolation(t *testing.T) {
	s, err := sim.NewSimulator(NewPowerModel("oven", DefaultConfig()), sim.NewConfig(0, sim.Minute, 1))
	require.NoError(t, err)
	require.NoError(t, s.Inject(equipment.PowerID("oven"), sim.NewEvent(sim.SwitchOff, 0)))

	defer func() {
		v, ok := sim.AsContractViolation(recover())
		require.True(t, ok)
		assert.Equal(t, "oven-electricity", v.Model)
	}()
	s.Run()
	t.Fatal("expected a contract violation")
}

func TestOven_PowerRunParameter(t *testing.T) {
	cfg := sim.NewConfig(0, sim.Minute, 1)
	cfg.Params[sim.ParamKey("oven-electricity", "power")] = "1500"
	s, err := sim.NewSimulator(NewPowerModel("oven", DefaultConfig()), cfg)
	require.NoError(t, err)
	require.NoError(t, s.Inject(equipment.PowerID("oven"), sim.NewEvent(sim.SwitchOn, 0)))
	s.RunUntil(sim.Second)

	p, err := s.QueryFloat(equipment.PowerID("oven"), equipment.Consumption)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, p)
	temp, err := s.QueryFloat(equipment.PowerID("oven"), TargetTemperature)
	require.NoError(t, err)
	assert.Equal(t, 180.0, temp, "default target without payload")
}

func TestOven_UnitInMIL(t *testing.T) {
	// GIVEN the oven's user and power models composed together
	u := NewUnit("oven", DefaultConfig(), NewUserConfig())
	s, err := sim.NewSimulator(u.Assemble(), sim.NewConfig(0, 12*sim.Hour, 7))
	require.NoError(t, err)

	// WHEN the scripted user drives it, THEN no violation occurs and the unit
	// exports its consumption
	s.Run()
	p, err := s.QueryFloat("oven", equipment.Consumption)
	require.NoError(t, err)
	assert.Contains(t, []float64{0, 2000}, p)
}
