package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment"
)

func newPowerSim(t *testing.T, end sim.Time) *sim.Simulator {
	t.Helper()
	s, err := sim.NewSimulator(NewPowerModel("gen", DefaultConfig()), sim.NewConfig(0, end, 1))
	require.NoError(t, err)
	return s
}

func query(t *testing.T, s *sim.Simulator, name string) float64 {
	t.Helper()
	v, err := s.QueryFloat(equipment.PowerID("gen"), name)
	require.NoError(t, err)
	return v
}

func TestGenerator_FuelDrainsWhileRunning(t *testing.T) {
	// GIVEN a full generator switched on at t=0
	s := newPowerSim(t, 6*sim.Hour)
	require.NoError(t, s.Inject(equipment.PowerID("gen"), sim.NewEvent(sim.SwitchOn, 0)))

	// WHEN time passes, THEN the level follows max(capacity - hours*rate, 0)
	for _, at := range []sim.Time{sim.Minute, sim.Hour, 2 * sim.Hour, 3*sim.Hour + 30*sim.Minute} {
		s.RunUntil(at)
		want := max(4.5-at.Hours()*1.2, 0)
		assert.InDelta(t, want, query(t, s, FuelLevel), 1e-6, "at %s", at)
		assert.Equal(t, 2500.0, query(t, s, equipment.Production), "at %s", at)
	}
}

func TestGenerator_EmptyTankSwitchesOff(t *testing.T) {
	// GIVEN a generator running from t=0
	s := newPowerSim(t, 6*sim.Hour)
	var outs []sim.Event
	s.OnOutput(func(ev sim.Event) { outs = append(outs, ev) })
	require.NoError(t, s.Inject(equipment.PowerID("gen"), sim.NewEvent(sim.SwitchOn, 0)))

	// WHEN the tank runs dry after 3h45m
	s.RunUntil(5 * sim.Hour)

	// THEN production stops and the level stays at zero
	assert.Equal(t, 0.0, query(t, s, FuelLevel))
	assert.Equal(t, 0.0, query(t, s, equipment.Production))
	_, at, err := s.Query(equipment.PowerID("gen"), equipment.Production)
	require.NoError(t, err)
	assert.InDelta(t, float64(3*sim.Hour+45*sim.Minute), float64(at), float64(sim.Second))
	require.Len(t, outs, 1)
	assert.Equal(t, sim.SwitchOff, outs[0].Kind())
	assert.Equal(t, at, outs[0].Time())

	// AND a refill with an empty payload fills the tank, still switched off
	require.NoError(t, s.Inject(equipment.PowerID("gen"), sim.NewEvent(sim.Refill, 5*sim.Hour)))
	s.RunUntil(5*sim.Hour + sim.Minute)
	assert.Equal(t, 4.5, query(t, s, FuelLevel))
	assert.Equal(t, 0.0, query(t, s, equipment.Production))
}

func TestGenerator_PartialRefillWhileRunning(t *testing.T) {
	s := newPowerSim(t, 6*sim.Hour)
	id := equipment.PowerID("gen")
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.SwitchOn, 0)))
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.Refill, 2*sim.Hour, sim.Payload{Value: 1})))
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.SwitchOff, 3*sim.Hour)))

	s.RunUntil(4 * sim.Hour)

	// 4.5 - 2.4 + 1 - 1.2
	assert.InDelta(t, 1.9, query(t, s, FuelLevel), 1e-6)
	assert.Equal(t, 0.0, query(t, s, equipment.Production))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	bad := DefaultConfig()
	bad.Capacity = 0
	assert.Error(t, bad.Validate())
	bad = DefaultConfig()
	bad.Step = 0
	assert.Error(t, bad.Validate())
}

type triggers struct{ got []sim.Kind }

func (tr *triggers) Trigger(target string, kind sim.Kind, payload ...sim.Payload) error {
	tr.got = append(tr.got, kind)
	return nil
}

func TestController_FollowsOperationTable(t *testing.T) {
	ctx := context.Background()
	c := NewController("gen")

	// GIVEN an unconnected controller, WHEN an operation is performed, THEN it fails
	assert.ErrorIs(t, c.Perform(ctx, sim.NewEvent(sim.SwitchOn, 0)), equipment.ErrNotConnected)
	assert.Equal(t, "off", c.State())

	tr := &triggers{}
	c.Connect(tr)
	assert.ErrorIs(t, c.Perform(ctx, sim.NewEvent(sim.SwitchOff, 0)), equipment.ErrInvalidOperation)
	require.NoError(t, c.Perform(ctx, sim.NewEvent(sim.SwitchOn, 0)))
	require.NoError(t, c.Perform(ctx, sim.NewEvent(sim.Refill, 0)))
	assert.Equal(t, "on", c.State())
	require.NoError(t, c.Perform(ctx, sim.NewEvent(sim.SwitchOff, 0)))
	assert.Equal(t, "off", c.State())
	assert.Equal(t, []sim.Kind{sim.SwitchOn, sim.Refill, sim.SwitchOff}, tr.got)
}

func TestUnit_AssembleRunsUserScript(t *testing.T) {
	// GIVEN a generator unit whose user starts it every hour on average
	u := NewUnit("gen", DefaultConfig(), NewUserConfig())
	root := u.Assemble()
	s, err := sim.NewSimulator(root, sim.NewConfig(0, 24*sim.Hour, 3))
	require.NoError(t, err)

	// WHEN it runs for a day
	s.Run()

	// THEN production is exported by the unit and the tank never goes negative
	p, err := s.QueryFloat("gen", equipment.Production)
	require.NoError(t, err)
	assert.Contains(t, []float64{0, 2500}, p)
	lv, err := s.QueryFloat(equipment.PowerID("gen"), FuelLevel)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, lv, 0.0)
	assert.LessOrEqual(t, lv, 4.5)
}
