package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/internal/testutil"
)

func TestRelay_ForwardsInArrivalOrderAtTheSameInstant(t *testing.T) {
	// GIVEN a relay in front of a recorder
	r := New("oven-relay", sim.SwitchOn, sim.SetTemperature, sim.SwitchOff)
	rec := testutil.NewRecorder("rec", sim.SwitchOn, sim.SetTemperature, sim.SwitchOff)
	root := sim.NewCoupled("oven", r, rec).
		ImportEvent(sim.SwitchOn, sim.To("oven-relay", sim.SwitchOn)).
		ImportEvent(sim.SetTemperature, sim.To("oven-relay", sim.SetTemperature)).
		ImportEvent(sim.SwitchOff, sim.To("oven-relay", sim.SwitchOff))
	for _, k := range []sim.Kind{sim.SwitchOn, sim.SetTemperature, sim.SwitchOff} {
		root.Route(sim.From("oven-relay", k), sim.To("rec", k))
	}
	s, err := sim.NewSimulator(root, sim.NewConfig(0, sim.Hour, 1))
	require.NoError(t, err)

	// WHEN three operations are triggered at the same instant and one later
	require.NoError(t, s.Inject("oven-relay", sim.NewEvent(sim.SwitchOn, 10*sim.Second, sim.Payload{Value: 180})))
	require.NoError(t, s.Inject("oven-relay", sim.NewEvent(sim.SetTemperature, 10*sim.Second, sim.Payload{Value: 200})))
	require.NoError(t, s.Inject("oven", sim.NewEvent(sim.SwitchOff, 40*sim.Second)))
	s.Run()

	// THEN they come out unchanged, in order, with no added delay
	require.Equal(t, []sim.Kind{sim.SwitchOn, sim.SetTemperature, sim.SwitchOff}, rec.Kinds())
	assert.Equal(t, 10*sim.Second, rec.Got[0].Time())
	assert.Equal(t, 180.0, rec.Got[0].Value())
	assert.Equal(t, 10*sim.Second, rec.Got[1].Time())
	assert.Equal(t, 200.0, rec.Got[1].Value())
	assert.Equal(t, 40*sim.Second, rec.Got[2].Time())
	assert.Equal(t, 3, r.Relayed())
}
