package dishwasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment"
	"github.com/hemsim/hemsim/sim/scenario"
)

var id = equipment.PowerID("dw")

func newSim(t *testing.T) (*sim.Simulator, *[]sim.Event) {
	t.Helper()
	s, err := sim.NewSimulator(NewPowerModel("dw", DefaultConfig()), sim.NewConfig(0, 4*sim.Hour, 1))
	require.NoError(t, err)
	var outs []sim.Event
	s.OnOutput(func(ev sim.Event) { outs = append(outs, ev) })
	return s, &outs
}

func consumption(t *testing.T, s *sim.Simulator) float64 {
	t.Helper()
	v, err := s.QueryFloat(id, equipment.Consumption)
	require.NoError(t, err)
	return v
}

func TestDishwasher_ProgramEndsByItself(t *testing.T) {
	// GIVEN a dishwasher switched on at t=0 and set to quick at t=1min
	s, outs := newSim(t)
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.SwitchOn, 0)))
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.SetProgram, sim.Minute, sim.Payload{Label: "quick"})))

	s.RunUntil(30 * sim.Second)
	assert.Equal(t, 5.0, consumption(t, s))

	// WHEN the program runs, THEN it draws its power and exports its name
	s.RunUntil(10 * sim.Minute)
	assert.Equal(t, 1800.0, consumption(t, s))
	prog, _, err := s.Query(id, ProgramVariable)
	require.NoError(t, err)
	assert.Equal(t, "quick", prog)

	// WHEN 30 minutes have passed, THEN ProgramDone is reported and the machine idles
	s.RunUntil(40 * sim.Minute)
	require.Len(t, *outs, 1)
	done := (*outs)[0]
	assert.Equal(t, sim.ProgramDone, done.Kind())
	assert.Equal(t, 31*sim.Minute, done.Time())
	assert.Equal(t, "quick", done.Label())
	assert.Equal(t, 5.0, consumption(t, s))
	prog, _, err = s.Query(id, ProgramVariable)
	require.NoError(t, err)
	assert.Equal(t, "", prog)
}

func TestDishwasher_SwitchOffInterruptsProgram(t *testing.T) {
	s, outs := newSim(t)
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.SwitchOn, 0)))
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.SetProgram, 0, sim.Payload{Label: "eco"})))
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.SwitchOff, sim.Hour)))

	s.Run()

	assert.Empty(t, *outs)
	assert.Equal(t, 0.0, consumption(t, s))
}

func TestDishwasher_UnknownProgramIsViolation(t *testing.T) {
	s, _ := newSim(t)
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.SwitchOn, 0)))
	require.NoError(t, s.Inject(id, sim.NewEvent(sim.SetProgram, 0, sim.Payload{Label: "pots"})))

	defer func() {
		_, ok := sim.AsContractViolation(recover())
		assert.True(t, ok)
	}()
	s.Run()
	t.Fatal("expected a contract violation")
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Equal(t, []string{"eco", "intensive", "quick"}, DefaultConfig().ProgramNames())
	cfg := DefaultConfig()
	cfg.Programs["broken"] = Program{Power: 100}
	assert.Error(t, cfg.Validate())
	assert.Error(t, Config{}.Validate())
}

type triggers struct{ got []sim.Event }

func (tr *triggers) Trigger(target string, kind sim.Kind, payload ...sim.Payload) error {
	tr.got = append(tr.got, sim.NewEvent(kind, 0, payload...))
	return nil
}

func TestUser_PlansProgramsOnController(t *testing.T) {
	// GIVEN a one-shot dishwasher user owned by a connected controller
	cfg := DefaultConfig()
	ctrl := NewController("dw", cfg)
	tr := &triggers{}
	ctrl.Connect(tr)
	sc := NewUserConfig(cfg)
	sc.Cyclic = false
	root := sim.NewCoupled("home", equipmentUser("dw", sc))
	simCfg := sim.NewConfig(0, 48*sim.Hour, 5)
	simCfg.Params[sim.ParamKey(equipment.UserID("dw"), sim.OwnerParam)] = ctrl
	s, err := sim.NewSimulator(root, simCfg)
	require.NoError(t, err)

	// WHEN the script plays
	s.Run()

	// THEN every operation reached the relay and the program was planned
	require.Len(t, tr.got, 3)
	assert.Equal(t, []sim.Kind{sim.SwitchOn, sim.SetProgram, sim.SwitchOff},
		[]sim.Kind{tr.got[0].Kind(), tr.got[1].Kind(), tr.got[2].Kind()})
	plans := ctrl.Plans()
	require.Len(t, plans, 1)
	assert.Equal(t, tr.got[1].Label(), plans[0].Program)
	assert.Greater(t, plans[0].Deadline, cfg.Programs[plans[0].Program].Duration)
	assert.Equal(t, "off", ctrl.State())

	// AND the controller follows ProgramDone reported by the simulation
	ctrl.Observe(sim.NewEvent(sim.ProgramDone, 0))
	assert.Equal(t, "off", ctrl.State())
	assert.Error(t, ctrl.Plan("pots", sim.Hour))
}

func equipmentUser(name string, sc scenario.Config) *scenario.User {
	return scenario.NewUser(equipment.UserID(name), sc)
}
