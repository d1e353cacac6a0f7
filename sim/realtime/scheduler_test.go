package realtime

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/internal/testutil"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

var wall0 = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

func newPaced(t *testing.T, root sim.Model, end sim.Time, acceleration float64, clock Clock) *Scheduler {
	t.Helper()
	s, err := sim.NewSimulator(root, sim.NewConfig(0, end, 1))
	require.NoError(t, err)
	cfg := NewConfig(acceleration)
	cfg.Clock = clock
	sch, err := New(s, cfg)
	require.NoError(t, err)
	return sch
}

func TestNew_RejectsNonPositiveAcceleration(t *testing.T) {
	s, err := sim.NewSimulator(testutil.NewRecorder("rec", sim.SwitchOn), sim.NewConfig(0, sim.Hour, 1))
	require.NoError(t, err)
	for _, k := range []float64{0, -1} {
		_, err := New(s, NewConfig(k))
		assert.ErrorIs(t, err, sim.ErrInvalidAcceleration, "factor %v", k)
	}
}

func TestScheduler_WallGapIsSimulatedGapOverAcceleration(t *testing.T) {
	tests := []struct {
		name string
		k    float64
		d    sim.Time
		want time.Duration
	}{
		{"one minute at 60x", 60, sim.Minute, time.Second},
		{"one hour at 3600x", 3600, sim.Hour, time.Second},
		{"ten seconds at 0.5x", 0.5, 10 * sim.Second, 20 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN an emitter firing every d, paced at factor k on a fake clock
			clock := NewFakeClock(wall0)
			src := testutil.NewEmitter("src", sim.SwitchOn, tt.d, tt.d, tt.d)
			root := sim.NewCoupled("root", src).ExportEvent(sim.From("src", sim.SwitchOn), sim.SwitchOn)
			sch := newPaced(t, root, 10*tt.d, tt.k, clock)
			var walls []time.Time
			sch.Simulator().OnOutput(func(sim.Event) { walls = append(walls, clock.Now()) })
			require.NoError(t, sch.ArmStart(wall0, 0, 10*tt.d))

			// WHEN the run completes
			require.NoError(t, sch.Run(context.Background()))

			// THEN consecutive outputs are d/k apart on the wall clock
			require.Len(t, walls, 3)
			assert.Equal(t, wall0.Add(tt.want), walls[0])
			for i := 1; i < len(walls); i++ {
				assert.Equal(t, tt.want, walls[i].Sub(walls[i-1]))
			}
			assert.Equal(t, Terminated, sch.State())
			assert.Zero(t, sch.Overruns())
		})
	}
}

func TestScheduler_Lifecycle(t *testing.T) {
	clock := NewFakeClock(wall0)
	rec := testutil.NewRecorder("rec", sim.SwitchOn)
	sch := newPaced(t, rec, sim.Minute, 60, clock)
	assert.Equal(t, Idle, sch.State())

	err := sch.Run(context.Background())
	assert.ErrorIs(t, err, sim.ErrNotRunning, "run before arming")

	require.NoError(t, sch.ArmStart(wall0.Add(time.Hour), 0, sim.Minute))
	assert.Equal(t, Armed, sch.State())
	assert.ErrorIs(t, sch.ArmStart(wall0, 0, sim.Minute), sim.ErrAlreadyArmed)

	require.NoError(t, sch.Run(context.Background()))

	assert.Equal(t, Terminated, sch.State())
	assert.Equal(t, 1, rec.Ended)
	assert.Equal(t, sim.Minute, rec.EndedAt)
	assert.Equal(t, wall0.Add(time.Hour+time.Second), clock.Now(), "waited for the start, then one wall second")
	assert.ErrorIs(t, sch.Run(context.Background()), sim.ErrNotRunning)
	assert.ErrorIs(t, sch.Trigger("rec", sim.SwitchOn), sim.ErrNotRunning)
}

func TestScheduler_TriggerFromTransitionIsTimeCoherent(t *testing.T) {
	// GIVEN a model that, at 30s, asks its owner scheduler to switch on rec
	clock := NewFakeClock(wall0)
	caller := testutil.NewEmitter("caller", sim.SwitchOn, 30*sim.Second)
	rec := testutil.NewRecorder("rec", sim.SwitchOn)
	sch := newPaced(t, sim.NewCoupled("root", caller, rec), sim.Minute, 10, clock)
	caller.OnFire = func(e *testutil.Emitter) {
		require.NoError(t, sch.Trigger("rec", sim.SwitchOn, sim.Payload{Value: 180}))
	}
	require.NoError(t, sch.ArmStart(wall0, 0, sim.Minute))

	// WHEN the run completes
	require.NoError(t, sch.Run(context.Background()))

	// THEN rec received the event at the caller's instant
	require.Len(t, rec.Got, 1)
	assert.Equal(t, 30*sim.Second, rec.Got[0].Time())
	assert.Equal(t, 180.0, rec.Got[0].Value())
}

func TestScheduler_TriggerBeforeStartIsStampedAtStart(t *testing.T) {
	clock := NewFakeClock(wall0)
	rec := testutil.NewRecorder("rec", sim.SwitchOn)
	sch := newPaced(t, rec, sim.Minute, 60, clock)
	require.NoError(t, sch.ArmStart(wall0, 0, sim.Minute))
	require.NoError(t, sch.Trigger("rec", sim.SwitchOn))

	require.NoError(t, sch.Run(context.Background()))

	require.Len(t, rec.Got, 1)
	assert.Equal(t, sim.Time(0), rec.Got[0].Time())
}

func TestScheduler_ContractViolationAbortsRun(t *testing.T) {
	// GIVEN a model that cannot handle any event
	clock := NewFakeClock(wall0)
	rec := testutil.NewRecorder("fragile", sim.SwitchOn)
	rec.Fragile = true
	sch := newPaced(t, rec, sim.Minute, 60, clock)
	require.NoError(t, sch.ArmStart(wall0, 0, sim.Minute))
	require.NoError(t, sch.Trigger("fragile", sim.SwitchOn))

	// WHEN the run starts
	err := sch.Run(context.Background())

	// THEN the run aborts with a diagnostic naming the model
	require.Error(t, err)
	assert.ErrorIs(t, err, sim.ErrAborted)
	var cv *sim.ContractViolation
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, "fragile", cv.Model)
	assert.Equal(t, Terminated, sch.State())
	assert.Equal(t, 0, rec.Ended, "aborted runs do not end models")
	_, _, qerr := sch.Query("fragile", "anything")
	assert.ErrorIs(t, qerr, sim.ErrAborted)
	assert.ErrorIs(t, sch.Err(), sim.ErrAborted)
}

func TestScheduler_OverrunKeepsNominalTime(t *testing.T) {
	// GIVEN a transition that takes 1.5 wall seconds at factor 1
	clock := NewFakeClock(wall0)
	src := testutil.NewEmitter("src", sim.SwitchOn, sim.Second, sim.Second, sim.Second)
	src.OnFire = func(e *testutil.Emitter) { clock.Advance(1500 * time.Millisecond) }
	sch := newPaced(t, src, 10*sim.Second, 1, clock)
	require.NoError(t, sch.ArmStart(wall0, 0, 10*sim.Second))

	// WHEN the run completes
	require.NoError(t, sch.Run(context.Background()))

	// THEN late steps are counted but fire at their simulated instants
	assert.Equal(t, int64(2), sch.Overruns())
	assert.Equal(t, []sim.Time{sim.Second, 2 * sim.Second, 3 * sim.Second}, src.Fired)
}

func TestScheduler_StopEndsAtCurrentTime(t *testing.T) {
	// GIVEN a source that stops its scheduler at 30s
	clock := NewFakeClock(wall0)
	src := testutil.NewEmitter("src", sim.SwitchOn, 30*sim.Second, 30*sim.Second, 30*sim.Second)
	rec := testutil.NewRecorder("rec", sim.SwitchOn)
	root := sim.NewCoupled("root", src, rec).Route(sim.From("src", sim.SwitchOn), sim.To("rec", sim.SwitchOn))
	sch := newPaced(t, root, sim.Hour, 60, clock)
	src.OnFire = func(*testutil.Emitter) { sch.Stop() }
	require.NoError(t, sch.ArmStart(wall0, 0, sim.Hour))

	// WHEN the run completes
	require.NoError(t, sch.Run(context.Background()))

	// THEN nothing fired after the stop and every model ended once, early
	assert.Equal(t, []sim.Time{30 * sim.Second}, src.Fired)
	assert.Equal(t, 1, rec.Ended)
	assert.Less(t, rec.EndedAt, sim.Hour)
	assert.GreaterOrEqual(t, rec.EndedAt, 30*sim.Second)
}

func TestScheduler_InjectIsSynchronous(t *testing.T) {
	// GIVEN a real-clock run that would last an hour
	rec := testutil.NewRecorder("rec", sim.SwitchOn)
	sch := newPaced(t, rec, sim.Hour, 1, SystemClock())
	require.NoError(t, sch.ArmStart(time.Now(), 0, sim.Hour))
	errc := make(chan error, 1)
	go func() { errc <- sch.Run(context.Background()) }()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// WHEN the host injects valid and invalid events
	okErr := sch.Inject(ctx, "rec", sim.NewEvent(sim.SwitchOn, 30*sim.Minute))
	ghostErr := sch.Inject(ctx, "ghost", sim.NewEvent(sim.SwitchOn, 30*sim.Minute))
	sch.Stop()
	require.NoError(t, <-errc)

	// THEN each call returned its own validation result
	assert.NoError(t, okErr)
	assert.ErrorIs(t, ghostErr, sim.ErrUnknownModel)
	assert.ErrorIs(t, sch.Inject(ctx, "rec", sim.NewEvent(sim.SwitchOn, 0)), sim.ErrNotRunning)
	assert.Empty(t, rec.Got, "stopped before the injected instant")
}

func TestScheduler_NowFollowsTheWallClock(t *testing.T) {
	clock := NewFakeClock(wall0)
	sch := newPaced(t, testutil.NewRecorder("rec", sim.SwitchOn), sim.Hour, 120, clock)
	assert.Equal(t, sim.Time(0), sch.Now())
	require.NoError(t, sch.ArmStart(wall0, 0, sim.Hour))

	clock.Advance(10 * time.Second)
	assert.Equal(t, 20*sim.Minute, sch.Now())
	clock.Advance(time.Hour)
	assert.Equal(t, sim.Hour, sch.Now(), "clamped to the end")
}
