package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariable_SetIsMonotonic(t *testing.T) {
	v := NewVariable("power", 0.0)
	require.NoError(t, v.claim("oven"))
	_, ok := v.Sample()
	assert.False(t, ok, "unpublished before the first Set")

	v.Set(10*Second, 2000)
	v.Set(10*Second, 1500)
	s, ok := v.Sample()
	require.True(t, ok)
	assert.Equal(t, Sample[float64]{Value: 1500, Time: 10 * Second}, s)

	cv := catchViolation(func() { v.Set(5*Second, 0) })
	require.NotNil(t, cv)
	assert.Equal(t, "oven", cv.Model)
	assert.Equal(t, "power", cv.Variable)
}

func TestVariable_SingleExporter(t *testing.T) {
	v := NewVariable("power", 0.0)
	a := NewBase("a")
	b := NewBase("b")
	a.Export(v)
	b.Export(v)
	assert.NoError(t, a.err)
	assert.Error(t, b.err, "a variable has exactly one exporter")
}

func TestImport_ReadRules(t *testing.T) {
	tests := []struct {
		name      string
		publishAt Time
		readerNow Time
		bind      bool
		wantPanic bool
	}{
		{"unbound", 0, Second, false, true},
		{"not yet published", -1, Second, true, true},
		{"published in the future", 2 * Second, Second, true, true},
		{"published at read time", Second, Second, true, false},
		{"published earlier", 0, Second, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newReader("r", Second)
			v := NewVariable("level", 4.5)
			require.NoError(t, v.claim("tank"))
			if tt.bind {
				require.NoError(t, r.in.bind(v))
			}
			if tt.publishAt >= 0 {
				v.Set(tt.publishAt, 3.0)
			}
			r.now = tt.readerNow

			cv := catchViolation(func() { _ = r.in.Value() })

			if tt.wantPanic {
				require.NotNil(t, cv)
				assert.Equal(t, "r", cv.Model)
				return
			}
			assert.Nil(t, cv)
			assert.Equal(t, 3.0, r.in.Value())
		})
	}
}

func TestImport_BindRejectsSecondSource(t *testing.T) {
	in := NewImport[float64]("in")
	require.NoError(t, in.bind(NewVariable("a", 0.0)))
	assert.ErrorIs(t, in.bind(NewVariable("b", 0.0)), ErrAlreadyBound)
	assert.ErrorIs(t, NewImport[string]("s").bind(NewVariable("a", 0.0)), ErrTypeMismatch)
}

func TestImportSet_AggregatesSources(t *testing.T) {
	b := NewBase("meter")
	set := NewImportSet[float64]("consumption")
	b.Import(set)
	oven, miner := NewVariable("power", 0.0), NewVariable("power", 0.0)
	require.NoError(t, oven.claim("oven"))
	require.NoError(t, miner.claim("miner"))
	require.NoError(t, set.bind(oven))
	require.NoError(t, set.bind(miner))
	assert.ErrorIs(t, set.bind(oven), ErrAlreadyBound)

	oven.Set(0, 2000)
	miner.Set(Second, 60)
	b.now = Second

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []float64{2000, 60}, set.Values())
	assert.Equal(t, []string{"oven.power", "miner.power"}, set.Sources())
}
