package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/household"
)

func TestLoadHousehold_EmptyPathSelectsDefault(t *testing.T) {
	cfg, err := loadHousehold("")
	require.NoError(t, err)
	assert.Equal(t, household.DefaultConfig(), cfg)
}

func TestLoadHousehold_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "home.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: cottage\n"), 0o644))

	cfg, err := loadHousehold(path)

	require.NoError(t, err)
	assert.Equal(t, "cottage", cfg.Name)
	assert.Equal(t, household.DefaultConfig().Appliances, cfg.Appliances)
}

func TestLoadHousehold_MissingFile(t *testing.T) {
	_, err := loadHousehold(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestParseParams(t *testing.T) {
	p, err := parseParams([]string{"oven-user.meanStep=5m", " meter.step = 30s"})
	require.NoError(t, err)
	assert.Equal(t, sim.Params{"oven-user.meanStep": "5m", "meter.step": "30s"}, p)

	d, err := p.Duration("oven-user.meanStep", 0)
	require.NoError(t, err)
	assert.Equal(t, 5*sim.Minute, d)
}

func TestParseParams_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{"no equals", "meter.step"},
		{"empty key", "=3"},
		{"no model", "step=30s"},
		{"no name", "meter.=30s"},
		{"owner", "oven-user.owner=x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseParams([]string{tc.entry})
			assert.Error(t, err)
		})
	}
}

func TestDrawSeed_NonZero(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.NotZero(t, drawSeed())
	}
}
