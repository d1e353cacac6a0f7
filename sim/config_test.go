package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hemsim/hemsim/sim/trace"
)

func TestNewConfig_FieldEquivalence(t *testing.T) {
	got := NewConfig(0, Hour, 42)
	want := Config{Start: 0, End: Hour, Seed: 42, Params: Params{}}
	assert.Equal(t, want, got)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"negative start", func(c *Config) { c.Start = -Second }, true},
		{"end before start", func(c *Config) { c.End = 0 }, true},
		{"unknown trace level", func(c *Config) { c.Trace.Level = "verbose" }, true},
		{"events trace level", func(c *Config) { c.Trace.Level = trace.TraceLevelEvents }, false},
		{"negative zero-delay bound", func(c *Config) { c.MaxZeroDelaySteps = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfig(0, Hour, 1)
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
