package cmd

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/household"
)

// loadHousehold reads the household file at path, or returns the default
// household when path is empty.
func loadHousehold(path string) (household.Config, error) {
	if path == "" {
		logrus.Info("No household file given, using the default household")
		return household.DefaultConfig(), nil
	}
	return household.LoadConfig(path)
}

// parseParams turns repeated key=value flags into run parameters. Keys are
// "<model-id>.<name>"; values stay strings and are converted by the model
// reading them.
func parseParams(entries []string) (sim.Params, error) {
	p := sim.Params{}
	for _, e := range entries {
		key, val, ok := strings.Cut(e, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("run parameter %q: expected key=value", e)
		}
		if i := strings.LastIndexByte(key, '.'); i <= 0 || i == len(key)-1 {
			return nil, fmt.Errorf("run parameter %q: key must be <model>.<name>", e)
		}
		if key[strings.LastIndexByte(key, '.')+1:] == sim.OwnerParam {
			return nil, fmt.Errorf("run parameter %q: owners cannot be set from the command line", e)
		}
		p[key] = strings.TrimSpace(val)
	}
	return p, nil
}

// drawSeed returns a random non-zero seed.
func drawSeed() int64 {
	for {
		if s := int64(sim.NewRandomKey()); s != 0 {
			return s
		}
	}
}
