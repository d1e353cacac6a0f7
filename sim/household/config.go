// Package household assembles a household from its configuration: one unit
// per appliance and an electric meter aggregating their power.
//
// Two deployments are supported. MIL (model-in-the-loop) builds one model
// tree in which every user model drives its appliance's power model
// directly. SIL (software-in-the-loop) builds one real-time subsystem per
// appliance, where the user model calls the appliance's controller and a
// state relay reports the operations to a metering subsystem holding every
// power model and the meter.
package household

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/equipment"
	"github.com/hemsim/hemsim/sim/equipment/dishwasher"
	"github.com/hemsim/hemsim/sim/equipment/generator"
	"github.com/hemsim/hemsim/sim/equipment/meter"
	"github.com/hemsim/hemsim/sim/equipment/miner"
	"github.com/hemsim/hemsim/sim/equipment/oven"
	"github.com/hemsim/hemsim/sim/equipment/powerbank"
	"github.com/hemsim/hemsim/sim/equipment/windturbine"
	"github.com/hemsim/hemsim/sim/scenario"
)

// Appliance types.
const (
	Oven        = "oven"
	Dishwasher  = "dishwasher"
	Miner       = "miner"
	Generator   = "generator"
	PowerBank   = "powerbank"
	WindTurbine = "windturbine"
)

var validTypes = map[string]bool{
	Oven: true, Dishwasher: true, Miner: true, Generator: true, PowerBank: true, WindTurbine: true,
}

// Config describes a household. Zero-valued fields keep their defaults.
type Config struct {
	Name       string      `yaml:"name"`
	Meter      MeterConfig `yaml:"meter"`
	Appliances []Appliance `yaml:"appliances"`
}

// MeterConfig configures the electric meter.
type MeterConfig struct {
	Step time.Duration `yaml:"step"`
}

// UserConfig overrides the default script timing of an appliance's user.
type UserConfig struct {
	MeanStep time.Duration `yaml:"meanStep"`
	StdDev   time.Duration `yaml:"stdDev"`
	Budget   int           `yaml:"budget"`
	Cyclic   *bool         `yaml:"cyclic"`
}

// Appliance is one piece of equipment. Only the section matching Type is
// read.
type Appliance struct {
	Name        string             `yaml:"name"`
	Type        string             `yaml:"type"`
	User        UserConfig         `yaml:"user"`
	Oven        *OvenConfig        `yaml:"oven"`
	Dishwasher  *DishwasherConfig  `yaml:"dishwasher"`
	Miner       *MinerConfig       `yaml:"miner"`
	Generator   *GeneratorConfig   `yaml:"generator"`
	PowerBank   *PowerBankConfig   `yaml:"powerbank"`
	WindTurbine *WindTurbineConfig `yaml:"windturbine"`
}

type OvenConfig struct {
	Power       float64 `yaml:"power"`
	Temperature float64 `yaml:"temperature"`
}

type ProgramConfig struct {
	Power    float64       `yaml:"power"`
	Duration time.Duration `yaml:"duration"`
}

type DishwasherConfig struct {
	IdlePower float64                  `yaml:"idlePower"`
	Programs  map[string]ProgramConfig `yaml:"programs"`
}

type MinerConfig struct {
	IdlePower   float64 `yaml:"idlePower"`
	MiningPower float64 `yaml:"miningPower"`
}

type GeneratorConfig struct {
	Capacity    float64       `yaml:"capacity"`
	Consumption float64       `yaml:"consumption"`
	Power       float64       `yaml:"power"`
	Step        time.Duration `yaml:"step"`
}

type PowerBankConfig struct {
	Capacity       float64       `yaml:"capacity"`
	Initial        *float64      `yaml:"initial"`
	ChargePower    float64       `yaml:"chargePower"`
	DischargePower float64       `yaml:"dischargePower"`
	Step           time.Duration `yaml:"step"`
}

type WindTurbineConfig struct {
	WindShape  float64       `yaml:"windShape"`
	WindMean   float64       `yaml:"windMean"`
	Period     time.Duration `yaml:"period"`
	CutIn      float64       `yaml:"cutIn"`
	Rated      float64       `yaml:"rated"`
	CutOut     float64       `yaml:"cutOut"`
	RatedPower float64       `yaml:"ratedPower"`
}

// DefaultConfig returns a household with one appliance of each type.
func DefaultConfig() Config {
	return Config{
		Name:  "home",
		Meter: MeterConfig{Step: meter.DefaultStep.Duration()},
		Appliances: []Appliance{
			{Name: "oven", Type: Oven},
			{Name: "dishwasher", Type: Dishwasher},
			{Name: "miner", Type: Miner},
			{Name: "generator", Type: Generator},
			{Name: "powerbank", Type: PowerBank},
			{Name: "windturbine", Type: WindTurbine},
		},
	}
}

// LoadConfig reads a YAML household file. Unknown fields are rejected;
// missing sections fall back to DefaultConfig.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading household config: %w", err)
	}
	defer f.Close()
	return ParseConfig(f)
}

// ParseConfig decodes and validates a YAML household description.
func ParseConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing household config: %w", err)
	}
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Meter.Step == 0 {
		cfg.Meter.Step = def.Meter.Step
	}
	if len(cfg.Appliances) == 0 {
		cfg.Appliances = def.Appliances
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks names, types and every appliance's figures.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("household name is empty")
	}
	if c.Meter.Step <= 0 {
		return fmt.Errorf("meter step must be > 0, got %s", c.Meter.Step)
	}
	if len(c.Appliances) == 0 {
		return fmt.Errorf("household %q has no appliance", c.Name)
	}
	seen := map[string]bool{c.Name: true, meter.ID: true}
	var errs error
	for i, a := range c.Appliances {
		if a.Name == "" {
			errs = errors.Join(errs, fmt.Errorf("appliance %d: name is empty", i))
			continue
		}
		if seen[a.Name] {
			errs = errors.Join(errs, fmt.Errorf("appliance %q: name already used", a.Name))
		}
		seen[a.Name] = true
		if _, err := a.Unit(); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// Unit returns the descriptor of the appliance, its defaults overridden by
// the configuration.
func (a Appliance) Unit() (equipment.Unit, error) {
	if !validTypes[a.Type] {
		return equipment.Unit{}, fmt.Errorf("appliance %q: unknown type %q", a.Name, a.Type)
	}
	if a.User.MeanStep < 0 || a.User.StdDev < 0 || a.User.Budget < 0 {
		return equipment.Unit{}, fmt.Errorf("appliance %q: user timing and budget must be >= 0", a.Name)
	}
	var (
		u   equipment.Unit
		err error
	)
	switch a.Type {
	case Oven:
		cfg := oven.DefaultConfig()
		if o := a.Oven; o != nil {
			setFloat(&cfg.Power, o.Power)
			setFloat(&cfg.Temperature, o.Temperature)
		}
		err = cfg.Validate()
		u = oven.NewUnit(a.Name, cfg, a.user(oven.NewUserConfig()))
	case Dishwasher:
		cfg := dishwasher.DefaultConfig()
		if d := a.Dishwasher; d != nil {
			setFloat(&cfg.IdlePower, d.IdlePower)
			if len(d.Programs) > 0 {
				cfg.Programs = make(map[string]dishwasher.Program, len(d.Programs))
				for name, p := range d.Programs {
					cfg.Programs[name] = dishwasher.Program{Power: p.Power, Duration: sim.FromDuration(p.Duration)}
				}
			}
		}
		err = cfg.Validate()
		u = dishwasher.NewUnit(a.Name, cfg, a.user(dishwasher.NewUserConfig(cfg)))
	case Miner:
		cfg := miner.DefaultConfig()
		if m := a.Miner; m != nil {
			setFloat(&cfg.IdlePower, m.IdlePower)
			setFloat(&cfg.MiningPower, m.MiningPower)
		}
		err = cfg.Validate()
		u = miner.NewUnit(a.Name, cfg, a.user(miner.NewUserConfig()))
	case Generator:
		cfg := generator.DefaultConfig()
		if g := a.Generator; g != nil {
			setFloat(&cfg.Capacity, g.Capacity)
			setFloat(&cfg.Consumption, g.Consumption)
			setFloat(&cfg.Power, g.Power)
			setTime(&cfg.Step, g.Step)
		}
		err = cfg.Validate()
		u = generator.NewUnit(a.Name, cfg, a.user(generator.NewUserConfig()))
	case PowerBank:
		cfg := powerbank.DefaultConfig()
		if p := a.PowerBank; p != nil {
			setFloat(&cfg.Capacity, p.Capacity)
			if p.Initial != nil {
				cfg.Initial = *p.Initial
			}
			setFloat(&cfg.ChargePower, p.ChargePower)
			setFloat(&cfg.DischargePower, p.DischargePower)
			setTime(&cfg.Step, p.Step)
		}
		err = cfg.Validate()
		u = powerbank.NewUnit(a.Name, cfg, a.user(powerbank.NewUserConfig()))
	case WindTurbine:
		cfg := windturbine.DefaultConfig()
		if w := a.WindTurbine; w != nil {
			setFloat(&cfg.WindShape, w.WindShape)
			setFloat(&cfg.WindMean, w.WindMean)
			setTime(&cfg.Period, w.Period)
			setFloat(&cfg.CutIn, w.CutIn)
			setFloat(&cfg.Rated, w.Rated)
			setFloat(&cfg.CutOut, w.CutOut)
			setFloat(&cfg.RatedPower, w.RatedPower)
		}
		err = cfg.Validate()
		u = windturbine.NewUnit(a.Name, cfg, a.user(windturbine.NewUserConfig()))
	}
	if err != nil {
		return equipment.Unit{}, fmt.Errorf("appliance %q: %w", a.Name, err)
	}
	return u, nil
}

// user applies the configured timing to an appliance's default script.
func (a Appliance) user(sc scenario.Config) scenario.Config {
	setTime(&sc.MeanStep, a.User.MeanStep)
	setTime(&sc.StdDev, a.User.StdDev)
	if a.User.Budget > 0 {
		sc.Budget = a.User.Budget
	}
	if a.User.Cyclic != nil {
		sc.Cyclic = *a.User.Cyclic
	}
	return sc
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setTime(dst *sim.Time, d time.Duration) {
	if d != 0 {
		*dst = sim.FromDuration(d)
	}
}
