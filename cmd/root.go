package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hemsim/hemsim/sim"
	"github.com/hemsim/hemsim/sim/telemetry"
	"github.com/hemsim/hemsim/sim/trace"
)

var (
	// CLI flags for the household and the run
	configPath   string        // YAML household file, empty for the default household
	mode         string        // "mil" or "sil"
	realTime     bool          // pace a MIL run against the wall clock
	acceleration float64       // simulated seconds per wall-clock second
	duration     time.Duration // simulated length of the run
	seed         int64         // master seed, 0 draws one
	logLevel     string        // log verbosity level
	traceLevel   string        // trace verbosity level
	params       []string      // run parameters as key=value

	// CLI flags for telemetry
	mqttBroker     string        // broker URL, empty disables telemetry
	mqttTopic      string        // topic override
	reportInterval time.Duration // wall-clock period between readings
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "hemsim",
	Short: "Household energy co-simulator",
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// runCmd simulates the household using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the household simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg, err := loadHousehold(configPath)
		if err != nil {
			logrus.Fatalf("Unable to load household: %v", err)
		}
		overrides, err := parseParams(params)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}
		if seed == 0 {
			seed = drawSeed()
			logrus.Infof("Drew seed %d, pass --seed %d to replay this run", seed, seed)
		}

		simCfg := sim.NewConfig(0, sim.FromDuration(duration), seed)
		simCfg.Params = overrides
		simCfg.Trace = trace.TraceConfig{Level: trace.TraceLevel(traceLevel)}
		opts := runOptions{
			Mode:           mode,
			RealTime:       realTime,
			Acceleration:   acceleration,
			Topic:          mqttTopic,
			ReportInterval: reportInterval,
		}

		var pub telemetry.Publisher
		if mqttBroker != "" {
			p, err := telemetry.NewMQTTPublisher(mqttBroker, "hemsim-"+cfg.Name)
			if err != nil {
				logrus.Fatalf("Telemetry: %v", err)
			}
			defer p.Close()
			pub = p
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		logrus.Infof("Starting %s simulation of %q with %d appliances, duration=%s, seed=%d",
			mode, cfg.Name, len(cfg.Appliances), duration, seed)
		startTime := time.Now()
		res, err := execute(ctx, cfg, simCfg, opts, pub)
		if err != nil {
			logrus.Errorf("Simulation failed: %v", err)
			os.Exit(1)
		}
		res.Print(os.Stdout, time.Since(startTime))

		logrus.Info("Simulation complete.")
	},
}

// describeCmd prints the composition of the household
var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the household composition with its routes and bindings",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg, err := loadHousehold(configPath)
		if err != nil {
			logrus.Fatalf("Unable to load household: %v", err)
		}
		if err := describe(os.Stdout, cfg, mode); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML household file (default household when empty)")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", modeMIL, "Deployment: mil (one model tree) or sil (one real-time subsystem per appliance)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().BoolVar(&realTime, "realtime", false, "Pace a MIL run against the wall clock (SIL runs are always paced)")
	runCmd.Flags().Float64Var(&acceleration, "acceleration", 3600, "Simulated seconds per wall-clock second in paced runs")
	runCmd.Flags().DurationVar(&duration, "duration", 24*time.Hour, "Simulated length of the run")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Master seed (0 draws one and logs it)")
	runCmd.Flags().StringVar(&traceLevel, "trace", string(trace.TraceLevelNone), "Trace level (none, events, transitions)")
	runCmd.Flags().StringArrayVar(&params, "param", nil, "Run parameter <model>.<name>=value, repeatable")

	// Telemetry
	runCmd.Flags().StringVar(&mqttBroker, "mqtt-broker", "", "MQTT broker URL for meter readings, e.g. tcp://localhost:1883")
	runCmd.Flags().StringVar(&mqttTopic, "mqtt-topic", "", "MQTT topic (default hemsim/<household>/meter)")
	runCmd.Flags().DurationVar(&reportInterval, "report-interval", telemetry.DefaultInterval, "Wall-clock period between published readings")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(describeCmd)
}
