package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/miretskiy/mm1sim/simulator"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// requiredParams must come from a flag, the environment or a config file.
// Values are the matching keys of a YAML scenario file.
var requiredParams = map[string]string{
	"arrival_rate": "arrivalRate",
	"service_rate": "serviceRate",
	"end_time":     "endTime",
}

// options is the state shared by all commands of one invocation
type options struct {
	v      *viper.Viper
	log    *logrus.Logger
	stdout io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	log := logrus.New()
	log.SetOutput(stderr)
	o := &options{v: viper.New(), log: log, stdout: stdout}

	root := &cobra.Command{
		Use:   "mm1sim",
		Short: "M/M/1 queue discrete-event simulator",
		Long: `Simulates a single-server queue with Poisson arrivals and exponential
service times, then compares the measured utilization, mean queue length and
mean residence time with the closed-form M/M/1 values.

Parameters can be given as flags, as MM1_* environment variables
(MM1_ARRIVAL_RATE, MM1_SERVICE_RATE, MM1_END_TIME, ...) or in a YAML
scenario file passed with --config. Flags win over the environment, which
wins over the file.`,
		Example:           "  mm1sim -a 1.0 -d 2.0 -t 1000 --seed 42",
		Args:              noArgs,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: o.init,
		RunE:              o.runSimulation,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := root.PersistentFlags()
	flags.Float64P("arrival_rate", "a", 0, "Arrival rate lambda (jobs per unit time)")
	flags.Float64P("service_rate", "d", 0, "Service rate mu (jobs per unit time); must exceed the arrival rate")
	flags.Float64P("end_time", "t", 0, "Simulation horizon in simulated time units")
	flags.Int64("seed", 0, "Random seed (0 = time-based, runs are not reproducible)")
	flags.String("normalization", simulator.NormalizationHorizon.String(), "Denominator for utilization and queue length: horizon or max-length-time")
	flags.String("first-arrival", simulator.FirstArrivalAtZero.String(), "First arrival policy: at-zero or drawn")
	flags.String("source", simulator.SourceMathRand.String(), "Uniform random source: math-rand or mrg32k3a")
	flags.StringP("format", "f", string(formatText), "Output format: text, json or yaml")
	flags.BoolP("verbose", "v", false, "Log every simulation event")
	flags.StringP("config", "c", "", "YAML scenario file")

	root.AddCommand(newReplicateCmd(o))
	return root
}

func newReplicateCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "replicate",
		Short:   "Run independent replications and summarize them with 95% confidence intervals",
		Example: "  mm1sim replicate -a 1 -d 2 -t 5000 --seed 7 -n 30 -p 4",
		Args:    noArgs,
		RunE:    o.runReplications,
	}
	cmd.Flags().IntP("replications", "n", 30, "Number of independent replications")
	cmd.Flags().IntP("parallelism", "p", runtime.NumCPU(), "Replications run concurrently")
	return cmd
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageErrorf("unexpected argument %q for %q", args[0], cmd.CommandPath())
	}
	return nil
}

// init layers flags over MM1_* environment variables
func (o *options) init(cmd *cobra.Command, _ []string) error {
	if err := o.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	o.v.SetEnvPrefix("MM1")
	o.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	o.v.AutomaticEnv()

	if o.v.GetBool("verbose") {
		o.log.SetLevel(logrus.DebugLevel)
	}
	return nil
}

// simConfig assembles and validates the run configuration.
// Missing or malformed values are usage errors; values that parse but
// describe an impossible queue are reported by Validate.
func (o *options) simConfig() (simulator.SimConfig, error) {
	config := simulator.DefaultConfig()

	inFile := map[string]bool{}
	if path := o.v.GetString("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("failed to read config file: %w", err)
		}
		if config, err = simulator.ParseConfig(data); err != nil {
			return config, err
		}
		var keys map[string]interface{}
		if err := yaml.Unmarshal(data, &keys); err != nil {
			return config, fmt.Errorf("failed to parse config file: %w", err)
		}
		for key := range keys {
			inFile[key] = true
		}
	}

	var missing []string
	for _, key := range []string{"arrival_rate", "service_rate", "end_time"} {
		if !o.v.IsSet(key) && !inFile[requiredParams[key]] {
			missing = append(missing, "--"+key)
		}
	}
	if len(missing) > 0 {
		return config, usageErrorf("missing required parameters: %s", strings.Join(missing, ", "))
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"arrival_rate", &config.ArrivalRate},
		{"service_rate", &config.ServiceRate},
		{"end_time", &config.EndTime},
	}
	for _, f := range floats {
		if !o.v.IsSet(f.key) {
			continue
		}
		value, err := cast.ToFloat64E(o.v.Get(f.key))
		if err != nil {
			return config, usageErrorf("invalid value %v for %s: %v", o.v.Get(f.key), f.key, err)
		}
		*f.dst = value
	}
	if o.v.IsSet("seed") {
		seed, err := cast.ToInt64E(o.v.Get("seed"))
		if err != nil {
			return config, usageErrorf("invalid value %v for seed: %v", o.v.Get("seed"), err)
		}
		config.RandomSeed = seed
	}
	if o.v.IsSet("normalization") {
		n, err := simulator.ParseNormalization(o.v.GetString("normalization"))
		if err != nil {
			return config, &usageError{err: err}
		}
		config.Normalization = n
	}
	if o.v.IsSet("first-arrival") {
		f, err := simulator.ParseFirstArrival(o.v.GetString("first-arrival"))
		if err != nil {
			return config, &usageError{err: err}
		}
		config.FirstArrival = f
	}
	if o.v.IsSet("source") {
		k, err := simulator.ParseSourceKind(o.v.GetString("source"))
		if err != nil {
			return config, &usageError{err: err}
		}
		config.Source = k
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func (o *options) runSimulation(cmd *cobra.Command, _ []string) error {
	format, err := parseFormat(o.v.GetString("format"))
	if err != nil {
		return err
	}
	config, err := o.simConfig()
	if err != nil {
		return err
	}

	sim, err := simulator.NewSimulator(config)
	if err != nil {
		return fmt.Errorf("error creating simulator: %w", err)
	}
	if o.log.IsLevelEnabled(logrus.DebugLevel) {
		sim.LogEvent = func(msg string) {
			o.log.Debug(msg)
		}
	}

	o.log.WithFields(logrus.Fields{
		"arrivalRate": config.ArrivalRate,
		"serviceRate": config.ServiceRate,
		"endTime":     config.EndTime,
		"seed":        config.RandomSeed,
	}).Info("Starting simulation")
	start := time.Now()

	report := sim.Run()

	o.log.WithFields(logrus.Fields{
		"arrivals":   report.Arrivals,
		"departures": report.Departures,
		"wallTime":   time.Since(start).String(),
	}).Info("Simulation completed")

	return writeReport(o.stdout, format, report)
}

func (o *options) runReplications(cmd *cobra.Command, _ []string) error {
	format, err := parseFormat(o.v.GetString("format"))
	if err != nil {
		return err
	}
	config, err := o.simConfig()
	if err != nil {
		return err
	}
	n := o.v.GetInt("replications")
	if n < 1 {
		return usageErrorf("--replications must be >= 1, got %d", n)
	}
	parallelism := o.v.GetInt("parallelism")

	o.log.WithFields(logrus.Fields{
		"replications": n,
		"parallelism":  parallelism,
		"endTime":      config.EndTime,
	}).Info("Starting replications")
	start := time.Now()

	summary, err := simulator.Replicate(cmd.Context(), config, n, parallelism)
	if err != nil {
		return fmt.Errorf("replications failed: %w", err)
	}

	o.log.WithField("wallTime", time.Since(start).String()).Info("Replications completed")
	return writeSummary(o.stdout, format, summary)
}
