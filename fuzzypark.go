// Fuzzy parking controller

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"example.com/fuzzy-park/base/zaplog"

	"example.com/fuzzy-park/benchmark"

	"example.com/fuzzy-park/core/config"
	"example.com/fuzzy-park/core/control"
	"example.com/fuzzy-park/core/fuzzy"
	"example.com/fuzzy-park/core/parking"

	"example.com/fuzzy-park/driver/replay"
)

const (
	monitorShutdownTimeout = 1 * time.Second

	benchmarkNumEval    = 100_000
	benchmarkNumWorkers = 1
	benchmarkNumSteps   = 10
)

// inputValues collects repeated -input Name=Value flags.
type inputValues map[string]float64

func (v inputValues) String() string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for i, name := range names {
		if i != 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%v", name, v[name])
	}
	return b.String()
}

func (v inputValues) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("expected Name=Value, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", name, err)
	}
	v[name] = x
	return nil
}

var (
	log *zap.Logger
)

func initLogger(verbose bool) {
	c := zap.NewDevelopmentConfig()
	c.DisableStacktrace = true
	c.EncoderConfig.EncodeCaller = func(
		caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		p := caller.TrimmedPath()
		if len(p) > 30 {
			p = "..." + p[len(p)-27:]
		}
		enc.AppendString(fmt.Sprintf("%30s", p))
	}
	if !verbose {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	var err error
	log, err = c.Build()
	if err != nil {
		panic(err)
	}
	zaplog.SetLogger(log)
}

func runMonitor(ctx context.Context, log *zap.Logger, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	log.Info("serving metrics", zap.String("address", addr))
	select {
	case err := <-errc:
		return fmt.Errorf("failed to serve metrics: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), monitorShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func loadConfig(configFile string) config.Config {
	if configFile == "" {
		return config.Default()
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}
	return cfg
}

func newEngine(cfg config.Config) *fuzzy.Engine {
	eng, err := cfg.Build(log)
	if err != nil {
		log.Fatal("failed to build engine", zap.Error(err))
	}
	return eng
}

func runCheck(configFile string) {
	cfg := loadConfig(configFile)
	eng, err := cfg.Build(log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("%d inputs, %d outputs, %d rules\n",
		len(eng.Inputs()), len(eng.Outputs()), len(eng.Rules()))
}

func runEval(configFile string, inputs inputValues) {
	cfg := loadConfig(configFile)
	eng := newEngine(cfg)
	for name, x := range inputs {
		err := eng.SetInput(name, x)
		if err != nil {
			log.Fatal("failed to set input", zap.Error(err))
		}
	}
	eng.Evaluate()
	for _, v := range eng.Outputs() {
		x, err := eng.GetOutput(v.Name)
		if err != nil {
			log.Fatal("failed to get output", zap.Error(err))
		}
		fmt.Printf("%s = %v\n", v.Name, x)
	}
	if n := eng.Skipped(); n != 0 {
		log.Warn("rules skipped", zap.Int("count", n))
	}
}

func runControl(configFile, replayFile string) {
	cfg := loadConfig(configFile)
	eng := newEngine(cfg)
	interval, err := cfg.Loop.Interval()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	sensor, err := replay.Open(log, replayFile)
	if err != nil {
		log.Fatal("failed to open recording", zap.String("file", replayFile), zap.Error(err))
	}
	defer sensor.Close()

	ctrl := parking.NewController(log, eng)
	ctrl.MaxSteeringAngle = cfg.Loop.MaxSteeringAngle
	ctrl.MotorTorque = cfg.Loop.MotorTorque

	loop := &control.Loop{
		Log:        log,
		Interval:   interval,
		Sensor:     sensor,
		Actuator:   replay.NewRecorder(log, os.Stdout),
		Controller: ctrl,
		Spot:       cfg.Loop.Spot(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	g.Go(func() error {
		return runMonitor(ctx, log, cfg.Loop.MetricsAddress)
	})
	g.Go(func() error {
		defer cancel()
		err := loop.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	err = g.Wait()
	if err != nil {
		log.Fatal("control loop failed", zap.Error(err))
	}
}

func runBenchmark(configFile string, numWorkers, numEval, numSteps int) {
	cfg := loadConfig(configFile)
	eng := newEngine(cfg)
	hg, err := benchmark.Run(log, eng, benchmark.Sweep(eng, numSteps), numWorkers, numEval)
	if err != nil {
		log.Fatal("benchmark failed", zap.Error(err))
	}
	hg.PercentilesPrint(os.Stdout, 1, 1.0)
	fmt.Println(benchmark.Summarize(hg))
}

func exitWithUsage() {
	fmt.Println("<usage>")
	fmt.Println("  fuzzypark check [-verbose] [-config F]")
	fmt.Println("  fuzzypark eval [-verbose] [-config F] -input Name=Value ...")
	fmt.Println("  fuzzypark run [-verbose] [-config F] -replay CSV")
	fmt.Println("  fuzzypark bench [-verbose] [-config F] [-n N] [-workers N] [-steps N]")
	os.Exit(1)
}

func main() {
	var (
		verbose    bool
		configFile string
		replayFile string
		inputs     = inputValues{}
		numEval    int
		numWorkers int
		numSteps   int
	)

	checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
	evalFlags := flag.NewFlagSet("eval", flag.ExitOnError)
	runFlags := flag.NewFlagSet("run", flag.ExitOnError)
	benchFlags := flag.NewFlagSet("bench", flag.ExitOnError)

	checkFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	checkFlags.StringVar(&configFile, "config", "", "Config file")

	evalFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	evalFlags.StringVar(&configFile, "config", "", "Config file")
	evalFlags.Var(inputs, "input", "Input value (Name=Value, repeatable)")

	runFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	runFlags.StringVar(&configFile, "config", "", "Config file")
	runFlags.StringVar(&replayFile, "replay", "", "Recorded observations (CSV)")

	benchFlags.BoolVar(&verbose, "verbose", false, "Verbose logging")
	benchFlags.StringVar(&configFile, "config", "", "Config file")
	benchFlags.IntVar(&numEval, "n", benchmarkNumEval, "Evaluations per worker")
	benchFlags.IntVar(&numWorkers, "workers", benchmarkNumWorkers, "Number of workers")
	benchFlags.IntVar(&numSteps, "steps", benchmarkNumSteps, "Sweep steps per input")

	if len(os.Args) < 2 {
		exitWithUsage()
	}

	switch os.Args[1] {
	case checkFlags.Name():
		err := checkFlags.Parse(os.Args[2:])
		if err != nil || checkFlags.NArg() != 0 {
			exitWithUsage()
		}
		initLogger(verbose)
		runCheck(configFile)
	case evalFlags.Name():
		err := evalFlags.Parse(os.Args[2:])
		if err != nil || evalFlags.NArg() != 0 {
			exitWithUsage()
		}
		if len(inputs) == 0 {
			exitWithUsage()
		}
		initLogger(verbose)
		runEval(configFile, inputs)
	case runFlags.Name():
		err := runFlags.Parse(os.Args[2:])
		if err != nil || runFlags.NArg() != 0 {
			exitWithUsage()
		}
		if replayFile == "" {
			exitWithUsage()
		}
		initLogger(verbose)
		runControl(configFile, replayFile)
	case benchFlags.Name():
		err := benchFlags.Parse(os.Args[2:])
		if err != nil || benchFlags.NArg() != 0 {
			exitWithUsage()
		}
		if numEval <= 0 || numWorkers <= 0 {
			exitWithUsage()
		}
		initLogger(verbose)
		runBenchmark(configFile, numWorkers, numEval, numSteps)
	default:
		exitWithUsage()
	}
}
