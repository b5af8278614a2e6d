package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/schoolbus-tracker/core"
	"github.com/signalsfoundry/schoolbus-tracker/internal/config"
	"github.com/signalsfoundry/schoolbus-tracker/internal/logging"
	"github.com/signalsfoundry/schoolbus-tracker/kb"
	"github.com/signalsfoundry/schoolbus-tracker/model"
	"github.com/signalsfoundry/schoolbus-tracker/timectrl"
)

func main() {
	config.LoadDotEnv(".")
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	duration := flag.Duration("duration", 60*time.Second, "total simulation duration")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	tick := flag.Duration("tick", cfg.TickPeriod, "simulator tick period")
	fps := flag.Int("fps", cfg.FrameRate, "animation frames per simulated second")
	seed := flag.Uint64("seed", cfg.Seed, "random seed (0 = time-based)")
	probability := flag.Float64("p", cfg.StatusChangeProbability, "per-tick status change probability")
	jitter := flag.Float64("jitter", cfg.PositionJitter, "max per-axis target offset in degrees")
	animation := flag.Duration("animation", cfg.AnimationDuration, "time for a bus to reach its new target")
	flag.Parse()

	cfg.TickPeriod = *tick
	cfg.FrameRate = *fps
	cfg.Seed = *seed
	cfg.StatusChangeProbability = *probability
	cfg.PositionJitter = *jitter
	cfg.AnimationDuration = *animation
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid flags: %v\n", err)
		os.Exit(2)
	}

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}

	summary, err := run(ctx, runOptions{
		Start:     time.Now().UTC(),
		Duration:  *duration,
		Mode:      mode,
		FrameRate: cfg.FrameRate,
		Engine:    cfg.Engine(),
	}, log)
	if err != nil && ctx.Err() == nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}

	fmt.Printf("Simulation complete: %d ticks, %d frames, %d position samples, %d alerts raised.\n",
		summary.Ticks, summary.Frames, summary.FrameRenders, summary.AlertsRaised)
	for _, b := range summary.Buses {
		fmt.Printf("  %-8s %-9s (%.5f, %.5f)\n", b.Number, b.Status.Label(), b.Position.Lat, b.Position.Lng)
	}
}

type runOptions struct {
	Start     time.Time
	Duration  time.Duration
	Mode      timectrl.Mode
	FrameRate int
	Engine    core.EngineConfig
}

type runSummary struct {
	Ticks        int
	Frames       int
	FrameRenders int
	AlertsRaised int
	Buses        []model.Bus
	Stats        model.Stats
}

// run simulates the seeded fleet for opts.Duration of simulation time,
// logging every tick.
func run(ctx context.Context, opts runOptions, log logging.Logger) (runSummary, error) {
	if log == nil {
		log = logging.Noop()
	}
	tc := timectrl.NewTimeController(opts.Start, timectrl.FrameInterval(opts.FrameRate), opts.Mode)

	store := kb.NewKnowledgeBase(kb.WithClock(tc.Now))
	if err := kb.Seed(store); err != nil {
		return runSummary{}, err
	}
	seeded := len(store.ListAlerts())

	var summary runSummary
	engine, err := core.NewEngine(store, tc, opts.Engine,
		core.WithLogger(log),
		core.WithRenderers(
			core.LogRenderer{Log: log},
			core.RendererFunc(func(cause core.RenderCause, _ kb.Snapshot) {
				if cause == core.RenderFrame {
					summary.FrameRenders++
				}
			}),
		),
	)
	if err != nil {
		return runSummary{}, err
	}

	engine.RegisterTickListener(func(core.TickReport) { summary.Ticks++ })
	tc.AddListener(func(time.Time) { summary.Frames++ })

	log.Info(ctx, "starting simulation",
		logging.Duration("duration", opts.Duration),
		logging.Duration("tick", opts.Engine.TickPeriod),
		logging.String("mode", opts.Mode.String()),
	)
	stopEngine := engine.Start(ctx)
	err = tc.Run(ctx, opts.Duration)
	stopEngine()

	summary.Buses = store.ListBuses()
	summary.Stats = store.Stats()
	summary.AlertsRaised = len(store.ListAlerts()) - seeded
	return summary, err
}
