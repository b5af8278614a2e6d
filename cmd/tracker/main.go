package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/schoolbus-tracker/core"
	"github.com/signalsfoundry/schoolbus-tracker/internal/config"
	"github.com/signalsfoundry/schoolbus-tracker/internal/dashboard"
	"github.com/signalsfoundry/schoolbus-tracker/internal/fleetrpc"
	"github.com/signalsfoundry/schoolbus-tracker/internal/logging"
	"github.com/signalsfoundry/schoolbus-tracker/internal/observability"
	"github.com/signalsfoundry/schoolbus-tracker/internal/render/tui"
	"github.com/signalsfoundry/schoolbus-tracker/kb"
	"github.com/signalsfoundry/schoolbus-tracker/timectrl"
)

func main() {
	envDir := flag.String("env-dir", ".", "directory holding .env and .env.local")
	useTUI := flag.Bool("tui", false, "draw the dashboard in the terminal")
	logFile := flag.String("log-file", "tracker.log", "log destination while the terminal dashboard is active")
	accelerated := flag.Bool("accelerated", false, "run simulation time as fast as possible")
	flag.Parse()

	config.LoadDotEnv(*envDir)
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	// The terminal belongs to the dashboard in TUI mode, so logs and
	// stdout-exported spans go to a file instead.
	var out io.Writer = os.Stdout
	if *useTUI {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	log := logging.New(logging.Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		AddSource: true,
		Output:    out,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.Writer = out
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	lis, err := listen(cfg)
	if err != nil {
		log.Error(ctx, "failed to listen", logging.Err(err))
		os.Exit(1)
	}

	opts := runOptions{Accelerated: *accelerated}
	if *useTUI {
		screen, err := tcell.NewScreen()
		if err == nil {
			err = screen.Init()
		}
		if err != nil {
			log.Error(ctx, "failed to initialise terminal", logging.Err(err))
			os.Exit(1)
		}
		defer screen.Fini()
		opts.Screen = screen
	}

	if err := run(ctx, cfg, log, lis, opts); err != nil {
		log.Error(ctx, "tracker exited", logging.Err(err))
		os.Exit(1)
	}
}

type listeners struct {
	GRPC    net.Listener
	HTTP    net.Listener
	Metrics net.Listener // optional; /metrics is also served on HTTP
}

type runOptions struct {
	Accelerated bool
	// Screen, when set, hosts the terminal dashboard. Quitting it stops
	// the tracker.
	Screen tcell.Screen
}

func listen(cfg *config.Config) (listeners, error) {
	var l listeners
	var err error
	if l.GRPC, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
		return l, fmt.Errorf("grpc %s: %w", cfg.GRPCAddr, err)
	}
	if l.HTTP, err = net.Listen("tcp", cfg.HTTPAddr); err != nil {
		l.GRPC.Close()
		return l, fmt.Errorf("http %s: %w", cfg.HTTPAddr, err)
	}
	if cfg.MetricsAddr != "" {
		if l.Metrics, err = net.Listen("tcp", cfg.MetricsAddr); err != nil {
			l.GRPC.Close()
			l.HTTP.Close()
			return l, fmt.Errorf("metrics %s: %w", cfg.MetricsAddr, err)
		}
	}
	return l, nil
}

// run wires the simulation to the HTTP, gRPC and metrics surfaces and
// blocks until ctx is cancelled or the terminal dashboard quits.
func run(ctx context.Context, cfg *config.Config, log logging.Logger, lis listeners, opts runOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := observability.NewTrackerCollector(reg)
	if err != nil {
		return fmt.Errorf("metrics collector: %w", err)
	}

	mode := timectrl.RealTime
	if opts.Accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(time.Now().UTC(), cfg.FrameInterval(), mode)

	store := kb.NewKnowledgeBase(kb.WithClock(tc.Now))
	if err := kb.Seed(store); err != nil {
		return err
	}

	engineOpts := []core.EngineOption{
		core.WithRecorder(collector),
		core.WithLogger(log.With(logging.String("component", "engine"))),
	}
	var dash *tui.Renderer
	if opts.Screen != nil {
		dash = tui.New(opts.Screen, store)
	}
	engine, err := core.NewEngine(store, tc, cfg.Engine(), engineOpts...)
	if err != nil {
		return err
	}
	if dash != nil {
		engine.AddRenderer(dash)
	}

	// Alerts read or dismissed over HTTP, gRPC or the terminal never pass
	// through a tick.
	unsubscribe := store.Subscribe(func(ev kb.Event) {
		if ev.Type != kb.EventAlertsChanged {
			return
		}
		snap := store.Snapshot()
		collector.SetFleetStats(snap.Stats)
		if dash != nil {
			dash.Render(core.RenderTick, snap)
		}
	})
	defer unsubscribe()

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			fleetrpc.RequestIDUnaryServerInterceptor(log),
			fleetrpc.TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	)
	health := fleetrpc.Register(grpcServer, fleetrpc.NewServer(store, log))

	httpServer := &http.Server{
		Handler: dashboard.NewRouter(store, dashboard.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Metrics:        collector.Handler(),
			Middleware:     []func(http.Handler) http.Handler{collector.HTTPMiddleware},
			LastTick:       engine.LastTick,
			Log:            log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var metricsServer *http.Server
	if lis.Metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	serveErr := make(chan error, 3)
	go func() {
		log.Info(ctx, "starting gRPC server", logging.String("addr", lis.GRPC.Addr().String()))
		serveErr <- grpcServer.Serve(lis.GRPC)
	}()
	go func() {
		log.Info(ctx, "starting HTTP server", logging.String("addr", lis.HTTP.Addr().String()))
		if err := httpServer.Serve(lis.HTTP); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	if metricsServer != nil {
		go func() {
			log.Info(ctx, "serving Prometheus metrics", logging.String("addr", lis.Metrics.Addr().String()))
			if err := metricsServer.Serve(lis.Metrics); !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
	}

	stopEngine := engine.Start(ctx)
	simDone := make(chan error, 1)
	go func() { simDone <- tc.Run(ctx, 0) }()

	if dash != nil {
		go func() {
			_ = dash.Run(ctx)
			cancel()
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = err
		cancel()
	}

	log.Info(context.Background(), "shutting down tracker")
	health.Shutdown()
	<-simDone
	stopEngine()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	grpcServer.GracefulStop()
	_ = httpServer.Shutdown(shutdownCtx)
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return runErr
}
