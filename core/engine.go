package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/schoolbus-tracker/internal/logging"
	"github.com/signalsfoundry/schoolbus-tracker/kb"
	"github.com/signalsfoundry/schoolbus-tracker/model"
	"github.com/signalsfoundry/schoolbus-tracker/timectrl"
)

// DefaultTickPeriod is how often the simulator fires.
const DefaultTickPeriod = 5 * time.Second

// EngineConfig configures an Engine.
type EngineConfig struct {
	TickPeriod time.Duration
	Seed       uint64
	Simulator  SimulatorConfig
}

// DefaultEngineConfig returns the defaults used by the original dashboard.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TickPeriod: DefaultTickPeriod,
		Simulator:  DefaultSimulatorConfig(),
	}
}

// Validate checks the configuration.
func (c EngineConfig) Validate() error {
	if c.TickPeriod <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPeriod, c.TickPeriod)
	}
	return c.Simulator.Validate()
}

// Engine wires the simulator to a scheduler: it ticks the simulator on a
// fixed period, animates buses toward their new targets, raises alerts on
// status transitions, and redraws renderers.
type Engine struct {
	Store     *kb.KnowledgeBase
	Simulator *Simulator
	Animator  *Animator

	sched  timectrl.Scheduler
	period time.Duration

	mu            sync.Mutex
	renderers     []Renderer
	tickListeners []func(TickReport)
	lastTick      time.Time

	metrics Recorder
	log     logging.Logger
}

// EngineOption customises Engine construction.
type EngineOption func(*Engine)

// WithRecorder attaches a metrics recorder to the engine, simulator and animator.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRenderers registers renderers at construction.
func WithRenderers(rs ...Renderer) EngineOption {
	return func(e *Engine) {
		e.renderers = append(e.renderers, rs...)
	}
}

// NewEngine builds an engine over store driven by sched.
func NewEngine(store *kb.KnowledgeBase, sched timectrl.Scheduler, cfg EngineConfig, opts ...EngineOption) (*Engine, error) {
	if store == nil || sched == nil {
		return nil, fmt.Errorf("engine requires a store and a scheduler")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		Store:   store,
		sched:   sched,
		period:  cfg.TickPeriod,
		metrics: noopRecorder{},
		log:     logging.Noop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.Animator = NewAnimator(sched, store.UpdatePosition,
		WithSampleHook(func(string, model.Position, bool) { e.render(RenderFrame) }),
		WithAnimatorRecorder(e.metrics),
		WithAnimatorLogger(e.log.With(logging.String("component", "animator"))),
	)

	sim, err := NewSimulator(store, e.Animator, NewRand(cfg.Seed), cfg.Simulator,
		WithSimulatorRecorder(e.metrics),
		WithSimulatorLogger(e.log.With(logging.String("component", "simulator"))),
		WithSimulatorClock(sched.Now),
	)
	if err != nil {
		return nil, err
	}
	e.Simulator = sim
	return e, nil
}

// AddRenderer registers a renderer.
func (e *Engine) AddRenderer(r Renderer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderers = append(e.renderers, r)
}

// RegisterTickListener registers a callback run after every tick.
func (e *Engine) RegisterTickListener(fn func(TickReport)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickListeners = append(e.tickListeners, fn)
}

// LastTick returns the time of the most recent tick (zero before the first).
func (e *Engine) LastTick() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastTick
}

// Start draws the initial state and schedules a tick every period. The
// returned function stops further ticks and cancels in-flight animations.
func (e *Engine) Start(ctx context.Context) (stop func()) {
	e.metrics.SetFleetStats(e.Store.Stats())
	e.render(RenderInitial)

	e.log.Info(ctx, "simulation started", logging.Duration("tick_period", e.period))
	stopTimer := e.sched.Every(e.period, func(time.Time) {
		e.TickOnce(ctx)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			stopTimer()
			for _, id := range e.Store.BusIDs() {
				e.Animator.Cancel(id)
			}
			e.log.Info(ctx, "simulation stopped")
		})
	}
}

// TickOnce runs a single simulator tick and its follow-up work.
func (e *Engine) TickOnce(ctx context.Context) TickReport {
	report := e.Simulator.Tick(ctx)

	for _, c := range report.Changes {
		if msg := alertFor(c); msg != "" {
			a := e.Store.AddAlert(msg)
			e.log.Info(ctx, "alert raised",
				logging.Int("alert_id", a.ID),
				logging.String("bus_id", c.BusID),
				logging.String("message", msg),
			)
		}
	}

	e.metrics.SetFleetStats(e.Store.Stats())

	e.mu.Lock()
	e.lastTick = report.At
	listeners := append([]func(TickReport){}, e.tickListeners...)
	e.mu.Unlock()

	e.render(RenderTick)
	for _, fn := range listeners {
		fn(report)
	}
	return report
}

func (e *Engine) render(cause RenderCause) {
	e.mu.Lock()
	renderers := append([]Renderer{}, e.renderers...)
	e.mu.Unlock()
	if len(renderers) == 0 {
		return
	}

	snap := e.Store.Snapshot()
	for _, r := range renderers {
		r.Render(cause, snap)
	}
}

// alertFor returns the alert text a status transition deserves, or "".
func alertFor(c BusChange) string {
	if !c.StatusChanged() {
		return ""
	}
	switch {
	case c.To == model.StatusDelayed:
		return fmt.Sprintf("%s is delayed", c.Number)
	case c.From == model.StatusDelayed && c.To == model.StatusOnRoute:
		return fmt.Sprintf("%s is back on route", c.Number)
	}
	return ""
}
