package core

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/schoolbus-tracker/internal/logging"
	"github.com/signalsfoundry/schoolbus-tracker/kb"
	"github.com/signalsfoundry/schoolbus-tracker/model"
)

const tracerName = "github.com/signalsfoundry/schoolbus-tracker/core"

// Defaults for SimulatorConfig.
const (
	DefaultStatusChangeProbability = 0.2
	DefaultJitter                  = 0.0025
	DefaultAnimationDuration       = 2 * time.Second
)

// SimulatorConfig tunes how each tick perturbs the fleet.
type SimulatorConfig struct {
	// StatusChangeProbability is the chance, per bus and tick, that a new
	// status is drawn.
	StatusChangeProbability float64
	// Jitter bounds the uniform offset, in degrees, added to each axis.
	Jitter float64
	// AnimationDuration is how long a bus takes to reach its new target.
	AnimationDuration time.Duration
}

// DefaultSimulatorConfig returns the dashboard's original tuning.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		StatusChangeProbability: DefaultStatusChangeProbability,
		Jitter:                  DefaultJitter,
		AnimationDuration:       DefaultAnimationDuration,
	}
}

// Validate checks the configuration.
func (c SimulatorConfig) Validate() error {
	if math.IsNaN(c.StatusChangeProbability) || c.StatusChangeProbability < 0 || c.StatusChangeProbability > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidProbability, c.StatusChangeProbability)
	}
	if math.IsNaN(c.Jitter) || math.IsInf(c.Jitter, 0) || c.Jitter < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidJitter, c.Jitter)
	}
	if c.AnimationDuration < 0 {
		return fmt.Errorf("%w: animation duration %v", ErrInvalidDuration, c.AnimationDuration)
	}
	return nil
}

// BusChange records what one tick did to one bus.
type BusChange struct {
	BusID  string
	Number string

	// StatusDrawn is true when the tick drew a status, even if it equals
	// the previous one.
	StatusDrawn bool
	From        model.Status
	To          model.Status

	Start  model.Position
	Target model.Position
}

// StatusChanged reports whether the bus ended the tick in a different status.
func (c BusChange) StatusChanged() bool {
	return c.StatusDrawn && c.From != c.To
}

// TickReport summarises one simulator tick.
type TickReport struct {
	Seq     int
	At      time.Time
	Changes []BusChange
}

// Simulator periodically produces new target state for every bus.
type Simulator struct {
	store    *kb.KnowledgeBase
	animator *Animator
	rng      *rand.Rand
	cfg      SimulatorConfig
	clock    func() time.Time

	seq int

	metrics Recorder
	log     logging.Logger
}

// SimulatorOption customises Simulator construction.
type SimulatorOption func(*Simulator)

// WithSimulatorRecorder attaches a metrics recorder.
func WithSimulatorRecorder(r Recorder) SimulatorOption {
	return func(s *Simulator) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithSimulatorLogger attaches a logger.
func WithSimulatorLogger(l logging.Logger) SimulatorOption {
	return func(s *Simulator) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSimulatorClock sets the time source stamped on tick reports.
func WithSimulatorClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) {
		if now != nil {
			s.clock = now
		}
	}
}

// NewRand returns the deterministic generator used for a given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewSimulator builds a simulator over store. animator may be nil, in which
// case targets are recorded but nothing moves.
func NewSimulator(store *kb.KnowledgeBase, animator *Animator, rng *rand.Rand, cfg SimulatorConfig, opts ...SimulatorOption) (*Simulator, error) {
	if store == nil {
		return nil, fmt.Errorf("simulator requires a store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRand(uint64(time.Now().UnixNano()))
	}
	s := &Simulator{
		store:    store,
		animator: animator,
		rng:      rng,
		cfg:      cfg,
		clock:    time.Now,
		metrics:  noopRecorder{},
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the simulator's configuration.
func (s *Simulator) Config() SimulatorConfig { return s.cfg }

// Tick perturbs every bus once, in store order. Random draws happen in a
// fixed order per bus (status draw, status pick when triggered, latitude
// offset, longitude offset) so a seeded generator reproduces the same ticks.
func (s *Simulator) Tick(ctx context.Context) TickReport {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "simulator.Tick")
	defer span.End()

	started := time.Now()
	s.seq++
	report := TickReport{Seq: s.seq, At: s.clock()}

	for _, id := range s.store.BusIDs() {
		bus, err := s.store.GetBus(id)
		if err != nil {
			continue
		}
		change := BusChange{
			BusID:  bus.ID,
			Number: bus.Number,
			From:   bus.Status,
			To:     bus.Status,
			Start:  bus.Position,
		}

		if s.rng.Float64() > 1-s.cfg.StatusChangeProbability {
			next := model.Statuses[s.rng.IntN(len(model.Statuses))]
			change.StatusDrawn = true
			change.To = next
			if _, err := s.store.SetStatus(id, next); err != nil {
				s.log.Warn(ctx, "status update failed", logging.String("bus_id", id), logging.Err(err))
			} else if change.StatusChanged() {
				s.metrics.StatusChanged(change.From, change.To)
			}
		}

		dLat := (s.rng.Float64()*2 - 1) * s.cfg.Jitter
		dLng := (s.rng.Float64()*2 - 1) * s.cfg.Jitter
		change.Target = bus.Position.Offset(dLat, dLng)

		if err := s.moveTo(id, bus.Position, change.Target); err != nil {
			s.log.Warn(ctx, "retarget failed", logging.String("bus_id", id), logging.Err(err))
		}

		report.Changes = append(report.Changes, change)
	}

	span.SetAttributes(
		attribute.Int("tick.seq", report.Seq),
		attribute.Int("tick.buses", len(report.Changes)),
	)
	s.metrics.ObserveTick(time.Since(started))
	s.log.Debug(ctx, "tick complete",
		logging.Int("seq", report.Seq),
		logging.Int("buses", len(report.Changes)),
	)
	return report
}

// Retarget sends one bus towards target, starting from where it is drawn
// now. Any animation already in flight for the bus is superseded.
func (s *Simulator) Retarget(ctx context.Context, id string, target model.Position) error {
	_, span := otel.Tracer(tracerName).Start(ctx, "simulator.Retarget",
		trace.WithAttributes(attribute.String("bus_id", id)))
	defer span.End()

	bus, err := s.store.GetBus(id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return s.moveTo(id, bus.Position, target)
}

func (s *Simulator) moveTo(id string, from, target model.Position) error {
	if err := s.store.SetTarget(id, target); err != nil {
		return err
	}
	if s.animator != nil {
		s.animator.Animate(id, from, target, s.cfg.AnimationDuration)
	}
	return nil
}
