package core

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/signalsfoundry/schoolbus-tracker/kb"
	"github.com/signalsfoundry/schoolbus-tracker/model"
	"github.com/signalsfoundry/schoolbus-tracker/timectrl"
)

func seededStore(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	store := kb.NewKnowledgeBase()
	if err := kb.Seed(store); err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	return store
}

func fixedClock() time.Time { return epoch }

func TestTickKeepsStatusesInEnumeration(t *testing.T) {
	store := seededStore(t)
	cfg := DefaultSimulatorConfig()
	cfg.StatusChangeProbability = 1
	sim, err := NewSimulator(store, nil, NewRand(7), cfg)
	if err != nil {
		t.Fatalf("NewSimulator error: %v", err)
	}

	for range 50 {
		sim.Tick(context.Background())
		for _, b := range store.ListBuses() {
			if !b.Status.Valid() {
				t.Fatalf("bus %s has status %q outside the enumeration", b.ID, b.Status)
			}
		}
	}
}

func TestTickIsReproducibleForSeed(t *testing.T) {
	run := func(seed uint64) []TickReport {
		store := seededStore(t)
		sim, err := NewSimulator(store, nil, NewRand(seed), DefaultSimulatorConfig(),
			WithSimulatorClock(fixedClock))
		if err != nil {
			t.Fatalf("NewSimulator error: %v", err)
		}
		var reports []TickReport
		for range 5 {
			reports = append(reports, sim.Tick(context.Background()))
		}
		return reports
	}

	a, b := run(42), run(42)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different ticks:\n%+v\n%+v", a, b)
	}
	if c := run(43); reflect.DeepEqual(a, c) {
		t.Fatalf("different seeds produced identical ticks")
	}
}

func TestTickTargetsWithinJitter(t *testing.T) {
	store := seededStore(t)
	cfg := DefaultSimulatorConfig()
	sim, err := NewSimulator(store, nil, NewRand(1), cfg)
	if err != nil {
		t.Fatalf("NewSimulator error: %v", err)
	}

	for range 20 {
		report := sim.Tick(context.Background())
		if len(report.Changes) != 4 {
			t.Fatalf("tick touched %d buses, want 4", len(report.Changes))
		}
		for _, c := range report.Changes {
			if math.Abs(c.Target.Lat-c.Start.Lat) > cfg.Jitter || math.Abs(c.Target.Lng-c.Start.Lng) > cfg.Jitter {
				t.Fatalf("bus %s target %+v outside ±%v of %+v", c.BusID, c.Target, cfg.Jitter, c.Start)
			}
			bus, _ := store.GetBus(c.BusID)
			if bus.Target != c.Target {
				t.Fatalf("bus %s stored target %+v, want %+v", c.BusID, bus.Target, c.Target)
			}
		}
	}
}

func TestTickWithZeroProbabilityNeverChangesStatus(t *testing.T) {
	store := seededStore(t)
	before := store.ListBuses()
	cfg := DefaultSimulatorConfig()
	cfg.StatusChangeProbability = 0
	sim, err := NewSimulator(store, nil, NewRand(3), cfg)
	if err != nil {
		t.Fatalf("NewSimulator error: %v", err)
	}

	for range 100 {
		for _, c := range sim.Tick(context.Background()).Changes {
			if c.StatusDrawn {
				t.Fatalf("status drawn with probability 0: %+v", c)
			}
		}
	}
	after := store.ListBuses()
	for i := range before {
		if before[i].Status != after[i].Status {
			t.Fatalf("bus %s status changed %q -> %q", before[i].ID, before[i].Status, after[i].Status)
		}
	}
}

func TestTickDoesNotMovePositionSynchronously(t *testing.T) {
	store := seededStore(t)
	sched := timectrl.NewFakeScheduler(epoch)
	animator := NewAnimator(sched, store.UpdatePosition)
	sim, err := NewSimulator(store, animator, NewRand(9), DefaultSimulatorConfig())
	if err != nil {
		t.Fatalf("NewSimulator error: %v", err)
	}

	before := store.ListBuses()
	sim.Tick(context.Background())
	after := store.ListBuses()
	for i := range before {
		if before[i].Position != after[i].Position {
			t.Fatalf("bus %s moved during the tick itself", before[i].ID)
		}
	}
	if animator.Active() != 4 {
		t.Fatalf("Active = %d, want 4", animator.Active())
	}

	sched.RunFrames(1000, frame)
	for _, b := range store.ListBuses() {
		if b.Position != b.Target {
			t.Fatalf("bus %s ended at %+v, want target %+v", b.ID, b.Position, b.Target)
		}
	}
}

func TestTickOnEmptyStore(t *testing.T) {
	sim, err := NewSimulator(kb.NewKnowledgeBase(), nil, NewRand(1), DefaultSimulatorConfig())
	if err != nil {
		t.Fatalf("NewSimulator error: %v", err)
	}
	if got := sim.Tick(context.Background()); len(got.Changes) != 0 || got.Seq != 1 {
		t.Fatalf("empty tick = %+v", got)
	}
}

func TestRetargetMidFlightStartsFromRenderedPosition(t *testing.T) {
	store := kb.NewKnowledgeBase()
	if err := store.AddBus(model.Bus{ID: "1", Number: "Bus 101", Position: delhi}); err != nil {
		t.Fatalf("AddBus error: %v", err)
	}
	sched := timectrl.NewFakeScheduler(epoch)
	animator := NewAnimator(sched, store.UpdatePosition)
	cfg := DefaultSimulatorConfig()
	sim, err := NewSimulator(store, animator, NewRand(1), cfg)
	if err != nil {
		t.Fatalf("NewSimulator error: %v", err)
	}

	if err := sim.Retarget(context.Background(), "1", delhiTarget); err != nil {
		t.Fatalf("Retarget error: %v", err)
	}
	sched.Frame(cfg.AnimationDuration / 2)
	halfway, _ := store.GetBus("1")

	if err := sim.Retarget(context.Background(), "1", delhi); err != nil {
		t.Fatalf("second Retarget error: %v", err)
	}
	anim, ok := animator.Get("1")
	if !ok {
		t.Fatalf("no live animation after retarget")
	}
	if anim.Start != halfway.Position {
		t.Fatalf("retarget started at %+v, want rendered position %+v", anim.Start, halfway.Position)
	}

	sched.RunFrames(1000, frame)
	if bus, _ := store.GetBus("1"); bus.Position != delhi {
		t.Fatalf("bus ended at %+v, want %+v", bus.Position, delhi)
	}
}

func TestRetargetUnknownBus(t *testing.T) {
	sim, err := NewSimulator(kb.NewKnowledgeBase(), nil, NewRand(1), DefaultSimulatorConfig())
	if err != nil {
		t.Fatalf("NewSimulator error: %v", err)
	}
	if err := sim.Retarget(context.Background(), "ghost", delhi); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("Retarget error = %v, want ErrUnknownEntity", err)
	}
}

func TestSimulatorConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*SimulatorConfig)
		want error
	}{
		{"negative duration", func(c *SimulatorConfig) { c.AnimationDuration = -time.Second }, ErrInvalidDuration},
		{"probability above one", func(c *SimulatorConfig) { c.StatusChangeProbability = 1.5 }, ErrInvalidProbability},
		{"negative jitter", func(c *SimulatorConfig) { c.Jitter = -0.1 }, ErrInvalidJitter},
	}
	for _, tc := range cases {
		cfg := DefaultSimulatorConfig()
		tc.mod(&cfg)
		if err := cfg.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: Validate error = %v, want %v", tc.name, err, tc.want)
		}
	}

	zero := DefaultSimulatorConfig()
	zero.AnimationDuration = 0
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero duration should be accepted: %v", err)
	}
}
