package core

import (
	"context"

	"github.com/signalsfoundry/schoolbus-tracker/internal/logging"
	"github.com/signalsfoundry/schoolbus-tracker/kb"
)

// RenderCause tells a renderer why it is being asked to redraw.
type RenderCause int

const (
	RenderInitial RenderCause = iota
	RenderTick
	RenderFrame
)

func (c RenderCause) String() string {
	switch c {
	case RenderInitial:
		return "initial"
	case RenderTick:
		return "tick"
	case RenderFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// Renderer consumes the store after every tick and every animation sample.
type Renderer interface {
	Render(cause RenderCause, snap kb.Snapshot)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(cause RenderCause, snap kb.Snapshot)

// Render implements Renderer.
func (f RendererFunc) Render(cause RenderCause, snap kb.Snapshot) { f(cause, snap) }

// LogRenderer writes one structured line per bus after each tick. Frame
// renders are ignored.
type LogRenderer struct {
	Log logging.Logger
}

// Render implements Renderer.
func (r LogRenderer) Render(cause RenderCause, snap kb.Snapshot) {
	if r.Log == nil || cause == RenderFrame {
		return
	}
	ctx := context.Background()
	for _, b := range snap.Buses {
		r.Log.Info(ctx, "bus",
			logging.String("id", b.ID),
			logging.String("number", b.Number),
			logging.String("status", string(b.Status)),
			logging.Float("lat", b.Position.Lat),
			logging.Float("lng", b.Position.Lng),
			logging.Float("to_target_m", DistanceKm(b.Position, b.Target)*1000),
		)
	}
	r.Log.Info(ctx, "fleet",
		logging.String("cause", cause.String()),
		logging.Int("active", snap.Stats.ActiveBuses),
		logging.Int("delayed", snap.Stats.DelayedBuses),
		logging.Int("unread_alerts", snap.Stats.UnreadAlerts),
	)
}
