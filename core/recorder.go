package core

import (
	"time"

	"github.com/signalsfoundry/schoolbus-tracker/model"
)

// Recorder receives simulation measurements. observability.TrackerCollector
// implements it for Prometheus.
type Recorder interface {
	ObserveTick(d time.Duration)
	StatusChanged(from, to model.Status)
	AnimationStarted(superseded bool)
	AnimationFrame()
	AnimationFinished()
	SetActiveAnimations(n int)
	SetFleetStats(st model.Stats)
}

type noopRecorder struct{}

func (noopRecorder) ObserveTick(time.Duration)                {}
func (noopRecorder) StatusChanged(model.Status, model.Status) {}
func (noopRecorder) AnimationStarted(bool)                    {}
func (noopRecorder) AnimationFrame()                          {}
func (noopRecorder) AnimationFinished()                       {}
func (noopRecorder) SetActiveAnimations(int)                  {}
func (noopRecorder) SetFleetStats(model.Stats)                {}
