package core

import (
	"errors"

	"github.com/signalsfoundry/schoolbus-tracker/kb"
)

var (
	// ErrUnknownEntity is returned when an operation names a bus that is not
	// in the store. Animation chains treat it as a silent stop.
	ErrUnknownEntity = kb.ErrBusNotFound
	// ErrInvalidDuration rejects negative animation durations in configuration.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidPeriod rejects non-positive tick periods.
	ErrInvalidPeriod = errors.New("invalid tick period")
	// ErrInvalidProbability rejects status-change probabilities outside [0, 1].
	ErrInvalidProbability = errors.New("invalid probability")
	// ErrInvalidJitter rejects negative or non-finite position jitter.
	ErrInvalidJitter = errors.New("invalid jitter")
)
