package model

import "strings"

// Status is the operating state of a bus.
type Status string

const (
	StatusOnRoute Status = "on-route"
	StatusDelayed Status = "delayed"
	StatusIdle    Status = "idle"
)

// Statuses lists every valid status in draw order. The simulator picks
// uniformly from this slice, so its order is part of seeded reproducibility.
var Statuses = []Status{StatusOnRoute, StatusDelayed, StatusIdle}

// Valid reports whether s belongs to the status enumeration.
func (s Status) Valid() bool {
	switch s {
	case StatusOnRoute, StatusDelayed, StatusIdle:
		return true
	}
	return false
}

// Label renders the status for display ("on route").
func (s Status) Label() string {
	return strings.ReplaceAll(string(s), "-", " ")
}

// Bus is a tracked school bus.
//
// Position is what renderers draw; it is moved by the animator. Target is
// the destination chosen by the most recent simulator tick.
type Bus struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Driver string `json:"driver"`
	Route  string `json:"route"`
	Status Status `json:"status"`

	Position Position `json:"position"`
	Target   Position `json:"target"`
}

// Matches reports whether query appears, case-insensitively, in the bus
// number, driver or route. An empty query matches every bus.
func (b Bus) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(b.Number), q) ||
		strings.Contains(strings.ToLower(b.Driver), q) ||
		strings.Contains(strings.ToLower(b.Route), q)
}
