package kb

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/signalsfoundry/schoolbus-tracker/model"
)

var (
	// ErrBusExists is returned when adding a bus whose ID is taken.
	ErrBusExists = errors.New("bus already exists")
	// ErrBusNotFound is returned for operations on an unknown bus ID.
	ErrBusNotFound = errors.New("bus not found")
	// ErrAlertNotFound is returned for operations on an unknown alert ID.
	ErrAlertNotFound = errors.New("alert not found")
	// ErrInvalidStatus is returned when a status is outside the enumeration.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidPosition is returned for NaN or infinite coordinates.
	ErrInvalidPosition = errors.New("invalid position")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventBusUpdated EventType = iota
	EventAlertRaised
	EventAlertsChanged
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type  EventType
	Bus   model.Bus
	Alert model.Alert
}

// Snapshot is a consistent copy of the whole store.
type Snapshot struct {
	Buses    []model.Bus
	Students []model.Student
	Alerts   []model.Alert
	Stats    model.Stats
	TakenAt  time.Time
}

// KnowledgeBase is an in-memory, thread-safe store for buses, students and
// alerts. Callers only ever receive copies; all mutation goes through its
// methods.
type KnowledgeBase struct {
	mu sync.RWMutex

	buses map[string]*model.Bus
	order []string

	students []model.Student

	// alerts is kept newest first.
	alerts      []model.Alert
	nextAlertID int

	now func() time.Time

	subs    map[int]func(Event)
	nextSub int
}

// Option customises KnowledgeBase construction.
type Option func(*KnowledgeBase)

// WithClock overrides the time source used to stamp alerts and snapshots.
func WithClock(now func() time.Time) Option {
	return func(kb *KnowledgeBase) {
		if now != nil {
			kb.now = now
		}
	}
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase(opts ...Option) *KnowledgeBase {
	kb := &KnowledgeBase{
		buses:       make(map[string]*model.Bus),
		nextAlertID: 1,
		now:         time.Now,
		subs:        make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(kb)
	}
	return kb
}

// AddBus adds a new bus. It returns ErrBusExists if the ID is taken.
func (kb *KnowledgeBase) AddBus(b model.Bus) error {
	if b.ID == "" {
		return fmt.Errorf("bus ID must not be empty")
	}
	if b.Status == "" {
		b.Status = model.StatusIdle
	}
	if !b.Status.Valid() {
		return fmt.Errorf("bus %q: %w: %q", b.ID, ErrInvalidStatus, b.Status)
	}
	if !b.Position.IsFinite() {
		return fmt.Errorf("bus %q: %w", b.ID, ErrInvalidPosition)
	}
	if b.Target == (model.Position{}) || !b.Target.IsFinite() {
		b.Target = b.Position
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.buses[b.ID]; exists {
		return fmt.Errorf("bus %q: %w", b.ID, ErrBusExists)
	}
	kb.buses[b.ID] = &b
	kb.order = append(kb.order, b.ID)
	return nil
}

// GetBus returns a copy of the bus with the given ID.
func (kb *KnowledgeBase) GetBus(id string) (model.Bus, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	b, ok := kb.buses[id]
	if !ok {
		return model.Bus{}, fmt.Errorf("bus %q: %w", id, ErrBusNotFound)
	}
	return *b, nil
}

// ListBuses returns copies of all buses in insertion order.
func (kb *KnowledgeBase) ListBuses() []model.Bus {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.listBusesLocked("")
}

// FilterBuses returns the buses whose number, driver or route contains
// query, ignoring case.
func (kb *KnowledgeBase) FilterBuses(query string) []model.Bus {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.listBusesLocked(query)
}

func (kb *KnowledgeBase) listBusesLocked(query string) []model.Bus {
	res := make([]model.Bus, 0, len(kb.order))
	for _, id := range kb.order {
		b := kb.buses[id]
		if b.Matches(query) {
			res = append(res, *b)
		}
	}
	return res
}

// BusIDs returns every bus ID in insertion order.
func (kb *KnowledgeBase) BusIDs() []string {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return append([]string(nil), kb.order...)
}

// SetStatus changes a bus's status and returns the previous one.
func (kb *KnowledgeBase) SetStatus(id string, status model.Status) (model.Status, error) {
	if !status.Valid() {
		return "", fmt.Errorf("bus %q: %w: %q", id, ErrInvalidStatus, status)
	}
	var prev model.Status
	err := kb.mutateBus(id, func(b *model.Bus) {
		prev = b.Status
		b.Status = status
	})
	return prev, err
}

// UpdatePosition moves a bus's rendered position and notifies subscribers.
func (kb *KnowledgeBase) UpdatePosition(id string, pos model.Position) error {
	if !pos.IsFinite() {
		return fmt.Errorf("bus %q: %w", id, ErrInvalidPosition)
	}
	return kb.mutateBus(id, func(b *model.Bus) {
		b.Position = pos
	})
}

// SetTarget records the destination a bus is being animated towards.
func (kb *KnowledgeBase) SetTarget(id string, target model.Position) error {
	if !target.IsFinite() {
		return fmt.Errorf("bus %q: %w", id, ErrInvalidPosition)
	}
	return kb.mutateBus(id, func(b *model.Bus) {
		b.Target = target
	})
}

func (kb *KnowledgeBase) mutateBus(id string, fn func(*model.Bus)) error {
	kb.mu.Lock()
	b, ok := kb.buses[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("bus %q: %w", id, ErrBusNotFound)
	}
	fn(b)
	event := Event{
		Type: EventBusUpdated,
		Bus:  *b,
	}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// AddStudent registers a student.
func (kb *KnowledgeBase) AddStudent(s model.Student) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.students = append(kb.students, s)
}

// ListStudents returns a copy of all students.
func (kb *KnowledgeBase) ListStudents() []model.Student {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return append([]model.Student(nil), kb.students...)
}

// AddAlert raises a new unread alert and returns it.
func (kb *KnowledgeBase) AddAlert(message string) model.Alert {
	kb.mu.Lock()
	a := model.Alert{
		ID:        kb.nextAlertID,
		Message:   message,
		CreatedAt: kb.now(),
	}
	kb.nextAlertID++
	kb.alerts = append([]model.Alert{a}, kb.alerts...)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	for _, sub := range subs {
		sub(Event{Type: EventAlertRaised, Alert: a})
	}
	return a
}

// ListAlerts returns all alerts, newest first.
func (kb *KnowledgeBase) ListAlerts() []model.Alert {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return append([]model.Alert(nil), kb.alerts...)
}

// RecentAlerts returns at most n alerts, newest first.
func (kb *KnowledgeBase) RecentAlerts(n int) []model.Alert {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n > len(kb.alerts) {
		n = len(kb.alerts)
	}
	return append([]model.Alert(nil), kb.alerts[:n]...)
}

// UnreadAlerts counts alerts not yet marked as read.
func (kb *KnowledgeBase) UnreadAlerts() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.unreadLocked()
}

func (kb *KnowledgeBase) unreadLocked() int {
	n := 0
	for _, a := range kb.alerts {
		if !a.Read {
			n++
		}
	}
	return n
}

// MarkAlertRead flags an alert as read. Marking an already read alert is
// not an error.
func (kb *KnowledgeBase) MarkAlertRead(id int) error {
	return kb.mutateAlerts(id, func(i int) {
		kb.alerts[i].Read = true
	})
}

// DismissAlert removes an alert.
func (kb *KnowledgeBase) DismissAlert(id int) error {
	return kb.mutateAlerts(id, func(i int) {
		kb.alerts = append(kb.alerts[:i], kb.alerts[i+1:]...)
	})
}

func (kb *KnowledgeBase) mutateAlerts(id int, fn func(idx int)) error {
	kb.mu.Lock()
	idx := -1
	for i, a := range kb.alerts {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		kb.mu.Unlock()
		return fmt.Errorf("alert %d: %w", id, ErrAlertNotFound)
	}
	fn(idx)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	for _, sub := range subs {
		sub(Event{Type: EventAlertsChanged})
	}
	return nil
}

// Stats summarises the current fleet.
func (kb *KnowledgeBase) Stats() model.Stats {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.statsLocked()
}

func (kb *KnowledgeBase) statsLocked() model.Stats {
	st := model.Stats{
		TotalBuses:    len(kb.buses),
		TotalStudents: len(kb.students),
		UnreadAlerts:  kb.unreadLocked(),
	}
	for _, b := range kb.buses {
		switch b.Status {
		case model.StatusOnRoute:
			st.ActiveBuses++
		case model.StatusDelayed:
			st.DelayedBuses++
		}
	}
	return st
}

// Snapshot returns a consistent copy of the store.
func (kb *KnowledgeBase) Snapshot() Snapshot {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return Snapshot{
		Buses:    kb.listBusesLocked(""),
		Students: append([]model.Student(nil), kb.students...),
		Alerts:   append([]model.Alert(nil), kb.alerts...),
		Stats:    kb.statsLocked(),
		TakenAt:  kb.now(),
	}
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

func (kb *KnowledgeBase) subscribersLocked() []func(Event) {
	if len(kb.subs) == 0 {
		return nil
	}
	ids := make([]int, 0, len(kb.subs))
	for id := range kb.subs {
		ids = append(ids, id)
	}
	// Deliver in registration order.
	slices.Sort(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, kb.subs[id])
	}
	return out
}
