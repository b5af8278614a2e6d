// Package tui draws the tracker dashboard in a terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/schoolbus-tracker/core"
	"github.com/signalsfoundry/schoolbus-tracker/kb"
	"github.com/signalsfoundry/schoolbus-tracker/model"
)

// ViewID names one of the dashboard pages.
type ViewID string

const (
	ViewDashboard ViewID = "dashboard"
	ViewBuses     ViewID = "buses"
	ViewStudents  ViewID = "students"
	ViewAlerts    ViewID = "alerts"
)

// Views lists the pages in tab order; keys 1-4 select them.
var Views = []ViewID{ViewDashboard, ViewBuses, ViewStudents, ViewAlerts}

// ErrUnknownView is returned by ShowView for an id outside Views.
var ErrUnknownView = errors.New("unknown view")

// AlertActions lets the alerts page change alert state. *kb.KnowledgeBase
// implements it.
type AlertActions interface {
	MarkAlertRead(id int) error
	DismissAlert(id int) error
}

// RecentAlerts is how many alerts the dashboard page lists.
const RecentAlerts = 5

var (
	styleDefault = tcell.StyleDefault
	styleTitle   = tcell.StyleDefault.Bold(true).Foreground(tcell.ColorAqua)
	styleTab     = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleActive  = tcell.StyleDefault.Reverse(true).Bold(true)
	styleDim     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleUnread  = tcell.StyleDefault.Bold(true)
	styleError   = tcell.StyleDefault.Foreground(tcell.ColorRed)
)

func statusStyle(s model.Status) tcell.Style {
	switch s {
	case model.StatusOnRoute:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case model.StatusDelayed:
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	default:
		return styleDim
	}
}

// Renderer is a core.Renderer that draws the latest snapshot to a tcell
// screen and handles keyboard navigation. Render and HandleEvent may be
// called from different goroutines.
type Renderer struct {
	screen  tcell.Screen
	actions AlertActions

	mu        sync.Mutex
	view      ViewID
	snap      kb.Snapshot
	query     string
	searching bool
	selected  int
	message   string
}

var _ core.Renderer = (*Renderer)(nil)

// New returns a renderer on an initialised screen. actions may be nil, in
// which case the alerts page is read-only.
func New(screen tcell.Screen, actions AlertActions) *Renderer {
	return &Renderer{screen: screen, actions: actions, view: ViewDashboard}
}

// Render implements core.Renderer.
func (r *Renderer) Render(_ core.RenderCause, snap kb.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = snap
	r.clampSelection()
	r.drawLocked()
}

// ShowView switches to the page named by viewID and redraws.
func (r *Renderer) ShowView(viewID ViewID) error {
	known := false
	for _, v := range Views {
		if v == viewID {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownView, viewID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = viewID
	r.searching = false
	r.selected = 0
	r.message = ""
	r.drawLocked()
	return nil
}

// View returns the page being shown.
func (r *Renderer) View() ViewID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Query returns the current bus search text.
func (r *Renderer) Query() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.query
}

// HandleEvent applies one terminal event and reports whether the user asked
// to quit.
func (r *Renderer) HandleEvent(ev tcell.Event) (quit bool) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		r.screen.Sync()
		r.mu.Lock()
		r.drawLocked()
		r.mu.Unlock()
	case *tcell.EventKey:
		r.mu.Lock()
		searching := r.searching
		r.mu.Unlock()
		if searching {
			r.handleSearchKey(ev)
			return false
		}
		return r.handleKey(ev)
	}
	return false
}

func (r *Renderer) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		r.moveSelection(-1)
		return false
	case tcell.KeyDown:
		r.moveSelection(1)
		return false
	case tcell.KeyRune:
	default:
		return false
	}

	switch ch := ev.Rune(); ch {
	case 'q':
		return true
	case '1', '2', '3', '4':
		_ = r.ShowView(Views[ch-'1'])
	case '/':
		r.mu.Lock()
		r.view = ViewBuses
		r.searching = true
		r.drawLocked()
		r.mu.Unlock()
	case 'k':
		r.moveSelection(-1)
	case 'j':
		r.moveSelection(1)
	case 'r':
		r.alertAction("marked read", func(a AlertActions, id int) error { return a.MarkAlertRead(id) })
	case 'd':
		r.alertAction("dismissed", func(a AlertActions, id int) error { return a.DismissAlert(id) })
	}
	return false
}

func (r *Renderer) handleSearchKey(ev *tcell.EventKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev.Key() {
	case tcell.KeyEnter:
		r.searching = false
	case tcell.KeyEscape:
		r.searching = false
		r.query = ""
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if q := []rune(r.query); len(q) > 0 {
			r.query = string(q[:len(q)-1])
		}
	case tcell.KeyRune:
		r.query += string(ev.Rune())
	}
	r.drawLocked()
}

func (r *Renderer) moveSelection(delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view != ViewAlerts {
		return
	}
	r.selected += delta
	r.clampSelection()
	r.drawLocked()
}

func (r *Renderer) clampSelection() {
	if n := len(r.snap.Alerts); r.selected >= n {
		r.selected = n - 1
	}
	if r.selected < 0 {
		r.selected = 0
	}
}

// alertAction applies fn to the selected alert. The list itself changes on
// the next snapshot; a status line confirms the action until then.
func (r *Renderer) alertAction(verb string, fn func(AlertActions, int) error) {
	r.mu.Lock()
	if r.view != ViewAlerts || r.actions == nil || len(r.snap.Alerts) == 0 {
		r.mu.Unlock()
		return
	}
	id := r.snap.Alerts[r.selected].ID
	r.mu.Unlock()

	err := fn(r.actions, id)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.message = err.Error()
	} else {
		r.message = fmt.Sprintf("alert %d %s", id, verb)
	}
	r.drawLocked()
}

// Run polls the screen for input until the user quits or ctx is done.
func (r *Renderer) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go r.screen.ChannelEvents(events, quit)
	defer close(quit)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if r.HandleEvent(ev) {
				return nil
			}
		}
	}
}

func (r *Renderer) drawLocked() {
	s := r.screen
	s.Clear()
	w, h := s.Size()

	drawText(s, 0, 0, w, styleTitle, "School Bus Tracker")
	x := 20
	for i, v := range Views {
		style := styleTab
		if v == r.view {
			style = styleActive
		}
		label := fmt.Sprintf(" %d %s ", i+1, v)
		drawText(s, x, 0, w, style, label)
		x += len(label) + 1
	}
	if !r.snap.TakenAt.IsZero() {
		drawText(s, 0, 1, w, styleDim, "Last update: "+r.snap.TakenAt.Format(time.TimeOnly))
	}

	body := 3
	switch r.view {
	case ViewDashboard:
		r.drawDashboard(body, w)
	case ViewBuses:
		r.drawBuses(body, w)
	case ViewStudents:
		r.drawStudents(body, w)
	case ViewAlerts:
		r.drawAlerts(body, w)
	}

	if h > 0 {
		footer := "1-4 switch view  / search  q quit"
		if r.view == ViewAlerts {
			footer = "j/k select  r mark read  d dismiss  q quit"
		}
		if r.message != "" {
			drawText(s, 0, h-2, w, styleError, r.message)
		}
		drawText(s, 0, h-1, w, styleDim, footer)
	}
	s.Show()
}

func (r *Renderer) drawDashboard(y, w int) {
	s, st := r.screen, r.snap.Stats
	drawText(s, 0, y, w, styleDefault, fmt.Sprintf("Total buses: %d   Active: %d   Students: %d   Delayed: %d   Unread alerts: %d",
		st.TotalBuses, st.ActiveBuses, st.TotalStudents, st.DelayedBuses, st.UnreadAlerts))
	y += 2
	for _, b := range r.snap.Buses {
		r.drawBusRow(y, w, b)
		y++
	}
	y++
	drawText(s, 0, y, w, styleTitle, "Recent alerts")
	y++
	for i, a := range r.snap.Alerts {
		if i == RecentAlerts {
			break
		}
		drawText(s, 0, y, w, alertStyle(a), "• "+a.Message)
		y++
	}
}

func (r *Renderer) drawBuses(y, w int) {
	s := r.screen
	prompt := "Search: " + r.query
	if r.searching {
		prompt += "_"
	}
	drawText(s, 0, y, w, styleDefault, prompt)
	y += 2

	shown := 0
	for _, b := range r.snap.Buses {
		if !b.Matches(r.query) {
			continue
		}
		r.drawBusRow(y, w, b)
		y++
		shown++
	}
	if shown == 0 {
		drawText(s, 0, y, w, styleDim, "No buses match.")
	}
}

func (r *Renderer) drawBusRow(y, w int, b model.Bus) {
	s := r.screen
	drawText(s, 0, y, w, styleDefault, fmt.Sprintf("%-8s %-16s %-11s", b.Number, b.Driver, b.Route))
	drawText(s, 38, y, w, statusStyle(b.Status), fmt.Sprintf("%-9s", b.Status.Label()))
	drawText(s, 48, y, w, styleDim, fmt.Sprintf("%.4f, %.4f", b.Position.Lat, b.Position.Lng))
}

func (r *Renderer) drawStudents(y, w int) {
	for _, st := range r.snap.Students {
		drawText(r.screen, 0, y, w, styleDefault, fmt.Sprintf("%-20s %s", st.Name, st.Bus))
		y++
	}
}

func (r *Renderer) drawAlerts(y, w int) {
	if len(r.snap.Alerts) == 0 {
		drawText(r.screen, 0, y, w, styleDim, "No alerts.")
		return
	}
	for i, a := range r.snap.Alerts {
		marker := "  "
		if i == r.selected {
			marker = "> "
		}
		state := "read  "
		if !a.Read {
			state = "unread"
		}
		drawText(r.screen, 0, y, w, alertStyle(a), fmt.Sprintf("%s%s  %s", marker, state, a.Message))
		y++
	}
}

func alertStyle(a model.Alert) tcell.Style {
	if a.Read {
		return styleDim
	}
	return styleUnread
}

func drawText(s tcell.Screen, x, y, maxX int, style tcell.Style, text string) {
	for _, ch := range text {
		if x >= maxX {
			return
		}
		s.SetContent(x, y, ch, nil, style)
		x++
	}
}
