package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/schoolbus-tracker/core"
	"github.com/signalsfoundry/schoolbus-tracker/kb"
)

func newTestRenderer(t *testing.T) (*Renderer, tcell.SimulationScreen, *kb.KnowledgeBase) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen Init: %v", err)
	}
	screen.SetSize(100, 30)
	screen.Show()
	t.Cleanup(screen.Fini)

	clock := time.Date(2025, time.September, 1, 7, 30, 0, 0, time.UTC)
	store := kb.NewKnowledgeBase(kb.WithClock(func() time.Time { return clock }))
	if err := kb.Seed(store); err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	r := New(screen, store)
	r.Render(core.RenderInitial, store.Snapshot())
	return r, screen, store
}

func screenText(s tcell.SimulationScreen) string {
	cells, w, h := s.GetContents()
	var b strings.Builder
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := cells[y*w+x]
			if len(c.Runes) == 0 {
				b.WriteByte(' ')
				continue
			}
			b.WriteString(string(c.Runes))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func key(ch rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, ch, tcell.ModNone)
}

func TestDashboardShowsStatsBusesAndRecentAlerts(t *testing.T) {
	_, screen, _ := newTestRenderer(t)
	text := screenText(screen)

	for _, want := range []string{
		"School Bus Tracker",
		"Last update: 07:30:00",
		"Total buses: 4",
		"Delayed: 1",
		"Unread alerts: 2",
		"Bus 101",
		"John Smith",
		"on route",
		"28.6139, 77.2090",
		"Bus 102 is delayed by 10 minutes",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("dashboard missing %q:\n%s", want, text)
		}
	}
}

func TestShowView(t *testing.T) {
	r, screen, _ := newTestRenderer(t)

	if err := r.ShowView(ViewStudents); err != nil {
		t.Fatalf("ShowView error: %v", err)
	}
	if r.View() != ViewStudents {
		t.Fatalf("View = %s, want students", r.View())
	}
	if text := screenText(screen); !strings.Contains(text, "Charlie") || strings.Contains(text, "Total buses") {
		t.Fatalf("students page not drawn:\n%s", text)
	}

	err := r.ShowView("settings")
	if !errors.Is(err, ErrUnknownView) {
		t.Fatalf("ShowView(settings) error = %v, want ErrUnknownView", err)
	}
	if r.View() != ViewStudents {
		t.Fatalf("unknown view changed the page to %s", r.View())
	}
}

func TestNumberKeysSwitchViews(t *testing.T) {
	r, _, _ := newTestRenderer(t)

	for i, want := range Views {
		if quit := r.HandleEvent(key(rune('1' + i))); quit {
			t.Fatalf("key %d requested quit", i+1)
		}
		if r.View() != want {
			t.Fatalf("after key %d view = %s, want %s", i+1, r.View(), want)
		}
	}
}

func TestSearchFiltersBuses(t *testing.T) {
	r, screen, _ := newTestRenderer(t)

	r.HandleEvent(key('/'))
	for _, ch := range "marx" {
		r.HandleEvent(key(ch))
	}
	r.HandleEvent(tcell.NewEventKey(tcell.KeyBackspace2, 0, tcell.ModNone))
	r.HandleEvent(key('y'))
	r.HandleEvent(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))

	if r.View() != ViewBuses || r.Query() != "mary" {
		t.Fatalf("view = %s query = %q", r.View(), r.Query())
	}
	text := screenText(screen)
	if !strings.Contains(text, "Bus 102") || strings.Contains(text, "Bus 101") {
		t.Fatalf("search did not filter:\n%s", text)
	}

	// 'q' typed after leaving search mode quits.
	if !r.HandleEvent(key('q')) {
		t.Fatalf("q did not quit")
	}
}

func TestSearchWithNoMatches(t *testing.T) {
	r, screen, _ := newTestRenderer(t)

	r.HandleEvent(key('/'))
	for _, ch := range "zzz" {
		r.HandleEvent(key(ch))
	}
	if !strings.Contains(screenText(screen), "No buses match.") {
		t.Fatalf("expected empty-result message")
	}
	r.HandleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
	if r.Query() != "" {
		t.Fatalf("escape did not clear the search")
	}
}

func TestAlertActions(t *testing.T) {
	r, screen, store := newTestRenderer(t)
	if err := r.ShowView(ViewAlerts); err != nil {
		t.Fatalf("ShowView error: %v", err)
	}

	r.HandleEvent(key('r'))
	if store.UnreadAlerts() != 1 {
		t.Fatalf("unread = %d after marking first alert read", store.UnreadAlerts())
	}
	if !strings.Contains(screenText(screen), "alert 1 marked read") {
		t.Fatalf("missing confirmation:\n%s", screenText(screen))
	}

	r.HandleEvent(tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone))
	r.HandleEvent(key('d'))
	if len(store.ListAlerts()) != 2 {
		t.Fatalf("alerts = %d after dismiss, want 2", len(store.ListAlerts()))
	}
	if _, err := store.GetBus("1"); err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}

	r.Render(core.RenderTick, store.Snapshot())
	if strings.Contains(screenText(screen), "Bus 104 is arriving") {
		t.Fatalf("dismissed alert still drawn")
	}
}

func TestEscapeQuits(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	if !r.HandleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
		t.Fatalf("escape did not quit")
	}
}
