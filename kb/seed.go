package kb

import (
	"fmt"

	"github.com/signalsfoundry/schoolbus-tracker/model"
)

// SeedBuses is the fixed fleet loaded at startup.
var SeedBuses = []model.Bus{
	{ID: "1", Number: "Bus 101", Driver: "John Smith", Route: "North Zone", Status: model.StatusOnRoute,
		Position: model.Position{Lat: 28.6139, Lng: 77.2090}},
	{ID: "2", Number: "Bus 102", Driver: "Mary Johnson", Route: "East Zone", Status: model.StatusDelayed,
		Position: model.Position{Lat: 28.6280, Lng: 77.2410}},
	{ID: "3", Number: "Bus 103", Driver: "James Brown", Route: "South Zone", Status: model.StatusIdle,
		Position: model.Position{Lat: 28.5921, Lng: 77.2065}},
	{ID: "4", Number: "Bus 104", Driver: "Patricia Miller", Route: "West Zone", Status: model.StatusOnRoute,
		Position: model.Position{Lat: 28.6219, Lng: 77.1737}},
}

// SeedStudents is the fixed student roster.
var SeedStudents = []model.Student{
	{Name: "Alice", Bus: "Bus 101"},
	{Name: "Bob", Bus: "Bus 102"},
	{Name: "Charlie", Bus: "Bus 103"},
	{Name: "David", Bus: "Bus 104"},
	{Name: "Eva", Bus: "Bus 101"},
}

type seedAlert struct {
	message string
	read    bool
}

var seedAlerts = []seedAlert{
	{"Bus 102 is delayed by 10 minutes", false},
	{"Bus 104 is arriving at West Zone", false},
	{"Bus 101 has completed its route", true},
}

// Seed loads the startup fleet, roster and alerts into kb.
func Seed(kb *KnowledgeBase) error {
	for _, b := range SeedBuses {
		if err := kb.AddBus(b); err != nil {
			return fmt.Errorf("seed bus: %w", err)
		}
	}
	for _, s := range SeedStudents {
		kb.AddStudent(s)
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()
	for _, a := range seedAlerts {
		kb.alerts = append(kb.alerts, model.Alert{
			ID:        kb.nextAlertID,
			Message:   a.message,
			Read:      a.read,
			CreatedAt: kb.now(),
		})
		kb.nextAlertID++
	}
	return nil
}
