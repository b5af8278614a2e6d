package model

import "time"

// Alert is a dashboard notification.
type Alert struct {
	ID        int       `json:"id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stats summarises the fleet for the dashboard header.
type Stats struct {
	TotalBuses    int `json:"totalBuses"`
	ActiveBuses   int `json:"activeBuses"`
	TotalStudents int `json:"totalStudents"`
	DelayedBuses  int `json:"delayedBuses"`
	UnreadAlerts  int `json:"unreadAlerts"`
}
