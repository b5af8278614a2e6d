package model

import "math"

// Position is a geographic coordinate in decimal degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsFinite reports whether both axes are finite real numbers.
func (p Position) IsFinite() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lng) && !math.IsInf(p.Lng, 0)
}

// Offset returns p shifted by the given deltas.
func (p Position) Offset(dLat, dLng float64) Position {
	return Position{Lat: p.Lat + dLat, Lng: p.Lng + dLng}
}
