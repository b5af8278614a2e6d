package core

import (
	"math"

	"github.com/signalsfoundry/schoolbus-tracker/model"
)

// EarthRadiusKm is the mean Earth radius used for distance estimates.
const EarthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two positions using
// the haversine formula.
func DistanceKm(a, b model.Position) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// Interpolate returns start + (target-start)*progress on each axis.
// progress is clamped to [0, 1]; at 1 the target is returned exactly.
func Interpolate(start, target model.Position, progress float64) model.Position {
	if progress >= 1 {
		return target
	}
	if progress <= 0 || math.IsNaN(progress) {
		return start
	}
	return model.Position{
		Lat: start.Lat + (target.Lat-start.Lat)*progress,
		Lng: start.Lng + (target.Lng-start.Lng)*progress,
	}
}
