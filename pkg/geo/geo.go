// Package geo holds the great-circle helpers used by catalog distance sorting
// and nearby seller lookups.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// DistanceKm returns the haversine distance between two coordinates in
// kilometres. Callers decide what counts as "no location".
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Point is a normalized coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewPoint normalizes optional coordinates. It returns nil unless both values
// are present, finite, and not the (0,0) "unset" sentinel.
func NewPoint(lat, lng *float64) *Point {
	if lat == nil || lng == nil {
		return nil
	}
	p := Point{Lat: *lat, Lng: *lng}
	if !p.Valid() {
		return nil
	}
	return &p
}

// Valid reports whether the point is a usable location.
func (p Point) Valid() bool {
	if !finite(p.Lat) || !finite(p.Lng) {
		return false
	}
	if p.Lat == 0 && p.Lng == 0 {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// DistanceTo returns the distance from p to other in kilometres.
func (p Point) DistanceTo(other Point) float64 {
	return DistanceKm(p.Lat, p.Lng, other.Lat, other.Lng)
}

// Round2 rounds a distance to two decimals for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
