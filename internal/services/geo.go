package services

import (
	"math"
	"strings"
)

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

const earthRadiusM = 6371000.0

// HaversineMeters returns the great-circle distance between a and b.
func HaversineMeters(a, b GeoPoint) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// boxAround returns the lat/lng bounds of a square of radius meters centered on p.
func boxAround(p GeoPoint, radiusM float64) (minLat, maxLat, minLng, maxLng float64) {
	dLat := radiusM / 111320.0
	cos := math.Cos(p.Lat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01
	}
	dLng := radiusM / (111320.0 * cos)
	return p.Lat - dLat, p.Lat + dLat, p.Lng - dLng, p.Lng + dLng
}

func normalizePlace(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// mapboxCategory maps planner interests onto Mapbox search categories.
var mapboxCategory = map[string]string{
	"sight":     "tourist_attraction",
	"food":      "restaurant",
	"cafe":      "cafe",
	"nature":    "park",
	"culture":   "museum",
	"shopping":  "shopping_mall",
	"nightlife": "bar",
	"beach":     "beach",
}
