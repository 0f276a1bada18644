// Package geo contains pure great-circle helpers used by drop search and claim geofencing.
package geo

import (
	"math"
	"sort"

	"dropspot/internal/types"
)

const EarthRadiusMeters = 6371000.0

// Distance returns the haversine distance in metres between a and b.
func Distance(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Within reports whether p lies inside the circle of radiusMeters around center,
// together with the computed distance.
func Within(center, p types.Point, radiusMeters int) (float64, bool) {
	d := Distance(center, p)
	return d, d <= float64(radiusMeters)
}

// Round2 rounds metres to centimetre precision for storage and display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// SortByDistance orders items ascending by the accessor; equal distances keep their order.
func SortByDistance[T any](items []T, dist func(T) float64) {
	sort.SliceStable(items, func(i, j int) bool {
		return dist(items[i]) < dist(items[j])
	})
}
