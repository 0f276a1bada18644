package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"dropspot/internal/types"
)

// northOf returns the point d metres due north of p.
func northOf(p types.Point, d float64) types.Point {
	return types.Point{Lat: p.Lat + (d/EarthRadiusMeters)*180/math.Pi, Lng: p.Lng}
}

func TestDistance_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Point
		wantM     float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Point{Lat: 41.0082, Lng: 28.9784},
			b:         types.Point{Lat: 41.0082, Lng: 28.9784},
			wantM:     0,
			tolerance: 0.001,
		},
		{
			name:      "one degree of latitude",
			a:         types.Point{Lat: 0, Lng: 0},
			b:         types.Point{Lat: 1, Lng: 0},
			wantM:     111195,
			tolerance: 5,
		},
		{
			name:      "New York to Los Angeles (~3944km)",
			a:         types.Point{Lat: 40.7128, Lng: -74.0060},
			b:         types.Point{Lat: 34.0522, Lng: -118.2437},
			wantM:     3944000,
			tolerance: 50000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			assert.InDelta(t, tt.wantM, got, tt.tolerance)
		})
	}
}

func TestDistance_Symmetry(t *testing.T) {
	a := types.Point{Lat: 25.0, Lng: 121.0}
	b := types.Point{Lat: 26.0, Lng: 122.0}
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-6)
}

func TestDistance_Monotonic(t *testing.T) {
	origin := types.Point{Lat: 41.0082, Lng: 28.9784}
	prev := 0.0
	for _, d := range []float64{10, 100, 1000, 10000} {
		got := Distance(origin, northOf(origin, d))
		assert.Greater(t, got, prev)
		prev = got
	}
}

func TestWithin_Boundary(t *testing.T) {
	center := types.Point{Lat: 41.0082, Lng: 28.9784}

	d, ok := Within(center, northOf(center, 999), 1000)
	assert.True(t, ok)
	assert.InDelta(t, 999, d, 0.01)

	d, ok = Within(center, northOf(center, 1001), 1000)
	assert.False(t, ok)
	assert.InDelta(t, 1001, d, 0.01)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 12.35, Round2(12.3456))
	assert.Equal(t, 0.0, Round2(0.001))
}

type placed struct {
	id   string
	dist float64
}

func TestSortByDistance(t *testing.T) {
	items := []placed{{"c", 5}, {"a", 1}, {"b", 3}, {"a2", 1}}
	SortByDistance(items, func(p placed) float64 { return p.dist })
	assert.Equal(t, []placed{{"a", 1}, {"a2", 1}, {"b", 3}, {"c", 5}}, items)
}

func TestSortByDistance_Empty(t *testing.T) {
	var items []placed
	SortByDistance(items, func(p placed) float64 { return p.dist })
	assert.Empty(t, items)
}
