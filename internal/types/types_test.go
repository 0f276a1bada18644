package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{name: "zero value", in: Page{}, want: Page{Skip: 0, Limit: DefaultLimit}},
		{name: "negative skip", in: Page{Skip: -5, Limit: 10}, want: Page{Skip: 0, Limit: 10}},
		{name: "limit above cap", in: Page{Skip: 3, Limit: 500}, want: Page{Skip: 3, Limit: MaxLimit}},
		{name: "in range", in: Page{Skip: 20, Limit: 50}, want: Page{Skip: 20, Limit: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestPointValid(t *testing.T) {
	assert.True(t, Point{Lat: 41.0082, Lng: 28.9784}.Valid())
	assert.True(t, Point{Lat: -90, Lng: 180}.Valid())
	assert.False(t, Point{Lat: 90.01, Lng: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lng: -180.5}.Valid())
}
