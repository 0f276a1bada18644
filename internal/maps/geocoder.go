// README: Reverse geocoding through the Google Maps API, used to fill in drop addresses.
package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"dropspot/internal/types"
)

var ErrNoAddress = errors.New("no address found for location")

// Geocoder resolves coordinates to a human-readable address.
type Geocoder struct {
	client   *maps.Client
	language string
}

// NewGeocoder creates a Geocoder with the given API key. Extra client options
// (base URL, HTTP client) are passed through to the maps client.
func NewGeocoder(apiKey, language string, opts ...maps.ClientOption) (*Geocoder, error) {
	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Geocoder{client: client, language: language}, nil
}

// ReverseGeocode returns the formatted address of the best match for p.
func (g *Geocoder) ReverseGeocode(ctx context.Context, p types.Point) (string, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
		Language: g.language,
	})
	if err != nil {
		return "", fmt.Errorf("geocoding api error: %w", err)
	}
	for _, r := range results {
		if r.FormattedAddress != "" {
			return r.FormattedAddress, nil
		}
	}
	return "", ErrNoAddress
}
