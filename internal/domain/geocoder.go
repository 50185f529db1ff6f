package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// ReverseGeocoder resolves a marker position to a place description.
type ReverseGeocoder interface {
	// ReverseGeocode converts coordinates to place details. A zero result
	// with a nil error means the provider knows no place there.
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
