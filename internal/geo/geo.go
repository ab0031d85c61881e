// Package geo wraps the external location normalizer. Geocoding is
// best-effort: a failed or disabled lookup leaves coordinates unset and the
// requirement proceeds without them.
package geo

import "context"

// Coordinates is a normalized lat/lng pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Normalizer resolves a free-text location into coordinates.
// A nil result with nil error means the location could not be resolved.
type Normalizer interface {
	Normalize(ctx context.Context, locationText string) (*Coordinates, error)
}

// Noop never resolves anything. Used when no geocoder is configured.
type Noop struct{}

func (Noop) Normalize(context.Context, string) (*Coordinates, error) { return nil, nil }
