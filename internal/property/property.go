// Package property exposes the listing catalog as a read-only collaborator.
// The matching and interest contexts consume listings; they never mutate
// them. Listing lifecycle (drafting, review, going live) is owned elsewhere.
package property

import (
	"context"
	"time"

	id "propbridge/pkg/domain"
)

// Status is the listing lifecycle state. Only live listings participate in
// matching and interest expression.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusLive      Status = "live"
	StatusSold      Status = "sold"
	StatusWithdrawn Status = "withdrawn"
)

// ListingType distinguishes sale from rental listings.
type ListingType string

const (
	ListingSale ListingType = "sale"
	ListingRent ListingType = "rent"
)

// Property is the slice of a listing the core needs: status, location,
// price, type, and the seller's identity.
type Property struct {
	ID           id.PropertyID
	SellerID     id.UserID
	Title        string
	Status       Status
	City         string
	Locality     string
	State        string
	Price        float64
	ListingType  ListingType
	PropertyType string
	Bedrooms     int
	Bathrooms    int
	AreaSqFt     float64
	CreatedAt    time.Time
}

// IsLive reports whether the listing can participate in matching and
// interest expression.
func (p *Property) IsLive() bool { return p.Status == StatusLive }

// Store is the read-only catalog contract.
type Store interface {
	// FindByID returns the listing or sentinel.ErrNotFound.
	FindByID(ctx context.Context, propertyID id.PropertyID) (*Property, error)
	// FindLiveByCity returns live listings in a city, optionally filtered
	// by listing type (empty matches all). City comparison is
	// case-insensitive.
	FindLiveByCity(ctx context.Context, city string, listingType ListingType) ([]*Property, error)
}
