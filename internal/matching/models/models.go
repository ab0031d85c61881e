package models

import (
	"time"

	"propbridge/internal/geo"
	"propbridge/internal/property"
	id "propbridge/pkg/domain"
	dErrors "propbridge/pkg/domain-errors"
)

// RequirementStatus is the lifecycle state of a buyer requirement.
type RequirementStatus string

const (
	RequirementActive    RequirementStatus = "active"
	RequirementFulfilled RequirementStatus = "fulfilled"
	RequirementCancelled RequirementStatus = "cancelled"
	RequirementExpired   RequirementStatus = "expired"
)

// IsValid checks if the status is one of the supported enum values.
func (s RequirementStatus) IsValid() bool {
	switch s {
	case RequirementActive, RequirementFulfilled, RequirementCancelled, RequirementExpired:
		return true
	}
	return false
}

// BudgetType distinguishes purchase budgets from rental budgets.
type BudgetType string

const (
	BudgetSale BudgetType = "sale"
	BudgetRent BudgetType = "rent"
)

func (t BudgetType) IsValid() bool { return t == BudgetSale || t == BudgetRent }

// Requirement is a buyer's stated search criteria. Owned exclusively by its
// buyer; a fulfilled requirement is immutable and cancellation is a soft
// delete out of the matching pool.
type Requirement struct {
	ID      id.RequirementID `json:"id"`
	BuyerID id.UserID        `json:"buyer_id"`

	City        string           `json:"city"`
	State       string           `json:"state"`
	Locality    string           `json:"locality,omitempty"`
	Pincode     string           `json:"pincode,omitempty"`
	Coordinates *geo.Coordinates `json:"coordinates,omitempty"`

	MinBudget  *float64   `json:"min_budget,omitempty"`
	MaxBudget  float64    `json:"max_budget"`
	BudgetType BudgetType `json:"budget_type"`

	PropertyType string               `json:"property_type,omitempty"`
	ListingType  property.ListingType `json:"listing_type,omitempty"`
	MinAreaSqFt  float64              `json:"min_area_sqft,omitempty"`
	Bedrooms     int                  `json:"bedrooms,omitempty"`
	Bathrooms    int                  `json:"bathrooms,omitempty"`

	Status        RequirementStatus `json:"status"`
	MatchCount    int               `json:"match_count"`
	LastMatchedAt *time.Time        `json:"last_matched_at,omitempty"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRequirement creates a Requirement with domain invariant validation.
func NewRequirement(buyerID id.UserID, city, state string, minBudget *float64, maxBudget float64, budgetType BudgetType) (*Requirement, error) {
	if buyerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "buyer_id is required")
	}
	if city == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "city is required")
	}
	if maxBudget <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "max_budget must be positive")
	}
	if minBudget != nil && *minBudget > maxBudget {
		return nil, dErrors.New(dErrors.CodeValidation, "min_budget must not exceed max_budget")
	}
	if !budgetType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "budget_type must be sale or rent")
	}

	now := time.Now()
	return &Requirement{
		ID:         id.NewRequirementID(),
		BuyerID:    buyerID,
		City:       city,
		State:      state,
		MinBudget:  minBudget,
		MaxBudget:  maxBudget,
		BudgetType: budgetType,
		Status:     RequirementActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsMatchable reports whether the requirement participates in matching.
func (r *Requirement) IsMatchable(now time.Time) bool {
	if r.Status != RequirementActive {
		return false
	}
	if r.ExpiresAt != nil && now.After(*r.ExpiresAt) {
		return false
	}
	return true
}

// IsMutable reports whether edits are allowed. Fulfilled requirements are
// frozen; cancelled and expired ones are out of the pool but their history
// remains readable.
func (r *Requirement) IsMutable() bool {
	return r.Status == RequirementActive
}

// Match records that a (requirement, property) pair cleared the
// qualification threshold. One row per pair, created once and never
// re-scored in place. A later re-evaluation that no longer qualifies leaves
// the row untouched; stale matches are a known gap, not retracted here.
type Match struct {
	ID            id.MatchID       `json:"id"`
	RequirementID id.RequirementID `json:"requirement_id"`
	PropertyID    id.PropertyID    `json:"property_id"`
	BuyerID       id.UserID        `json:"buyer_id"`
	SellerID      id.UserID        `json:"seller_id"`

	LocationClass    LocationClass `json:"location_class"`
	BudgetOverlapPct float64       `json:"budget_overlap_pct"`
	Score            float64       `json:"score"`
	Reasons          []string      `json:"reasons"`

	// Notification flags are independent; a failed channel leaves only its
	// own flag unset.
	BuyerNotified  bool `json:"buyer_notified"`
	SellerNotified bool `json:"seller_notified"`
	CSNotified     bool `json:"cs_notified"`

	BuyerInterested   bool       `json:"buyer_interested"`
	BuyerInterestedAt *time.Time `json:"buyer_interested_at,omitempty"`
	CSReviewed        bool       `json:"cs_reviewed"`
	CSReviewedAt      *time.Time `json:"cs_reviewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// LocationClass grades how precisely a requirement and property align
// geographically. Empty means no match (different cities).
type LocationClass string

const (
	LocationNone     LocationClass = ""
	LocationCity     LocationClass = "exact_city"
	LocationLocality LocationClass = "exact_locality"
)

// weight orders location classes for the overall score.
func (c LocationClass) weight() float64 {
	switch c {
	case LocationLocality:
		return 100
	case LocationCity:
		return 80
	default:
		return 0
	}
}

// OverallScore derives the single display score from location class and
// budget overlap. Equal weighting; the 80% overlap threshold, not this
// score, is what gates match creation.
func OverallScore(class LocationClass, overlapPct float64) float64 {
	return (class.weight() + overlapPct) / 2
}
