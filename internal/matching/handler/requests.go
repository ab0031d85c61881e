package handler

import (
	"strings"
	"time"

	"propbridge/internal/matching/models"
	"propbridge/internal/matching/service"
	"propbridge/internal/property"
	dErrors "propbridge/pkg/domain-errors"
)

// CreateRequirementRequest is the HTTP request body for POST /requirements.
type CreateRequirementRequest struct {
	City         string     `json:"city"`
	State        string     `json:"state"`
	Locality     string     `json:"locality"`
	Pincode      string     `json:"pincode"`
	MinBudget    *float64   `json:"min_budget"`
	MaxBudget    float64    `json:"max_budget"`
	BudgetType   string     `json:"budget_type"`
	PropertyType string     `json:"property_type"`
	ListingType  string     `json:"listing_type"`
	MinAreaSqFt  float64    `json:"min_area_sqft"`
	Bedrooms     int        `json:"bedrooms"`
	Bathrooms    int        `json:"bathrooms"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// Validate validates and normalizes the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateRequirementRequest) Validate() error {
	r.City = strings.TrimSpace(r.City)
	if r.City == "" {
		return dErrors.New(dErrors.CodeValidation, "city is required")
	}
	if r.MaxBudget <= 0 {
		return dErrors.New(dErrors.CodeValidation, "max_budget must be positive")
	}
	if r.MinBudget != nil && *r.MinBudget > r.MaxBudget {
		return dErrors.New(dErrors.CodeValidation, "min_budget must not exceed max_budget")
	}
	if !models.BudgetType(r.BudgetType).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "budget_type must be sale or rent")
	}
	switch property.ListingType(r.ListingType) {
	case "", property.ListingSale, property.ListingRent:
	default:
		return dErrors.New(dErrors.CodeValidation, "listing_type must be sale or rent")
	}
	r.State = strings.TrimSpace(r.State)
	r.Locality = strings.TrimSpace(r.Locality)
	r.Pincode = strings.TrimSpace(r.Pincode)
	return nil
}

// Input converts the request into the service input.
func (r *CreateRequirementRequest) Input() service.CreateRequirementInput {
	return service.CreateRequirementInput{
		City:         r.City,
		State:        r.State,
		Locality:     r.Locality,
		Pincode:      r.Pincode,
		MinBudget:    r.MinBudget,
		MaxBudget:    r.MaxBudget,
		BudgetType:   models.BudgetType(r.BudgetType),
		PropertyType: r.PropertyType,
		ListingType:  property.ListingType(r.ListingType),
		MinAreaSqFt:  r.MinAreaSqFt,
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		ExpiresAt:    r.ExpiresAt,
	}
}

// UpdateRequirementRequest is the HTTP request body for PATCH
// /requirements/{requirementID}. Absent fields stay unchanged.
type UpdateRequirementRequest struct {
	City         *string    `json:"city"`
	State        *string    `json:"state"`
	Locality     *string    `json:"locality"`
	Pincode      *string    `json:"pincode"`
	MinBudget    *float64   `json:"min_budget"`
	MaxBudget    *float64   `json:"max_budget"`
	PropertyType *string    `json:"property_type"`
	MinAreaSqFt  *float64   `json:"min_area_sqft"`
	Bedrooms     *int       `json:"bedrooms"`
	Bathrooms    *int       `json:"bathrooms"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// Validate rejects values that can never be legal; cross-field rules run in
// the service where the stored requirement is at hand.
func (r *UpdateRequirementRequest) Validate() error {
	if r.City != nil && strings.TrimSpace(*r.City) == "" {
		return dErrors.New(dErrors.CodeValidation, "city must not be blank")
	}
	if r.MaxBudget != nil && *r.MaxBudget <= 0 {
		return dErrors.New(dErrors.CodeValidation, "max_budget must be positive")
	}
	return nil
}

// Input converts the request into the service input.
func (r *UpdateRequirementRequest) Input() service.UpdateRequirementInput {
	return service.UpdateRequirementInput{
		City:         r.City,
		State:        r.State,
		Locality:     r.Locality,
		Pincode:      r.Pincode,
		MinBudget:    r.MinBudget,
		MaxBudget:    r.MaxBudget,
		PropertyType: r.PropertyType,
		MinAreaSqFt:  r.MinAreaSqFt,
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		ExpiresAt:    r.ExpiresAt,
	}
}
