package handler

import (
	"strings"

	"propbridge/internal/interest/models"
	"propbridge/internal/interest/service"
	id "propbridge/pkg/domain"
	dErrors "propbridge/pkg/domain-errors"
)

// ExpressInterestRequest is the HTTP request body for POST /interests.
type ExpressInterestRequest struct {
	PropertyID string `json:"property_id"`
	MatchID    string `json:"match_id,omitempty"`
	Type       string `json:"type"`
	Message    string `json:"message,omitempty"`
	Priority   string `json:"priority,omitempty"`

	parsedProperty id.PropertyID
	parsedMatch    *id.MatchID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ExpressInterestRequest) Validate() error {
	propertyID, err := id.ParsePropertyID(strings.TrimSpace(r.PropertyID))
	if err != nil {
		return err
	}
	r.parsedProperty = propertyID

	if raw := strings.TrimSpace(r.MatchID); raw != "" {
		matchID, err := id.ParseMatchID(raw)
		if err != nil {
			return err
		}
		r.parsedMatch = &matchID
	}

	if !models.InterestType(r.Type).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "type must be inquiry, site_visit, or offer")
	}
	if r.Priority != "" && !models.Priority(r.Priority).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "priority must be normal, high, or urgent")
	}
	if len(r.Message) > 2000 {
		return dErrors.New(dErrors.CodeValidation, "message must be at most 2000 characters")
	}
	return nil
}

// Input converts the request into the service input.
func (r *ExpressInterestRequest) Input() service.ExpressInterestInput {
	return service.ExpressInterestInput{
		PropertyID: r.parsedProperty,
		MatchID:    r.parsedMatch,
		Type:       models.InterestType(r.Type),
		Message:    r.Message,
		Priority:   models.Priority(r.Priority),
	}
}

// BuyerReviewRequest is the body for POST /interests/{id}/review/buyer.
// Outcomes other than approved/rejected are recorded verbatim and park the
// interest in review.
type BuyerReviewRequest struct {
	Score   int    `json:"score"`
	Notes   string `json:"notes"`
	Outcome string `json:"outcome"`
}

func (r *BuyerReviewRequest) Validate() error {
	if r.Score < 0 || r.Score > 100 {
		return dErrors.New(dErrors.CodeValidation, "score must be between 0 and 100")
	}
	if strings.TrimSpace(r.Outcome) == "" {
		return dErrors.New(dErrors.CodeValidation, "outcome is required")
	}
	return nil
}

// SellerCheckRequest is the body for POST /interests/{id}/review/seller.
type SellerCheckRequest struct {
	Score   int    `json:"score"`
	Notes   string `json:"notes"`
	Outcome string `json:"outcome"`
}

func (r *SellerCheckRequest) Validate() error {
	if r.Score < 0 || r.Score > 100 {
		return dErrors.New(dErrors.CodeValidation, "score must be between 0 and 100")
	}
	if strings.TrimSpace(r.Outcome) == "" {
		return dErrors.New(dErrors.CodeValidation, "outcome is required")
	}
	return nil
}

// ApproveRequest is the body for POST /interests/{id}/approve.
type ApproveRequest struct {
	RevealSellerToBuyer *bool `json:"reveal_seller_to_buyer,omitempty"`
	RevealBuyerToSeller *bool `json:"reveal_buyer_to_seller,omitempty"`
}

func (r *ApproveRequest) Validate() error { return nil }

// Input converts the request into the service input.
func (r *ApproveRequest) Input() service.ApproveConnectionInput {
	return service.ApproveConnectionInput{
		RevealSellerToBuyer: r.RevealSellerToBuyer,
		RevealBuyerToSeller: r.RevealBuyerToSeller,
	}
}

// RejectRequest is the body for POST /interests/{id}/reject.
type RejectRequest struct {
	Reason string `json:"reason"`
}

func (r *RejectRequest) Validate() error {
	if strings.TrimSpace(r.Reason) == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}
