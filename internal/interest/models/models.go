// Package models defines interest expressions and the mediated connection
// state machine. Contact details stay hidden until an explicit connection
// approval; every stage change is recorded as an append-only mediation
// action.
package models

import (
	"time"

	id "propbridge/pkg/domain"
	dErrors "propbridge/pkg/domain-errors"
)

// ConnectionStatus is the mediation stage of an interest expression.
type ConnectionStatus string

const (
	// StatusPending: expressed, not yet picked up by an agent.
	StatusPending ConnectionStatus = "pending"
	// StatusCSReviewing: an agent is assessing buyer seriousness.
	StatusCSReviewing ConnectionStatus = "cs_reviewing"
	// StatusSellerChecking: buyer cleared review; seller willingness is
	// being confirmed.
	StatusSellerChecking ConnectionStatus = "seller_checking"
	// StatusApproved: both sides cleared; awaiting connection approval.
	StatusApproved ConnectionStatus = "approved"
	// StatusConnected: contact details disclosed. Terminal.
	StatusConnected ConnectionStatus = "connected"
	// StatusRejected: mediation ended without a connection. Terminal.
	StatusRejected ConnectionStatus = "rejected"
	// StatusWithdrawn: the buyer pulled the interest. Terminal.
	StatusWithdrawn ConnectionStatus = "withdrawn"
)

// IsTerminal reports whether no further transitions are possible.
func (s ConnectionStatus) IsTerminal() bool {
	return s == StatusConnected || s == StatusRejected || s == StatusWithdrawn
}

// Event is a mediation state machine input.
type Event string

const (
	EventStartReview   Event = "start_review"
	EventBuyerSerious  Event = "buyer_serious"
	EventSellerWilling Event = "seller_willing"
	// EventConnectionApproval is the only event that discloses contact
	// details.
	EventConnectionApproval Event = "connection_approval"
	EventReject             Event = "reject"
	EventWithdraw           Event = "withdraw"
)

// transitions is the single source of truth for legal stage changes.
// Rejection is legal from every non-terminal stage; withdrawal too. The
// buyer-seriousness verdict may land directly on a pending expression, so
// a seriousness approval skips the explicit review pickup.
var transitions = map[ConnectionStatus]map[Event]ConnectionStatus{
	StatusPending: {
		EventStartReview:  StatusCSReviewing,
		EventBuyerSerious: StatusSellerChecking,
		EventReject:       StatusRejected,
		EventWithdraw:     StatusWithdrawn,
	},
	StatusCSReviewing: {
		EventBuyerSerious: StatusSellerChecking,
		EventReject:       StatusRejected,
		EventWithdraw:     StatusWithdrawn,
	},
	StatusSellerChecking: {
		EventSellerWilling: StatusApproved,
		EventReject:        StatusRejected,
		EventWithdraw:      StatusWithdrawn,
	},
	StatusApproved: {
		EventConnectionApproval: StatusConnected,
		EventReject:             StatusRejected,
		EventWithdraw:           StatusWithdrawn,
	},
}

// NextStatus resolves a transition, or an invalid-state error when the
// event is not legal from the current stage.
func NextStatus(from ConnectionStatus, event Event) (ConnectionStatus, error) {
	if next, ok := transitions[from][event]; ok {
		return next, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidState,
		"event "+string(event)+" is not allowed from status "+string(from))
}

// ReviewOutcome is the agent's verdict on a mediation checkpoint. Approved
// and rejected drive transitions; any other non-empty value records the
// check verbatim without moving the interest forward.
type ReviewOutcome string

const (
	OutcomeApproved ReviewOutcome = "approved"
	OutcomeRejected ReviewOutcome = "rejected"
)

// Priority orders interests in the mediation queue.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) IsValid() bool {
	return p == PriorityNormal || p == PriorityHigh || p == PriorityUrgent
}

// Upgraded applies the premium bump: normal becomes high, anything already
// at or above high keeps its level. Never downgrades.
func (p Priority) Upgraded() Priority {
	if p == PriorityNormal {
		return PriorityHigh
	}
	return p
}

// rank supports queue ordering; higher sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 2
	case PriorityHigh:
		return 1
	default:
		return 0
	}
}

// InterestType is what the buyer wants out of the contact.
type InterestType string

const (
	TypeInquiry   InterestType = "inquiry"
	TypeSiteVisit InterestType = "site_visit"
	TypeOffer     InterestType = "offer"
)

func (t InterestType) IsValid() bool {
	return t == TypeInquiry || t == TypeSiteVisit || t == TypeOffer
}

// InterestExpression is one buyer's declared interest in one property. At
// most one non-withdrawn expression per (buyer, property) pair exists at a
// time. Version guards concurrent mediation updates.
type InterestExpression struct {
	ID         id.InterestID `json:"id"`
	BuyerID    id.UserID     `json:"buyer_id"`
	PropertyID id.PropertyID `json:"property_id"`
	SellerID   id.UserID     `json:"seller_id"`
	MatchID    *id.MatchID   `json:"match_id,omitempty"`

	Type     InterestType     `json:"type"`
	Message  string           `json:"message,omitempty"`
	Priority Priority         `json:"priority"`
	Status   ConnectionStatus `json:"status"`

	BuyerReviewScore *int       `json:"buyer_review_score,omitempty"`
	BuyerReviewNotes string     `json:"buyer_review_notes,omitempty"`
	BuyerReviewedAt  *time.Time `json:"buyer_reviewed_at,omitempty"`

	SellerCheckScore *int       `json:"seller_check_score,omitempty"`
	SellerCheckNotes string     `json:"seller_check_notes,omitempty"`
	SellerCheckedAt  *time.Time `json:"seller_checked_at,omitempty"`

	RejectionReason string `json:"rejection_reason,omitempty"`

	ContactRevealed   bool          `json:"contact_revealed"`
	ContactRevealedAt *time.Time    `json:"contact_revealed_at,omitempty"`
	SessionID         *id.SessionID `json:"session_id,omitempty"`

	WithdrawnAt *time.Time `json:"withdrawn_at,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewInterestExpression creates an expression in the pending stage with
// contact details hidden.
func NewInterestExpression(buyerID id.UserID, propertyID id.PropertyID, sellerID id.UserID, interestType InterestType, message string) (*InterestExpression, error) {
	if buyerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "buyer_id is required")
	}
	if propertyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "property_id is required")
	}
	if sellerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "seller_id is required")
	}
	if buyerID == sellerID {
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot express interest in own listing")
	}
	if !interestType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown interest type")
	}
	if len(message) > 2000 {
		return nil, dErrors.New(dErrors.CodeValidation, "message must be at most 2000 characters")
	}

	now := time.Now()
	return &InterestExpression{
		ID:         id.NewInterestID(),
		BuyerID:    buyerID,
		PropertyID: propertyID,
		SellerID:   sellerID,
		Type:       interestType,
		Message:    message,
		Priority:   PriorityNormal,
		Status:     StatusPending,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Apply moves the expression through the state machine. The caller persists
// with a version check afterwards.
func (e *InterestExpression) Apply(event Event, at time.Time) error {
	next, err := NextStatus(e.Status, event)
	if err != nil {
		return err
	}
	e.Status = next
	e.UpdatedAt = at
	if event == EventWithdraw {
		e.WithdrawnAt = &at
	}
	return nil
}

// Approve applies the connection-approval event. The disclosure flag
// follows the seller-reveal grant: it flips only when the buyer is granted
// the seller's contact, never merely because the connection happened.
func (e *InterestExpression) Approve(at time.Time, revealSeller bool) error {
	if err := e.Apply(EventConnectionApproval, at); err != nil {
		return err
	}
	if revealSeller {
		e.ContactRevealed = true
		e.ContactRevealedAt = &at
	}
	return nil
}

// MediationAction is one append-only audit entry. Rows are never updated or
// deleted.
type MediationAction struct {
	ID         id.ActionID      `json:"id"`
	InterestID id.InterestID    `json:"interest_id"`
	ActorID    id.UserID        `json:"actor_id"`
	Event      Event            `json:"event"`
	Outcome    ReviewOutcome    `json:"outcome,omitempty"`
	FromStatus ConnectionStatus `json:"from_status"`
	ToStatus   ConnectionStatus `json:"to_status"`
	Notes      string           `json:"notes,omitempty"`
	Score      *int             `json:"score,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// CommunicationSession is created exactly once per approved connection and
// carries the per-direction visibility grants the contact filter enforces.
type CommunicationSession struct {
	ID         id.SessionID  `json:"id"`
	InterestID id.InterestID `json:"interest_id"`
	BuyerID    id.UserID     `json:"buyer_id"`
	SellerID   id.UserID     `json:"seller_id"`

	BuyerCanSeeSellerContact bool `json:"buyer_can_see_seller_contact"`
	SellerCanSeeBuyerContact bool `json:"seller_can_see_buyer_contact"`

	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// IsActive reports whether the session still grants visibility.
func (s *CommunicationSession) IsActive() bool { return s.RevokedAt == nil }
