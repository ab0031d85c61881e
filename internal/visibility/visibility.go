// Package visibility projects interest expressions into role-specific
// views. The projection is pure: callers load the expression, the session,
// and the contact cards; this package decides what each viewer may see.
// The rule is fail-closed: without an active session granting a direction,
// the contact on that side is omitted entirely.
package visibility

import (
	"time"

	"propbridge/internal/directory"
	"propbridge/internal/interest/models"
	id "propbridge/pkg/domain"
)

// ContactCard is the disclosed slice of a directory contact.
type ContactCard struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

func cardFrom(c *directory.Contact) *ContactCard {
	if c == nil {
		return nil
	}
	return &ContactCard{Name: c.Name, Phone: c.Phone, Email: c.Email}
}

// BuyerView is what the owning buyer sees about their own interest.
type BuyerView struct {
	ID            id.InterestID           `json:"id"`
	PropertyID    id.PropertyID           `json:"property_id"`
	Type          models.InterestType     `json:"type"`
	Message       string                  `json:"message,omitempty"`
	Priority      models.Priority         `json:"priority"`
	Status        models.ConnectionStatus `json:"status"`
	SellerContact *ContactCard            `json:"seller_contact,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// ForBuyer builds the buyer's view. The seller contact appears only when
// the connection is approved and the session grants that direction.
func ForBuyer(expr *models.InterestExpression, session *models.CommunicationSession, sellerContact *directory.Contact) BuyerView {
	view := BuyerView{
		ID:         expr.ID,
		PropertyID: expr.PropertyID,
		Type:       expr.Type,
		Message:    expr.Message,
		Priority:   expr.Priority,
		Status:     expr.Status,
		CreatedAt:  expr.CreatedAt,
		UpdatedAt:  expr.UpdatedAt,
	}
	if expr.ContactRevealed && sessionGrants(session, directionSellerToBuyer) {
		view.SellerContact = cardFrom(sellerContact)
	}
	return view
}

// SellerView is what the listing's seller sees. The buyer stays anonymous:
// no buyer ID, no message, only aggregate facts, unless the session grants
// the buyer's contact.
type SellerView struct {
	ID           id.InterestID           `json:"id"`
	PropertyID   id.PropertyID           `json:"property_id"`
	Type         models.InterestType     `json:"type"`
	Status       models.ConnectionStatus `json:"status"`
	BuyerContact *ContactCard            `json:"buyer_contact,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
}

// ForSeller builds the seller's anonymized view. The disclosure flag on
// the expression tracks the seller-reveal grant only, so this direction is
// governed by the session grant alone.
func ForSeller(expr *models.InterestExpression, session *models.CommunicationSession, buyerContact *directory.Contact) SellerView {
	view := SellerView{
		ID:         expr.ID,
		PropertyID: expr.PropertyID,
		Type:       expr.Type,
		Status:     expr.Status,
		CreatedAt:  expr.CreatedAt,
	}
	if sessionGrants(session, directionBuyerToSeller) {
		view.BuyerContact = cardFrom(buyerContact)
	}
	return view
}

// AgentView carries the full expression plus both contact cards; agents
// mediate and therefore see everything.
type AgentView struct {
	Interest      *models.InterestExpression `json:"interest"`
	BuyerContact  *ContactCard               `json:"buyer_contact,omitempty"`
	SellerContact *ContactCard               `json:"seller_contact,omitempty"`
}

func ForAgent(expr *models.InterestExpression, buyerContact, sellerContact *directory.Contact) AgentView {
	return AgentView{
		Interest:      expr,
		BuyerContact:  cardFrom(buyerContact),
		SellerContact: cardFrom(sellerContact),
	}
}

type direction int

const (
	directionSellerToBuyer direction = iota
	directionBuyerToSeller
)

func sessionGrants(session *models.CommunicationSession, dir direction) bool {
	if session == nil || !session.IsActive() {
		return false
	}
	switch dir {
	case directionSellerToBuyer:
		return session.BuyerCanSeeSellerContact
	case directionBuyerToSeller:
		return session.SellerCanSeeBuyerContact
	}
	return false
}
