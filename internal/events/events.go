// Package events publishes match-found events for downstream consumers
// (analytics, CRM sync). Events are written to an outbox row in the same
// transaction as the match itself and shipped to Kafka by a worker, so a
// broker outage never loses or blocks a match.
package events

import (
	"context"
	"sync"
	"time"

	id "propbridge/pkg/domain"
)

// MatchFound is emitted once per created match.
type MatchFound struct {
	MatchID          id.MatchID       `json:"match_id"`
	RequirementID    id.RequirementID `json:"requirement_id"`
	PropertyID       id.PropertyID    `json:"property_id"`
	BuyerID          id.UserID        `json:"buyer_id"`
	SellerID         id.UserID        `json:"seller_id"`
	City             string           `json:"city"`
	LocationClass    string           `json:"location_class"`
	BudgetOverlapPct float64          `json:"budget_overlap_pct"`
	Score            float64          `json:"score"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Publisher records a match-found event. Implementations must be safe to
// call inside the match-creation transaction.
type Publisher interface {
	PublishMatchFound(ctx context.Context, event MatchFound) error
}

// MemoryPublisher collects events for unit tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []MatchFound
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) PublishMatchFound(_ context.Context, event MatchFound) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a snapshot of published events.
func (p *MemoryPublisher) Events() []MatchFound {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]MatchFound(nil), p.events...)
}
