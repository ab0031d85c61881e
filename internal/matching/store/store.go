// Package store persists requirements and matches.
package store

import (
	"context"
	"time"

	"propbridge/internal/matching/models"
	id "propbridge/pkg/domain"
)

// RequirementStore persists buyer requirements.
// Implementations return sentinel.ErrNotFound for missing rows.
type RequirementStore interface {
	Create(ctx context.Context, req *models.Requirement) error
	FindByID(ctx context.Context, requirementID id.RequirementID) (*models.Requirement, error)
	FindByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.Requirement, error)
	// FindActiveByCity returns matchable requirements in a city,
	// case-insensitive, expired ones excluded.
	FindActiveByCity(ctx context.Context, city string, now time.Time) ([]*models.Requirement, error)
	Update(ctx context.Context, req *models.Requirement) error
	// RecordMatch bumps match_count and last_matched_at atomically.
	RecordMatch(ctx context.Context, requirementID id.RequirementID, at time.Time) error
}

// NotifyChannel names a match notification flag column.
type NotifyChannel string

const (
	NotifyBuyer  NotifyChannel = "buyer"
	NotifySeller NotifyChannel = "seller"
	NotifyCS     NotifyChannel = "cs"
)

// MatchStore persists qualified matches. Create returns
// sentinel.ErrConflict when the (requirement, property) pair already has a
// match; everything else returns sentinel.ErrNotFound for missing rows.
type MatchStore interface {
	Create(ctx context.Context, m *models.Match) error
	FindByID(ctx context.Context, matchID id.MatchID) (*models.Match, error)
	FindByRequirement(ctx context.Context, requirementID id.RequirementID) ([]*models.Match, error)
	FindByProperty(ctx context.Context, propertyID id.PropertyID) ([]*models.Match, error)
	// FindUnreviewed feeds the agent work queue, oldest first.
	FindUnreviewed(ctx context.Context, limit int) ([]*models.Match, error)
	MarkNotified(ctx context.Context, matchID id.MatchID, channel NotifyChannel) error
	SetBuyerInterested(ctx context.Context, matchID id.MatchID, at time.Time) error
	SetCSReviewed(ctx context.Context, matchID id.MatchID, at time.Time) error
}
