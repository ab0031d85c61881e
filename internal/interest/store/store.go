// Package store persists interest expressions, mediation actions, and
// communication sessions.
package store

import (
	"context"
	"time"

	"propbridge/internal/interest/models"
	id "propbridge/pkg/domain"
)

// InterestStore persists interest expressions.
//
// Create returns sentinel.ErrConflict when the buyer already holds a
// non-withdrawn expression for the property. UpdateWithVersion returns
// sentinel.ErrStale when the stored version moved past expectedVersion;
// callers reload and retry or surface the conflict.
type InterestStore interface {
	Create(ctx context.Context, e *models.InterestExpression) error
	FindByID(ctx context.Context, interestID id.InterestID) (*models.InterestExpression, error)
	FindByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.InterestExpression, error)
	FindByProperty(ctx context.Context, propertyID id.PropertyID) ([]*models.InterestExpression, error)
	// FindByStatus feeds the mediation queue: highest priority first,
	// oldest first within a priority.
	FindByStatus(ctx context.Context, status models.ConnectionStatus, limit int) ([]*models.InterestExpression, error)
	UpdateWithVersion(ctx context.Context, e *models.InterestExpression, expectedVersion int) error
}

// MediationStore is the append-only mediation audit trail.
type MediationStore interface {
	Append(ctx context.Context, action *models.MediationAction) error
	ListByInterest(ctx context.Context, interestID id.InterestID) ([]*models.MediationAction, error)
}

// SessionStore persists communication sessions. Create returns
// sentinel.ErrConflict when the interest already has a session; exactly one
// session per connected interest.
type SessionStore interface {
	Create(ctx context.Context, s *models.CommunicationSession) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.CommunicationSession, error)
	FindByInterest(ctx context.Context, interestID id.InterestID) (*models.CommunicationSession, error)
	Revoke(ctx context.Context, sessionID id.SessionID, at time.Time) error
}
