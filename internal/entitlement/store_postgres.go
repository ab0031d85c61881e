package entitlement

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "propbridge/pkg/domain"
)

// PostgresService answers premium lookups from the subscriptions table.
// A subscription counts while its plan is active and unexpired.
type PostgresService struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

func (s *PostgresService) HasPremiumBuyer(ctx context.Context, userID id.UserID) (bool, error) {
	return s.hasActive(ctx, userID, "buyer")
}

func (s *PostgresService) HasPremiumSeller(ctx context.Context, userID id.UserID) (bool, error) {
	return s.hasActive(ctx, userID, "seller")
}

func (s *PostgresService) hasActive(ctx context.Context, userID id.UserID, audience string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE user_id = $1
			  AND audience = $2
			  AND status = 'active'
			  AND (expires_at IS NULL OR expires_at > $3)
		)
	`, uuid.UUID(userID), audience, time.Now()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query subscription: %w", err)
	}
	return exists, nil
}
