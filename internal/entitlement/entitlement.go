// Package entitlement wraps the external subscription service that decides
// premium treatment. Lookups are advisory: when the service is down the
// caller must fall back to non-premium defaults, never fail the operation.
package entitlement

import (
	"context"

	id "propbridge/pkg/domain"
)

// Service is the subscription collaborator contract.
type Service interface {
	// HasPremiumBuyer reports whether the user holds an active premium
	// buyer subscription.
	HasPremiumBuyer(ctx context.Context, userID id.UserID) (bool, error)
	// HasPremiumSeller reports whether the user holds an active premium
	// seller subscription.
	HasPremiumSeller(ctx context.Context, userID id.UserID) (bool, error)
}
