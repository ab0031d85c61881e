// Package directory wraps the identity/role service the core depends on for
// authorization checks, agent fan-out, and the contact details the
// visibility filter guards.
package directory

import (
	"context"

	id "propbridge/pkg/domain"
)

// Role codes as issued by the identity service.
const (
	RoleBuyer         = "buyer"
	RoleSeller        = "seller"
	RoleAgent         = "agent"
	RoleAdministrator = "administrator"
)

// Contact is the personal contact surface guarded by the visibility filter.
type Contact struct {
	UserID id.UserID `json:"user_id"`
	Name   string    `json:"name"`
	Phone  string    `json:"phone,omitempty"`
	Email  string    `json:"email,omitempty"`
}

// Directory is the identity/role collaborator contract.
type Directory interface {
	// GetRoles returns the role codes held by a user.
	GetRoles(ctx context.Context, userID id.UserID) ([]string, error)
	// FindUsersByRole returns the IDs of all users holding a role.
	FindUsersByRole(ctx context.Context, role string) ([]id.UserID, error)
	// GetContact returns a user's contact card or sentinel.ErrNotFound.
	GetContact(ctx context.Context, userID id.UserID) (*Contact, error)
}

// IsIntermediary reports whether the role set carries mediation capability.
func IsIntermediary(roles []string) bool {
	for _, role := range roles {
		if role == RoleAgent || role == RoleAdministrator {
			return true
		}
	}
	return false
}
