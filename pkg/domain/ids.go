// Package domain defines the typed identifiers shared across contexts.
//
// Each ID wraps uuid.UUID in a distinct type so a RequirementID can never be
// handed to a function expecting a PropertyID. ParseXxxID enforces the
// invariant that IDs are valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "propbridge/pkg/domain-errors"
)

type (
	// UserID identifies a buyer, seller, agent, or administrator.
	UserID uuid.UUID
	// PropertyID identifies a listing owned by a seller.
	PropertyID uuid.UUID
	// RequirementID identifies a buyer's stated search criteria.
	RequirementID uuid.UUID
	// MatchID identifies a persisted (requirement, property) match.
	MatchID uuid.UUID
	// InterestID identifies a buyer's interest expression on a property.
	InterestID uuid.UUID
	// ActionID identifies an append-only mediation action record.
	ActionID uuid.UUID
	// SessionID identifies a communication session opened at approval.
	SessionID uuid.UUID
)

func parse(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

func ParseUserID(raw string) (UserID, error) {
	parsed, err := parse(raw)
	return UserID(parsed), err
}

func ParsePropertyID(raw string) (PropertyID, error) {
	parsed, err := parse(raw)
	return PropertyID(parsed), err
}

func ParseRequirementID(raw string) (RequirementID, error) {
	parsed, err := parse(raw)
	return RequirementID(parsed), err
}

func ParseMatchID(raw string) (MatchID, error) {
	parsed, err := parse(raw)
	return MatchID(parsed), err
}

func ParseInterestID(raw string) (InterestID, error) {
	parsed, err := parse(raw)
	return InterestID(parsed), err
}

func ParseSessionID(raw string) (SessionID, error) {
	parsed, err := parse(raw)
	return SessionID(parsed), err
}

func NewUserID() UserID               { return UserID(uuid.New()) }
func NewPropertyID() PropertyID       { return PropertyID(uuid.New()) }
func NewRequirementID() RequirementID { return RequirementID(uuid.New()) }
func NewMatchID() MatchID             { return MatchID(uuid.New()) }
func NewInterestID() InterestID       { return InterestID(uuid.New()) }
func NewActionID() ActionID           { return ActionID(uuid.New()) }
func NewSessionID() SessionID         { return SessionID(uuid.New()) }

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id PropertyID) String() string    { return uuid.UUID(id).String() }
func (id RequirementID) String() string { return uuid.UUID(id).String() }
func (id MatchID) String() string       { return uuid.UUID(id).String() }
func (id InterestID) String() string    { return uuid.UUID(id).String() }
func (id ActionID) String() string      { return uuid.UUID(id).String() }
func (id SessionID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id PropertyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RequirementID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id MatchID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id InterestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ActionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
