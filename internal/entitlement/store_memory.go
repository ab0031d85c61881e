package entitlement

import (
	"context"
	"sync"

	id "propbridge/pkg/domain"
)

// InMemoryService backs unit tests and local development.
type InMemoryService struct {
	mu             sync.RWMutex
	premiumBuyers  map[id.UserID]bool
	premiumSellers map[id.UserID]bool
	// Err, when set, is returned by every lookup. Tests use it to exercise
	// the degraded-collaborator path.
	Err error
}

func NewInMemoryService() *InMemoryService {
	return &InMemoryService{
		premiumBuyers:  make(map[id.UserID]bool),
		premiumSellers: make(map[id.UserID]bool),
	}
}

func (s *InMemoryService) SetPremiumBuyer(userID id.UserID, premium bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.premiumBuyers[userID] = premium
}

func (s *InMemoryService) SetPremiumSeller(userID id.UserID, premium bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.premiumSellers[userID] = premium
}

func (s *InMemoryService) HasPremiumBuyer(_ context.Context, userID id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return false, s.Err
	}
	return s.premiumBuyers[userID], nil
}

func (s *InMemoryService) HasPremiumSeller(_ context.Context, userID id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return false, s.Err
	}
	return s.premiumSellers[userID], nil
}
