package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"propbridge/internal/interest/models"
	id "propbridge/pkg/domain"
	"propbridge/pkg/platform/sentinel"
)

// InMemoryInterestStore backs unit tests and local development.
type InMemoryInterestStore struct {
	mu        sync.RWMutex
	interests map[id.InterestID]*models.InterestExpression
}

func NewInMemoryInterestStore() *InMemoryInterestStore {
	return &InMemoryInterestStore{interests: make(map[id.InterestID]*models.InterestExpression)}
}

func (s *InMemoryInterestStore) Create(_ context.Context, e *models.InterestExpression) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.interests {
		if existing.BuyerID == e.BuyerID && existing.PropertyID == e.PropertyID &&
			existing.Status != models.StatusWithdrawn {
			return sentinel.ErrConflict
		}
	}
	clone := *e
	s.interests[e.ID] = &clone
	return nil
}

func (s *InMemoryInterestStore) FindByID(_ context.Context, interestID id.InterestID) (*models.InterestExpression, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.interests[interestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (s *InMemoryInterestStore) FindByBuyer(_ context.Context, buyerID id.UserID) ([]*models.InterestExpression, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(e *models.InterestExpression) bool { return e.BuyerID == buyerID }, 0), nil
}

func (s *InMemoryInterestStore) FindByProperty(_ context.Context, propertyID id.PropertyID) ([]*models.InterestExpression, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(e *models.InterestExpression) bool { return e.PropertyID == propertyID }, 0), nil
}

func (s *InMemoryInterestStore) FindByStatus(_ context.Context, status models.ConnectionStatus, limit int) ([]*models.InterestExpression, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := s.collect(func(e *models.InterestExpression) bool { return e.Status == status }, 0)
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Priority.Rank() != result[j].Priority.Rank() {
			return result[i].Priority.Rank() > result[j].Priority.Rank()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *InMemoryInterestStore) collect(keep func(*models.InterestExpression) bool, limit int) []*models.InterestExpression {
	var result []*models.InterestExpression
	for _, e := range s.interests {
		if keep(e) {
			clone := *e
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (s *InMemoryInterestStore) UpdateWithVersion(_ context.Context, e *models.InterestExpression, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.interests[e.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != expectedVersion {
		return sentinel.ErrStale
	}
	clone := *e
	clone.Version = expectedVersion + 1
	s.interests[e.ID] = &clone
	e.Version = clone.Version
	return nil
}

// InMemoryMediationStore backs unit tests and local development.
type InMemoryMediationStore struct {
	mu      sync.RWMutex
	actions []*models.MediationAction
}

func NewInMemoryMediationStore() *InMemoryMediationStore {
	return &InMemoryMediationStore{}
}

func (s *InMemoryMediationStore) Append(_ context.Context, action *models.MediationAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *action
	s.actions = append(s.actions, &clone)
	return nil
}

func (s *InMemoryMediationStore) ListByInterest(_ context.Context, interestID id.InterestID) ([]*models.MediationAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.MediationAction
	for _, a := range s.actions {
		if a.InterestID == interestID {
			clone := *a
			result = append(result, &clone)
		}
	}
	return result, nil
}

// InMemorySessionStore backs unit tests and local development.
type InMemorySessionStore struct {
	mu         sync.RWMutex
	sessions   map[id.SessionID]*models.CommunicationSession
	byInterest map[id.InterestID]id.SessionID
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions:   make(map[id.SessionID]*models.CommunicationSession),
		byInterest: make(map[id.InterestID]id.SessionID),
	}
}

func (s *InMemorySessionStore) Create(_ context.Context, session *models.CommunicationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byInterest[session.InterestID]; ok {
		return sentinel.ErrConflict
	}
	clone := *session
	s.sessions[session.ID] = &clone
	s.byInterest[session.InterestID] = session.ID
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.CommunicationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *session
	return &clone, nil
}

func (s *InMemorySessionStore) FindByInterest(_ context.Context, interestID id.InterestID) (*models.CommunicationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.byInterest[interestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *s.sessions[sessionID]
	return &clone, nil
}

func (s *InMemorySessionStore) Revoke(_ context.Context, sessionID id.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	session.RevokedAt = &at
	return nil
}
