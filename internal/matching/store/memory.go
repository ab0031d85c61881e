package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"propbridge/internal/matching/models"
	id "propbridge/pkg/domain"
	"propbridge/pkg/platform/sentinel"
)

// InMemoryRequirementStore backs unit tests and local development.
type InMemoryRequirementStore struct {
	mu           sync.RWMutex
	requirements map[id.RequirementID]*models.Requirement
}

func NewInMemoryRequirementStore() *InMemoryRequirementStore {
	return &InMemoryRequirementStore{requirements: make(map[id.RequirementID]*models.Requirement)}
}

func (s *InMemoryRequirementStore) Create(_ context.Context, req *models.Requirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requirements[req.ID]; ok {
		return sentinel.ErrConflict
	}
	clone := *req
	s.requirements[req.ID] = &clone
	return nil
}

func (s *InMemoryRequirementStore) FindByID(_ context.Context, requirementID id.RequirementID) (*models.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requirements[requirementID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (s *InMemoryRequirementStore) FindByBuyer(_ context.Context, buyerID id.UserID) ([]*models.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Requirement
	for _, req := range s.requirements {
		if req.BuyerID == buyerID {
			clone := *req
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *InMemoryRequirementStore) FindActiveByCity(_ context.Context, city string, now time.Time) ([]*models.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Requirement
	for _, req := range s.requirements {
		if !req.IsMatchable(now) || !strings.EqualFold(req.City, city) {
			continue
		}
		clone := *req
		result = append(result, &clone)
	}
	return result, nil
}

func (s *InMemoryRequirementStore) Update(_ context.Context, req *models.Requirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requirements[req.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *req
	s.requirements[req.ID] = &clone
	return nil
}

func (s *InMemoryRequirementStore) RecordMatch(_ context.Context, requirementID id.RequirementID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requirements[requirementID]
	if !ok {
		return sentinel.ErrNotFound
	}
	req.MatchCount++
	req.LastMatchedAt = &at
	return nil
}

// InMemoryMatchStore backs unit tests and local development.
type InMemoryMatchStore struct {
	mu      sync.RWMutex
	matches map[id.MatchID]*models.Match
	byPair  map[pairKey]id.MatchID
}

type pairKey struct {
	requirementID id.RequirementID
	propertyID    id.PropertyID
}

func NewInMemoryMatchStore() *InMemoryMatchStore {
	return &InMemoryMatchStore{
		matches: make(map[id.MatchID]*models.Match),
		byPair:  make(map[pairKey]id.MatchID),
	}
}

func (s *InMemoryMatchStore) Create(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{m.RequirementID, m.PropertyID}
	if _, ok := s.byPair[key]; ok {
		return sentinel.ErrConflict
	}
	clone := *m
	s.matches[m.ID] = &clone
	s.byPair[key] = m.ID
	return nil
}

func (s *InMemoryMatchStore) FindByID(_ context.Context, matchID id.MatchID) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[matchID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *m
	return &clone, nil
}

func (s *InMemoryMatchStore) FindByRequirement(_ context.Context, requirementID id.RequirementID) ([]*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(m *models.Match) bool { return m.RequirementID == requirementID }), nil
}

func (s *InMemoryMatchStore) FindByProperty(_ context.Context, propertyID id.PropertyID) ([]*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(m *models.Match) bool { return m.PropertyID == propertyID }), nil
}

func (s *InMemoryMatchStore) FindUnreviewed(_ context.Context, limit int) ([]*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := s.collect(func(m *models.Match) bool { return !m.CSReviewed })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *InMemoryMatchStore) collect(keep func(*models.Match) bool) []*models.Match {
	var result []*models.Match
	for _, m := range s.matches {
		if keep(m) {
			clone := *m
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

func (s *InMemoryMatchStore) MarkNotified(_ context.Context, matchID id.MatchID, channel NotifyChannel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return sentinel.ErrNotFound
	}
	switch channel {
	case NotifyBuyer:
		m.BuyerNotified = true
	case NotifySeller:
		m.SellerNotified = true
	case NotifyCS:
		m.CSNotified = true
	}
	return nil
}

func (s *InMemoryMatchStore) SetBuyerInterested(_ context.Context, matchID id.MatchID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return sentinel.ErrNotFound
	}
	m.BuyerInterested = true
	m.BuyerInterestedAt = &at
	return nil
}

func (s *InMemoryMatchStore) SetCSReviewed(_ context.Context, matchID id.MatchID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return sentinel.ErrNotFound
	}
	m.CSReviewed = true
	m.CSReviewedAt = &at
	return nil
}
