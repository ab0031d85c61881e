package property

import (
	"context"
	"strings"
	"sync"

	id "propbridge/pkg/domain"
	"propbridge/pkg/platform/sentinel"
)

// InMemoryStore backs unit tests and local development.
type InMemoryStore struct {
	mu         sync.RWMutex
	properties map[id.PropertyID]*Property
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{properties: make(map[id.PropertyID]*Property)}
}

// Put inserts or replaces a listing. Test seeding helper.
func (s *InMemoryStore) Put(p *Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *p
	s.properties[p.ID] = &clone
}

func (s *InMemoryStore) FindByID(_ context.Context, propertyID id.PropertyID) (*Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[propertyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *InMemoryStore) FindLiveByCity(_ context.Context, city string, listingType ListingType) ([]*Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*Property
	for _, p := range s.properties {
		if p.Status != StatusLive {
			continue
		}
		if !strings.EqualFold(p.City, city) {
			continue
		}
		if listingType != "" && p.ListingType != listingType {
			continue
		}
		clone := *p
		result = append(result, &clone)
	}
	return result, nil
}
