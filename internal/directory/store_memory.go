package directory

import (
	"context"
	"sync"

	id "propbridge/pkg/domain"
	"propbridge/pkg/platform/sentinel"
)

// InMemoryDirectory backs unit tests and local development.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	roles    map[id.UserID][]string
	contacts map[id.UserID]*Contact
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		roles:    make(map[id.UserID][]string),
		contacts: make(map[id.UserID]*Contact),
	}
}

// PutUser seeds a user with roles and contact details.
func (d *InMemoryDirectory) PutUser(userID id.UserID, contact Contact, roles ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	contact.UserID = userID
	d.roles[userID] = append([]string(nil), roles...)
	d.contacts[userID] = &contact
}

func (d *InMemoryDirectory) GetRoles(_ context.Context, userID id.UserID) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	roles, ok := d.roles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]string(nil), roles...), nil
}

func (d *InMemoryDirectory) FindUsersByRole(_ context.Context, role string) ([]id.UserID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var users []id.UserID
	for userID, roles := range d.roles {
		for _, r := range roles {
			if r == role {
				users = append(users, userID)
				break
			}
		}
	}
	return users, nil
}

func (d *InMemoryDirectory) GetContact(_ context.Context, userID id.UserID) (*Contact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	contact, ok := d.contacts[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *contact
	return &clone, nil
}
