package directory

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	id "propbridge/pkg/domain"
)

// roleListTTL keeps agent fan-out lists fresh without hammering the identity
// service on every match.
const roleListTTL = 2 * time.Minute

// CachedDirectory decorates a Directory with a Redis cache on the role
// fan-out lookup, the hot path during match notification. Cache failures
// fall through to the wrapped directory; the cache is never authoritative.
type CachedDirectory struct {
	next   Directory
	client *redis.Client
	logger *slog.Logger
}

func NewCached(next Directory, client *redis.Client, logger *slog.Logger) *CachedDirectory {
	return &CachedDirectory{next: next, client: client, logger: logger}
}

func (d *CachedDirectory) GetRoles(ctx context.Context, userID id.UserID) ([]string, error) {
	return d.next.GetRoles(ctx, userID)
}

func (d *CachedDirectory) GetContact(ctx context.Context, userID id.UserID) (*Contact, error) {
	return d.next.GetContact(ctx, userID)
}

func (d *CachedDirectory) FindUsersByRole(ctx context.Context, role string) ([]id.UserID, error) {
	key := "directory:role:" + role
	if cached, err := d.client.Get(ctx, key).Bytes(); err == nil {
		var raw []string
		if err := json.Unmarshal(cached, &raw); err == nil {
			users := make([]id.UserID, 0, len(raw))
			ok := true
			for _, r := range raw {
				userID, err := id.ParseUserID(r)
				if err != nil {
					ok = false
					break
				}
				users = append(users, userID)
			}
			if ok {
				return users, nil
			}
		}
	}

	users, err := d.next.FindUsersByRole(ctx, role)
	if err != nil {
		return nil, err
	}

	raw := make([]string, 0, len(users))
	for _, userID := range users {
		raw = append(raw, userID.String())
	}
	if payload, err := json.Marshal(raw); err == nil {
		if err := d.client.Set(ctx, key, payload, roleListTTL).Err(); err != nil {
			d.logger.WarnContext(ctx, "role list cache write failed",
				"role", role,
				"error", err,
			)
		}
	}
	return users, nil
}
