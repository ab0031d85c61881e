package entitlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	id "propbridge/pkg/domain"
)

// CachedService decorates a Service with a Redis read-through cache.
// Entitlement checks sit on the interest-expression hot path; a short TTL
// keeps premium flips visible within minutes while absorbing repeat lookups.
// Cache errors fall through to the wrapped service.
type CachedService struct {
	next   Service
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(next Service, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedService {
	return &CachedService{next: next, client: client, ttl: ttl, logger: logger}
}

func (s *CachedService) HasPremiumBuyer(ctx context.Context, userID id.UserID) (bool, error) {
	return s.lookup(ctx, "entitlement:buyer:"+userID.String(), func() (bool, error) {
		return s.next.HasPremiumBuyer(ctx, userID)
	})
}

func (s *CachedService) HasPremiumSeller(ctx context.Context, userID id.UserID) (bool, error) {
	return s.lookup(ctx, "entitlement:seller:"+userID.String(), func() (bool, error) {
		return s.next.HasPremiumSeller(ctx, userID)
	})
}

func (s *CachedService) lookup(ctx context.Context, key string, fetch func() (bool, error)) (bool, error) {
	if cached, err := s.client.Get(ctx, key).Result(); err == nil {
		return cached == "1", nil
	}

	premium, err := fetch()
	if err != nil {
		return false, err
	}

	value := "0"
	if premium {
		value = "1"
	}
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "entitlement cache write failed",
			"key", key,
			"error", err,
		)
	}
	return premium, nil
}
