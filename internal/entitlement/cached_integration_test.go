//go:build integration

package entitlement_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"propbridge/internal/entitlement"
	id "propbridge/pkg/domain"
	"propbridge/pkg/testutil/containers"
)

func TestCachedServiceReadThrough(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	redis := containers.NewRedisContainer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	inner := entitlement.NewInMemoryService()
	cached := entitlement.NewCached(inner, redis.Client, time.Minute, logger)

	buyerID := id.NewUserID()
	inner.SetPremiumBuyer(buyerID, true)

	premium, err := cached.HasPremiumBuyer(ctx, buyerID)
	require.NoError(t, err)
	require.True(t, premium)

	// The cached answer survives a flip in the backing service until the
	// key expires; a short TTL bounds the staleness window.
	inner.SetPremiumBuyer(buyerID, false)
	premium, err = cached.HasPremiumBuyer(ctx, buyerID)
	require.NoError(t, err)
	require.True(t, premium)

	require.NoError(t, redis.FlushAll(ctx))
	premium, err = cached.HasPremiumBuyer(ctx, buyerID)
	require.NoError(t, err)
	require.False(t, premium)
}

func TestCachedServiceCachesNegativeAnswers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	redis := containers.NewRedisContainer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	inner := entitlement.NewInMemoryService()
	cached := entitlement.NewCached(inner, redis.Client, time.Minute, logger)

	sellerID := id.NewUserID()
	premium, err := cached.HasPremiumSeller(ctx, sellerID)
	require.NoError(t, err)
	require.False(t, premium)

	inner.SetPremiumSeller(sellerID, true)
	premium, err = cached.HasPremiumSeller(ctx, sellerID)
	require.NoError(t, err)
	require.False(t, premium, "negative answer is cached until TTL")
}
