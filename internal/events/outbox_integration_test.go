//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"propbridge/internal/events"
	id "propbridge/pkg/domain"
	"propbridge/pkg/testutil/containers"
)

func TestOutboxRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	postgres := containers.NewPostgresContainer(t)
	outbox := events.NewOutbox(postgres.DB)

	event := events.MatchFound{
		MatchID:       id.NewMatchID(),
		RequirementID: id.NewRequirementID(),
		PropertyID:    id.NewPropertyID(),
		BuyerID:       id.NewUserID(),
		SellerID:      id.NewUserID(),
		City:          "Pune",
		Score:         88,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, outbox.PublishMatchFound(ctx, event))

	pending, err := outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "match_found", pending[0].EventType)

	var decoded events.MatchFound
	require.NoError(t, json.Unmarshal(pending[0].Payload, &decoded))
	require.Equal(t, event.MatchID, decoded.MatchID)

	require.NoError(t, outbox.MarkPublished(ctx, pending[0].ID))
	pending, err = outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}
