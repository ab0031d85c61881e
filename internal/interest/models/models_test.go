package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "propbridge/pkg/domain"
	dErrors "propbridge/pkg/domain-errors"
)

func newExpression(t *testing.T) *InterestExpression {
	t.Helper()
	e, err := NewInterestExpression(id.NewUserID(), id.NewPropertyID(), id.NewUserID(), TypeInquiry, "is this still available?")
	require.NoError(t, err)
	return e
}

func TestNewInterestExpression(t *testing.T) {
	t.Run("starts pending with contact hidden", func(t *testing.T) {
		e := newExpression(t)
		assert.Equal(t, StatusPending, e.Status)
		assert.Equal(t, PriorityNormal, e.Priority)
		assert.False(t, e.ContactRevealed)
		assert.Equal(t, 1, e.Version)
	})

	t.Run("self-interest rejected", func(t *testing.T) {
		owner := id.NewUserID()
		_, err := NewInterestExpression(owner, id.NewPropertyID(), owner, TypeInquiry, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := NewInterestExpression(id.NewUserID(), id.NewPropertyID(), id.NewUserID(), InterestType("call_me"), "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestStateMachine(t *testing.T) {
	t.Run("full approval path", func(t *testing.T) {
		e := newExpression(t)
		now := time.Now()

		for _, event := range []Event{EventStartReview, EventBuyerSerious, EventSellerWilling} {
			require.NoError(t, e.Apply(event, now))
			assert.False(t, e.ContactRevealed, "contact must stay hidden before approval, got revealed at %s", e.Status)
		}
		assert.Equal(t, StatusApproved, e.Status)

		require.NoError(t, e.Approve(now, true))
		assert.Equal(t, StatusConnected, e.Status)
		assert.True(t, e.ContactRevealed)
		assert.NotNil(t, e.ContactRevealedAt)
	})

	t.Run("approval without seller reveal keeps contact hidden", func(t *testing.T) {
		e := newExpression(t)
		now := time.Now()
		for _, event := range []Event{EventStartReview, EventBuyerSerious, EventSellerWilling} {
			require.NoError(t, e.Apply(event, now))
		}

		require.NoError(t, e.Approve(now, false))
		assert.Equal(t, StatusConnected, e.Status)
		assert.False(t, e.ContactRevealed)
		assert.Nil(t, e.ContactRevealedAt)
	})

	t.Run("seriousness verdict lands directly on a pending expression", func(t *testing.T) {
		e := newExpression(t)
		require.NoError(t, e.Apply(EventBuyerSerious, time.Now()))
		assert.Equal(t, StatusSellerChecking, e.Status)
	})

	t.Run("stage skipping is illegal", func(t *testing.T) {
		skips := []struct {
			from  ConnectionStatus
			event Event
		}{
			{StatusPending, EventSellerWilling},
			{StatusPending, EventConnectionApproval},
			{StatusCSReviewing, EventSellerWilling},
			{StatusCSReviewing, EventConnectionApproval},
			{StatusSellerChecking, EventConnectionApproval},
			{StatusApproved, EventBuyerSerious},
		}
		for _, tc := range skips {
			_, err := NextStatus(tc.from, tc.event)
			require.Error(t, err, "%s from %s", tc.event, tc.from)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
		}
	})

	t.Run("terminal states accept nothing", func(t *testing.T) {
		for _, status := range []ConnectionStatus{StatusConnected, StatusRejected, StatusWithdrawn} {
			assert.True(t, status.IsTerminal())
			for _, event := range []Event{EventStartReview, EventBuyerSerious, EventSellerWilling, EventConnectionApproval, EventReject, EventWithdraw} {
				_, err := NextStatus(status, event)
				assert.Error(t, err, "%s from %s", event, status)
			}
		}
	})

	t.Run("reject is legal from every live stage", func(t *testing.T) {
		for _, status := range []ConnectionStatus{StatusPending, StatusCSReviewing, StatusSellerChecking, StatusApproved} {
			next, err := NextStatus(status, EventReject)
			require.NoError(t, err)
			assert.Equal(t, StatusRejected, next)
		}
	})

	t.Run("withdraw stamps the expression", func(t *testing.T) {
		e := newExpression(t)
		now := time.Now()
		require.NoError(t, e.Apply(EventWithdraw, now))
		assert.Equal(t, StatusWithdrawn, e.Status)
		require.NotNil(t, e.WithdrawnAt)
		assert.False(t, e.ContactRevealed)
	})
}

func TestPriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, PriorityNormal.Upgraded())
	assert.Equal(t, PriorityHigh, PriorityHigh.Upgraded())
	assert.Equal(t, PriorityUrgent, PriorityUrgent.Upgraded(), "urgent is never downgraded")
	assert.Greater(t, PriorityUrgent.Rank(), PriorityHigh.Rank())
	assert.Greater(t, PriorityHigh.Rank(), PriorityNormal.Rank())
}
