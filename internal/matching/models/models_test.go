package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "propbridge/pkg/domain"
	dErrors "propbridge/pkg/domain-errors"
)

func TestNewRequirement(t *testing.T) {
	buyer := id.NewUserID()
	min := 4_500_000.0

	t.Run("valid requirement", func(t *testing.T) {
		req, err := NewRequirement(buyer, "Pune", "Maharashtra", &min, 5_500_000, BudgetSale)
		require.NoError(t, err)
		assert.False(t, req.ID.IsNil())
		assert.Equal(t, RequirementActive, req.Status)
		assert.Equal(t, 0, req.MatchCount)
		assert.True(t, req.IsMatchable(time.Now()))
	})

	t.Run("missing buyer", func(t *testing.T) {
		_, err := NewRequirement(id.UserID{}, "Pune", "Maharashtra", nil, 5_500_000, BudgetSale)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("missing city", func(t *testing.T) {
		_, err := NewRequirement(buyer, "", "Maharashtra", nil, 5_500_000, BudgetSale)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("non-positive max budget", func(t *testing.T) {
		_, err := NewRequirement(buyer, "Pune", "Maharashtra", nil, 0, BudgetSale)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("inverted budget range", func(t *testing.T) {
		high := 6_000_000.0
		_, err := NewRequirement(buyer, "Pune", "Maharashtra", &high, 5_000_000, BudgetSale)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("unknown budget type", func(t *testing.T) {
		_, err := NewRequirement(buyer, "Pune", "Maharashtra", nil, 5_000_000, BudgetType("lease"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestRequirementLifecycle(t *testing.T) {
	buyer := id.NewUserID()
	req, err := NewRequirement(buyer, "Pune", "Maharashtra", nil, 5_000_000, BudgetSale)
	require.NoError(t, err)

	t.Run("fulfilled is immutable and unmatchable", func(t *testing.T) {
		req.Status = RequirementFulfilled
		assert.False(t, req.IsMutable())
		assert.False(t, req.IsMatchable(time.Now()))
	})

	t.Run("expiry removes from pool", func(t *testing.T) {
		req.Status = RequirementActive
		past := time.Now().Add(-time.Hour)
		req.ExpiresAt = &past
		assert.False(t, req.IsMatchable(time.Now()))
		assert.True(t, req.IsMutable())
	})
}

func TestOverallScore(t *testing.T) {
	assert.InDelta(t, 100.0, OverallScore(LocationLocality, 100), 0.001)
	assert.InDelta(t, 90.0, OverallScore(LocationCity, 100), 0.001)
	assert.InDelta(t, 40.0, OverallScore(LocationCity, 0), 0.001)
	assert.InDelta(t, 0.0, OverallScore(LocationNone, 0), 0.001)
}
