//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"propbridge/internal/matching/models"
	"propbridge/internal/matching/store"
	id "propbridge/pkg/domain"
	"propbridge/pkg/platform/sentinel"
	"propbridge/pkg/testutil/containers"
)

type PostgresMatchingStoreSuite struct {
	suite.Suite
	postgres     *containers.PostgresContainer
	requirements *store.PostgresRequirementStore
	matches      *store.PostgresMatchStore
}

func TestPostgresMatchingStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresMatchingStoreSuite))
}

func (s *PostgresMatchingStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.requirements = store.NewPostgresRequirementStore(s.postgres.DB)
	s.matches = store.NewPostgresMatchStore(s.postgres.DB)
}

func (s *PostgresMatchingStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "matches", "requirements")
	s.Require().NoError(err)
}

func (s *PostgresMatchingStoreSuite) newRequirement(city string) *models.Requirement {
	req, err := models.NewRequirement(id.NewUserID(), city, "MH", nil, 5_000_000, models.BudgetSale)
	s.Require().NoError(err)
	return req
}

func (s *PostgresMatchingStoreSuite) TestRequirementRoundTrip() {
	ctx := context.Background()

	req := s.newRequirement("Pune")
	req.Locality = "Baner"
	minBudget := 4_000_000.0
	req.MinBudget = &minBudget

	s.Require().NoError(s.requirements.Create(ctx, req))

	loaded, err := s.requirements.FindByID(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(req.City, loaded.City)
	s.Equal(req.Locality, loaded.Locality)
	s.Require().NotNil(loaded.MinBudget)
	s.InDelta(minBudget, *loaded.MinBudget, 0.01)
	s.Equal(models.RequirementActive, loaded.Status)
}

func (s *PostgresMatchingStoreSuite) TestFindActiveByCityFiltersStatusAndExpiry() {
	ctx := context.Background()
	now := time.Now()

	active := s.newRequirement("Pune")
	cancelled := s.newRequirement("Pune")
	cancelled.Status = models.RequirementCancelled
	expired := s.newRequirement("Pune")
	past := now.Add(-time.Hour)
	expired.ExpiresAt = &past
	otherCity := s.newRequirement("Mumbai")

	for _, req := range []*models.Requirement{active, cancelled, expired, otherCity} {
		s.Require().NoError(s.requirements.Create(ctx, req))
	}

	found, err := s.requirements.FindActiveByCity(ctx, "pune", now)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(active.ID, found[0].ID)
}

func (s *PostgresMatchingStoreSuite) TestRecordMatchIncrementsCounter() {
	ctx := context.Background()

	req := s.newRequirement("Pune")
	s.Require().NoError(s.requirements.Create(ctx, req))

	at := time.Now()
	s.Require().NoError(s.requirements.RecordMatch(ctx, req.ID, at))
	s.Require().NoError(s.requirements.RecordMatch(ctx, req.ID, at))

	loaded, err := s.requirements.FindByID(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(2, loaded.MatchCount)
	s.NotNil(loaded.LastMatchedAt)
}

func (s *PostgresMatchingStoreSuite) TestDuplicateMatchPairConflicts() {
	ctx := context.Background()

	req := s.newRequirement("Pune")
	s.Require().NoError(s.requirements.Create(ctx, req))

	propertyID := id.NewPropertyID()
	first := &models.Match{
		ID:               id.NewMatchID(),
		RequirementID:    req.ID,
		PropertyID:       propertyID,
		BuyerID:          req.BuyerID,
		SellerID:         id.NewUserID(),
		LocationClass:    models.LocationCity,
		BudgetOverlapPct: 92.5,
		Score:            86.25,
		Reasons:          []string{"city match", "budget overlap 92%"},
		CreatedAt:        time.Now(),
	}
	s.Require().NoError(s.matches.Create(ctx, first))

	dup := *first
	dup.ID = id.NewMatchID()
	err := s.matches.Create(ctx, &dup)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	// The original row survives untouched.
	loaded, err := s.matches.FindByID(ctx, first.ID)
	s.Require().NoError(err)
	s.Equal([]string{"city match", "budget overlap 92%"}, loaded.Reasons)
}

func (s *PostgresMatchingStoreSuite) TestNotificationFlagsAreIndependent() {
	ctx := context.Background()

	req := s.newRequirement("Pune")
	s.Require().NoError(s.requirements.Create(ctx, req))

	m := &models.Match{
		ID:            id.NewMatchID(),
		RequirementID: req.ID,
		PropertyID:    id.NewPropertyID(),
		BuyerID:       req.BuyerID,
		SellerID:      id.NewUserID(),
		LocationClass: models.LocationLocality,
		Score:         95,
		Reasons:       []string{"locality match"},
		CreatedAt:     time.Now(),
	}
	s.Require().NoError(s.matches.Create(ctx, m))

	s.Require().NoError(s.matches.MarkNotified(ctx, m.ID, store.NotifyBuyer))
	s.Require().NoError(s.matches.MarkNotified(ctx, m.ID, store.NotifyCS))

	loaded, err := s.matches.FindByID(ctx, m.ID)
	s.Require().NoError(err)
	s.True(loaded.BuyerNotified)
	s.False(loaded.SellerNotified)
	s.True(loaded.CSNotified)
}

func (s *PostgresMatchingStoreSuite) TestFindUnreviewedExcludesReviewed() {
	ctx := context.Background()

	req := s.newRequirement("Pune")
	s.Require().NoError(s.requirements.Create(ctx, req))

	reviewed := &models.Match{
		ID: id.NewMatchID(), RequirementID: req.ID, PropertyID: id.NewPropertyID(),
		BuyerID: req.BuyerID, SellerID: id.NewUserID(),
		LocationClass: models.LocationCity, Reasons: []string{"city match"},
		CreatedAt: time.Now(),
	}
	pending := &models.Match{
		ID: id.NewMatchID(), RequirementID: req.ID, PropertyID: id.NewPropertyID(),
		BuyerID: req.BuyerID, SellerID: id.NewUserID(),
		LocationClass: models.LocationCity, Reasons: []string{"city match"},
		CreatedAt: time.Now(),
	}
	s.Require().NoError(s.matches.Create(ctx, reviewed))
	s.Require().NoError(s.matches.Create(ctx, pending))
	s.Require().NoError(s.matches.SetCSReviewed(ctx, reviewed.ID, time.Now()))

	queue, err := s.matches.FindUnreviewed(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(queue, 1)
	s.Equal(pending.ID, queue[0].ID)
}
