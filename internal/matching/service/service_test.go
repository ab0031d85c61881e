package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"propbridge/internal/directory"
	"propbridge/internal/events"
	"propbridge/internal/matching/models"
	"propbridge/internal/matching/store"
	"propbridge/internal/notify"
	"propbridge/internal/property"
	id "propbridge/pkg/domain"
	dErrors "propbridge/pkg/domain-errors"
	"propbridge/pkg/requestcontext"
)

type MatchingServiceSuite struct {
	suite.Suite

	requirements *store.InMemoryRequirementStore
	matches      *store.InMemoryMatchStore
	properties   *property.InMemoryStore
	directory    *directory.InMemoryDirectory
	sender       *notify.RecordingSender
	publisher    *events.MemoryPublisher
	service      *Service

	buyerID  id.UserID
	sellerID id.UserID
	agentID  id.UserID
}

func TestMatchingServiceSuite(t *testing.T) {
	suite.Run(t, new(MatchingServiceSuite))
}

func (s *MatchingServiceSuite) SetupTest() {
	s.requirements = store.NewInMemoryRequirementStore()
	s.matches = store.NewInMemoryMatchStore()
	s.properties = property.NewInMemoryStore()
	s.directory = directory.NewInMemoryDirectory()
	s.sender = notify.NewRecordingSender()
	s.publisher = events.NewMemoryPublisher()

	s.buyerID = id.NewUserID()
	s.sellerID = id.NewUserID()
	s.agentID = id.NewUserID()
	s.directory.PutUser(s.buyerID, directory.Contact{Name: "Asha"}, directory.RoleBuyer)
	s.directory.PutUser(s.sellerID, directory.Contact{Name: "Ravi"}, directory.RoleSeller)
	s.directory.PutUser(s.agentID, directory.Contact{Name: "Meera"}, directory.RoleAgent)

	s.service = New(
		s.requirements, s.matches, s.properties, s.directory,
		notify.SyncDispatcher{Sender: s.sender}, s.publisher,
		nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil,
	)
	// Deferred scoring runs inline so assertions see their results.
	s.service.spawn = func(fn func()) { fn() }
}

func (s *MatchingServiceSuite) buyerCtx() context.Context {
	ctx := requestcontext.WithUserID(context.Background(), s.buyerID)
	return requestcontext.WithRoles(ctx, []string{directory.RoleBuyer})
}

func (s *MatchingServiceSuite) agentCtx() context.Context {
	ctx := requestcontext.WithUserID(context.Background(), s.agentID)
	return requestcontext.WithRoles(ctx, []string{directory.RoleAgent})
}

func (s *MatchingServiceSuite) seedListing(city, locality string, price float64) *property.Property {
	p := &property.Property{
		ID:          id.NewPropertyID(),
		SellerID:    s.sellerID,
		Title:       "2BHK in " + city,
		Status:      property.StatusLive,
		City:        city,
		Locality:    locality,
		Price:       price,
		ListingType: property.ListingSale,
	}
	s.properties.Put(p)
	return p
}

func (s *MatchingServiceSuite) createRequirement(city string, minBudget, maxBudget float64) *models.Requirement {
	req, err := s.service.CreateRequirement(s.buyerCtx(), s.buyerID, CreateRequirementInput{
		City:       city,
		State:      "Maharashtra",
		MinBudget:  &minBudget,
		MaxBudget:  maxBudget,
		BudgetType: models.BudgetSale,
	})
	s.Require().NoError(err)
	return req
}

// ==================================================
// Requirement-triggered matching
// ==================================================

func (s *MatchingServiceSuite) TestCreateRequirementMatchesLiveListings() {
	listing := s.seedListing("Pune", "Kothrud", 5_000_000)
	req := s.createRequirement("Pune", 4_500_000, 5_500_000)

	matches, err := s.service.ListMatches(s.buyerCtx(), req.ID)
	s.Require().NoError(err)
	s.Require().Len(matches, 1)

	m := matches[0]
	s.Equal(listing.ID, m.PropertyID)
	s.Equal(s.buyerID, m.BuyerID)
	s.Equal(s.sellerID, m.SellerID)
	s.Equal(models.LocationCity, m.LocationClass)
	s.InDelta(100, m.BudgetOverlapPct, 0.01)

	fresh, err := s.service.GetRequirement(s.buyerCtx(), req.ID)
	s.Require().NoError(err)
	s.Equal(1, fresh.MatchCount)
	s.NotNil(fresh.LastMatchedAt)

	s.Run("all three channels notified", func() {
		s.True(m.BuyerNotified)
		s.True(m.SellerNotified)
		s.True(m.CSNotified)
		s.Len(s.sender.SentTo(s.buyerID), 1)
		s.Len(s.sender.SentTo(s.sellerID), 1)
		s.Len(s.sender.SentTo(s.agentID), 1)
	})

	s.Run("seller notice carries no buyer identity", func() {
		notices := s.sender.SentTo(s.sellerID)
		s.Require().Len(notices, 1)
		s.Equal(notify.KindListingInterest, notices[0].Kind)
		for _, v := range notices[0].Payload {
			s.NotEqual(s.buyerID.String(), v)
		}
	})

	s.Run("match-found event published", func() {
		published := s.publisher.Events()
		s.Require().Len(published, 1)
		s.Equal(m.ID, published[0].MatchID)
		s.Equal("Pune", published[0].City)
	})
}

func (s *MatchingServiceSuite) TestMatchRequirementIsIdempotent() {
	s.seedListing("Pune", "", 5_000_000)
	req := s.createRequirement("Pune", 4_500_000, 5_500_000)

	s.Require().NoError(s.service.MatchRequirement(s.buyerCtx(), req.ID))
	s.Require().NoError(s.service.MatchRequirement(s.buyerCtx(), req.ID))

	matches, err := s.service.ListMatches(s.buyerCtx(), req.ID)
	s.Require().NoError(err)
	s.Len(matches, 1)

	fresh, err := s.requirements.FindByID(context.Background(), req.ID)
	s.Require().NoError(err)
	s.Equal(1, fresh.MatchCount)
	s.Len(s.publisher.Events(), 1)
}

func (s *MatchingServiceSuite) TestCrossCityNeverMatches() {
	s.seedListing("Mumbai", "", 5_000_000)
	req := s.createRequirement("Pune", 4_500_000, 5_500_000)

	matches, err := s.service.ListMatches(s.buyerCtx(), req.ID)
	s.Require().NoError(err)
	s.Empty(matches)
	s.Empty(s.sender.Sent())
}

func (s *MatchingServiceSuite) TestOwnListingExcluded() {
	p := s.seedListing("Pune", "", 5_000_000)
	p.SellerID = s.buyerID
	s.properties.Put(p)

	req := s.createRequirement("Pune", 4_500_000, 5_500_000)

	matches, err := s.service.ListMatches(s.buyerCtx(), req.ID)
	s.Require().NoError(err)
	s.Empty(matches)
}

func (s *MatchingServiceSuite) TestBelowThresholdNotMatched() {
	// Band [4.8M, 7.2M] covers only [4.8M, 5M] of the range: 20%.
	s.seedListing("Pune", "", 6_000_000)
	req := s.createRequirement("Pune", 4_000_000, 5_000_000)

	matches, err := s.service.ListMatches(s.buyerCtx(), req.ID)
	s.Require().NoError(err)
	s.Empty(matches)
}

// ==================================================
// Listing-triggered matching
// ==================================================

func (s *MatchingServiceSuite) TestMatchPropertyFindsActiveRequirements() {
	req := s.createRequirement("Pune", 4_500_000, 5_500_000)
	listing := s.seedListing("Pune", "", 5_000_000)

	s.Require().NoError(s.service.MatchProperty(context.Background(), listing.ID))

	matches, err := s.matches.FindByProperty(context.Background(), listing.ID)
	s.Require().NoError(err)
	s.Require().Len(matches, 1)
	s.Equal(req.ID, matches[0].RequirementID)
}

func (s *MatchingServiceSuite) TestMatchPropertySkipsCancelledRequirements() {
	req := s.createRequirement("Pune", 4_500_000, 5_500_000)
	s.Require().NoError(s.service.CancelRequirement(s.buyerCtx(), req.ID))

	listing := s.seedListing("Pune", "", 5_000_000)
	s.Require().NoError(s.service.MatchProperty(context.Background(), listing.ID))

	matches, err := s.matches.FindByProperty(context.Background(), listing.ID)
	s.Require().NoError(err)
	s.Empty(matches)
}

func (s *MatchingServiceSuite) TestMatchPropertyRejectsNonLiveListing() {
	listing := s.seedListing("Pune", "", 5_000_000)
	listing.Status = property.StatusWithdrawn
	s.properties.Put(listing)

	err := s.service.MatchProperty(context.Background(), listing.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *MatchingServiceSuite) TestScoringRunsOffTheRequestPath() {
	s.seedListing("Pune", "Kothrud", 5_000_000)

	// Capture the deferred run instead of executing it, mimicking a
	// scoring pass that has not finished when the response goes out.
	var deferred []func()
	s.service.spawn = func(fn func()) { deferred = append(deferred, fn) }

	req := s.createRequirement("Pune", 4_500_000, 5_500_000)

	matches, err := s.service.ListMatches(s.buyerCtx(), req.ID)
	s.Require().NoError(err)
	s.Empty(matches, "creation must not wait on the scoring run")

	for _, fn := range deferred {
		fn()
	}
	matches, err = s.service.ListMatches(s.buyerCtx(), req.ID)
	s.Require().NoError(err)
	s.Len(matches, 1)
}

// ==================================================
// Requirement lifecycle
// ==================================================

func (s *MatchingServiceSuite) TestUpdateRequirement() {
	req := s.createRequirement("Pune", 4_500_000, 5_500_000)

	s.Run("stranger cannot edit", func() {
		strangerCtx := requestcontext.WithUserID(context.Background(), id.NewUserID())
		_, err := s.service.UpdateRequirement(strangerCtx, req.ID, UpdateRequirementInput{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("budget change re-runs matching", func() {
		s.seedListing("Pune", "", 8_000_000)

		newMin, newMax := 7_000_000.0, 9_000_000.0
		updated, err := s.service.UpdateRequirement(s.buyerCtx(), req.ID, UpdateRequirementInput{
			MinBudget: &newMin,
			MaxBudget: &newMax,
		})
		s.Require().NoError(err)
		s.Equal(newMax, updated.MaxBudget)

		matches, err := s.service.ListMatches(s.buyerCtx(), req.ID)
		s.Require().NoError(err)
		s.Len(matches, 1)
	})

	s.Run("inverted budget rejected", func() {
		lo, hi := 9_000_000.0, 7_000_000.0
		_, err := s.service.UpdateRequirement(s.buyerCtx(), req.ID, UpdateRequirementInput{
			MinBudget: &lo,
			MaxBudget: &hi,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("fulfilled requirement is immutable", func() {
		s.Require().NoError(s.service.FulfillRequirement(s.buyerCtx(), req.ID))
		_, err := s.service.UpdateRequirement(s.buyerCtx(), req.ID, UpdateRequirementInput{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *MatchingServiceSuite) TestCancelRequirement() {
	req := s.createRequirement("Pune", 4_500_000, 5_500_000)
	s.Require().NoError(s.service.CancelRequirement(s.buyerCtx(), req.ID))

	s.Run("double cancel rejected", func() {
		err := s.service.CancelRequirement(s.buyerCtx(), req.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("history stays readable", func() {
		got, err := s.service.GetRequirement(s.buyerCtx(), req.ID)
		s.Require().NoError(err)
		s.Equal(models.RequirementCancelled, got.Status)
	})
}

// ==================================================
// Access control and agent triage
// ==================================================

func (s *MatchingServiceSuite) TestListMatchesAccessControl() {
	s.seedListing("Pune", "", 5_000_000)
	req := s.createRequirement("Pune", 4_500_000, 5_500_000)

	s.Run("stranger denied", func() {
		strangerCtx := requestcontext.WithUserID(context.Background(), id.NewUserID())
		_, err := s.service.ListMatches(strangerCtx, req.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("agent allowed", func() {
		matches, err := s.service.ListMatches(s.agentCtx(), req.ID)
		s.Require().NoError(err)
		s.Len(matches, 1)
	})

	s.Run("unknown requirement", func() {
		_, err := s.service.ListMatches(s.agentCtx(), id.NewRequirementID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *MatchingServiceSuite) TestReviewQueue() {
	s.seedListing("Pune", "", 5_000_000)
	req := s.createRequirement("Pune", 4_500_000, 5_500_000)

	s.Run("buyer denied", func() {
		_, err := s.service.ReviewQueue(s.buyerCtx(), 10)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("agent sees unreviewed match and clears it", func() {
		queue, err := s.service.ReviewQueue(s.agentCtx(), 10)
		s.Require().NoError(err)
		s.Require().Len(queue, 1)
		s.Equal(req.ID, queue[0].RequirementID)

		s.Require().NoError(s.service.MarkMatchReviewed(s.agentCtx(), queue[0].ID))

		queue, err = s.service.ReviewQueue(s.agentCtx(), 10)
		s.Require().NoError(err)
		s.Empty(queue)
	})
}
