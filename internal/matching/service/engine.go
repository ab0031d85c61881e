package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"propbridge/internal/directory"
	"propbridge/internal/events"
	"propbridge/internal/matching/models"
	"propbridge/internal/matching/scorer"
	"propbridge/internal/matching/store"
	"propbridge/internal/notify"
	"propbridge/internal/property"
	id "propbridge/pkg/domain"
	dErrors "propbridge/pkg/domain-errors"
	"propbridge/pkg/platform/sentinel"
	"propbridge/pkg/requestcontext"
)

// MatchRequirement evaluates one requirement against every live listing in
// its city. Qualifying pairs become matches; pairs already matched are
// skipped silently, so re-running is always safe.
func (s *Service) MatchRequirement(ctx context.Context, requirementID id.RequirementID) error {
	ctx, span := s.tracer.Start(ctx, "matching.MatchRequirement")
	defer span.End()
	span.SetAttributes(attribute.String("requirement_id", requirementID.String()))

	req, err := s.requirements.FindByID(ctx, requirementID)
	if err != nil {
		return translateLookup(err, "requirement not found")
	}
	if !req.IsMatchable(requestcontext.Now(ctx)) {
		return nil
	}

	listings, err := s.properties.FindLiveByCity(ctx, req.City, req.ListingType)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "load live listings")
	}

	created := 0
	for _, prop := range listings {
		ok, err := s.evaluatePair(ctx, req, prop)
		if err != nil {
			s.logger.WarnContext(ctx, "pair evaluation failed",
				"requirement_id", req.ID,
				"property_id", prop.ID,
				"error", err,
			)
			continue
		}
		if ok {
			created++
		}
	}

	s.logger.InfoContext(ctx, "matching run finished",
		"requirement_id", req.ID,
		"candidates", len(listings),
		"matches_created", created,
	)
	return nil
}

// MatchProperty is the listing-triggered direction: a new live listing is
// evaluated against every active requirement in its city.
func (s *Service) MatchProperty(ctx context.Context, propertyID id.PropertyID) error {
	ctx, span := s.tracer.Start(ctx, "matching.MatchProperty")
	defer span.End()
	span.SetAttributes(attribute.String("property_id", propertyID.String()))

	prop, err := s.properties.FindByID(ctx, propertyID)
	if err != nil {
		return translateLookup(err, "property not found")
	}
	if !prop.IsLive() {
		return dErrors.New(dErrors.CodeInvalidState, "property is not live")
	}

	now := requestcontext.Now(ctx)
	reqs, err := s.requirements.FindActiveByCity(ctx, prop.City, now)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "load active requirements")
	}

	created := 0
	for _, req := range reqs {
		if req.ListingType != "" && req.ListingType != prop.ListingType {
			continue
		}
		ok, err := s.evaluatePair(ctx, req, prop)
		if err != nil {
			s.logger.WarnContext(ctx, "pair evaluation failed",
				"requirement_id", req.ID,
				"property_id", prop.ID,
				"error", err,
			)
			continue
		}
		if ok {
			created++
		}
	}

	s.logger.InfoContext(ctx, "listing matching run finished",
		"property_id", prop.ID,
		"candidates", len(reqs),
		"matches_created", created,
	)
	return nil
}

// evaluatePair scores one pair and, when it qualifies, creates the match,
// bumps the requirement counters, and writes the outbox event in one
// transaction. Notifications go out after commit. Returns true when a new
// match was created.
func (s *Service) evaluatePair(ctx context.Context, req *models.Requirement, prop *property.Property) (bool, error) {
	s.metrics.Evaluated()

	if prop.SellerID == req.BuyerID {
		// Own listings never match a buyer's requirement.
		return false, nil
	}

	result := scorer.Score(req, prop)
	if !result.Qualifies() {
		return false, nil
	}

	now := requestcontext.Now(ctx)
	match := &models.Match{
		ID:               id.NewMatchID(),
		RequirementID:    req.ID,
		PropertyID:       prop.ID,
		BuyerID:          req.BuyerID,
		SellerID:         prop.SellerID,
		LocationClass:    result.LocationClass,
		BudgetOverlapPct: result.BudgetOverlapPct,
		Score:            result.Score,
		Reasons:          result.Reasons,
		CreatedAt:        now,
	}

	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.matches.Create(ctx, match); err != nil {
			return err
		}
		if err := s.requirements.RecordMatch(ctx, req.ID, now); err != nil {
			return fmt.Errorf("record match: %w", err)
		}
		return s.publisher.PublishMatchFound(ctx, events.MatchFound{
			MatchID:          match.ID,
			RequirementID:    match.RequirementID,
			PropertyID:       match.PropertyID,
			BuyerID:          match.BuyerID,
			SellerID:         match.SellerID,
			City:             prop.City,
			LocationClass:    string(match.LocationClass),
			BudgetOverlapPct: match.BudgetOverlapPct,
			Score:            match.Score,
			CreatedAt:        match.CreatedAt,
		})
	})
	if errors.Is(err, sentinel.ErrConflict) {
		// Pair already matched on an earlier run.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.metrics.MatchCreated(string(match.LocationClass), match.Score)
	s.notifyMatch(ctx, match, prop)
	return true, nil
}

// notifyMatch fans out the three match notifications. Channels are
// independent: one failing leaves the others delivered and only its own
// notified flag unset.
func (s *Service) notifyMatch(ctx context.Context, match *models.Match, prop *property.Property) {
	// Plain group, not WithContext: a failed channel must not cancel the
	// others.
	var g errgroup.Group

	g.Go(func() error {
		s.dispatcher.Dispatch(ctx, notify.Notification{
			Recipient: match.BuyerID,
			Kind:      notify.KindMatchFound,
			Payload: map[string]string{
				"match_id":    match.ID.String(),
				"property_id": match.PropertyID.String(),
				"title":       prop.Title,
				"city":        prop.City,
				"score":       fmt.Sprintf("%.0f", match.Score),
			},
		})
		if err := s.matches.MarkNotified(ctx, match.ID, store.NotifyBuyer); err != nil {
			return fmt.Errorf("mark buyer notified: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// The seller notice must not identify the buyer before approval.
		s.dispatcher.Dispatch(ctx, notify.Notification{
			Recipient: match.SellerID,
			Kind:      notify.KindListingInterest,
			Payload: map[string]string{
				"property_id": match.PropertyID.String(),
				"city":        prop.City,
			},
		})
		if err := s.matches.MarkNotified(ctx, match.ID, store.NotifySeller); err != nil {
			return fmt.Errorf("mark seller notified: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		agents, err := s.directory.FindUsersByRole(ctx, directory.RoleAgent)
		if err != nil {
			return fmt.Errorf("find agents: %w", err)
		}
		for _, agent := range agents {
			s.dispatcher.Dispatch(ctx, notify.Notification{
				Recipient: agent,
				Kind:      notify.KindAgentReview,
				Payload: map[string]string{
					"match_id": match.ID.String(),
					"score":    fmt.Sprintf("%.0f", match.Score),
				},
			})
		}
		if err := s.matches.MarkNotified(ctx, match.ID, store.NotifyCS); err != nil {
			return fmt.Errorf("mark cs notified: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "match notification incomplete",
			"match_id", match.ID,
			"error", err,
		)
	}
}
