// Package service implements the interest registry and the mediated
// connection workflow.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"propbridge/internal/directory"
	"propbridge/internal/entitlement"
	"propbridge/internal/interest/metrics"
	"propbridge/internal/interest/models"
	"propbridge/internal/interest/store"
	matchingmodels "propbridge/internal/matching/models"
	"propbridge/internal/notify"
	"propbridge/internal/property"
	id "propbridge/pkg/domain"
	dErrors "propbridge/pkg/domain-errors"
	"propbridge/pkg/platform/sentinel"
	txcontext "propbridge/pkg/platform/tx"
	"propbridge/pkg/requestcontext"
)

// Audit-trail labels that are not state machine inputs.
const (
	// EventExpressed marks interest creation.
	EventExpressed models.Event = "expressed"
	// EventReviewRecorded marks an assessment that parked the interest in
	// its current stage instead of advancing it.
	EventReviewRecorded models.Event = "review_recorded"
)

// MatchRegistry is the slice of the matching context the interest context
// consumes: validating a claimed match and flagging buyer interest on it.
type MatchRegistry interface {
	GetMatch(ctx context.Context, matchID id.MatchID) (*matchingmodels.Match, error)
	RecordBuyerInterest(ctx context.Context, matchID id.MatchID) error
}

type Service struct {
	interests   store.InterestStore
	actions     store.MediationStore
	sessions    store.SessionStore
	properties  property.Store
	directory   directory.Directory
	entitlement entitlement.Service
	matchReg    MatchRegistry
	dispatcher  notify.Dispatcher
	db          *sql.DB
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

// New wires the interest service. db may be nil (unit tests with in-memory
// stores); approval then runs without a surrounding transaction. matchReg
// may be nil when the deployment runs without the matching context.
func New(
	interests store.InterestStore,
	actions store.MediationStore,
	sessions store.SessionStore,
	properties property.Store,
	dir directory.Directory,
	ent entitlement.Service,
	matchReg MatchRegistry,
	dispatcher notify.Dispatcher,
	db *sql.DB,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		interests:   interests,
		actions:     actions,
		sessions:    sessions,
		properties:  properties,
		directory:   dir,
		entitlement: ent,
		matchReg:    matchReg,
		dispatcher:  dispatcher,
		db:          db,
		logger:      logger,
		metrics:     m,
		tracer:      otel.Tracer("propbridge/interest"),
	}
}

// ExpressInterestInput carries the buyer-supplied interest fields. An
// empty Priority means normal.
type ExpressInterestInput struct {
	PropertyID id.PropertyID
	MatchID    *id.MatchID
	Type       models.InterestType
	Message    string
	Priority   models.Priority
}

// ExpressInterest registers a buyer's interest in a live listing. The
// expression starts in the pending stage with contact details hidden. A
// premium subscription on either the buyer or the listing's seller bumps
// priority to high; a requested urgent is never downgraded, and an
// entitlement outage leaves the requested priority untouched.
func (s *Service) ExpressInterest(ctx context.Context, in ExpressInterestInput) (*models.InterestExpression, error) {
	ctx, span := s.tracer.Start(ctx, "interest.ExpressInterest")
	defer span.End()

	buyerID := requestcontext.UserID(ctx)

	prop, err := s.properties.FindByID(ctx, in.PropertyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "property not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load property")
	}
	if !prop.IsLive() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "property is not live")
	}

	expr, err := models.NewInterestExpression(buyerID, prop.ID, prop.SellerID, in.Type, in.Message)
	if err != nil {
		return nil, err
	}
	if in.Priority != "" {
		if !in.Priority.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, "priority must be normal, high, or urgent")
		}
		expr.Priority = in.Priority
	}

	if in.MatchID != nil {
		if err := s.attachMatch(ctx, expr, *in.MatchID, buyerID); err != nil {
			return nil, err
		}
	}

	if s.entitlement != nil && s.eitherPartyPremium(ctx, buyerID, prop.SellerID) {
		expr.Priority = expr.Priority.Upgraded()
	}

	if err := s.interests.Create(ctx, expr); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "interest already expressed for this property")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store interest")
	}

	s.appendAction(ctx, expr, buyerID, EventExpressed, "", expr.Status, expr.Status, in.Message, nil)
	s.metrics.Expressed(string(expr.Type), string(expr.Priority))

	if expr.MatchID != nil && s.matchReg != nil {
		if err := s.matchReg.RecordBuyerInterest(ctx, *expr.MatchID); err != nil {
			s.logger.WarnContext(ctx, "flag buyer interest on match failed",
				"match_id", expr.MatchID,
				"error", err,
			)
		}
	}

	// The seller learns there is activity but never who the buyer is.
	s.dispatcher.Dispatch(ctx, notify.Notification{
		Recipient: prop.SellerID,
		Kind:      notify.KindListingInterest,
		Payload: map[string]string{
			"property_id": prop.ID.String(),
			"type":        string(expr.Type),
		},
	})

	s.logger.InfoContext(ctx, "interest expressed",
		"interest_id", expr.ID,
		"property_id", prop.ID,
		"priority", expr.Priority,
		"request_id", requestcontext.RequestID(ctx),
	)
	return expr, nil
}

// eitherPartyPremium reports whether the buyer or the listing's seller
// holds an active premium subscription. Lookup failures count as not
// premium so an entitlement outage never blocks the expression.
func (s *Service) eitherPartyPremium(ctx context.Context, buyerID, sellerID id.UserID) bool {
	premium, err := s.entitlement.HasPremiumBuyer(ctx, buyerID)
	if err != nil {
		s.logger.WarnContext(ctx, "buyer entitlement lookup failed, skipping priority bump",
			"buyer_id", buyerID,
			"error", err,
		)
	} else if premium {
		return true
	}

	premium, err = s.entitlement.HasPremiumSeller(ctx, sellerID)
	if err != nil {
		s.logger.WarnContext(ctx, "seller entitlement lookup failed, skipping priority bump",
			"seller_id", sellerID,
			"error", err,
		)
	} else if premium {
		return true
	}
	return false
}

func (s *Service) attachMatch(ctx context.Context, expr *models.InterestExpression, matchID id.MatchID, buyerID id.UserID) error {
	if s.matchReg == nil {
		return dErrors.New(dErrors.CodeValidation, "match references are not supported")
	}
	m, err := s.matchReg.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m.BuyerID != buyerID {
		return dErrors.New(dErrors.CodeForbidden, "match belongs to another buyer")
	}
	if m.PropertyID != expr.PropertyID {
		return dErrors.New(dErrors.CodeValidation, "match does not reference this property")
	}
	expr.MatchID = &matchID
	return nil
}

// Withdraw pulls an interest out of mediation. Only the owning buyer may
// withdraw; the pair becomes free for a fresh expression afterwards.
func (s *Service) Withdraw(ctx context.Context, interestID id.InterestID) error {
	expr, err := s.loadInterest(ctx, interestID)
	if err != nil {
		return err
	}
	if expr.BuyerID != requestcontext.UserID(ctx) {
		return dErrors.New(dErrors.CodeForbidden, "only the owning buyer can withdraw")
	}

	from := expr.Status
	now := requestcontext.Now(ctx)
	if err := expr.Apply(models.EventWithdraw, now); err != nil {
		return err
	}
	if err := s.persist(ctx, expr); err != nil {
		return err
	}
	s.appendAction(ctx, expr, expr.BuyerID, models.EventWithdraw, "", from, expr.Status, "", nil)
	s.metrics.Transition(string(models.EventWithdraw))
	return nil
}

// GetInterest returns an expression to its buyer, its seller, or an
// intermediary. Seller-facing anonymization happens in the visibility
// projection, not here.
func (s *Service) GetInterest(ctx context.Context, interestID id.InterestID) (*models.InterestExpression, error) {
	expr, err := s.loadInterest(ctx, interestID)
	if err != nil {
		return nil, err
	}
	caller := requestcontext.UserID(ctx)
	if caller != expr.BuyerID && caller != expr.SellerID && !directory.IsIntermediary(requestcontext.Roles(ctx)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "interest belongs to other parties")
	}
	return expr, nil
}

// ListForBuyer returns the caller's own expressions.
func (s *Service) ListForBuyer(ctx context.Context) ([]*models.InterestExpression, error) {
	list, err := s.interests.FindByBuyer(ctx, requestcontext.UserID(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list interests")
	}
	return list, nil
}

// ListForProperty returns a listing's expressions to its seller or an
// intermediary.
func (s *Service) ListForProperty(ctx context.Context, propertyID id.PropertyID) ([]*models.InterestExpression, error) {
	prop, err := s.properties.FindByID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "property not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load property")
	}
	caller := requestcontext.UserID(ctx)
	if caller != prop.SellerID && !directory.IsIntermediary(requestcontext.Roles(ctx)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "listing belongs to another seller")
	}
	list, err := s.interests.FindByProperty(ctx, propertyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list interests")
	}
	return list, nil
}

// Queue returns expressions in one mediation stage for agent triage,
// highest priority first.
func (s *Service) Queue(ctx context.Context, status models.ConnectionStatus, limit int) ([]*models.InterestExpression, error) {
	if err := s.requireIntermediary(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	list, err := s.interests.FindByStatus(ctx, status, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list mediation queue")
	}
	return list, nil
}

func (s *Service) loadInterest(ctx context.Context, interestID id.InterestID) (*models.InterestExpression, error) {
	expr, err := s.interests.FindByID(ctx, interestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "interest not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load interest")
	}
	return expr, nil
}

// persist writes the expression with its optimistic version check.
func (s *Service) persist(ctx context.Context, expr *models.InterestExpression) error {
	if err := s.interests.UpdateWithVersion(ctx, expr, expr.Version); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrStale):
			s.metrics.StaleWrite()
			return dErrors.New(dErrors.CodeStale, "interest was modified concurrently, reload and retry")
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "interest not found")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "update interest")
		}
	}
	return nil
}

// appendAction records the audit row; failures are logged, never fatal.
// Connection approval appends its row inside the approval transaction
// instead, where a failure aborts the whole transition.
func (s *Service) appendAction(ctx context.Context, expr *models.InterestExpression, actor id.UserID, event models.Event, outcome models.ReviewOutcome, from, to models.ConnectionStatus, notes string, score *int) {
	action := &models.MediationAction{
		ID:         id.NewActionID(),
		InterestID: expr.ID,
		ActorID:    actor,
		Event:      event,
		Outcome:    outcome,
		FromStatus: from,
		ToStatus:   to,
		Notes:      notes,
		Score:      score,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.actions.Append(ctx, action); err != nil {
		s.logger.ErrorContext(ctx, "append mediation action failed",
			"interest_id", expr.ID,
			"event", event,
			"error", err,
		)
	}
}

// requireIntermediary re-checks mediation capability against the directory
// rather than trusting token roles alone.
func (s *Service) requireIntermediary(ctx context.Context) error {
	actor := requestcontext.UserID(ctx)
	roles, err := s.directory.GetRoles(ctx, actor)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "mediation requires agent capability")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "role lookup failed")
	}
	if !directory.IsIntermediary(roles) {
		return dErrors.New(dErrors.CodeForbidden, "mediation requires agent capability")
	}
	return nil
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.db == nil {
		return fn(ctx)
	}
	return txcontext.Run(ctx, s.db, fn)
}
