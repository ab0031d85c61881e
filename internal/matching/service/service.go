// Package service implements requirement management and the matching engine.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"propbridge/internal/directory"
	"propbridge/internal/events"
	"propbridge/internal/geo"
	"propbridge/internal/matching/metrics"
	"propbridge/internal/matching/models"
	"propbridge/internal/matching/store"
	"propbridge/internal/notify"
	"propbridge/internal/property"
	id "propbridge/pkg/domain"
	dErrors "propbridge/pkg/domain-errors"
	"propbridge/pkg/platform/sentinel"
	txcontext "propbridge/pkg/platform/tx"
	"propbridge/pkg/requestcontext"
)

type Service struct {
	requirements store.RequirementStore
	matches      store.MatchStore
	properties   property.Store
	directory    directory.Directory
	dispatcher   notify.Dispatcher
	publisher    events.Publisher
	normalizer   geo.Normalizer
	db           *sql.DB
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer

	// spawn runs a deferred scoring pass; tests replace it to make the
	// runs deterministic.
	spawn func(fn func())
}

// New wires the matching service. db may be nil (unit tests with in-memory
// stores); match creation then runs without a surrounding transaction.
func New(
	requirements store.RequirementStore,
	matches store.MatchStore,
	properties property.Store,
	dir directory.Directory,
	dispatcher notify.Dispatcher,
	publisher events.Publisher,
	normalizer geo.Normalizer,
	db *sql.DB,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		requirements: requirements,
		matches:      matches,
		properties:   properties,
		directory:    dir,
		dispatcher:   dispatcher,
		publisher:    publisher,
		normalizer:   normalizer,
		db:           db,
		logger:       logger,
		metrics:      m,
		tracer:       otel.Tracer("propbridge/matching"),
		spawn:        func(fn func()) { go fn() },
	}
}

// scheduleMatching fires a scoring run for the requirement off the request
// path. The detached context keeps the run alive after the response is
// written; failures are logged and the next trigger retries the same
// pairs.
func (s *Service) scheduleMatching(ctx context.Context, requirementID id.RequirementID) {
	bg := context.WithoutCancel(ctx)
	s.spawn(func() {
		if err := s.MatchRequirement(bg, requirementID); err != nil {
			s.logger.WarnContext(bg, "background matching run failed",
				"requirement_id", requirementID,
				"error", err,
			)
		}
	})
}

// CreateRequirementInput carries the buyer-supplied requirement fields.
type CreateRequirementInput struct {
	City         string
	State        string
	Locality     string
	Pincode      string
	MinBudget    *float64
	MaxBudget    float64
	BudgetType   models.BudgetType
	PropertyType string
	ListingType  property.ListingType
	MinAreaSqFt  float64
	Bedrooms     int
	Bathrooms    int
	ExpiresAt    *time.Time
}

// CreateRequirement validates and stores a requirement, then kicks off a
// matching run against the live catalog in the background; the response
// never waits on scoring.
func (s *Service) CreateRequirement(ctx context.Context, buyerID id.UserID, in CreateRequirementInput) (*models.Requirement, error) {
	req, err := models.NewRequirement(buyerID, in.City, in.State, in.MinBudget, in.MaxBudget, in.BudgetType)
	if err != nil {
		return nil, err
	}
	req.Locality = in.Locality
	req.Pincode = in.Pincode
	req.PropertyType = in.PropertyType
	req.ListingType = in.ListingType
	req.MinAreaSqFt = in.MinAreaSqFt
	req.Bedrooms = in.Bedrooms
	req.Bathrooms = in.Bathrooms
	req.ExpiresAt = in.ExpiresAt

	s.resolveCoordinates(ctx, req)

	if err := s.requirements.Create(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store requirement")
	}

	s.logger.InfoContext(ctx, "requirement created",
		"requirement_id", req.ID,
		"city", req.City,
		"request_id", requestcontext.RequestID(ctx),
	)

	s.scheduleMatching(ctx, req.ID)
	return req, nil
}

// resolveCoordinates is best-effort; a geocoder failure leaves coordinates
// unset and matching falls back to name comparison.
func (s *Service) resolveCoordinates(ctx context.Context, req *models.Requirement) {
	if s.normalizer == nil || req.Coordinates != nil {
		return
	}
	query := req.City
	if req.Locality != "" {
		query = req.Locality + ", " + req.City
	}
	coords, err := s.normalizer.Normalize(ctx, query)
	if err != nil {
		s.logger.WarnContext(ctx, "geocode failed", "query", query, "error", err)
		return
	}
	req.Coordinates = coords
}

// GetRequirement returns a requirement to its owner or an intermediary.
func (s *Service) GetRequirement(ctx context.Context, requirementID id.RequirementID) (*models.Requirement, error) {
	req, err := s.requirements.FindByID(ctx, requirementID)
	if err != nil {
		return nil, translateLookup(err, "requirement not found")
	}
	if err := s.authorizeRequirementAccess(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ListRequirements returns the caller's own requirements.
func (s *Service) ListRequirements(ctx context.Context, buyerID id.UserID) ([]*models.Requirement, error) {
	caller := requestcontext.UserID(ctx)
	if caller != buyerID && !directory.IsIntermediary(requestcontext.Roles(ctx)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot list another buyer's requirements")
	}
	reqs, err := s.requirements.FindByBuyer(ctx, buyerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list requirements")
	}
	return reqs, nil
}

// UpdateRequirementInput carries the mutable requirement fields. Nil
// pointers mean "leave unchanged".
type UpdateRequirementInput struct {
	City         *string
	State        *string
	Locality     *string
	Pincode      *string
	MinBudget    *float64
	MaxBudget    *float64
	PropertyType *string
	MinAreaSqFt  *float64
	Bedrooms     *int
	Bathrooms    *int
	ExpiresAt    *time.Time
}

// UpdateRequirement edits an active requirement. Fulfilled requirements are
// immutable. Changing location or budget re-runs matching because the
// qualifying set may have changed.
func (s *Service) UpdateRequirement(ctx context.Context, requirementID id.RequirementID, in UpdateRequirementInput) (*models.Requirement, error) {
	req, err := s.requirements.FindByID(ctx, requirementID)
	if err != nil {
		return nil, translateLookup(err, "requirement not found")
	}
	if req.BuyerID != requestcontext.UserID(ctx) {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the owning buyer can edit a requirement")
	}
	if !req.IsMutable() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "requirement is not editable in status "+string(req.Status))
	}

	rematch := applyUpdate(req, in)
	if req.MaxBudget <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "max_budget must be positive")
	}
	if req.MinBudget != nil && *req.MinBudget > req.MaxBudget {
		return nil, dErrors.New(dErrors.CodeValidation, "min_budget must not exceed max_budget")
	}
	if req.City == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "city is required")
	}
	req.UpdatedAt = requestcontext.Now(ctx)

	if rematch {
		req.Coordinates = nil
		s.resolveCoordinates(ctx, req)
	}
	if err := s.requirements.Update(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update requirement")
	}

	if rematch {
		s.scheduleMatching(ctx, req.ID)
	}
	return s.requirements.FindByID(ctx, req.ID)
}

// applyUpdate copies set fields onto the requirement and reports whether a
// matching-relevant field (location or budget) changed.
func applyUpdate(req *models.Requirement, in UpdateRequirementInput) bool {
	rematch := false
	setStr := func(dst *string, v *string, affectsMatch bool) {
		if v != nil && *v != *dst {
			*dst = *v
			if affectsMatch {
				rematch = true
			}
		}
	}
	setStr(&req.City, in.City, true)
	setStr(&req.State, in.State, true)
	setStr(&req.Locality, in.Locality, true)
	setStr(&req.Pincode, in.Pincode, true)
	setStr(&req.PropertyType, in.PropertyType, false)

	if in.MinBudget != nil {
		req.MinBudget = in.MinBudget
		rematch = true
	}
	if in.MaxBudget != nil && *in.MaxBudget != req.MaxBudget {
		req.MaxBudget = *in.MaxBudget
		rematch = true
	}
	if in.MinAreaSqFt != nil {
		req.MinAreaSqFt = *in.MinAreaSqFt
	}
	if in.Bedrooms != nil {
		req.Bedrooms = *in.Bedrooms
	}
	if in.Bathrooms != nil {
		req.Bathrooms = *in.Bathrooms
	}
	if in.ExpiresAt != nil {
		req.ExpiresAt = in.ExpiresAt
	}
	return rematch
}

// CancelRequirement soft-deletes: the requirement leaves the matching pool
// but its history stays readable.
func (s *Service) CancelRequirement(ctx context.Context, requirementID id.RequirementID) error {
	return s.transition(ctx, requirementID, models.RequirementCancelled)
}

// FulfillRequirement marks the search complete; the requirement becomes
// immutable.
func (s *Service) FulfillRequirement(ctx context.Context, requirementID id.RequirementID) error {
	return s.transition(ctx, requirementID, models.RequirementFulfilled)
}

func (s *Service) transition(ctx context.Context, requirementID id.RequirementID, to models.RequirementStatus) error {
	req, err := s.requirements.FindByID(ctx, requirementID)
	if err != nil {
		return translateLookup(err, "requirement not found")
	}
	if req.BuyerID != requestcontext.UserID(ctx) {
		return dErrors.New(dErrors.CodeForbidden, "only the owning buyer can change a requirement")
	}
	if req.Status != models.RequirementActive {
		return dErrors.New(dErrors.CodeInvalidState, "requirement is already "+string(req.Status))
	}
	req.Status = to
	req.UpdatedAt = requestcontext.Now(ctx)
	if err := s.requirements.Update(ctx, req); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update requirement status")
	}
	s.logger.InfoContext(ctx, "requirement status changed",
		"requirement_id", req.ID,
		"status", to,
	)
	return nil
}

// ListMatches returns a requirement's matches to its owner or an
// intermediary.
func (s *Service) ListMatches(ctx context.Context, requirementID id.RequirementID) ([]*models.Match, error) {
	req, err := s.requirements.FindByID(ctx, requirementID)
	if err != nil {
		return nil, translateLookup(err, "requirement not found")
	}
	if err := s.authorizeRequirementAccess(ctx, req); err != nil {
		return nil, err
	}
	matches, err := s.matches.FindByRequirement(ctx, requirementID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list matches")
	}
	return matches, nil
}

// ReviewQueue returns unreviewed matches for agent triage.
func (s *Service) ReviewQueue(ctx context.Context, limit int) ([]*models.Match, error) {
	if !directory.IsIntermediary(requestcontext.Roles(ctx)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "review queue is agent-only")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	matches, err := s.matches.FindUnreviewed(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list unreviewed matches")
	}
	return matches, nil
}

// MarkMatchReviewed records agent triage on a match.
func (s *Service) MarkMatchReviewed(ctx context.Context, matchID id.MatchID) error {
	if !directory.IsIntermediary(requestcontext.Roles(ctx)) {
		return dErrors.New(dErrors.CodeForbidden, "match review is agent-only")
	}
	if err := s.matches.SetCSReviewed(ctx, matchID, requestcontext.Now(ctx)); err != nil {
		return translateLookup(err, "match not found")
	}
	return nil
}

// RecordBuyerInterest flags a match once its buyer expresses interest; the
// interest context calls this after registering the expression.
func (s *Service) RecordBuyerInterest(ctx context.Context, matchID id.MatchID) error {
	if err := s.matches.SetBuyerInterested(ctx, matchID, requestcontext.Now(ctx)); err != nil {
		return translateLookup(err, "match not found")
	}
	return nil
}

// GetMatch returns a match to its buyer, its seller, or an intermediary.
func (s *Service) GetMatch(ctx context.Context, matchID id.MatchID) (*models.Match, error) {
	m, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, translateLookup(err, "match not found")
	}
	caller := requestcontext.UserID(ctx)
	if caller != m.BuyerID && caller != m.SellerID && !directory.IsIntermediary(requestcontext.Roles(ctx)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "match belongs to another user")
	}
	return m, nil
}

func (s *Service) authorizeRequirementAccess(ctx context.Context, req *models.Requirement) error {
	caller := requestcontext.UserID(ctx)
	if caller == req.BuyerID || directory.IsIntermediary(requestcontext.Roles(ctx)) {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "requirement belongs to another buyer")
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.db == nil {
		return fn(ctx)
	}
	return txcontext.Run(ctx, s.db, fn)
}

func translateLookup(err error, notFoundMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "lookup failed")
}
