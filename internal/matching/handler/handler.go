// Package handler exposes requirement and match endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"propbridge/internal/matching/models"
	"propbridge/internal/matching/service"
	id "propbridge/pkg/domain"
	"propbridge/pkg/platform/httputil"
	"propbridge/pkg/requestcontext"
)

// Service defines the matching operations the handler needs.
type Service interface {
	CreateRequirement(ctx context.Context, buyerID id.UserID, in service.CreateRequirementInput) (*models.Requirement, error)
	GetRequirement(ctx context.Context, requirementID id.RequirementID) (*models.Requirement, error)
	ListRequirements(ctx context.Context, buyerID id.UserID) ([]*models.Requirement, error)
	UpdateRequirement(ctx context.Context, requirementID id.RequirementID, in service.UpdateRequirementInput) (*models.Requirement, error)
	CancelRequirement(ctx context.Context, requirementID id.RequirementID) error
	FulfillRequirement(ctx context.Context, requirementID id.RequirementID) error
	ListMatches(ctx context.Context, requirementID id.RequirementID) ([]*models.Match, error)
	MatchProperty(ctx context.Context, propertyID id.PropertyID) error
	ReviewQueue(ctx context.Context, limit int) ([]*models.Match, error)
	MarkMatchReviewed(ctx context.Context, matchID id.MatchID) error
}

// Handler wires matching endpoints to the matching service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts matching endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/requirements", h.HandleCreateRequirement)
	r.Get("/requirements", h.HandleListRequirements)
	r.Get("/requirements/{requirementID}", h.HandleGetRequirement)
	r.Patch("/requirements/{requirementID}", h.HandleUpdateRequirement)
	r.Delete("/requirements/{requirementID}", h.HandleCancelRequirement)
	r.Post("/requirements/{requirementID}/fulfill", h.HandleFulfillRequirement)
	r.Get("/requirements/{requirementID}/matches", h.HandleListMatches)
	r.Post("/properties/{propertyID}/match", h.HandleMatchProperty)
	r.Get("/matches/review-queue", h.HandleReviewQueue)
	r.Post("/matches/{matchID}/review", h.HandleReviewMatch)
}

// HandleCreateRequirement handles POST /requirements.
func (h *Handler) HandleCreateRequirement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateRequirementRequest](w, r)
	if !ok {
		return
	}

	created, err := h.service.CreateRequirement(ctx, requestcontext.UserID(ctx), req.Input())
	if err != nil {
		h.logger.ErrorContext(ctx, "create requirement failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// HandleListRequirements handles GET /requirements.
func (h *Handler) HandleListRequirements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buyerID := requestcontext.UserID(ctx)
	if raw := r.URL.Query().Get("buyer_id"); raw != "" {
		parsed, err := id.ParseUserID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		buyerID = parsed
	}

	reqs, err := h.service.ListRequirements(ctx, buyerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requirements": emptyIfNilReqs(reqs)})
}

// HandleGetRequirement handles GET /requirements/{requirementID}.
func (h *Handler) HandleGetRequirement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requirementID, err := id.ParseRequirementID(chi.URLParam(r, "requirementID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.service.GetRequirement(ctx, requirementID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

// HandleUpdateRequirement handles PATCH /requirements/{requirementID}.
func (h *Handler) HandleUpdateRequirement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requirementID, err := id.ParseRequirementID(chi.URLParam(r, "requirementID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateRequirementRequest](w, r)
	if !ok {
		return
	}
	updated, err := h.service.UpdateRequirement(ctx, requirementID, req.Input())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// HandleCancelRequirement handles DELETE /requirements/{requirementID}.
func (h *Handler) HandleCancelRequirement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requirementID, err := id.ParseRequirementID(chi.URLParam(r, "requirementID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.CancelRequirement(ctx, requirementID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFulfillRequirement handles POST /requirements/{requirementID}/fulfill.
func (h *Handler) HandleFulfillRequirement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requirementID, err := id.ParseRequirementID(chi.URLParam(r, "requirementID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.FulfillRequirement(ctx, requirementID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListMatches handles GET /requirements/{requirementID}/matches.
func (h *Handler) HandleListMatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requirementID, err := id.ParseRequirementID(chi.URLParam(r, "requirementID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	matches, err := h.service.ListMatches(ctx, requirementID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"matches": emptyIfNilMatches(matches)})
}

// HandleMatchProperty handles POST /properties/{propertyID}/match: the
// listing-triggered run, called when a listing goes live.
func (h *Handler) HandleMatchProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.MatchProperty(ctx, propertyID); err != nil {
		h.logger.ErrorContext(ctx, "listing matching run failed",
			"request_id", requestcontext.RequestID(ctx),
			"property_id", propertyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleReviewQueue handles GET /matches/review-queue.
func (h *Handler) HandleReviewQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	queue, err := h.service.ReviewQueue(ctx, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"matches": emptyIfNilMatches(queue)})
}

// HandleReviewMatch handles POST /matches/{matchID}/review.
func (h *Handler) HandleReviewMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	matchID, err := id.ParseMatchID(chi.URLParam(r, "matchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.MarkMatchReviewed(ctx, matchID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func emptyIfNilReqs(v []*models.Requirement) []*models.Requirement {
	if v == nil {
		return []*models.Requirement{}
	}
	return v
}

func emptyIfNilMatches(v []*models.Match) []*models.Match {
	if v == nil {
		return []*models.Match{}
	}
	return v
}
