// Package handler exposes interest and mediation endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"propbridge/internal/directory"
	"propbridge/internal/interest/models"
	"propbridge/internal/interest/service"
	"propbridge/internal/platform/middleware"
	"propbridge/internal/visibility"
	id "propbridge/pkg/domain"
	dErrors "propbridge/pkg/domain-errors"
	"propbridge/pkg/platform/httputil"
	"propbridge/pkg/requestcontext"
)

// Service defines the interest operations the handler needs.
type Service interface {
	ExpressInterest(ctx context.Context, in service.ExpressInterestInput) (*models.InterestExpression, error)
	Withdraw(ctx context.Context, interestID id.InterestID) error
	GetInterest(ctx context.Context, interestID id.InterestID) (*models.InterestExpression, error)
	ListForBuyer(ctx context.Context) ([]*models.InterestExpression, error)
	ListForProperty(ctx context.Context, propertyID id.PropertyID) ([]*models.InterestExpression, error)
	Queue(ctx context.Context, status models.ConnectionStatus, limit int) ([]*models.InterestExpression, error)
	StartReview(ctx context.Context, interestID id.InterestID) (*models.InterestExpression, error)
	ReviewBuyerSeriousness(ctx context.Context, interestID id.InterestID, score int, notes string, outcome models.ReviewOutcome) (*models.InterestExpression, error)
	CheckSellerWillingness(ctx context.Context, interestID id.InterestID, score int, notes string, outcome models.ReviewOutcome) (*models.InterestExpression, error)
	ApproveConnection(ctx context.Context, interestID id.InterestID, in service.ApproveConnectionInput) (*models.CommunicationSession, error)
	RejectConnection(ctx context.Context, interestID id.InterestID, reason string) (*models.InterestExpression, error)
	Actions(ctx context.Context, interestID id.InterestID) ([]*models.MediationAction, error)
	Session(ctx context.Context, interestID id.InterestID) (*models.CommunicationSession, error)
	RevokeSession(ctx context.Context, sessionID id.SessionID) error
}

// Handler wires interest endpoints to the interest service and projects
// responses through the visibility filter.
type Handler struct {
	service   Service
	directory directory.Directory
	logger    *slog.Logger
}

func New(service Service, dir directory.Directory, logger *slog.Logger) *Handler {
	return &Handler{service: service, directory: dir, logger: logger}
}

// Register mounts interest endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/interests", h.HandleExpressInterest)
	r.Get("/interests", h.HandleListOwn)
	r.Get("/interests/{interestID}", h.HandleGetInterest)
	r.Delete("/interests/{interestID}", h.HandleWithdraw)
	r.Get("/properties/{propertyID}/interests", h.HandleListForProperty)

	// First-line role gate; the service re-checks capability against the
	// directory before any transition.
	requireAgent := middleware.RequireRole(h.logger, directory.RoleAgent, directory.RoleAdministrator)
	r.With(requireAgent).Get("/mediation/queue", h.HandleQueue)
	r.Post("/interests/{interestID}/review/start", h.HandleStartReview)
	r.Post("/interests/{interestID}/review/buyer", h.HandleBuyerReview)
	r.Post("/interests/{interestID}/review/seller", h.HandleSellerCheck)
	r.Post("/interests/{interestID}/approve", h.HandleApprove)
	r.Post("/interests/{interestID}/reject", h.HandleReject)
	r.Get("/interests/{interestID}/actions", h.HandleActions)
	r.Get("/interests/{interestID}/session", h.HandleSession)
	r.Post("/sessions/{sessionID}/revoke", h.HandleRevokeSession)
}

// HandleExpressInterest handles POST /interests.
func (h *Handler) HandleExpressInterest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ExpressInterestRequest](w, r)
	if !ok {
		return
	}
	expr, err := h.service.ExpressInterest(ctx, req.Input())
	if err != nil {
		h.logger.ErrorContext(ctx, "express interest failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, h.projectForViewer(ctx, expr))
}

// HandleListOwn handles GET /interests.
func (h *Handler) HandleListOwn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.service.ListForBuyer(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	views := make([]any, 0, len(list))
	for _, expr := range list {
		views = append(views, h.projectForViewer(ctx, expr))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"interests": views})
}

// HandleGetInterest handles GET /interests/{interestID}.
func (h *Handler) HandleGetInterest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	interestID, err := id.ParseInterestID(chi.URLParam(r, "interestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	expr, err := h.service.GetInterest(ctx, interestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.projectForViewer(ctx, expr))
}

// HandleWithdraw handles DELETE /interests/{interestID}.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	interestID, err := id.ParseInterestID(chi.URLParam(r, "interestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Withdraw(ctx, interestID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListForProperty handles GET /properties/{propertyID}/interests.
func (h *Handler) HandleListForProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.ListForProperty(ctx, propertyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	views := make([]any, 0, len(list))
	for _, expr := range list {
		views = append(views, h.projectForViewer(ctx, expr))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"interests": views})
}

// HandleQueue handles GET /mediation/queue.
func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := models.ConnectionStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.StatusPending
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	list, err := h.service.Queue(ctx, status, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if list == nil {
		list = []*models.InterestExpression{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"interests": list})
}

// HandleStartReview handles POST /interests/{interestID}/review/start.
func (h *Handler) HandleStartReview(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, interestID id.InterestID) (*models.InterestExpression, error) {
		return h.service.StartReview(ctx, interestID)
	})
}

// HandleBuyerReview handles POST /interests/{interestID}/review/buyer.
func (h *Handler) HandleBuyerReview(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[BuyerReviewRequest](w, r)
	if !ok {
		return
	}
	h.transition(w, r, func(ctx context.Context, interestID id.InterestID) (*models.InterestExpression, error) {
		return h.service.ReviewBuyerSeriousness(ctx, interestID, req.Score, req.Notes, models.ReviewOutcome(req.Outcome))
	})
}

// HandleSellerCheck handles POST /interests/{interestID}/review/seller.
func (h *Handler) HandleSellerCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[SellerCheckRequest](w, r)
	if !ok {
		return
	}
	h.transition(w, r, func(ctx context.Context, interestID id.InterestID) (*models.InterestExpression, error) {
		return h.service.CheckSellerWillingness(ctx, interestID, req.Score, req.Notes, models.ReviewOutcome(req.Outcome))
	})
}

// HandleApprove handles POST /interests/{interestID}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	interestID, err := id.ParseInterestID(chi.URLParam(r, "interestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ApproveRequest](w, r)
	if !ok {
		return
	}
	session, err := h.service.ApproveConnection(ctx, interestID, req.Input())
	if err != nil {
		h.logger.ErrorContext(ctx, "connection approval failed",
			"request_id", requestcontext.RequestID(ctx),
			"interest_id", interestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, session)
}

// HandleReject handles POST /interests/{interestID}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[RejectRequest](w, r)
	if !ok {
		return
	}
	h.transition(w, r, func(ctx context.Context, interestID id.InterestID) (*models.InterestExpression, error) {
		return h.service.RejectConnection(ctx, interestID, req.Reason)
	})
}

// HandleActions handles GET /interests/{interestID}/actions.
func (h *Handler) HandleActions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	interestID, err := id.ParseInterestID(chi.URLParam(r, "interestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actions, err := h.service.Actions(ctx, interestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if actions == nil {
		actions = []*models.MediationAction{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

// HandleSession handles GET /interests/{interestID}/session.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	interestID, err := id.ParseInterestID(chi.URLParam(r, "interestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	session, err := h.service.Session(ctx, interestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

// HandleRevokeSession handles POST /sessions/{sessionID}/revoke.
func (h *Handler) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RevokeSession(ctx, sessionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, interestID id.InterestID) (*models.InterestExpression, error)) {
	ctx := r.Context()
	interestID, err := id.ParseInterestID(chi.URLParam(r, "interestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	expr, err := fn(ctx, interestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, expr)
}

// projectForViewer picks the visibility projection matching the caller's
// relationship to the expression. Contact lookups are best-effort; a
// directory failure just omits the card.
func (h *Handler) projectForViewer(ctx context.Context, expr *models.InterestExpression) any {
	caller := requestcontext.UserID(ctx)

	if directory.IsIntermediary(requestcontext.Roles(ctx)) && caller != expr.BuyerID && caller != expr.SellerID {
		buyerContact, _ := h.directory.GetContact(ctx, expr.BuyerID)
		sellerContact, _ := h.directory.GetContact(ctx, expr.SellerID)
		return visibility.ForAgent(expr, buyerContact, sellerContact)
	}

	// Contact cards are only fetched when the session actually grants the
	// direction; the projection applies the same gate again.
	session := h.sessionFor(ctx, expr)
	if caller == expr.BuyerID {
		var sellerContact *directory.Contact
		if session != nil && session.IsActive() && session.BuyerCanSeeSellerContact {
			sellerContact, _ = h.directory.GetContact(ctx, expr.SellerID)
		}
		return visibility.ForBuyer(expr, session, sellerContact)
	}

	var buyerContact *directory.Contact
	if session != nil && session.IsActive() && session.SellerCanSeeBuyerContact {
		buyerContact, _ = h.directory.GetContact(ctx, expr.BuyerID)
	}
	return visibility.ForSeller(expr, session, buyerContact)
}

func (h *Handler) sessionFor(ctx context.Context, expr *models.InterestExpression) *models.CommunicationSession {
	if expr.SessionID == nil {
		return nil
	}
	session, err := h.service.Session(ctx, expr.ID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.WarnContext(ctx, "session lookup failed, hiding contact",
				"interest_id", expr.ID,
				"error", err,
			)
		}
		return nil
	}
	return session
}
