package service

import (
	"context"
	"errors"
	"strings"

	"propbridge/internal/interest/models"
	"propbridge/internal/notify"
	id "propbridge/pkg/domain"
	dErrors "propbridge/pkg/domain-errors"
	"propbridge/pkg/platform/sentinel"
	"propbridge/pkg/requestcontext"
)

// StartReview moves a pending interest into customer-service review.
func (s *Service) StartReview(ctx context.Context, interestID id.InterestID) (*models.InterestExpression, error) {
	return s.advance(ctx, interestID, models.EventStartReview, "", nil)
}

// ReviewBuyerSeriousness records the buyer-seriousness checkpoint. Legal
// while the interest is pending or already under review. An approved
// verdict moves it to the seller check, a rejected one ends mediation with
// contact hidden, and any other outcome parks it in review with the score
// and notes on record.
func (s *Service) ReviewBuyerSeriousness(ctx context.Context, interestID id.InterestID, score int, notes string, outcome models.ReviewOutcome) (*models.InterestExpression, error) {
	if score < 0 || score > 100 {
		return nil, dErrors.New(dErrors.CodeValidation, "score must be between 0 and 100")
	}
	if strings.TrimSpace(string(outcome)) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "outcome is required")
	}
	if err := s.requireIntermediary(ctx); err != nil {
		return nil, err
	}

	expr, err := s.loadInterest(ctx, interestID)
	if err != nil {
		return nil, err
	}
	if expr.Status != models.StatusPending && expr.Status != models.StatusCSReviewing {
		return nil, dErrors.New(dErrors.CodeInvalidState, "buyer review is only legal while pending or under review")
	}

	actor := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)
	from := expr.Status
	expr.BuyerReviewScore = &score
	expr.BuyerReviewNotes = notes
	expr.BuyerReviewedAt = &now
	expr.UpdatedAt = now

	event := EventReviewRecorded
	switch outcome {
	case models.OutcomeApproved:
		event = models.EventBuyerSerious
		if err := expr.Apply(event, now); err != nil {
			return nil, err
		}
	case models.OutcomeRejected:
		event = models.EventReject
		if err := expr.Apply(event, now); err != nil {
			return nil, err
		}
		expr.RejectionReason = notes
	default:
		// Inconclusive verdicts keep the interest under review; a pending
		// expression is pulled into the review stage by the check itself.
		if expr.Status == models.StatusPending {
			if err := expr.Apply(models.EventStartReview, now); err != nil {
				return nil, err
			}
		}
	}
	if err := s.persist(ctx, expr); err != nil {
		return nil, err
	}
	s.appendAction(ctx, expr, actor, event, outcome, from, expr.Status, notes, &score)
	if event != EventReviewRecorded {
		s.metrics.Transition(string(event))
	}
	s.notifyBuyer(ctx, expr)
	return expr, nil
}

// CheckSellerWillingness records the seller-willingness checkpoint. Legal
// only from the seller-check stage. An approved verdict moves the interest
// to approved, a rejected one ends mediation, and any other outcome parks
// it at the checkpoint with the score and notes recorded.
func (s *Service) CheckSellerWillingness(ctx context.Context, interestID id.InterestID, score int, notes string, outcome models.ReviewOutcome) (*models.InterestExpression, error) {
	if score < 0 || score > 100 {
		return nil, dErrors.New(dErrors.CodeValidation, "score must be between 0 and 100")
	}
	if strings.TrimSpace(string(outcome)) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "outcome is required")
	}
	if err := s.requireIntermediary(ctx); err != nil {
		return nil, err
	}

	expr, err := s.loadInterest(ctx, interestID)
	if err != nil {
		return nil, err
	}
	if expr.Status != models.StatusSellerChecking {
		return nil, dErrors.New(dErrors.CodeInvalidState, "interest is not in the seller check stage")
	}

	actor := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)
	from := expr.Status
	expr.SellerCheckScore = &score
	expr.SellerCheckNotes = notes
	expr.SellerCheckedAt = &now
	expr.UpdatedAt = now

	event := EventReviewRecorded
	switch outcome {
	case models.OutcomeApproved:
		event = models.EventSellerWilling
		if err := expr.Apply(event, now); err != nil {
			return nil, err
		}
	case models.OutcomeRejected:
		event = models.EventReject
		if err := expr.Apply(event, now); err != nil {
			return nil, err
		}
		expr.RejectionReason = notes
	}
	if err := s.persist(ctx, expr); err != nil {
		return nil, err
	}
	s.appendAction(ctx, expr, actor, event, outcome, from, expr.Status, notes, &score)
	if event != EventReviewRecorded {
		s.metrics.Transition(string(event))
	}
	s.notifyBuyer(ctx, expr)
	return expr, nil
}

// ApproveConnectionInput tunes the per-direction visibility grants. The
// defaults disclose the seller to the buyer only.
type ApproveConnectionInput struct {
	RevealSellerToBuyer *bool
	RevealBuyerToSeller *bool
}

// ApproveConnection is the single disclosure gate. The status change, the
// communication session, and the audit row commit together; any failure
// rolls everything back and contact details stay hidden.
func (s *Service) ApproveConnection(ctx context.Context, interestID id.InterestID, in ApproveConnectionInput) (*models.CommunicationSession, error) {
	ctx, span := s.tracer.Start(ctx, "interest.ApproveConnection")
	defer span.End()

	if err := s.requireIntermediary(ctx); err != nil {
		return nil, err
	}

	expr, err := s.loadInterest(ctx, interestID)
	if err != nil {
		return nil, err
	}
	if expr.Status != models.StatusApproved {
		return nil, dErrors.New(dErrors.CodeInvalidState, "connection can only be approved from the approved stage")
	}

	actor := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)
	from := expr.Status

	revealSeller := true
	if in.RevealSellerToBuyer != nil {
		revealSeller = *in.RevealSellerToBuyer
	}
	revealBuyer := false
	if in.RevealBuyerToSeller != nil {
		revealBuyer = *in.RevealBuyerToSeller
	}

	session := &models.CommunicationSession{
		ID:                       id.NewSessionID(),
		InterestID:               expr.ID,
		BuyerID:                  expr.BuyerID,
		SellerID:                 expr.SellerID,
		BuyerCanSeeSellerContact: revealSeller,
		SellerCanSeeBuyerContact: revealBuyer,
		CreatedAt:                now,
	}

	if err := expr.Approve(now, revealSeller); err != nil {
		return nil, err
	}
	expr.SessionID = &session.ID

	// The audit row is part of the approval itself: if it cannot be
	// written, the connection does not happen.
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.sessions.Create(ctx, session); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "connection already has a session")
			}
			return err
		}
		if err := s.actions.Append(ctx, &models.MediationAction{
			ID:         id.NewActionID(),
			InterestID: expr.ID,
			ActorID:    actor,
			Event:      models.EventConnectionApproval,
			FromStatus: from,
			ToStatus:   expr.Status,
			CreatedAt:  now,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "record approval action")
		}
		return s.persist(ctx, expr)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(models.EventConnectionApproval))
	if revealSeller {
		s.metrics.ContactRevealed()
	}

	s.notifyBuyer(ctx, expr)
	s.dispatcher.Dispatch(ctx, notify.Notification{
		Recipient: expr.SellerID,
		Kind:      notify.KindConnectionUpdate,
		Payload: map[string]string{
			"interest_id": expr.ID.String(),
			"status":      string(expr.Status),
		},
	})

	s.logger.InfoContext(ctx, "connection approved",
		"interest_id", expr.ID,
		"session_id", session.ID,
		"reveal_seller", revealSeller,
		"reveal_buyer", revealBuyer,
	)
	return session, nil
}

// RejectConnection ends mediation. A reason is mandatory; it lands in the
// audit trail and on the expression.
func (s *Service) RejectConnection(ctx context.Context, interestID id.InterestID, reason string) (*models.InterestExpression, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	expr, err := s.advance(ctx, interestID, models.EventReject, reason, nil)
	if err != nil {
		return nil, err
	}
	return expr, nil
}

// advance runs the common transition path: capability check, state machine
// application, versioned persist, audit row, buyer notice.
func (s *Service) advance(ctx context.Context, interestID id.InterestID, event models.Event, notes string, score *int) (*models.InterestExpression, error) {
	if err := s.requireIntermediary(ctx); err != nil {
		return nil, err
	}

	expr, err := s.loadInterest(ctx, interestID)
	if err != nil {
		return nil, err
	}

	actor := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)
	from := expr.Status

	if err := expr.Apply(event, now); err != nil {
		return nil, err
	}
	if event == models.EventReject {
		expr.RejectionReason = notes
	}
	if err := s.persist(ctx, expr); err != nil {
		return nil, err
	}
	s.appendAction(ctx, expr, actor, event, "", from, expr.Status, notes, score)
	s.metrics.Transition(string(event))
	s.notifyBuyer(ctx, expr)
	return expr, nil
}

func (s *Service) notifyBuyer(ctx context.Context, expr *models.InterestExpression) {
	s.dispatcher.Dispatch(ctx, notify.Notification{
		Recipient: expr.BuyerID,
		Kind:      notify.KindConnectionUpdate,
		Payload: map[string]string{
			"interest_id": expr.ID.String(),
			"status":      string(expr.Status),
		},
	})
}

// Actions returns the mediation audit trail to intermediaries.
func (s *Service) Actions(ctx context.Context, interestID id.InterestID) ([]*models.MediationAction, error) {
	if err := s.requireIntermediary(ctx); err != nil {
		return nil, err
	}
	if _, err := s.loadInterest(ctx, interestID); err != nil {
		return nil, err
	}
	actions, err := s.actions.ListByInterest(ctx, interestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list mediation actions")
	}
	return actions, nil
}

// Session returns the communication session for an interest to one of its
// parties or an intermediary.
func (s *Service) Session(ctx context.Context, interestID id.InterestID) (*models.CommunicationSession, error) {
	expr, err := s.GetInterest(ctx, interestID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.FindByInterest(ctx, expr.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no session for this interest")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load session")
	}
	return session, nil
}

// RevokeSession switches visibility back off, for example after an abuse
// report. Intermediaries only.
func (s *Service) RevokeSession(ctx context.Context, sessionID id.SessionID) error {
	if err := s.requireIntermediary(ctx); err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, sessionID, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "session not found or already revoked")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke session")
	}
	s.logger.InfoContext(ctx, "session revoked",
		"session_id", sessionID,
		"actor_id", requestcontext.UserID(ctx),
	)
	return nil
}
