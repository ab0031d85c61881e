package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"propbridge/internal/interest/models"
	id "propbridge/pkg/domain"
	"propbridge/pkg/platform/sentinel"
	txcontext "propbridge/pkg/platform/tx"
)

const pqUniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...any) error
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// PostgresInterestStore persists interest expressions. A partial unique
// index on (buyer_id, property_id) WHERE status <> 'withdrawn' enforces the
// one-active-expression rule at the database.
type PostgresInterestStore struct {
	db *sql.DB
}

func NewPostgresInterestStore(db *sql.DB) *PostgresInterestStore {
	return &PostgresInterestStore{db: db}
}

const interestColumns = `
	id, buyer_id, property_id, seller_id, match_id, type, message,
	priority, status, buyer_review_score, buyer_review_notes,
	buyer_reviewed_at, seller_check_score, seller_check_notes,
	seller_checked_at, rejection_reason, contact_revealed,
	contact_revealed_at, session_id, withdrawn_at, version, created_at,
	updated_at
`

func (s *PostgresInterestStore) Create(ctx context.Context, e *models.InterestExpression) error {
	query := `
		INSERT INTO interests (` + interestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(e.ID), uuid.UUID(e.BuyerID), uuid.UUID(e.PropertyID),
		uuid.UUID(e.SellerID), matchIDValue(e.MatchID), string(e.Type),
		e.Message, string(e.Priority), string(e.Status),
		e.BuyerReviewScore, e.BuyerReviewNotes, e.BuyerReviewedAt,
		e.SellerCheckScore, e.SellerCheckNotes, e.SellerCheckedAt,
		e.RejectionReason, e.ContactRevealed, e.ContactRevealedAt,
		sessionIDValue(e.SessionID), e.WithdrawnAt, e.Version, e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert interest: %w", err)
	}
	return nil
}

func (s *PostgresInterestStore) FindByID(ctx context.Context, interestID id.InterestID) (*models.InterestExpression, error) {
	query := `SELECT ` + interestColumns + ` FROM interests WHERE id = $1`
	e, err := scanInterest(execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(interestID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find interest: %w", err)
	}
	return e, nil
}

func (s *PostgresInterestStore) FindByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.InterestExpression, error) {
	query := `SELECT ` + interestColumns + `
		FROM interests WHERE buyer_id = $1 ORDER BY created_at`
	return s.query(ctx, query, uuid.UUID(buyerID))
}

func (s *PostgresInterestStore) FindByProperty(ctx context.Context, propertyID id.PropertyID) ([]*models.InterestExpression, error) {
	query := `SELECT ` + interestColumns + `
		FROM interests WHERE property_id = $1 ORDER BY created_at`
	return s.query(ctx, query, uuid.UUID(propertyID))
}

func (s *PostgresInterestStore) FindByStatus(ctx context.Context, status models.ConnectionStatus, limit int) ([]*models.InterestExpression, error) {
	query := `SELECT ` + interestColumns + `
		FROM interests
		WHERE status = $1
		ORDER BY CASE priority
			WHEN 'urgent' THEN 0
			WHEN 'high' THEN 1
			ELSE 2
		END, created_at
		LIMIT $2`
	return s.query(ctx, query, string(status), limit)
}

func (s *PostgresInterestStore) query(ctx context.Context, query string, args ...any) ([]*models.InterestExpression, error) {
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interests: %w", err)
	}
	defer rows.Close()

	var result []*models.InterestExpression
	for rows.Next() {
		e, err := scanInterest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interest: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interests: %w", err)
	}
	return result, nil
}

// UpdateWithVersion is the optimistic concurrency write: the row only moves
// when nobody else touched it since the caller loaded expectedVersion.
func (s *PostgresInterestStore) UpdateWithVersion(ctx context.Context, e *models.InterestExpression, expectedVersion int) error {
	query := `
		UPDATE interests
		SET priority = $3, status = $4, buyer_review_score = $5,
		    buyer_review_notes = $6, buyer_reviewed_at = $7,
		    seller_check_score = $8, seller_check_notes = $9,
		    seller_checked_at = $10, rejection_reason = $11,
		    contact_revealed = $12, contact_revealed_at = $13,
		    session_id = $14, withdrawn_at = $15, version = version + 1,
		    updated_at = $16
		WHERE id = $1 AND version = $2
	`
	res, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(e.ID), expectedVersion,
		string(e.Priority), string(e.Status), e.BuyerReviewScore,
		e.BuyerReviewNotes, e.BuyerReviewedAt, e.SellerCheckScore,
		e.SellerCheckNotes, e.SellerCheckedAt, e.RejectionReason,
		e.ContactRevealed, e.ContactRevealedAt, sessionIDValue(e.SessionID),
		e.WithdrawnAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update interest: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update interest rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a lost race.
		if _, err := s.FindByID(ctx, e.ID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrStale
	}
	e.Version = expectedVersion + 1
	return nil
}

func matchIDValue(matchID *id.MatchID) any {
	if matchID == nil {
		return nil
	}
	return uuid.UUID(*matchID)
}

func sessionIDValue(sessionID *id.SessionID) any {
	if sessionID == nil {
		return nil
	}
	return uuid.UUID(*sessionID)
}

func scanInterest(row rowScanner) (*models.InterestExpression, error) {
	var (
		e             models.InterestExpression
		iid, bid, pid uuid.UUID
		sid           uuid.UUID
		matchID       uuid.NullUUID
		sessionID     uuid.NullUUID
	)
	err := row.Scan(
		&iid, &bid, &pid, &sid, &matchID, &e.Type, &e.Message,
		&e.Priority, &e.Status, &e.BuyerReviewScore, &e.BuyerReviewNotes,
		&e.BuyerReviewedAt, &e.SellerCheckScore, &e.SellerCheckNotes,
		&e.SellerCheckedAt, &e.RejectionReason, &e.ContactRevealed,
		&e.ContactRevealedAt, &sessionID, &e.WithdrawnAt, &e.Version,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.ID = id.InterestID(iid)
	e.BuyerID = id.UserID(bid)
	e.PropertyID = id.PropertyID(pid)
	e.SellerID = id.UserID(sid)
	if matchID.Valid {
		mid := id.MatchID(matchID.UUID)
		e.MatchID = &mid
	}
	if sessionID.Valid {
		sessID := id.SessionID(sessionID.UUID)
		e.SessionID = &sessID
	}
	return &e, nil
}

// PostgresMediationStore appends mediation audit rows.
type PostgresMediationStore struct {
	db *sql.DB
}

func NewPostgresMediationStore(db *sql.DB) *PostgresMediationStore {
	return &PostgresMediationStore{db: db}
}

func (s *PostgresMediationStore) Append(ctx context.Context, action *models.MediationAction) error {
	query := `
		INSERT INTO mediation_actions (id, interest_id, actor_id, event,
			outcome, from_status, to_status, notes, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(action.ID), uuid.UUID(action.InterestID),
		uuid.UUID(action.ActorID), string(action.Event),
		string(action.Outcome), string(action.FromStatus),
		string(action.ToStatus), action.Notes, action.Score,
		action.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert mediation action: %w", err)
	}
	return nil
}

func (s *PostgresMediationStore) ListByInterest(ctx context.Context, interestID id.InterestID) ([]*models.MediationAction, error) {
	rows, err := execer(ctx, s.db).QueryContext(ctx, `
		SELECT id, interest_id, actor_id, event, outcome, from_status,
		       to_status, notes, score, created_at
		FROM mediation_actions
		WHERE interest_id = $1
		ORDER BY created_at
	`, uuid.UUID(interestID))
	if err != nil {
		return nil, fmt.Errorf("query mediation actions: %w", err)
	}
	defer rows.Close()

	var result []*models.MediationAction
	for rows.Next() {
		var (
			a        models.MediationAction
			aid, iid uuid.UUID
			actor    uuid.UUID
		)
		if err := rows.Scan(&aid, &iid, &actor, &a.Event, &a.Outcome,
			&a.FromStatus, &a.ToStatus, &a.Notes, &a.Score,
			&a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mediation action: %w", err)
		}
		a.ID = id.ActionID(aid)
		a.InterestID = id.InterestID(iid)
		a.ActorID = id.UserID(actor)
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mediation actions: %w", err)
	}
	return result, nil
}

// PostgresSessionStore persists communication sessions; the unique index on
// interest_id keeps one session per connection.
type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

const sessionColumns = `
	id, interest_id, buyer_id, seller_id,
	buyer_can_see_seller_contact, seller_can_see_buyer_contact,
	created_at, revoked_at
`

func (s *PostgresSessionStore) Create(ctx context.Context, session *models.CommunicationSession) error {
	query := `
		INSERT INTO communication_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(session.ID), uuid.UUID(session.InterestID),
		uuid.UUID(session.BuyerID), uuid.UUID(session.SellerID),
		session.BuyerCanSeeSellerContact, session.SellerCanSeeBuyerContact,
		session.CreatedAt, session.RevokedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.CommunicationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM communication_sessions WHERE id = $1`
	return s.scanOne(execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(sessionID)))
}

func (s *PostgresSessionStore) FindByInterest(ctx context.Context, interestID id.InterestID) (*models.CommunicationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM communication_sessions WHERE interest_id = $1`
	return s.scanOne(execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(interestID)))
}

func (s *PostgresSessionStore) scanOne(row rowScanner) (*models.CommunicationSession, error) {
	var (
		session            models.CommunicationSession
		sid, iid, bid, sel uuid.UUID
	)
	err := row.Scan(&sid, &iid, &bid, &sel,
		&session.BuyerCanSeeSellerContact, &session.SellerCanSeeBuyerContact,
		&session.CreatedAt, &session.RevokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.ID = id.SessionID(sid)
	session.InterestID = id.InterestID(iid)
	session.BuyerID = id.UserID(bid)
	session.SellerID = id.UserID(sel)
	return &session, nil
}

func (s *PostgresSessionStore) Revoke(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	res, err := execer(ctx, s.db).ExecContext(ctx,
		`UPDATE communication_sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		uuid.UUID(sessionID), at)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke session rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
