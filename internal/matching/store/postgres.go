package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"propbridge/internal/geo"
	"propbridge/internal/matching/models"
	id "propbridge/pkg/domain"
	"propbridge/pkg/platform/sentinel"
	txcontext "propbridge/pkg/platform/tx"
)

type rowScanner interface {
	Scan(dest ...any) error
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresRequirementStore persists requirements in the requirements table.
type PostgresRequirementStore struct {
	db *sql.DB
}

func NewPostgresRequirementStore(db *sql.DB) *PostgresRequirementStore {
	return &PostgresRequirementStore{db: db}
}

func (s *PostgresRequirementStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const requirementColumns = `
	id, buyer_id, city, state, locality, pincode, lat, lng,
	min_budget, max_budget, budget_type, property_type, listing_type,
	min_area_sqft, bedrooms, bathrooms, status, match_count,
	last_matched_at, expires_at, created_at, updated_at
`

func (s *PostgresRequirementStore) Create(ctx context.Context, req *models.Requirement) error {
	query := `
		INSERT INTO requirements (` + requirementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	var lat, lng *float64
	if req.Coordinates != nil {
		lat, lng = &req.Coordinates.Lat, &req.Coordinates.Lng
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID), uuid.UUID(req.BuyerID), req.City, req.State,
		req.Locality, req.Pincode, lat, lng,
		req.MinBudget, req.MaxBudget, string(req.BudgetType),
		req.PropertyType, string(req.ListingType), req.MinAreaSqFt,
		req.Bedrooms, req.Bathrooms, string(req.Status), req.MatchCount,
		req.LastMatchedAt, req.ExpiresAt, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert requirement: %w", err)
	}
	return nil
}

func (s *PostgresRequirementStore) FindByID(ctx context.Context, requirementID id.RequirementID) (*models.Requirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM requirements WHERE id = $1`
	req, err := scanRequirement(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(requirementID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find requirement: %w", err)
	}
	return req, nil
}

func (s *PostgresRequirementStore) FindByBuyer(ctx context.Context, buyerID id.UserID) ([]*models.Requirement, error) {
	query := `SELECT ` + requirementColumns + `
		FROM requirements WHERE buyer_id = $1 ORDER BY created_at`
	return s.queryRequirements(ctx, query, uuid.UUID(buyerID))
}

func (s *PostgresRequirementStore) FindActiveByCity(ctx context.Context, city string, now time.Time) ([]*models.Requirement, error) {
	query := `SELECT ` + requirementColumns + `
		FROM requirements
		WHERE status = $1 AND LOWER(city) = LOWER($2)
		  AND (expires_at IS NULL OR expires_at > $3)`
	return s.queryRequirements(ctx, query, string(models.RequirementActive), city, now)
}

func (s *PostgresRequirementStore) queryRequirements(ctx context.Context, query string, args ...any) ([]*models.Requirement, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requirements: %w", err)
	}
	defer rows.Close()

	var result []*models.Requirement
	for rows.Next() {
		req, err := scanRequirement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan requirement: %w", err)
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requirements: %w", err)
	}
	return result, nil
}

func (s *PostgresRequirementStore) Update(ctx context.Context, req *models.Requirement) error {
	query := `
		UPDATE requirements
		SET city = $2, state = $3, locality = $4, pincode = $5,
		    lat = $6, lng = $7, min_budget = $8, max_budget = $9,
		    budget_type = $10, property_type = $11, listing_type = $12,
		    min_area_sqft = $13, bedrooms = $14, bathrooms = $15,
		    status = $16, expires_at = $17, updated_at = $18
		WHERE id = $1
	`
	var lat, lng *float64
	if req.Coordinates != nil {
		lat, lng = &req.Coordinates.Lat, &req.Coordinates.Lng
	}
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID), req.City, req.State, req.Locality, req.Pincode,
		lat, lng, req.MinBudget, req.MaxBudget, string(req.BudgetType),
		req.PropertyType, string(req.ListingType), req.MinAreaSqFt,
		req.Bedrooms, req.Bathrooms, string(req.Status), req.ExpiresAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update requirement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update requirement rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresRequirementStore) RecordMatch(ctx context.Context, requirementID id.RequirementID, at time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE requirements
		SET match_count = match_count + 1, last_matched_at = $2, updated_at = $2
		WHERE id = $1
	`, uuid.UUID(requirementID), at)
	if err != nil {
		return fmt.Errorf("record match on requirement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record match rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanRequirement(row rowScanner) (*models.Requirement, error) {
	var (
		req      models.Requirement
		rid, bid uuid.UUID
		lat, lng sql.NullFloat64
	)
	err := row.Scan(
		&rid, &bid, &req.City, &req.State, &req.Locality, &req.Pincode,
		&lat, &lng, &req.MinBudget, &req.MaxBudget, &req.BudgetType,
		&req.PropertyType, &req.ListingType, &req.MinAreaSqFt,
		&req.Bedrooms, &req.Bathrooms, &req.Status, &req.MatchCount,
		&req.LastMatchedAt, &req.ExpiresAt, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.ID = id.RequirementID(rid)
	req.BuyerID = id.UserID(bid)
	if lat.Valid && lng.Valid {
		req.Coordinates = &geo.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &req, nil
}

// PostgresMatchStore persists matches in the matches table. The unique
// index on (requirement_id, property_id) is the idempotency guard.
type PostgresMatchStore struct {
	db *sql.DB
}

func NewPostgresMatchStore(db *sql.DB) *PostgresMatchStore {
	return &PostgresMatchStore{db: db}
}

func (s *PostgresMatchStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const matchColumns = `
	id, requirement_id, property_id, buyer_id, seller_id,
	location_class, budget_overlap_pct, score, reasons,
	buyer_notified, seller_notified, cs_notified,
	buyer_interested, buyer_interested_at, cs_reviewed, cs_reviewed_at,
	created_at
`

func (s *PostgresMatchStore) Create(ctx context.Context, m *models.Match) error {
	query := `
		INSERT INTO matches (` + matchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17)
		ON CONFLICT (requirement_id, property_id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(m.ID), uuid.UUID(m.RequirementID), uuid.UUID(m.PropertyID),
		uuid.UUID(m.BuyerID), uuid.UUID(m.SellerID),
		string(m.LocationClass), m.BudgetOverlapPct, m.Score,
		pq.Array(m.Reasons),
		m.BuyerNotified, m.SellerNotified, m.CSNotified,
		m.BuyerInterested, m.BuyerInterestedAt, m.CSReviewed, m.CSReviewedAt,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert match rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresMatchStore) FindByID(ctx context.Context, matchID id.MatchID) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	m, err := scanMatch(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(matchID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find match: %w", err)
	}
	return m, nil
}

func (s *PostgresMatchStore) FindByRequirement(ctx context.Context, requirementID id.RequirementID) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches WHERE requirement_id = $1 ORDER BY created_at`
	return s.queryMatches(ctx, query, uuid.UUID(requirementID))
}

func (s *PostgresMatchStore) FindByProperty(ctx context.Context, propertyID id.PropertyID) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches WHERE property_id = $1 ORDER BY created_at`
	return s.queryMatches(ctx, query, uuid.UUID(propertyID))
}

func (s *PostgresMatchStore) FindUnreviewed(ctx context.Context, limit int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches WHERE NOT cs_reviewed ORDER BY created_at LIMIT $1`
	return s.queryMatches(ctx, query, limit)
}

func (s *PostgresMatchStore) queryMatches(ctx context.Context, query string, args ...any) ([]*models.Match, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var result []*models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return result, nil
}

func (s *PostgresMatchStore) MarkNotified(ctx context.Context, matchID id.MatchID, channel NotifyChannel) error {
	var column string
	switch channel {
	case NotifyBuyer:
		column = "buyer_notified"
	case NotifySeller:
		column = "seller_notified"
	case NotifyCS:
		column = "cs_notified"
	default:
		return fmt.Errorf("unknown notify channel %q", channel)
	}
	return s.setFlag(ctx, matchID, `UPDATE matches SET `+column+` = TRUE WHERE id = $1`)
}

func (s *PostgresMatchStore) SetBuyerInterested(ctx context.Context, matchID id.MatchID, at time.Time) error {
	return s.setFlag(ctx, matchID,
		`UPDATE matches SET buyer_interested = TRUE, buyer_interested_at = $2 WHERE id = $1`, at)
}

func (s *PostgresMatchStore) SetCSReviewed(ctx context.Context, matchID id.MatchID, at time.Time) error {
	return s.setFlag(ctx, matchID,
		`UPDATE matches SET cs_reviewed = TRUE, cs_reviewed_at = $2 WHERE id = $1`, at)
}

func (s *PostgresMatchStore) setFlag(ctx context.Context, matchID id.MatchID, query string, extra ...any) error {
	args := append([]any{uuid.UUID(matchID)}, extra...)
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update match flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match flag rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var (
		m                 models.Match
		mid, rid, pid     uuid.UUID
		buyerID, sellerID uuid.UUID
		reasons           pq.StringArray
	)
	err := row.Scan(
		&mid, &rid, &pid, &buyerID, &sellerID,
		&m.LocationClass, &m.BudgetOverlapPct, &m.Score, &reasons,
		&m.BuyerNotified, &m.SellerNotified, &m.CSNotified,
		&m.BuyerInterested, &m.BuyerInterestedAt, &m.CSReviewed, &m.CSReviewedAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.ID = id.MatchID(mid)
	m.RequirementID = id.RequirementID(rid)
	m.PropertyID = id.PropertyID(pid)
	m.BuyerID = id.UserID(buyerID)
	m.SellerID = id.UserID(sellerID)
	m.Reasons = []string(reasons)
	return &m, nil
}
