package property

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "propbridge/pkg/domain"
	"propbridge/pkg/platform/sentinel"
)

// PostgresStore reads listings from the properties table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const propertyColumns = `
	id, seller_id, title, status, city, locality, state, price,
	listing_type, property_type, bedrooms, bathrooms, area_sqft, created_at
`

func (s *PostgresStore) FindByID(ctx context.Context, propertyID id.PropertyID) (*Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(propertyID))
	p, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find property: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindLiveByCity(ctx context.Context, city string, listingType ListingType) ([]*Property, error) {
	query := `SELECT ` + propertyColumns + `
		FROM properties
		WHERE status = $1 AND LOWER(city) = LOWER($2)
		  AND ($3 = '' OR listing_type = $3)`
	rows, err := s.db.QueryContext(ctx, query, string(StatusLive), city, string(listingType))
	if err != nil {
		return nil, fmt.Errorf("query live properties: %w", err)
	}
	defer rows.Close()

	var result []*Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*Property, error) {
	var (
		p        Property
		pid, sid uuid.UUID
	)
	err := row.Scan(
		&pid, &sid, &p.Title, &p.Status, &p.City, &p.Locality, &p.State,
		&p.Price, &p.ListingType, &p.PropertyType, &p.Bedrooms,
		&p.Bathrooms, &p.AreaSqFt, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ID = id.PropertyID(pid)
	p.SellerID = id.UserID(sid)
	return &p, nil
}
