package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "propbridge/pkg/domain"
	"propbridge/pkg/platform/sentinel"
)

// PostgresDirectory reads users and role grants from the identity tables.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) GetRoles(ctx context.Context, userID id.UserID) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = $1`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	if len(roles) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return roles, nil
}

func (d *PostgresDirectory) FindUsersByRole(ctx context.Context, role string) ([]id.UserID, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id FROM user_roles WHERE role = $1`, role)
	if err != nil {
		return nil, fmt.Errorf("query users by role: %w", err)
	}
	defer rows.Close()

	var users []id.UserID
	for rows.Next() {
		var uid uuid.UUID
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, id.UserID(uid))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (d *PostgresDirectory) GetContact(ctx context.Context, userID id.UserID) (*Contact, error) {
	var (
		contact Contact
		uid     uuid.UUID
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, name, phone, email FROM users WHERE id = $1`,
		uuid.UUID(userID)).Scan(&uid, &contact.Name, &contact.Phone, &contact.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find contact: %w", err)
	}
	contact.UserID = id.UserID(uid)
	return &contact, nil
}
