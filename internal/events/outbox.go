package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	txcontext "propbridge/pkg/platform/tx"
)

// OutboxStore implements Publisher by appending to the event outbox table.
// When the context carries a transaction the append joins it, making the
// event atomic with the match row.
type OutboxStore struct {
	db *sql.DB
}

func NewOutbox(db *sql.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *OutboxStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *OutboxStore) PublishMatchFound(ctx context.Context, event MatchFound) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal match event: %w", err)
	}

	query := `
		INSERT INTO event_outbox (id, event_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		"match_found",
		uuid.UUID(event.MatchID),
		payload,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// PendingEntry is an outbox row awaiting publication.
type PendingEntry struct {
	ID        uuid.UUID
	EventType string
	Key       uuid.UUID
	Payload   []byte
}

// FetchPending returns up to limit unpublished entries, oldest first.
func (s *OutboxStore) FetchPending(ctx context.Context, limit int) ([]PendingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, aggregate_id, payload
		FROM event_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []PendingEntry
	for rows.Next() {
		var entry PendingEntry
		if err := rows.Scan(&entry.ID, &entry.EventType, &entry.Key, &entry.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps an entry so it is never shipped twice.
func (s *OutboxStore) MarkPublished(ctx context.Context, entryID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE event_outbox SET published_at = $1 WHERE id = $2`,
		time.Now(), entryID)
	if err != nil {
		return fmt.Errorf("mark outbox entry published: %w", err)
	}
	return nil
}
