package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
)

type WebhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Create enqueues an event inside the caller's transaction so the event and
// the state change it announces commit or roll back together.
func (r *WebhookEventRepository) Create(ctx context.Context, tx *sql.Tx, e *domain.WebhookEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO webhook_events (id, event_type, payload, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.EventType, []byte(e.Payload), e.Status, e.Attempts, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *WebhookEventRepository) GetPending(ctx context.Context, limit int) ([]domain.WebhookEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_type, payload, status, attempts, created_at, updated_at
		FROM webhook_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`,
		domain.WebhookEventStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("GetPending: %w", err)
	}
	defer rows.Close()

	var out []domain.WebhookEvent
	for rows.Next() {
		var (
			e       domain.WebhookEvent
			payload []byte
		)
		err := rows.Scan(&e.ID, &e.EventType, &payload, &e.Status, &e.Attempts, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("GetPending: scan: %w", err)
		}
		e.Payload = payload
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetPending: rows: %w", err)
	}
	return out, nil
}

func (r *WebhookEventRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WebhookEventStatus, attempts int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events SET status = $1, attempts = $2, updated_at = $3 WHERE id = $4`,
		status, attempts, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	return nil
}
