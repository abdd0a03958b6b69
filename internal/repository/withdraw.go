package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
)

const withdrawColumns = `id, user_id, act_by, status, amount, created_at, updated_at, deleted_at`

type WithdrawRepository struct {
	db *sql.DB
}

func NewWithdrawRepository(db *sql.DB) *WithdrawRepository {
	return &WithdrawRepository{db: db}
}

func (r *WithdrawRepository) Create(ctx context.Context, w *domain.WithdrawRequest) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO withdraw_requests (id, user_id, status, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		w.ID, w.UserID, w.Status, w.Amount, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *WithdrawRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+withdrawColumns+` FROM withdraw_requests WHERE id = $1 AND deleted_at IS NULL`, id,
	)
	w, err := scanWithdrawRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return w, nil
}

func (r *WithdrawRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.WithdrawRequest, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+withdrawColumns+` FROM withdraw_requests WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id,
	)
	w, err := scanWithdrawRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return w, nil
}

// UpdateStatus moves a request from one status to another. The from predicate
// rejects writes racing a concurrent decision.
func (r *WithdrawRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.WithdrawStatus, actBy *uuid.UUID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE withdraw_requests SET status = $1, act_by = COALESCE($2, act_by), updated_at = $3
		WHERE id = $4 AND status = $5 AND deleted_at IS NULL`,
		to, actBy, time.Now().UTC(), id, from,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %s -> %s: %w", from, to, domain.ErrInvalidTransition)
	}
	return nil
}

func (r *WithdrawRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+withdrawColumns+` FROM withdraw_requests
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer rows.Close()

	var out []domain.WithdrawRequest
	for rows.Next() {
		w, err := scanWithdrawRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByUser: scan: %w", err)
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByUser: rows: %w", err)
	}
	return out, nil
}

func scanWithdrawRequest(s scanner) (*domain.WithdrawRequest, error) {
	var (
		w     domain.WithdrawRequest
		actBy uuid.NullUUID
	)
	err := s.Scan(&w.ID, &w.UserID, &actBy, &w.Status, &w.Amount, &w.CreatedAt, &w.UpdatedAt, &w.DeletedAt)
	if err != nil {
		return nil, err
	}
	if actBy.Valid {
		w.ActBy = &actBy.UUID
	}
	return &w, nil
}
