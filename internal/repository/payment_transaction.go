package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
)

const paymentTransactionColumns = `id, amount, payment_token, provider_id, store_id,
	status, currency_id, metadata, user_id, created_at, updated_at, deleted_at`

type PaymentTransactionRepository struct {
	db *sql.DB
}

func NewPaymentTransactionRepository(db *sql.DB) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{db: db}
}

func (r *PaymentTransactionRepository) Create(ctx context.Context, p *domain.PaymentTransaction) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("Create: marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO payment_transactions (
			id, amount, payment_token, provider_id, store_id,
			status, currency_id, metadata, user_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Amount, p.PaymentToken, p.ProviderID, p.StoreID,
		p.Status, p.CurrencyID, metadata, p.UserID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PaymentTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentTransactionColumns+` FROM payment_transactions
		WHERE id = $1 AND deleted_at IS NULL`, id,
	)
	p, err := scanPaymentTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

// GetForUpdate locks the row so a status transition and its ledger effects
// commit as one unit.
func (r *PaymentTransactionRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.PaymentTransaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+paymentTransactionColumns+` FROM payment_transactions
		WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id,
	)
	p, err := scanPaymentTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return p, nil
}

func (r *PaymentTransactionRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.PaymentTransactionStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE payment_transactions SET status = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

// SoftDelete tombstones a payment transaction for audit retention.
func (r *PaymentTransactionRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_transactions SET deleted_at = $1
		WHERE id = $2 AND deleted_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("SoftDelete: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SoftDelete: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("SoftDelete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *PaymentTransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.PaymentTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentTransactionColumns+` FROM payment_transactions
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer rows.Close()

	var out []domain.PaymentTransaction
	for rows.Next() {
		p, err := scanPaymentTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByUser: scan: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByUser: rows: %w", err)
	}
	return out, nil
}

func scanPaymentTransaction(s scanner) (*domain.PaymentTransaction, error) {
	var p domain.PaymentTransaction
	var storeID uuid.NullUUID
	var metadata []byte

	err := s.Scan(
		&p.ID, &p.Amount, &p.PaymentToken, &p.ProviderID, &storeID,
		&p.Status, &p.CurrencyID, &metadata, &p.UserID, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if storeID.Valid {
		p.StoreID = &storeID.UUID
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &p, nil
}
