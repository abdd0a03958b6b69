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

const transactionColumns = `id, amount, payment_transaction_id, type, user_id,
	emi_id, applied_at, created_at, deleted_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (
			id, amount, payment_transaction_id, type, user_id, emi_id, applied_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Amount, t.PaymentTransactionID, t.Type, t.UserID, t.EMIID, t.AppliedAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE id = $1 AND deleted_at IS NULL`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

// ListUnappliedForUpdate locks every entry linked to a payment transaction
// whose ledger effect is still outstanding.
func (r *TransactionRepository) ListUnappliedForUpdate(ctx context.Context, tx *sql.Tx, paymentTransactionID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE payment_transaction_id = $1 AND applied_at IS NULL AND deleted_at IS NULL
		ORDER BY created_at FOR UPDATE`,
		paymentTransactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListUnappliedForUpdate: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListUnappliedForUpdate: scan: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListUnappliedForUpdate: rows: %w", err)
	}
	return out, nil
}

// ClaimApplied marks an entry as applied. It claims the nil applied_at: a
// false return means another writer already applied this entry and its
// effect must not be repeated.
func (r *TransactionRepository) ClaimApplied(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET applied_at = $1
		WHERE id = $2 AND applied_at IS NULL AND deleted_at IS NULL`,
		at, id,
	)
	if err != nil {
		return false, fmt.Errorf("ClaimApplied: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ClaimApplied: rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByUser: scan: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByUser: rows: %w", err)
	}
	return out, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var paymentTransactionID, emiID uuid.NullUUID

	err := s.Scan(
		&t.ID, &t.Amount, &paymentTransactionID, &t.Type, &t.UserID,
		&emiID, &t.AppliedAt, &t.CreatedAt, &t.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if paymentTransactionID.Valid {
		t.PaymentTransactionID = &paymentTransactionID.UUID
	}
	if emiID.Valid {
		t.EMIID = &emiID.UUID
	}

	return &t, nil
}
