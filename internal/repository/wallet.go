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

const walletColumns = `id, user_id, balance, version, created_at, updated_at`

type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetOrCreate returns the user's wallet, creating an empty one on first use.
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (id, user_id, balance, version, created_at, updated_at)
		VALUES ($1, $2, 0, 0, now(), now())
		ON CONFLICT (user_id) DO NOTHING`,
		uuid.New(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetOrCreate: insert: %w", err)
	}
	return r.GetByUserID(ctx, userID)
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByUserID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	return w, nil
}

// EnsureForUpdate creates the user's wallet if missing, then locks it, all
// inside the caller's transaction.
func (r *WalletRepository) EnsureForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO wallets (id, user_id, balance, version, created_at, updated_at)
		VALUES ($1, $2, 0, 0, now(), now())
		ON CONFLICT (user_id) DO NOTHING`,
		uuid.New(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("EnsureForUpdate: insert: %w", err)
	}
	return r.GetForUpdate(ctx, tx, userID)
}

// GetForUpdate locks the wallet row for the duration of tx. All balance
// writes for one user are serialized on this lock.
func (r *WalletRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return w, nil
}

// UpdateBalance writes the new balance guarded by the version the caller
// read. Zero rows affected means another writer won the race.
func (r *WalletRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance domain.Money, newVersion int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, version = $2, updated_at = $3
		WHERE id = $4 AND version = $5`,
		newBalance, newVersion, time.Now().UTC(), id, newVersion-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalance: %w", domain.ErrConcurrencyConflict)
	}
	return nil
}

func scanWallet(s scanner) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.Scan(&w.ID, &w.UserID, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
