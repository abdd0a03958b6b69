package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
	"github.com/obiefule/wallet-platform/internal/logging"
)

type walletRepo interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	EnsureForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance domain.Money, newVersion int64) error
}

// Service owns wallet balance arithmetic. Every balance write in the system
// goes through ApplyDelta or ApplyDeltaTx so the lock-read-write sequence
// lives in exactly one place.
type Service struct {
	wallets walletRepo
	db      *sql.DB
	retries int
}

func NewService(wallets walletRepo, db *sql.DB, retries int) *Service {
	if retries < 1 {
		retries = 1
	}
	return &Service{wallets: wallets, db: db, retries: retries}
}

// GetBalance returns the user's wallet, creating it on first use.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	w, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetBalance: %w", err)
	}
	return w, nil
}

// ApplyDelta moves the user's balance by delta in its own transaction,
// retrying a bounded number of times when a concurrent writer wins the
// version check.
func (s *Service) ApplyDelta(ctx context.Context, userID uuid.UUID, delta domain.Money) (*domain.Wallet, error) {
	log := logging.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		w, err := s.applyDeltaOnce(ctx, userID, delta)
		if err == nil {
			return w, nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return nil, fmt.Errorf("ApplyDelta: %w", err)
		}
		lastErr = err
		log.Warn("wallet version conflict, retrying",
			"user_id", userID,
			"attempt", attempt,
		)
	}
	return nil, fmt.Errorf("ApplyDelta: retries exhausted: %w", lastErr)
}

func (s *Service) applyDeltaOnce(ctx context.Context, userID uuid.UUID, delta domain.Money) (*domain.Wallet, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("applyDeltaOnce: begin tx: %w", err)
	}
	defer tx.Rollback()

	w, err := s.ApplyDeltaTx(ctx, tx, userID, delta)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("applyDeltaOnce: commit: %w", err)
	}
	return w, nil
}

// ApplyDeltaTx moves the balance inside the caller's transaction. Callers
// composing a larger atomic operation (log entry plus ledger effect) use
// this form so both commit or roll back together.
func (s *Service) ApplyDeltaTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, delta domain.Money) (*domain.Wallet, error) {
	w, err := s.wallets.EnsureForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("ApplyDeltaTx: %w", err)
	}

	w.Balance = w.Balance.Add(delta)
	w.Version++
	if err := s.wallets.UpdateBalance(ctx, tx, w.ID, w.Balance, w.Version); err != nil {
		return nil, fmt.Errorf("ApplyDeltaTx: %w", err)
	}
	return w, nil
}
