package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
	"github.com/obiefule/wallet-platform/internal/logging"
)

type RecordPaymentRequest struct {
	UserID       uuid.UUID
	Amount       domain.Money
	PaymentToken string
	ProviderID   uuid.UUID
	CurrencyID   uuid.UUID
	StoreID      *uuid.UUID
	Metadata     map[string]string
}

// RecordPaymentTransaction registers an external charge in AUTHORIZED state.
// No money moves until the transaction reaches a terminal-success status.
func (s *Service) RecordPaymentTransaction(ctx context.Context, req RecordPaymentRequest) (*domain.PaymentTransaction, error) {
	log := logging.FromContext(ctx)

	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("RecordPaymentTransaction: %w", domain.ErrInvalidAmount)
	}
	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		return nil, fmt.Errorf("RecordPaymentTransaction: %w", err)
	}
	if _, err := s.currencies.GetByID(ctx, req.CurrencyID); err != nil {
		return nil, fmt.Errorf("RecordPaymentTransaction: %w", err)
	}

	provider, err := s.providers.GetByID(ctx, req.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("RecordPaymentTransaction: %w", err)
	}
	if !provider.Active {
		return nil, fmt.Errorf("RecordPaymentTransaction: %w", domain.ErrProviderInactive)
	}

	now := time.Now().UTC()
	p := &domain.PaymentTransaction{
		ID:           uuid.New(),
		Amount:       req.Amount,
		PaymentToken: req.PaymentToken,
		ProviderID:   req.ProviderID,
		StoreID:      req.StoreID,
		Status:       domain.PaymentStatusAuthorized,
		CurrencyID:   req.CurrencyID,
		Metadata:     req.Metadata,
		UserID:       req.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("RecordPaymentTransaction: %w", err)
	}

	log.Info("payment transaction recorded",
		"payment_transaction_id", p.ID,
		"user_id", p.UserID,
		"amount", p.Amount,
		"provider_id", p.ProviderID,
	)

	return p, nil
}

type RecordTransactionRequest struct {
	UserID               uuid.UUID
	Amount               domain.Money
	Type                 domain.TransactionType
	PaymentTransactionID *uuid.UUID
	EMIID                *uuid.UUID
}

// RecordTransaction appends one signed entry to the transaction log. Entries
// tied to a payment transaction stay unapplied until that transaction reaches
// terminal success; deposits and entries on already-successful transactions
// hit the wallet immediately.
func (s *Service) RecordTransaction(ctx context.Context, req RecordTransactionRequest) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	if !req.Type.IsValid() {
		return nil, fmt.Errorf("RecordTransaction: %q: %w", req.Type, domain.ErrInvalidRequest)
	}
	if req.Amount.IsZero() {
		return nil, fmt.Errorf("RecordTransaction: %w", domain.ErrInvalidAmount)
	}
	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		return nil, fmt.Errorf("RecordTransaction: %w", err)
	}

	applyNow := req.Type == domain.TransactionTypeDeposit
	if !applyNow && req.PaymentTransactionID != nil {
		p, err := s.payments.GetByID(ctx, *req.PaymentTransactionID)
		if err != nil {
			return nil, fmt.Errorf("RecordTransaction: %w", err)
		}
		applyNow = p.Status.IsTerminalSuccess()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("RecordTransaction: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	t := &domain.Transaction{
		ID:                   uuid.New(),
		Amount:               req.Amount,
		Type:                 req.Type,
		UserID:               req.UserID,
		PaymentTransactionID: req.PaymentTransactionID,
		EMIID:                req.EMIID,
		CreatedAt:            now,
	}
	if applyNow {
		t.AppliedAt = &now
	}

	if err := s.transactions.Create(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("RecordTransaction: %w", err)
	}

	if applyNow {
		if _, err := s.ledger.ApplyDeltaTx(ctx, tx, req.UserID, req.Amount); err != nil {
			return nil, fmt.Errorf("RecordTransaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("RecordTransaction: commit: %w", err)
	}

	log.Info("transaction recorded",
		"transaction_id", t.ID,
		"user_id", t.UserID,
		"type", t.Type,
		"amount", t.Amount,
		"applied", applyNow,
	)

	if req.Type == domain.TransactionTypeDeposit && req.Amount.IsPositive() && s.sweeper != nil {
		n, err := s.sweeper.SweepDueForUser(ctx, req.UserID, now)
		if err != nil {
			log.Error("deposit-triggered sweep failed", "user_id", req.UserID, "error", err)
		} else if n > 0 {
			log.Info("deposit-triggered sweep flagged installments", "user_id", req.UserID, "count", n)
		}
	}

	return t, nil
}
