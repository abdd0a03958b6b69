package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
	"github.com/obiefule/wallet-platform/internal/logging"
)

// Transition moves a payment transaction along its state machine. Reaching a
// terminal-success status (CAPTURED or REFUNDED) applies every outstanding
// transaction-log entry tied to the payment to the wallet, in the same
// database transaction as the status write. A REFUNDED transition also flips
// the payment's unsettled installments.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, next domain.PaymentTransactionStatus) (*domain.PaymentTransaction, error) {
	log := logging.FromContext(ctx)

	if !next.IsValid() {
		return nil, fmt.Errorf("Transition: %q: %w", next, domain.ErrInvalidRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Transition: begin tx: %w", err)
	}
	defer tx.Rollback()

	p, err := s.payments.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("Transition: %w", err)
	}

	if !p.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("Transition: %s -> %s: %w", p.Status, next, domain.ErrInvalidTransition)
	}

	if err := s.payments.UpdateStatus(ctx, tx, p.ID, next); err != nil {
		return nil, fmt.Errorf("Transition: %w", err)
	}
	p.Status = next

	var applied int
	if next.IsTerminalSuccess() {
		applied, err = s.applyOutstanding(ctx, tx, p)
		if err != nil {
			return nil, fmt.Errorf("Transition: %w", err)
		}
	}

	if next == domain.PaymentStatusRefunded {
		n, err := s.emis.MarkRefundedByPaymentTransaction(ctx, tx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("Transition: %w", err)
		}
		if n > 0 {
			log.Info("installments marked refunded", "payment_transaction_id", p.ID, "count", n)
		}
	}

	if err := s.enqueueStatusEvent(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("Transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Transition: commit: %w", err)
	}

	log.Info("payment transaction transitioned",
		"payment_transaction_id", p.ID,
		"status", p.Status,
		"entries_applied", applied,
	)

	return p, nil
}

// applyOutstanding locks the payment's unapplied entries, claims each one,
// and moves the owning wallet by the entry amount. Entries another writer
// already claimed are skipped, which is what makes a repeated capture a
// no-op on balances.
func (s *Service) applyOutstanding(ctx context.Context, tx *sql.Tx, p *domain.PaymentTransaction) (int, error) {
	entries, err := s.transactions.ListUnappliedForUpdate(ctx, tx, p.ID)
	if err != nil {
		return 0, fmt.Errorf("applyOutstanding: %w", err)
	}

	now := time.Now().UTC()
	applied := 0
	for i := range entries {
		entry := &entries[i]
		claimed, err := s.transactions.ClaimApplied(ctx, tx, entry.ID, now)
		if err != nil {
			return 0, fmt.Errorf("applyOutstanding: %w", err)
		}
		if !claimed {
			continue
		}
		if _, err := s.ledger.ApplyDeltaTx(ctx, tx, entry.UserID, entry.Amount); err != nil {
			return 0, fmt.Errorf("applyOutstanding: entry %s: %w", entry.ID, err)
		}
		applied++
	}
	return applied, nil
}

func (s *Service) enqueueStatusEvent(ctx context.Context, tx *sql.Tx, p *domain.PaymentTransaction) error {
	var eventType domain.WebhookEventType
	switch p.Status {
	case domain.PaymentStatusCaptured:
		eventType = domain.WebhookEventPaymentCaptured
	case domain.PaymentStatusRefunded:
		eventType = domain.WebhookEventPaymentRefunded
	case domain.PaymentStatusCancelled:
		eventType = domain.WebhookEventPaymentCancelled
	case domain.PaymentStatusFailed:
		eventType = domain.WebhookEventPaymentFailed
	default:
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"payment_transaction_id": p.ID,
		"user_id":                p.UserID,
		"amount":                 p.Amount,
		"status":                 p.Status,
	})
	if err != nil {
		return fmt.Errorf("enqueueStatusEvent: marshal: %w", err)
	}

	now := time.Now().UTC()
	event := &domain.WebhookEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    domain.WebhookEventStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("enqueueStatusEvent: %w", err)
	}
	return nil
}
