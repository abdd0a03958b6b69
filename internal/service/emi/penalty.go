package emi

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

// AssessPenalty computes and applies the late penalty for one installment as
// of the given time. The penalty replaces any earlier one on the installment;
// each assessment leaves an immutable calculation row, and the unique
// (emi_id, days_late) constraint makes re-running the same assessment a
// no-op. The wallet debit for the penalty delta rides in the same database
// transaction.
//
// A nil calculation with a nil error means nothing was assessed: the
// installment is inside its grace period or this exact assessment already
// ran.
func (s *Service) AssessPenalty(ctx context.Context, emiID uuid.UUID, asOf time.Time) (*domain.EMIPenaltyCalculation, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("AssessPenalty: begin tx: %w", err)
	}
	defer tx.Rollback()

	e, err := s.emis.GetForUpdate(ctx, tx, emiID)
	if err != nil {
		return nil, fmt.Errorf("AssessPenalty: %w", err)
	}
	if e.IsSettled() {
		return nil, fmt.Errorf("AssessPenalty: %w", domain.ErrAlreadySettled)
	}

	daysLate := e.DaysLate(asOf)
	if daysLate <= e.PenaltyDays {
		return nil, nil
	}

	rules, err := s.rules.ListPenaltyRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("AssessPenalty: %w", err)
	}
	rule := domain.ResolvePenaltyRule(rules, daysLate)
	if rule == nil {
		return nil, fmt.Errorf("AssessPenalty: %d days late: %w", daysLate, domain.ErrNoPenaltyRuleForPeriod)
	}

	penalty := rule.PenaltyAmount(e.Amount)
	now := time.Now().UTC()
	calc := &domain.EMIPenaltyCalculation{
		ID:       uuid.New(),
		EMIID:    e.ID,
		Amount:   penalty,
		RuleID:   rule.ID,
		DaysLate: daysLate,
		Details: domain.PenaltyDetails{
			DaysLate:   daysLate,
			Rate:       rule.Amount,
			BaseAmount: e.Amount,
			Penalty:    penalty,
			AssessedAt: now,
		},
		CreatedAt: now,
	}

	inserted, err := s.rules.CreatePenaltyCalculation(ctx, tx, calc)
	if err != nil {
		return nil, fmt.Errorf("AssessPenalty: %w", err)
	}
	if !inserted {
		return nil, nil
	}

	// The installment carries only the latest penalty; the delta against the
	// previous one is what actually moves the wallet.
	delta := penalty.Sub(e.Penalty)

	if err := s.emis.UpdatePenalty(ctx, tx, e.ID, penalty); err != nil {
		return nil, fmt.Errorf("AssessPenalty: %w", err)
	}

	if !delta.IsZero() {
		p, err := s.payments.GetByID(ctx, e.PaymentTransactionID)
		if err != nil {
			return nil, fmt.Errorf("AssessPenalty: %w", err)
		}

		entry := &domain.Transaction{
			ID:                   uuid.New(),
			Amount:               delta.Neg(),
			Type:                 domain.TransactionTypeInstallment,
			UserID:               p.UserID,
			PaymentTransactionID: &p.ID,
			EMIID:                &e.ID,
			AppliedAt:            &now,
			CreatedAt:            now,
		}
		if err := s.transactions.Create(ctx, tx, entry); err != nil {
			return nil, fmt.Errorf("AssessPenalty: %w", err)
		}
		if _, err := s.ledger.ApplyDeltaTx(ctx, tx, p.UserID, entry.Amount); err != nil {
			return nil, fmt.Errorf("AssessPenalty: %w", err)
		}
	}

	if err := s.enqueuePenaltyEvent(ctx, tx, calc); err != nil {
		return nil, fmt.Errorf("AssessPenalty: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("AssessPenalty: commit: %w", err)
	}

	log.Info("penalty assessed",
		"emi_id", e.ID,
		"days_late", daysLate,
		"rate", rule.Amount,
		"penalty", penalty,
	)

	return calc, nil
}

// AssessOverdue runs penalty assessment across overdue installments, up to
// limit per call. Failures on individual installments are logged and do not
// stop the pass.
func (s *Service) AssessOverdue(ctx context.Context, asOf time.Time, limit int) (int, error) {
	log := logging.FromContext(ctx)

	overdue, err := s.emis.ListOverdue(ctx, asOf, limit)
	if err != nil {
		return 0, fmt.Errorf("AssessOverdue: %w", err)
	}

	assessed := 0
	for i := range overdue {
		calc, err := s.AssessPenalty(ctx, overdue[i].ID, asOf)
		if err != nil {
			log.Error("penalty assessment failed", "emi_id", overdue[i].ID, "error", err)
			continue
		}
		if calc != nil {
			assessed++
		}
	}
	return assessed, nil
}

// PenaltyHistory lists every assessment ever recorded for an installment,
// oldest first. The live EMI carries only the latest penalty; this is the
// audit trail behind it.
func (s *Service) PenaltyHistory(ctx context.Context, emiID uuid.UUID) ([]domain.EMIPenaltyCalculation, error) {
	if _, err := s.emis.GetByID(ctx, emiID); err != nil {
		return nil, fmt.Errorf("PenaltyHistory: %w", err)
	}
	out, err := s.rules.ListCalculationsByEMI(ctx, emiID)
	if err != nil {
		return nil, fmt.Errorf("PenaltyHistory: %w", err)
	}
	return out, nil
}

func (s *Service) enqueuePenaltyEvent(ctx context.Context, tx *sql.Tx, calc *domain.EMIPenaltyCalculation) error {
	payload, err := json.Marshal(map[string]any{
		"emi_id":    calc.EMIID,
		"days_late": calc.DaysLate,
		"penalty":   calc.Amount,
		"rule_id":   calc.RuleID,
	})
	if err != nil {
		return fmt.Errorf("enqueuePenaltyEvent: marshal: %w", err)
	}

	now := time.Now().UTC()
	event := &domain.WebhookEvent{
		ID:        uuid.New(),
		EventType: domain.WebhookEventPenaltyAssessed,
		Payload:   payload,
		Status:    domain.WebhookEventStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("enqueuePenaltyEvent: %w", err)
	}
	return nil
}
