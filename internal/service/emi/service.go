package emi

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
	"github.com/obiefule/wallet-platform/internal/logging"
)

type emiRepo interface {
	CreateBatch(ctx context.Context, tx *sql.Tx, emis []*domain.EMI) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EMI, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.EMI, error)
	ListByPaymentTransaction(ctx context.Context, paymentTransactionID uuid.UUID) ([]domain.EMI, error)
	MarkPaid(ctx context.Context, tx *sql.Tx, id uuid.UUID, paidOn time.Time) error
	SweepDue(ctx context.Context, asOf time.Time) (int64, error)
	SweepDueForUser(ctx context.Context, userID uuid.UUID, asOf time.Time) (int64, error)
	ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]domain.EMI, error)
	UpdatePenalty(ctx context.Context, tx *sql.Tx, id uuid.UUID, penalty domain.Money) error
}

type ruleRepo interface {
	GetRules(ctx context.Context) (*domain.EMIRules, error)
	ListPenaltyRules(ctx context.Context) ([]domain.EMIPenaltyRule, error)
	CreatePenaltyCalculation(ctx context.Context, tx *sql.Tx, calc *domain.EMIPenaltyCalculation) (bool, error)
	ListCalculationsByEMI(ctx context.Context, emiID uuid.UUID) ([]domain.EMIPenaltyCalculation, error)
}

type paymentTxRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error)
}

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
}

type ledgerService interface {
	ApplyDeltaTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, delta domain.Money) (*domain.Wallet, error)
}

type eventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, e *domain.WebhookEvent) error
}

type Service struct {
	emis         emiRepo
	rules        ruleRepo
	payments     paymentTxRepo
	transactions transactionRepo
	ledger       ledgerService
	events       eventRepo
	db           *sql.DB
}

func NewService(
	emis emiRepo,
	rules ruleRepo,
	payments paymentTxRepo,
	transactions transactionRepo,
	ledgerSvc ledgerService,
	events eventRepo,
	db *sql.DB,
) *Service {
	return &Service{
		emis:         emis,
		rules:        rules,
		payments:     payments,
		transactions: transactions,
		ledger:       ledgerSvc,
		events:       events,
		db:           db,
	}
}

type CreateScheduleRequest struct {
	PaymentTransactionID uuid.UUID
	Installments         int
	FirstDueDate         time.Time
	GraceDays            int
}

// CreateSchedule cuts an installment plan for a payment transaction. The
// amount must fall inside the active rule set's eligibility band and the
// installment count inside its maximum. Installments are due monthly from
// FirstDueDate and always sum to the transaction amount exactly.
func (s *Service) CreateSchedule(ctx context.Context, req CreateScheduleRequest) ([]domain.EMI, error) {
	log := logging.FromContext(ctx)

	p, err := s.payments.GetByID(ctx, req.PaymentTransactionID)
	if err != nil {
		return nil, fmt.Errorf("CreateSchedule: %w", err)
	}

	rules, err := s.rules.GetRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("CreateSchedule: %w", err)
	}
	if !rules.Eligible(p.Amount) {
		return nil, fmt.Errorf("CreateSchedule: amount %s: %w", p.Amount, domain.ErrOutOfEligibleRange)
	}
	if req.Installments > rules.MaxInstallments {
		return nil, fmt.Errorf("CreateSchedule: %d installments: %w", req.Installments, domain.ErrTooManyInstallments)
	}
	if req.GraceDays < 0 {
		return nil, fmt.Errorf("CreateSchedule: negative grace days: %w", domain.ErrInvalidRequest)
	}

	parts, err := domain.SplitInstallments(p.Amount, req.Installments, rules.FirstInstallmentPercentage)
	if err != nil {
		return nil, fmt.Errorf("CreateSchedule: %w", err)
	}

	now := time.Now().UTC()
	emis := make([]*domain.EMI, len(parts))
	for i, amount := range parts {
		emis[i] = &domain.EMI{
			ID:                   uuid.New(),
			Amount:               amount,
			PaymentTransactionID: p.ID,
			InstallmentNumber:    i + 1,
			ScheduleDate:         req.FirstDueDate.AddDate(0, i, 0),
			Status:               domain.EMIStatusActive,
			Penalty:              domain.ZeroMoney(),
			PenaltyDays:          req.GraceDays,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateSchedule: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.emis.CreateBatch(ctx, tx, emis); err != nil {
		return nil, fmt.Errorf("CreateSchedule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("CreateSchedule: commit: %w", err)
	}

	log.Info("installment plan created",
		"payment_transaction_id", p.ID,
		"installments", len(emis),
		"amount", p.Amount,
	)

	out := make([]domain.EMI, len(emis))
	for i, e := range emis {
		out[i] = *e
	}
	return out, nil
}

// MarkPaid settles one installment: the EMI completes and its amount is paid
// out of the user's wallet, atomically. Penalties are not charged here; those
// hit the wallet when assessed. Settling an already-completed or refunded
// installment is rejected.
func (s *Service) MarkPaid(ctx context.Context, emiID uuid.UUID, paidOn time.Time) (*domain.EMI, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("MarkPaid: begin tx: %w", err)
	}
	defer tx.Rollback()

	e, err := s.emis.GetForUpdate(ctx, tx, emiID)
	if err != nil {
		return nil, fmt.Errorf("MarkPaid: %w", err)
	}
	if e.IsSettled() {
		return nil, fmt.Errorf("MarkPaid: %w", domain.ErrAlreadySettled)
	}

	if err := s.emis.MarkPaid(ctx, tx, e.ID, paidOn); err != nil {
		return nil, fmt.Errorf("MarkPaid: %w", err)
	}

	p, err := s.payments.GetByID(ctx, e.PaymentTransactionID)
	if err != nil {
		return nil, fmt.Errorf("MarkPaid: %w", err)
	}

	now := time.Now().UTC()
	entry := &domain.Transaction{
		ID:                   uuid.New(),
		Amount:               e.Amount.Neg(),
		Type:                 domain.TransactionTypeInstallment,
		UserID:               p.UserID,
		PaymentTransactionID: &p.ID,
		EMIID:                &e.ID,
		AppliedAt:            &now,
		CreatedAt:            now,
	}
	if err := s.transactions.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("MarkPaid: %w", err)
	}
	if _, err := s.ledger.ApplyDeltaTx(ctx, tx, p.UserID, entry.Amount); err != nil {
		return nil, fmt.Errorf("MarkPaid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("MarkPaid: commit: %w", err)
	}

	e.Status = domain.EMIStatusCompleted
	e.PaymentDate = &paidOn

	log.Info("installment settled", "emi_id", e.ID, "paid_on", paidOn)
	return e, nil
}

func (s *Service) GetSchedule(ctx context.Context, paymentTransactionID uuid.UUID) ([]domain.EMI, error) {
	out, err := s.emis.ListByPaymentTransaction(ctx, paymentTransactionID)
	if err != nil {
		return nil, fmt.Errorf("GetSchedule: %w", err)
	}
	return out, nil
}

// SweepDue flips every overdue ACTIVE installment in the system to
// DUE_PAYMENT. Run periodically by the sweeper binary.
func (s *Service) SweepDue(ctx context.Context, asOf time.Time) (int64, error) {
	n, err := s.emis.SweepDue(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("SweepDue: %w", err)
	}
	if n > 0 {
		logging.FromContext(ctx).Info("sweep flagged installments", "count", n)
	}
	return n, nil
}

// SweepDueForUser is the narrow pass run after a user's balance grows.
func (s *Service) SweepDueForUser(ctx context.Context, userID uuid.UUID, asOf time.Time) (int64, error) {
	n, err := s.emis.SweepDueForUser(ctx, userID, asOf)
	if err != nil {
		return 0, fmt.Errorf("SweepDueForUser: %w", err)
	}
	return n, nil
}
