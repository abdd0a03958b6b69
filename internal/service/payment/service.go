package payment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
)

type paymentTxRepo interface {
	Create(ctx context.Context, p *domain.PaymentTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.PaymentTransaction, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.PaymentTransactionStatus) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.PaymentTransaction, error)
}

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	ListUnappliedForUpdate(ctx context.Context, tx *sql.Tx, paymentTransactionID uuid.UUID) ([]domain.Transaction, error)
	ClaimApplied(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
}

type ledgerService interface {
	ApplyDeltaTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, delta domain.Money) (*domain.Wallet, error)
}

type emiRepo interface {
	MarkRefundedByPaymentTransaction(ctx context.Context, tx *sql.Tx, paymentTransactionID uuid.UUID) (int64, error)
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type currencyRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Currency, error)
}

type providerRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentProvider, error)
}

type eventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, e *domain.WebhookEvent) error
}

// dueSweeper flips a user's overdue installments after their balance grows.
type dueSweeper interface {
	SweepDueForUser(ctx context.Context, userID uuid.UUID, asOf time.Time) (int64, error)
}

type Service struct {
	payments     paymentTxRepo
	transactions transactionRepo
	ledger       ledgerService
	emis         emiRepo
	users        userRepo
	currencies   currencyRepo
	providers    providerRepo
	events       eventRepo
	sweeper      dueSweeper
	db           *sql.DB
}

func NewService(
	payments paymentTxRepo,
	transactions transactionRepo,
	ledgerSvc ledgerService,
	emis emiRepo,
	users userRepo,
	currencies currencyRepo,
	providers providerRepo,
	events eventRepo,
	db *sql.DB,
) *Service {
	return &Service{
		payments:     payments,
		transactions: transactions,
		ledger:       ledgerSvc,
		emis:         emis,
		users:        users,
		currencies:   currencies,
		providers:    providers,
		events:       events,
		db:           db,
	}
}

// SetSweeper wires the deposit-triggered sweep. Optional: without it deposits
// still apply, overdue installments just wait for the periodic pass.
func (s *Service) SetSweeper(sw dueSweeper) {
	s.sweeper = sw
}

func (s *Service) GetPaymentTransaction(ctx context.Context, id uuid.UUID) (*domain.PaymentTransaction, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetPaymentTransaction: %w", err)
	}
	return p, nil
}

func (s *Service) ListUserPaymentTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.PaymentTransaction, error) {
	out, err := s.payments.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListUserPaymentTransactions: %w", err)
	}
	return out, nil
}

func (s *Service) ListUserTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	out, err := s.transactions.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListUserTransactions: %w", err)
	}
	return out, nil
}
