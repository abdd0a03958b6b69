package withdraw

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
	"github.com/obiefule/wallet-platform/internal/logging"
)

type withdrawRepo interface {
	Create(ctx context.Context, w *domain.WithdrawRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawRequest, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.WithdrawRequest, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.WithdrawStatus, actBy *uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawRequest, error)
}

type walletRepo interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	EnsureForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.Wallet, error)
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type transactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
}

type ledgerService interface {
	ApplyDeltaTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, delta domain.Money) (*domain.Wallet, error)
}

type Service struct {
	withdrawals  withdrawRepo
	wallets      walletRepo
	users        userRepo
	transactions transactionRepo
	ledger       ledgerService
	db           *sql.DB
}

func NewService(
	withdrawals withdrawRepo,
	wallets walletRepo,
	users userRepo,
	transactions transactionRepo,
	ledgerSvc ledgerService,
	db *sql.DB,
) *Service {
	return &Service{
		withdrawals:  withdrawals,
		wallets:      wallets,
		users:        users,
		transactions: transactions,
		ledger:       ledgerSvc,
		db:           db,
	}
}

// Create opens a withdraw request in review. The amount must be covered by
// the user's balance at request time; the balance itself is only debited at
// transfer.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, amount domain.Money) (*domain.WithdrawRequest, error) {
	log := logging.FromContext(ctx)

	if !amount.IsPositive() {
		return nil, fmt.Errorf("Create: %w", domain.ErrInvalidAmount)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	wallet, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if wallet.Balance.LessThan(amount) {
		return nil, fmt.Errorf("Create: %w", domain.ErrInsufficientFunds)
	}

	now := time.Now().UTC()
	w := &domain.WithdrawRequest{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    domain.WithdrawStatusInReview,
		Amount:    amount,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.withdrawals.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	log.Info("withdraw request opened",
		"withdraw_request_id", w.ID,
		"user_id", userID,
		"amount", amount,
	)
	return w, nil
}

// Act resolves a request in review. Only active operators may decide.
func (s *Service) Act(ctx context.Context, requestID, approverID uuid.UUID, decision domain.WithdrawDecision) (*domain.WithdrawRequest, error) {
	log := logging.FromContext(ctx)

	if !decision.IsValid() {
		return nil, fmt.Errorf("Act: %q: %w", decision, domain.ErrInvalidRequest)
	}

	approver, err := s.users.GetByID(ctx, approverID)
	if err != nil {
		return nil, fmt.Errorf("Act: %w", err)
	}
	if !approver.CanApproveWithdrawals() {
		return nil, fmt.Errorf("Act: user %s: %w", approverID, domain.ErrUnauthorized)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Act: begin tx: %w", err)
	}
	defer tx.Rollback()

	w, err := s.withdrawals.GetForUpdate(ctx, tx, requestID)
	if err != nil {
		return nil, fmt.Errorf("Act: %w", err)
	}

	next := decision.Status()
	if !w.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("Act: %s -> %s: %w", w.Status, next, domain.ErrInvalidTransition)
	}

	if err := s.withdrawals.UpdateStatus(ctx, tx, w.ID, w.Status, next, &approverID); err != nil {
		return nil, fmt.Errorf("Act: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Act: commit: %w", err)
	}

	w.Status = next
	w.ActBy = &approverID

	log.Info("withdraw request resolved",
		"withdraw_request_id", w.ID,
		"decision", decision,
		"act_by", approverID,
	)
	return w, nil
}

// MarkTransferred records that an approved withdrawal left the platform:
// the request moves to transferred and the wallet is debited, atomically.
func (s *Service) MarkTransferred(ctx context.Context, requestID uuid.UUID) (*domain.WithdrawRequest, error) {
	log := logging.FromContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("MarkTransferred: begin tx: %w", err)
	}
	defer tx.Rollback()

	w, err := s.withdrawals.GetForUpdate(ctx, tx, requestID)
	if err != nil {
		return nil, fmt.Errorf("MarkTransferred: %w", err)
	}
	if !w.Status.CanTransitionTo(domain.WithdrawStatusTransferred) {
		return nil, fmt.Errorf("MarkTransferred: %s: %w", w.Status, domain.ErrInvalidTransition)
	}

	wallet, err := s.wallets.EnsureForUpdate(ctx, tx, w.UserID)
	if err != nil {
		return nil, fmt.Errorf("MarkTransferred: %w", err)
	}
	if wallet.Balance.LessThan(w.Amount) {
		return nil, fmt.Errorf("MarkTransferred: %w", domain.ErrInsufficientFunds)
	}

	if err := s.withdrawals.UpdateStatus(ctx, tx, w.ID, w.Status, domain.WithdrawStatusTransferred, nil); err != nil {
		return nil, fmt.Errorf("MarkTransferred: %w", err)
	}

	now := time.Now().UTC()
	entry := &domain.Transaction{
		ID:        uuid.New(),
		Amount:    w.Amount.Neg(),
		Type:      domain.TransactionTypeWithdraw,
		UserID:    w.UserID,
		AppliedAt: &now,
		CreatedAt: now,
	}
	if err := s.transactions.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("MarkTransferred: %w", err)
	}
	if _, err := s.ledger.ApplyDeltaTx(ctx, tx, w.UserID, entry.Amount); err != nil {
		return nil, fmt.Errorf("MarkTransferred: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("MarkTransferred: commit: %w", err)
	}

	w.Status = domain.WithdrawStatusTransferred

	log.Info("withdraw transferred",
		"withdraw_request_id", w.ID,
		"user_id", w.UserID,
		"amount", w.Amount,
	)
	return w, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawRequest, error) {
	w, err := s.withdrawals.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return w, nil
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawRequest, error) {
	out, err := s.withdrawals.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	return out, nil
}
