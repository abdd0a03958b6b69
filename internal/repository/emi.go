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

const emiColumns = `id, amount, payment_transaction_id, installment_number,
	emi_schedule_date, emi_payment_date, status, penalty, penalty_days,
	created_at, updated_at, deleted_at`

type EMIRepository struct {
	db *sql.DB
}

func NewEMIRepository(db *sql.DB) *EMIRepository {
	return &EMIRepository{db: db}
}

// CreateBatch inserts a full installment plan atomically.
func (r *EMIRepository) CreateBatch(ctx context.Context, tx *sql.Tx, emis []*domain.EMI) error {
	for _, e := range emis {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO emis (
				id, amount, payment_transaction_id, installment_number,
				emi_schedule_date, status, penalty, penalty_days, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			e.ID, e.Amount, e.PaymentTransactionID, e.InstallmentNumber,
			e.ScheduleDate, e.Status, e.Penalty, e.PenaltyDays, e.CreatedAt, e.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("CreateBatch: installment %d: %w", e.InstallmentNumber, err)
		}
	}
	return nil
}

func (r *EMIRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.EMI, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+emiColumns+` FROM emis WHERE id = $1 AND deleted_at IS NULL`, id,
	)
	e, err := scanEMI(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return e, nil
}

func (r *EMIRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.EMI, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+emiColumns+` FROM emis WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id,
	)
	e, err := scanEMI(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return e, nil
}

func (r *EMIRepository) ListByPaymentTransaction(ctx context.Context, paymentTransactionID uuid.UUID) ([]domain.EMI, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+emiColumns+` FROM emis
		WHERE payment_transaction_id = $1 AND deleted_at IS NULL
		ORDER BY installment_number`,
		paymentTransactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByPaymentTransaction: %w", err)
	}
	defer rows.Close()

	var out []domain.EMI
	for rows.Next() {
		e, err := scanEMI(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByPaymentTransaction: scan: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByPaymentTransaction: rows: %w", err)
	}
	return out, nil
}

// MarkPaid settles an installment. The status predicate makes the write a
// no-op when a concurrent writer settled or refunded the row first.
func (r *EMIRepository) MarkPaid(ctx context.Context, tx *sql.Tx, id uuid.UUID, paidOn time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE emis SET status = $1, emi_payment_date = $2, updated_at = $3
		WHERE id = $4 AND status IN ($5, $6) AND deleted_at IS NULL`,
		domain.EMIStatusCompleted, paidOn, time.Now().UTC(), id,
		domain.EMIStatusActive, domain.EMIStatusDuePayment,
	)
	if err != nil {
		return fmt.Errorf("MarkPaid: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkPaid: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkPaid: %w", domain.ErrAlreadySettled)
	}
	return nil
}

// SweepDue flips every overdue ACTIVE installment to DUE_PAYMENT. Rows that
// were paid or refunded in the meantime are skipped by the status predicate.
func (r *EMIRepository) SweepDue(ctx context.Context, asOf time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE emis SET status = $1, updated_at = $2
		WHERE status = $3 AND emi_schedule_date < $4 AND deleted_at IS NULL`,
		domain.EMIStatusDuePayment, time.Now().UTC(), domain.EMIStatusActive, asOf,
	)
	if err != nil {
		return 0, fmt.Errorf("SweepDue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("SweepDue: rows affected: %w", err)
	}
	return n, nil
}

// SweepDueForUser is the deposit-triggered variant, scoped to one user's
// installment plans.
func (r *EMIRepository) SweepDueForUser(ctx context.Context, userID uuid.UUID, asOf time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE emis SET status = $1, updated_at = $2
		WHERE status = $3 AND emi_schedule_date < $4 AND deleted_at IS NULL
		AND payment_transaction_id IN (
			SELECT id FROM payment_transactions WHERE user_id = $5
		)`,
		domain.EMIStatusDuePayment, time.Now().UTC(), domain.EMIStatusActive, asOf, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("SweepDueForUser: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("SweepDueForUser: rows affected: %w", err)
	}
	return n, nil
}

// ListOverdue returns DUE_PAYMENT installments past their grace period,
// candidates for penalty assessment.
func (r *EMIRepository) ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]domain.EMI, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+emiColumns+` FROM emis
		WHERE status = $1 AND deleted_at IS NULL
		AND emi_schedule_date + make_interval(days => penalty_days) < $2
		ORDER BY emi_schedule_date LIMIT $3`,
		domain.EMIStatusDuePayment, asOf, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListOverdue: %w", err)
	}
	defer rows.Close()

	var out []domain.EMI
	for rows.Next() {
		e, err := scanEMI(rows)
		if err != nil {
			return nil, fmt.Errorf("ListOverdue: scan: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListOverdue: rows: %w", err)
	}
	return out, nil
}

// UpdatePenalty replaces the live penalty on an installment. The historical
// trail stays in emi_penalty_calculations.
func (r *EMIRepository) UpdatePenalty(ctx context.Context, tx *sql.Tx, id uuid.UUID, penalty domain.Money) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE emis SET penalty = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL`,
		penalty, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("UpdatePenalty: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdatePenalty: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdatePenalty: %w", domain.ErrNotFound)
	}
	return nil
}

// MarkRefundedByPaymentTransaction flips the unsettled installments of a
// refunded plan. Completed installments keep their status.
func (r *EMIRepository) MarkRefundedByPaymentTransaction(ctx context.Context, tx *sql.Tx, paymentTransactionID uuid.UUID) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE emis SET status = $1, updated_at = $2
		WHERE payment_transaction_id = $3 AND status IN ($4, $5) AND deleted_at IS NULL`,
		domain.EMIStatusRefunded, time.Now().UTC(), paymentTransactionID,
		domain.EMIStatusActive, domain.EMIStatusDuePayment,
	)
	if err != nil {
		return 0, fmt.Errorf("MarkRefundedByPaymentTransaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("MarkRefundedByPaymentTransaction: rows affected: %w", err)
	}
	return n, nil
}

func scanEMI(s scanner) (*domain.EMI, error) {
	var e domain.EMI
	err := s.Scan(
		&e.ID, &e.Amount, &e.PaymentTransactionID, &e.InstallmentNumber,
		&e.ScheduleDate, &e.PaymentDate, &e.Status, &e.Penalty, &e.PenaltyDays,
		&e.CreatedAt, &e.UpdatedAt, &e.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
