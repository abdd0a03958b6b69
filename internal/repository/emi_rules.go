package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/obiefule/wallet-platform/internal/domain"
)

type EMIRuleRepository struct {
	db *sql.DB
}

func NewEMIRuleRepository(db *sql.DB) *EMIRuleRepository {
	return &EMIRuleRepository{db: db}
}

func (r *EMIRuleRepository) CreateRules(ctx context.Context, rules *domain.EMIRules) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO emi_rules (
			id, min_amount, max_amount, max_installments, first_installment_percentage, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		rules.ID, rules.MinAmount, rules.MaxAmount, rules.MaxInstallments,
		rules.FirstInstallmentPercentage, rules.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("CreateRules: %w", err)
	}
	return nil
}

// GetRules returns the most recently created active rule set. Plans are cut
// against a single rule set at a time.
func (r *EMIRuleRepository) GetRules(ctx context.Context) (*domain.EMIRules, error) {
	var rules domain.EMIRules
	err := r.db.QueryRowContext(ctx,
		`SELECT id, min_amount, max_amount, max_installments, first_installment_percentage, created_at, deleted_at
		FROM emi_rules WHERE deleted_at IS NULL
		ORDER BY created_at DESC LIMIT 1`,
	).Scan(
		&rules.ID, &rules.MinAmount, &rules.MaxAmount, &rules.MaxInstallments,
		&rules.FirstInstallmentPercentage, &rules.CreatedAt, &rules.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetRules: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetRules: %w", err)
	}
	return &rules, nil
}

func (r *EMIRuleRepository) CreatePenaltyRule(ctx context.Context, rule *domain.EMIPenaltyRule) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO emi_penalty_rules (id, amount, start_period, end_period, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rule.ID, rule.Amount, rule.StartPeriod, rule.EndPeriod, rule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("CreatePenaltyRule: %w", err)
	}
	return nil
}

func (r *EMIRuleRepository) ListPenaltyRules(ctx context.Context) ([]domain.EMIPenaltyRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, amount, start_period, end_period, created_at, deleted_at
		FROM emi_penalty_rules WHERE deleted_at IS NULL
		ORDER BY start_period, end_period`,
	)
	if err != nil {
		return nil, fmt.Errorf("ListPenaltyRules: %w", err)
	}
	defer rows.Close()

	var out []domain.EMIPenaltyRule
	for rows.Next() {
		var rule domain.EMIPenaltyRule
		if err := rows.Scan(&rule.ID, &rule.Amount, &rule.StartPeriod, &rule.EndPeriod, &rule.CreatedAt, &rule.DeletedAt); err != nil {
			return nil, fmt.Errorf("ListPenaltyRules: scan: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListPenaltyRules: rows: %w", err)
	}
	return out, nil
}

// CreatePenaltyCalculation records one assessment. The (emi_id, days_late)
// unique constraint makes re-runs no-ops: the returned bool reports whether
// this call inserted the row.
func (r *EMIRuleRepository) CreatePenaltyCalculation(ctx context.Context, tx *sql.Tx, calc *domain.EMIPenaltyCalculation) (bool, error) {
	details, err := json.Marshal(calc.Details)
	if err != nil {
		return false, fmt.Errorf("CreatePenaltyCalculation: marshal details: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO emi_penalty_calculations (
			id, emi_id, amount, emi_penalty_rule_id, days_late, penalty_calculation_details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (emi_id, days_late) DO NOTHING`,
		calc.ID, calc.EMIID, calc.Amount, calc.RuleID, calc.DaysLate, details, calc.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("CreatePenaltyCalculation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("CreatePenaltyCalculation: rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *EMIRuleRepository) ListCalculationsByEMI(ctx context.Context, emiID uuid.UUID) ([]domain.EMIPenaltyCalculation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, emi_id, amount, emi_penalty_rule_id, days_late, penalty_calculation_details, created_at, deleted_at
		FROM emi_penalty_calculations
		WHERE emi_id = $1 AND deleted_at IS NULL
		ORDER BY days_late`,
		emiID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListCalculationsByEMI: %w", err)
	}
	defer rows.Close()

	var out []domain.EMIPenaltyCalculation
	for rows.Next() {
		var (
			calc    domain.EMIPenaltyCalculation
			details []byte
		)
		err := rows.Scan(&calc.ID, &calc.EMIID, &calc.Amount, &calc.RuleID, &calc.DaysLate, &details, &calc.CreatedAt, &calc.DeletedAt)
		if err != nil {
			return nil, fmt.Errorf("ListCalculationsByEMI: scan: %w", err)
		}
		if err := json.Unmarshal(details, &calc.Details); err != nil {
			return nil, fmt.Errorf("ListCalculationsByEMI: unmarshal details: %w", err)
		}
		out = append(out, calc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCalculationsByEMI: rows: %w", err)
	}
	return out, nil
}
