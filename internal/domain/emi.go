package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EMIStatus string

const (
	EMIStatusActive     EMIStatus = "ACTIVE"
	EMIStatusCompleted  EMIStatus = "COMPLETED"
	EMIStatusDuePayment EMIStatus = "DUE_PAYMENT"
	EMIStatusRefunded   EMIStatus = "REFUNDED"
)

// EMI is one installment of a payment transaction's plan. InstallmentNumber
// values form a contiguous 1..N sequence within a plan.
type EMI struct {
	ID                   uuid.UUID
	Amount               Money
	PaymentTransactionID uuid.UUID
	InstallmentNumber    int
	ScheduleDate         time.Time
	PaymentDate          *time.Time
	Status               EMIStatus
	Penalty              Money
	PenaltyDays          int
	CreatedAt            time.Time
	UpdatedAt            time.Time
	DeletedAt            *time.Time
}

// IsSettled reports whether the installment can no longer be paid.
func (e *EMI) IsSettled() bool {
	return e.Status == EMIStatusCompleted || e.Status == EMIStatusRefunded
}

// DaysLate returns how many days past the schedule date asOf falls, clamped
// to zero for installments not yet due.
func (e *EMI) DaysLate(asOf time.Time) int {
	days := int(asOf.Sub(e.ScheduleDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// EMIRules bounds which amounts are eligible for an installment plan and how
// the first installment is weighted.
type EMIRules struct {
	ID                         uuid.UUID
	MinAmount                  Money
	MaxAmount                  Money
	MaxInstallments            int
	FirstInstallmentPercentage decimal.Decimal
	CreatedAt                  time.Time
	DeletedAt                  *time.Time
}

// Validate checks the rule invariants: min <= max, positive installment
// count, first percentage in (0, 100].
func (r *EMIRules) Validate() error {
	if r.MinAmount.IsNegative() || r.MaxAmount.IsNegative() {
		return ErrInvalidAmount
	}
	if r.MaxAmount.LessThan(r.MinAmount) {
		return fmt.Errorf("min_amount exceeds max_amount: %w", ErrInvalidAmount)
	}
	if r.MaxInstallments < 1 {
		return fmt.Errorf("max_installments must be positive: %w", ErrInvalidRequest)
	}
	hundred := decimal.NewFromInt(100)
	if !r.FirstInstallmentPercentage.IsPositive() || r.FirstInstallmentPercentage.GreaterThan(hundred) {
		return fmt.Errorf("first_installment_percentage must be in (0, 100]: %w", ErrInvalidRequest)
	}
	return nil
}

// Eligible reports whether amount falls inside the inclusive [min, max] band.
func (r *EMIRules) Eligible(amount Money) bool {
	return !amount.LessThan(r.MinAmount) && !amount.GreaterThan(r.MaxAmount)
}

// SplitInstallments divides total into n installment amounts. Installment 1
// carries firstPct percent of the total (rounded to two decimals); the
// residual is split evenly across the remaining slots, truncating each share
// so the remainder absorbed into the last installment is never negative and
// the parts always sum to total exactly. A single-installment plan carries
// the full amount.
func SplitInstallments(total Money, n int, firstPct decimal.Decimal) ([]Money, error) {
	if total.IsNegative() || total.IsZero() {
		return nil, ErrInvalidAmount
	}
	if n < 1 {
		return nil, fmt.Errorf("installment count must be positive: %w", ErrInvalidRequest)
	}
	if n == 1 {
		return []Money{total}, nil
	}

	first := total.Percent(firstPct)
	residual := total.Sub(first)
	if residual.IsNegative() {
		return nil, ErrInvalidAmount
	}

	parts := make([]Money, n)
	parts[0] = first

	per := residual.SplitEven(n - 1)
	for i := 1; i < n-1; i++ {
		parts[i] = per
	}
	parts[n-1] = residual.Sub(per.Mul(int64(n - 2)))

	return parts, nil
}

// EMIPenaltyRule is a banded late-payment percentage. Amount is a rate, not
// a currency value: the penalty is amount% of the installment.
type EMIPenaltyRule struct {
	ID          uuid.UUID
	Amount      decimal.Decimal
	StartPeriod int
	EndPeriod   int
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

func (r *EMIPenaltyRule) Validate() error {
	if r.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if r.StartPeriod < 0 || r.EndPeriod < r.StartPeriod {
		return fmt.Errorf("penalty rule period bounds are inverted: %w", ErrInvalidRequest)
	}
	return nil
}

func (r *EMIPenaltyRule) Covers(daysLate int) bool {
	return r.StartPeriod <= daysLate && daysLate <= r.EndPeriod
}

// PenaltyAmount computes the penalty for base: base * rate / 100, rounded
// half-up to two decimal places.
func (r *EMIPenaltyRule) PenaltyAmount(base Money) Money {
	return base.Percent(r.Amount)
}

// ResolvePenaltyRule selects the rule covering daysLate. When bands overlap
// the one with the smallest end_period wins. Returns nil if no band matches.
func ResolvePenaltyRule(rules []EMIPenaltyRule, daysLate int) *EMIPenaltyRule {
	var match *EMIPenaltyRule
	for i := range rules {
		r := &rules[i]
		if !r.Covers(daysLate) {
			continue
		}
		if match == nil || r.EndPeriod < match.EndPeriod {
			match = r
		}
	}
	return match
}

// PenaltyDetails is the audit breakdown recorded with each assessment.
type PenaltyDetails struct {
	DaysLate   int             `json:"days_late"`
	Rate       decimal.Decimal `json:"rate"`
	BaseAmount Money           `json:"base_amount"`
	Penalty    Money           `json:"penalty"`
	AssessedAt time.Time       `json:"assessed_at"`
}

// EMIPenaltyCalculation records one penalty assessment. Rows are never
// mutated; the live EMI.Penalty field is replaced on reassessment while
// history stays here.
type EMIPenaltyCalculation struct {
	ID        uuid.UUID
	EMIID     uuid.UUID
	Amount    Money
	RuleID    uuid.UUID
	DaysLate  int
	Details   PenaltyDetails
	CreatedAt time.Time
	DeletedAt *time.Time
}
