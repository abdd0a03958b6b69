package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pct(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSplitInstallments_FirstPercentageThenEvenSplit(t *testing.T) {
	parts, err := SplitInstallments(MustMoney("600.00"), 3, pct("20"))
	require.NoError(t, err)
	require.Len(t, parts, 3)

	assert.Equal(t, "120.00", parts[0].String())
	assert.Equal(t, "240.00", parts[1].String())
	assert.Equal(t, "240.00", parts[2].String())
}

func TestSplitInstallments_SumEqualsTotal(t *testing.T) {
	tests := []struct {
		total    string
		n        int
		firstPct string
	}{
		{"600.00", 3, "20"},
		{"100.00", 3, "33.33"},
		{"999.99", 7, "15"},
		{"0.03", 2, "50"},
		{"1234.56", 12, "10"},
		{"500.00", 6, "100"},
		{"0.25", 8, "80"},
		{"0.10", 5, "90"},
	}
	for _, tt := range tests {
		total := MustMoney(tt.total)
		parts, err := SplitInstallments(total, tt.n, pct(tt.firstPct))
		require.NoError(t, err, "split %s into %d", tt.total, tt.n)
		require.Len(t, parts, tt.n)

		sum := ZeroMoney()
		for _, p := range parts {
			assert.False(t, p.IsNegative(), "negative installment in %+v", parts)
			sum = sum.Add(p)
		}
		assert.True(t, sum.Equal(total), "sum %s != total %s (n=%d)", sum, total, tt.n)
	}
}

func TestSplitInstallments_TinyResidualStaysNonNegative(t *testing.T) {
	// A heavy first installment leaves a residual smaller than a cent per
	// slot; the even shares must truncate rather than round up, or the last
	// installment would go below zero.
	parts, err := SplitInstallments(MustMoney("0.25"), 8, pct("80"))
	require.NoError(t, err)
	require.Len(t, parts, 8)

	assert.Equal(t, "0.20", parts[0].String())
	sum := ZeroMoney()
	for i, p := range parts {
		assert.False(t, p.IsNegative(), "installment %d is negative: %s", i+1, p)
		sum = sum.Add(p)
	}
	assert.Equal(t, "0.05", parts[7].String())
	assert.True(t, sum.Equal(MustMoney("0.25")))
}

func TestSplitInstallments_SingleInstallmentCarriesFullAmount(t *testing.T) {
	parts, err := SplitInstallments(MustMoney("250.00"), 1, pct("20"))
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "250.00", parts[0].String())
}

func TestSplitInstallments_Rejections(t *testing.T) {
	_, err := SplitInstallments(MustMoney("-10.00"), 3, pct("20"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = SplitInstallments(ZeroMoney(), 3, pct("20"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = SplitInstallments(MustMoney("100.00"), 0, pct("20"))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestResolvePenaltyRule_NarrowestUpperBoundWins(t *testing.T) {
	wide := EMIPenaltyRule{ID: uuid.New(), Amount: pct("5"), StartPeriod: 0, EndPeriod: 30}
	mid := EMIPenaltyRule{ID: uuid.New(), Amount: pct("2"), StartPeriod: 6, EndPeriod: 15}
	late := EMIPenaltyRule{ID: uuid.New(), Amount: pct("8"), StartPeriod: 16, EndPeriod: 45}
	rules := []EMIPenaltyRule{wide, late, mid}

	got := ResolvePenaltyRule(rules, 9)
	require.NotNil(t, got)
	assert.Equal(t, mid.ID, got.ID, "overlapping bands resolve to smallest end_period")

	got = ResolvePenaltyRule(rules, 3)
	require.NotNil(t, got)
	assert.Equal(t, wide.ID, got.ID)

	got = ResolvePenaltyRule(rules, 40)
	require.NotNil(t, got)
	assert.Equal(t, late.ID, got.ID)

	assert.Nil(t, ResolvePenaltyRule(rules, 60))
	assert.Nil(t, ResolvePenaltyRule(nil, 5))
}

func TestEMIPenaltyRule_PenaltyAmount(t *testing.T) {
	rule := EMIPenaltyRule{Amount: pct("2"), StartPeriod: 6, EndPeriod: 15}
	assert.Equal(t, "20.00", rule.PenaltyAmount(MustMoney("1000.00")).String())

	rule.Amount = pct("2.75")
	assert.Equal(t, "3.44", rule.PenaltyAmount(MustMoney("125.00")).String()) // 3.4375 -> 3.44
}

func TestEMI_DaysLate(t *testing.T) {
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	emi := EMI{ScheduleDate: due}

	assert.Equal(t, 9, emi.DaysLate(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, emi.DaysLate(due))
	assert.Equal(t, 0, emi.DaysLate(time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC)), "not yet due clamps to zero")
}

func TestEMIRules_Validate(t *testing.T) {
	valid := EMIRules{
		MinAmount:                  MustMoney("100.00"),
		MaxAmount:                  MustMoney("10000.00"),
		MaxInstallments:            6,
		FirstInstallmentPercentage: pct("20"),
	}
	require.NoError(t, valid.Validate())

	inverted := valid
	inverted.MinAmount, inverted.MaxAmount = inverted.MaxAmount, inverted.MinAmount
	assert.ErrorIs(t, inverted.Validate(), ErrInvalidAmount)

	zeroPct := valid
	zeroPct.FirstInstallmentPercentage = decimal.Zero
	assert.ErrorIs(t, zeroPct.Validate(), ErrInvalidRequest)

	overPct := valid
	overPct.FirstInstallmentPercentage = pct("101")
	assert.ErrorIs(t, overPct.Validate(), ErrInvalidRequest)
}

func TestEMIRules_Eligible(t *testing.T) {
	rules := EMIRules{MinAmount: MustMoney("100.00"), MaxAmount: MustMoney("10000.00")}

	assert.True(t, rules.Eligible(MustMoney("100.00")), "bounds are inclusive")
	assert.True(t, rules.Eligible(MustMoney("10000.00")))
	assert.False(t, rules.Eligible(MustMoney("99.99")))
	assert.False(t, rules.Eligible(MustMoney("10000.01")))
}
