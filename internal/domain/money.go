package domain

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// moneyScale is the fixed number of fractional digits for all monetary
// amounts in this domain. Penalty and installment math rounds half-up to
// this scale.
const moneyScale = 2

// Money is a fixed-precision decimal amount. It is never represented as a
// binary float; all arithmetic goes through decimal.Decimal and results are
// rounded to two fractional digits.
type Money struct {
	d decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(moneyScale)}
}

func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("MoneyFromString: %w", err)
	}
	return NewMoney(d), nil
}

// MustMoney parses s or panics. Intended for constants and test fixtures.
func MustMoney(s string) Money {
	m, err := MoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

func MoneyFromInt(units int64) Money {
	return Money{d: decimal.NewFromInt(units)}
}

func ZeroMoney() Money {
	return Money{d: decimal.Zero}
}

func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

func (m Money) Sub(o Money) Money {
	return Money{d: m.d.Sub(o.d)}
}

func (m Money) Neg() Money {
	return Money{d: m.d.Neg()}
}

// Percent returns rate% of m, rounded half-up to two decimal places.
func (m Money) Percent(rate decimal.Decimal) Money {
	return Money{d: m.d.Mul(rate).Div(decimal.NewFromInt(100)).Round(moneyScale)}
}

// SplitEven divides m into n equal parts, each truncated to two decimal
// places. Truncation keeps the slots from overshooting m, so the remainder
// the caller absorbs is never negative.
func (m Money) SplitEven(n int) Money {
	return Money{d: m.d.Div(decimal.NewFromInt(int64(n))).RoundDown(moneyScale)}
}

func (m Money) Mul(n int64) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(n))}
}

func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

func (m Money) LessThan(o Money) bool {
	return m.d.LessThan(o.d)
}

func (m Money) GreaterThan(o Money) bool {
	return m.d.GreaterThan(o.d)
}

func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

func (m Money) Decimal() decimal.Decimal {
	return m.d
}

func (m Money) String() string {
	return m.d.StringFixed(moneyScale)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("Money.UnmarshalJSON: %w", err)
	}
	m.d = d.Round(moneyScale)
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		m.d = decimal.Zero
		return nil
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return fmt.Errorf("Money.Scan: %w", err)
		}
		m.d = d
		return nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("Money.Scan: %w", err)
		}
		m.d = d
		return nil
	case int64:
		m.d = decimal.NewFromInt(v)
		return nil
	case float64:
		m.d = decimal.NewFromFloat(v).Round(moneyScale)
		return nil
	default:
		return fmt.Errorf("Money.Scan: unsupported type %T", src)
	}
}
