package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/obiefule/wallet-platform/internal/domain"
)

func SeedTestUser(t *testing.T, db *sql.DB, email, name string) *domain.User {
	t.Helper()
	return seedUser(t, db, email, name, domain.UserRoleMember)
}

func SeedOperator(t *testing.T, db *sql.DB, email, name string) *domain.User {
	t.Helper()
	return seedUser(t, db, email, name, domain.UserRoleOperator)
}

func seedUser(t *testing.T, db *sql.DB, email, name string, role domain.UserRole) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		Status:       domain.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO users (id, email, name, password_hash, role, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed test user %s: %v", email, err)
	}
	return u
}

func SeedWallet(t *testing.T, db *sql.DB, userID uuid.UUID, balance domain.Money) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO wallets (id, user_id, balance, version) VALUES ($1, $2, $3, 0)`,
		id, userID, balance,
	)
	if err != nil {
		t.Fatalf("seed wallet for %s: %v", userID, err)
	}
	return id
}

func SeedProvider(t *testing.T, db *sql.DB, name string, active bool) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO payment_providers (id, name, active) VALUES ($1, $2, $3)`,
		id, name, active,
	)
	if err != nil {
		t.Fatalf("seed provider %s: %v", name, err)
	}
	return id
}

func SeedCurrency(t *testing.T, db *sql.DB, code string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO currencies (id, code, fraction_digits) VALUES ($1, $2, 2)`,
		id, code,
	)
	if err != nil {
		t.Fatalf("seed currency %s: %v", code, err)
	}
	return id
}

func SeedEMIRules(t *testing.T, db *sql.DB, min, max domain.Money, maxInstallments int, firstPct decimal.Decimal) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO emi_rules (id, min_amount, max_amount, max_installments, first_installment_percentage)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, min, max, maxInstallments, firstPct,
	)
	if err != nil {
		t.Fatalf("seed emi rules: %v", err)
	}
	return id
}

func SeedPenaltyRule(t *testing.T, db *sql.DB, rate decimal.Decimal, startPeriod, endPeriod int) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO emi_penalty_rules (id, amount, start_period, end_period)
		 VALUES ($1, $2, $3, $4)`,
		id, rate, startPeriod, endPeriod,
	)
	if err != nil {
		t.Fatalf("seed penalty rule: %v", err)
	}
	return id
}

func GetWalletBalance(t *testing.T, db *sql.DB, userID uuid.UUID) domain.Money {
	t.Helper()

	var balance domain.Money
	err := db.QueryRow(`SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		t.Fatalf("get wallet balance %s: %v", userID, err)
	}
	return balance
}

func CountAppliedEntries(t *testing.T, db *sql.DB, paymentTransactionID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE payment_transaction_id = $1 AND applied_at IS NOT NULL`,
		paymentTransactionID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count applied entries for %s: %v", paymentTransactionID, err)
	}
	return count
}
