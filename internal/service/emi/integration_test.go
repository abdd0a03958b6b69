package emi_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obiefule/wallet-platform/internal/domain"
	"github.com/obiefule/wallet-platform/internal/repository"
	"github.com/obiefule/wallet-platform/internal/service/emi"
	"github.com/obiefule/wallet-platform/internal/service/ledger"
	"github.com/obiefule/wallet-platform/internal/service/payment"
	"github.com/obiefule/wallet-platform/internal/testutil"
)

func setupServices(t *testing.T, db *sql.DB) (*emi.Service, *payment.Service) {
	t.Helper()

	wallets := repository.NewWalletRepository(db)
	payments := repository.NewPaymentTransactionRepository(db)
	transactions := repository.NewTransactionRepository(db)
	emis := repository.NewEMIRepository(db)
	emiRules := repository.NewEMIRuleRepository(db)
	webhookEvents := repository.NewWebhookEventRepository(db)

	ledgerSvc := ledger.NewService(wallets, db, 3)
	emiSvc := emi.NewService(emis, emiRules, payments, transactions, ledgerSvc, webhookEvents, db)
	paymentSvc := payment.NewService(
		payments, transactions, ledgerSvc, emis,
		repository.NewUserRepository(db),
		repository.NewCurrencyRepository(db),
		repository.NewProviderRepository(db),
		webhookEvents, db,
	)
	return emiSvc, paymentSvc
}

func seedPaymentTransaction(t *testing.T, db *sql.DB, svc *payment.Service, amount string) *domain.PaymentTransaction {
	t.Helper()

	user := testutil.SeedTestUser(t, db, "buyer@test.com", "Buyer")
	provider := testutil.SeedProvider(t, db, "stripe", true)
	currency := testutil.SeedCurrency(t, db, "USD")

	p, err := svc.RecordPaymentTransaction(context.Background(), payment.RecordPaymentRequest{
		UserID:       user.ID,
		Amount:       domain.MustMoney(amount),
		PaymentToken: "tok_abc",
		ProviderID:   provider,
		CurrencyID:   currency,
	})
	require.NoError(t, err)
	return p
}

func TestCreateSchedule_SplitsAmountExactly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, paymentSvc := setupServices(t, db)
	ctx := context.Background()

	testutil.SeedEMIRules(t, db,
		domain.MustMoney("100.00"), domain.MustMoney("1000.00"),
		4, decimal.NewFromInt(20),
	)
	p := seedPaymentTransaction(t, db, paymentSvc, "600.00")

	firstDue := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	schedule, err := svc.CreateSchedule(ctx, emi.CreateScheduleRequest{
		PaymentTransactionID: p.ID,
		Installments:         3,
		FirstDueDate:         firstDue,
		GraceDays:            3,
	})
	require.NoError(t, err)
	require.Len(t, schedule, 3)

	// 20% up front, the rest split evenly.
	assert.Equal(t, "120.00", schedule[0].Amount.String())
	assert.Equal(t, "240.00", schedule[1].Amount.String())
	assert.Equal(t, "240.00", schedule[2].Amount.String())

	for i, e := range schedule {
		assert.Equal(t, i+1, e.InstallmentNumber)
		assert.Equal(t, firstDue.AddDate(0, i, 0), e.ScheduleDate)
		assert.Equal(t, domain.EMIStatusActive, e.Status)
		assert.Equal(t, 3, e.PenaltyDays)
	}

	persisted, err := svc.GetSchedule(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, persisted, 3)
}

func TestCreateSchedule_RejectsAmountOutsideEligibleBand(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, paymentSvc := setupServices(t, db)

	testutil.SeedEMIRules(t, db,
		domain.MustMoney("100.00"), domain.MustMoney("1000.00"),
		4, decimal.NewFromInt(20),
	)
	p := seedPaymentTransaction(t, db, paymentSvc, "50.00")

	_, err := svc.CreateSchedule(context.Background(), emi.CreateScheduleRequest{
		PaymentTransactionID: p.ID,
		Installments:         2,
		FirstDueDate:         time.Now().UTC(),
	})
	require.ErrorIs(t, err, domain.ErrOutOfEligibleRange)
}

func TestCreateSchedule_RejectsTooManyInstallments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, paymentSvc := setupServices(t, db)

	testutil.SeedEMIRules(t, db,
		domain.MustMoney("100.00"), domain.MustMoney("1000.00"),
		4, decimal.NewFromInt(20),
	)
	p := seedPaymentTransaction(t, db, paymentSvc, "600.00")

	_, err := svc.CreateSchedule(context.Background(), emi.CreateScheduleRequest{
		PaymentTransactionID: p.ID,
		Installments:         12,
		FirstDueDate:         time.Now().UTC(),
	})
	require.ErrorIs(t, err, domain.ErrTooManyInstallments)
}

func TestMarkPaid_SettlesOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, paymentSvc := setupServices(t, db)
	ctx := context.Background()

	testutil.SeedEMIRules(t, db,
		domain.MustMoney("100.00"), domain.MustMoney("1000.00"),
		4, decimal.NewFromInt(20),
	)
	p := seedPaymentTransaction(t, db, paymentSvc, "600.00")

	schedule, err := svc.CreateSchedule(ctx, emi.CreateScheduleRequest{
		PaymentTransactionID: p.ID,
		Installments:         3,
		FirstDueDate:         time.Now().UTC().AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	paidOn := time.Now().UTC()
	settled, err := svc.MarkPaid(ctx, schedule[0].ID, paidOn)
	require.NoError(t, err)
	assert.Equal(t, domain.EMIStatusCompleted, settled.Status)
	require.NotNil(t, settled.PaymentDate)

	// The 120.00 first installment left the wallet.
	assert.Equal(t, "-120.00", testutil.GetWalletBalance(t, db, p.UserID).String())

	_, err = svc.MarkPaid(ctx, schedule[0].ID, paidOn)
	require.ErrorIs(t, err, domain.ErrAlreadySettled)
	assert.Equal(t, "-120.00", testutil.GetWalletBalance(t, db, p.UserID).String())
}

func TestSweepDue_FlagsOnlyOverdueActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, paymentSvc := setupServices(t, db)
	ctx := context.Background()

	testutil.SeedEMIRules(t, db,
		domain.MustMoney("100.00"), domain.MustMoney("1000.00"),
		4, decimal.NewFromInt(20),
	)
	p := seedPaymentTransaction(t, db, paymentSvc, "600.00")

	// First installment ten days overdue, the rest still in the future.
	schedule, err := svc.CreateSchedule(ctx, emi.CreateScheduleRequest{
		PaymentTransactionID: p.ID,
		Installments:         3,
		FirstDueDate:         time.Now().UTC().AddDate(0, 0, -10),
	})
	require.NoError(t, err)

	n, err := svc.SweepDue(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	persisted, err := svc.GetSchedule(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EMIStatusDuePayment, persisted[0].Status)
	assert.Equal(t, domain.EMIStatusActive, persisted[1].Status)

	// Re-running the sweep finds nothing new.
	n, err = svc.SweepDue(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	require.NoError(t, err)
	assert.Equal(t, schedule[0].ID, persisted[0].ID)
}

func TestAssessPenalty_DebitsWalletAndRecordsCalculation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, paymentSvc := setupServices(t, db)
	ctx := context.Background()

	testutil.SeedEMIRules(t, db,
		domain.MustMoney("100.00"), domain.MustMoney("1000.00"),
		4, decimal.NewFromInt(20),
	)
	testutil.SeedPenaltyRule(t, db, decimal.NewFromInt(5), 0, 30)
	p := seedPaymentTransaction(t, db, paymentSvc, "600.00")

	firstDue := time.Now().UTC().AddDate(0, 0, -10)
	schedule, err := svc.CreateSchedule(ctx, emi.CreateScheduleRequest{
		PaymentTransactionID: p.ID,
		Installments:         3,
		FirstDueDate:         firstDue,
		GraceDays:            3,
	})
	require.NoError(t, err)

	asOf := firstDue.AddDate(0, 0, 10)
	calc, err := svc.AssessPenalty(ctx, schedule[0].ID, asOf)
	require.NoError(t, err)
	require.NotNil(t, calc)

	// 5% of the 120.00 first installment.
	assert.Equal(t, "6.00", calc.Amount.String())
	assert.Equal(t, 10, calc.DaysLate)
	assert.Equal(t, "-6.00", testutil.GetWalletBalance(t, db, p.UserID).String())

	persisted, err := svc.GetSchedule(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "6.00", persisted[0].Penalty.String())

	// Same assessment again is a no-op.
	again, err := svc.AssessPenalty(ctx, schedule[0].ID, asOf)
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Equal(t, "-6.00", testutil.GetWalletBalance(t, db, p.UserID).String())
}

func TestAssessPenalty_ReassessmentDebitsOnlyTheDelta(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, paymentSvc := setupServices(t, db)
	ctx := context.Background()

	testutil.SeedEMIRules(t, db,
		domain.MustMoney("100.00"), domain.MustMoney("1000.00"),
		4, decimal.NewFromInt(20),
	)
	testutil.SeedPenaltyRule(t, db, decimal.NewFromInt(5), 0, 30)
	testutil.SeedPenaltyRule(t, db, decimal.NewFromInt(2), 6, 15)
	p := seedPaymentTransaction(t, db, paymentSvc, "600.00")

	firstDue := time.Now().UTC().AddDate(0, 0, -25)
	schedule, err := svc.CreateSchedule(ctx, emi.CreateScheduleRequest{
		PaymentTransactionID: p.ID,
		Installments:         3,
		FirstDueDate:         firstDue,
		GraceDays:            3,
	})
	require.NoError(t, err)

	// 10 days late: overlapping bands resolve to the narrower 6-15 one, 2%.
	calc, err := svc.AssessPenalty(ctx, schedule[0].ID, firstDue.AddDate(0, 0, 10))
	require.NoError(t, err)
	require.NotNil(t, calc)
	assert.Equal(t, "2.40", calc.Amount.String())
	assert.Equal(t, "-2.40", testutil.GetWalletBalance(t, db, p.UserID).String())

	// 20 days late: only the 0-30 band covers, 5%. The installment's penalty
	// is replaced and the wallet moves by the 3.60 difference.
	calc, err = svc.AssessPenalty(ctx, schedule[0].ID, firstDue.AddDate(0, 0, 20))
	require.NoError(t, err)
	require.NotNil(t, calc)
	assert.Equal(t, "6.00", calc.Amount.String())
	assert.Equal(t, "-6.00", testutil.GetWalletBalance(t, db, p.UserID).String())

	persisted, err := svc.GetSchedule(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "6.00", persisted[0].Penalty.String())

	// Both assessments stay on record.
	history, err := svc.PenaltyHistory(ctx, schedule[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2.40", history[0].Amount.String())
	assert.Equal(t, "6.00", history[1].Amount.String())
}

func TestAssessPenalty_InsideGraceDoesNothing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, paymentSvc := setupServices(t, db)
	ctx := context.Background()

	testutil.SeedEMIRules(t, db,
		domain.MustMoney("100.00"), domain.MustMoney("1000.00"),
		4, decimal.NewFromInt(20),
	)
	testutil.SeedPenaltyRule(t, db, decimal.NewFromInt(5), 0, 30)
	p := seedPaymentTransaction(t, db, paymentSvc, "600.00")

	firstDue := time.Now().UTC().AddDate(0, 0, -2)
	schedule, err := svc.CreateSchedule(ctx, emi.CreateScheduleRequest{
		PaymentTransactionID: p.ID,
		Installments:         3,
		FirstDueDate:         firstDue,
		GraceDays:            5,
	})
	require.NoError(t, err)

	calc, err := svc.AssessPenalty(ctx, schedule[0].ID, firstDue.AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.Nil(t, calc)
}

func TestAssessPenalty_NoCoveringRule(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, paymentSvc := setupServices(t, db)
	ctx := context.Background()

	testutil.SeedEMIRules(t, db,
		domain.MustMoney("100.00"), domain.MustMoney("1000.00"),
		4, decimal.NewFromInt(20),
	)
	testutil.SeedPenaltyRule(t, db, decimal.NewFromInt(5), 0, 30)
	p := seedPaymentTransaction(t, db, paymentSvc, "600.00")

	firstDue := time.Now().UTC().AddDate(0, 0, -40)
	schedule, err := svc.CreateSchedule(ctx, emi.CreateScheduleRequest{
		PaymentTransactionID: p.ID,
		Installments:         3,
		FirstDueDate:         firstDue,
		GraceDays:            3,
	})
	require.NoError(t, err)

	_, err = svc.AssessPenalty(ctx, schedule[0].ID, firstDue.AddDate(0, 0, 40))
	require.ErrorIs(t, err, domain.ErrNoPenaltyRuleForPeriod)
}

func TestAssessPenalty_SettledInstallmentRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, paymentSvc := setupServices(t, db)
	ctx := context.Background()

	testutil.SeedEMIRules(t, db,
		domain.MustMoney("100.00"), domain.MustMoney("1000.00"),
		4, decimal.NewFromInt(20),
	)
	testutil.SeedPenaltyRule(t, db, decimal.NewFromInt(5), 0, 30)
	p := seedPaymentTransaction(t, db, paymentSvc, "600.00")

	firstDue := time.Now().UTC().AddDate(0, 0, -10)
	schedule, err := svc.CreateSchedule(ctx, emi.CreateScheduleRequest{
		PaymentTransactionID: p.ID,
		Installments:         3,
		FirstDueDate:         firstDue,
		GraceDays:            3,
	})
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, schedule[0].ID, time.Now().UTC())
	require.NoError(t, err)

	_, err = svc.AssessPenalty(ctx, schedule[0].ID, firstDue.AddDate(0, 0, 10))
	require.ErrorIs(t, err, domain.ErrAlreadySettled)
}
