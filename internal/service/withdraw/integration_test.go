package withdraw_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obiefule/wallet-platform/internal/domain"
	"github.com/obiefule/wallet-platform/internal/repository"
	"github.com/obiefule/wallet-platform/internal/service/ledger"
	"github.com/obiefule/wallet-platform/internal/service/withdraw"
	"github.com/obiefule/wallet-platform/internal/testutil"
)

func setupService(t *testing.T, db *sql.DB) *withdraw.Service {
	t.Helper()

	wallets := repository.NewWalletRepository(db)
	return withdraw.NewService(
		repository.NewWithdrawRepository(db),
		wallets,
		repository.NewUserRepository(db),
		repository.NewTransactionRepository(db),
		ledger.NewService(wallets, db, 3),
		db,
	)
}

func TestCreate_RejectsInsufficientFunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "saver@test.com", "Saver")
	testutil.SeedWallet(t, db, user.ID, domain.MustMoney("50.00"))

	_, err := svc.Create(ctx, user.ID, domain.MustMoney("80.00"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestCreate_OpensRequestInReview(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "saver@test.com", "Saver")
	testutil.SeedWallet(t, db, user.ID, domain.MustMoney("200.00"))

	w, err := svc.Create(ctx, user.ID, domain.MustMoney("80.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawStatusInReview, w.Status)
	assert.Nil(t, w.ActBy)

	// Opening the request does not touch the balance.
	assert.Equal(t, "200.00", testutil.GetWalletBalance(t, db, user.ID).String())
}

func TestAct_RequiresOperator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "saver@test.com", "Saver")
	testutil.SeedWallet(t, db, user.ID, domain.MustMoney("200.00"))

	w, err := svc.Create(ctx, user.ID, domain.MustMoney("80.00"))
	require.NoError(t, err)

	// A member cannot decide, not even on their own request.
	_, err = svc.Act(ctx, w.ID, user.ID, domain.WithdrawDecisionApprove)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAct_ApproveRecordsActor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "saver@test.com", "Saver")
	operator := testutil.SeedOperator(t, db, "ops@test.com", "Ops")
	testutil.SeedWallet(t, db, user.ID, domain.MustMoney("200.00"))

	w, err := svc.Create(ctx, user.ID, domain.MustMoney("80.00"))
	require.NoError(t, err)

	approved, err := svc.Act(ctx, w.ID, operator.ID, domain.WithdrawDecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawStatusApproved, approved.Status)
	require.NotNil(t, approved.ActBy)
	assert.Equal(t, operator.ID, *approved.ActBy)
}

func TestAct_RejectIsTerminal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "saver@test.com", "Saver")
	operator := testutil.SeedOperator(t, db, "ops@test.com", "Ops")
	testutil.SeedWallet(t, db, user.ID, domain.MustMoney("200.00"))

	w, err := svc.Create(ctx, user.ID, domain.MustMoney("80.00"))
	require.NoError(t, err)

	rejected, err := svc.Act(ctx, w.ID, operator.ID, domain.WithdrawDecisionReject)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawStatusRejected, rejected.Status)

	_, err = svc.Act(ctx, w.ID, operator.ID, domain.WithdrawDecisionApprove)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.MarkTransferred(ctx, w.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestMarkTransferred_DebitsWallet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "saver@test.com", "Saver")
	operator := testutil.SeedOperator(t, db, "ops@test.com", "Ops")
	testutil.SeedWallet(t, db, user.ID, domain.MustMoney("200.00"))

	w, err := svc.Create(ctx, user.ID, domain.MustMoney("80.00"))
	require.NoError(t, err)
	_, err = svc.Act(ctx, w.ID, operator.ID, domain.WithdrawDecisionApprove)
	require.NoError(t, err)

	transferred, err := svc.MarkTransferred(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawStatusTransferred, transferred.Status)
	assert.Equal(t, "120.00", testutil.GetWalletBalance(t, db, user.ID).String())

	var entries int
	err = db.QueryRow(
		`SELECT COUNT(*) FROM transactions
		 WHERE user_id = $1 AND type = $2 AND applied_at IS NOT NULL`,
		user.ID, domain.TransactionTypeWithdraw,
	).Scan(&entries)
	require.NoError(t, err)
	assert.Equal(t, 1, entries)

	// Transferred is terminal.
	_, err = svc.MarkTransferred(ctx, w.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestMarkTransferred_RequiresApproval(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "saver@test.com", "Saver")
	testutil.SeedWallet(t, db, user.ID, domain.MustMoney("200.00"))

	w, err := svc.Create(ctx, user.ID, domain.MustMoney("80.00"))
	require.NoError(t, err)

	_, err = svc.MarkTransferred(ctx, w.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestMarkTransferred_RechecksBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "saver@test.com", "Saver")
	operator := testutil.SeedOperator(t, db, "ops@test.com", "Ops")
	walletID := testutil.SeedWallet(t, db, user.ID, domain.MustMoney("200.00"))

	w, err := svc.Create(ctx, user.ID, domain.MustMoney("80.00"))
	require.NoError(t, err)
	_, err = svc.Act(ctx, w.ID, operator.ID, domain.WithdrawDecisionApprove)
	require.NoError(t, err)

	// Funds drained between approval and transfer.
	_, err = db.Exec(`UPDATE wallets SET balance = 10.00, version = version + 1 WHERE id = $1`, walletID)
	require.NoError(t, err)

	_, err = svc.MarkTransferred(ctx, w.ID)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, "10.00", testutil.GetWalletBalance(t, db, user.ID).String())
}
