package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/obiefule/wallet-platform/internal/config"
	"github.com/obiefule/wallet-platform/internal/logging"
	"github.com/obiefule/wallet-platform/internal/repository"
	"github.com/obiefule/wallet-platform/internal/service/emi"
	"github.com/obiefule/wallet-platform/internal/service/ledger"
)

const assessBatchSize = 100

// The sweeper runs the global passes the API server does not: flagging every
// overdue installment in the system and assessing penalties on installments
// past their grace period.
func main() {
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("wallet-sweeper", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	wallets := repository.NewWalletRepository(db)
	payments := repository.NewPaymentTransactionRepository(db)
	transactions := repository.NewTransactionRepository(db)
	emis := repository.NewEMIRepository(db)
	emiRules := repository.NewEMIRuleRepository(db)
	webhookEvents := repository.NewWebhookEventRepository(db)

	ledgerSvc := ledger.NewService(wallets, db, cfg.LedgerApplyRetries)
	emiSvc := emi.NewService(emis, emiRules, payments, transactions, ledgerSvc, webhookEvents, db)

	if *once {
		runPass(ctx, emiSvc)
		return
	}

	slog.Info("sweeper started", "interval", cfg.SweepInterval())

	ticker := time.NewTicker(cfg.SweepInterval())
	defer ticker.Stop()

	runPass(ctx, emiSvc)
	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopped")
			return
		case <-ticker.C:
			runPass(ctx, emiSvc)
		}
	}
}

func runPass(ctx context.Context, emiSvc *emi.Service) {
	now := time.Now().UTC()

	flagged, err := emiSvc.SweepDue(ctx, now)
	if err != nil {
		slog.Error("sweep pass failed", "error", err)
		return
	}

	assessed, err := emiSvc.AssessOverdue(ctx, now, assessBatchSize)
	if err != nil {
		slog.Error("penalty pass failed", "error", err)
		return
	}

	slog.Info("sweep pass complete", "flagged", flagged, "penalties_assessed", assessed)
}
