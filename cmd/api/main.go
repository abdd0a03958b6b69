package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/obiefule/wallet-platform/internal/config"
	"github.com/obiefule/wallet-platform/internal/handler"
	"github.com/obiefule/wallet-platform/internal/logging"
	"github.com/obiefule/wallet-platform/internal/middleware"
	"github.com/obiefule/wallet-platform/internal/outbox"
	"github.com/obiefule/wallet-platform/internal/repository"
	"github.com/obiefule/wallet-platform/internal/service/emi"
	"github.com/obiefule/wallet-platform/internal/service/ledger"
	"github.com/obiefule/wallet-platform/internal/service/payment"
	"github.com/obiefule/wallet-platform/internal/service/withdraw"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("wallet-api", cfg.LogLevel, cfg.AppEnv)

	db, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	users := repository.NewUserRepository(db)
	wallets := repository.NewWalletRepository(db)
	providers := repository.NewProviderRepository(db)
	currencies := repository.NewCurrencyRepository(db)
	payments := repository.NewPaymentTransactionRepository(db)
	transactions := repository.NewTransactionRepository(db)
	emis := repository.NewEMIRepository(db)
	emiRules := repository.NewEMIRuleRepository(db)
	withdrawals := repository.NewWithdrawRepository(db)
	webhookEvents := repository.NewWebhookEventRepository(db)

	ledgerSvc := ledger.NewService(wallets, db, cfg.LedgerApplyRetries)
	paymentSvc := payment.NewService(payments, transactions, ledgerSvc, emis, users, currencies, providers, webhookEvents, db)
	emiSvc := emi.NewService(emis, emiRules, payments, transactions, ledgerSvc, webhookEvents, db)
	withdrawSvc := withdraw.NewService(withdrawals, wallets, users, transactions, ledgerSvc, db)
	paymentSvc.SetSweeper(emiSvc)

	mux := buildRoutes(cfg, db, users, providers, currencies, emiRules, ledgerSvc, paymentSvc, emiSvc, withdrawSvc)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := outbox.NewDispatcher(webhookEvents, cfg.WebhookURL, cfg.WebhookSecret, slog.Default(), cfg.WebhookInterval())
	go dispatcher.Start(rootCtx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.Tracing(middleware.Logging(middleware.Recovery(mux))),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-rootCtx.Done()

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func buildRoutes(
	cfg *config.Config,
	db *sql.DB,
	users *repository.UserRepository,
	providers *repository.ProviderRepository,
	currencies *repository.CurrencyRepository,
	emiRules *repository.EMIRuleRepository,
	ledgerSvc *ledger.Service,
	paymentSvc *payment.Service,
	emiSvc *emi.Service,
	withdrawSvc *withdraw.Service,
) *http.ServeMux {
	healthHandler := handler.NewHealthHandler(db)
	authHandler := handler.NewAuthHandler(users, cfg.JWTSecret, cfg.JWTExpiry())
	walletHandler := handler.NewWalletHandler(ledgerSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	emiHandler := handler.NewEMIHandler(emiSvc)
	withdrawHandler := handler.NewWithdrawHandler(withdrawSvc, users)
	providerHandler := handler.NewProviderHandler(providers, users)
	rulesHandler := handler.NewRulesHandler(emiRules, currencies, users)

	authed := middleware.Auth(cfg.JWTSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)

	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.HandleFunc("POST /auth/login", authHandler.Login)

	mux.Handle("GET /users/{id}/wallet", authed(http.HandlerFunc(walletHandler.GetBalance)))

	mux.Handle("POST /users/{id}/payment-transactions", authed(http.HandlerFunc(paymentHandler.Record)))
	mux.Handle("GET /users/{id}/payment-transactions", authed(http.HandlerFunc(paymentHandler.ListPaymentTransactions)))
	mux.Handle("POST /payment-transactions/{pid}/transition", authed(http.HandlerFunc(paymentHandler.Transition)))
	mux.Handle("GET /payment-transactions/{pid}/emis", authed(http.HandlerFunc(emiHandler.GetSchedule)))

	mux.Handle("POST /users/{id}/transactions", authed(http.HandlerFunc(paymentHandler.RecordTransaction)))
	mux.Handle("GET /users/{id}/transactions", authed(http.HandlerFunc(paymentHandler.ListTransactions)))

	mux.Handle("POST /emis", authed(http.HandlerFunc(emiHandler.CreateSchedule)))
	mux.Handle("POST /emis/{eid}/pay", authed(http.HandlerFunc(emiHandler.MarkPaid)))
	mux.Handle("POST /emis/{eid}/assess-penalty", authed(http.HandlerFunc(emiHandler.AssessPenalty)))
	mux.Handle("GET /emis/{eid}/penalties", authed(http.HandlerFunc(emiHandler.ListPenalties)))

	mux.Handle("POST /users/{id}/withdrawals", authed(http.HandlerFunc(withdrawHandler.Create)))
	mux.Handle("GET /users/{id}/withdrawals", authed(http.HandlerFunc(withdrawHandler.List)))
	mux.Handle("POST /withdrawals/{wid}/act", authed(http.HandlerFunc(withdrawHandler.Act)))
	mux.Handle("POST /withdrawals/{wid}/transfer", authed(http.HandlerFunc(withdrawHandler.MarkTransferred)))

	mux.Handle("POST /providers", authed(http.HandlerFunc(providerHandler.Create)))
	mux.Handle("GET /providers", authed(http.HandlerFunc(providerHandler.List)))
	mux.Handle("DELETE /providers/{pid}", authed(http.HandlerFunc(providerHandler.Deactivate)))

	mux.Handle("POST /emi-rules", authed(http.HandlerFunc(rulesHandler.CreateRules)))
	mux.Handle("GET /emi-rules", authed(http.HandlerFunc(rulesHandler.GetRules)))
	mux.Handle("POST /emi-penalty-rules", authed(http.HandlerFunc(rulesHandler.CreatePenaltyRule)))
	mux.Handle("GET /emi-penalty-rules", authed(http.HandlerFunc(rulesHandler.ListPenaltyRules)))
	mux.Handle("POST /currencies", authed(http.HandlerFunc(rulesHandler.CreateCurrency)))

	return mux
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var lastErr error
	for i := range 30 {
		db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool)
		if err == nil {
			return db, nil
		}
		lastErr = err
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", lastErr)
}
